// Package workout defines the immutable finalized record of a completed
// tracking session, and the split segments derived along the way.
package workout

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/runstr/trackd/common"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
)

// Split is one fixed-distance segment of a workout.
// Immutable once Completed is set.
type Split struct {
	Sequence int           `json:"sequence"` // 1-based
	Distance float64       `json:"distance"` // meters covered so far in this split
	Duration time.Duration `json:"duration"`
	Pace     float64       `json:"pace"` // minutes per kilometer
	Complete bool          `json:"complete"`
}

// Workout is a finished session frozen into a record. Created exactly once
// at session stop; never mutated, only read, formatted, stored, or published.
type Workout struct {
	ID       string            `json:"id"`
	UserID   string            `json:"userID,omitempty"`
	Activity activity.Activity `json:"activity"`

	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"` // active time, pauses excluded

	Distance       float64 `json:"distance"` // meters, the distance of record
	DistanceSource string  `json:"distanceSource"`
	AveragePace    float64 `json:"averagePace"` // minutes per kilometer

	Calories     float64 `json:"calories,omitempty"` // kcal
	AvgHeartRate float64 `json:"avgHeartRate,omitempty"`
	Steps        int     `json:"steps,omitempty"`
	// StepsEstimated marks step counts derived from distance and an
	// average stride length rather than counted by a sensor.
	StepsEstimated bool `json:"stepsEstimated,omitempty"`

	ElevationGain float64 `json:"elevationGain,omitempty"`
	ElevationLoss float64 `json:"elevationLoss,omitempty"`

	// CellCount is the number of distinct S2 cells the route visited,
	// a rough "ground covered" figure.
	CellCount int `json:"cellCount,omitempty"`

	Route  []fix.Fix `json:"route,omitempty"`
	Splits []Split   `json:"splits,omitempty"`
}

// Pace returns minutes per kilometer for a distance and duration,
// zero (never NaN or Inf) when the distance is zero.
func Pace(distanceMeters float64, dur time.Duration) float64 {
	if distanceMeters <= 0 || dur <= 0 {
		return 0
	}
	return dur.Minutes() / (distanceMeters / 1000.0)
}

// FormatPace renders a min/km figure as "M:SS".
func FormatPace(minPerKm float64) string {
	if minPerKm <= 0 || math.IsNaN(minPerKm) || math.IsInf(minPerKm, 0) {
		return "0:00"
	}
	mins := int(minPerKm)
	secs := int(math.Round((minPerKm - float64(mins)) * 60))
	if secs == 60 {
		mins++
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// IsValid checks the record invariants a finalized workout must satisfy.
func (w *Workout) IsValid() bool {
	if w.Distance < 0 || w.Duration < 0 {
		return false
	}
	if math.IsNaN(w.AveragePace) || math.IsInf(w.AveragePace, 0) {
		return false
	}
	return !w.End.Before(w.Start)
}

// Feature encodes the workout as a geojson LineString feature with summary
// properties, the shape map layers and exporters consume.
func (w *Workout) Feature() *geojson.Feature {
	ls := orb.LineString{}
	accuracies := make([]float64, 0, len(w.Route))
	speeds := make([]float64, 0, len(w.Route))
	for _, f := range w.Route {
		ls = append(ls, f.Point())
		if f.HasAccuracy() {
			accuracies = append(accuracies, f.Accuracy)
		}
		if f.HasSpeed() {
			speeds = append(speeds, f.Speed)
		}
	}

	ft := geojson.NewFeature(ls)
	ft.Properties["ID"] = w.ID
	if w.UserID != "" {
		ft.Properties["UserID"] = w.UserID
	}
	ft.Properties["Activity"] = w.Activity.String()
	ft.Properties["Time_Start_Unix"] = w.Start.Unix()
	ft.Properties["Time_Start_RFC3339"] = w.Start.Format(time.RFC3339)
	ft.Properties["Time_End_Unix"] = w.End.Unix()
	ft.Properties["Time_End_RFC3339"] = w.End.Format(time.RFC3339)
	ft.Properties["Duration"] = w.Duration.Round(time.Second).Seconds()
	ft.Properties["Distance"] = w.Distance
	ft.Properties["DistanceSource"] = w.DistanceSource
	ft.Properties["AveragePace"] = w.AveragePace
	ft.Properties["RawPointCount"] = len(w.Route)

	if mean, err := stats.Mean(stats.Float64Data(accuracies)); err == nil {
		ft.Properties["Accuracy_Mean"] = common.DecimalToFixed(mean, 2)
	}
	if max, err := stats.Max(stats.Float64Data(speeds)); err == nil {
		ft.Properties["Speed_Max"] = common.DecimalToFixed(max, 2)
	}
	if mean, err := stats.Mean(stats.Float64Data(speeds)); err == nil {
		ft.Properties["Speed_Mean"] = common.DecimalToFixed(mean, 2)
	}
	if w.ElevationGain > 0 {
		ft.Properties["Elevation_Gain"] = w.ElevationGain
	}
	if w.ElevationLoss > 0 {
		ft.Properties["Elevation_Loss"] = w.ElevationLoss
	}
	if w.Calories > 0 {
		ft.Properties["Calories"] = w.Calories
	}
	if w.AvgHeartRate > 0 {
		ft.Properties["HeartRate_Avg"] = w.AvgHeartRate
	}
	if w.Steps > 0 {
		ft.Properties["Steps"] = w.Steps
		ft.Properties["Steps_Estimated"] = w.StepsEstimated
	}
	if w.CellCount > 0 {
		ft.Properties["CellCount"] = w.CellCount
	}
	return ft
}

// ElevationProfile sums gain and loss over a route.
func ElevationProfile(route []fix.Fix) (gain, loss float64) {
	for i := 1; i < len(route); i++ {
		delta := route[i].Altitude - route[i-1].Altitude
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	return gain, loss
}
