// Package fix defines the single sensor observation the tracking pipeline
// consumes: one GPS fix with coordinate, accuracy, and capture time.
package fix

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// Fix is one location observation as delivered by a location source.
// Immutable once produced; the pipeline never retains it beyond producing
// a smoothed copy and a route point.
type Fix struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Accuracy  float64   `json:"accuracy"` // horizontal accuracy, meters; <= 0 means unknown
	Speed     float64   `json:"speed"`    // m/s; negative means unavailable
	Altitude  float64   `json:"elevation"`
	Heading   float64   `json:"heading"`
	Time      time.Time `json:"time"`
}

// Point returns the fix coordinate as an orb point (lon, lat order).
func (f Fix) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// HasAccuracy reports whether the fix carries a usable accuracy reading.
func (f Fix) HasAccuracy() bool {
	return f.Accuracy > 0 && !math.IsNaN(f.Accuracy) && !math.IsInf(f.Accuracy, 0)
}

// HasSpeed reports whether the fix carries a usable instrument speed.
func (f Fix) HasSpeed() bool {
	return f.Speed >= 0 && !math.IsNaN(f.Speed) && !math.IsInf(f.Speed, 0)
}

// IsZero is useful for dealing with zero-value fixes.
func (f Fix) IsZero() bool {
	return f.Time.IsZero() && f.Latitude == 0 && f.Longitude == 0
}

// Feature returns the fix as a geojson point feature, for route encoding.
func (f Fix) Feature() *geojson.Feature {
	ft := geojson.NewFeature(f.Point())
	ft.Properties["Time"] = f.Time.Format(time.RFC3339)
	ft.Properties["UnixTime"] = f.Time.Unix()
	ft.Properties["Accuracy"] = f.Accuracy
	ft.Properties["Speed"] = f.Speed
	ft.Properties["Elevation"] = f.Altitude
	ft.Properties["Heading"] = f.Heading
	return ft
}

// SpeedSource tags where a speed figure came from, so a degraded estimate
// is never silently mistaken for an instrument reading.
type SpeedSource int

const (
	SpeedUnavailable SpeedSource = iota
	SpeedInstrument              // reported by the location subsystem
	SpeedComputed                // derived from consecutive positions
)

func (s SpeedSource) String() string {
	switch s {
	case SpeedInstrument:
		return "instrument"
	case SpeedComputed:
		return "computed"
	}
	return "unavailable"
}

// ResolveSpeed returns the best available speed for f, preferring the
// instrument reading, falling back to the position-derived speed against
// prev. One precedence rule, codified once.
func ResolveSpeed(f, prev Fix) (float64, SpeedSource) {
	if f.HasSpeed() {
		return f.Speed, SpeedInstrument
	}
	if prev.IsZero() || !f.Time.After(prev.Time) {
		return 0, SpeedUnavailable
	}
	dist := geo.Distance(prev.Point(), f.Point())
	elapsed := f.Time.Sub(prev.Time).Seconds()
	return dist / elapsed, SpeedComputed
}
