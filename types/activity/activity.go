package activity

import (
	"regexp"

	"github.com/runstr/trackd/common"
)

// Activity is the kind of workout a session records.
// Only human-powered activities are trackable; everything else is Unknown.
type Activity int

const (
	Running Activity = iota
	Walking
	Cycling
	Unknown Activity = -1
)

var AllActivityNames = []string{
	Running.String(),
	Walking.String(),
	Cycling.String(),
}

var (
	activityRunning = regexp.MustCompile(`(?i)run`)
	activityWalking = regexp.MustCompile(`(?i)walk|hike|hiking`)
	activityCycling = regexp.MustCompile(`(?i)cycle|bike|biking|ride`)
)

// IsKnown returns true if the activity is not Unknown.
func (a Activity) IsKnown() bool {
	return a != Unknown
}

// String implements the Stringer interface.
func (a Activity) String() string {
	switch a {
	case Running:
		return "Running"
	case Walking:
		return "Walking"
	case Cycling:
		return "Cycling"
	}
	return "Unknown"
}

// Emoji returns a single emoji representation of the activity.
func (a Activity) Emoji() string {
	switch a {
	case Running:
		return "🏃"
	case Walking:
		return "🚶"
	case Cycling:
		return "🚴"
	}
	return "❓"
}

// FromString parses an activity from a free-form label, e.g. "running",
// "outdoor_bike", "Morning Walk".
func FromString(str string) Activity {
	switch {
	case activityRunning.MatchString(str):
		return Running
	case activityWalking.MatchString(str):
		return Walking
	case activityCycling.MatchString(str):
		return Cycling
	}
	return Unknown
}

func FromAny(a any) Activity {
	if a == nil {
		return Unknown
	}
	str, ok := a.(string)
	if !ok {
		return Unknown
	}
	return FromString(str)
}

// MaxSpeed is the fastest plausible sustained speed for the activity, m/s.
// Fixes implying travel faster than this are teleportation artifacts.
func (a Activity) MaxSpeed() float64 {
	switch a {
	case Running:
		return 8.0
	case Walking:
		return 4.0
	case Cycling:
		return 20.0
	}
	return common.SpeedOfSound
}

// MeanSpeed is a typical cruising speed for the activity, m/s.
func (a Activity) MeanSpeed() float64 {
	switch a {
	case Running:
		return common.SpeedOfRunningMean
	case Walking:
		return common.SpeedOfWalkingMean
	case Cycling:
		return common.SpeedOfCyclingMean
	}
	return common.SpeedOfWalkingMean
}

// AccuracyCeiling is the worst horizontal accuracy (meters) a fix may report
// and still influence the track. Cycling tolerates more because it covers
// more ground per sample; walking demands tight fixes because GPS noise is
// proportionally larger at low speeds.
func (a Activity) AccuracyCeiling() float64 {
	switch a {
	case Running:
		return 15.0
	case Walking:
		return 8.0
	case Cycling:
		return 25.0
	}
	return 15.0
}

// MeasurementNoise is the Kalman measurement-noise constant for the activity.
func (a Activity) MeasurementNoise() float64 {
	switch a {
	case Running:
		return 10.0
	case Walking:
		return 5.0
	case Cycling:
		return 15.0
	}
	return 10.0
}

// ProcessNoise is the Kalman process-noise rate for the activity,
// covariance growth per second of prediction.
func (a Activity) ProcessNoise() float64 {
	switch a {
	case Running:
		return 0.5
	case Walking:
		return 0.25
	case Cycling:
		return 1.0
	}
	return 0.5
}

// InferFromSpeed infers an activity from speed using high -> low breakpoints.
func InferFromSpeed(speed float64) Activity {
	if speed > common.SpeedOfRunningMax {
		return Cycling
	}
	if speed > common.SpeedOfWalkingMax {
		return Running
	}
	return Walking
}
