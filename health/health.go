// Package health defines the authoritative fitness-platform source the
// session reconciles against. The platform's fused distance (pedometer,
// accelerometer, GPS) is treated as more trustworthy than our GPS-only sum,
// so when a reading arrives it overrides the aggregate.
package health

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/runstr/trackd/types/activity"
)

var (
	// ErrNotAuthorized means the user has not granted access to the
	// platform's health store. Sessions proceed GPS-only.
	ErrNotAuthorized = errors.New("health: access not authorized")

	// ErrUnavailable means the source has no reading yet for this session.
	ErrUnavailable = errors.New("health: no sample available")
)

// Sample is one cumulative reading from the authoritative source, totals
// since the session began.
type Sample struct {
	Distance  float64   `json:"distance"` // meters
	Steps     int       `json:"steps"`
	HeartRate float64   `json:"heartRate,omitempty"` // bpm, instantaneous
	Calories  float64   `json:"calories,omitempty"`  // kcal
	Time      time.Time `json:"time"`
}

// HasSteps reports whether the source counted steps itself.
func (s Sample) HasSteps() bool { return s.Steps > 0 }

// Source is a platform health store scoped to one session. Begin before the
// first Sample, End exactly once at stop.
type Source interface {
	Begin(ctx context.Context, start time.Time, act activity.Activity) error
	Sample(ctx context.Context) (Sample, error)
	End(ctx context.Context) (Sample, error)
}

// EstimateSteps derives a step count from distance and an average stride
// length, for sources that report distance but not steps.
func EstimateSteps(distanceMeters, strideMeters float64) int {
	if distanceMeters <= 0 || strideMeters <= 0 {
		return 0
	}
	return int(math.Round(distanceMeters / strideMeters))
}
