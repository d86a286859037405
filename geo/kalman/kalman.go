/*
Package kalman smooths gated GPS fixes with a per-axis position/velocity
filter. Consumer GPS jitters by several meters per sample; summed over a
typical run that noise becomes double-digit-percent distance error. Blending
each measurement against a constant-velocity prediction, weighted by reported
accuracy, brings the error down to the low single digits.
*/
package kalman

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
)

const metersPerDegreeLat = 111132.0

func metersPerDegreeLon(lat float64) float64 {
	return 111320.0 * math.Cos(lat*math.Pi/180)
}

// Filter is the per-workout smoother state. One instance per session,
// created on the first accepted fix, reset on large gaps, discarded at stop.
// Not safe for concurrent use; the session loop owns it.
type Filter struct {
	Config   *params.KalmanConfig
	Activity activity.Activity

	initialized bool
	lat, lon    float64 // estimated position, degrees
	velN, velE  float64 // estimated velocity, m/s north/east
	posCov      float64
	velCov      float64
	last        time.Time
}

func NewFilter(act activity.Activity, config *params.KalmanConfig) *Filter {
	if config == nil {
		config = params.DefaultKalmanConfig
	}
	return &Filter{
		Config:   config,
		Activity: act,
	}
}

// Initialized reports whether the filter has seen a first fix.
func (k *Filter) Initialized() bool { return k.initialized }

// Initialize seeds the filter from the first accepted fix: position at the
// measurement, zero velocity, covariance at the activity measurement noise.
func (k *Filter) Initialize(f fix.Fix) {
	k.lat, k.lon = f.Latitude, f.Longitude
	k.velN, k.velE = 0, 0
	k.posCov = k.Activity.MeasurementNoise()
	k.velCov = k.Activity.MeasurementNoise()
	k.last = f.Time
	k.initialized = true
}

// Reset clears all filter state. Invoked on signal loss, long gaps,
// and session teardown.
func (k *Filter) Reset() {
	*k = Filter{Config: k.Config, Activity: k.Activity}
}

// predict propagates the estimate dt seconds forward under the
// constant-velocity model and inflates covariance by process noise.
func (k *Filter) predict(dt float64) {
	k.lat += (k.velN / metersPerDegreeLat) * dt
	k.lon += (k.velE / metersPerDegreeLon(k.lat)) * dt

	q := k.Activity.ProcessNoise() * dt
	k.posCov = math.Min(k.posCov+q, k.Config.PositionCovarianceMax)
	k.velCov = math.Min(k.velCov+q, k.Config.VelocityCovarianceMax)
}

// update blends the measurement into the prediction.
func (k *Filter) update(f fix.Fix, dt float64) {
	mLat := metersPerDegreeLat
	mLon := metersPerDegreeLon(k.lat)

	// Residual between measured and predicted position, in meters.
	resN := (f.Latitude - k.lat) * mLat
	resE := (f.Longitude - k.lon) * mLon

	noise := math.Max(f.Accuracy, k.Activity.MeasurementNoise())
	gain := k.posCov / (k.posCov + noise)

	k.lat += (gain * resN) / mLat
	k.lon += (gain * resE) / mLon

	if dt > 0 {
		vGain := k.velCov / (k.velCov + noise)
		k.velN += vGain * (resN/dt - k.velN)
		k.velE += vGain * (resE/dt - k.velE)
		k.velCov = math.Max(k.velCov*(1-vGain), k.Config.CovarianceFloor)
	}

	k.posCov = math.Max(k.posCov*(1-gain), k.Config.CovarianceFloor)
}

// Smooth runs one fix through the filter and returns the smoothed copy:
// filtered coordinates, original accuracy/speed/time. The first fix after
// initialization or a reset passes through unchanged.
func (k *Filter) Smooth(f fix.Fix) fix.Fix {
	if !k.initialized {
		k.Initialize(f)
		return f
	}

	dt := f.Time.Sub(k.last).Seconds()
	if dt <= 0 {
		// The gate drops out-of-order fixes; belt and suspenders.
		return k.estimateAsFix(f)
	}
	if dt > k.Config.ResetInterval.Seconds() {
		k.Reset()
		k.Initialize(f)
		return f
	}

	k.predict(dt)
	k.update(f, dt)
	k.last = f.Time

	return k.estimateAsFix(f)
}

func (k *Filter) estimateAsFix(f fix.Fix) fix.Fix {
	out := f
	out.Latitude = k.lat
	out.Longitude = k.lon
	return out
}

// Point returns the current position estimate.
func (k *Filter) Point() orb.Point {
	return orb.Point{k.lon, k.lat}
}

// EstimatedSpeed is the speed implied by the filtered velocity, m/s.
// Diagnostic only; gating decisions use reported speeds.
func (k *Filter) EstimatedSpeed() float64 {
	return math.Hypot(k.velN, k.velE)
}

// Confidence maps position covariance to [0,1], 1 meaning the estimate is
// as tight as the filter allows. Diagnostic only.
func (k *Filter) Confidence() float64 {
	if !k.initialized {
		return 0
	}
	c := 1 - k.posCov/k.Config.PositionCovarianceMax
	return math.Max(0, math.Min(1, c))
}
