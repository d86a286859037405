package params

import "time"

// GateConfig tunes the sample gate, the accept/reject filter every raw fix
// passes before it can influence any session state.
type GateConfig struct {
	// StaleAge is the maximum age of a fix before it is rejected outright.
	// Buffered or replayed fixes older than this describe where the device
	// was, not where it is.
	StaleAge time.Duration

	// WarmupSamples is the count of initially accepted fixes during which
	// the accuracy ceiling is relaxed by WarmupMultiplier.
	// Consumer GPS needs time to converge after a cold start.
	WarmupSamples int

	// WarmupMultiplier relaxes the activity accuracy ceiling during warm-up.
	WarmupMultiplier float64
}

var DefaultGateConfig = &GateConfig{
	StaleAge:         10 * time.Second,
	WarmupSamples:    15,
	WarmupMultiplier: 1.5,
}

// KalmanConfig tunes the position/velocity smoother.
// Measurement and process noise are activity-specific and live on
// activity.Activity; these are the filter-global bounds.
type KalmanConfig struct {
	// ResetInterval is the sample gap after which filter state is discarded.
	// Past this, the motion model says nothing useful about the next fix.
	ResetInterval time.Duration

	// PositionCovarianceMax and VelocityCovarianceMax clamp covariance
	// growth during long predictions.
	PositionCovarianceMax float64
	VelocityCovarianceMax float64

	// CovarianceFloor prevents the filter from becoming over-confident
	// and freezing out new measurements.
	CovarianceFloor float64
}

var DefaultKalmanConfig = &KalmanConfig{
	ResetInterval:         300 * time.Second,
	PositionCovarianceMax: 100.0,
	VelocityCovarianceMax: 50.0,
	CovarianceFloor:       0.1,
}

// StillConfig tunes the stationary detector, which freezes distance accrual
// while the user is stopped so that GPS noise cannot accrue fictitious
// distance at a standstill.
type StillConfig struct {
	// WindowSize is the number of recent samples averaged for the
	// moving->stationary test.
	WindowSize int

	// SpeedThreshold is the mean window speed below which the user is
	// considered possibly stopped, m/s.
	SpeedThreshold float64

	// DwellTime is how long the window mean must stay below
	// SpeedThreshold before the stationary state is entered.
	DwellTime time.Duration

	// ResumeSpeed is the instantaneous speed that exits the stationary
	// state, m/s.
	ResumeSpeed float64

	// ResumeDistance is the displacement from the stationary anchor point
	// that exits the stationary state regardless of reported speed, meters.
	ResumeDistance float64
}

var DefaultStillConfig = &StillConfig{
	WindowSize:     10,
	SpeedThreshold: 0.5,
	DwellTime:      10 * time.Second,
	ResumeSpeed:    1.0,
	ResumeDistance: 8.0,
}

// SplitConfig selects the fixed split length derived from the unit preference.
type SplitConfig struct {
	// Distance is the split length in meters.
	Distance float64
}

const SplitDistanceMetric = 1000.0
const SplitDistanceImperial = 1609.34

var DefaultSplitConfig = &SplitConfig{
	Distance: SplitDistanceMetric,
}

// ReconcileConfig tunes the authoritative-source polling loop.
type ReconcileConfig struct {
	// Interval between windowed queries against the health source.
	Interval time.Duration

	// StrideLength approximates steps from distance when the health source
	// reports no independent step count, meters per step.
	// A rough population average, deliberately not derived from user
	// height; persisted step counts computed this way are estimates.
	StrideLength float64
}

var DefaultReconcileConfig = &ReconcileConfig{
	Interval:     2 * time.Second,
	StrideLength: 0.75,
}

// TrackerConfig aggregates everything a tracking session needs.
type TrackerConfig struct {
	Gate      *GateConfig
	Kalman    *KalmanConfig
	Still     *StillConfig
	Split     *SplitConfig
	Reconcile *ReconcileConfig

	// TickInterval drives the session clock: elapsed time, live pace and
	// the in-progress split snapshot update once per tick.
	TickInterval time.Duration
}

func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		Gate:         DefaultGateConfig,
		Kalman:       DefaultKalmanConfig,
		Still:        DefaultStillConfig,
		Split:        DefaultSplitConfig,
		Reconcile:    DefaultReconcileConfig,
		TickInterval: time.Second,
	}
}
