package tracker

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geo"

	"github.com/runstr/trackd/events"
	"github.com/runstr/trackd/geo/cells"
	"github.com/runstr/trackd/geo/gate"
	"github.com/runstr/trackd/geo/kalman"
	"github.com/runstr/trackd/geo/split"
	"github.com/runstr/trackd/geo/still"
	"github.com/runstr/trackd/health"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
	"github.com/runstr/trackd/types/workout"
)

var (
	ErrNotActive     = errors.New("tracker: no active session")
	ErrAlreadyActive = errors.New("tracker: session already active")
	ErrAlreadyPaused = errors.New("tracker: session already paused")
	ErrNotPaused     = errors.New("tracker: session not paused")

	// ErrNotAuthorized means the health store denied access; the session
	// could proceed GPS-only if the caller chooses to retry without it.
	ErrNotAuthorized = errors.New("tracker: health access not authorized")

	// ErrLocationNotAuthorized means location access is denied. Nothing can
	// be tracked; the caller should send the user to settings.
	ErrLocationNotAuthorized = errors.New("tracker: location access not authorized")
)

// State is the session lifecycle state machine.
type State int

const (
	Idle State = iota
	Active
	Paused
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	}
	return "idle"
}

const (
	DistanceSourceGPS    = "gps"
	DistanceSourceHealth = "health"
)

// Session is the aggregate for one workout. It owns the pipeline stages and
// every published figure. All methods must be called from a single goroutine;
// the Tracker loop marshals fixes, ticks, and control calls onto itself.
type Session struct {
	ID       string
	UserID   string
	Activity activity.Activity
	Config   *params.TrackerConfig

	state       State
	start       time.Time
	pausedTotal time.Duration
	pauseStart  time.Time

	gate     *gate.Gate
	filter   *kalman.Filter
	detector *still.Detector
	splits   *split.Tracker
	coverage *cells.Coverage

	// distance is the distance of record, meters. Written by GPS accrual
	// and overwritten by authoritative samples, last writer wins.
	distance       float64
	distanceSource string

	lastCounted fix.Fix // last smoothed fix that contributed distance
	route       []fix.Fix

	healthLast   health.Sample
	haveHealth   bool
	calories     float64
	hrSum        float64
	hrCount      int
	steps        int
	stepsCounted bool
}

// NewSession builds an Idle session; Begin arms it.
func NewSession(userID string, act activity.Activity, config *params.TrackerConfig) *Session {
	if config == nil {
		config = params.DefaultTrackerConfig()
	}
	coverage, _ := cells.NewCoverage(cells.DefaultLevel)
	return &Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		Activity:       act,
		Config:         config,
		gate:           gate.NewGate(act, config.Gate),
		filter:         kalman.NewFilter(act, config.Kalman),
		detector:       still.NewDetector(config.Still),
		splits:         split.NewTracker(config.Split),
		coverage:       coverage,
		distanceSource: DistanceSourceGPS,
	}
}

// Begin transitions Idle -> Active and stamps the session start.
func (s *Session) Begin(now time.Time) error {
	if s.state != Idle {
		return ErrAlreadyActive
	}
	s.state = Active
	s.start = now
	return nil
}

// Pause transitions Active -> Paused and records the pause start. Fixes
// arriving while paused are discarded, not queued.
func (s *Session) Pause(now time.Time) error {
	switch s.state {
	case Paused:
		return ErrAlreadyPaused
	case Idle:
		return ErrNotActive
	}
	s.state = Paused
	s.pauseStart = now
	return nil
}

// Resume transitions Paused -> Active, folding the finished pause into the
// accumulated total. Every pause counts, not just the last one.
func (s *Session) Resume(now time.Time) error {
	if s.state != Paused {
		return ErrNotPaused
	}
	s.pausedTotal += now.Sub(s.pauseStart)
	s.pauseStart = time.Time{}
	s.state = Active
	return nil
}

// Elapsed is the active duration at now: wall clock since start minus every
// accumulated pause, including one still in progress.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.start.IsZero() {
		return 0
	}
	elapsed := now.Sub(s.start) - s.pausedTotal
	if s.state == Paused {
		elapsed -= now.Sub(s.pauseStart)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Distance returns the current distance of record, meters.
func (s *Session) Distance() float64 { return s.distance }

// Route returns the smoothed fixes recorded so far.
func (s *Session) Route() []fix.Fix { return s.route }

// Gate exposes the gate for diagnostics.
func (s *Session) Gate() *gate.Gate { return s.gate }

// ProcessFix runs one raw fix through the pipeline: gate, smoother,
// stationary detector, aggregation. Returns the gate's verdict and any
// splits this fix finalized. Fixes are ignored unless the session is Active.
func (s *Session) ProcessFix(f fix.Fix, now time.Time) (gate.Reason, []workout.Split) {
	if s.state != Active {
		return gate.DroppedInactive, nil
	}
	reason, ok := s.gate.Accept(f, now)
	if !ok {
		return reason, nil
	}

	smoothed := s.filter.Smooth(f)
	speed, _ := fix.ResolveSpeed(smoothed, s.lastCounted)
	state := s.detector.Update(smoothed, speed)

	// Route points record in every state; stationary wander still draws
	// on the map, it just must not count.
	s.route = append(s.route, smoothed)
	s.coverage.Visit(smoothed.Point())

	if state == still.Stationary {
		return reason, nil
	}

	if s.lastCounted.IsZero() {
		s.lastCounted = smoothed
		return reason, nil
	}
	delta := geo.Distance(s.lastCounted.Point(), smoothed.Point())
	if delta > 0 {
		s.distance += delta
		s.distanceSource = DistanceSourceGPS
	}
	s.lastCounted = smoothed
	return reason, s.splits.Update(s.distance, s.Elapsed(f.Time))
}

// ApplyHealth folds one authoritative sample into the session. A reported
// distance overwrites the GPS-derived figure outright.
func (s *Session) ApplyHealth(sample health.Sample) {
	if s.state == Idle {
		return
	}
	s.healthLast = sample
	s.haveHealth = true
	if sample.Distance > 0 {
		s.distance = sample.Distance
		s.distanceSource = DistanceSourceHealth
	}
	if sample.HasSteps() {
		s.steps = sample.Steps
		s.stepsCounted = true
	}
	if sample.Calories > 0 {
		s.calories = sample.Calories
	}
	if sample.HeartRate > 0 {
		s.hrSum += sample.HeartRate
		s.hrCount++
	}
}

// Snapshot captures the published per-tick view.
func (s *Session) Snapshot(now time.Time) events.Snapshot {
	elapsed := s.Elapsed(now)
	return events.Snapshot{
		SessionID:  s.ID,
		State:      s.state.String(),
		Distance:   s.distance,
		Elapsed:    elapsed.Seconds(),
		Pace:       workout.Pace(s.distance, elapsed),
		Stationary: s.detector.IsStationary(),
		Split:      s.splits.Current(s.distance, elapsed),
	}
}

// Finalize freezes the session into an immutable Workout record and tears
// down the pipeline state. The session returns to Idle and must not be
// reused.
func (s *Session) Finalize(now time.Time) (*workout.Workout, error) {
	if s.state == Idle {
		return nil, ErrNotActive
	}
	if s.state == Paused {
		// A pause still open at stop counts too.
		s.pausedTotal += now.Sub(s.pauseStart)
		s.pauseStart = time.Time{}
		s.state = Active
	}
	elapsed := s.Elapsed(now)

	steps := s.steps
	estimated := false
	if !s.stepsCounted && s.Activity != activity.Cycling {
		steps = health.EstimateSteps(s.distance, s.Config.Reconcile.StrideLength)
		estimated = steps > 0
	}
	var avgHR float64
	if s.hrCount > 0 {
		avgHR = s.hrSum / float64(s.hrCount)
	}
	gain, loss := workout.ElevationProfile(s.route)

	splits := s.splits.Completed()
	if cur := s.splits.Current(s.distance, elapsed); cur.Distance > 0 {
		splits = append(splits, cur)
	}

	w := &workout.Workout{
		ID:             s.ID,
		UserID:         s.UserID,
		Activity:       s.Activity,
		Start:          s.start,
		End:            now,
		Duration:       elapsed,
		Distance:       s.distance,
		DistanceSource: s.distanceSource,
		AveragePace:    workout.Pace(s.distance, elapsed),
		Calories:       s.calories,
		AvgHeartRate:   avgHR,
		Steps:          steps,
		StepsEstimated: estimated,
		ElevationGain:  gain,
		ElevationLoss:  loss,
		CellCount:      s.coverage.Count(),
		Route:          s.route,
		Splits:         splits,
	}

	s.state = Idle
	s.filter.Reset()
	s.detector.Reset()
	s.gate.Reset()
	s.splits.Reset()
	s.coverage.Reset()
	return w, nil
}
