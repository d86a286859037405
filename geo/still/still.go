/*
Package still detects when the user has stopped moving, so that residual GPS
noise at a standstill cannot accrue fictitious distance. A stopped receiver
still wanders a few meters per sample; left alone that wander sums to real
kilometers over a long enough wait at a light.

The detector pairs a speed test with a displacement radius: speed alone
false-triggers on genuinely slow movement (steep incline walking), and the
radius alone false-triggers on noisy fixes.
*/
package still

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/runstr/trackd/common"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/fix"
)

// State is the detector's two-state machine.
type State int

const (
	Moving State = iota
	Stationary
)

func (s State) String() string {
	if s == Stationary {
		return "stationary"
	}
	return "moving"
}

// Detector decides Moving vs Stationary per smoothed fix.
// Not safe for concurrent use; the session loop owns it.
type Detector struct {
	Config *params.StillConfig

	state      State
	speeds     *common.RingBuffer[float64]
	belowSince time.Time // when the window mean first dropped below threshold
	anchor     orb.Point // position where the stationary state was entered
}

func NewDetector(config *params.StillConfig) *Detector {
	if config == nil {
		config = params.DefaultStillConfig
	}
	return &Detector{
		Config: config,
		state:  Moving,
		speeds: common.NewRingBuffer[float64](config.WindowSize),
	}
}

// State returns the current detector state.
func (d *Detector) State() State { return d.state }

// IsStationary reports whether distance accrual is currently suppressed.
func (d *Detector) IsStationary() bool { return d.state == Stationary }

// Anchor returns the stationary anchor point. Zero value while Moving.
func (d *Detector) Anchor() orb.Point { return d.anchor }

// Update feeds one smoothed fix and its resolved speed through the state
// machine and returns the resulting state. Callers must suppress distance
// accrual for any fix that lands in Stationary.
func (d *Detector) Update(f fix.Fix, speed float64) State {
	d.speeds.Add(speed)

	if d.state == Stationary {
		if speed > d.Config.ResumeSpeed ||
			geo.Distance(d.anchor, f.Point()) > d.Config.ResumeDistance {
			d.state = Moving
			d.anchor = orb.Point{}
			d.belowSince = time.Time{}
		}
		return d.state
	}

	mean, err := stats.Mean(stats.Float64Data(d.speeds.Get()))
	if err != nil || mean >= d.Config.SpeedThreshold {
		d.belowSince = time.Time{}
		return d.state
	}

	if d.belowSince.IsZero() {
		d.belowSince = f.Time
		return d.state
	}
	if f.Time.Sub(d.belowSince) >= d.Config.DwellTime {
		d.state = Stationary
		d.anchor = f.Point()
	}
	return d.state
}

// Reset returns the detector to Moving with an empty window.
func (d *Detector) Reset() {
	d.state = Moving
	d.anchor = orb.Point{}
	d.belowSince = time.Time{}
	d.speeds.Reset()
}
