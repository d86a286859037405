// Package split derives fixed-distance segments (kilometers or miles) from
// the running cumulative distance of a session.
package split

import (
	"time"

	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/workout"
)

// Tracker watches cumulative distance and active elapsed time and finalizes
// a split each time the distance crosses the next multiple of the configured
// split length. Crossing times are interpolated between the bracketing
// samples, so a fix landing just past a boundary does not inflate the split.
// Not safe for concurrent use; the session loop owns it.
type Tracker struct {
	Config *params.SplitConfig

	completed    []workout.Split
	lastBoundary time.Duration // elapsed time at the last finalized boundary
	prevDistance float64
	prevElapsed  time.Duration
}

func NewTracker(config *params.SplitConfig) *Tracker {
	if config == nil {
		config = params.DefaultSplitConfig
	}
	return &Tracker{Config: config}
}

// Update feeds the latest cumulative distance (meters) and active elapsed
// time, returning any splits finalized by this sample. Distance must be
// monotonic; elapsed excludes paused time.
func (t *Tracker) Update(distance float64, elapsed time.Duration) []workout.Split {
	var done []workout.Split
	for {
		boundary := float64(len(t.completed)+1) * t.Config.Distance
		if distance < boundary {
			break
		}
		at := t.interpolate(boundary, distance, elapsed)
		segDur := at - t.lastBoundary
		done = append(done, workout.Split{
			Sequence: len(t.completed) + 1,
			Distance: t.Config.Distance,
			Duration: segDur,
			Pace:     workout.Pace(t.Config.Distance, segDur),
			Complete: true,
		})
		t.completed = append(t.completed, done[len(done)-1])
		t.lastBoundary = at
	}
	t.prevDistance = distance
	t.prevElapsed = elapsed
	return done
}

// interpolate estimates the elapsed time at which the boundary distance was
// crossed, assuming constant speed between the previous and current samples.
func (t *Tracker) interpolate(boundary, distance float64, elapsed time.Duration) time.Duration {
	span := distance - t.prevDistance
	if span <= 0 {
		return elapsed
	}
	frac := (boundary - t.prevDistance) / span
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return t.prevElapsed + time.Duration(frac*float64(elapsed-t.prevElapsed))
}

// Current returns the in-progress split: the distance and time accrued since
// the last finalized boundary, with the pace over that partial segment.
func (t *Tracker) Current(distance float64, elapsed time.Duration) workout.Split {
	partial := distance - float64(len(t.completed))*t.Config.Distance
	if partial < 0 {
		partial = 0
	}
	segDur := elapsed - t.lastBoundary
	return workout.Split{
		Sequence: len(t.completed) + 1,
		Distance: partial,
		Duration: segDur,
		Pace:     workout.Pace(partial, segDur),
	}
}

// Completed returns the finalized splits in order.
func (t *Tracker) Completed() []workout.Split {
	out := make([]workout.Split, len(t.completed))
	copy(out, t.completed)
	return out
}

// Reset clears all split state.
func (t *Tracker) Reset() {
	t.completed = nil
	t.lastBoundary = 0
	t.prevDistance = 0
	t.prevElapsed = 0
}
