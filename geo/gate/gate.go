// Package gate implements the accept/reject filter every raw fix passes
// before it may influence workout state. Rejections are routine filtering,
// counted but never surfaced as errors.
package gate

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/paulmach/orb/geo"

	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
)

func init() {
	// Counters are no-ops without this global switch.
	metrics.Enabled = true
}

// Reason says why a fix was rejected, or that it was accepted.
type Reason int

const (
	Accepted Reason = iota
	RejectedStale
	RejectedOutOfOrder
	RejectedAccuracyInvalid
	RejectedAccuracy
	RejectedTeleport
)

// DroppedInactive marks fixes discarded before reaching the gate, when no
// active session is accepting input.
const DroppedInactive Reason = -1

func (r Reason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectedStale:
		return "stale"
	case RejectedOutOfOrder:
		return "out-of-order"
	case RejectedAccuracyInvalid:
		return "accuracy-invalid"
	case RejectedAccuracy:
		return "accuracy"
	case RejectedTeleport:
		return "teleport"
	case DroppedInactive:
		return "inactive"
	}
	return "unknown"
}

// Gate filters raw fixes for one session. Not safe for concurrent use;
// the session loop owns it.
type Gate struct {
	Config   *params.GateConfig
	Activity activity.Activity

	accepted int64
	last     fix.Fix

	acceptedCounter metrics.Counter
	rejectedCounter metrics.Counter
	rejectedReasons map[Reason]metrics.Counter
}

func NewGate(act activity.Activity, config *params.GateConfig) *Gate {
	if config == nil {
		config = params.DefaultGateConfig
	}
	g := &Gate{
		Config:          config,
		Activity:        act,
		acceptedCounter: metrics.NewCounter(),
		rejectedCounter: metrics.NewCounter(),
		rejectedReasons: map[Reason]metrics.Counter{},
	}
	for _, r := range []Reason{
		RejectedStale, RejectedOutOfOrder,
		RejectedAccuracyInvalid, RejectedAccuracy, RejectedTeleport,
	} {
		g.rejectedReasons[r] = metrics.NewCounter()
	}
	return g
}

// AccuracyCeiling is the effective accuracy ceiling for the next sample,
// relaxed while the receiver warms up.
func (g *Gate) AccuracyCeiling() float64 {
	ceiling := g.Activity.AccuracyCeiling()
	if g.accepted < int64(g.Config.WarmupSamples) {
		ceiling *= g.Config.WarmupMultiplier
	}
	return ceiling
}

// Check decides whether f may influence state, without advancing the gate.
func (g *Gate) Check(f fix.Fix, now time.Time) Reason {
	if now.Sub(f.Time) > g.Config.StaleAge {
		return RejectedStale
	}
	if !g.last.IsZero() && !f.Time.After(g.last.Time) {
		return RejectedOutOfOrder
	}
	if !f.HasAccuracy() {
		return RejectedAccuracyInvalid
	}
	if f.Accuracy > g.AccuracyCeiling() {
		return RejectedAccuracy
	}
	if !g.last.IsZero() {
		elapsed := f.Time.Sub(g.last.Time).Seconds()
		if elapsed > 0 {
			implied := geo.Distance(g.last.Point(), f.Point()) / elapsed
			if implied > g.Activity.MaxSpeed() {
				return RejectedTeleport
			}
		}
	}
	return Accepted
}

// Accept runs Check and, on acceptance, advances the gate state.
// A rejected fix has no side effects beyond the reject counters.
func (g *Gate) Accept(f fix.Fix, now time.Time) (Reason, bool) {
	reason := g.Check(f, now)
	if reason != Accepted {
		g.rejectedCounter.Inc(1)
		g.rejectedReasons[reason].Inc(1)
		return reason, false
	}
	g.accepted++
	g.last = f
	g.acceptedCounter.Inc(1)
	return Accepted, true
}

// AcceptedCount returns how many fixes the gate has passed this session.
func (g *Gate) AcceptedCount() int64 { return g.accepted }

// RejectedCount returns how many fixes the gate has dropped this session.
func (g *Gate) RejectedCount() int64 { return g.rejectedCounter.Snapshot().Count() }

// RejectedBy returns the drop count for one reason.
func (g *Gate) RejectedBy(r Reason) int64 {
	c, ok := g.rejectedReasons[r]
	if !ok {
		return 0
	}
	return c.Snapshot().Count()
}

// Reset clears gate state for a new session.
func (g *Gate) Reset() {
	g.accepted = 0
	g.last = fix.Fix{}
	g.acceptedCounter.Clear()
	g.rejectedCounter.Clear()
	for _, c := range g.rejectedReasons {
		c.Clear()
	}
}
