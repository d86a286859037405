/*
Package tracker runs the live workout session: it owns the per-fix pipeline
(gate, smoother, stationary detector, aggregator), the 1 Hz tick that
publishes session state, and the reconciliation poll against the
authoritative motion source.

One session at a time. All session mutation happens on the tracker's own
goroutine; fixes, ticks, health samples, and control calls are marshaled
onto it, so the pipeline stages need no locking and fixes apply in arrival
order.
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runstr/trackd/events"
	"github.com/runstr/trackd/geo/gate"
	"github.com/runstr/trackd/health"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/sensor"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
	"github.com/runstr/trackd/types/workout"
)

// Tracker orchestrates one session at a time over a location source and an
// authoritative health source.
type Tracker struct {
	Config *params.TrackerConfig

	source sensor.Source
	health health.Source
	logger *slog.Logger

	// mu guards commands and done, which Start swaps out while control
	// calls may be arriving from other goroutines.
	mu       sync.Mutex
	commands chan command
	done     chan struct{}
}

type commandOp int

const (
	opPause commandOp = iota
	opResume
	opStop
	opSnapshot
)

type command struct {
	op    commandOp
	reply chan commandResult
}

type commandResult struct {
	err      error
	workout  *workout.Workout
	snapshot events.Snapshot
}

func New(config *params.TrackerConfig, src sensor.Source, hs health.Source) *Tracker {
	if config == nil {
		config = params.DefaultTrackerConfig()
	}
	return &Tracker{
		Config: config,
		source: src,
		health: hs,
		logger: slog.With("d", "tracker"),
	}
}

// Start begins a session. It fails, recoverably, if either source refuses
// authorization (distinct errors, so callers can tell "go to settings" from
// "retry without health data"), or if a session is already running. On
// success the session loop runs until Stop or ctx cancellation.
func (t *Tracker) Start(ctx context.Context, userID string, act activity.Activity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		select {
		case <-t.done:
		default:
			return ErrAlreadyActive
		}
	}

	now := time.Now()
	if t.source != nil {
		if err := t.source.Begin(ctx); err != nil {
			if errors.Is(err, sensor.ErrNotAuthorized) {
				return fmt.Errorf("%w: %w", ErrLocationNotAuthorized, err)
			}
			return err
		}
	}
	if t.health != nil {
		if err := t.health.Begin(ctx, now, act); err != nil {
			if errors.Is(err, health.ErrNotAuthorized) {
				return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
			}
			return err
		}
	}

	session := NewSession(userID, act, t.Config)
	if err := session.Begin(now); err != nil {
		return err
	}

	t.commands = make(chan command)
	t.done = make(chan struct{})
	t.logger.Info("Session started", "session", session.ID, "activity", act)

	// The loop gets its own cancelable context so stopping the session
	// releases the fix-stream forwarder even when ctx is the daemon's.
	runCtx, cancel := context.WithCancel(ctx)
	go t.loop(runCtx, cancel, session)
	return nil
}

// Pause suspends the running session. When Pause returns, no further fix can
// mutate the session until Resume.
func (t *Tracker) Pause() error {
	res, err := t.send(opPause)
	if err != nil {
		return err
	}
	return res.err
}

// Resume continues a paused session.
func (t *Tracker) Resume() error {
	res, err := t.send(opResume)
	if err != nil {
		return err
	}
	return res.err
}

// Stop finalizes the session into its immutable record, ends the
// authoritative-source session, and shuts down the loop. It returns only
// after the loop has fully exited, so a new session may start immediately.
func (t *Tracker) Stop() (*workout.Workout, error) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	res, err := t.send(opStop)
	if err != nil {
		return nil, err
	}
	<-done
	return res.workout, res.err
}

// Snapshot returns the current published session state.
func (t *Tracker) Snapshot() (events.Snapshot, error) {
	res, err := t.send(opSnapshot)
	if err != nil {
		return events.Snapshot{}, err
	}
	return res.snapshot, res.err
}

func (t *Tracker) send(op commandOp) (commandResult, error) {
	t.mu.Lock()
	commands, done := t.commands, t.done
	t.mu.Unlock()
	if done == nil {
		return commandResult{}, ErrNotActive
	}
	cmd := command{op: op, reply: make(chan commandResult, 1)}
	select {
	case commands <- cmd:
		return <-cmd.reply, nil
	case <-done:
		return commandResult{}, ErrNotActive
	}
}

// loop is the session's single execution context.
func (t *Tracker) loop(ctx context.Context, cancel context.CancelFunc, session *Session) {
	defer close(t.done)
	defer cancel()

	fixes := t.source.Fixes(ctx)

	tick := time.NewTicker(t.Config.TickInterval)
	defer tick.Stop()
	poll := time.NewTicker(t.Config.Reconcile.Interval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			t.finalize(ctx, session, time.Now())
			return

		case f, ok := <-fixes:
			if !ok {
				// Source gone mid-session. Tracking continues on
				// stale state until stopped.
				fixes = nil
				t.logger.Warn("Fix stream closed", "session", session.ID)
				continue
			}
			t.handleFix(session, f)

		case <-tick.C:
			if session.State() != Active {
				continue
			}
			events.SnapshotFeed.Send(session.Snapshot(time.Now()))

		case <-poll.C:
			if session.State() != Active || t.health == nil {
				continue
			}
			sample, err := t.health.Sample(ctx)
			if err != nil {
				// Skip this tick, keep the last good value.
				t.logger.Debug("Reconciliation query failed", "error", err)
				continue
			}
			session.ApplyHealth(sample)

		case cmd := <-t.commands:
			now := time.Now()
			switch cmd.op {
			case opPause:
				cmd.reply <- commandResult{err: session.Pause(now)}
			case opResume:
				cmd.reply <- commandResult{err: session.Resume(now)}
			case opSnapshot:
				cmd.reply <- commandResult{snapshot: session.Snapshot(now)}
			case opStop:
				w, err := t.finalize(ctx, session, now)
				cmd.reply <- commandResult{workout: w, err: err}
				return
			}
		}
	}
}

func (t *Tracker) handleFix(session *Session, f fix.Fix) {
	reason, splits := session.ProcessFix(f, time.Now())
	if reason != gate.Accepted {
		t.logger.Debug("Fix rejected", "session", session.ID, "reason", reason)
		return
	}
	for _, s := range splits {
		t.logger.Info("Split", "session", session.ID,
			"n", s.Sequence, "pace", workout.FormatPace(s.Pace))
		events.SplitFeed.Send(s)
	}
}

func (t *Tracker) finalize(ctx context.Context, session *Session, now time.Time) (*workout.Workout, error) {
	if session.State() == Idle {
		return nil, ErrNotActive
	}
	if t.health != nil {
		if sample, err := t.health.End(ctx); err == nil {
			session.ApplyHealth(sample)
		}
	}
	w, err := session.Finalize(now)
	if err != nil {
		return nil, err
	}
	t.logger.Info("Session stopped", "session", w.ID,
		"distance", w.Distance, "duration", w.Duration.Round(time.Second),
		"pace", workout.FormatPace(w.AveragePace))
	events.WorkoutFeed.Send(w)
	return w, nil
}
