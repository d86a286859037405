package tracker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/runstr/trackd/common"
	"github.com/runstr/trackd/events"
	"github.com/runstr/trackd/health"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/sensor"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/workout"
)

func testConfig() *params.TrackerConfig {
	cfg := params.DefaultTrackerConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.Reconcile = &params.ReconcileConfig{
		Interval:     10 * time.Millisecond,
		StrideLength: params.DefaultReconcileConfig.StrideLength,
	}
	return cfg
}

func TestTrackerUnauthorizedStart(t *testing.T) {
	hs := health.NewSimulated(0)
	hs.Authorized = false
	tr := New(testConfig(), sensor.NewPush(1), hs)

	err := tr.Start(context.Background(), "user-1", activity.Running)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Start = %v, want ErrNotAuthorized", err)
	}
	// Recoverable: no session was left behind.
	if _, err := tr.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Stop after failed start = %v, want ErrNotActive", err)
	}
}

func TestTrackerUnauthorizedLocation(t *testing.T) {
	src := sensor.NewPush(1)
	src.Authorized = false
	tr := New(testConfig(), src, health.NewSimulated(0))

	err := tr.Start(context.Background(), "user-1", activity.Running)
	if !errors.Is(err, ErrLocationNotAuthorized) {
		t.Fatalf("Start = %v, want ErrLocationNotAuthorized", err)
	}
	if errors.Is(err, ErrNotAuthorized) {
		t.Error("location denial must be distinct from health denial")
	}
	if _, err := tr.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Stop after failed start = %v, want ErrNotActive", err)
	}
}

func TestTrackerControlBeforeStart(t *testing.T) {
	tr := New(testConfig(), sensor.NewPush(1), health.NewSimulated(0))
	if err := tr.Pause(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Pause = %v, want ErrNotActive", err)
	}
	if _, err := tr.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Stop = %v, want ErrNotActive", err)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := sensor.NewPush(64)
	hs := health.NewSimulated(0)
	tr := New(testConfig(), src, hs)

	finalized := make(chan *workout.Workout, 1)
	sub := events.WorkoutFeed.Subscribe(finalized)
	defer sub.Unsubscribe()

	if err := tr.Start(ctx, "user-1", activity.Running); err != nil {
		t.Fatal(err)
	}
	if err := tr.Start(ctx, "user-1", activity.Running); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start = %v, want ErrAlreadyActive", err)
	}

	// Feed a short northward run. Fix timestamps are spaced a full second
	// apart so the implied speed stays plausible; the gate only cares that
	// they are fresh and ordered.
	now := time.Now()
	for i := 0; i < 10; i++ {
		src.Send(northFix(3.4*float64(i), now.Add(time.Duration(i)*time.Second), 3.4))
	}

	waitFor(t, time.Second, func() bool {
		snap, err := tr.Snapshot()
		return err == nil && snap.Distance > 0
	})

	// An authoritative reading must land within a poll interval.
	hs.Push(health.Sample{Distance: 1234, Steps: 1600, Time: time.Now()})
	waitFor(t, time.Second, func() bool {
		snap, err := tr.Snapshot()
		return err == nil && snap.Distance >= 1234
	})

	if err := tr.Pause(); err != nil {
		t.Fatal(err)
	}
	snap, err := tr.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != "paused" {
		t.Errorf("state = %q after pause, want paused", snap.State)
	}
	if err := tr.Resume(); err != nil {
		t.Fatal(err)
	}

	w, err := tr.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if w.Distance < 1234 {
		t.Errorf("workout distance = %v, want >= authoritative 1234", w.Distance)
	}
	if w.DistanceSource != DistanceSourceHealth {
		t.Errorf("distance source = %q, want health", w.DistanceSource)
	}
	if w.Steps != 1600 || w.StepsEstimated {
		t.Errorf("steps = %d (estimated=%v), want counted 1600", w.Steps, w.StepsEstimated)
	}
	if !w.IsValid() {
		t.Errorf("finalized workout invalid: %+v", w)
	}

	select {
	case got := <-finalized:
		if got.ID != w.ID {
			t.Errorf("feed delivered workout %q, want %q", got.ID, w.ID)
		}
	case <-time.After(time.Second):
		t.Error("finalized workout never published")
	}

	if _, err := tr.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("double Stop = %v, want ErrNotActive", err)
	}
}

func TestTrackerRestartAfterStop(t *testing.T) {
	ctx := context.Background()
	tr := New(testConfig(), sensor.NewPush(1), health.NewSimulated(0))

	if err := tr.Start(ctx, "user-1", activity.Walking); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Start(ctx, "user-1", activity.Cycling); err != nil {
		t.Fatalf("restart after stop = %v", err)
	}
	if _, err := tr.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestTrackerStopReleasesFixForwarder(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()

	ctx := context.Background()
	src := sensor.NewPush(64)
	tr := New(testConfig(), src, health.NewSimulated(0))

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		if err := tr.Start(ctx, "user-1", activity.Running); err != nil {
			t.Fatal(err)
		}
		if _, err := tr.Stop(); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, time.Second, func() bool {
		return runtime.NumGoroutine() <= before+2
	})

	// The shared source must feed a fresh session alone; a stale forwarder
	// left over from an earlier session would steal its fixes.
	if err := tr.Start(ctx, "user-1", activity.Running); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	for i := 0; i < 5; i++ {
		src.Send(northFix(3.4*float64(i), now.Add(time.Duration(i)*time.Second), 3.4))
	}
	waitFor(t, time.Second, func() bool {
		snap, err := tr.Snapshot()
		return err == nil && snap.Distance > 0
	})
	if _, err := tr.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestTrackerConcurrentControl(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()

	ctx := context.Background()
	tr := New(testConfig(), sensor.NewPush(1), health.NewSimulated(0))

	// Hammer the control surface from several goroutines the way concurrent
	// HTTP handlers would. Errors are expected; corruption is not.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				switch j % 3 {
				case 0:
					tr.Start(ctx, "user-1", activity.Running)
				case 1:
					tr.Snapshot()
				case 2:
					tr.Stop()
				}
			}
		}()
	}
	wg.Wait()

	tr.Stop()
	if _, err := tr.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Stop on settled tracker = %v, want ErrNotActive", err)
	}
}

func waitFor(t *testing.T, limit time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
