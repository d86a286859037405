package tracker

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/runstr/trackd/geo/gate"
	"github.com/runstr/trackd/health"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
)

var t0 = time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC)

const baseLat = 44.9778
const baseLon = -93.2650
const metersPerDegreeLat = 111132.0

// northFix places a fix m meters north of the base point.
func northFix(m float64, at time.Time, speed float64) fix.Fix {
	return fix.Fix{
		Latitude:  baseLat + m/metersPerDegreeLat,
		Longitude: baseLon,
		Accuracy:  8,
		Speed:     speed,
		Time:      at,
	}
}

func activeSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("user-1", activity.Running, nil)
	if err := s.Begin(t0); err != nil {
		t.Fatal(err)
	}
	return s
}

// Elapsed time must subtract every pause, not just the most recent one.
// Subtracting only the last pause inflated elapsed time by the length of
// all earlier pauses.
func TestElapsedAccumulatesEveryPause(t *testing.T) {
	s := activeSession(t)

	if err := s.Pause(t0.Add(5 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.Resume(t0.Add(6 * time.Minute)); err != nil { // 1m paused
		t.Fatal(err)
	}
	if err := s.Pause(t0.Add(8 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.Resume(t0.Add(10 * time.Minute)); err != nil { // 2m paused
		t.Fatal(err)
	}

	if got := s.Elapsed(t0.Add(12 * time.Minute)); got != 9*time.Minute {
		t.Errorf("elapsed = %v, want 9m (12m wall minus 3m total paused)", got)
	}
}

func TestElapsedDuringOpenPause(t *testing.T) {
	s := activeSession(t)
	if err := s.Pause(t0.Add(4 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	if got := s.Elapsed(t0.Add(7 * time.Minute)); got != 4*time.Minute {
		t.Errorf("elapsed = %v, want 4m while pause still open", got)
	}
}

func TestLifecycleMisuseErrors(t *testing.T) {
	s := NewSession("user-1", activity.Running, nil)

	if err := s.Pause(t0); !errors.Is(err, ErrNotActive) {
		t.Errorf("Pause on idle = %v, want ErrNotActive", err)
	}
	if err := s.Resume(t0); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume on idle = %v, want ErrNotPaused", err)
	}
	if _, err := s.Finalize(t0); !errors.Is(err, ErrNotActive) {
		t.Errorf("Finalize on idle = %v, want ErrNotActive", err)
	}

	if err := s.Begin(t0); err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(t0); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("double Begin = %v, want ErrAlreadyActive", err)
	}
	if err := s.Resume(t0); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume while active = %v, want ErrNotPaused", err)
	}
	if err := s.Pause(t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := s.Pause(t0.Add(time.Minute)); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("double Pause = %v, want ErrAlreadyPaused", err)
	}
}

func TestFixesIgnoredWhilePaused(t *testing.T) {
	s := activeSession(t)

	at := t0.Add(time.Second)
	s.ProcessFix(northFix(0, at, 3.4), at)
	at = t0.Add(2 * time.Second)
	s.ProcessFix(northFix(3.4, at, 3.4), at)
	before := s.Distance()

	if err := s.Pause(t0.Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	at = t0.Add(4 * time.Second)
	reason, _ := s.ProcessFix(northFix(100, at, 3.4), at)
	if reason != gate.DroppedInactive {
		t.Errorf("paused fix verdict = %v, want inactive drop", reason)
	}
	if s.Distance() != before {
		t.Errorf("distance mutated while paused: %v -> %v", before, s.Distance())
	}
}

// When the authoritative source reports a distance it overwrites the
// GPS-derived figure; a later GPS accrual writes on top of it. Last writer
// wins in both directions, no merging.
func TestHealthDistanceOverride(t *testing.T) {
	s := activeSession(t)

	at := t0.Add(time.Second)
	s.ProcessFix(northFix(0, at, 3.4), at)
	at = t0.Add(2 * time.Second)
	s.ProcessFix(northFix(3.4, at, 3.4), at)
	// The smoother blends the second fix toward the first, so the early
	// accrual is well short of the raw 3.4m displacement.
	gps := s.Distance()
	if gps <= 0 || gps > 3.4 {
		t.Fatalf("gps distance = %v, want in (0, 3.4]", gps)
	}

	s.ApplyHealth(health.Sample{Distance: 2500, Steps: 3200, Time: at})
	if s.Distance() != 2500 {
		t.Errorf("distance = %v after authoritative sample, want 2500", s.Distance())
	}

	snap := s.Snapshot(t0.Add(10 * time.Minute))
	wantPace := 10.0 / 2.5
	if snap.Pace < wantPace-0.01 || snap.Pace > wantPace+0.01 {
		t.Errorf("pace = %v, want %v from overridden distance", snap.Pace, wantPace)
	}

	// Subsequent GPS accrual builds on the overridden base.
	at = t0.Add(3 * time.Second)
	s.ProcessFix(northFix(6.8, at, 3.4), at)
	if s.Distance() <= 2500 {
		t.Errorf("distance = %v, want gps delta applied over 2500", s.Distance())
	}
}

func TestReconciledStepsAreNotReestimated(t *testing.T) {
	s := activeSession(t)
	s.ApplyHealth(health.Sample{Distance: 1500, Steps: 2000, Time: t0.Add(time.Minute)})
	w, err := s.Finalize(t0.Add(10 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if w.Steps != 2000 || w.StepsEstimated {
		t.Errorf("steps = %d (estimated=%v), want counted 2000", w.Steps, w.StepsEstimated)
	}
	if w.DistanceSource != DistanceSourceHealth {
		t.Errorf("distance source = %q, want health", w.DistanceSource)
	}
}

func TestFinalizeEstimatesStepsFromStride(t *testing.T) {
	s := activeSession(t)
	s.ApplyHealth(health.Sample{Distance: 750, Time: t0.Add(time.Minute)})
	w, err := s.Finalize(t0.Add(5 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if w.Steps != 1000 || !w.StepsEstimated {
		t.Errorf("steps = %d (estimated=%v), want 1000 estimated via 0.75m stride", w.Steps, w.StepsEstimated)
	}
}

func TestFinalizeClosesOpenPause(t *testing.T) {
	s := activeSession(t)
	if err := s.Pause(t0.Add(3 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	w, err := s.Finalize(t0.Add(10 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if w.Duration != 3*time.Minute {
		t.Errorf("duration = %v, want 3m (7m of open pause excluded)", w.Duration)
	}
	if s.State() != Idle {
		t.Error("session not idle after finalize")
	}
}

// A steady run past the kilometer mark: one completed split, pace around
// 5:00/km, distance monotonic, nothing rejected.
func TestEndToEndRunningKilometer(t *testing.T) {
	s := activeSession(t)

	const n = 20
	const pathMeters = 1020.0
	const totalSeconds = 300.0
	step := pathMeters / (n - 1)
	dt := totalSeconds / (n - 1)

	var lastDistance float64
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(float64(i) * dt * float64(time.Second)))
		reason, _ := s.ProcessFix(northFix(step*float64(i), at, 3.4), at)
		if reason != gate.Accepted {
			t.Fatalf("fix %d rejected: %v", i, reason)
		}
		if s.Distance() < lastDistance {
			t.Fatalf("distance decreased at fix %d: %v -> %v", i, lastDistance, s.Distance())
		}
		lastDistance = s.Distance()
	}

	if s.Distance() < 990 || s.Distance() > 1040 {
		t.Errorf("distance = %.1f, want ~1020", s.Distance())
	}
	if g := s.Gate(); g.RejectedCount() != 0 {
		t.Errorf("rejected %d fixes on a clean feed", g.RejectedCount())
	}

	w, err := s.Finalize(t0.Add(time.Duration(totalSeconds) * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	var complete int
	for _, sp := range w.Splits {
		if sp.Complete {
			complete++
			if sp.Pace < 4.8 || sp.Pace > 5.2 {
				t.Errorf("split pace = %v min/km, want ~5:00", sp.Pace)
			}
		}
	}
	if complete != 1 {
		t.Errorf("completed splits = %d, want exactly 1", complete)
	}
	if w.AveragePace < 4.8 || w.AveragePace > 5.2 {
		t.Errorf("average pace = %v, want ~5:00/km", w.AveragePace)
	}
	if len(w.Route) != n {
		t.Errorf("route has %d points, want %d", len(w.Route), n)
	}
	if w.CellCount == 0 {
		t.Error("cell coverage not recorded")
	}
}

// Standing at a light: once the detector latches Stationary, jitter must not
// move the cumulative total at all.
func TestStationaryFreezesDistance(t *testing.T) {
	s := activeSession(t)
	rng := rand.New(rand.NewSource(3))

	// Run north for 30s to build up moving state.
	at := t0
	for i := 0; i < 30; i++ {
		at = t0.Add(time.Duration(i+1) * time.Second)
		s.ProcessFix(northFix(3.4*float64(i), at, 3.4), at)
	}
	stopPoint := 3.4 * 29

	// Then stop. The speed window drains over ~10 samples, dwell takes
	// another 10s, so the state latches by sample 20.
	var frozen float64
	for i := 0; i < 45; i++ {
		at = at.Add(time.Second)
		jitter := rng.NormFloat64() * 1.0
		s.ProcessFix(northFix(stopPoint+jitter, at, 0.2), at)
		if i == 24 {
			if !s.detector.IsStationary() {
				t.Fatal("detector not stationary after 25s stopped")
			}
			frozen = s.Distance()
		}
	}
	if s.Distance() != frozen {
		t.Errorf("distance crept while stationary: %v -> %v", frozen, s.Distance())
	}
	if !s.Snapshot(at).Stationary {
		t.Error("snapshot does not report stationary")
	}
	// The wander is still on the map.
	if len(s.Route()) != 75 {
		t.Errorf("route has %d points, want 75", len(s.Route()))
	}
}
