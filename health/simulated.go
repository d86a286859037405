package health

import (
	"context"
	"sync"
	"time"

	"github.com/runstr/trackd/types/activity"
)

// Simulated is an in-process Source for tests and the replay tool. It
// accrues distance at a fixed rate from Begin, or serves readings pushed
// through Push.
type Simulated struct {
	// DistanceRate is meters per second accrued since Begin. Ignored
	// when readings are pushed explicitly.
	DistanceRate float64
	// Authorized gates Begin; false simulates a denied permission prompt.
	Authorized bool

	mu      sync.Mutex
	started time.Time
	pushed  *Sample
	ended   bool
}

func NewSimulated(rate float64) *Simulated {
	return &Simulated{DistanceRate: rate, Authorized: true}
}

func (s *Simulated) Begin(_ context.Context, start time.Time, _ activity.Activity) error {
	if !s.Authorized {
		return ErrNotAuthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = start
	s.pushed = nil
	s.ended = false
	return nil
}

// Push installs an explicit reading served by subsequent Samples.
func (s *Simulated) Push(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = &sample
}

func (s *Simulated) Sample(_ context.Context) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return Sample{}, ErrUnavailable
	}
	if s.pushed != nil {
		return *s.pushed, nil
	}
	if s.DistanceRate <= 0 {
		return Sample{}, ErrUnavailable
	}
	now := time.Now()
	return Sample{
		Distance: s.DistanceRate * now.Sub(s.started).Seconds(),
		Time:     now,
	}, nil
}

func (s *Simulated) End(ctx context.Context) (Sample, error) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	return s.Sample(ctx)
}
