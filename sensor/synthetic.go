package sensor

import (
	"context"
	"math/rand"
	"time"

	"github.com/runstr/trackd/types/fix"
)

// Synthetic generates a 1 Hz straight-line route north from a start point
// at a constant speed, with Gaussian position jitter. Deterministic for a
// given Seed.
type Synthetic struct {
	StartLat, StartLon float64
	Speed              float64 // m/s
	Accuracy           float64 // reported accuracy, meters
	JitterSigma        float64 // position noise, meters
	Count              int
	Start              time.Time
	Seed               int64
}

const syntheticMetersPerDegree = 111132.0

func (s *Synthetic) Begin(_ context.Context) error { return nil }

func (s *Synthetic) Fixes(ctx context.Context) <-chan fix.Fix {
	out := make(chan fix.Fix)
	go func() {
		defer close(out)
		rng := rand.New(rand.NewSource(s.Seed))
		for i := 0; i < s.Count; i++ {
			lat := s.StartLat + s.Speed*float64(i)/syntheticMetersPerDegree
			lat += rng.NormFloat64() * s.JitterSigma / syntheticMetersPerDegree
			f := fix.Fix{
				Latitude:  lat,
				Longitude: s.StartLon,
				Accuracy:  s.Accuracy,
				Speed:     s.Speed,
				Time:      s.Start.Add(time.Duration(i) * time.Second),
			}
			select {
			case <-ctx.Done():
				return
			case out <- f:
			}
		}
	}()
	return out
}
