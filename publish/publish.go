// Package publish sends finalized workout records to optional external
// destinations. Publishing is best-effort by contract: a publish failure
// must never affect tracking correctness or block session teardown.
package publish

import (
	"context"
	"log/slog"

	"github.com/runstr/trackd/types/workout"
)

// Publisher formats and transmits one finalized workout summary.
type Publisher interface {
	Publish(ctx context.Context, w *workout.Workout) error
}

// All fans a workout out to every publisher, logging failures and carrying
// on. Always returns nil.
func All(ctx context.Context, w *workout.Workout, publishers ...Publisher) error {
	for _, p := range publishers {
		if err := p.Publish(ctx, w); err != nil {
			slog.Error("Workout publish failed", "workout", w.ID, "error", err)
		}
	}
	return nil
}
