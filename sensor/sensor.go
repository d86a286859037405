// Package sensor provides location sources that feed raw fixes into a
// session. On device the source is the platform location service; here the
// sources are replay (recorded NDJSON) and synthetic (generated routes),
// which is what the daemon's ingest path and the replay tool run on.
package sensor

import (
	"context"
	"errors"
	"io"

	"github.com/runstr/trackd/stream"
	"github.com/runstr/trackd/types/fix"
)

// ErrNotAuthorized means the user has not granted location access.
// Sessions cannot start without it.
var ErrNotAuthorized = errors.New("sensor: location access not authorized")

// Source delivers raw, unvalidated fixes. Begin before consuming Fixes; it
// fails when location access is not authorized. The channel closes when the
// source is exhausted or the context ends. Fixes may arrive stale,
// inaccurate, or out of order; the gate downstream sorts that out.
type Source interface {
	Begin(ctx context.Context) error
	Fixes(ctx context.Context) <-chan fix.Fix
}

// Replay reads NDJSON-encoded fixes from a reader, one object per line.
type Replay struct {
	R io.Reader
}

func NewReplay(r io.Reader) *Replay { return &Replay{R: r} }

func (r *Replay) Begin(_ context.Context) error { return nil }

func (r *Replay) Fixes(ctx context.Context) <-chan fix.Fix {
	return stream.NDJSON[fix.Fix](ctx, r.R)
}

// Push is a source fed by hand, used by the daemon's ingest endpoint and in
// tests. Send delivers to the session; Close ends the stream.
type Push struct {
	// Authorized gates Begin; false simulates a denied location prompt.
	Authorized bool

	ch chan fix.Fix
}

func NewPush(buffer int) *Push {
	return &Push{Authorized: true, ch: make(chan fix.Fix, buffer)}
}

func (p *Push) Begin(_ context.Context) error {
	if !p.Authorized {
		return ErrNotAuthorized
	}
	return nil
}

func (p *Push) Send(f fix.Fix) { p.ch <- f }

func (p *Push) Close() { close(p.ch) }

func (p *Push) Fixes(ctx context.Context) <-chan fix.Fix {
	out := make(chan fix.Fix)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-p.ch:
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- f:
				}
			}
		}
	}()
	return out
}
