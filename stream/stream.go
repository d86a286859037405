// Package stream provides the channel combinators the tracking pipeline is
// built from. Every stage takes a context, consumes an upstream channel, and
// closes its output when the input drains or the context ends.
package stream

import (
	"context"
	"encoding/json"
	"io"
)

// Slice feeds a slice through a channel.
func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// NDJSON decodes newline-delimited JSON from a reader into a channel.
// Undecodable lines are skipped.
func NDJSON[T any](ctx context.Context, in io.Reader) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		dec := json.NewDecoder(in)
		for {
			var element T
			if err := dec.Decode(&element); err != nil {
				if err == io.EOF {
					return
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// Filter passes through only the elements the predicate accepts.
func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if predicate(element) {
				select {
				case <-ctx.Done():
					return
				case out <- element:
				}
			}
		}
	}()
	return out
}

// Transform maps each element through the transformer.
func Transform[I any, O any](ctx context.Context, transformer func(I) O, in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- transformer(element):
			}
		}
	}()
	return out
}

// Tee duplicates a stream onto two output channels. Both outputs must be
// consumed; a stalled reader stalls the other.
func Tee[T any](ctx context.Context, in <-chan T) (<-chan T, <-chan T) {
	out1, out2 := make(chan T), make(chan T)
	go func() {
		defer close(out1)
		defer close(out2)
		for element := range in {
			var o1, o2 = out1, out2
			for i := 0; i < 2; i++ {
				select {
				case <-ctx.Done():
					return
				case o1 <- element:
					o1 = nil
				case o2 <- element:
					o2 = nil
				}
			}
		}
	}()
	return out1, out2
}

// Collect drains a stream into a slice.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	out := make([]T, 0)
	for element := range in {
		select {
		case <-ctx.Done():
			return out
		default:
			out = append(out, element)
		}
	}
	return out
}

// Sink drains a stream through a callback, returning when the input closes
// or the context ends.
func Sink[T any](ctx context.Context, fn func(T), in <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case element, ok := <-in:
			if !ok {
				return
			}
			fn(element)
		}
	}
}
