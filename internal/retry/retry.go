// Package retry provides the bounded polling combinator used wherever the
// program waits on a browser page that offers no completion event.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted is returned by Poll when every attempt came back empty.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy bounds a polling loop.
type Policy struct {
	MaxAttempts int
	// Interval is the minimum spacing between the start of two attempts.
	Interval time.Duration
}

// Attempts converts a wall-clock budget into a number of polls at the given
// interval. The result is never less than one.
func Attempts(timeout, interval time.Duration) int {
	if interval <= 0 || timeout <= interval {
		return 1
	}
	n := int(timeout / interval)
	if timeout%interval != 0 {
		n++
	}
	return n
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Poll calls probe until it reports found, the attempt budget is spent, or
// ctx is done. It returns ErrExhausted only when every attempt ran. A
// deadline that falls before the next attempt yields context.DeadlineExceeded.
// The probe absorbs its own transient errors; Poll only understands "found"
// and "not yet".
func Poll[T any](ctx context.Context, p Policy, probe func(ctx context.Context) (T, bool)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	// Burst of one: the first attempt runs immediately, the rest are paced.
	limit := rate.Inf
	if p.Interval > 0 {
		limit = rate.Every(p.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	attempts := p.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			// The deadline falls before the next slot, so ctx ends first.
			return zero, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		if v, ok := probe(ctx); ok {
			return v, nil
		}
	}
	return zero, fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
