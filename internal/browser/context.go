package browser

import (
	"context"
	"time"
)

// CombineContext returns a context that inherits values and the deadline of
// primary and is also canceled as soon as secondary ends. primary carries the
// chromedp target; secondary carries the caller's deadline or cancellation.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

// valueOnlyContext keeps the values of its parent but none of its deadline
// or cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context with the values of ctx that is never canceled.
// Cleanup that must reach the browser after ctx ended runs under it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
