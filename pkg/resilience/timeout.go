package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn under a deadline of timeout and returns its result, or an
// error wrapping context.DeadlineExceeded if it does not finish in time. fn
// keeps running in the background after a timeout and should honour ctx.
// A non-positive timeout runs fn directly.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		if context.Cause(ctx) == context.DeadlineExceeded {
			return zero, fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, timeout)
		}
		return zero, fmt.Errorf("%s: %w", name, context.Cause(ctx))
	}
}
