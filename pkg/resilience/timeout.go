package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a deadline of d. When d elapses first the call
// returns an error wrapping context.DeadlineExceeded without waiting for fn;
// fn must honour its context to release resources. Cancellation of ctx
// itself is reported as such. A non-positive d runs fn directly.
func WithTimeout(ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, d, fmt.Errorf("%s exceeded %v: %w", op, d, context.DeadlineExceeded))
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fn(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
