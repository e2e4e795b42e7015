// Package supervisor provides the retry executor implementation
package supervisor

import (
	"context"
	"errors"

	"github.com/jzx17/golockfree/pkg/types"
)

// RetryCondition is a function that determines whether an error should
// be retried
type RetryCondition func(error) bool

// DefaultRetryCondition retries everything except context cancellation
// and an open circuit breaker. Retrying an open breaker would only
// hammer it: the breaker already knows the dependency is down.
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, types.ErrCircuitOpen)
}

// Retrier executes fallible operations with retry and backoff
type Retrier struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   RetryCondition
	clock       types.Clock
}

// RetrierOption is a configuration option for a Retrier
type RetrierOption func(*Retrier)

// WithRetryCondition sets the retry condition
func WithRetryCondition(condition RetryCondition) RetrierOption {
	return func(r *Retrier) {
		if condition != nil {
			r.condition = condition
		}
	}
}

// WithClock sets the clock used for retry delays
func WithClock(clock types.Clock) RetrierOption {
	return func(r *Retrier) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRetrier creates a retrier that attempts an operation up to
// maxAttempts times, sleeping the backoff delay between attempts.
func NewRetrier(maxAttempts int, backoff BackoffStrategy, opts ...RetrierOption) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff == nil {
		backoff = NewFixedBackoff(0)
	}
	r := &Retrier{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		condition:   DefaultRetryCondition,
		clock:       types.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts returns the configured attempt limit
func (r *Retrier) MaxAttempts() int {
	return r.maxAttempts
}

// Do executes fn until it succeeds, the condition stops the retry, the
// context is cancelled, or the attempt limit is reached. The final
// failure is returned as a *types.RetryError carrying the last
// underlying error.
func Do[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !r.condition(err) {
			return zero, err
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := r.backoff.NextDelay(attempt)
		timer := r.clock.NewTimer(delay)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, &types.RetryError{Attempts: r.maxAttempts, Cause: lastErr}
}

// DoFunc is the error-only convenience form of Do
func DoFunc(ctx context.Context, r *Retrier, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
