package supervisor

import (
	"context"
)

// Supervisor wraps a fallible operation with retry-with-backoff and a
// circuit breaker. Each retry attempt goes through the breaker, and an
// open breaker is not retried (see DefaultRetryCondition): the caller
// fails fast instead of queueing up behind a known-bad dependency.
type Supervisor struct {
	retrier *Retrier
	breaker *CircuitBreaker
}

// New creates a supervisor from a retrier and a breaker. Either may be
// nil: a nil retrier means a single attempt, a nil breaker means calls
// go straight through.
func New(retrier *Retrier, breaker *CircuitBreaker) *Supervisor {
	if retrier == nil {
		retrier = NewRetrier(1, nil)
	}
	return &Supervisor{
		retrier: retrier,
		breaker: breaker,
	}
}

// Breaker returns the wrapped circuit breaker, or nil
func (s *Supervisor) Breaker() *CircuitBreaker {
	return s.breaker
}

// Execute runs fn under the supervisor's retry and breaker policy
func Execute[T any](ctx context.Context, s *Supervisor, fn func(ctx context.Context) (T, error)) (T, error) {
	return Do(ctx, s.retrier, func(ctx context.Context) (T, error) {
		if s.breaker == nil {
			return fn(ctx)
		}
		return Call(ctx, s.breaker, fn)
	})
}

// ExecuteFunc is the error-only convenience form of Execute
func ExecuteFunc(ctx context.Context, s *Supervisor, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
