package supervisor

import (
	"context"
	"time"

	"code.hybscloud.com/atomix"

	"github.com/jzx17/golockfree/pkg/types"
)

// BreakerState defines the state of a CircuitBreaker
type BreakerState int32

const (
	// StateClosed: calls flow through normally; failures are counted
	StateClosed BreakerState = iota
	// StateOpen: every call is rejected with ErrCircuitOpen until the
	// cooldown elapses
	StateOpen
	// StateHalfOpen: one probe call is in flight deciding recovery
	StateHalfOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects a struggling dependency from being hammered.
//
// Closed: each failure increments a counter, each success resets it.
// Once the counter reaches the threshold the breaker opens: every call
// is rejected with ErrCircuitOpen without invoking the wrapped
// operation, which is the whole point - while open, zero calls reach
// the dependency. After the cooldown the first caller claims a single
// half-open probe; probe success closes the breaker and resets the
// counter, probe failure reopens it and restarts the cooldown.
//
// All state transitions use atomics; concurrent calls are safe.
type CircuitBreaker struct {
	threshold uint32
	cooldown  time.Duration
	clock     types.Clock

	state    atomix.Int32
	failures atomix.Int32
	openedAt atomix.Int64 // unix nanos of the transition to open
}

// BreakerOption is a configuration option for a CircuitBreaker
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock sets the clock used for the cooldown window
func WithBreakerClock(clock types.Clock) BreakerOption {
	return func(cb *CircuitBreaker) {
		if clock != nil {
			cb.clock = clock
		}
	}
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again after cooldown.
func NewCircuitBreaker(failureThreshold uint32, cooldown time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	cb := &CircuitBreaker{
		threshold: failureThreshold,
		cooldown:  cooldown,
		clock:     types.NewRealClock(),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	return BreakerState(cb.state.LoadAcquire())
}

// Failures returns the current consecutive-failure count
func (cb *CircuitBreaker) Failures() int {
	return int(cb.failures.LoadAcquire())
}

// Reset forces the breaker back to closed with a zero failure count
func (cb *CircuitBreaker) Reset() {
	cb.failures.Store(0)
	cb.state.StoreRelease(int32(StateClosed))
}

// allow decides whether a call may proceed. At most one caller wins the
// transition to half-open after the cooldown; everyone else is rejected
// until the probe resolves.
func (cb *CircuitBreaker) allow() error {
	for {
		switch BreakerState(cb.state.LoadAcquire()) {
		case StateClosed:
			return nil
		case StateOpen:
			opened := cb.openedAt.LoadAcquire()
			if cb.clock.Now().UnixNano()-opened < int64(cb.cooldown) {
				return types.ErrCircuitOpen
			}
			if cb.state.CompareAndSwapAcqRel(int32(StateOpen), int32(StateHalfOpen)) {
				return nil
			}
			// lost the race; re-evaluate the new state
		case StateHalfOpen:
			return types.ErrCircuitOpen
		}
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	if cb.state.CompareAndSwapAcqRel(int32(StateHalfOpen), int32(StateClosed)) {
		cb.failures.Store(0)
		return
	}
	cb.failures.Store(0)
}

func (cb *CircuitBreaker) recordFailure() {
	if BreakerState(cb.state.LoadAcquire()) == StateHalfOpen {
		cb.openedAt.Store(cb.clock.Now().UnixNano())
		cb.state.CompareAndSwapAcqRel(int32(StateHalfOpen), int32(StateOpen))
		return
	}
	if uint32(cb.failures.Add(1)) >= cb.threshold {
		cb.openedAt.Store(cb.clock.Now().UnixNano())
		cb.state.CompareAndSwapAcqRel(int32(StateClosed), int32(StateOpen))
	}
}

// Call executes fn through the breaker. While the breaker is open it
// returns ErrCircuitOpen without invoking fn.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return zero, err
	}
	cb.recordSuccess()
	return v, nil
}

// Do is the error-only convenience form of Call
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
