package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/golockfree/internal/testutils"
	"github.com/jzx17/golockfree/pkg/types"
)

var errDependency = errors.New("dependency failed")

func failingOp(calls *int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*calls++
		return errDependency
	}
}

func succeedingOp(calls *int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*calls++
		return nil
	}
}

func TestBreakerStateString(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{BreakerState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("BreakerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	mock := testutils.NewMockClock(t)
	cb := NewCircuitBreaker(3, 5*time.Second, WithBreakerClock(testutils.NewClockWrapper(mock)))
	ctx := context.Background()

	var calls int
	for i := 0; i < 3; i++ {
		assert.Equal(t, StateClosed, cb.State())
		err := cb.Do(ctx, failingOp(&calls))
		assert.ErrorIs(t, err, errDependency)
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	mock := testutils.NewMockClock(t)
	cb := NewCircuitBreaker(3, 5*time.Second, WithBreakerClock(testutils.NewClockWrapper(mock)))
	ctx := context.Background()

	var calls int
	for i := 0; i < 3; i++ {
		cb.Do(ctx, failingOp(&calls))
	}
	require.Equal(t, StateOpen, cb.State())

	// within the cooldown window: rejected, operation never invoked
	for i := 0; i < 5; i++ {
		err := cb.Do(ctx, failingOp(&calls))
		assert.ErrorIs(t, err, types.ErrCircuitOpen)
	}
	assert.Equal(t, 3, calls, "an open breaker must not invoke the operation")
}

func TestBreakerHalfOpenProbeSuccess(t *testing.T) {
	mock := testutils.NewMockClock(t)
	cb := NewCircuitBreaker(3, 5*time.Second, WithBreakerClock(testutils.NewClockWrapper(mock)))
	ctx := context.Background()

	var calls int
	for i := 0; i < 3; i++ {
		cb.Do(ctx, failingOp(&calls))
	}
	require.Equal(t, StateOpen, cb.State())

	mock.Advance(5 * time.Second)

	// first call after the cooldown is the half-open probe
	var probeCalls int
	err := cb.Do(ctx, succeedingOp(&probeCalls))
	assert.NoError(t, err)
	assert.Equal(t, 1, probeCalls)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures(), "probe success resets the failure counter")
}

func TestBreakerHalfOpenProbeFailure(t *testing.T) {
	mock := testutils.NewMockClock(t)
	cb := NewCircuitBreaker(3, 5*time.Second, WithBreakerClock(testutils.NewClockWrapper(mock)))
	ctx := context.Background()

	var calls int
	for i := 0; i < 3; i++ {
		cb.Do(ctx, failingOp(&calls))
	}
	require.Equal(t, StateOpen, cb.State())

	mock.Advance(5 * time.Second)

	err := cb.Do(ctx, failingOp(&calls))
	assert.ErrorIs(t, err, errDependency)
	assert.Equal(t, StateOpen, cb.State(), "probe failure reopens the breaker")

	// the cooldown restarted: still rejected
	mock.Advance(2 * time.Second)
	err = cb.Do(ctx, failingOp(&calls))
	assert.ErrorIs(t, err, types.ErrCircuitOpen)

	// a full cooldown later the next probe is allowed
	mock.Advance(3 * time.Second)
	var ok int
	assert.NoError(t, cb.Do(ctx, succeedingOp(&ok)))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)
	ctx := context.Background()

	var calls int
	cb.Do(ctx, failingOp(&calls))
	cb.Do(ctx, failingOp(&calls))
	assert.Equal(t, 2, cb.Failures())

	var ok int
	require.NoError(t, cb.Do(ctx, succeedingOp(&ok)))
	assert.Equal(t, 0, cb.Failures())

	// two more failures still do not reach the threshold
	cb.Do(ctx, failingOp(&calls))
	cb.Do(ctx, failingOp(&calls))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	ctx := context.Background()

	var calls int
	cb.Do(ctx, failingOp(&calls))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())

	var ok int
	assert.NoError(t, cb.Do(ctx, succeedingOp(&ok)))
}

func TestBreakerCallReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)

	v, err := Call(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "result", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "result", v)
}
