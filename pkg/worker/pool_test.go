package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/golockfree/pkg/lockfree"
	"github.com/jzx17/golockfree/pkg/types"
)

func TestNewPool(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{
			name:        "nil config should use default",
			config:      nil,
			expectError: false,
		},
		{
			name: "valid config",
			config: &Config{
				Workers: 4,
				Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
			},
			expectError: false,
		},
		{
			name: "zero workers should error",
			config: &Config{
				Workers: 0,
				Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
			},
			expectError: true,
		},
		{
			name: "negative workers should error",
			config: &Config{
				Workers: -1,
				Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
			},
			expectError: true,
		},
		{
			name: "nil queue should error",
			config: &Config{
				Workers: 4,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewPool(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, pool)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, pool)
			}
		})
	}
}

// Every task accepted before shutdown runs exactly once.
func TestPoolShutdownCompleteness(t *testing.T) {
	const taskCount = 1000

	pool, err := NewPool(&Config{
		Workers: 4,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	var mu sync.Mutex
	executions := make(map[string]int)

	for i := 0; i < taskCount; i++ {
		id := fmt.Sprintf("job-%d", i)
		task := NewBasicTaskWithID(id, func(ctx context.Context) error {
			mu.Lock()
			executions[id]++
			mu.Unlock()
			return nil
		})
		require.NoError(t, pool.Submit(task))
	}

	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, executions, taskCount)
	for id, n := range executions {
		assert.Equal(t, 1, n, "task %s executed %d times", id, n)
	}

	stats := pool.Stats()
	assert.Equal(t, int64(taskCount), stats.TotalProcessed)
	assert.Equal(t, int64(0), stats.TotalFailed)
}

// Submits racing Shutdown either fail or run: an accepted task is never
// stranded in the queue behind a completed drain.
func TestPoolShutdownRacingSubmits(t *testing.T) {
	const submitters = 8

	pool, err := NewPool(&Config{
		Workers: 4,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	var accepted, executed atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for s := 0; s < submitters; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				err := pool.Submit(NewBasicTask(func(ctx context.Context) error {
					executed.Add(1)
					return nil
				}))
				if err == nil {
					accepted.Add(1)
				} else if errors.Is(err, types.ErrPoolClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	pool.Shutdown()
	close(stop)
	wg.Wait()

	assert.Equal(t, accepted.Load(), executed.Load(),
		"every Submit that returned nil must have run its task")
	assert.Equal(t, accepted.Load(), pool.Stats().TotalProcessed)
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool, err := NewPool(&Config{
		Workers: 2,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	pool.Shutdown()

	err = pool.Submit(NewBasicTask(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, types.ErrPoolClosed)
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	pool, err := NewPool(&Config{
		Workers: 2,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)

	err = pool.Submit(NewBasicTask(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, types.ErrPoolNotStarted)
}

func TestPoolSubmitNilTask(t *testing.T) {
	pool, err := NewPool(nil)
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Shutdown()

	assert.Error(t, pool.Submit(nil))
}

func TestPoolDoubleStart(t *testing.T) {
	pool, err := NewPool(&Config{
		Workers: 1,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Shutdown()

	assert.Error(t, pool.Start(context.Background()))
}

// A panicking task is reported with its identifier and the pool keeps
// serving the remaining tasks.
func TestPoolPanicIsolation(t *testing.T) {
	var reported []error
	var mu sync.Mutex

	pool, err := NewPool(&Config{
		Workers: 2,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
		ErrorHandler: func(err error) error {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	var completed atomic.Int64

	require.NoError(t, pool.Submit(NewBasicTaskWithID("boom", func(ctx context.Context) error {
		panic("task exploded")
	})))
	for i := 0; i < 50; i++ {
		require.NoError(t, pool.Submit(NewBasicTask(func(ctx context.Context) error {
			completed.Add(1)
			return nil
		})))
	}

	pool.Shutdown()

	assert.Equal(t, int64(50), completed.Load(), "tasks after the panic must still run")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)

	var te *types.TaskError
	require.True(t, errors.As(reported[0], &te))
	assert.Equal(t, "boom", te.TaskID)
	assert.Contains(t, te.Context, "stack_trace")
	assert.Contains(t, te.Cause.Error(), "task exploded")
}

// Bounded-queue backpressure reaches the Submit caller unchanged.
func TestPoolBoundedBackpressure(t *testing.T) {
	pool, err := NewPool(&Config{
		Workers: 1,
		Queue:   lockfree.NewBoundedQueue[types.Task](2),
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	gate := make(chan struct{})
	require.NoError(t, pool.Submit(NewBasicTask(func(ctx context.Context) error {
		<-gate
		return nil
	})))

	// wait until the lone worker is busy with the gated task
	require.Eventually(t, func() bool {
		return pool.Stats().ActiveWorkers == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, pool.Submit(NewBasicTask(func(ctx context.Context) error { return nil })))
	require.NoError(t, pool.Submit(NewBasicTask(func(ctx context.Context) error { return nil })))

	err = pool.Submit(NewBasicTask(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, types.ErrQueueFull, "a full queue must surface to the caller")

	close(gate)
	pool.Shutdown()

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.TotalProcessed)
}

func TestPoolFailedTasksCounted(t *testing.T) {
	pool, err := NewPool(&Config{
		Workers: 2,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(NewBasicTask(func(ctx context.Context) error {
			return errors.New("task failed")
		})))
	}
	pool.Shutdown()

	stats := pool.Stats()
	assert.Equal(t, int64(0), stats.TotalProcessed)
	assert.Equal(t, int64(10), stats.TotalFailed)
}

func TestPoolStats(t *testing.T) {
	pool, err := NewPool(&Config{
		Workers: 3,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, pool.Size())
	assert.False(t, pool.IsRunning())

	require.NoError(t, pool.Start(context.Background()))
	assert.True(t, pool.IsRunning())

	ws := pool.WorkerStats()
	assert.Len(t, ws, 3)

	pool.Shutdown()
	assert.False(t, pool.IsRunning())
}
