package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/jzx17/golockfree/pkg/lockfree"
	"github.com/jzx17/golockfree/pkg/types"
)

// Config defines configuration for a Pool
type Config struct {
	// Workers is the number of worker goroutines
	Workers int

	// Queue is the shared task queue. Use a BoundedQueue for explicit
	// backpressure (Submit surfaces ErrQueueFull) or an UnboundedQueue
	// when submissions must never be rejected for capacity.
	Queue types.TaskQueue

	// ErrorHandler receives task failures and caught panics (optional)
	ErrorHandler types.ErrorHandler

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock
}

// DefaultConfig returns default configuration: one worker per CPU and a
// bounded queue of 1024 slots.
func DefaultConfig() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
		Queue:   lockfree.NewBoundedQueue[types.Task](1024),
		Clock:   types.NewRealClock(),
	}
}

// Pool is a fixed set of workers consuming a shared lock-free queue.
//
// Submit never runs a task on the caller's goroutine, and a bounded
// queue's backpressure is surfaced to the caller rather than hidden:
// the caller decides whether to retry, drop or propagate ErrQueueFull.
type Pool struct {
	config  *Config
	queue   types.TaskQueue
	workers []*Worker

	state     atomix.Int32 // 0: created, 1: running, 2: shut down
	accepting atomix.Bool
	draining  atomix.Bool
	inflight  atomix.Int64 // submits past the accepting check, not yet enqueued

	ctx    context.Context
	cancel context.CancelFunc

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

const (
	poolCreated int32 = iota
	poolRunning
	poolShutdown
)

// NewPool creates a new pool
func NewPool(config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", config.Workers)
	}
	if config.Queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}
	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}

	p := &Pool{
		config: config,
		queue:  config.Queue,
	}
	p.workers = make([]*Worker, config.Workers)
	for i := 0; i < config.Workers; i++ {
		p.workers[i] = newWorker(i, config.Queue, &p.draining, config.ErrorHandler, config.Clock)
	}
	return p, nil
}

// Start spawns the worker goroutines
func (p *Pool) Start(ctx context.Context) error {
	if !p.state.CompareAndSwapAcqRel(poolCreated, poolRunning) {
		if p.state.LoadAcquire() == poolRunning {
			return fmt.Errorf("worker pool is already running")
		}
		return types.ErrPoolClosed
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.accepting.StoreRelease(true)

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run(p.ctx)
		}(w)
	}
	return nil
}

// Submit pushes a task onto the shared queue and returns immediately;
// the task never executes on the caller's goroutine.
//
// After shutdown begins, Submit fails with ErrPoolClosed. With a
// bounded queue a full queue fails with ErrQueueFull and the task stays
// with the caller.
func (p *Pool) Submit(task types.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if p.state.LoadAcquire() == poolCreated {
		return types.ErrPoolNotStarted
	}

	// Registering before the accepting check closes the race with
	// Shutdown: a submit that passes the check is visible in inflight,
	// and Shutdown waits it out before closing the queue, so an accepted
	// task always lands ahead of the drain.
	p.inflight.AddAcqRel(1)
	defer p.inflight.AddAcqRel(-1)

	if !p.accepting.LoadAcquire() {
		return types.ErrPoolClosed
	}

	qt := &queuedTask{
		Task:       task,
		enqueuedAt: p.config.Clock.Now(),
	}
	return p.queue.Push(qt)
}

// Shutdown stops accepting work, lets the workers drain every task
// already enqueued, and joins them. Tasks popped before or during the
// drain run to completion; nothing is discarded mid-execution.
// Shutdown is idempotent and blocks until all workers have stopped.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.state.StoreRelease(poolShutdown)
		p.accepting.StoreRelease(false)
		p.draining.StoreRelease(true)

		// let submits already past the accepting check finish enqueueing
		sw := spin.Wait{}
		for p.inflight.LoadAcquire() != 0 {
			sw.Once()
		}

		p.queue.Close()
		p.wg.Wait()
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// IsRunning checks if the pool is running
func (p *Pool) IsRunning() bool {
	return p.state.LoadAcquire() == poolRunning && p.accepting.LoadAcquire()
}

// Size returns the worker count
func (p *Pool) Size() int {
	return len(p.workers)
}

// Stats gets pool statistics aggregated over the workers
type Stats struct {
	Workers        int
	ActiveWorkers  int
	TotalProcessed int64
	TotalFailed    int64
}

// Stats returns a snapshot of pool statistics
func (p *Pool) Stats() Stats {
	s := Stats{Workers: len(p.workers)}
	for _, w := range p.workers {
		ws := w.Stats()
		if ws.State == StateRunning {
			s.ActiveWorkers++
		}
		s.TotalProcessed += ws.TotalProcessed
		s.TotalFailed += ws.TotalFailed
	}
	return s
}

// WorkerStats gets statistics of all workers
func (p *Pool) WorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}
