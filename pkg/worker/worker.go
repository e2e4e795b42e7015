package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"github.com/jzx17/golockfree/pkg/types"
)

// State defines the state of a Worker
type State int32

const (
	// StateIdle represents a worker polling an empty queue
	StateIdle State = iota
	// StateRunning represents a worker executing a task
	StateRunning
	// StateDraining represents a worker finishing queued tasks after shutdown began
	StateDraining
	// StateStopped represents a stopped worker
	StateStopped
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker pops tasks from the shared queue and executes them inside a
// panic-catching boundary. A panicking task is reported through the
// error handler and the worker keeps serving; it never takes the
// goroutine or the pool down with it.
type Worker struct {
	id       int
	state    atomix.Int32
	queue    types.TaskQueue
	draining *atomix.Bool

	errorHandler types.ErrorHandler
	clock        types.Clock

	// statistics
	processed atomix.Int64
	failed    atomix.Int64
	maxWait   atomix.Int64 // longest observed queue wait, nanoseconds
}

func newWorker(id int, queue types.TaskQueue, draining *atomix.Bool, handler types.ErrorHandler, clock types.Clock) *Worker {
	w := &Worker{
		id:           id,
		queue:        queue,
		draining:     draining,
		errorHandler: handler,
		clock:        clock,
	}
	w.state.StoreRelaxed(int32(StateIdle))
	return w
}

// ID returns the worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current worker state
func (w *Worker) State() State {
	return State(w.state.LoadAcquire())
}

// run is the worker loop. An empty poll backs off with a bounded
// spin-then-yield wait; it never parks on a lock or on another worker's
// progress. The loop ends when the queue reports closed-and-drained or
// the context is cancelled between tasks (cancellation is cooperative,
// a popped task always runs to completion).
func (w *Worker) run(ctx context.Context) {
	defer w.state.Store(int32(StateStopped))

	backoff := iox.Backoff{}
	for {
		task, err := w.queue.Pop()
		switch {
		case err == nil:
			backoff.Reset()
			w.state.StoreRelease(int32(StateRunning))
			w.process(ctx, task)
			if w.draining.LoadAcquire() {
				w.state.StoreRelease(int32(StateDraining))
			} else {
				w.state.StoreRelease(int32(StateIdle))
			}
		case errors.Is(err, types.ErrQueueClosed):
			return
		default:
			if ctx.Err() != nil {
				return
			}
			if w.draining.LoadAcquire() {
				w.state.StoreRelease(int32(StateDraining))
			}
			backoff.Wait()
		}
	}
}

// process runs one task and records the outcome
func (w *Worker) process(ctx context.Context, task types.Task) {
	if qt, ok := task.(*queuedTask); ok {
		qt.beginAttempt()
		w.recordWait(int64(w.clock.Since(qt.enqueuedAt)))
	}

	err := w.execute(ctx, task)
	if err != nil {
		w.failed.Add(1)
		w.report(err)
		return
	}
	w.processed.Add(1)
}

// execute runs the task with panic recovery
func (w *Worker) execute(ctx context.Context, task types.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			te := types.NewTaskError("worker", task.ID(), fmt.Errorf("panic: %v", r))
			te.WithContext("stack_trace", string(buf[:n]))
			te.WithContext("worker_id", w.id)
			err = te
		}
	}()

	return task.Execute(ctx)
}

func (w *Worker) recordWait(wait int64) {
	for {
		cur := w.maxWait.Load()
		if wait <= cur {
			return
		}
		if w.maxWait.CompareAndSwapRelaxed(cur, wait) {
			return
		}
	}
}

// report passes a task failure to the error handler, if any
func (w *Worker) report(err error) {
	if w.errorHandler == nil {
		return
	}
	// a handler error has nowhere further to go
	_ = w.errorHandler(err)
}

// Stats gets worker statistics
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: w.processed.Load(),
		TotalFailed:    w.failed.Load(),
		MaxWaitTime:    time.Duration(w.maxWait.Load()),
	}
}

// WorkerStats defines worker statistics
type WorkerStats struct {
	ID             int
	State          State
	TotalProcessed int64
	TotalFailed    int64
	MaxWaitTime    time.Duration
}
