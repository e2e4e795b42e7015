// Package worker provides a worker pool consuming a lock-free task queue
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jzx17/golockfree/pkg/types"
)

// taskIDCounter is the global task ID counter
var taskIDCounter int64

// BasicTask is the basic implementation of the Task interface
type BasicTask struct {
	id string
	fn func(ctx context.Context) error
}

// NewBasicTask creates a new basic task with a generated ID
func NewBasicTask(fn func(ctx context.Context) error) *BasicTask {
	id := atomic.AddInt64(&taskIDCounter, 1)
	return &BasicTask{
		id: fmt.Sprintf("task-%d", id),
		fn: fn,
	}
}

// NewBasicTaskWithID creates a basic task with a custom ID
func NewBasicTaskWithID(id string, fn func(ctx context.Context) error) *BasicTask {
	return &BasicTask{
		id: id,
		fn: fn,
	}
}

// Execute executes the task
func (t *BasicTask) Execute(ctx context.Context) error {
	if t.fn == nil {
		return fmt.Errorf("task %s has no execution function", t.id)
	}
	return t.fn(ctx)
}

// ID returns the task ID
func (t *BasicTask) ID() string {
	return t.id
}

// queuedTask is the envelope the pool pushes onto its queue. It records
// when the task was accepted and how often it has been attempted.
type queuedTask struct {
	types.Task
	enqueuedAt time.Time
	attempts   int32
}

// EnqueuedAt returns the time the pool accepted the task.
func (t *queuedTask) EnqueuedAt() time.Time {
	return t.enqueuedAt
}

// Attempts returns how many times the task has been executed.
func (t *queuedTask) Attempts() int {
	return int(atomic.LoadInt32(&t.attempts))
}

func (t *queuedTask) beginAttempt() int {
	return int(atomic.AddInt32(&t.attempts, 1))
}
