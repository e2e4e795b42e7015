// Package types defines core interfaces and types shared by the queue,
// worker and supervisor packages
package types

import (
	"context"
)

// Task defines the unit of work executed by a worker pool
type Task interface {
	// Execute executes the task
	Execute(ctx context.Context) error

	// ID returns the task ID (for tracking and failure reports)
	ID() string
}

// TaskQueue defines the queue a worker pool consumes from.
// Both the bounded and unbounded lock-free queues satisfy it.
type TaskQueue interface {
	// Push enqueues a task. A bounded queue returns ErrQueueFull when no
	// slot is available; the task stays with the caller.
	Push(task Task) error

	// Pop dequeues a task. Returns ErrQueueEmpty when no task is ready,
	// ErrQueueClosed once the queue is closed and drained.
	Pop() (Task, error)

	// Close marks the queue as accepting no further pushes. Items already
	// enqueued remain poppable.
	Close()
}

// ErrorHandler defines an error handling function.
// Worker pools report task failures and caught panics through it;
// callers plug their own logging in here.
type ErrorHandler func(error) error
