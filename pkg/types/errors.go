// Package types defines error types
package types

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// Predefined errors
var (
	// ErrQueueFull indicates a bounded push was rejected; the value stays
	// with the caller. Expected and frequent under backpressure, not
	// exceptional. Wraps iox.ErrWouldBlock so iox.IsWouldBlock matches.
	ErrQueueFull = fmt.Errorf("queue is full: %w", iox.ErrWouldBlock)

	// ErrQueueEmpty indicates a pop found no element ready. Transient;
	// retry with backoff. Wraps iox.ErrWouldBlock.
	ErrQueueEmpty = fmt.Errorf("queue is empty: %w", iox.ErrWouldBlock)

	// ErrQueueClosed indicates the queue is closed and drained,
	// distinct from transiently empty
	ErrQueueClosed = errors.New("queue is closed")

	// ErrPoolClosed indicates the worker pool no longer accepts work
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrPoolNotStarted indicates the worker pool has not been started
	ErrPoolNotStarted = errors.New("worker pool is not started")

	// ErrCircuitOpen indicates the call was rejected without invoking
	// the wrapped operation
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRetriesExhausted indicates the wrapped operation failed on every
	// permitted attempt
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// IsWouldBlock reports whether err is a transient full/empty condition
// that the caller should retry rather than propagate.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// TaskError represents a task execution failure caught at the worker boundary
type TaskError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// TaskID identifies the failed task
	TaskID string

	// Cause is the underlying error or recovered panic
	Cause error

	// Context contains error context information (worker id, stack trace)
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: task %s: %v", e.Operation, e.TaskID, e.Cause)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewTaskError creates a new task error
func NewTaskError(operation, taskID string, cause error) *TaskError {
	return &TaskError{
		Operation: operation,
		TaskID:    taskID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *TaskError) WithContext(key string, value interface{}) *TaskError {
	e.Context[key] = value
	return e
}

// RetryError reports that every permitted attempt failed.
// It carries the last underlying error.
type RetryError struct {
	// Attempts is the number of attempts made
	Attempts int

	// Cause is the error from the final attempt
	Cause error
}

// Error implements the error interface
func (e *RetryError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap returns the underlying error
func (e *RetryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *RetryError) Is(target error) bool {
	return target == ErrRetriesExhausted || errors.Is(e.Cause, target)
}
