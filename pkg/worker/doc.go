/*
Package worker provides a fixed-size worker pool that consumes tasks
from a lock-free MPMC queue.

# Overview

A Pool owns a set of worker goroutines sharing one types.TaskQueue.
Workers pop tasks and execute them inside a panic-catching boundary;
there is no lock anywhere on the submit/pop/execute path. An idle
worker performs a brief bounded backoff between empty polls instead of
busy-spinning or parking on a synchronization primitive.

# Backpressure

Submit surfaces the queue's own signal: with a BoundedQueue a full
queue returns ErrQueueFull and the task stays with the caller, who
decides whether to retry, drop or propagate. With an UnboundedQueue
submissions are never rejected for capacity, at the cost of unbounded
memory under sustained overload.

# Failure isolation

A panicking task is caught at the worker boundary, reported through the
configured ErrorHandler as a *types.TaskError carrying the task ID and
stack trace, and the worker continues serving. A crashed task never
terminates its worker or the pool.

# Shutdown

Shutdown closes the queue, drains every task that was accepted before
the close, and joins the workers. A task that a worker has popped
always runs to completion; cancellation through the Start context is
cooperative and only observed between tasks.

Basic usage:

	pool, err := worker.NewPool(&worker.Config{
		Workers: 4,
		Queue:   lockfree.NewUnboundedQueue[types.Task](nil),
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := pool.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	err = pool.Submit(worker.NewBasicTask(func(ctx context.Context) error {
		return process(ctx)
	}))

	pool.Shutdown()
*/
package worker
