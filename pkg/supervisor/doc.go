/*
Package supervisor provides fault-tolerance wrappers around arbitrary
fallible operations: retry with exponential backoff and a circuit
breaker, composable through the Supervisor type.

# Retry

A Retrier attempts an operation up to a configured limit, sleeping a
BackoffStrategy delay between attempts. The final failure comes back as
a *types.RetryError wrapping the last underlying error, so errors.Is
against both types.ErrRetriesExhausted and the root cause works.

	r := supervisor.NewRetrier(3, supervisor.NewExponentialBackoff(100*time.Millisecond))
	result, err := supervisor.Do(ctx, r, fetch)

# Circuit breaker

A CircuitBreaker counts consecutive failures in the closed state and
opens once they reach the threshold. While open, every call fails fast
with types.ErrCircuitOpen and the wrapped operation is never invoked;
this is what protects a struggling dependency from a worker pool
hammering it through an outage. After the cooldown a single probe call
runs half-open: success closes the breaker, failure reopens it.

	cb := supervisor.NewCircuitBreaker(5, 30*time.Second)
	result, err := supervisor.Call(ctx, cb, fetch)

# Composition

Supervisor runs every retry attempt through the breaker. An open
breaker is not retried; the caller gets ErrCircuitOpen immediately.

	s := supervisor.New(r, cb)
	result, err := supervisor.Execute(ctx, s, fetch)
*/
package supervisor
