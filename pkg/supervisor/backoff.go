// Package supervisor provides backoff algorithm implementations
package supervisor

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the backoff strategy interface
type BackoffStrategy interface {
	// NextDelay calculates the delay before the given retry attempt.
	// Attempts are numbered from 1.
	NextDelay(attempt int) time.Duration
}

// FixedBackoff implements fixed backoff strategy
type FixedBackoff struct {
	delay  time.Duration
	jitter float64
}

// NewFixedBackoff creates a fixed backoff strategy
func NewFixedBackoff(delay time.Duration, opts ...BackoffOption) *FixedBackoff {
	b := &FixedBackoff{delay: delay}
	for _, opt := range opts {
		opt.applyToFixed(b)
	}
	return b
}

// NextDelay calculates the delay for the next retry
func (b *FixedBackoff) NextDelay(attempt int) time.Duration {
	return applyJitter(b.delay, b.jitter)
}

// ExponentialBackoff implements exponential backoff strategy: the delay
// starts at the initial delay and doubles each attempt (unless another
// multiplier is configured), capped at the maximum delay.
type ExponentialBackoff struct {
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
	jitter       float64
}

// NewExponentialBackoff creates an exponential backoff strategy
func NewExponentialBackoff(initialDelay time.Duration, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     30 * time.Second,
	}
	for _, opt := range opts {
		opt.applyToExponential(b)
	}
	return b
}

// NextDelay calculates the delay for the next retry
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := time.Duration(float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1)))
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}
	return applyJitter(delay, b.jitter)
}

// applyJitter spreads delay by up to ±factor to decorrelate retry storms
func applyJitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	jitterRange := float64(delay) * factor
	jitterAmount := (rand.Float64() - 0.5) * 2 * jitterRange
	result := delay + time.Duration(jitterAmount)
	if result < 0 {
		result = delay / 2
	}
	return result
}

// BackoffOption is a configuration option for backoff strategies
type BackoffOption interface {
	applyToFixed(*FixedBackoff)
	applyToExponential(*ExponentialBackoff)
}

type backoffOption struct {
	multiplier *float64
	maxDelay   *time.Duration
	jitter     *float64
}

func (o *backoffOption) applyToFixed(b *FixedBackoff) {
	if o.jitter != nil {
		b.jitter = *o.jitter
	}
}

func (o *backoffOption) applyToExponential(b *ExponentialBackoff) {
	if o.multiplier != nil {
		b.multiplier = *o.multiplier
	}
	if o.maxDelay != nil {
		b.maxDelay = *o.maxDelay
	}
	if o.jitter != nil {
		b.jitter = *o.jitter
	}
}

// WithBackoffMultiplier sets the multiplier for exponential backoff
func WithBackoffMultiplier(multiplier float64) BackoffOption {
	return &backoffOption{multiplier: &multiplier}
}

// WithBackoffMaxDelay sets the maximum delay
func WithBackoffMaxDelay(maxDelay time.Duration) BackoffOption {
	return &backoffOption{maxDelay: &maxDelay}
}

// WithBackoffJitter enables jitter with the given factor (0 < factor <= 1)
func WithBackoffJitter(factor float64) BackoffOption {
	return &backoffOption{jitter: &factor}
}
