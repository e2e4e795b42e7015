package supervisor

import (
	"testing"
	"time"
)

func TestFixedBackoff(t *testing.T) {
	delay := 100 * time.Millisecond
	backoff := NewFixedBackoff(delay)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, delay},
		{2, delay},
		{3, delay},
		{10, delay},
	}

	for _, tt := range tests {
		got := backoff.NextDelay(tt.attempt)
		if got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := NewExponentialBackoff(100*time.Millisecond,
		WithBackoffMultiplier(2.0),
		WithBackoffMaxDelay(1*time.Second))

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1000 * time.Millisecond},  // limited by max delay
		{10, 1000 * time.Millisecond}, // limited by max delay
	}

	for _, tt := range tests {
		got := backoff.NextDelay(tt.attempt)
		if got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoffDefaults(t *testing.T) {
	backoff := NewExponentialBackoff(50 * time.Millisecond)

	if got := backoff.NextDelay(2); got != 100*time.Millisecond {
		t.Errorf("default multiplier: NextDelay(2) = %v, want 100ms", got)
	}
	if got := backoff.NextDelay(0); got != 50*time.Millisecond {
		t.Errorf("attempt 0 clamps to 1: got %v, want 50ms", got)
	}
	// very large attempts cap at the default max delay
	if got := backoff.NextDelay(60); got != 30*time.Second {
		t.Errorf("NextDelay(60) = %v, want 30s", got)
	}
}

func TestBackoffJitter(t *testing.T) {
	delay := 100 * time.Millisecond
	backoff := NewFixedBackoff(delay, WithBackoffJitter(0.5))

	for i := 0; i < 100; i++ {
		got := backoff.NextDelay(1)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", got)
		}
	}
}
