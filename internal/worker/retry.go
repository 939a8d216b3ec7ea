package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines exponential backoff parameters for failed queue items.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy matches the drain defaults: 3 retries, 1s initial
// delay doubling up to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}
}

// NextDelay returns the deterministic delay before attempting an item
// that has already failed retryCount times, clamped to MaxDelay.
func (r RetryPolicy) NextDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(retryCount))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// JitteredDelay spreads NextDelay by ±10% uniformly at random so retries
// from many clients do not land on the remote store in lockstep.
func (r RetryPolicy) JitteredDelay(retryCount int) time.Duration {
	d := r.NextDelay(retryCount)
	factor := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(d) * factor)
}
