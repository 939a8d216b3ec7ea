package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_NextDelayGrowth(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, 1*time.Second, policy.NextDelay(0))
	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
	assert.Equal(t, 8*time.Second, policy.NextDelay(3))
}

func TestRetryPolicy_NextDelayClamped(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
	}

	// 2^10 seconds would be ~17 minutes without the clamp.
	assert.Equal(t, 30*time.Second, policy.NextDelay(10))
}

func TestRetryPolicy_NextDelayNegativeCount(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.Equal(t, policy.NextDelay(0), policy.NextDelay(-3))
}

func TestRetryPolicy_ZeroValueFallsBack(t *testing.T) {
	var policy RetryPolicy
	d := policy.NextDelay(0)
	assert.Equal(t, time.Second, d)
}

func TestRetryPolicy_JitterBounds(t *testing.T) {
	policy := DefaultRetryPolicy()
	base := policy.NextDelay(2)

	for i := 0; i < 100; i++ {
		d := policy.JitteredDelay(2)
		assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.9))
		assert.LessOrEqual(t, d, time.Duration(float64(base)*1.1))
	}
}
