package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cardinal-rs/cardinal/internal/retry"
)

func TestNoneBackoffUsesFixedInterval(t *testing.T) {
	s := &retry.State{MaxAttempts: 3, BaseInterval: 100 * time.Millisecond, Strategy: retry.BackoffNone}
	s.RegisterAttempt()
	assert.Equal(t, 1, s.CurrentAttempt)
	assert.Equal(t, 100*time.Millisecond, s.NextDelay)
	assert.False(t, s.LastAttemptAt.IsZero())
}

func TestLinearBackoffGrowsLinearly(t *testing.T) {
	s := &retry.State{MaxAttempts: 3, BaseInterval: 100 * time.Millisecond, Strategy: retry.BackoffLinear}
	s.RegisterAttempt()
	assert.Equal(t, 100*time.Millisecond, s.NextDelay)
	s.RegisterAttempt()
	assert.Equal(t, 200*time.Millisecond, s.NextDelay)
	s.RegisterAttempt()
	assert.Equal(t, 300*time.Millisecond, s.NextDelay)
}

func TestExponentialBackoffDoublesEachAttempt(t *testing.T) {
	s := &retry.State{MaxAttempts: 4, BaseInterval: 50 * time.Millisecond, Strategy: retry.BackoffExponential}
	s.RegisterAttempt()
	assert.Equal(t, 50*time.Millisecond, s.NextDelay)
	s.RegisterAttempt()
	assert.Equal(t, 100*time.Millisecond, s.NextDelay)
	s.RegisterAttempt()
	assert.Equal(t, 200*time.Millisecond, s.NextDelay)
	s.RegisterAttempt()
	assert.Equal(t, 400*time.Millisecond, s.NextDelay)
}

func TestCanRetryReturnsFalseAtLimit(t *testing.T) {
	s := &retry.State{MaxAttempts: 2, BaseInterval: 100 * time.Millisecond, Strategy: retry.BackoffLinear}
	assert.True(t, s.CanRetry())
	s.RegisterAttempt()
	assert.True(t, s.CanRetry())
	s.RegisterAttempt()
	assert.False(t, s.CanRetry())
}

func TestExponentialBackoffSaturatesSafely(t *testing.T) {
	s := &retry.State{CurrentAttempt: 31, MaxAttempts: 32, BaseInterval: time.Millisecond, Strategy: retry.BackoffExponential}
	assert.NotPanics(t, func() { s.RegisterAttempt() })
	assert.True(t, s.NextDelay > 0)
}
