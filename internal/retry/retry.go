// Package retry is the per-destination retry/backoff timer, a Go port of
// original_source/src/crates/proxy/src/retry.rs.
package retry

import (
	"context"
	"time"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy int

const (
	BackoffNone BackoffStrategy = iota
	BackoffLinear
	BackoffExponential
)

// State tracks one destination's in-flight retry attempt count and the
// computed delay before the next one.
type State struct {
	CurrentAttempt int
	MaxAttempts    int
	BaseInterval   time.Duration
	LastAttemptAt  time.Time
	NextDelay      time.Duration
	Strategy       BackoffStrategy
}

// FromConfig builds a State from a destination's retry configuration.
func FromConfig(cfg *cardinalconfig.Retry) *State {
	if cfg == nil {
		return &State{MaxAttempts: 0, Strategy: BackoffNone}
	}

	strategy := BackoffNone
	switch cfg.BackoffType {
	case cardinalconfig.BackoffLinear:
		strategy = BackoffLinear
	case cardinalconfig.BackoffExponential:
		strategy = BackoffExponential
	}

	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	return &State{
		MaxAttempts:  cfg.MaxAttempts,
		BaseInterval: interval,
		NextDelay:    interval,
		Strategy:     strategy,
	}
}

// RegisterAttempt increments the attempt counter, stamps the attempt
// time, and recomputes NextDelay for the strategy in effect.
func (s *State) RegisterAttempt() {
	s.CurrentAttempt++
	s.LastAttemptAt = time.Now()

	switch s.Strategy {
	case BackoffNone:
		s.NextDelay = s.BaseInterval
	case BackoffLinear:
		s.NextDelay = s.BaseInterval * time.Duration(s.CurrentAttempt)
	case BackoffExponential:
		shift := s.CurrentAttempt - 1
		if shift >= 31 {
			shift = 31 // saturate: avoid overflowing the shift on pathological configs
		}
		s.NextDelay = s.BaseInterval * time.Duration(uint32(1)<<uint(shift))
	}
}

// CanRetry reports whether another attempt is still allowed.
func (s *State) CanRetry() bool {
	return s.CurrentAttempt < s.MaxAttempts
}

// SleepIfRetryAllowed blocks for NextDelay and returns true if a retry
// is allowed; returns false immediately (no sleep) once attempts are
// exhausted. ctx cancellation aborts the sleep early.
func (s *State) SleepIfRetryAllowed(ctx context.Context) bool {
	if !s.CanRetry() {
		return false
	}
	timer := time.NewTimer(s.NextDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return true
}
