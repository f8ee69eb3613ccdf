// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package eventbus

import (
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/marquee/internal/logging"
)

// NewCircuitBreaker returns a breaker that opens after
// cfg.FailureThreshold consecutive failures. onChange, when non-nil, is
// called after every state change.
func NewCircuitBreaker[T any](cfg BreakerConfig, onChange func(gobreaker.State)) *gobreaker.CircuitBreaker[T] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			if onChange != nil {
				onChange(to)
			}
		},
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}

// BreakerStateValue maps a breaker state to the gauge encoding used in
// metrics: 0 closed, 1 half-open, 2 open.
func BreakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
