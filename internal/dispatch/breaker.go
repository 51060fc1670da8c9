// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package dispatch

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/metrics"
	"github.com/pharmex/relay/internal/models"
)

// BreakerSender wraps a Sender with a circuit breaker so a failing external
// gateway sheds load instead of stalling queue batches. The breaker uses real
// time internally; recovery timing is a resilience concern, not data
// integrity, so tests should stub the inner sender rather than the breaker.
type BreakerSender struct {
	inner Sender
	cb    *gobreaker.CircuitBreaker[struct{}]
	name  string
}

// NewBreakerSender wraps sender with a circuit breaker named after its
// channel. The breaker opens after a 60% failure rate over at least 10
// requests, allows 3 probes in half-open state, and waits 2 minutes before
// probing an open circuit.
func NewBreakerSender(sender Sender) *BreakerSender {
	name := string(sender.Channel()) + "-sender"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening delivery circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("delivery circuit state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerSender{inner: sender, cb: cb, name: name}
}

// Channel implements Sender.
func (b *BreakerSender) Channel() models.Channel { return b.inner.Channel() }

// Send implements Sender. Calls rejected by an open circuit return
// gobreaker.ErrOpenState, which the dispatcher treats like any delivery
// failure: the group retries at a degraded priority.
func (b *BreakerSender) Send(ctx context.Context, address string, item *models.NotificationItem) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Send(ctx, address, item)
	})
	return err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
