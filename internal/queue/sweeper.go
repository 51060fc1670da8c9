// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package queue

import (
	"context"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

// Sweeper periodically flushes every non-empty tier in priority order. It
// guarantees forward progress for tiers whose debounce timer was never armed,
// e.g. after items were requeued while their tier's timer had already fired.
// Implements suture.Service.
type Sweeper struct {
	optimizer *Optimizer
}

// NewSweeper creates a sweeper for the given optimizer.
func NewSweeper(optimizer *Optimizer) *Sweeper {
	return &Sweeper{optimizer: optimizer}
}

// Serve runs the sweep loop until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := s.optimizer.clock.NewTicker(s.optimizer.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "queue-sweeper").Msg("queue sweeper stopped")
			return ctx.Err()
		case <-ticker.C():
			s.sweep(ctx)
		}
	}
}

// sweep flushes tiers most urgent first so a backlog of low-priority items
// never delays critical work queued between ticks.
func (s *Sweeper) sweep(ctx context.Context) {
	for _, p := range models.PriorityOrder {
		s.optimizer.mu.Lock()
		pending := len(s.optimizer.queues[p])
		s.optimizer.mu.Unlock()
		if pending == 0 {
			continue
		}
		result := s.optimizer.Process(ctx, p, false)
		logging.Debug().
			Str("priority", string(p)).
			Int("processed", result.Processed).
			Int("errors", result.Errors).
			Msg("sweep flushed tier")
	}
}

// String identifies the service in supervisor logs.
func (s *Sweeper) String() string { return "queue-sweeper" }
