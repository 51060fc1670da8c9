// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package cache

import (
	"context"
	"time"

	"github.com/pharmex/relay/internal/clock"
	"github.com/pharmex/relay/internal/logging"
)

// Janitor periodically sweeps a cache. It implements suture.Service so it can
// run under the supervisor tree and be restarted on failure.
type Janitor struct {
	cache    *Cache
	interval time.Duration
	clock    clock.Clock
}

// NewJanitor creates a janitor sweeping cache every interval.
func NewJanitor(cache *Cache, interval time.Duration) *Janitor {
	return &Janitor{
		cache:    cache,
		interval: interval,
		clock:    cache.clock,
	}
}

// Serve runs the sweep loop until the context is canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "cache-janitor").Msg("cache janitor stopped")
			return ctx.Err()
		case <-ticker.C():
			j.cache.Sweep()
			stats := j.cache.GetStats()
			logging.Debug().
				Int64("keys", stats.TotalKeys).
				Int64("evictions", stats.Evictions).
				Msg("cache sweep completed")
		}
	}
}

// String identifies the service in supervisor logs.
func (j *Janitor) String() string { return "cache-janitor" }
