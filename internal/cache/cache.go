// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package cache provides a bounded in-memory TTL cache used for hot
// preference and template lookups.
//
// The cache is never the system of record: on a miss the caller falls back to
// the authoritative store. An entry past its expiry is logically absent even
// before the sweeper removes it; Get deletes such entries lazily.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/pharmex/relay/internal/clock"
	"github.com/pharmex/relay/internal/metrics"
)

// evictionSlackDivisor sets the slack margin below the cap that the sweeper
// evicts down to, so a table hovering at the cap is not re-evicted on every
// sweep. Slack is MaxEntries/evictionSlackDivisor entries.
const evictionSlackDivisor = 10

// Entry is a cached item with its expiry.
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Options configures a Cache.
type Options struct {
	// DefaultTTL applies to Set calls without an explicit TTL.
	DefaultTTL time.Duration

	// MaxEntries bounds the table size; the sweeper evicts oldest entries
	// (insertion order) once the table exceeds it.
	MaxEntries int

	// Clock supplies time; defaults to the real clock.
	Clock clock.Clock
}

// Cache is a thread-safe TTL key/value store with bounded size.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	order      []string // insertion order, compacted on delete and sweep
	defaultTTL time.Duration
	maxEntries int
	clock      clock.Clock
	stats      stats
}

type stats struct {
	hits      int64
	misses    int64
	evictions int64
	lastSweep time.Time
}

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
	LastSweep time.Time
}

// New creates a cache. It does not start any background work; run a Janitor
// (or call Sweep directly) for periodic cleanup.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 10000
	}
	return &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxEntries,
		clock:      opts.Clock,
	}
}

// Get retrieves a value by key. An expired entry is treated as absent and
// removed on the spot.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if c.clock.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have replaced
		// the entry since the read.
		if cur, ok := c.entries[key]; ok && c.clock.Now().After(cur.ExpiresAt) {
			delete(c.entries, key)
			c.dropFromOrder(key)
		}
		c.mu.Unlock()
		c.recordMiss()
		c.recordEvictions(1)
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL. Re-setting an existing key
// keeps its original insertion-order position.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: c.clock.Now().Add(ttl),
	}
}

// Delete removes a specific entry. Safe to call with absent keys.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.dropFromOrder(key)
		c.stats.evictions++
		metrics.CacheEvictions.Inc()
	}
	c.mu.Unlock()
}

// dropFromOrder removes a key from the insertion-order slice so a later
// re-Set of the same key occupies a single position. Callers must hold the
// write lock.
func (c *Cache) dropFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Clear removes all entries in one operation.
func (c *Cache) Clear() {
	c.mu.Lock()
	evicted := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.order = nil
	c.stats.evictions += evicted
	c.mu.Unlock()
	metrics.CacheEvictions.Add(float64(evicted))
}

// Len returns the current number of entries, expired-but-unswept included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes all expired entries, then, if the table still exceeds
// MaxEntries, evicts the oldest remaining entries (insertion order) until the
// table is under the cap minus a slack margin.
func (c *Cache) Sweep() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}

	// Compact the order slice: drop keys whose entries are gone.
	live := c.order[:0]
	for _, key := range c.order {
		if _, ok := c.entries[key]; ok {
			live = append(live, key)
		}
	}
	c.order = live

	if len(c.entries) > c.maxEntries {
		target := c.maxEntries - c.maxEntries/evictionSlackDivisor
		for len(c.entries) > target && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
			evicted++
		}
	}

	c.stats.evictions += evicted
	c.stats.lastSweep = now
	metrics.CacheEvictions.Add(float64(evicted))
}

// GetStats returns a snapshot of cache counters.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      c.stats.hits,
		Misses:    c.stats.misses,
		Evictions: c.stats.evictions,
		TotalKeys: int64(len(c.entries)),
		LastSweep: c.stats.lastSweep,
	}
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.stats.hits++
	c.mu.Unlock()
	metrics.CacheHits.Inc()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.stats.misses++
	c.mu.Unlock()
	metrics.CacheMisses.Inc()
}

func (c *Cache) recordEvictions(n int64) {
	c.mu.Lock()
	c.stats.evictions += n
	c.mu.Unlock()
	metrics.CacheEvictions.Add(float64(n))
}

// GenerateKey creates a cache key from a method name and its parameters.
// Parameters are JSON-serialized and hashed for a compact, stable key.
func GenerateKey(method string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", method, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
