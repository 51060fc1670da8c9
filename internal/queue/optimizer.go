// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package queue implements the priority-tiered notification queue.
//
// Each of the five tiers holds its own FIFO queue. Emergency and critical
// items drain synchronously on enqueue; the other tiers flush on a debounce
// timer, a periodic sweep, or an explicit Process call. Failed batches are
// requeued one tier lower (saturating at low) until the retry cutoff, then
// discarded.
//
// Queue state is in-process only. The platform's external broker stays
// disabled; a restart loses queued items. See the QueueArchiver hook for the
// discard-side audit trail.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmex/relay/internal/clock"
	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/metrics"
	"github.com/pharmex/relay/internal/models"
	"github.com/pharmex/relay/internal/store"
)

// batchGrowthFactor is applied to the batch size when total queued volume
// exceeds the optimize threshold.
const batchGrowthFactor = 1.5

// Options configures an Optimizer.
type Options struct {
	// Dispatcher delivers batches. Required.
	Dispatcher Dispatcher

	// Archiver receives discarded items. Default: NopArchiver.
	Archiver store.QueueArchiver

	// BatchSize is the per-flush item limit for non-urgent tiers. Default 100.
	BatchSize int

	// MaxBatchSize caps self-tuning growth. Default 500.
	MaxBatchSize int

	// BatchDelay is the debounce before a non-urgent tier flushes. Default 5s.
	BatchDelay time.Duration

	// SweepInterval drives the periodic all-tier flush. Default 30s.
	SweepInterval time.Duration

	// OptimizeThreshold is the total volume above which batches grow. Default 1000.
	OptimizeThreshold int

	// MaxItemAge force-drains a tier whose oldest item is older. Default 5m.
	MaxItemAge time.Duration

	// Clock supplies time and timers. Default: real clock.
	Clock clock.Clock
}

// ProcessResult reports one flush: processed + errors equals the batch length.
type ProcessResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// TierStats describes one tier for observability.
type TierStats struct {
	Count      int        `json:"count"`
	OldestItem *time.Time `json:"oldestItem,omitempty"`
}

// ProcessingStats aggregates throughput counters.
type ProcessingStats struct {
	TotalProcessed   int64      `json:"totalProcessed"`
	BatchesProcessed int64      `json:"batchesProcessed"`
	AverageBatchSize float64    `json:"averageBatchSize"`
	LastProcessedAt  *time.Time `json:"lastProcessedAt,omitempty"`
}

// Stats is the full queue observability snapshot.
type Stats struct {
	Queues      map[models.Priority]TierStats `json:"queues"`
	Processing  ProcessingStats               `json:"processing"`
	TotalQueued int                           `json:"totalQueued"`
}

// Optimizer is the priority-tiered batching queue. All mutation of tier state
// happens under one mutex; dispatch runs outside it so a slow group never
// blocks enqueues.
type Optimizer struct {
	mu     sync.Mutex
	queues map[models.Priority][]*models.NotificationItem
	timers map[models.Priority]clock.Timer

	batchSize         int
	maxBatchSize      int
	batchDelay        time.Duration
	sweepInterval     time.Duration
	optimizeThreshold int
	maxItemAge        time.Duration

	totalProcessed   int64
	totalBatched     int64
	batchesProcessed int64
	lastProcessedAt  time.Time

	dispatcher Dispatcher
	archiver   store.QueueArchiver
	clock      clock.Clock
}

// NewOptimizer creates a queue optimizer. It performs no background work on
// its own; run a Sweeper for the periodic flush.
func NewOptimizer(opts Options) *Optimizer {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Archiver == nil {
		opts.Archiver = store.NopArchiver{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 500
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = 5 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.OptimizeThreshold <= 0 {
		opts.OptimizeThreshold = 1000
	}
	if opts.MaxItemAge <= 0 {
		opts.MaxItemAge = 5 * time.Minute
	}

	o := &Optimizer{
		queues:            make(map[models.Priority][]*models.NotificationItem, len(models.PriorityOrder)),
		timers:            make(map[models.Priority]clock.Timer),
		batchSize:         opts.BatchSize,
		maxBatchSize:      opts.MaxBatchSize,
		batchDelay:        opts.BatchDelay,
		sweepInterval:     opts.SweepInterval,
		optimizeThreshold: opts.OptimizeThreshold,
		maxItemAge:        opts.MaxItemAge,
		dispatcher:        opts.Dispatcher,
		archiver:          opts.Archiver,
		clock:             opts.Clock,
	}
	for _, p := range models.PriorityOrder {
		o.queues[p] = nil
	}
	return o
}

// Add enqueues a notification with its resolved channels. Unknown priorities
// coerce to medium. Emergency and critical trigger an immediate synchronous
// drain of their tier; other tiers arm (or leave armed) the debounce timer.
// Returns the assigned queue ID.
func (o *Optimizer) Add(ctx context.Context, n *models.Notification, channels []models.Channel, priority models.Priority) string {
	item := &models.NotificationItem{
		QueueID:          uuid.New().String(),
		Type:             n.Type,
		Category:         n.Category,
		Priority:         models.NormalizePriority(priority),
		Recipients:       n.Recipients,
		Content:          n.Content,
		ResolvedChannels: channels,
		QueuedAt:         o.clock.Now(),
	}
	o.addItem(ctx, item, item.Priority)
	return item.QueueID
}

// addItem is the shared enqueue path for new items and retries.
func (o *Optimizer) addItem(ctx context.Context, item *models.NotificationItem, priority models.Priority) {
	priority = models.NormalizePriority(priority)
	item.Priority = priority

	o.mu.Lock()
	o.queues[priority] = append(o.queues[priority], item)
	depth := len(o.queues[priority])
	armTimer := !priority.IsUrgent() && o.timers[priority] == nil
	if armTimer {
		p := priority
		o.timers[p] = o.clock.AfterFunc(o.batchDelay, func() { o.timerFlush(p) })
	}
	o.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(string(priority)).Set(float64(depth))
	logging.Debug().
		Str("queue_id", item.QueueID).
		Str("priority", string(priority)).
		Str("type", item.Type).
		Int("depth", depth).
		Msg("notification queued")

	if priority.IsUrgent() {
		o.Process(ctx, priority, true)
	}
}

// timerFlush is the debounce timer callback. The timer handle is cleared
// before processing so a concurrent Add re-arms for the next batch.
func (o *Optimizer) timerFlush(priority models.Priority) {
	o.mu.Lock()
	delete(o.timers, priority)
	o.mu.Unlock()
	o.Process(context.Background(), priority, false)
}

// Process flushes one tier. Urgent tiers and forced calls drain everything;
// otherwise at most the current batch size is taken. The batch is grouped by
// notification type and each group dispatched as an independent unit, so one
// failing group never blocks the rest.
func (o *Optimizer) Process(ctx context.Context, priority models.Priority, force bool) ProcessResult {
	priority = models.NormalizePriority(priority)

	o.mu.Lock()
	tier := o.queues[priority]
	if len(tier) == 0 {
		o.mu.Unlock()
		return ProcessResult{}
	}

	take := len(tier)
	if !force && !priority.IsUrgent() && take > o.batchSize {
		take = o.batchSize
	}
	batch := tier[:take]
	o.queues[priority] = tier[take:]
	depth := len(o.queues[priority])
	o.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(string(priority)).Set(float64(depth))
	metrics.QueueBatchSize.Observe(float64(len(batch)))

	// Group by notification type, preserving FIFO order within each group.
	groups := make(map[string][]*models.NotificationItem)
	order := make([]string, 0)
	for _, item := range batch {
		if _, seen := groups[item.Type]; !seen {
			order = append(order, item.Type)
		}
		groups[item.Type] = append(groups[item.Type], item)
	}

	var (
		wg        sync.WaitGroup
		resultMu  sync.Mutex
		processed int
		failed    int
	)
	for _, notificationType := range order {
		items := groups[notificationType]
		wg.Add(1)
		go func(notificationType string, items []*models.NotificationItem) {
			defer wg.Done()
			err := o.dispatchGroup(ctx, notificationType, items)
			resultMu.Lock()
			if err != nil {
				failed += len(items)
			} else {
				processed += len(items)
			}
			resultMu.Unlock()
			if err != nil {
				o.requeueGroup(ctx, items, err)
			}
		}(notificationType, items)
	}
	wg.Wait()

	now := o.clock.Now()
	o.mu.Lock()
	o.totalProcessed += int64(processed)
	o.totalBatched += int64(len(batch))
	o.batchesProcessed++
	o.lastProcessedAt = now
	o.mu.Unlock()

	metrics.QueueProcessedTotal.WithLabelValues(string(priority)).Add(float64(processed))
	logging.Info().
		Str("priority", string(priority)).
		Int("batch", len(batch)).
		Int("processed", processed).
		Int("errors", failed).
		Msg("queue batch processed")

	return ProcessResult{Processed: processed, Errors: failed}
}

// dispatchGroup delivers one type-group, converting dispatcher panics into
// errors so a misbehaving handler degrades to a retried group.
func (o *Optimizer) dispatchGroup(ctx context.Context, notificationType string, items []*models.NotificationItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic for type %s: %v", notificationType, r)
		}
	}()
	return o.dispatcher.Dispatch(ctx, notificationType, items)
}

// requeueGroup handles a failed group: every item moves one tier down with
// its retry count incremented; items past the cutoff are discarded.
func (o *Optimizer) requeueGroup(ctx context.Context, items []*models.NotificationItem, cause error) {
	now := o.clock.Now()
	for _, item := range items {
		item.RetryCount++
		item.LastFailedAt = &now

		if item.RetryCount > models.MaxRetries {
			metrics.QueueDiscardsTotal.Inc()
			logging.Warn().
				Str("queue_id", item.QueueID).
				Str("type", item.Type).
				Int("retries", item.RetryCount-1).
				Err(cause).
				Msg("notification discarded after retry exhaustion")
			if err := o.archiver.ArchiveDiscarded(ctx, item); err != nil {
				logging.Error().Err(err).Str("queue_id", item.QueueID).Msg("failed to archive discarded notification")
			}
			continue
		}

		degraded := item.Priority.Degrade()
		metrics.QueueRetriesTotal.Inc()
		logging.Warn().
			Str("queue_id", item.QueueID).
			Str("from", string(item.Priority)).
			Str("to", string(degraded)).
			Int("retry", item.RetryCount).
			Err(cause).
			Msg("requeueing failed notification at degraded priority")
		o.addItem(ctx, item, degraded)
	}
}

// Clear removes every item from a tier and disarms its timer. Returns the
// number of items dropped. This is the only cancellation path for queued
// items.
func (o *Optimizer) Clear(priority models.Priority) int {
	priority = models.NormalizePriority(priority)

	o.mu.Lock()
	dropped := len(o.queues[priority])
	o.queues[priority] = nil
	if t := o.timers[priority]; t != nil {
		t.Stop()
		delete(o.timers, priority)
	}
	o.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(string(priority)).Set(0)
	if dropped > 0 {
		logging.Info().Str("priority", string(priority)).Int("dropped", dropped).Msg("queue tier cleared")
	}
	return dropped
}

// Stats returns the observability snapshot: per-tier depth and oldest item,
// processing counters, and total queued volume.
func (o *Optimizer) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := Stats{Queues: make(map[models.Priority]TierStats, len(models.PriorityOrder))}
	for _, p := range models.PriorityOrder {
		tier := o.queues[p]
		ts := TierStats{Count: len(tier)}
		if len(tier) > 0 {
			oldest := tier[0].QueuedAt
			ts.OldestItem = &oldest
		}
		stats.Queues[p] = ts
		stats.TotalQueued += len(tier)
	}

	stats.Processing = ProcessingStats{
		TotalProcessed:   o.totalProcessed,
		BatchesProcessed: o.batchesProcessed,
	}
	if o.batchesProcessed > 0 {
		stats.Processing.AverageBatchSize = float64(o.totalBatched) / float64(o.batchesProcessed)
	}
	if !o.lastProcessedAt.IsZero() {
		last := o.lastProcessedAt
		stats.Processing.LastProcessedAt = &last
	}
	return stats
}

// Len returns the total number of queued items across all tiers.
func (o *Optimizer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, tier := range o.queues {
		total += len(tier)
	}
	return total
}

// Optimize inspects queue pressure and adjusts: total volume above the
// threshold grows the batch size (capped), and any tier whose oldest item
// exceeds the age limit is force-drained. Returns the applied actions.
func (o *Optimizer) Optimize(ctx context.Context) []string {
	now := o.clock.Now()

	o.mu.Lock()
	total := 0
	for _, tier := range o.queues {
		total += len(tier)
	}

	var actions []string
	if total > o.optimizeThreshold && o.batchSize < o.maxBatchSize {
		grown := int(float64(o.batchSize) * batchGrowthFactor)
		if grown > o.maxBatchSize {
			grown = o.maxBatchSize
		}
		actions = append(actions, fmt.Sprintf("batch size raised %d -> %d (total queued %d)", o.batchSize, grown, total))
		o.batchSize = grown
	}

	var stale []models.Priority
	for _, p := range models.PriorityOrder {
		tier := o.queues[p]
		if len(tier) > 0 && now.Sub(tier[0].QueuedAt) > o.maxItemAge {
			stale = append(stale, p)
		}
	}
	o.mu.Unlock()

	for _, p := range stale {
		actions = append(actions, fmt.Sprintf("force-drained %s tier (oldest item over %s)", p, o.maxItemAge))
		o.Process(ctx, p, true)
	}

	if len(actions) > 0 {
		logging.Info().Strs("actions", actions).Msg("queue optimization applied")
	}
	return actions
}

// BatchSize returns the current (possibly self-tuned) batch size.
func (o *Optimizer) BatchSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batchSize
}
