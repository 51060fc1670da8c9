// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pharmex/relay/internal/clock"
	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// recordingDispatcher captures dispatched groups and fails on demand.
type recordingDispatcher struct {
	mu       sync.Mutex
	calls    []dispatchCall
	failType string // fail groups of this type ("" = never, "*" = all)
}

type dispatchCall struct {
	notificationType string
	count            int
}

func (d *recordingDispatcher) Dispatch(_ context.Context, notificationType string, items []*models.NotificationItem) error {
	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{notificationType: notificationType, count: len(items)})
	fail := d.failType == "*" || d.failType == notificationType
	d.mu.Unlock()
	if fail {
		return errors.New("simulated dispatch failure")
	}
	return nil
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *recordingDispatcher) dispatchedItems() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, c := range d.calls {
		total += c.count
	}
	return total
}

// recordingArchiver captures discarded items.
type recordingArchiver struct {
	mu    sync.Mutex
	items []*models.NotificationItem
}

func (a *recordingArchiver) ArchiveDiscarded(_ context.Context, item *models.NotificationItem) error {
	a.mu.Lock()
	a.items = append(a.items, item)
	a.mu.Unlock()
	return nil
}

func newTestOptimizer(d Dispatcher) (*Optimizer, *clock.Fake) {
	fc := clock.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	o := NewOptimizer(Options{
		Dispatcher:        d,
		BatchSize:         100,
		MaxBatchSize:      500,
		BatchDelay:        5 * time.Second,
		SweepInterval:     30 * time.Second,
		OptimizeThreshold: 1000,
		MaxItemAge:        5 * time.Minute,
		Clock:             fc,
	})
	return o, fc
}

func testNotification(notificationType string) *models.Notification {
	return &models.Notification{
		Type:       notificationType,
		Category:   models.CategorySystem,
		Priority:   models.PriorityMedium,
		Recipients: []string{"user-1"},
	}
}

func TestAddThenProcessCountsMatch(t *testing.T) {
	d := &recordingDispatcher{}
	o, _ := newTestOptimizer(d)

	for i := 0; i < 7; i++ {
		o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	}

	result := o.Process(context.Background(), models.PriorityMedium, false)

	if result.Processed != 7 || result.Errors != 0 {
		t.Errorf("result = %+v, want {7 0}", result)
	}
	if result.Processed+result.Errors != 7 {
		t.Errorf("processed+errors = %d, want batch length 7", result.Processed+result.Errors)
	}
	if o.Len() != 0 {
		t.Errorf("queue length = %d after full drain, want 0", o.Len())
	}
}

func TestUnknownPriorityCoercesToMedium(t *testing.T) {
	d := &recordingDispatcher{}
	o, _ := newTestOptimizer(d)

	o.Add(context.Background(), testNotification("order-update"), nil, models.Priority("bogus"))

	stats := o.Stats()
	if stats.Queues[models.PriorityMedium].Count != 1 {
		t.Errorf("medium tier = %d, want 1 (coerced)", stats.Queues[models.PriorityMedium].Count)
	}
}

func TestUrgentPrioritiesDrainImmediately(t *testing.T) {
	for _, priority := range []models.Priority{models.PriorityEmergency, models.PriorityCritical} {
		t.Run(string(priority), func(t *testing.T) {
			d := &recordingDispatcher{}
			o, _ := newTestOptimizer(d)

			o.Add(context.Background(), testNotification("recall-alert"), nil, priority)

			// Dispatch happened synchronously inside Add, no timer involved.
			if d.callCount() != 1 {
				t.Fatalf("dispatch calls = %d, want 1", d.callCount())
			}
			if o.Len() != 0 {
				t.Errorf("queue length = %d, want 0", o.Len())
			}
		})
	}
}

func TestDebouncedBatchFlush(t *testing.T) {
	d := &recordingDispatcher{}
	o, fc := newTestOptimizer(d)

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	// A second insert before the timer fires must not create a second timer.
	fc.Advance(2 * time.Second)
	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)

	if d.callCount() != 0 {
		t.Fatalf("dispatched before debounce elapsed")
	}

	// First timer was armed at t0 for t0+5s; advancing past it flushes once.
	fc.Advance(4 * time.Second)

	if d.callCount() != 1 {
		t.Fatalf("dispatch calls = %d, want exactly 1 flush", d.callCount())
	}
	if d.dispatchedItems() != 2 {
		t.Errorf("dispatched items = %d, want 2", d.dispatchedItems())
	}

	// No stray second timer: nothing else fires.
	fc.Advance(10 * time.Second)
	if d.callCount() != 1 {
		t.Errorf("dispatch calls = %d after idle advance, want 1", d.callCount())
	}
}

func TestBatchSizeLimitsNonForcedFlush(t *testing.T) {
	d := &recordingDispatcher{}
	o, _ := newTestOptimizer(d)

	for i := 0; i < 150; i++ {
		o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityLow)
	}

	result := o.Process(context.Background(), models.PriorityLow, false)
	if result.Processed != 100 {
		t.Errorf("processed = %d, want batch size 100", result.Processed)
	}
	if o.Len() != 50 {
		t.Errorf("remaining = %d, want 50", o.Len())
	}

	forced := o.Process(context.Background(), models.PriorityLow, true)
	if forced.Processed != 50 {
		t.Errorf("forced processed = %d, want 50", forced.Processed)
	}
}

func TestGroupFailureIsolation(t *testing.T) {
	d := &recordingDispatcher{failType: "inventory-alert"}
	o, _ := newTestOptimizer(d)

	for i := 0; i < 3; i++ {
		o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	}
	for i := 0; i < 2; i++ {
		o.Add(context.Background(), testNotification("inventory-alert"), nil, models.PriorityMedium)
	}

	result := o.Process(context.Background(), models.PriorityMedium, false)

	if result.Processed != 3 {
		t.Errorf("processed = %d, want 3 (healthy group unaffected)", result.Processed)
	}
	if result.Errors != 2 {
		t.Errorf("errors = %d, want 2", result.Errors)
	}

	// Failed group moved one tier down with retry counts stamped.
	stats := o.Stats()
	if stats.Queues[models.PriorityLow].Count != 2 {
		t.Errorf("low tier = %d, want 2 requeued items", stats.Queues[models.PriorityLow].Count)
	}
}

func TestRetryDegradationStampsItem(t *testing.T) {
	d := &recordingDispatcher{failType: "*"}
	o, _ := newTestOptimizer(d)

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityHigh)
	o.Process(context.Background(), models.PriorityHigh, false)

	o.mu.Lock()
	medium := o.queues[models.PriorityMedium]
	o.mu.Unlock()

	if len(medium) != 1 {
		t.Fatalf("medium tier = %d, want 1", len(medium))
	}
	item := medium[0]
	if item.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", item.RetryCount)
	}
	if item.LastFailedAt == nil {
		t.Error("lastFailedAt not stamped")
	}
	if item.Priority != models.PriorityMedium {
		t.Errorf("priority = %s, want medium", item.Priority)
	}
}

func TestLowPrioritySaturatesOnRetry(t *testing.T) {
	d := &recordingDispatcher{failType: "*"}
	o, _ := newTestOptimizer(d)

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityLow)
	o.Process(context.Background(), models.PriorityLow, false)

	stats := o.Stats()
	if stats.Queues[models.PriorityLow].Count != 1 {
		t.Errorf("low tier = %d, want 1 (saturating requeue)", stats.Queues[models.PriorityLow].Count)
	}
}

func TestRetryExhaustionDiscardsItem(t *testing.T) {
	d := &recordingDispatcher{failType: "*"}
	archiver := &recordingArchiver{}
	fc := clock.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	o := NewOptimizer(Options{Dispatcher: d, Archiver: archiver, Clock: fc})

	// Emergency drains synchronously and fails: requeued critical, which also
	// drains synchronously and fails (2 attempts inside Add), landing in high.
	o.Add(context.Background(), testNotification("recall-alert"), nil, models.PriorityEmergency)

	if d.callCount() != 2 {
		t.Fatalf("attempts after Add = %d, want 2 (emergency then critical)", d.callCount())
	}

	// Third failure: high -> medium.
	o.Process(context.Background(), models.PriorityHigh, true)
	if o.Len() != 1 {
		t.Fatalf("queue length = %d before final attempt, want 1", o.Len())
	}

	// Fourth failure exceeds the cutoff; the item is discarded, not requeued.
	o.Process(context.Background(), models.PriorityMedium, true)

	if d.callCount() != 4 {
		t.Errorf("attempts = %d, want 4", d.callCount())
	}
	if o.Len() != 0 {
		t.Errorf("queue length = %d after discard, want 0 in every tier", o.Len())
	}
	if len(archiver.items) != 1 {
		t.Fatalf("archived = %d, want 1", len(archiver.items))
	}
	if archiver.items[0].RetryCount != 4 {
		t.Errorf("archived retryCount = %d, want 4", archiver.items[0].RetryCount)
	}

	// Nothing fires later: the item never reappears in any tier.
	fc.Advance(time.Minute)
	if o.Len() != 0 {
		t.Errorf("discarded item reappeared, queue length = %d", o.Len())
	}
}

func TestDispatcherPanicIsContained(t *testing.T) {
	o, _ := newTestOptimizer(DispatcherFunc(func(context.Context, string, []*models.NotificationItem) error {
		panic("handler bug")
	}))

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	result := o.Process(context.Background(), models.PriorityMedium, false)

	if result.Errors != 1 {
		t.Errorf("errors = %d, want 1 (panic converted to failure)", result.Errors)
	}
}

func TestClearDropsTierAndTimer(t *testing.T) {
	d := &recordingDispatcher{}
	o, fc := newTestOptimizer(d)

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)

	dropped := o.Clear(models.PriorityMedium)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if o.Len() != 0 {
		t.Errorf("queue length = %d, want 0", o.Len())
	}

	// The disarmed timer must not flush an empty tier into the dispatcher.
	fc.Advance(10 * time.Second)
	if d.callCount() != 0 {
		t.Errorf("dispatch calls = %d after clear, want 0", d.callCount())
	}
}

func TestSweeperFlushesAllTiers(t *testing.T) {
	d := &recordingDispatcher{}
	o, _ := newTestOptimizer(d)
	s := NewSweeper(o)

	// Simulate a backlog whose debounce timers never fired (e.g. fresh
	// process state) by loading tiers directly.
	for _, p := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		o.mu.Lock()
		o.queues[p] = append(o.queues[p], &models.NotificationItem{
			QueueID: string(p), Type: "order-update", Priority: p, QueuedAt: o.clock.Now(),
		})
		o.mu.Unlock()
	}

	s.sweep(context.Background())

	if o.Len() != 0 {
		t.Errorf("queue length = %d after sweep, want 0", o.Len())
	}
	if d.callCount() != 3 {
		t.Errorf("dispatch calls = %d, want 3 (one per non-empty tier)", d.callCount())
	}
}

func TestOptimizeGrowsBatchSize(t *testing.T) {
	d := &recordingDispatcher{}
	o, _ := newTestOptimizer(d)

	for i := 0; i < 1001; i++ {
		o.Add(context.Background(), testNotification(fmt.Sprintf("type-%d", i%4)), nil, models.PriorityLow)
	}

	actions := o.Optimize(context.Background())

	if o.BatchSize() != 150 {
		t.Errorf("batch size = %d, want 150 (100 * 1.5)", o.BatchSize())
	}
	if len(actions) == 0 {
		t.Error("expected at least one optimization action")
	}
}

func TestOptimizeBatchSizeCapped(t *testing.T) {
	d := &recordingDispatcher{}
	fc := clock.NewFake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	o := NewOptimizer(Options{Dispatcher: d, BatchSize: 400, MaxBatchSize: 500, Clock: fc})

	for i := 0; i < 1001; i++ {
		o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityLow)
	}
	o.Optimize(context.Background())

	if o.BatchSize() != 500 {
		t.Errorf("batch size = %d, want cap 500", o.BatchSize())
	}
}

func TestOptimizeForceDrainsStaleTier(t *testing.T) {
	d := &recordingDispatcher{}
	o, fc := newTestOptimizer(d)

	// Load a stale item directly so the debounce timer plays no part.
	fc.Advance(6 * time.Minute)
	o.mu.Lock()
	stale := o.clock.Now().Add(-6 * time.Minute)
	o.queues[models.PriorityLow] = append(o.queues[models.PriorityLow], &models.NotificationItem{
		QueueID: "stale", Type: "order-update", Priority: models.PriorityLow, QueuedAt: stale,
	})
	o.mu.Unlock()

	actions := o.Optimize(context.Background())

	if o.Len() != 0 {
		t.Errorf("queue length = %d, want 0 after force drain", o.Len())
	}
	found := false
	for _, a := range actions {
		if len(a) > 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected a force-drain action to be reported")
	}
}

func TestStatsSnapshot(t *testing.T) {
	d := &recordingDispatcher{}
	o, _ := newTestOptimizer(d)

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityLow)
	o.Process(context.Background(), models.PriorityMedium, false)

	stats := o.Stats()

	if stats.TotalQueued != 1 {
		t.Errorf("totalQueued = %d, want 1", stats.TotalQueued)
	}
	if stats.Queues[models.PriorityLow].Count != 1 {
		t.Errorf("low count = %d, want 1", stats.Queues[models.PriorityLow].Count)
	}
	if stats.Queues[models.PriorityLow].OldestItem == nil {
		t.Error("oldestItem missing for non-empty tier")
	}
	if stats.Queues[models.PriorityMedium].OldestItem != nil {
		t.Error("oldestItem present for empty tier")
	}
	if stats.Processing.TotalProcessed != 1 {
		t.Errorf("totalProcessed = %d, want 1", stats.Processing.TotalProcessed)
	}
	if stats.Processing.BatchesProcessed != 1 {
		t.Errorf("batchesProcessed = %d, want 1", stats.Processing.BatchesProcessed)
	}
	if stats.Processing.AverageBatchSize != 1.0 {
		t.Errorf("averageBatchSize = %f, want 1.0", stats.Processing.AverageBatchSize)
	}
	if stats.Processing.LastProcessedAt == nil {
		t.Error("lastProcessedAt missing after processing")
	}
}

func TestAverageBatchSizeCountsFailedItems(t *testing.T) {
	o, _ := newTestOptimizer(DispatcherFunc(func(_ context.Context, notificationType string, _ []*models.NotificationItem) error {
		if notificationType == "refill-reminder" {
			return errors.New("sender down")
		}
		return nil
	}))

	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	o.Add(context.Background(), testNotification("order-update"), nil, models.PriorityMedium)
	o.Add(context.Background(), testNotification("refill-reminder"), nil, models.PriorityMedium)
	o.Add(context.Background(), testNotification("refill-reminder"), nil, models.PriorityMedium)
	o.Process(context.Background(), models.PriorityMedium, false)

	stats := o.Stats()
	if stats.Processing.TotalProcessed != 2 {
		t.Errorf("totalProcessed = %d, want 2", stats.Processing.TotalProcessed)
	}
	if stats.Processing.AverageBatchSize != 4.0 {
		t.Errorf("averageBatchSize = %f, want 4.0 including failed items", stats.Processing.AverageBatchSize)
	}
}

func TestFIFOWithinTier(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	o, _ := newTestOptimizer(DispatcherFunc(func(_ context.Context, _ string, items []*models.NotificationItem) error {
		mu.Lock()
		for _, item := range items {
			seen = append(seen, item.Content["seq"].(string))
		}
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		n := testNotification("order-update")
		n.Content = map[string]interface{}{"seq": fmt.Sprintf("%d", i)}
		o.Add(context.Background(), n, nil, models.PriorityMedium)
	}
	o.Process(context.Background(), models.PriorityMedium, false)

	for i, s := range seen {
		if s != fmt.Sprintf("%d", i) {
			t.Fatalf("order broken: seen=%v", seen)
		}
	}
}
