// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
	"github.com/pharmex/relay/internal/preferences"
	"github.com/pharmex/relay/internal/queue"
)

// Ingest consumes accepted submissions, evaluates delivery preferences per
// recipient, and enqueues one item per delivering recipient. Recipients whose
// preferences suppress the notification never reach the queue.
type Ingest struct {
	evaluator *preferences.Evaluator
	queue     *queue.Optimizer
}

// NewIngest wires the ingest consumer onto bus.
func NewIngest(bus *Bus, evaluator *preferences.Evaluator, q *queue.Optimizer) *Ingest {
	i := &Ingest{evaluator: evaluator, queue: q}
	bus.AddConsumerHandler("notification-ingest", TopicNotificationsSubmitted, i.handle)
	return i
}

// handle is the bus handler for one submission. A malformed payload is an
// error so the bus retry middleware sees it; evaluation outcomes are not
// errors regardless of how many recipients were suppressed.
func (i *Ingest) handle(msg *message.Message) error {
	var n models.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return fmt.Errorf("unmarshal submission %s: %w", msg.UUID, err)
	}

	ctx := msg.Context()
	enqueued := 0
	for _, recipient := range n.Recipients {
		result := i.evaluator.Evaluate(ctx, recipient, &n)
		if !result.ShouldDeliver {
			logging.Debug().
				Str("submission_id", msg.UUID).
				Str("user_id", recipient).
				Str("reason", string(result.Reason)).
				Msg("delivery suppressed by preferences")
			continue
		}
		i.enqueue(ctx, &n, recipient, result.Channels)
		enqueued++
	}

	logging.Info().
		Str("submission_id", msg.UUID).
		Str("type", n.Type).
		Str("priority", string(n.Priority)).
		Int("recipients", len(n.Recipients)).
		Int("enqueued", enqueued).
		Msg("submission ingested")
	return nil
}

// enqueue adds a single-recipient copy so each recipient keeps the channel
// set their own preferences resolved.
func (i *Ingest) enqueue(ctx context.Context, n *models.Notification, recipient string, channels []models.Channel) {
	single := *n
	single.Recipients = []string{recipient}
	i.queue.Add(ctx, &single, channels, n.Priority)
}
