// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/metrics"
	"github.com/pharmex/relay/internal/models"
	"github.com/pharmex/relay/internal/store"
)

// Router fans a type-group of notifications out over each item's resolved
// channels. It satisfies the queue's Dispatcher contract: a returned error
// fails the whole group so the queue retries it at a degraded priority.
//
// Websocket delivery is fire-and-forget: an offline recipient is skipped,
// never an error. External channel failures (email, SMS) are errors.
type Router struct {
	realtime RealtimePublisher
	senders  map[models.Channel]Sender
	prefs    store.PreferenceStore
}

// NewRouter builds a router pushing websocket deliveries through realtime and
// external deliveries through the given senders. Contact addresses are
// resolved from prefs at delivery time.
func NewRouter(realtime RealtimePublisher, prefs store.PreferenceStore, senders ...Sender) *Router {
	byChannel := make(map[models.Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Router{realtime: realtime, senders: byChannel, prefs: prefs}
}

// Dispatch delivers every item in the group to every recipient over each
// resolved channel. Returns an aggregate error when any external delivery
// failed.
func (r *Router) Dispatch(ctx context.Context, notificationType string, items []*models.NotificationItem) error {
	var failures []error

	for _, item := range items {
		for _, channel := range item.ResolvedChannels {
			for _, recipient := range item.Recipients {
				if err := r.deliver(ctx, channel, recipient, item); err != nil {
					failures = append(failures, fmt.Errorf("%s to %s: %w", channel, recipient, err))
				}
			}
		}
	}

	if len(failures) > 0 {
		logging.Warn().
			Str("type", notificationType).
			Int("items", len(items)).
			Int("failures", len(failures)).
			Msg("dispatch group had delivery failures")
		return fmt.Errorf("dispatch %s: %d delivery failures: %w", notificationType, len(failures), errors.Join(failures...))
	}
	return nil
}

func (r *Router) deliver(ctx context.Context, channel models.Channel, recipient string, item *models.NotificationItem) error {
	switch channel {
	case models.ChannelWebSocket:
		if r.realtime != nil && r.realtime.PublishNotification(recipient, item) {
			metrics.DeliveriesTotal.WithLabelValues(string(channel), "success").Inc()
		} else {
			metrics.DeliveriesTotal.WithLabelValues(string(channel), "skipped").Inc()
			logging.Debug().
				Str("user_id", recipient).
				Str("queue_id", item.QueueID).
				Msg("recipient offline, websocket delivery skipped")
		}
		return nil

	case models.ChannelEmail, models.ChannelSMS:
		sender, ok := r.senders[channel]
		if !ok {
			metrics.DeliveriesTotal.WithLabelValues(string(channel), "skipped").Inc()
			logging.Warn().Str("channel", string(channel)).Msg("no sender configured for channel")
			return nil
		}

		address, err := r.contactAddress(ctx, channel, recipient)
		if err != nil {
			metrics.DeliveriesTotal.WithLabelValues(string(channel), "skipped").Inc()
			logging.Warn().Err(err).
				Str("channel", string(channel)).
				Str("user_id", recipient).
				Msg("no contact address, delivery skipped")
			return nil
		}

		if err := sender.Send(ctx, address, item); err != nil {
			metrics.DeliveriesTotal.WithLabelValues(string(channel), "failure").Inc()
			return err
		}
		metrics.DeliveriesTotal.WithLabelValues(string(channel), "success").Inc()
		return nil

	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}

// contactAddress resolves the recipient's email address or phone number.
// Channel resolution verified contact presence at evaluation time, but the
// profile may have changed since, so absence here is a skip.
func (r *Router) contactAddress(ctx context.Context, channel models.Channel, userID string) (string, error) {
	profile, err := r.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return "", err
	}

	var address string
	switch channel {
	case models.ChannelEmail:
		address = profile.Contact.Email
	case models.ChannelSMS:
		address = profile.Contact.Phone
	}
	if address == "" {
		return "", fmt.Errorf("no %s contact for user %s", channel, userID)
	}
	return address, nil
}
