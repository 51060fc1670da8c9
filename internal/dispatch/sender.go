// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package dispatch fans queued notification batches out to their resolved
// delivery channels: websocket pushes through the realtime hub, email and SMS
// through pluggable senders wrapped in circuit breakers.
package dispatch

import (
	"context"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

// Sender delivers one notification to one recipient address over an external
// channel. Implementations must be safe for concurrent use.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, address string, item *models.NotificationItem) error
}

// RealtimePublisher pushes a notification to a connected user. Returns false
// when the user has no registered connection; websocket delivery is
// fire-and-forget, so an offline user is a skip, not a failure.
type RealtimePublisher interface {
	PublishNotification(userID string, item *models.NotificationItem) bool
}

// LogEmailSender records email deliveries to the structured log. It stands in
// for an SMTP or provider-API sender in deployments without a mail gateway.
// Templates, when set, resolves the subject line by notification type.
type LogEmailSender struct {
	Templates *TemplateSource
}

func (LogEmailSender) Channel() models.Channel { return models.ChannelEmail }

func (s LogEmailSender) Send(ctx context.Context, address string, item *models.NotificationItem) error {
	subject := item.Type
	if s.Templates != nil {
		if tpl := s.Templates.Resolve(ctx, item.Type); tpl != nil {
			subject = tpl.Subject
		}
	}
	logging.Info().
		Str("channel", "email").
		Str("address", address).
		Str("queue_id", item.QueueID).
		Str("type", item.Type).
		Str("subject", subject).
		Msg("email notification dispatched")
	return nil
}

// LogSMSSender records SMS deliveries to the structured log, standing in for
// a provider-API sender.
type LogSMSSender struct{}

func (LogSMSSender) Channel() models.Channel { return models.ChannelSMS }

func (LogSMSSender) Send(_ context.Context, address string, item *models.NotificationItem) error {
	logging.Info().
		Str("channel", "sms").
		Str("address", address).
		Str("queue_id", item.QueueID).
		Str("type", item.Type).
		Msg("sms notification dispatched")
	return nil
}
