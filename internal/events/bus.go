// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package events carries accepted notifications from the API boundary to the
// delivery pipeline and system broadcasts to the realtime hub over an
// in-process Watermill Pub/Sub. The external broker stays disabled; the
// gochannel transport is the single-process stand-in, so messages in flight
// are lost on restart.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

// Topics on the in-process bus.
const (
	// TopicNotificationsSubmitted carries accepted notification submissions
	// from the API to the ingest consumer.
	TopicNotificationsSubmitted = "notifications.submitted"

	// TopicSystemBroadcasts carries system-wide events destined for every
	// connected websocket client.
	TopicSystemBroadcasts = "system.broadcasts"
)

// Bus owns the gochannel Pub/Sub and the Watermill router its consumers run
// on. Implements suture.Service.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
}

// NewBus creates the in-process bus with panic recovery and bounded retry
// middleware on every consumer.
func NewBus() (*Bus, error) {
	logger := logging.NewWatermillAdapter()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create bus router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	return &Bus{pubsub: pubsub, router: router}, nil
}

// PublishNotification puts an accepted submission on the bus. Returns the
// submission ID the caller can hand back to the client.
func (b *Bus) PublishNotification(n *models.Notification) (string, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicNotificationsSubmitted, msg); err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	return msg.UUID, nil
}

// PublishSystemBroadcast puts a system-wide event on the bus for the hub
// forwarder.
func (b *Bus) PublishSystemBroadcast(event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicSystemBroadcasts, msg); err != nil {
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}

// AddConsumerHandler registers a consume-only handler on the bus router. All
// handlers must be registered before Serve runs.
func (b *Bus) AddConsumerHandler(name, topic string, handler message.NoPublishHandlerFunc) {
	b.router.AddConsumerHandler(name, topic, b.pubsub, handler)
}

// Running returns a channel that closes once the router is consuming.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// Serve runs the bus router until the context is canceled.
func (b *Bus) Serve(ctx context.Context) error {
	err := b.router.Run(ctx)
	if closeErr := b.pubsub.Close(); closeErr != nil {
		logging.Warn().Err(closeErr).Msg("closing bus pubsub")
	}
	logging.Info().Str("component", "event-bus").Msg("event bus stopped")
	if err != nil {
		return err
	}
	return ctx.Err()
}

// String implements suture's service naming.
func (b *Bus) String() string { return "event-bus" }
