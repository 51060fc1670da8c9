// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

// Broadcaster pushes an event to every connected client. Implemented by the
// realtime hub.
type Broadcaster interface {
	BroadcastToAll(event *models.Event)
}

// Forwarder consumes system broadcasts off the bus and fans them out through
// the hub. Delivery to individual clients is fire-and-forget; only a
// malformed payload is a handler error.
type Forwarder struct {
	broadcaster Broadcaster
}

// NewForwarder wires the broadcast forwarder onto bus.
func NewForwarder(bus *Bus, broadcaster Broadcaster) *Forwarder {
	f := &Forwarder{broadcaster: broadcaster}
	bus.AddConsumerHandler("system-broadcast-forwarder", TopicSystemBroadcasts, f.handle)
	return f
}

func (f *Forwarder) handle(msg *message.Message) error {
	var event models.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("unmarshal broadcast %s: %w", msg.UUID, err)
	}

	f.broadcaster.BroadcastToAll(&event)
	logging.Debug().
		Str("event", event.Type).
		Msg("system broadcast forwarded to hub")
	return nil
}
