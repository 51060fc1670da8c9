// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB
)

// clientIDCounter generates unique, monotonically increasing IDs so clients
// can be ordered deterministically during broadcast and shutdown.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub. A
// user has at most one registered client; a newer connection replaces the
// older one.
type Client struct {
	id       uint64
	identity models.Identity
	hub      *Hub
	conn     *websocket.Conn
	send     chan *models.Event
	limiter  *rate.Limiter

	subMu sync.RWMutex
	// subscriptions narrows which notification types this connection
	// receives. nil means all types.
	subscriptions map[string]struct{}

	// rooms this client belongs to, mutated only under the hub's lock.
	rooms map[string]struct{}
}

// NewClient creates a client for an authenticated connection. The client is
// inert until Start.
func NewClient(h *Hub, conn *websocket.Conn, identity models.Identity) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		identity: identity,
		hub:      h,
		conn:     conn,
		send:     make(chan *models.Event, h.sendBuffer),
		limiter:  rate.NewLimiter(h.inboundRate, h.inboundBurst),
		rooms:    make(map[string]struct{}),
	}
}

// Identity returns the authenticated principal behind this connection.
func (c *Client) Identity() models.Identity { return c.identity }

// Start registers the client with the hub and begins the read and write
// pumps.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// trySend queues an event for delivery without blocking. Returns false when
// the send buffer is full; the event is dropped, matching the hub's
// fire-and-forget contract.
func (c *Client) trySend(event *models.Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// sendError surfaces a handler failure to this connection only.
func (c *Client) sendError(code, message string) {
	c.trySend(&models.Event{
		Type: models.EventError,
		Data: models.ErrorData{Code: code, Message: message, Timestamp: time.Now().UTC()},
	})
}

// subscribe replaces the notification type filter. An empty list restores the
// default of all types.
func (c *Client) subscribe(types []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(types) == 0 {
		c.subscriptions = nil
		return
	}
	c.subscriptions = make(map[string]struct{}, len(types))
	for _, t := range types {
		c.subscriptions[t] = struct{}{}
	}
}

// wantsNotification reports whether the connection's filter admits this
// notification type.
func (c *Client) wantsNotification(notificationType string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if c.subscriptions == nil {
		return true
	}
	_, ok := c.subscriptions[notificationType]
	return ok
}

// readPump pumps inbound events from the connection to the hub's handlers.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var event models.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("user_id", c.identity.UserID).Msg("unexpected websocket close")
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError("rate_limited", "too many events, slow down")
			continue
		}

		c.hub.handleInbound(c, &event)
	}
}

// writePump pumps events from the hub to the connection and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && err != websocket.ErrCloseSent {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				logging.Error().Err(err).Str("user_id", c.identity.UserID).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
