// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package hub maintains authenticated websocket connections, room membership,
// and the three delivery primitives: to a user, to a room, and to a role.
// All pushes are fire-and-forget; the hub guarantees only that an event was
// written to a connection's outbound buffer if the connection existed at call
// time.
package hub

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/metrics"
	"github.com/pharmex/relay/internal/models"
)

// ShutdownReason identifies why the hub stopped, for log filtering.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// LiveDataFunc answers a request-live-data event for data types the hub does
// not own (e.g. queue stats). Returns false for unknown data types.
type LiveDataFunc func(dataType string, filters map[string]string) (interface{}, bool)

// Options configures a Hub.
type Options struct {
	// SendBuffer is the per-connection outbound buffer. Default 256.
	SendBuffer int

	// InboundRate limits inbound client events per second. Default 10.
	InboundRate float64

	// InboundBurst is the limiter burst. Default 20.
	InboundBurst int

	// LiveData supplies snapshots for externally owned data types.
	LiveData LiveDataFunc
}

// Hub is the connection and room registry. Lifecycle events (register,
// unregister) and whole-hub broadcasts flow through the run loop; the
// targeted send primitives read the registry directly under the lock so the
// queue dispatcher never blocks on the loop.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan *models.Event

	mu          sync.RWMutex
	registered  map[*Client]struct{}
	connections map[string]*Client            // by userID, latest connection wins
	rooms       map[string]map[string]*Client // roomID -> userID -> client

	sendBuffer   int
	inboundRate  rate.Limit
	inboundBurst int
	liveData     LiveDataFunc
}

// NewHub creates a hub. It performs no background work until RunWithContext.
func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.InboundRate <= 0 {
		opts.InboundRate = 10
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = 20
	}
	return &Hub{
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		broadcast:    make(chan *models.Event, 256),
		registered:   make(map[*Client]struct{}),
		connections:  make(map[string]*Client),
		rooms:        make(map[string]map[string]*Client),
		sendBuffer:   opts.SendBuffer,
		inboundRate:  rate.Limit(opts.InboundRate),
		inboundBurst: opts.InboundBurst,
		liveData:     opts.LiveData,
	}
}

// RunWithContext runs the hub loop until the context is canceled, then closes
// every client. Designed for suture supervision.
//
// Lifecycle events take priority over broadcasts so the registry is always
// consistent before a message fans out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastToClients(event)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error { return h.RunWithContext(ctx) }

// String implements suture's service naming.
func (h *Hub) String() string { return "realtime-hub" }

// registerClient adds a fresh connection: a user's previous connection is
// replaced, the personal and role rooms are auto-joined, and presence is
// announced to the role room.
func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	if old, ok := h.connections[c.identity.UserID]; ok && old != c {
		h.removeLocked(old)
		logging.Info().Str("user_id", c.identity.UserID).Msg("replaced existing connection for user")
	}
	h.registered[c] = struct{}{}
	h.connections[c.identity.UserID] = c
	h.joinRoomLocked(c, UserRoom(c.identity.UserID))
	h.joinRoomLocked(c, RoleRoom(c.identity.Role))
	total := len(h.connections)
	h.mu.Unlock()

	metrics.HubConnections.Set(float64(total))
	logging.Info().
		Str("user_id", c.identity.UserID).
		Str("role", c.identity.Role).
		Int("total_clients", total).
		Msg("websocket client connected")

	c.trySend(&models.Event{
		Type: models.EventConnected,
		Data: models.ConnectedData{
			UserID:         c.identity.UserID,
			ServerTime:     time.Now().UTC(),
			ConnectedUsers: total,
		},
	})

	h.sendToRoomExcept(RoleRoom(c.identity.Role), c, &models.Event{
		Type: models.EventUserStatusChange,
		Data: models.UserStatusData{UserID: c.identity.UserID, Status: "online", Timestamp: time.Now().UTC()},
	})
}

// unregisterClient removes a connection unless it was already replaced by a
// newer one for the same user.
func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.registered[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeLocked(c)
	total := len(h.connections)
	h.mu.Unlock()

	metrics.HubConnections.Set(float64(total))
	logging.Info().
		Str("user_id", c.identity.UserID).
		Int("total_clients", total).
		Msg("websocket client disconnected")

	h.sendToRoomExcept(RoleRoom(c.identity.Role), c, &models.Event{
		Type: models.EventUserStatusChange,
		Data: models.UserStatusData{UserID: c.identity.UserID, Status: "offline", Timestamp: time.Now().UTC()},
	})
}

// removeLocked prunes c from every room it belonged to, deleting rooms left
// empty, then drops the connection and closes its send channel. Callers hold
// the write lock.
func (h *Hub) removeLocked(c *Client) {
	for roomID := range c.rooms {
		h.leaveRoomLocked(c, roomID)
	}
	if h.connections[c.identity.UserID] == c {
		delete(h.connections, c.identity.UserID)
	}
	delete(h.registered, c)
	close(c.send)
}

// joinRoomLocked adds c to a room, creating it lazily. Returns the member
// count after the join. Callers hold the write lock.
func (h *Hub) joinRoomLocked(c *Client, roomID string) int {
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[roomID] = room
		metrics.HubRooms.Set(float64(len(h.rooms)))
	}
	room[c.identity.UserID] = c
	c.rooms[roomID] = struct{}{}
	return len(room)
}

// leaveRoomLocked removes c from a room, deleting the room when its
// membership reaches zero. Callers hold the write lock.
func (h *Hub) leaveRoomLocked(c *Client, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if room[c.identity.UserID] == c {
		delete(room, c.identity.UserID)
	}
	delete(c.rooms, roomID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
		metrics.HubRooms.Set(float64(len(h.rooms)))
	}
}

// SendToUser pushes an event to one user's connection. Returns false when
// the user has no connection or their buffer was full.
func (h *Hub) SendToUser(userID string, event *models.Event) bool {
	h.mu.RLock()
	c, ok := h.connections[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.trySend(event) {
		metrics.HubDroppedTotal.Inc()
		logging.Warn().Str("user_id", userID).Str("event", event.Type).Msg("send buffer full, event dropped")
		return false
	}
	metrics.HubEventsTotal.WithLabelValues(event.Type).Inc()
	return true
}

// SendToRoom pushes an event to every member of a room. Returns the number of
// connections the event was buffered to.
func (h *Hub) SendToRoom(roomID string, event *models.Event) int {
	return h.sendToRoomExcept(roomID, nil, event)
}

// SendToRole pushes an event to every member of a role's shared room.
func (h *Hub) SendToRole(role string, event *models.Event) int {
	return h.SendToRoom(RoleRoom(role), event)
}

// sendToRoomExcept fans out to a room, skipping one client (the actor of a
// presence or typing event). Members are visited in connection order so
// delivery order is stable.
func (h *Hub) sendToRoomExcept(roomID string, except *Client, event *models.Event) int {
	h.mu.RLock()
	room := h.rooms[roomID]
	members := make([]*Client, 0, len(room))
	for _, c := range room {
		if c != except {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })

	sent := 0
	for _, c := range members {
		if c.trySend(event) {
			sent++
		} else {
			metrics.HubDroppedTotal.Inc()
		}
	}
	if sent > 0 {
		metrics.HubEventsTotal.WithLabelValues(event.Type).Add(float64(sent))
	}
	return sent
}

// BroadcastToAll queues an event for delivery to every connected client.
func (h *Hub) BroadcastToAll(event *models.Event) {
	select {
	case h.broadcast <- event:
	default:
		metrics.HubDroppedTotal.Inc()
		logging.Warn().Str("event", event.Type).Msg("broadcast channel full, event dropped")
	}
}

// broadcastToClients fans a broadcast out to all clients in connection order.
func (h *Hub) broadcastToClients(event *models.Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.connections))
	for _, c := range h.connections {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	sent := 0
	for _, c := range clients {
		if c.trySend(event) {
			sent++
		} else {
			metrics.HubDroppedTotal.Inc()
		}
	}
	if sent > 0 {
		metrics.HubEventsTotal.WithLabelValues(event.Type).Add(float64(sent))
	}
}

// PublishNotification delivers a queued notification to its recipient's
// connection, honoring the connection's subscribe-notifications filter.
// Implements the dispatcher's realtime contract: false means offline or
// filtered, which the dispatcher treats as a skip.
func (h *Hub) PublishNotification(userID string, item *models.NotificationItem) bool {
	h.mu.RLock()
	c, ok := h.connections[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !c.wantsNotification(item.Type) {
		return false
	}

	return h.SendToUser(userID, &models.Event{
		Type: models.EventNotification,
		Data: models.NotificationData{
			QueueID:   item.QueueID,
			Type:      item.Type,
			Category:  item.Category,
			Priority:  item.Priority,
			Content:   item.Content,
			Timestamp: time.Now().UTC(),
		},
	})
}

// Targeted business events: static audience mapping per event category.

// BroadcastInventoryAlert notifies the roles that act on stock levels.
func (h *Hub) BroadcastInventoryAlert(data interface{}) {
	event := &models.Event{Type: models.EventInventoryAlert, Data: data}
	h.SendToRole(models.RolePharmacist, event)
	h.SendToRole(models.RoleManager, event)
	h.SendToRole(models.RoleTechnician, event)
}

// NotifyOrderUpdate notifies the ordering user and the managers overseeing
// fulfilment.
func (h *Hub) NotifyOrderUpdate(userID string, data interface{}) {
	event := &models.Event{Type: models.EventOrderUpdate, Data: data}
	h.SendToUser(userID, event)
	h.SendToRole(models.RoleManager, event)
}

// NotifyPrescriptionUpdate notifies the patient and the pharmacists reviewing
// the prescription.
func (h *Hub) NotifyPrescriptionUpdate(userID string, data interface{}) {
	event := &models.Event{Type: models.EventPrescriptionUpdate, Data: data}
	h.SendToUser(userID, event)
	h.SendToRole(models.RolePharmacist, event)
}

// ConnectedUsers returns the number of registered connections.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomMembers returns the member user IDs of a room, sorted.
func (h *Hub) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[roomID]
	members := make([]string, 0, len(room))
	for userID := range room {
		members = append(members, userID)
	}
	sort.Strings(members)
	return members
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.registered))
	for c := range h.registered {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	metrics.HubConnections.Set(0)

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "realtime-hub").
		Str("reason", string(reason)).
		Int("clients_closed", len(clients)).
		Msg("realtime hub stopped")
}
