// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package hub

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
)

// handleInbound routes one client event. Handler failures are surfaced to the
// originating connection only; no failure mutates registry state.
func (h *Hub) handleInbound(c *Client, event *models.Event) {
	switch event.Type {
	case models.EventJoinRoom:
		h.handleJoinRoom(c, event)
	case models.EventLeaveRoom:
		h.handleLeaveRoom(c, event)
	case models.EventSendMessage:
		h.handleSendMessage(c, event)
	case models.EventRequestLiveData:
		h.handleRequestLiveData(c, event)
	case models.EventSubscribeNotifications:
		h.handleSubscribe(c, event)
	case models.EventTypingStart, models.EventTypingStop:
		h.handleTyping(c, event)
	default:
		c.sendError("unknown_event", "unsupported event type: "+event.Type)
	}
}

// decodeData converts the untyped event payload into the handler's request
// struct.
func decodeData(data interface{}, dst interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (h *Hub) handleJoinRoom(c *Client, event *models.Event) {
	var req models.JoinRoomRequest
	if err := decodeData(event.Data, &req); err != nil || req.RoomID == "" || req.RoomType == "" {
		c.sendError("invalid_request", "join-room requires roomId and roomType")
		return
	}

	if !CanAccessRoom(c.identity, req.RoomID, req.RoomType) {
		c.sendError("access_denied", "not allowed to join room "+req.RoomID)
		logging.Warn().
			Str("user_id", c.identity.UserID).
			Str("role", c.identity.Role).
			Str("room_id", req.RoomID).
			Str("room_type", req.RoomType).
			Msg("room join denied")
		return
	}

	h.mu.Lock()
	count := h.joinRoomLocked(c, req.RoomID)
	h.mu.Unlock()

	c.trySend(&models.Event{
		Type: models.EventRoomJoined,
		Data: models.RoomJoinedData{
			RoomID:         req.RoomID,
			RoomType:       req.RoomType,
			ConnectedUsers: count,
			Timestamp:      time.Now().UTC(),
		},
	})
	h.sendToRoomExcept(req.RoomID, c, &models.Event{
		Type: models.EventUserJoinedRoom,
		Data: models.RoomPresenceData{UserID: c.identity.UserID, RoomID: req.RoomID, Timestamp: time.Now().UTC()},
	})
}

func (h *Hub) handleLeaveRoom(c *Client, event *models.Event) {
	var req models.LeaveRoomRequest
	if err := decodeData(event.Data, &req); err != nil || req.RoomID == "" {
		c.sendError("invalid_request", "leave-room requires roomId")
		return
	}

	h.mu.Lock()
	_, member := c.rooms[req.RoomID]
	if member {
		h.leaveRoomLocked(c, req.RoomID)
	}
	h.mu.Unlock()
	if !member {
		return
	}

	h.SendToRoom(req.RoomID, &models.Event{
		Type: models.EventUserLeftRoom,
		Data: models.RoomPresenceData{UserID: c.identity.UserID, RoomID: req.RoomID, Timestamp: time.Now().UTC()},
	})
}

func (h *Hub) handleSendMessage(c *Client, event *models.Event) {
	var req models.SendMessageRequest
	if err := decodeData(event.Data, &req); err != nil || req.RoomID == "" || req.Message == "" {
		c.sendError("invalid_request", "send-message requires roomId and message")
		return
	}

	h.mu.RLock()
	_, member := c.rooms[req.RoomID]
	h.mu.RUnlock()
	if !member {
		c.sendError("access_denied", "not a member of room "+req.RoomID)
		return
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = "text"
	}
	h.SendToRoom(req.RoomID, &models.Event{
		Type: models.EventRoomMessage,
		Data: models.RoomMessageData{
			ID:          uuid.New().String(),
			UserID:      c.identity.UserID,
			UserRole:    c.identity.Role,
			RoomID:      req.RoomID,
			Message:     req.Message,
			MessageType: messageType,
			Timestamp:   time.Now().UTC(),
		},
	})
}

func (h *Hub) handleRequestLiveData(c *Client, event *models.Event) {
	var req models.LiveDataRequest
	if err := decodeData(event.Data, &req); err != nil || req.DataType == "" {
		c.sendError("invalid_request", "request-live-data requires dataType")
		return
	}

	var data interface{}
	switch {
	case req.DataType == "presence":
		data = map[string]interface{}{
			"connectedUsers": h.ConnectedUsers(),
			"rooms":          h.RoomCount(),
		}
	case h.liveData != nil:
		snapshot, ok := h.liveData(req.DataType, req.Filters)
		if !ok {
			c.sendError("unknown_data_type", "no live data for type "+req.DataType)
			return
		}
		data = snapshot
	default:
		c.sendError("unknown_data_type", "no live data for type "+req.DataType)
		return
	}

	c.trySend(&models.Event{
		Type: models.EventLiveData,
		Data: models.LiveDataSnapshot{DataType: req.DataType, Data: data, Timestamp: time.Now().UTC()},
	})
}

func (h *Hub) handleSubscribe(c *Client, event *models.Event) {
	var req models.SubscribeRequest
	if err := decodeData(event.Data, &req); err != nil {
		c.sendError("invalid_request", "subscribe-notifications requires a types list")
		return
	}
	c.subscribe(req.Types)
	logging.Debug().
		Str("user_id", c.identity.UserID).
		Strs("types", req.Types).
		Msg("notification subscription updated")
}

func (h *Hub) handleTyping(c *Client, event *models.Event) {
	var req models.TypingData
	if err := decodeData(event.Data, &req); err != nil || req.RoomID == "" {
		c.sendError("invalid_request", "typing events require roomId")
		return
	}

	h.mu.RLock()
	_, member := c.rooms[req.RoomID]
	h.mu.RUnlock()
	if !member {
		return
	}

	h.sendToRoomExcept(req.RoomID, c, &models.Event{
		Type: event.Type,
		Data: models.TypingData{UserID: c.identity.UserID, RoomID: req.RoomID, Timestamp: time.Now().UTC()},
	})
}
