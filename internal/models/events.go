// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

import "time"

// Event types pushed to clients over the websocket.
const (
	EventConnected          = "connected"
	EventRoomJoined         = "room-joined"
	EventUserJoinedRoom     = "user-joined-room"
	EventUserLeftRoom       = "user-left-room"
	EventRoomMessage        = "room-message"
	EventInventoryAlert     = "inventory-alert"
	EventOrderUpdate        = "order-update"
	EventPrescriptionUpdate = "prescription-update"
	EventSystemNotification = "system-notification"
	EventUserStatusChange   = "user-status-change"
	EventNotification       = "notification"
	EventLiveData           = "live-data"
	EventTypingStart        = "typing-start"
	EventTypingStop         = "typing-stop"
	EventError              = "error"
)

// Event types received from clients.
const (
	EventJoinRoom               = "join-room"
	EventLeaveRoom              = "leave-room"
	EventSendMessage            = "send-message"
	EventRequestLiveData        = "request-live-data"
	EventSubscribeNotifications = "subscribe-notifications"
)

// Event is the wire envelope for all websocket traffic, both directions.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ConnectedData greets a freshly registered connection.
type ConnectedData struct {
	UserID         string    `json:"userId"`
	ServerTime     time.Time `json:"serverTime"`
	ConnectedUsers int       `json:"connectedUsers"`
}

// RoomJoinedData confirms a join to the requesting connection.
type RoomJoinedData struct {
	RoomID         string    `json:"roomId"`
	RoomType       string    `json:"roomType"`
	ConnectedUsers int       `json:"connectedUsers"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoomPresenceData announces a member joining or leaving a room.
type RoomPresenceData struct {
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomMessageData is a chat message relayed to a room.
type RoomMessageData struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	UserRole    string    `json:"userRole"`
	RoomID      string    `json:"roomId"`
	Message     string    `json:"message"`
	MessageType string    `json:"messageType"`
	Timestamp   time.Time `json:"timestamp"`
}

// UserStatusData reports presence transitions (online/offline).
type UserStatusData struct {
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingData is the transient typing indicator relayed to a room.
type TypingData struct {
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorData is surfaced to the originating connection only.
type ErrorData struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveDataSnapshot answers a request-live-data event.
type LiveDataSnapshot struct {
	DataType  string      `json:"dataType"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationData is the payload of a notification event pushed to a
// recipient's connection.
type NotificationData struct {
	QueueID   string                 `json:"queueId"`
	Type      string                 `json:"notificationType"`
	Category  Category               `json:"category"`
	Priority  Priority               `json:"priority"`
	Content   map[string]interface{} `json:"content,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Inbound payload shapes, validated by the hub before acting.

// JoinRoomRequest asks to join a room of a declared type.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	RoomType string `json:"roomType"`
}

// LeaveRoomRequest asks to leave a room.
type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

// SendMessageRequest relays a message to a joined room.
type SendMessageRequest struct {
	RoomID      string `json:"roomId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty"`
}

// LiveDataRequest asks for a snapshot of live operational data.
type LiveDataRequest struct {
	DataType string            `json:"dataType"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// SubscribeRequest narrows which notification types this connection receives.
// An empty list restores the default (all types).
type SubscribeRequest struct {
	Types []string `json:"types"`
}
