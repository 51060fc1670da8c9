// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package hub

import (
	"strings"

	"github.com/pharmex/relay/internal/models"
)

// Room types accepted in join-room requests.
const (
	// RoomTypePublic rooms are open to any authenticated user.
	RoomTypePublic = "public"

	// RoomTypeAdmin rooms are restricted to the admin role.
	RoomTypeAdmin = "admin"

	// RoomTypePharmacy rooms carry operational pharmacy traffic.
	RoomTypePharmacy = "pharmacy"

	// RoomTypePrescriptionReview rooms carry prescription review workflows.
	RoomTypePrescriptionReview = "prescription-review"
)

// Room ID prefixes for the automatically joined rooms.
const (
	userRoomPrefix = "user:"
	roleRoomPrefix = "role:"
)

// UserRoom returns the personal room ID for a user.
func UserRoom(userID string) string { return userRoomPrefix + userID }

// RoleRoom returns the shared room ID for a role.
func RoleRoom(role string) string { return roleRoomPrefix + role }

// CanAccessRoom decides whether identity may join roomID of the declared
// roomType. Public types are open to anyone, admin types to admins only,
// pharmacy and prescription-review types to the pharmacy role allow-list.
// Every other room must live in the requester's own personal namespace.
func CanAccessRoom(identity models.Identity, roomID, roomType string) bool {
	switch roomType {
	case RoomTypePublic:
		return true
	case RoomTypeAdmin:
		return identity.Role == models.RoleAdmin
	case RoomTypePharmacy, RoomTypePrescriptionReview:
		return models.IsPharmacyRole(identity.Role)
	default:
		return strings.HasPrefix(roomID, UserRoom(identity.UserID))
	}
}
