// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

import (
	"time"
)

// Priority is one of the five delivery tiers. Each tier holds its own FIFO
// queue inside the optimizer; emergency and critical bypass batching.
type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityCritical  Priority = "critical"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// PriorityOrder lists all tiers from most to least urgent. The queue sweeper
// and the stats endpoint iterate tiers in this order.
var PriorityOrder = []Priority{
	PriorityEmergency,
	PriorityCritical,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
}

// priorityRank maps tiers to a comparable rank (lower = more urgent).
var priorityRank = map[Priority]int{
	PriorityEmergency: 0,
	PriorityCritical:  1,
	PriorityHigh:      2,
	PriorityMedium:    3,
	PriorityLow:       4,
}

// IsValidPriority reports whether p names a known tier.
func IsValidPriority(p Priority) bool {
	_, ok := priorityRank[p]
	return ok
}

// NormalizePriority coerces unknown tiers to medium. An unknown priority is a
// validation failure but not an error: the item is still accepted.
func NormalizePriority(p Priority) Priority {
	if IsValidPriority(p) {
		return p
	}
	return PriorityMedium
}

// IsUrgent reports whether p bypasses batching and suppression (the critical
// override rule).
func (p Priority) IsUrgent() bool {
	return p == PriorityEmergency || p == PriorityCritical
}

// Rank returns the comparable rank of the tier (0 = emergency). Unknown tiers
// rank as medium.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityMedium]
}

// AtLeast reports whether p is at least as urgent as floor.
func (p Priority) AtLeast(floor Priority) bool {
	return p.Rank() <= floor.Rank()
}

// Degrade returns the next lower tier, saturating at low. Failed batches are
// requeued at the degraded tier rather than backed off by time.
func (p Priority) Degrade() Priority {
	switch p {
	case PriorityEmergency:
		return PriorityCritical
	case PriorityCritical:
		return PriorityHigh
	case PriorityHigh:
		return PriorityMedium
	case PriorityMedium:
		return PriorityLow
	default:
		return PriorityLow
	}
}

// Category classifies a notification for preference filtering. Each category
// carries its own enabled flag, channel list, and priority floor in the
// recipient's profile.
type Category string

const (
	CategoryMedical        Category = "medical"
	CategoryAdministrative Category = "administrative"
	CategorySystem         Category = "system"
	CategoryMarketing      Category = "marketing"
)

// Channel is a delivery transport.
type Channel string

const (
	ChannelWebSocket Channel = "websocket"
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
)

// AllChannels lists every supported transport in deterministic order.
var AllChannels = []Channel{ChannelWebSocket, ChannelEmail, ChannelSMS}

// Notification is the boundary shape submitted by callers. It is validated
// before evaluation and never mutated afterwards.
type Notification struct {
	Type       string                 `json:"type" validate:"required"`
	Category   Category               `json:"category" validate:"required,oneof=medical administrative system marketing"`
	Priority   Priority               `json:"priority" validate:"required"`
	Recipients []string               `json:"recipients" validate:"required,min=1,dive,required"`
	Content    map[string]interface{} `json:"content"`
}

// MaxRetries is the hard retry cutoff: an item failing a fourth time is
// discarded, not requeued.
const MaxRetries = 3

// NotificationItem is a queued notification. It is owned exclusively by
// whichever tier currently holds it and destroyed on successful dispatch or
// retry exhaustion.
type NotificationItem struct {
	QueueID          string                 `json:"queue_id"`
	Type             string                 `json:"type"`
	Category         Category               `json:"category"`
	Priority         Priority               `json:"priority"`
	Recipients       []string               `json:"recipients"`
	Content          map[string]interface{} `json:"content"`
	ResolvedChannels []Channel              `json:"resolved_channels"`
	QueuedAt         time.Time              `json:"queued_at"`
	RetryCount       int                    `json:"retry_count"`
	LastFailedAt     *time.Time             `json:"last_failed_at,omitempty"`
}
