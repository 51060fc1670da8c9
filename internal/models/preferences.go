// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

// PreferenceProfile is a user's notification settings record. It is read-only
// from the delivery core's perspective; mutation happens in the user-settings
// service and reaches the core through the preference store.
type PreferenceProfile struct {
	UserID   string         `json:"user_id"`
	Global   GlobalSettings `json:"global"`
	Channels ChannelPrefs   `json:"channels"`
	// Categories maps category name to its filter settings. A category absent
	// from the map is treated as enabled with no floor.
	Categories map[Category]CategoryPref `json:"categories"`
	Contact    ContactInfo               `json:"contact"`
}

// GlobalSettings gate all non-critical delivery for a user.
type GlobalSettings struct {
	Enabled    bool       `json:"enabled"`
	QuietHours QuietHours `json:"quiet_hours"`
	// Frequency is advisory metadata (immediate, hourly, daily). The core does
	// not aggregate digests; it records the value for the settings service.
	Frequency string `json:"frequency,omitempty"`
}

// QuietHours is a daily suppression window in the user's own timezone.
// Start and End are "HH:MM" in 24-hour form; the window may wrap midnight.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// ChannelPrefs holds the per-transport toggles.
type ChannelPrefs struct {
	WebSocket ChannelPref `json:"websocket"`
	Email     ChannelPref `json:"email"`
	SMS       ChannelPref `json:"sms"`
}

// ChannelPref is a single transport's settings. EmergencyOnly restricts the
// channel to emergency/critical notifications.
type ChannelPref struct {
	Enabled       bool `json:"enabled"`
	EmergencyOnly bool `json:"emergency_only,omitempty"`
}

// Pref returns the settings for the named channel.
func (c ChannelPrefs) Pref(ch Channel) ChannelPref {
	switch ch {
	case ChannelWebSocket:
		return c.WebSocket
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.SMS
	default:
		return ChannelPref{}
	}
}

// CategoryPref filters one notification category. MinPriority is the floor:
// notifications less urgent than the floor are filtered out.
type CategoryPref struct {
	Enabled     bool      `json:"enabled"`
	Channels    []Channel `json:"channels,omitempty"`
	MinPriority Priority  `json:"min_priority,omitempty"`
}

// ContactInfo is the stored reachability data. A channel lacking its required
// contact field is excluded from delivery even when otherwise eligible.
type ContactInfo struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// HasContactFor reports whether the user is reachable on the given channel.
// WebSocket needs no stored contact data; reachability is the live connection.
func (c ContactInfo) HasContactFor(ch Channel) bool {
	switch ch {
	case ChannelWebSocket:
		return true
	case ChannelEmail:
		return c.Email != ""
	case ChannelSMS:
		return c.Phone != ""
	default:
		return false
	}
}

// DefaultPreferenceProfile returns the profile assumed for users with no
// stored record: everything on, websocket only, no quiet hours.
func DefaultPreferenceProfile(userID string) *PreferenceProfile {
	return &PreferenceProfile{
		UserID: userID,
		Global: GlobalSettings{Enabled: true},
		Channels: ChannelPrefs{
			WebSocket: ChannelPref{Enabled: true},
		},
		Categories: map[Category]CategoryPref{},
	}
}
