// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

import "testing"

func TestPriorityDegradeSaturatesAtLow(t *testing.T) {
	cases := []struct {
		from, want Priority
	}{
		{PriorityEmergency, PriorityCritical},
		{PriorityCritical, PriorityHigh},
		{PriorityHigh, PriorityMedium},
		{PriorityMedium, PriorityLow},
		{PriorityLow, PriorityLow},
	}
	for _, tc := range cases {
		if got := tc.from.Degrade(); got != tc.want {
			t.Errorf("%s.Degrade() = %s, want %s", tc.from, got, tc.want)
		}
	}
}

func TestNormalizePriorityCoercesUnknown(t *testing.T) {
	if got := NormalizePriority("shouting"); got != PriorityMedium {
		t.Fatalf("NormalizePriority(unknown) = %s, want medium", got)
	}
	if got := NormalizePriority(PriorityEmergency); got != PriorityEmergency {
		t.Fatalf("NormalizePriority(emergency) = %s, want emergency", got)
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	for i := 1; i < len(PriorityOrder); i++ {
		if PriorityOrder[i-1].Rank() >= PriorityOrder[i].Rank() {
			t.Fatalf("rank of %s not above %s", PriorityOrder[i-1], PriorityOrder[i])
		}
	}
}

func TestIsUrgent(t *testing.T) {
	if !PriorityEmergency.IsUrgent() || !PriorityCritical.IsUrgent() {
		t.Fatal("emergency and critical are urgent")
	}
	if PriorityHigh.IsUrgent() {
		t.Fatal("high is not urgent")
	}
}

func TestAtLeastHonorsRank(t *testing.T) {
	if !PriorityHigh.AtLeast(PriorityMedium) {
		t.Fatal("high should satisfy a medium floor")
	}
	if PriorityLow.AtLeast(PriorityHigh) {
		t.Fatal("low should not satisfy a high floor")
	}
}

func TestDefaultProfileDeliversRealtimeOnly(t *testing.T) {
	profile := DefaultPreferenceProfile("user-1")
	if profile.UserID != "user-1" {
		t.Fatalf("UserID = %q", profile.UserID)
	}
	if !profile.Global.Enabled {
		t.Fatal("default profile must be enabled")
	}
	if !profile.Channels.Pref(ChannelWebSocket).Enabled {
		t.Fatal("websocket is on by default")
	}
	if profile.Channels.Pref(ChannelEmail).Enabled && profile.Contact.Email == "" {
		t.Fatal("email cannot be enabled without an address")
	}
}

func TestHasContactFor(t *testing.T) {
	contact := ContactInfo{Email: "rx@example.com"}
	if !contact.HasContactFor(ChannelEmail) {
		t.Fatal("email contact present")
	}
	if contact.HasContactFor(ChannelSMS) {
		t.Fatal("no phone on file")
	}
	if !contact.HasContactFor(ChannelWebSocket) {
		t.Fatal("websocket needs no contact info")
	}
}

func TestRoleSets(t *testing.T) {
	if !IsValidRole(RolePharmacist) || IsValidRole("janitor") {
		t.Fatal("role validity")
	}
	if !IsPharmacyRole(RolePharmacist) || IsPharmacyRole(RoleCustomer) {
		t.Fatal("pharmacy role set")
	}
	if !IsAdministrativeRole(RoleAdmin) || IsAdministrativeRole(RolePharmacist) {
		t.Fatal("administrative role set")
	}
}
