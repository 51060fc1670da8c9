// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package store defines the data-access interfaces the delivery core calls
// into. Preference and template records are owned by external services; Relay
// only reads them (writes pass through for the settings surface). Two
// implementations ship here: an in-memory store for tests and small
// deployments, and an embedded Badger store for single-node persistence.
package store

import (
	"context"
	"errors"

	"github.com/pharmex/relay/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// PreferenceStore is the authoritative source of notification preferences.
// The evaluator consults its cache first and falls back here on a miss.
type PreferenceStore interface {
	// GetPreferences returns the stored profile for userID, or ErrNotFound.
	GetPreferences(ctx context.Context, userID string) (*models.PreferenceProfile, error)

	// SetPreferences stores or replaces a profile.
	SetPreferences(ctx context.Context, profile *models.PreferenceProfile) error

	// Close releases underlying resources.
	Close() error
}

// Template is a named notification template. Rendering happens outside the
// delivery core; templates are carried through as opaque content.
type Template struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateStore resolves notification templates by name.
type TemplateStore interface {
	GetTemplate(ctx context.Context, name string) (*Template, error)
}

// Store combines both record kinds; the shipped implementations back both
// interfaces from one keyspace.
type Store interface {
	PreferenceStore
	TemplateStore
}

// QueueArchiver receives notifications discarded after retry exhaustion.
// The queue has no durable backing; this hook lets operators attach an audit
// sink without changing queue semantics.
type QueueArchiver interface {
	ArchiveDiscarded(ctx context.Context, item *models.NotificationItem) error
}

// NopArchiver discards archived items. It is the default.
type NopArchiver struct{}

// ArchiveDiscarded implements QueueArchiver.
func (NopArchiver) ArchiveDiscarded(context.Context, *models.NotificationItem) error { return nil }
