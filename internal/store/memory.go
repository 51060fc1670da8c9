// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package store

import (
	"context"
	"sync"

	"github.com/pharmex/relay/internal/models"
)

// MemoryStore is an in-process PreferenceStore and TemplateStore. It backs
// tests and deployments that keep preferences in the upstream service only.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*models.PreferenceProfile
	templates map[string]*Template
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*models.PreferenceProfile),
		templates: make(map[string]*Template),
	}
}

// GetPreferences implements PreferenceStore.
func (s *MemoryStore) GetPreferences(_ context.Context, userID string) (*models.PreferenceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

// SetPreferences implements PreferenceStore.
func (s *MemoryStore) SetPreferences(_ context.Context, profile *models.PreferenceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.UserID] = &cp
	return nil
}

// GetTemplate implements TemplateStore.
func (s *MemoryStore) GetTemplate(_ context.Context, name string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tpl
	return &cp, nil
}

// SetTemplate stores a template (used by tests and seeding).
func (s *MemoryStore) SetTemplate(_ context.Context, tpl *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tpl
	s.templates[tpl.Name] = &cp
	return nil
}

// Close implements PreferenceStore.
func (s *MemoryStore) Close() error { return nil }
