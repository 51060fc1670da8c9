// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package store

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/pharmex/relay/internal/models"
)

// key prefixes keep record types separable in one keyspace.
const (
	prefPrefix = "pref:"
	tplPrefix  = "tpl:"
)

// BadgerStore persists preferences and templates in an embedded Badger
// database. Values are JSON-encoded.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logger is noisy; relay logs operations itself
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open database (used by tests with
// in-memory options).
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// GetPreferences implements PreferenceStore.
func (s *BadgerStore) GetPreferences(_ context.Context, userID string) (*models.PreferenceProfile, error) {
	var profile models.PreferenceProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefPrefix + userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences for %s: %w", userID, err)
	}
	return &profile, nil
}

// SetPreferences implements PreferenceStore.
func (s *BadgerStore) SetPreferences(_ context.Context, profile *models.PreferenceProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode preferences for %s: %w", profile.UserID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefPrefix+profile.UserID), data)
	})
}

// GetTemplate implements TemplateStore.
func (s *BadgerStore) GetTemplate(_ context.Context, name string) (*Template, error) {
	var tpl Template
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tplPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tpl)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return &tpl, nil
}

// SetTemplate stores a template.
func (s *BadgerStore) SetTemplate(_ context.Context, tpl *Template) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", tpl.Name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tplPrefix+tpl.Name), data)
	})
}

// Close implements PreferenceStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
