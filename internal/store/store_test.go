// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package store

import (
	"context"
	"errors"
	"testing"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/pharmex/relay/internal/models"
)

// runPreferenceStoreTests exercises the PreferenceStore contract against any
// implementation.
func runPreferenceStoreTests(t *testing.T, s PreferenceStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.GetPreferences(ctx, "missing-user")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPreferences(missing) = %v, want ErrNotFound", err)
	}

	profile := models.DefaultPreferenceProfile("user-1")
	profile.Contact.Email = "rx@example.com"
	profile.Channels.Email = models.ChannelPref{Enabled: true}
	if err := s.SetPreferences(ctx, profile); err != nil {
		t.Fatalf("SetPreferences: %v", err)
	}

	got, err := s.GetPreferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if got.UserID != "user-1" || got.Contact.Email != "rx@example.com" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.Channels.Email.Enabled {
		t.Fatal("email channel flag lost")
	}

	// Replacement, not merge.
	updated := models.DefaultPreferenceProfile("user-1")
	updated.Global.Enabled = false
	if err := s.SetPreferences(ctx, updated); err != nil {
		t.Fatalf("SetPreferences (replace): %v", err)
	}
	got, err = s.GetPreferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPreferences (replace): %v", err)
	}
	if got.Global.Enabled {
		t.Fatal("replacement did not overwrite global settings")
	}
	if got.Contact.Email != "" {
		t.Fatal("replacement kept stale contact info")
	}
}

func runTemplateStoreTests(t *testing.T, s interface {
	TemplateStore
	SetTemplate(ctx context.Context, tpl *Template) error
}) {
	t.Helper()
	ctx := context.Background()

	_, err := s.GetTemplate(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTemplate(missing) = %v, want ErrNotFound", err)
	}

	tpl := &Template{Name: "refill-reminder", Subject: "Refill due", Body: "Your refill for {{rx}} is due."}
	if err := s.SetTemplate(ctx, tpl); err != nil {
		t.Fatalf("SetTemplate: %v", err)
	}
	got, err := s.GetTemplate(ctx, "refill-reminder")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Subject != tpl.Subject || got.Body != tpl.Body {
		t.Fatalf("template round trip mismatch: %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	runPreferenceStoreTests(t, s)
	runTemplateStoreTests(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	profile := models.DefaultPreferenceProfile("user-1")
	if err := s.SetPreferences(ctx, profile); err != nil {
		t.Fatalf("SetPreferences: %v", err)
	}

	first, _ := s.GetPreferences(ctx, "user-1")
	first.Global.Enabled = false

	second, _ := s.GetPreferences(ctx, "user-1")
	if !second.Global.Enabled {
		t.Fatal("mutating a returned profile leaked into the store")
	}
}

func TestBadgerStore(t *testing.T) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}

	s := NewBadgerStore(db)
	defer s.Close()

	runPreferenceStoreTests(t, s)
	runTemplateStoreTests(t, s)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("OpenBadgerStore: %v", err)
	}
	profile := models.DefaultPreferenceProfile("user-1")
	profile.Contact.Phone = "+15550100"
	if err := s.SetPreferences(context.Background(), profile); err != nil {
		t.Fatalf("SetPreferences: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.GetPreferences(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetPreferences after reopen: %v", err)
	}
	if got.Contact.Phone != "+15550100" {
		t.Fatalf("phone = %q, want +15550100", got.Contact.Phone)
	}
}
