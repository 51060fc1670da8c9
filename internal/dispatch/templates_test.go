// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/pharmex/relay/internal/cache"
	"github.com/pharmex/relay/internal/models"
	"github.com/pharmex/relay/internal/store"
)

// countingTemplateStore counts GetTemplate calls so tests can observe cache
// short-circuiting.
type countingTemplateStore struct {
	inner store.TemplateStore
	calls atomic.Int32
	err   error
}

func (c *countingTemplateStore) GetTemplate(ctx context.Context, name string) (*store.Template, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.GetTemplate(ctx, name)
}

func seedTemplates(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	err := s.SetTemplate(context.Background(), &store.Template{
		Name:    "refill-reminder",
		Subject: "Your refill is due",
		Body:    "Refill for {{rx}} is ready for pickup.",
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTemplateSourceResolvesStoredTemplate(t *testing.T) {
	src := NewTemplateSource(seedTemplates(t), nil)

	tpl := src.Resolve(context.Background(), "refill-reminder")
	if tpl == nil {
		t.Fatal("expected stored template")
	}
	if tpl.Subject != "Your refill is due" {
		t.Fatalf("Subject = %q", tpl.Subject)
	}
}

func TestTemplateSourceMissingIsNil(t *testing.T) {
	src := NewTemplateSource(seedTemplates(t), nil)

	if tpl := src.Resolve(context.Background(), "no-such-type"); tpl != nil {
		t.Fatalf("Resolve(missing) = %+v, want nil", tpl)
	}
}

func TestTemplateSourceCachesLookups(t *testing.T) {
	counting := &countingTemplateStore{inner: seedTemplates(t)}
	src := NewTemplateSource(counting, cache.New(cache.Options{}))

	for i := 0; i < 3; i++ {
		if tpl := src.Resolve(context.Background(), "refill-reminder"); tpl == nil {
			t.Fatal("expected stored template")
		}
	}
	if got := counting.calls.Load(); got != 1 {
		t.Fatalf("store calls = %d, want 1 (cached after first)", got)
	}
}

func TestTemplateSourceStoreErrorFallsBackToNil(t *testing.T) {
	counting := &countingTemplateStore{inner: seedTemplates(t), err: errors.New("store offline")}
	src := NewTemplateSource(counting, nil)

	if tpl := src.Resolve(context.Background(), "refill-reminder"); tpl != nil {
		t.Fatalf("Resolve on store error = %+v, want nil", tpl)
	}
}

func TestEmailSenderSendsWithAndWithoutTemplate(t *testing.T) {
	src := NewTemplateSource(seedTemplates(t), cache.New(cache.Options{}))
	sender := LogEmailSender{Templates: src}

	item := testItem(models.ChannelEmail)
	item.Type = "refill-reminder"
	if err := sender.Send(context.Background(), "user-1@pharmex.test", item); err != nil {
		t.Fatalf("Send with template: %v", err)
	}

	item.Type = "no-such-type"
	if err := sender.Send(context.Background(), "user-1@pharmex.test", item); err != nil {
		t.Fatalf("Send without template: %v", err)
	}

	// No template source configured at all.
	bare := LogEmailSender{}
	if err := bare.Send(context.Background(), "user-1@pharmex.test", item); err != nil {
		t.Fatalf("Send without source: %v", err)
	}
}
