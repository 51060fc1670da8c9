// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/pharmex/relay/internal/cache"
	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/store"
)

// TemplateSource resolves the message template for a notification type,
// caching lookups so bursts of same-type batches hit the store once. A
// missing template is not an error: senders fall back to generic rendering,
// and a store failure is treated as missing so delivery never stalls on
// template lookup.
type TemplateSource struct {
	store store.TemplateStore
	cache *cache.Cache
	ttl   time.Duration
}

// NewTemplateSource creates a template source. cache may be nil, in which
// case every Resolve goes to the store.
func NewTemplateSource(s store.TemplateStore, c *cache.Cache) *TemplateSource {
	return &TemplateSource{
		store: s,
		cache: c,
		ttl:   5 * time.Minute,
	}
}

// Resolve returns the template stored under the notification type, or nil
// when none exists.
func (t *TemplateSource) Resolve(ctx context.Context, notificationType string) *store.Template {
	cacheKey := ""
	if t.cache != nil {
		cacheKey = cache.GenerateKey("template", notificationType)
		if cached, ok := t.cache.Get(cacheKey); ok {
			if tpl, ok := cached.(*store.Template); ok {
				return tpl
			}
		}
	}

	tpl, err := t.store.GetTemplate(ctx, notificationType)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Error().Err(err).Str("type", notificationType).Msg("template lookup failed, sending without template")
		}
		return nil
	}

	if t.cache != nil {
		t.cache.SetWithTTL(cacheKey, tpl, t.ttl)
	}
	return tpl
}
