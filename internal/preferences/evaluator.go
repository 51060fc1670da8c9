// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package preferences decides whether and through which channels a
// notification reaches a user.
//
// Evaluation order is fixed: critical override, global disable, quiet hours,
// category filters, then channel resolution. Emergency and critical
// notifications bypass every suppression rule.
package preferences

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/pharmex/relay/internal/cache"
	"github.com/pharmex/relay/internal/clock"
	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/metrics"
	"github.com/pharmex/relay/internal/models"
	"github.com/pharmex/relay/internal/store"
)

// Evaluator maps (recipient, notification) to a delivery decision. It holds
// no per-evaluation state; concurrent calls are independent.
type Evaluator struct {
	store    store.PreferenceStore
	cache    *cache.Cache
	cacheTTL time.Duration
	clock    clock.Clock
}

// Options configures an Evaluator.
type Options struct {
	// Store is the authoritative preference source. Required.
	Store store.PreferenceStore

	// Cache, when set, short-circuits repeated profile lookups. The cache is
	// never authoritative: a miss falls back to Store.
	Cache *cache.Cache

	// CacheTTL bounds how long a cached profile is trusted. Default 5m.
	CacheTTL time.Duration

	// Clock supplies the current time for quiet-hours checks. Default: real.
	Clock clock.Clock
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts Options) *Evaluator {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Evaluator{
		store:    opts.Store,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		clock:    opts.Clock,
	}
}

// Evaluate returns the delivery decision for one user and notification.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, n *models.Notification) models.EvaluationResult {
	profile := e.profile(ctx, userID)
	result := e.evaluateProfile(profile, n)
	metrics.EvaluationsTotal.WithLabelValues(string(result.Reason)).Inc()
	return result
}

// EvaluateRoleBased is the side entry point for mandatory operational alerts:
// system-category notifications force delivery to administrative roles
// irrespective of the stored profile. Any other combination falls through to
// the normal evaluation.
func (e *Evaluator) EvaluateRoleBased(ctx context.Context, userID, role string, n *models.Notification) models.EvaluationResult {
	if models.IsAdministrativeRole(role) && n.Category == models.CategorySystem {
		profile := e.profile(ctx, userID)
		result := models.EvaluationResult{
			UserID:        userID,
			ShouldDeliver: true,
			Channels:      contactChannels(profile),
			Reason:        models.ReasonRoleOverride,
		}
		metrics.EvaluationsTotal.WithLabelValues(string(result.Reason)).Inc()
		return result
	}
	return e.Evaluate(ctx, userID, n)
}

// BulkEvaluate evaluates one notification against many users. Per-user
// results are identical to calling Evaluate for each user individually.
func (e *Evaluator) BulkEvaluate(ctx context.Context, userIDs []string, n *models.Notification) models.BulkEvaluationResult {
	out := models.BulkEvaluationResult{
		Results: make([]models.EvaluationResult, 0, len(userIDs)),
	}
	out.Summary.Total = len(userIDs)

	for _, userID := range userIDs {
		result := e.Evaluate(ctx, userID, n)
		out.Results = append(out.Results, result)
		if result.ShouldDeliver {
			out.Summary.ShouldDeliver++
		} else {
			out.Summary.ShouldNotDeliver++
		}
	}
	return out
}

// evaluateProfile runs the decision chain over an already-resolved profile.
func (e *Evaluator) evaluateProfile(profile *models.PreferenceProfile, n *models.Notification) models.EvaluationResult {
	result := models.EvaluationResult{UserID: profile.UserID}

	// Critical override: emergency/critical bypass all suppression, reaching
	// every channel the user is reachable on.
	if n.Priority.IsUrgent() {
		result.ShouldDeliver = true
		result.Channels = contactChannels(profile)
		result.Reason = models.ReasonCriticalOverride
		return result
	}

	if !profile.Global.Enabled {
		result.Reason = models.ReasonGlobalDisabled
		return result
	}

	if e.inQuietHours(profile.Global.QuietHours) {
		result.Reason = models.ReasonQuietHours
		return result
	}

	catPref, hasCat := profile.Categories[n.Category]
	if hasCat {
		if !catPref.Enabled {
			result.Reason = models.ReasonCategoryDisabled
			return result
		}
		if catPref.MinPriority != "" && !n.Priority.AtLeast(catPref.MinPriority) {
			result.Reason = models.ReasonPriorityFiltered
			return result
		}
	}

	channels := resolveChannels(profile, n, catPref, hasCat)
	if len(channels) == 0 {
		result.Reason = models.ReasonNoChannels
		return result
	}

	result.ShouldDeliver = true
	result.Channels = channels
	result.Reason = models.ReasonPreferenceMatch
	return result
}

// resolveChannels applies the channel eligibility rules: the channel must be
// enabled, must not be emergency-only for a non-urgent notification, must
// have the required contact info, and must be allowed by the category's
// channel list when one is configured.
func resolveChannels(profile *models.PreferenceProfile, n *models.Notification, catPref models.CategoryPref, hasCat bool) []models.Channel {
	var channels []models.Channel
	for _, ch := range models.AllChannels {
		pref := profile.Channels.Pref(ch)
		if !pref.Enabled {
			continue
		}
		if pref.EmergencyOnly && !n.Priority.IsUrgent() {
			continue
		}
		if !profile.Contact.HasContactFor(ch) {
			continue
		}
		if hasCat && len(catPref.Channels) > 0 && !containsChannel(catPref.Channels, ch) {
			continue
		}
		channels = append(channels, ch)
	}
	return channels
}

// contactChannels is the critical-override channel set: every channel the
// user has stored contact info for, regardless of preference toggles.
func contactChannels(profile *models.PreferenceProfile) []models.Channel {
	var channels []models.Channel
	for _, ch := range models.AllChannels {
		if profile.Contact.HasContactFor(ch) {
			channels = append(channels, ch)
		}
	}
	return channels
}

func containsChannel(list []models.Channel, ch models.Channel) bool {
	for _, c := range list {
		if c == ch {
			return true
		}
	}
	return false
}

// inQuietHours reports whether the current time, in the profile's timezone,
// falls within the configured [start, end) window. The window may wrap
// midnight (e.g. 22:00-06:00).
func (e *Evaluator) inQuietHours(qh models.QuietHours) bool {
	if !qh.Enabled {
		return false
	}

	start, okStart := parseClockMinutes(qh.Start)
	end, okEnd := parseClockMinutes(qh.End)
	if !okStart || !okEnd {
		logging.Warn().
			Str("start", qh.Start).
			Str("end", qh.End).
			Msg("malformed quiet hours window, ignoring")
		return false
	}

	loc := time.UTC
	if qh.Timezone != "" {
		if parsed, err := time.LoadLocation(qh.Timezone); err == nil {
			loc = parsed
		} else {
			logging.Warn().Str("timezone", qh.Timezone).Msg("unknown quiet hours timezone, using UTC")
		}
	}

	now := e.clock.Now().In(loc)
	minute := now.Hour()*60 + now.Minute()

	if start == end {
		// Degenerate window covers the full day.
		return true
	}
	if start < end {
		return minute >= start && minute < end
	}
	// Wrap-around across midnight.
	return minute >= start || minute < end
}

// parseClockMinutes parses "HH:MM" into minutes since midnight.
func parseClockMinutes(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// profile resolves a user's profile: cache, then store, then the default
// profile for users with no stored record.
func (e *Evaluator) profile(ctx context.Context, userID string) *models.PreferenceProfile {
	cacheKey := ""
	if e.cache != nil {
		cacheKey = cache.GenerateKey("preferences", userID)
		if cached, ok := e.cache.Get(cacheKey); ok {
			if profile, ok := cached.(*models.PreferenceProfile); ok {
				return profile
			}
		}
	}

	profile, err := e.store.GetPreferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Error().Err(err).Str("user_id", userID).Msg("preference lookup failed, using defaults")
		}
		profile = models.DefaultPreferenceProfile(userID)
	}

	if e.cache != nil {
		e.cache.SetWithTTL(cacheKey, profile, e.cacheTTL)
	}
	return profile
}
