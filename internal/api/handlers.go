// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/models"
	"github.com/pharmex/relay/internal/store"
)

// Health reports liveness plus a small realtime snapshot.
func (router *Router) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"time":           time.Now().UTC(),
		"connectedUsers": router.hub.ConnectedUsers(),
		"rooms":          router.hub.RoomCount(),
	})
}

// SubmitNotification accepts a notification for asynchronous delivery. The
// 202 response carries a submission ID; per-recipient queue IDs are assigned
// after preference evaluation and are not exposed here.
func (router *Router) SubmitNotification(w http.ResponseWriter, r *http.Request) {
	var n models.Notification
	if err := decodeJSON(r, &n); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "malformed notification payload", err)
		return
	}
	if err := router.validate.Struct(&n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verrs.Error(), nil)
			return
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid notification", err)
		return
	}

	submissionID, err := router.bus.PublishNotification(&n)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "PUBLISH_FAILED", "could not accept notification", err)
		return
	}

	logging.Info().
		Str("submission_id", submissionID).
		Str("type", n.Type).
		Str("priority", string(n.Priority)).
		Int("recipients", len(n.Recipients)).
		Msg("notification accepted")

	respondJSON(w, http.StatusAccepted, models.SubmissionData{
		SubmissionID: submissionID,
		Recipients:   len(n.Recipients),
	})
}

// broadcastRequest is the body for system-wide announcements.
type broadcastRequest struct {
	Type string      `json:"type" validate:"required"`
	Data interface{} `json:"data"`
}

// SubmitBroadcast pushes an event to every connected client. Restricted to
// operational roles.
func (router *Router) SubmitBroadcast(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok || (identity.Role != models.RoleAdmin && identity.Role != models.RoleManager) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "broadcast requires an operational role", nil)
		return
	}

	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "malformed broadcast payload", err)
		return
	}
	if err := router.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "broadcast type is required", nil)
		return
	}

	if err := router.bus.PublishSystemBroadcast(&models.Event{Type: req.Type, Data: req.Data}); err != nil {
		respondError(w, http.StatusInternalServerError, "PUBLISH_FAILED", "could not accept broadcast", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"state": "queued"})
}

// QueueStats returns a point-in-time snapshot of every priority tier.
func (router *Router) QueueStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, router.optimizer.Stats())
}

// OptimizeQueue runs one optimization pass and reports the applied actions.
func (router *Router) OptimizeQueue(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok || (identity.Role != models.RoleAdmin && identity.Role != models.RoleManager) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "queue tuning requires an operational role", nil)
		return
	}
	actions := router.optimizer.Optimize(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"actions": actions,
		"stats":   router.optimizer.Stats(),
	})
}

// GetPreferences returns the stored profile for a user, or the default
// profile when none exists. Users may read their own; operational roles may
// read anyone's.
func (router *Router) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	identity, ok := identityFrom(r.Context())
	if !ok || !canManagePreferences(identity, userID) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "cannot read another user's preferences", nil)
		return
	}

	profile, err := router.prefs.GetPreferences(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondJSON(w, http.StatusOK, models.DefaultPreferenceProfile(userID))
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "preference lookup failed", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// SetPreferences stores or replaces a user's profile. The user ID always
// comes from the path, never the body.
func (router *Router) SetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	identity, ok := identityFrom(r.Context())
	if !ok || !canManagePreferences(identity, userID) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "cannot change another user's preferences", nil)
		return
	}

	var profile models.PreferenceProfile
	if err := decodeJSON(r, &profile); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "malformed preference profile", err)
		return
	}
	profile.UserID = userID

	if err := router.prefs.SetPreferences(r.Context(), &profile); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "preference update failed", err)
		return
	}
	respondJSON(w, http.StatusOK, &profile)
}

func canManagePreferences(identity models.Identity, userID string) bool {
	if identity.UserID == userID {
		return true
	}
	return identity.Role == models.RoleAdmin || identity.Role == models.RoleManager
}
