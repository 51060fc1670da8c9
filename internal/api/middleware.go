// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pharmex/relay/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Authenticate verifies the bearer token and stores the caller's identity in
// the request context. Requests without a valid token never reach a handler.
func (router *Router) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "missing bearer token", nil)
			return
		}
		identity, err := router.jwt.VerifyToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "AUTH_INVALID", "invalid or expired token", err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the authenticated identity placed by Authenticate.
func identityFrom(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return ""
}
