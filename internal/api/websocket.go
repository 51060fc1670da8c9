// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pharmex/relay/internal/hub"
	"github.com/pharmex/relay/internal/logging"
)

// WebSocket authenticates the handshake and hands the connection to the hub.
// Auth failures reject before the upgrade, so no client state is ever
// created for an unauthenticated caller.
func (router *Router) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		// Browsers cannot set headers on websocket dials; accept the token
		// as a query parameter there.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "missing token", nil)
		return
	}

	identity, err := router.jwt.VerifyToken(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "AUTH_INVALID", "invalid or expired token", err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      router.checkWebSocketOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Str("user_id", identity.UserID).Msg("websocket upgrade failed")
		return
	}

	hub.NewClient(router.hub, conn, identity).Start()
}

// checkWebSocketOrigin validates the Origin header against the configured
// CORS origins. Requests without an Origin header come from non-browser
// clients and are allowed; the token already gates access.
func (router *Router) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range router.corsOrigins() {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket origin rejected")
	return false
}
