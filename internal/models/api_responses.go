// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

import "time"

// APIResponse is the envelope every REST endpoint returns.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing context.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable error payload. Code is stable across
// releases; Message is for humans and may change.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SubmissionData acknowledges an accepted notification. The submission ID
// identifies the bus message; queue IDs are assigned later, per recipient.
type SubmissionData struct {
	SubmissionID string `json:"submissionId"`
	Recipients   int    `json:"recipients"`
}
