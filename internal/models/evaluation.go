// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package models

// EvaluationReason explains an evaluation outcome.
type EvaluationReason string

const (
	// ReasonCriticalOverride: emergency/critical bypassed all suppression.
	ReasonCriticalOverride EvaluationReason = "critical_override"

	// ReasonGlobalDisabled: the user turned notifications off entirely.
	ReasonGlobalDisabled EvaluationReason = "global_disabled"

	// ReasonQuietHours: suppressed by the user's quiet-hours window.
	ReasonQuietHours EvaluationReason = "quiet_hours"

	// ReasonRoleOverride: mandatory operational alert for an administrative role.
	ReasonRoleOverride EvaluationReason = "role_override"

	// ReasonPreferenceMatch: delivered through the user's configured channels.
	ReasonPreferenceMatch EvaluationReason = "preference_match"

	// ReasonPriorityFiltered: below the category's minimum priority floor.
	ReasonPriorityFiltered EvaluationReason = "priority_filtered"

	// ReasonCategoryDisabled: the notification's category is switched off.
	ReasonCategoryDisabled EvaluationReason = "category_disabled"

	// ReasonNoChannels: eligible to deliver but no channel could carry it.
	ReasonNoChannels EvaluationReason = "no_channels"
)

// EvaluationResult is the transient outcome of one preference evaluation.
type EvaluationResult struct {
	UserID        string           `json:"user_id"`
	ShouldDeliver bool             `json:"should_deliver"`
	Channels      []Channel        `json:"channels"`
	Reason        EvaluationReason `json:"reason"`
}

// BulkEvaluationSummary aggregates a bulk evaluation.
type BulkEvaluationSummary struct {
	Total            int `json:"total"`
	ShouldDeliver    int `json:"should_deliver"`
	ShouldNotDeliver int `json:"should_not_deliver"`
}

// BulkEvaluationResult holds per-user results plus the aggregate counts.
// Per-user results are identical to calling Evaluate for each user alone.
type BulkEvaluationResult struct {
	Results []EvaluationResult    `json:"results"`
	Summary BulkEvaluationSummary `json:"summary"`
}
