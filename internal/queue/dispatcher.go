// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package queue

import (
	"context"

	"github.com/pharmex/relay/internal/models"
)

// Dispatcher delivers one type-group of a batch. A returned error fails the
// whole group: every item is requeued at a degraded priority (bounded by the
// retry cutoff), and other groups in the same batch are unaffected.
type Dispatcher interface {
	Dispatch(ctx context.Context, notificationType string, items []*models.NotificationItem) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, notificationType string, items []*models.NotificationItem) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, notificationType string, items []*models.NotificationItem) error {
	return f(ctx, notificationType, items)
}
