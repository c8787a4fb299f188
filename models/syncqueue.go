package models

import (
	"context"
	"time"
)

// Sync queue item statuses.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
)

// DefaultSyncInterval is the cadence for integrations without an explicit
// sync_interval_seconds.
const DefaultSyncInterval = 10 * time.Second

// MinFailureBackoff is the minimum delay before a failed integration is
// synced again, however short its configured interval.
const MinFailureBackoff = 60 * time.Second

// SyncQueueItem schedules one integration. A row is created when the
// integration activates and is rescheduled forever after; it is never
// deleted while the integration stays active.
type SyncQueueItem struct {
	ID            int64     `json:"id"`
	IntegrationID int64     `json:"integration_id"`
	Status        string    `json:"status"`
	NextSyncAt    time.Time `json:"next_sync_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SyncQueueRepository manages the sync schedule
type SyncQueueRepository interface {
	// Ensure creates the item for an integration if missing, due at nextSyncAt.
	Ensure(ctx context.Context, integrationID int64, nextSyncAt time.Time) error
	// ClaimDue atomically marks up to limit due pending items as processing
	// and returns them ordered by next_sync_at. Concurrent pollers never
	// claim the same item twice.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]SyncQueueItem, error)
	// Reschedule sets the item back to pending, due at nextSyncAt.
	Reschedule(ctx context.Context, id int64, nextSyncAt time.Time) error
	// Release returns claimed but unprocessed items to pending without
	// touching next_sync_at.
	Release(ctx context.Context, ids []int64) error
}
