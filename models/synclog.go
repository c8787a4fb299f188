package models

import (
	"context"
	"time"
)

// Sync log statuses.
const (
	LogOK      = "ok"
	LogWarning = "warning"
	LogError   = "error"
)

// SyncLog is one append-only audit record: which operation ran, how it
// ended, and enough detail (HTTP status, vendor message) to debug it later.
type SyncLog struct {
	ID            int64     `json:"id"`
	IntegrationID int64     `json:"integration_id"`
	RunID         string    `json:"run_id"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SyncLogRepository appends and reads audit records
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLog) error
	ListByIntegration(ctx context.Context, integrationID int64, limit int) ([]SyncLog, error)
}
