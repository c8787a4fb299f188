package tasks

import (
	"encoding/json"
	"fmt"
)

// Task types.
const (
	TypeSyncIntegration = "sync:integration"
	TypeHealthCheck     = "health:check"
	TypeConnectionTest  = "connection:test"
)

// Queue names, matching config.DefaultQueuePriorities.
const (
	QueueLow      = "low"
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// Sync trigger reasons carried in the payload for the audit trail.
const (
	ReasonWebhook  = "webhook"
	ReasonManual   = "manual"
	ReasonSchedule = "schedule"
)

// SyncPayload asks the worker to sync one integration now.
type SyncPayload struct {
	IntegrationID int64  `json:"integration_id"`
	Reason        string `json:"reason,omitempty"`
}

// MarshalSyncPayload encodes a sync task payload.
func MarshalSyncPayload(integrationID int64, reason string) ([]byte, error) {
	return json.Marshal(SyncPayload{IntegrationID: integrationID, Reason: reason})
}

// ParseSyncPayload decodes and validates a sync task payload.
func ParseSyncPayload(data []byte) (SyncPayload, error) {
	var p SyncPayload

	if err := json.Unmarshal(data, &p); err != nil {
		return SyncPayload{}, fmt.Errorf("decode sync payload: %w", err)
	}

	if p.IntegrationID == 0 {
		return SyncPayload{}, fmt.Errorf("sync payload missing integration_id")
	}

	return p, nil
}
