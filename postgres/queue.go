package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

// staleProcessingAge is how long a processing row may sit before another
// poller reclaims it. Covers pollers that died mid-batch.
const staleProcessingAge = 15 * time.Minute

var _ models.SyncQueueRepository = (*SyncQueueRepository)(nil)

type SyncQueueRepository struct {
	db *sql.DB
}

func NewSyncQueueRepository(db *sql.DB) *SyncQueueRepository {
	return &SyncQueueRepository{db: db}
}

func (r *SyncQueueRepository) Ensure(ctx context.Context, integrationID int64, nextSyncAt time.Time) error {
	q := `INSERT INTO sync_queue (integration_id, status, next_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (integration_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, q, integrationID, models.SyncPending, nextSyncAt)
	if err != nil {
		return fmt.Errorf("ensure sync queue item: %w", err)
	}

	return nil
}

// ClaimDue marks up to limit due items as processing and returns them.
// SKIP LOCKED keeps concurrent pollers off each other's rows; processing
// rows untouched for staleProcessingAge count as due again.
func (r *SyncQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.SyncQueueItem, error) {
	q := `
	WITH claimed AS (
		UPDATE sync_queue
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM sync_queue
			WHERE (status = $2 AND next_sync_at <= $3)
			   OR (status = $1 AND updated_at <= $4)
			ORDER BY next_sync_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $5
		)
		RETURNING id, integration_id, status, next_sync_at, created_at, updated_at
	)
	SELECT id, integration_id, status, next_sync_at, created_at, updated_at
	FROM claimed ORDER BY next_sync_at ASC`

	rows, err := r.db.QueryContext(ctx, q,
		models.SyncProcessing, models.SyncPending, now, now.Add(-staleProcessingAge), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due sync items: %w", err)
	}
	defer rows.Close()

	var out []models.SyncQueueItem

	for rows.Next() {
		var item models.SyncQueueItem

		err := rows.Scan(&item.ID, &item.IntegrationID, &item.Status,
			&item.NextSyncAt, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan sync queue item: %w", err)
		}

		out = append(out, item)
	}

	return out, rows.Err()
}

func (r *SyncQueueRepository) Reschedule(ctx context.Context, id int64, nextSyncAt time.Time) error {
	q := `UPDATE sync_queue SET status = $2, next_sync_at = $3, updated_at = NOW() WHERE id = $1`

	_, err := r.db.ExecContext(ctx, q, id, models.SyncPending, nextSyncAt)
	if err != nil {
		return fmt.Errorf("reschedule sync item %d: %w", id, err)
	}

	return nil
}

func (r *SyncQueueRepository) Release(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, models.SyncPending)

	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	q := `UPDATE sync_queue SET status = $1, updated_at = NOW()
		WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	_, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("release sync items: %w", err)
	}

	return nil
}
