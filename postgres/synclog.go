package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.SyncLogRepository = (*SyncLogRepository)(nil)

type SyncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Append(ctx context.Context, entry *models.SyncLog) error {
	q := `INSERT INTO sync_logs (integration_id, run_id, action, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, q,
		entry.IntegrationID, entry.RunID, entry.Action, entry.Status, entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append sync log: %w", err)
	}

	return nil
}

func (r *SyncLogRepository) ListByIntegration(ctx context.Context, integrationID int64, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT id, integration_id, run_id, action, status, detail, created_at
		FROM sync_logs WHERE integration_id = $1
		ORDER BY id DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("select sync logs: %w", err)
	}
	defer rows.Close()

	var out []models.SyncLog

	for rows.Next() {
		var entry models.SyncLog

		err := rows.Scan(&entry.ID, &entry.IntegrationID, &entry.RunID,
			&entry.Action, &entry.Status, &entry.Detail, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}

		out = append(out, entry)
	}

	return out, rows.Err()
}
