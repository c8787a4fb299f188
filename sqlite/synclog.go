package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.SyncLogRepository = (*SyncLogRepository)(nil)

type SyncLogRepository struct {
	db *gorm.DB
}

func (r *SyncLogRepository) Append(ctx context.Context, entry *models.SyncLog) error {
	dbo := syncLog{
		IntegrationID: entry.IntegrationID,
		RunID:         entry.RunID,
		Action:        entry.Action,
		Status:        entry.Status,
		Detail:        entry.Detail,
	}

	if err := r.db.WithContext(ctx).Create(&dbo).Error; err != nil {
		return err
	}

	entry.ID = dbo.ID
	entry.CreatedAt = dbo.CreatedAt

	return nil
}

func (r *SyncLogRepository) ListByIntegration(ctx context.Context, integrationID int64, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var dbos []syncLog

	err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("id DESC").
		Limit(limit).
		Find(&dbos).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.SyncLog, len(dbos))
	for i := range dbos {
		out[i] = dbos[i].toModel()
	}

	return out, nil
}
