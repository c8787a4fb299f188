package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

// staleProcessingAge mirrors the postgres store: processing rows older than
// this are reclaimable after a crash.
const staleProcessingAge = 15 * time.Minute

var _ models.SyncQueueRepository = (*SyncQueueRepository)(nil)

type SyncQueueRepository struct {
	db *gorm.DB
}

func (r *SyncQueueRepository) Ensure(ctx context.Context, integrationID int64, nextSyncAt time.Time) error {
	dbo := syncQueueItem{
		IntegrationID: integrationID,
		Status:        models.SyncPending,
		NextSyncAt:    nextSyncAt,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "integration_id"}},
		DoNothing: true,
	}).Create(&dbo).Error
}

// ClaimDue marks due items processing inside one transaction. SQLite has
// no SKIP LOCKED; the embedded store runs a single poller, so the
// transaction alone keeps claims exclusive.
func (r *SyncQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.SyncQueueItem, error) {
	var claimed []syncQueueItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("(status = ? AND next_sync_at <= ?) OR (status = ? AND updated_at <= ?)",
				models.SyncPending, now, models.SyncProcessing, now.Add(-staleProcessingAge)).
			Order("next_sync_at ASC").
			Limit(limit).
			Find(&claimed).Error
		if err != nil {
			return err
		}

		if len(claimed) == 0 {
			return nil
		}

		ids := make([]int64, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].ID
		}

		return tx.Model(&syncQueueItem{}).
			Where("id IN ?", ids).
			Update("status", models.SyncProcessing).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.SyncQueueItem, len(claimed))

	for i := range claimed {
		item := claimed[i].toModel()
		item.Status = models.SyncProcessing
		out[i] = item
	}

	return out, nil
}

func (r *SyncQueueRepository) Reschedule(ctx context.Context, id int64, nextSyncAt time.Time) error {
	return r.db.WithContext(ctx).Model(&syncQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.SyncPending,
			"next_sync_at": nextSyncAt,
		}).Error
}

func (r *SyncQueueRepository) Release(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&syncQueueItem{}).
		Where("id IN ?", ids).
		Update("status", models.SyncPending).Error
}
