package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.BookingRepository = (*BookingRepository)(nil)

type BookingRepository struct {
	db *gorm.DB
}

func (r *BookingRepository) GetByRemoteID(ctx context.Context, platform, remoteID string) (*models.Booking, error) {
	var dbo booking

	err := r.db.WithContext(ctx).
		Where("platform = ? AND remote_id = ?", platform, remoteID).
		First(&dbo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return dbo.toModel(), nil
}

func (r *BookingRepository) Upsert(ctx context.Context, m *models.Booking) (bool, error) {
	dbo := bookingFromModel(m)

	if m.Platform == "" || m.RemoteID == "" {
		if err := r.db.WithContext(ctx).Create(&dbo).Error; err != nil {
			return false, err
		}

		m.ID = dbo.ID

		return true, nil
	}

	var created bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing booking

		err := tx.Where("platform = ? AND remote_id = ?", m.Platform, m.RemoteID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true

			return tx.Create(&dbo).Error
		case err != nil:
			return err
		default:
			dbo.ID = existing.ID
			dbo.CreatedAt = existing.CreatedAt

			return tx.Save(&dbo).Error
		}
	})
	if err != nil {
		return false, err
	}

	m.ID = dbo.ID

	return created, nil
}

func (r *BookingRepository) CancelByRemoteID(ctx context.Context, platform, remoteID string) error {
	res := r.db.WithContext(ctx).Model(&booking{}).
		Where("platform = ? AND remote_id = ?", platform, remoteID).
		Update("status", models.BookingCancelled)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID int64, filter models.BookingFilter) ([]models.Booking, error) {
	db := r.db.WithContext(ctx).Where("property_id = ?", propertyID)

	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}

	if !filter.CheckOutAfter.IsZero() {
		db = db.Where("check_out > ?", filter.CheckOutAfter)
	}

	if filter.ExcludeSource != "" {
		db = db.Where("source <> ?", filter.ExcludeSource)
	}

	if filter.ExcludeID != 0 {
		db = db.Where("id <> ?", filter.ExcludeID)
	}

	var dbos []booking

	if err := db.Order("check_in, id").Find(&dbos).Error; err != nil {
		return nil, err
	}

	out := make([]models.Booking, len(dbos))
	for i := range dbos {
		out[i] = *dbos[i].toModel()
	}

	return out, nil
}
