package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var (
	_ models.PropertyRepository = (*PropertyRepository)(nil)
	_ models.RateRepository     = (*RateRepository)(nil)
)

type PropertyRepository struct {
	db *gorm.DB
}

func (r *PropertyRepository) Get(ctx context.Context, id int64) (*models.Property, error) {
	var dbo property

	if err := r.db.WithContext(ctx).First(&dbo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return dbo.toModel(), nil
}

type RateRepository struct {
	db *gorm.DB
}

func (r *RateRepository) ListRange(ctx context.Context, propertyID int64, from, to time.Time) ([]models.PropertyRate, error) {
	var dbos []propertyRate

	err := r.db.WithContext(ctx).
		Where("property_id = ? AND date >= ? AND date < ?", propertyID, from, to).
		Order("date").
		Find(&dbos).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.PropertyRate, len(dbos))
	for i := range dbos {
		out[i] = dbos[i].toModel()
	}

	return out, nil
}
