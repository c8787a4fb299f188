package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.IntegrationRepository = (*IntegrationRepository)(nil)

type IntegrationRepository struct {
	db *gorm.DB
}

func (r *IntegrationRepository) Get(ctx context.Context, id int64) (*models.Integration, error) {
	var dbo integration

	if err := r.db.WithContext(ctx).First(&dbo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return dbo.toModel(), nil
}

func (r *IntegrationRepository) GetByListing(ctx context.Context, platform, remoteListingID string) (*models.Integration, error) {
	var dbo integration

	err := r.db.WithContext(ctx).
		Where("platform = ? AND remote_listing_id = ? AND is_active", platform, remoteListingID).
		Order("id DESC").
		First(&dbo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}

		return nil, err
	}

	return dbo.toModel(), nil
}

func (r *IntegrationRepository) ActiveByUser(ctx context.Context, userID int64, platform string) ([]*models.Integration, error) {
	var dbos []integration

	err := r.db.WithContext(ctx).
		Joins("JOIN properties ON properties.id = integrations.property_id").
		Where("properties.user_id = ? AND integrations.platform = ? AND integrations.is_active", userID, platform).
		Order("integrations.id").
		Find(&dbos).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.Integration, len(dbos))
	for i := range dbos {
		out[i] = dbos[i].toModel()
	}

	return out, nil
}

func (r *IntegrationRepository) Save(ctx context.Context, m *models.Integration) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.IsActive {
			err := tx.Model(&integration{}).
				Where("property_id = ? AND platform = ? AND is_active AND id <> ?", m.PropertyID, m.Platform, m.ID).
				Update("is_active", false).Error
			if err != nil {
				return err
			}
		}

		dbo := integrationFromModel(m)

		if dbo.ID == 0 {
			if err := tx.Create(&dbo).Error; err != nil {
				return err
			}

			m.ID = dbo.ID

			return nil
		}

		res := tx.Model(&integration{}).Where("id = ?", dbo.ID).Updates(map[string]any{
			"property_id":           dbo.PropertyID,
			"platform":              dbo.Platform,
			"remote_account_id":     dbo.RemoteAccountID,
			"remote_listing_id":     dbo.RemoteListingID,
			"access_token":          dbo.AccessToken,
			"refresh_token":         dbo.RefreshToken,
			"token_expires_at":      dbo.TokenExpiresAt,
			"scope":                 dbo.Scope,
			"markup_type":           dbo.MarkupType,
			"markup_value":          dbo.MarkupValue,
			"cancel_unpaid":         dbo.CancelUnpaid,
			"is_active":             dbo.IsActive,
			"is_enabled":            dbo.IsEnabled,
			"sync_interval_seconds": dbo.SyncIntervalSeconds,
		})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return models.ErrNotFound
		}

		return nil
	})
}

func (r *IntegrationRepository) UpdateTokens(ctx context.Context, id int64, access, refresh []byte, expiresAt time.Time, scope string) error {
	res := r.db.WithContext(ctx).Model(&integration{}).Where("id = ?", id).Updates(map[string]any{
		"access_token":     access,
		"refresh_token":    refresh,
		"token_expires_at": expiresAt,
		"scope":            scope,
	})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *IntegrationRepository) TouchLastSync(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&integration{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}
