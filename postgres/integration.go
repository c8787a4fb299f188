package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.IntegrationRepository = (*IntegrationRepository)(nil)

type IntegrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

const integrationColumns = `
	id, property_id, platform, remote_account_id, remote_listing_id,
	access_token, refresh_token, token_expires_at, scope,
	markup_type, markup_value, cancel_unpaid, is_active, is_enabled,
	sync_interval_seconds, last_sync_at, created_at, updated_at`

func (r *IntegrationRepository) Get(ctx context.Context, id int64) (*models.Integration, error) {
	q := `SELECT` + integrationColumns + ` FROM integrations WHERE id = $1`

	return scanIntegration(r.db.QueryRowContext(ctx, q, id))
}

func (r *IntegrationRepository) GetByListing(ctx context.Context, platform, remoteListingID string) (*models.Integration, error) {
	q := `SELECT` + integrationColumns + ` FROM integrations
		WHERE platform = $1 AND remote_listing_id = $2 AND is_active
		ORDER BY id DESC LIMIT 1`

	return scanIntegration(r.db.QueryRowContext(ctx, q, platform, remoteListingID))
}

func (r *IntegrationRepository) ActiveByUser(ctx context.Context, userID int64, platform string) ([]*models.Integration, error) {
	q := `SELECT i.id, i.property_id, i.platform, i.remote_account_id, i.remote_listing_id,
			i.access_token, i.refresh_token, i.token_expires_at, i.scope,
			i.markup_type, i.markup_value, i.cancel_unpaid, i.is_active, i.is_enabled,
			i.sync_interval_seconds, i.last_sync_at, i.created_at, i.updated_at
		FROM integrations i
		JOIN properties p ON p.id = i.property_id
		WHERE p.user_id = $1 AND i.platform = $2 AND i.is_active
		ORDER BY i.id`

	rows, err := r.db.QueryContext(ctx, q, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("select active integrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Integration

	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, integration)
	}

	return out, rows.Err()
}

// Save upserts the integration. Any other active row for the same property
// and platform is deactivated first, keeping the partial unique index happy.
func (r *IntegrationRepository) Save(ctx context.Context, integration *models.Integration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if integration.IsActive {
		deactivate := `UPDATE integrations SET is_active = FALSE, updated_at = NOW()
			WHERE property_id = $1 AND platform = $2 AND is_active AND id <> $3`

		if _, err := tx.ExecContext(ctx, deactivate, integration.PropertyID, integration.Platform, integration.ID); err != nil {
			return fmt.Errorf("deactivate previous integration: %w", err)
		}
	}

	if integration.ID == 0 {
		insert := `INSERT INTO integrations
			(property_id, platform, remote_account_id, remote_listing_id,
			 access_token, refresh_token, token_expires_at, scope,
			 markup_type, markup_value, cancel_unpaid, is_active, is_enabled,
			 sync_interval_seconds, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
			RETURNING id`

		err = tx.QueryRowContext(ctx, insert,
			integration.PropertyID, integration.Platform,
			integration.RemoteAccountID, integration.RemoteListingID,
			integration.AccessToken, integration.RefreshToken,
			integration.TokenExpiresAt, integration.Scope,
			integration.MarkupType, integration.MarkupValue,
			integration.CancelUnpaid, integration.IsActive, integration.IsEnabled,
			integration.SyncIntervalSeconds,
		).Scan(&integration.ID)
		if err != nil {
			return fmt.Errorf("insert integration: %w", err)
		}
	} else {
		update := `UPDATE integrations SET
			property_id = $2, platform = $3, remote_account_id = $4, remote_listing_id = $5,
			access_token = $6, refresh_token = $7, token_expires_at = $8, scope = $9,
			markup_type = $10, markup_value = $11, cancel_unpaid = $12,
			is_active = $13, is_enabled = $14, sync_interval_seconds = $15,
			updated_at = NOW()
			WHERE id = $1`

		result, err := tx.ExecContext(ctx, update,
			integration.ID, integration.PropertyID, integration.Platform,
			integration.RemoteAccountID, integration.RemoteListingID,
			integration.AccessToken, integration.RefreshToken,
			integration.TokenExpiresAt, integration.Scope,
			integration.MarkupType, integration.MarkupValue,
			integration.CancelUnpaid, integration.IsActive, integration.IsEnabled,
			integration.SyncIntervalSeconds,
		)
		if err != nil {
			return fmt.Errorf("update integration: %w", err)
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return models.ErrNotFound
		}
	}

	return tx.Commit()
}

func (r *IntegrationRepository) UpdateTokens(ctx context.Context, id int64, access, refresh []byte, expiresAt time.Time, scope string) error {
	q := `UPDATE integrations SET
		access_token = $2, refresh_token = $3, token_expires_at = $4, scope = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, q, id, access, refresh, expiresAt, scope)
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *IntegrationRepository) TouchLastSync(ctx context.Context, id int64, at time.Time) error {
	q := `UPDATE integrations SET last_sync_at = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.ExecContext(ctx, q, id, at)

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row rowScanner) (*models.Integration, error) {
	var (
		i          models.Integration
		expiresAt  sql.NullTime
		lastSyncAt sql.NullTime
	)

	err := row.Scan(
		&i.ID, &i.PropertyID, &i.Platform, &i.RemoteAccountID, &i.RemoteListingID,
		&i.AccessToken, &i.RefreshToken, &expiresAt, &i.Scope,
		&i.MarkupType, &i.MarkupValue, &i.CancelUnpaid, &i.IsActive, &i.IsEnabled,
		&i.SyncIntervalSeconds, &lastSyncAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, fmt.Errorf("scan integration: %w", err)
	}

	if expiresAt.Valid {
		i.TokenExpiresAt = expiresAt.Time
	}

	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		i.LastSyncAt = &t
	}

	return &i, nil
}
