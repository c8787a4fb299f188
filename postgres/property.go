package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.PropertyRepository = (*PropertyRepository)(nil)

type PropertyRepository struct {
	db *sql.DB
}

func NewPropertyRepository(db *sql.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) Get(ctx context.Context, id int64) (*models.Property, error) {
	q := `SELECT id, user_id, name, base_price, min_stay, currency, is_active, created_at, updated_at
		FROM properties WHERE id = $1`

	var p models.Property

	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.BasePrice, &p.MinStay, &p.Currency,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, fmt.Errorf("scan property: %w", err)
	}

	return &p, nil
}
