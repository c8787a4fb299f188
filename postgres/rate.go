package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.RateRepository = (*RateRepository)(nil)

type RateRepository struct {
	db *sql.DB
}

func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

// ListRange returns the per-date overrides for [from, to).
func (r *RateRepository) ListRange(ctx context.Context, propertyID int64, from, to time.Time) ([]models.PropertyRate, error) {
	q := `SELECT id, property_id, date, price, min_stay, created_at, updated_at
		FROM property_rates
		WHERE property_id = $1 AND date >= $2 AND date < $3
		ORDER BY date`

	rows, err := r.db.QueryContext(ctx, q, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("select rates: %w", err)
	}
	defer rows.Close()

	var out []models.PropertyRate

	for rows.Next() {
		var rate models.PropertyRate

		err := rows.Scan(&rate.ID, &rate.PropertyID, &rate.Date, &rate.Price,
			&rate.MinStay, &rate.CreatedAt, &rate.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}

		out = append(out, rate)
	}

	return out, rows.Err()
}
