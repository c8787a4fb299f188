package models

import (
	"context"
	"time"
)

// Property is a rental unit. BasePrice and MinStay are the listing-level
// defaults used for dates without a per-date rate override.
type Property struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	BasePrice float64   `json:"base_price"`
	MinStay   int       `json:"min_stay"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PropertyRepository reads properties
type PropertyRepository interface {
	Get(ctx context.Context, id int64) (*Property, error)
}
