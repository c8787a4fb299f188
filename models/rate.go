package models

import (
	"context"
	"time"
)

// PropertyRate overrides the nightly price and minimum stay for one date.
// Rates are produced elsewhere; the sync engine only reads them.
type PropertyRate struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	Date       time.Time `json:"date"` // date-only, midnight UTC
	Price      float64   `json:"price"`
	MinStay    int       `json:"min_stay"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RateRepository reads per-date rate overrides
type RateRepository interface {
	ListRange(ctx context.Context, propertyID int64, from, to time.Time) ([]PropertyRate, error)
}
