package models

import (
	"context"
	"time"
)

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingPending   = "pending"
	BookingCancelled = "cancelled"
)

// Booking sources.
const (
	SourceAvito  = "avito"
	SourceManual = "manual"
	SourceImport = "import"
)

// Booking is a stay at a property. CheckIn and CheckOut are date-only values
// normalized to midnight UTC; the stay occupies the nights in
// [CheckIn, CheckOut), so the checkout day itself stays free.
type Booking struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	Platform   string    `json:"platform,omitempty"`  // empty for local bookings
	RemoteID   string    `json:"remote_id,omitempty"` // marketplace booking id
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	GuestName  string    `json:"guest_name"`
	GuestPhone string    `json:"guest_phone,omitempty"`
	GuestEmail string    `json:"guest_email,omitempty"`
	Status     string    `json:"status"`
	Source     string    `json:"source"`
	TotalPrice float64   `json:"total_price,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BookingFilter narrows ListByProperty results.
type BookingFilter struct {
	Statuses      []string
	CheckOutAfter time.Time
	ExcludeSource string
	ExcludeID     int64
}

// BookingRepository manages bookings. Upsert keys marketplace bookings by
// (platform, remote id) so repeated pulls of the same record are idempotent.
type BookingRepository interface {
	GetByRemoteID(ctx context.Context, platform, remoteID string) (*Booking, error)
	Upsert(ctx context.Context, booking *Booking) (created bool, err error)
	// CancelByRemoteID soft-cancels: the row is kept with status cancelled.
	CancelByRemoteID(ctx context.Context, platform, remoteID string) error
	ListByProperty(ctx context.Context, propertyID int64, filter BookingFilter) ([]Booking, error)
}
