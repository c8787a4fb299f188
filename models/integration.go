package models

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var ErrNotFound = errors.New("not found")

// Marketplace platforms.
const (
	PlatformAvito = "avito"
)

// Markup types as stored on the integration. The push arithmetic itself is
// driven by the sign of MarkupValue: negative values are a fixed currency
// adjustment, non-negative values a percentage.
const (
	MarkupPercent = "percent"
	MarkupFixed   = "fixed"
)

var (
	ErrInvalidAccountID = errors.New("remote account id must be 5-12 digits")
	ErrInvalidListingID = errors.New("remote listing id must be 8-13 digits")
)

var (
	accountIDPattern = regexp.MustCompile(`^[0-9]{5,12}$`)
	listingIDPattern = regexp.MustCompile(`^[0-9]{8,13}$`)
)

// Integration connects one property to one marketplace listing and carries
// the credentials and pricing rules used when syncing it.
type Integration struct {
	ID                  int64      `json:"id"`
	PropertyID          int64      `json:"property_id"`
	Platform            string     `json:"platform"`
	RemoteAccountID     string     `json:"remote_account_id"`
	RemoteListingID     string     `json:"remote_listing_id"`
	AccessToken         []byte     `json:"-"` // Stored encrypted
	RefreshToken        []byte     `json:"-"` // Stored encrypted
	TokenExpiresAt      time.Time  `json:"token_expires_at"`
	Scope               string     `json:"scope"`
	MarkupType          string     `json:"markup_type"`
	MarkupValue         float64    `json:"markup_value"`
	CancelUnpaid        bool       `json:"cancel_unpaid"`
	IsActive            bool       `json:"is_active"`
	IsEnabled           bool       `json:"is_enabled"`
	SyncIntervalSeconds int        `json:"sync_interval_seconds"`
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SyncInterval returns the configured cadence, falling back to the default.
func (i *Integration) SyncInterval() time.Duration {
	if i.SyncIntervalSeconds <= 0 {
		return DefaultSyncInterval
	}

	return time.Duration(i.SyncIntervalSeconds) * time.Second
}

// ValidateRemoteIDs checks the marketplace identifier formats. It runs before
// any marketplace call so malformed integrations fail without network traffic.
func (i *Integration) ValidateRemoteIDs() error {
	if !accountIDPattern.MatchString(i.RemoteAccountID) {
		return ErrInvalidAccountID
	}

	if !listingIDPattern.MatchString(i.RemoteListingID) {
		return ErrInvalidListingID
	}

	return nil
}

// IntegrationRepository manages marketplace integrations
type IntegrationRepository interface {
	Get(ctx context.Context, id int64) (*Integration, error)
	GetByListing(ctx context.Context, platform, remoteListingID string) (*Integration, error)
	ActiveByUser(ctx context.Context, userID int64, platform string) ([]*Integration, error)
	// Save upserts by (property, platform), deactivating any previous active row.
	Save(ctx context.Context, integration *Integration) error
	UpdateTokens(ctx context.Context, id int64, access, refresh []byte, expiresAt time.Time, scope string) error
	TouchLastSync(ctx context.Context, id int64, at time.Time) error
}
