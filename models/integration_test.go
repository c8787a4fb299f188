package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/internal/testutils"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

func TestIntegrationValidateRemoteIDs(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		listingID string
		wantErr   error
	}{
		{
			name:      "valid ids",
			accountID: "123456",
			listingID: "1234567890",
		},
		{
			name:      "account id too short",
			accountID: "1234",
			listingID: "1234567890",
			wantErr:   models.ErrInvalidAccountID,
		},
		{
			name:      "account id with letters",
			accountID: "12a456",
			listingID: "1234567890",
			wantErr:   models.ErrInvalidAccountID,
		},
		{
			name:      "empty account id",
			accountID: "",
			listingID: "1234567890",
			wantErr:   models.ErrInvalidAccountID,
		},
		{
			name:      "listing id too short",
			accountID: "123456",
			listingID: "1234567",
			wantErr:   models.ErrInvalidListingID,
		},
		{
			name:      "listing id too long",
			accountID: "123456",
			listingID: "12345678901234",
			wantErr:   models.ErrInvalidListingID,
		},
		{
			name:      "listing id with spaces",
			accountID: "123456",
			listingID: " 123456789",
			wantErr:   models.ErrInvalidListingID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integration := &models.Integration{
				RemoteAccountID: tt.accountID,
				RemoteListingID: tt.listingID,
			}

			err := integration.ValidateRemoteIDs()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestValidateRemoteIDsAcceptsAllLengthsInRange(t *testing.T) {
	for digits := 5; digits <= 12; digits++ {
		accountID := testutils.RandomDigits(digits)
		integration := &models.Integration{
			RemoteAccountID: accountID,
			RemoteListingID: testutils.RandomDigits(10),
		}

		require.NoError(t, integration.ValidateRemoteIDs(), "account id %q", accountID)
	}

	for digits := 8; digits <= 13; digits++ {
		listingID := testutils.RandomDigits(digits)
		integration := &models.Integration{
			RemoteAccountID: testutils.RandomDigits(6),
			RemoteListingID: listingID,
		}

		require.NoError(t, integration.ValidateRemoteIDs(), "listing id %q", listingID)
	}
}

func TestApplyMarkup(t *testing.T) {
	tests := []struct {
		name   string
		base   float64
		markup float64
		want   int
	}{
		{name: "fixed negative adjustment", base: 1000, markup: -200, want: 800},
		{name: "percentage", base: 1000, markup: 20, want: 1200},
		{name: "zero markup", base: 1000, markup: 0, want: 1000},
		{name: "fractional percentage rounds", base: 999, markup: 10, want: 1099},
		{name: "floor at one", base: 100, markup: -500, want: 1},
		{name: "zero base floors", base: 0, markup: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, models.ApplyMarkup(tt.base, tt.markup))
		})
	}
}

func TestIntegrationSyncInterval(t *testing.T) {
	i := &models.Integration{}
	require.Equal(t, models.DefaultSyncInterval, i.SyncInterval())

	i.SyncIntervalSeconds = 300
	require.Equal(t, 5*time.Minute, i.SyncInterval())
}
