package avito_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts: retry.Default.MaxAttempts,
	BaseDelay:   time.Millisecond,
	MaxDelay:    5 * time.Millisecond,
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *avito.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return avito.NewClient(srv.URL, avito.WithRetryPolicy(fastPolicy))
}

func TestClientRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	err := client.PushBaseParams(context.Background(), "token", "123456", "1234567890", avito.BaseParams{
		NightPrice:      1000,
		MinimalDuration: 2,
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, calls.Load(), "three rate-limited tries, success on the fourth")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	err := client.PushPriceRanges(context.Background(), "token", "123456", "1234567890", []avito.PriceRange{
		{DateFrom: "2025-11-17", DateTo: "2025-11-19", NightPrice: 1200, MinimalDuration: 1},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestClientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := client.PushBaseParams(context.Background(), "token", "123456", "1234567890", avito.BaseParams{})
	require.Error(t, err)
	require.True(t, avito.IsRateLimited(err))
	require.EqualValues(t, fastPolicy.MaxAttempts, calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"bad_range","message":"date_from after date_to"}}`))
	})

	err := client.PushPriceRanges(context.Background(), "token", "123456", "1234567890", nil)
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())

	var apiErr *avito.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "bad_range", apiErr.Code)
	require.Equal(t, "date_from after date_to", apiErr.Message)
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	err := client.PushBaseParams(context.Background(), "secret-token", "123456", "1234567890", avito.BaseParams{})
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-token", gotAuth)
}

func TestClientUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := client.PushBaseParams(context.Background(), "stale", "123456", "1234567890", avito.BaseParams{})
	require.True(t, avito.IsUnauthorized(err))
}

func TestPushBlockedIntervalsClearAll(t *testing.T) {
	var gotBody string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	})

	err := client.PushBlockedIntervals(context.Background(), "token", "123456", "1234567890", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"intervals":[]}`, gotBody, "clearing all blocks must send an empty list, not null")
}

func TestListBookings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2025-11-01", r.URL.Query().Get("date_start"))
		require.Equal(t, "true", r.URL.Query().Get("with_unpaid"))
		require.Equal(t, "100", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bookings":[
			{"id":9001,"check_in":"2025-11-17","check_out":"2025-11-20","status":"active",
			 "contacts":{"name":"Ivan Petrov","phone":"8 900 123-45-67"}},
			{"id":9002,"check_in":"2025-12-01","check_out":"2025-12-03","status":"pending",
			 "customer":{"first_name":"Anna","last_name":"S."}}
		]}`))
	})

	got, err := client.ListBookings(context.Background(), "token", "123456", "1234567890", avito.BookingsQuery{
		DateStart:  time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:    time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		Limit:      100,
		WithUnpaid: true,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.EqualValues(t, 9001, got[0].ID)
	require.Equal(t, "Ivan Petrov", got[0].Contacts.Name)
	require.Equal(t, "Anna", got[1].Customer.FirstName)
}

func TestListBookingsNotFoundMeansEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	got, err := client.ListBookings(context.Background(), "token", "123456", "1234567890", avito.BookingsQuery{
		DateStart: time.Now(),
		DateEnd:   time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCancelBookingConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"already_paid","message":"booking is paid"}}`))
	})

	err := client.CancelBooking(context.Background(), "token", "123456", "1234567890", 9001)
	require.Error(t, err)
	require.True(t, avito.IsConflict(err))
}
