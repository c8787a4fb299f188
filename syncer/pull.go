package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

// pullBookings fetches the marketplace's bookings for the next year and
// upserts them locally, keyed by remote id. Malformed records are counted
// and skipped, never fatal.
func (e *Engine) pullBookings(ctx context.Context, r *run) error {
	limit := r.opts.PullLimit
	if limit <= 0 {
		limit = defaultPullLimit
	}

	query := avito.BookingsQuery{
		DateStart:  today(),
		DateEnd:    today().AddDate(1, 0, 0),
		Limit:      limit,
		Offset:     r.opts.PullOffset,
		WithUnpaid: true,
	}

	var remote []avito.Booking

	err := r.auth.call(ctx, func(token string) error {
		var listErr error
		remote, listErr = e.api.ListBookings(ctx, token, r.integration.RemoteAccountID, r.integration.RemoteListingID, query)

		return listErr
	})
	if err != nil {
		r.result.fail(OpPullBookings, err)

		return err
	}

	stats := &r.result.Pull
	stats.Fetched = len(remote)

	storeFailures := 0

	for _, rb := range remote {
		booking, ok := e.convertRemoteBooking(r, rb)
		if !ok {
			stats.Skipped++

			continue
		}

		created, err := e.stores.Bookings.Upsert(ctx, booking)
		if err != nil {
			storeFailures++

			e.logger.Warn("booking upsert failed",
				zap.Int64("integration_id", r.integration.ID),
				zap.String("remote_id", booking.RemoteID),
				zap.Error(err))

			continue
		}

		if created {
			stats.Created++
		} else {
			stats.Updated++
		}

		if r.integration.CancelUnpaid && rb.Status == avito.BookingStatusPending {
			e.cancelUnpaid(ctx, r, rb)
		}
	}

	if storeFailures > 0 {
		err := fmt.Errorf("%d of %d bookings failed to store", storeFailures, len(remote))
		r.result.fail(OpPullBookings, err)

		return err
	}

	r.result.ok(OpPullBookings, fmt.Sprintf("fetched=%d created=%d updated=%d skipped=%d",
		stats.Fetched, stats.Created, stats.Updated, stats.Skipped))

	return nil
}

// RemoteBooking maps a marketplace record onto the local model. Records
// without an id or a parseable, non-inverted date window are rejected.
// Shared with webhook ingestion so both paths store identical rows.
func RemoteBooking(rb avito.Booking, propertyID int64, platform string) (*models.Booking, error) {
	if rb.ID == 0 {
		return nil, errors.New("booking id missing")
	}

	checkIn, errIn := time.ParseInLocation(avito.DateFormat, rb.CheckIn, time.UTC)
	checkOut, errOut := time.ParseInLocation(avito.DateFormat, rb.CheckOut, time.UTC)

	if errIn != nil || errOut != nil || !checkOut.After(checkIn) {
		return nil, fmt.Errorf("unusable stay window %q to %q", rb.CheckIn, rb.CheckOut)
	}

	name, phone, email := ExtractGuest(rb)

	return &models.Booking{
		PropertyID: propertyID,
		Platform:   platform,
		RemoteID:   strconv.FormatInt(rb.ID, 10),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestName:  name,
		GuestPhone: phone,
		GuestEmail: email,
		Status:     mapRemoteStatus(rb.Status),
		Source:     platform,
		TotalPrice: rb.BasePrice,
	}, nil
}

func (e *Engine) convertRemoteBooking(r *run, rb avito.Booking) (*models.Booking, bool) {
	booking, err := RemoteBooking(rb, r.property.ID, r.integration.Platform)
	if err != nil {
		e.logger.Debug("skipping unusable remote booking",
			zap.Int64("integration_id", r.integration.ID),
			zap.Int64("remote_id", rb.ID),
			zap.Error(err))

		return nil, false
	}

	return booking, true
}

// cancelUnpaid courteously cancels a still-unpaid remote booking. A 409
// means it got paid in the meantime: expected, the booking stays. Other
// failures are warnings; the next run retries.
func (e *Engine) cancelUnpaid(ctx context.Context, r *run, rb avito.Booking) {
	err := r.auth.call(ctx, func(token string) error {
		return e.api.CancelBooking(ctx, token, r.integration.RemoteAccountID, r.integration.RemoteListingID, rb.ID)
	})

	remoteID := strconv.FormatInt(rb.ID, 10)

	switch {
	case err == nil:
		r.result.Pull.Cancelled++

		if cancelErr := e.stores.Bookings.CancelByRemoteID(ctx, r.integration.Platform, remoteID); cancelErr != nil {
			e.logger.Warn("local cancel after remote cancel failed",
				zap.String("remote_id", remoteID), zap.Error(cancelErr))
		}

		e.logger.Info("unpaid booking cancelled",
			zap.Int64("integration_id", r.integration.ID), zap.String("remote_id", remoteID))
	case avito.IsConflict(err):
		e.logger.Debug("unpaid booking already paid, keeping it",
			zap.Int64("integration_id", r.integration.ID), zap.String("remote_id", remoteID))
	default:
		r.result.warn(OpCancelUnpaid, statusOf(err), fmt.Sprintf("booking %s: %v", remoteID, err))
	}
}

func statusOf(err error) int {
	var apiErr *avito.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}

func mapRemoteStatus(remote string) string {
	switch remote {
	case avito.BookingStatusActive:
		return models.BookingConfirmed
	case avito.BookingStatusCanceled:
		return models.BookingCancelled
	case avito.BookingStatusPending:
		return models.BookingPending
	default:
		return models.BookingPending
	}
}
