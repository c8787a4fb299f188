package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

// pushPrices sends the coalesced per-date pricing for the next year.
func (e *Engine) pushPrices(ctx context.Context, r *run) error {
	from := today()

	rates, err := e.stores.Rates.ListRange(ctx, r.property.ID, from, from.AddDate(0, 0, pushWindowDays))
	if err != nil {
		err = fmt.Errorf("load rates: %w", err)
		r.result.fail(OpPushPrices, err)

		return err
	}

	ranges := BuildPriceRanges(effectiveDailyRates(r.property, rates, r.integration.MarkupValue, from, pushWindowDays))
	if len(ranges) == 0 {
		r.result.ok(OpPushPrices, "no priced dates to push")

		return nil
	}

	err = r.auth.call(ctx, func(token string) error {
		return e.api.PushPriceRanges(ctx, token, r.integration.RemoteAccountID, r.integration.RemoteListingID, ranges)
	})

	return e.recordPush(r.result, OpPushPrices, fmt.Sprintf("%d ranges", len(ranges)), err)
}

// pushBaseParams sends the listing-level default price and minimum stay,
// used by the marketplace for dates no range covers.
func (e *Engine) pushBaseParams(ctx context.Context, r *run) error {
	if r.property.BasePrice <= 0 {
		r.result.ok(OpPushBaseParams, "no base price configured")

		return nil
	}

	minStay := r.property.MinStay
	if minStay < 1 {
		minStay = 1
	}

	params := avito.BaseParams{
		NightPrice:      models.ApplyMarkup(r.property.BasePrice, r.integration.MarkupValue),
		MinimalDuration: minStay,
	}

	err := r.auth.call(ctx, func(token string) error {
		return e.api.PushBaseParams(ctx, token, r.integration.RemoteAccountID, r.integration.RemoteListingID, params)
	})

	return e.recordPush(r.result, OpPushBaseParams, fmt.Sprintf("night_price=%d", params.NightPrice), err)
}

// pushAvailability replaces the marketplace's blocked intervals with the
// nights occupied by confirmed local bookings. An empty set still goes out:
// that is the explicit clear-all.
func (e *Engine) pushAvailability(ctx context.Context, r *run) error {
	now := today()

	bookings, err := e.stores.Bookings.ListByProperty(ctx, r.property.ID, models.BookingFilter{
		Statuses:      []string{models.BookingConfirmed},
		CheckOutAfter: now,
		ExcludeID:     r.opts.ExcludeBookingID,
	})
	if err != nil {
		err = fmt.Errorf("load bookings: %w", err)
		r.result.fail(OpPushAvailability, err)

		return err
	}

	intervals := buildIntervals(bookings, now)

	err = r.auth.call(ctx, func(token string) error {
		return e.api.PushBlockedIntervals(ctx, token, r.integration.RemoteAccountID, r.integration.RemoteListingID, intervals)
	})

	// A conflict means the remote side holds a committed booking. Usually
	// expected; while reopening dates for a removed local booking it means
	// the user has to reconcile by hand, so it must surface as an error.
	if avito.IsConflict(err) {
		if r.opts.ExcludeBookingID != 0 {
			err = fmt.Errorf("marketplace holds a committed booking on reopened dates: %w", err)
			r.result.fail(OpPushAvailability, err)

			return err
		}

		r.result.warn(OpPushAvailability, statusOf(err), "remote calendar holds a committed booking")

		return nil
	}

	return e.recordPush(r.result, OpPushAvailability, fmt.Sprintf("%d intervals", len(intervals)), err)
}

// recordPush folds a push-step error: missing remote listing is survivable
// (the marketplace side may not be published yet), anything else is not.
func (e *Engine) recordPush(result *Result, op, detail string, err error) error {
	switch {
	case err == nil:
		result.ok(op, detail)
	case avito.IsNotFound(err):
		result.warn(op, 404, "listing not found on marketplace")
		e.logger.Debug("push skipped, remote listing missing", zap.String("op", op))
	default:
		result.fail(op, err)
	}

	return err
}

// buildIntervals converts bookings to blocked night intervals: check-in
// through checkout-exclusive, clamped to today, overlaps merged.
func buildIntervals(bookings []models.Booking, from time.Time) []avito.Interval {
	type span struct{ from, to time.Time }

	spans := make([]span, 0, len(bookings))

	for _, b := range bookings {
		start, end := b.CheckIn, b.CheckOut
		if start.Before(from) {
			start = from
		}

		if !end.After(start) {
			continue
		}

		spans = append(spans, span{from: start, to: end})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].from.Before(spans[j].from) })

	merged := make([]span, 0, len(spans))

	for _, s := range spans {
		if n := len(merged); n > 0 && !s.from.After(merged[n-1].to) {
			if s.to.After(merged[n-1].to) {
				merged[n-1].to = s.to
			}

			continue
		}

		merged = append(merged, s)
	}

	out := make([]avito.Interval, 0, len(merged))
	for _, s := range merged {
		out = append(out, avito.Interval{
			DateFrom: s.from.Format(avito.DateFormat),
			DateTo:   s.to.Format(avito.DateFormat),
		})
	}

	return out
}
