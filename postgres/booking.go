package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.BookingRepository = (*BookingRepository)(nil)

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, property_id, COALESCE(platform, ''), COALESCE(remote_id, ''),
	check_in, check_out, guest_name, guest_phone, guest_email,
	status, source, COALESCE(total_price, 0), created_at, updated_at`

func (r *BookingRepository) GetByRemoteID(ctx context.Context, platform, remoteID string) (*models.Booking, error) {
	q := `SELECT` + bookingColumns + ` FROM bookings WHERE platform = $1 AND remote_id = $2`

	return scanBooking(r.db.QueryRowContext(ctx, q, platform, remoteID))
}

// Upsert writes a booking. Marketplace bookings are keyed by
// (platform, remote_id); local bookings are plain inserts.
func (r *BookingRepository) Upsert(ctx context.Context, booking *models.Booking) (bool, error) {
	if booking.Platform == "" || booking.RemoteID == "" {
		q := `INSERT INTO bookings
			(property_id, check_in, check_out, guest_name, guest_phone, guest_email,
			 status, source, total_price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0::numeric), NOW(), NOW())
			RETURNING id`

		err := r.db.QueryRowContext(ctx, q,
			booking.PropertyID, booking.CheckIn, booking.CheckOut,
			booking.GuestName, booking.GuestPhone, booking.GuestEmail,
			booking.Status, booking.Source, booking.TotalPrice,
		).Scan(&booking.ID)
		if err != nil {
			return false, fmt.Errorf("insert booking: %w", err)
		}

		return true, nil
	}

	// xmax = 0 holds only for rows created by this statement, which is how
	// an upsert distinguishes insert from update.
	q := `INSERT INTO bookings
		(property_id, platform, remote_id, check_in, check_out,
		 guest_name, guest_phone, guest_email, status, source, total_price,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, 0::numeric), NOW(), NOW())
		ON CONFLICT (platform, remote_id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			check_in = EXCLUDED.check_in,
			check_out = EXCLUDED.check_out,
			guest_name = EXCLUDED.guest_name,
			guest_phone = EXCLUDED.guest_phone,
			guest_email = EXCLUDED.guest_email,
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			total_price = EXCLUDED.total_price,
			updated_at = NOW()
		RETURNING id, (xmax = 0)`

	var created bool

	err := r.db.QueryRowContext(ctx, q,
		booking.PropertyID, booking.Platform, booking.RemoteID,
		booking.CheckIn, booking.CheckOut,
		booking.GuestName, booking.GuestPhone, booking.GuestEmail,
		booking.Status, booking.Source, booking.TotalPrice,
	).Scan(&booking.ID, &created)
	if err != nil {
		return false, fmt.Errorf("upsert booking %s/%s: %w", booking.Platform, booking.RemoteID, err)
	}

	return created, nil
}

func (r *BookingRepository) CancelByRemoteID(ctx context.Context, platform, remoteID string) error {
	q := `UPDATE bookings SET status = $3, updated_at = NOW()
		WHERE platform = $1 AND remote_id = $2`

	result, err := r.db.ExecContext(ctx, q, platform, remoteID, models.BookingCancelled)
	if err != nil {
		return fmt.Errorf("cancel booking %s/%s: %w", platform, remoteID, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID int64, filter models.BookingFilter) ([]models.Booking, error) {
	q := `SELECT` + bookingColumns + ` FROM bookings`

	args := []any{propertyID}
	conditions := []string{"property_id = $1"}
	argNum := 2

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))

		for i, status := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argNum)
			args = append(args, status)
			argNum++
		}

		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if !filter.CheckOutAfter.IsZero() {
		conditions = append(conditions, fmt.Sprintf("check_out > $%d", argNum))
		args = append(args, filter.CheckOutAfter)
		argNum++
	}

	if filter.ExcludeSource != "" {
		conditions = append(conditions, fmt.Sprintf("source <> $%d", argNum))
		args = append(args, filter.ExcludeSource)
		argNum++
	}

	if filter.ExcludeID != 0 {
		conditions = append(conditions, fmt.Sprintf("id <> $%d", argNum))
		args = append(args, filter.ExcludeID)
	}

	q += " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY check_in, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking

	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *booking)
	}

	return out, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking

	err := row.Scan(
		&b.ID, &b.PropertyID, &b.Platform, &b.RemoteID,
		&b.CheckIn, &b.CheckOut, &b.GuestName, &b.GuestPhone, &b.GuestEmail,
		&b.Status, &b.Source, &b.TotalPrice, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}

		return nil, fmt.Errorf("scan booking: %w", err)
	}

	return &b, nil
}
