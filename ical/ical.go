package ical

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

const (
	prodID = "-//cm-bolt//channel manager//EN"

	// uidFormat keys events to the local booking id. Deleting and recreating
	// a booking yields a new id and therefore a genuinely new event, so the
	// marketplace cannot confuse it with the retracted one.
	uidFormat = "cmbolt-booking-%d@cm-bolt"

	dateFormat  = "20060102"
	stampFormat = "20060102T150405Z"

	// maxLineOctets is the RFC 5545 content-line limit before folding.
	maxLineOctets = 75
)

// Generator renders a property's bookings as a subscribable iCalendar
// document. Only future, non-cancelled bookings that did not come from the
// marketplace are included, so the marketplace never re-imports its own.
type Generator struct {
	properties models.PropertyRepository
	bookings   models.BookingRepository
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New builds a feed generator.
func New(properties models.PropertyRepository, bookings models.BookingRepository, opts ...Option) *Generator {
	g := &Generator{
		properties: properties,
		bookings:   bookings,
		logger:     zap.NewNop(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Exists reports whether a feed can be served for the property. Backs the
// HEAD requests marketplaces use to validate a feed URL before importing.
func (g *Generator) Exists(ctx context.Context, propertyID int64) (bool, error) {
	_, err := g.properties.Get(ctx, propertyID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// Feed renders the calendar document. Each booking becomes one all-day
// busy block spanning [check-in, check-out): the checkout day itself stays
// open for the next guest.
func (g *Generator) Feed(ctx context.Context, propertyID int64) (string, error) {
	property, err := g.properties.Get(ctx, propertyID)
	if err != nil {
		return "", err
	}

	today := midnightUTC(g.now())

	bookings, err := g.bookings.ListByProperty(ctx, propertyID, models.BookingFilter{
		Statuses:      []string{models.BookingConfirmed, models.BookingPending},
		CheckOutAfter: today,
		ExcludeSource: models.SourceAvito,
	})
	if err != nil {
		return "", fmt.Errorf("list bookings for feed: %w", err)
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].CheckIn.Equal(bookings[j].CheckIn) {
			return bookings[i].ID < bookings[j].ID
		}

		return bookings[i].CheckIn.Before(bookings[j].CheckIn)
	})

	var b strings.Builder

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+prodID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	writeLine(&b, "X-WR-CALNAME:"+escapeText(property.Name))

	for i := range bookings {
		g.writeEvent(&b, &bookings[i])
	}

	writeLine(&b, "END:VCALENDAR")

	g.logger.Debug("calendar feed generated",
		zap.Int64("property_id", propertyID),
		zap.Int("events", len(bookings)))

	return b.String(), nil
}

func (g *Generator) writeEvent(b *strings.Builder, booking *models.Booking) {
	stamp := booking.UpdatedAt
	if stamp.IsZero() {
		stamp = g.now()
	}

	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, fmt.Sprintf("UID:"+uidFormat, booking.ID))
	writeLine(b, "DTSTAMP:"+stamp.UTC().Format(stampFormat))
	writeLine(b, "DTSTART;VALUE=DATE:"+booking.CheckIn.Format(dateFormat))
	writeLine(b, "DTEND;VALUE=DATE:"+booking.CheckOut.Format(dateFormat))
	writeLine(b, "SUMMARY:"+escapeText(summary(booking)))
	writeLine(b, "STATUS:"+eventStatus(booking.Status))
	writeLine(b, "TRANSP:OPAQUE")
	writeLine(b, "END:VEVENT")
}

func summary(booking *models.Booking) string {
	name := booking.GuestName
	if name == "" {
		name = "Reserved"
	}

	if booking.Source == "" {
		return name
	}

	return fmt.Sprintf("%s (%s)", name, booking.Source)
}

func eventStatus(status string) string {
	if status == models.BookingPending {
		return "TENTATIVE"
	}

	return "CONFIRMED"
}

// writeLine folds and terminates one content line per RFC 5545: CRLF
// endings, no line over 75 octets, continuations prefixed with a space.
func writeLine(b *strings.Builder, line string) {
	for i, part := range fold(line) {
		if i > 0 {
			b.WriteString(" ")
		}

		b.WriteString(part)
		b.WriteString("\r\n")
	}
}

// fold splits a line into chunks that stay under the octet limit after the
// continuation space is accounted for, never cutting a rune in half.
func fold(line string) []string {
	if len(line) <= maxLineOctets {
		return []string{line}
	}

	var parts []string

	limit := maxLineOctets

	for len(line) > 0 {
		if len(line) <= limit {
			parts = append(parts, line)

			break
		}

		cut := limit
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}

		if cut == 0 {
			cut = limit
		}

		parts = append(parts, line[:cut])
		line = line[cut:]

		// Continuation lines lose one octet to the leading space.
		limit = maxLineOctets - 1
	}

	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// escapeText escapes the characters RFC 5545 reserves in text values.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\r\n", `\n`,
		"\n", `\n`,
	)

	return r.Replace(s)
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
