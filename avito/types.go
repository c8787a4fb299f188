package avito

import (
	"net/url"
	"strconv"
	"time"
)

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"

// Remote booking statuses as the marketplace reports them.
const (
	BookingStatusActive   = "active"
	BookingStatusCanceled = "canceled"
	BookingStatusPending  = "pending"
)

// PriceRange prices a span of nights. Both dates are inclusive.
type PriceRange struct {
	DateFrom        string `json:"date_from"`
	DateTo          string `json:"date_to"`
	NightPrice      int    `json:"night_price"`
	MinimalDuration int    `json:"minimal_duration"`
}

// BaseParams are the listing-level defaults the marketplace applies to dates
// not covered by a price range.
type BaseParams struct {
	NightPrice      int `json:"night_price"`
	MinimalDuration int `json:"minimal_duration"`
}

// Interval marks nights as unavailable. DateTo is the checkout day and is
// exclusive, matching the calendar feed convention: a 17th..20th interval
// blocks the nights of the 17th, 18th and 19th.
type Interval struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// BookingsQuery filters a bookings listing.
type BookingsQuery struct {
	DateStart  time.Time
	DateEnd    time.Time
	Limit      int
	Offset     int
	WithUnpaid bool
}

func (q BookingsQuery) values() url.Values {
	v := url.Values{}
	v.Set("date_start", q.DateStart.Format(DateFormat))
	v.Set("date_end", q.DateEnd.Format(DateFormat))

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}

	if q.WithUnpaid {
		v.Set("with_unpaid", "true")
	}

	return v
}

// Contact is one shape of guest contact data.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Customer is another shape; some channels split the name into parts.
type Customer struct {
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Booking is a marketplace booking record. Contact data arrives in several
// shapes depending on the booking channel, so every variant is optional here
// and resolution order is the consumer's concern.
type Booking struct {
	ID          int64     `json:"id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	Status      string    `json:"status"`
	BasePrice   float64   `json:"base_price,omitempty"`
	SafeDeposit float64   `json:"safe_deposit,omitempty"`
	GuestCount  int       `json:"guest_count,omitempty"`
	Contacts    *Contact  `json:"contacts,omitempty"`
	Contact     *Contact  `json:"contact,omitempty"`
	Customer    *Customer `json:"customer,omitempty"`
	GuestName   string    `json:"guest_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
}
