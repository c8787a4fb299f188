package syncer

import (
	"strings"

	emailaddress "github.com/mcnijman/go-emailaddress"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
)

// placeholderGuestName is stored when a booking carries no usable name, so
// downstream code never sees an empty guest.
const placeholderGuestName = "Avito guest"

// guestExtractor pulls one candidate field out of a remote booking.
type guestExtractor func(b avito.Booking) string

// Contact data arrives in different shapes depending on the booking channel.
// Each list is ordered: the first non-empty candidate wins, and adding a new
// payload shape is one more entry here.
var nameExtractors = []guestExtractor{
	func(b avito.Booking) string {
		if b.Contacts == nil {
			return ""
		}
		return b.Contacts.Name
	},
	func(b avito.Booking) string {
		if b.Contact == nil {
			return ""
		}
		return b.Contact.Name
	},
	func(b avito.Booking) string {
		if b.Customer == nil {
			return ""
		}
		return b.Customer.Name
	},
	func(b avito.Booking) string {
		if b.Customer == nil {
			return ""
		}
		return strings.TrimSpace(strings.TrimSpace(b.Customer.FirstName) + " " + strings.TrimSpace(b.Customer.LastName))
	},
	func(b avito.Booking) string {
		return b.GuestName
	},
}

var phoneExtractors = []guestExtractor{
	func(b avito.Booking) string {
		if b.Contacts == nil {
			return ""
		}
		return b.Contacts.Phone
	},
	func(b avito.Booking) string {
		if b.Contact == nil {
			return ""
		}
		return b.Contact.Phone
	},
	func(b avito.Booking) string {
		if b.Customer == nil {
			return ""
		}
		return b.Customer.Phone
	},
	func(b avito.Booking) string {
		return b.Phone
	},
}

var emailExtractors = []guestExtractor{
	func(b avito.Booking) string {
		if b.Contacts == nil {
			return ""
		}
		return b.Contacts.Email
	},
	func(b avito.Booking) string {
		if b.Contact == nil {
			return ""
		}
		return b.Contact.Email
	},
	func(b avito.Booking) string {
		if b.Customer == nil {
			return ""
		}
		return b.Customer.Email
	},
	func(b avito.Booking) string {
		return b.Email
	},
}

// ExtractGuest resolves the guest's name, phone and email from whichever
// payload shape the booking came in. The name always resolves to something.
func ExtractGuest(b avito.Booking) (name, phone, email string) {
	name = strings.TrimSpace(firstNonEmpty(nameExtractors, b))
	if name == "" {
		name = placeholderGuestName
	}

	phone = normalizePhone(firstNonEmpty(phoneExtractors, b))
	email = validEmail(firstNonEmpty(emailExtractors, b))

	return name, phone, email
}

func firstNonEmpty(extractors []guestExtractor, b avito.Booking) string {
	for _, extract := range extractors {
		if v := strings.TrimSpace(extract(b)); v != "" {
			return v
		}
	}

	return ""
}

// normalizePhone strips formatting and canonicalizes Russian numbers: a
// leading 8 becomes +7, and a bare 10-digit mobile number gains +7.
func normalizePhone(raw string) string {
	var b strings.Builder

	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	s := b.String()

	switch {
	case s == "":
		return ""
	case len(s) == 11 && strings.HasPrefix(s, "8"):
		return "+7" + s[1:]
	case len(s) == 11 && strings.HasPrefix(s, "7"):
		return "+" + s
	case len(s) == 10 && !strings.HasPrefix(s, "+"):
		return "+7" + s
	}

	return s
}

// validEmail keeps only addresses that actually parse; the marketplace
// sometimes masks them into junk.
func validEmail(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if _, err := emailaddress.Parse(raw); err != nil {
		return ""
	}

	return raw
}
