package syncer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
)

func TestExtractGuest(t *testing.T) {
	cases := []struct {
		name      string
		booking   avito.Booking
		wantName  string
		wantPhone string
		wantEmail string
	}{
		{
			name: "contacts block wins",
			booking: avito.Booking{
				Contacts: &avito.Contact{Name: "Ivan Petrov", Phone: "8 900 123-45-67", Email: "ivan@example.com"},
				Customer: &avito.Customer{Name: "Someone Else"},
			},
			wantName:  "Ivan Petrov",
			wantPhone: "+79001234567",
			wantEmail: "ivan@example.com",
		},
		{
			name: "singular contact block",
			booking: avito.Booking{
				Contact: &avito.Contact{Name: "Anna", Phone: "+7 (912) 000-11-22"},
			},
			wantName:  "Anna",
			wantPhone: "+79120001122",
		},
		{
			name: "customer name",
			booking: avito.Booking{
				Customer: &avito.Customer{Name: "Olga S."},
			},
			wantName: "Olga S.",
		},
		{
			name: "customer first and last name",
			booking: avito.Booking{
				Customer: &avito.Customer{FirstName: "Pavel", LastName: "Sidorov"},
			},
			wantName: "Pavel Sidorov",
		},
		{
			name: "customer first name only",
			booking: avito.Booking{
				Customer: &avito.Customer{FirstName: "Pavel"},
			},
			wantName: "Pavel",
		},
		{
			name: "flat fields",
			booking: avito.Booking{
				GuestName: "Flat Guest",
				Phone:     "9001234567",
				Email:     "flat@example.com",
			},
			wantName:  "Flat Guest",
			wantPhone: "+79001234567",
			wantEmail: "flat@example.com",
		},
		{
			name:     "placeholder when nothing usable",
			booking:  avito.Booking{},
			wantName: "Avito guest",
		},
		{
			name: "masked email dropped",
			booking: avito.Booking{
				Customer: &avito.Customer{Name: "Masked", Email: "hidden***"},
			},
			wantName: "Masked",
		},
		{
			name: "whitespace-only name falls through",
			booking: avito.Booking{
				Contacts:  &avito.Contact{Name: "   "},
				GuestName: "Fallback Guest",
			},
			wantName: "Fallback Guest",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, phone, email := syncer.ExtractGuest(tc.booking)
			require.Equal(t, tc.wantName, name)
			require.Equal(t, tc.wantPhone, phone)
			require.Equal(t, tc.wantEmail, email)
		})
	}
}

func TestNormalizePhoneForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"8 900 123-45-67", "+79001234567"},
		{"79001234567", "+79001234567"},
		{"+79001234567", "+79001234567"},
		{"9001234567", "+79001234567"},
		{"", ""},
		{"  -  ", ""},
		{"+44 20 7946 0958", "+442079460958"},
	}

	for _, tc := range cases {
		booking := avito.Booking{Phone: tc.in}
		_, phone, _ := syncer.ExtractGuest(booking)
		require.Equal(t, tc.want, phone, "input %q", tc.in)
	}
}
