package syncer

import (
	"sort"
	"time"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

// DailyRate is the effective marketplace price and minimum stay for one date,
// markup already applied.
type DailyRate struct {
	Date    time.Time
	Price   int
	MinStay int
}

// BuildPriceRanges coalesces consecutive dates with identical price and
// minimum stay into inclusive ranges, minimizing payload size. Input order
// does not matter.
func BuildPriceRanges(days []DailyRate) []avito.PriceRange {
	if len(days) == 0 {
		return nil
	}

	sorted := append([]DailyRate(nil), days...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var out []avito.PriceRange

	start, prev := sorted[0], sorted[0]

	flush := func() {
		out = append(out, avito.PriceRange{
			DateFrom:        start.Date.Format(avito.DateFormat),
			DateTo:          prev.Date.Format(avito.DateFormat),
			NightPrice:      start.Price,
			MinimalDuration: start.MinStay,
		})
	}

	for _, d := range sorted[1:] {
		contiguous := prev.Date.AddDate(0, 0, 1).Equal(d.Date)
		if contiguous && d.Price == start.Price && d.MinStay == start.MinStay {
			prev = d
			continue
		}

		flush()
		start, prev = d, d
	}

	flush()

	return out
}

// effectiveDailyRates computes the per-date price and minimum stay for the
// window: the per-date override when present, the property defaults
// otherwise. Dates that end up without a positive price are dropped rather
// than pushed at the floor.
func effectiveDailyRates(property *models.Property, rates []models.PropertyRate, markup float64, from time.Time, days int) []DailyRate {
	overrides := make(map[string]models.PropertyRate, len(rates))
	for _, r := range rates {
		overrides[r.Date.Format(avito.DateFormat)] = r
	}

	out := make([]DailyRate, 0, days)

	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i)
		price := property.BasePrice
		minStay := property.MinStay

		if r, ok := overrides[date.Format(avito.DateFormat)]; ok {
			price = r.Price
			if r.MinStay > 0 {
				minStay = r.MinStay
			}
		}

		if price <= 0 {
			continue
		}

		if minStay < 1 {
			minStay = 1
		}

		out = append(out, DailyRate{
			Date:    date,
			Price:   models.ApplyMarkup(price, markup),
			MinStay: minStay,
		})
	}

	return out
}
