package models

import "math"

// ApplyMarkup computes the nightly price pushed to the marketplace. A
// negative markup is a fixed currency adjustment (base 1000, markup -200
// gives 800); a non-negative one is a percentage (base 1000, markup 20
// gives 1200). The result never drops below 1.
func ApplyMarkup(base, markup float64) int {
	price := base * (1 + markup/100)
	if markup < 0 {
		price = base + markup
	}

	if price < 1 {
		return 1
	}

	return int(math.Round(price))
}
