// Package money converts between decimal currency strings and integer
// minor units. All financial arithmetic in this service is done on int64
// cents; decimals only appear at the import/display boundary.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseCents parses a decimal amount string ("120.50", "1,200.00") into
// minor units. Sub-cent precision is rounded half-to-even.
func ParseCents(s string) (int64, error) {
	cleaned := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' || s[i] == ' ' {
			continue
		}
		cleaned = append(cleaned, s[i])
	}
	d, err := decimal.NewFromString(string(cleaned))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Mul(hundred).RoundBank(0).IntPart(), nil
}

// FormatCents renders minor units as a two-decimal string.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(hundred).StringFixed(2)
}

// WithinPercent reports whether got is within pct percent of want.
// Tolerance is computed on exact decimals and rounded half-to-even so the
// comparison is reproducible.
func WithinPercent(got, want int64, pct float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	tol := decimal.NewFromInt(want).
		Mul(decimal.NewFromFloat(pct)).
		Div(hundred).
		RoundBank(0).
		IntPart()
	return diff <= tol
}
