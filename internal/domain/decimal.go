package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PrecisionOf returns the number of decimal places of d after stripping
// trailing zeros, so 0.0025000 has precision 4.
func PrecisionOf(d decimal.Decimal) int {
	s := d.String()
	if !strings.Contains(s, ".") {
		return 0
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if idx := strings.Index(s, "."); idx >= 0 {
		return len(s) - idx - 1
	}
	return 0
}

// TickAtPrecision returns one unit at the given decimal precision,
// so precision 4 yields 0.0001. Precision 0 yields 1.
func TickAtPrecision(precision int) decimal.Decimal {
	return decimal.New(1, int32(-precision))
}

// TrimZeros normalizes d by dropping trailing fractional zeros.
func TrimZeros(d decimal.Decimal) decimal.Decimal {
	s := d.String()
	if !strings.Contains(s, ".") {
		return d
	}
	out, err := decimal.NewFromString(strings.TrimRight(strings.TrimRight(s, "0"), "."))
	if err != nil {
		return d
	}
	return out
}
