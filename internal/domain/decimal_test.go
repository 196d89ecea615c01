package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"switcheo-trader/internal/domain"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestPrecisionOf(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0.0025000", 4},
		{"1.25", 2},
		{"10", 0},
		{"10.000", 0},
		{"0.1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.PrecisionOf(mustDecimal(t, tt.in)))
		})
	}
}

func TestTickAtPrecision(t *testing.T) {
	assert.True(t, domain.TickAtPrecision(4).Equal(mustDecimal(t, "0.0001")))
	assert.True(t, domain.TickAtPrecision(1).Equal(mustDecimal(t, "0.1")))
	assert.True(t, domain.TickAtPrecision(0).Equal(decimal.NewFromInt(1)))
}

func TestTrimZeros(t *testing.T) {
	assert.Equal(t, "0.0025", domain.TrimZeros(mustDecimal(t, "0.0025000")).String())
	assert.Equal(t, "100", domain.TrimZeros(mustDecimal(t, "100")).String())
	assert.Equal(t, "7", domain.TrimZeros(mustDecimal(t, "7.0")).String())
}
