package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatINR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"999", "999"},
		{"1000", "1,000"},
		{"10000", "10,000"},
		{"100000", "1,00,000"},
		{"1234567", "12,34,567"},
		{"123456789", "12,34,56,789"},
		{"1234.5", "1,234.5"},
		{"1234.567", "1,234.57"},
		{"45000.00", "45,000"},
		{"-2500", "-2,500"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatINR(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestRupees(t *testing.T) {
	assert.Equal(t, "₹10,000", Rupees(decimal.NewFromInt(10000)))
}
