// Package money formats amounts for customer-facing text.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR formats d with Indian digit grouping (12,34,567) and at most two
// fraction digits, trailing zeros removed.
func FormatINR(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs().Round(2)

	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	frac = strings.TrimRight(frac, "0")

	out := groupIndian(intPart)
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Rupees is FormatINR prefixed with the rupee sign.
func Rupees(d decimal.Decimal) string {
	return "₹" + FormatINR(d)
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append(parts, head[len(head)-2:])
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append(parts, head)
	}

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
		b.WriteByte(',')
	}
	b.WriteString(tail)
	return b.String()
}
