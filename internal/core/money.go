// Package core provides money parsing and formatting utilities.
//
// Amounts are carried as decimal.Decimal end to end; formatting with a currency
// symbol and thousands separators only happens at the presentation edge.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators when a single
// comma is the only separator, and strips thousands separators otherwise.
// Amounts are rounded half-up to two decimal places.
// Returns ErrInvalidAmount for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34, nil
//	ParseAmount("12,34")    -> 12.34, nil
//	ParseAmount("1,500.50") -> 1500.50, nil
//	ParseAmount("12.345")   -> 12.35, nil (rounds up)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	switch {
	case strings.Count(s, ",") == 1 && !strings.Contains(s, "."):
		// Decimal comma, unless it is clearly a thousands separator (1,500)
		if idx := strings.Index(s, ","); len(s)-idx-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with a currency symbol, thousands separators and
// two decimals (e.g. "Rs. 1,500.00").
func FormatAmount(symbol string, d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if symbol != "" {
		out = symbol + " " + out
	}
	if neg {
		return "-" + out
	}
	return out
}
