// Package types provides common type aliases and utilities.
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors. Aggregations keep
// full precision; only display formatting rounds to cents.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineAmount returns quantity × unit price without rounding.
func LineAmount(quantity int, unitPrice Money) Money {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Percent returns base × rate/100 without rounding.
func Percent(base, rate Money) Money {
	return base.Mul(rate).Div(decimal.NewFromInt(100))
}

// RoundCents rounds half-even to two decimal places, the rounding used when
// a price is stored.
func RoundCents(m Money) Money {
	return m.RoundBank(2)
}

// FormatPlain renders m with two decimals and a dot separator ("1234.50").
func FormatPlain(m Money) string {
	return m.StringFixed(2)
}

// FormatBRL renders m in the Brazilian display style: thousands separated
// by dots and a comma before the cents ("12.345,67").
func FormatBRL(m Money) string {
	s := m.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte('.')
		}
		b.WriteString(intPart[i : i+3])
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}
