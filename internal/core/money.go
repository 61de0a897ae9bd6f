// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents; decimal arithmetic goes through
// shopspring/decimal so ratios and divisions never touch binary floats
// until display.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Zero is a valid amount;
// negative values and malformed input are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// ParseMoney parses a table or form amount. Signed values are allowed so
// negative contributions round-trip through storage.
func ParseMoney(field, s string) (Money, error) {
	v := strings.TrimSpace(s)
	neg := strings.HasPrefix(v, "-")
	v = strings.TrimPrefix(v, "-")
	cents, err := ParseDecimalToCents(v)
	if err != nil {
		return Money{}, &ParseError{Field: field, Value: s, Err: err}
	}
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}

// MoneyFromDecimal rounds d to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Dollars returns the value as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// String renders the amount as it is written to the tables, e.g. "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount for humans, e.g. "$12.50" or "-$3.00".
func (m Money) Format() string {
	if m.Cents < 0 {
		return fmt.Sprintf("-$%s", Money{Cents: -m.Cents}.String())
	}
	return "$" + m.String()
}
