/*
Package money provides the monetary value type used throughout the payroll
engine.

PURPOSE:
  Wraps shopspring/decimal so that every monetary quantity in the system
  shares one arithmetic vocabulary. Payroll maths must never touch float64:
  a £0.01 drift across a tax band boundary is a compliance bug, not a
  rounding curiosity.

KEY CONCEPTS:
  - Money: An exact decimal amount of currency. The zero value is £0.00.
  - Round2: Bankers beware - HMRC arithmetic rounds HALF AWAY FROM ZERO,
    which is exactly what decimal.Round does. Rounding is applied once,
    at the final pay-period conversion step, never mid-calculation.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, no float64 intermediates
  2. Value semantics: Money is immutable; every operation returns a new value
  3. Defensive: negative derived quantities are clamped with ClampZero

USAGE:
  gross := money.FromFloat(30000)
  monthly := gross.Div(money.FromInt(12)).Round2()

SEE ALSO:
  - tax/engine.go: band arithmetic built on Money
  - payslip/calculator.go: allowance/deduction composition
*/
package money

import (
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount of currency.
type Money struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// Constructors

func FromFloat(v float64) Money  { return Money{value: decimal.NewFromFloat(v)} }
func FromInt(v int64) Money      { return Money{value: decimal.NewFromInt(v)} }
func FromDecimal(d decimal.Decimal) Money { return Money{value: d} }

// FromString parses a decimal string.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, err
	}
	return Money{value: d}, nil
}

// Arithmetic

func (m Money) Add(o Money) Money { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money { return Money{value: m.value.Sub(o.value)} }
func (m Money) Mul(o Money) Money { return Money{value: m.value.Mul(o.value)} }
func (m Money) Div(o Money) Money { return Money{value: m.value.Div(o.value)} }
func (m Money) Neg() Money        { return Money{value: m.value.Neg()} }

// MulRate multiplies by a rate expressed as a decimal fraction (0.20 = 20%).
func (m Money) MulRate(rate decimal.Decimal) Money { return Money{value: m.value.Mul(rate)} }

// Percent returns p percent of m (p is e.g. 10 for 10%).
func (m Money) Percent(p Money) Money {
	return Money{value: m.value.Mul(p.value).Div(decimal.NewFromInt(100))}
}

// Round2 rounds to 2 decimal places, half away from zero.
// This is the single rounding rule used by the whole engine.
func (m Money) Round2() Money { return Money{value: m.value.Round(2)} }

// ClampZero returns m, or Zero when m is negative.
func (m Money) ClampZero() Money {
	if m.value.IsNegative() {
		return Zero
	}
	return m
}

// Comparison

func (m Money) Cmp(o Money) int            { return m.value.Cmp(o.value) }
func (m Money) Equal(o Money) bool         { return m.value.Equal(o.value) }
func (m Money) GreaterThan(o Money) bool   { return m.value.GreaterThan(o.value) }
func (m Money) LessThan(o Money) bool      { return m.value.LessThan(o.value) }
func (m Money) IsZero() bool               { return m.value.IsZero() }
func (m Money) IsNegative() bool           { return m.value.IsNegative() }
func (m Money) IsPositive() bool           { return m.value.IsPositive() }

func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m.GreaterThan(o) {
		return m
	}
	return o
}

// Accessors

// Decimal exposes the underlying decimal for callers that need raw access
// (stores serialize Money as its string form).
func (m Money) Decimal() decimal.Decimal { return m.value }

// Float64 returns an approximate float64. For display only.
func (m Money) Float64() float64 {
	f, _ := m.value.Float64()
	return f
}

func (m Money) String() string { return m.value.StringFixed(2) }

// MarshalJSON encodes Money as a JSON number with 2 decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.StringFixed(2)), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.value = d
	return nil
}
