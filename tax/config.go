/*
config.go - Tax year configuration

PURPOSE:
  All rates, thresholds and band boundaries for one tax year live in a single
  immutable value object. The engine itself is year-agnostic: swapping
  2024/25 for 2025/26 is a configuration change, never a code change.

KEY CONCEPTS:
  - Band: A contiguous slice of TAXABLE income (income after the personal
    allowance) taxed at a fixed rate. Bands are ordered ascending, do not
    overlap, and the last band is open-ended (Upper == nil).
  - Personal allowance: Income below this is untaxed. For high earners the
    allowance is "tapered": reduced by £1 for every £2 of income above the
    taper threshold, floored at zero.
  - NI thresholds: National Insurance has its own two-band structure over
    GROSS income: the main rate between the primary threshold and the upper
    limit, and a reduced rate on everything above the upper limit.

INVARIANTS:
  - Bands contiguous: band[i].Upper == band[i+1].Lower
  - Exactly the last band has Upper == nil
  - Rates are decimal fractions (0.20 = 20%)

SEE ALSO:
  - engine.go: the arithmetic that consumes this configuration
*/
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/money"
)

// Band is one contiguous range of taxable income taxed at a fixed rate.
type Band struct {
	Name  string          // "basic", "higher", "additional"
	Lower money.Money     // inclusive lower bound of taxable income
	Upper *money.Money    // exclusive upper bound; nil = open-ended
	Rate  decimal.Decimal // fraction, e.g. 0.20
}

// Width returns the taxable width of the band. Open-ended bands have no
// width; callers treat nil as "everything remaining".
func (b Band) Width() *money.Money {
	if b.Upper == nil {
		return nil
	}
	w := b.Upper.Sub(b.Lower)
	return &w
}

// YearConfiguration bundles every constant the engine needs for one tax year.
type YearConfiguration struct {
	Year string // e.g. "2024/25"

	// Income tax
	PersonalAllowance money.Money
	TaperThreshold    money.Money // allowance shrinks £1 per £2 above this
	Bands             []Band      // over taxable income, ascending

	// National Insurance (employee, annualized thresholds)
	NIPrimaryThreshold money.Money
	NIUpperLimit       money.Money
	NIMainRate         decimal.Decimal
	NIReducedRate      decimal.Decimal
}

// TaxYear2024_25 returns the UK configuration for the 2024/25 tax year.
func TaxYear2024_25() YearConfiguration {
	upperBasic := money.FromInt(37700)
	upperHigher := money.FromInt(125140)

	return YearConfiguration{
		Year:              "2024/25",
		PersonalAllowance: money.FromInt(12570),
		TaperThreshold:    money.FromInt(100000),
		Bands: []Band{
			{Name: "basic", Lower: money.Zero, Upper: &upperBasic, Rate: decimal.NewFromFloat(0.20)},
			{Name: "higher", Lower: upperBasic, Upper: &upperHigher, Rate: decimal.NewFromFloat(0.40)},
			{Name: "additional", Lower: upperHigher, Upper: nil, Rate: decimal.NewFromFloat(0.45)},
		},
		NIPrimaryThreshold: money.FromInt(12570),
		NIUpperLimit:       money.FromInt(50270),
		NIMainRate:         decimal.NewFromFloat(0.08),
		NIReducedRate:      decimal.NewFromFloat(0.02),
	}
}
