/*
engine.go - Income tax and National Insurance calculation

PURPOSE:
  Pure arithmetic over a YearConfiguration. Given an annual gross salary,
  a tax code and a pay frequency, computes income tax (progressive banding
  with personal-allowance tapering) and National Insurance (two-band), and
  converts the result to the requested pay period.

CALCULATION FLOW:
  annual gross
      │
      ├── personal allowance (tapered for high earners)
      │        │
      │        ▼
      ├── taxable income = max(0, gross - allowance)
      │        │
      │        ▼ progressive bands, ascending
      │   basic @20% ──▶ higher @40% ──▶ additional @45%
      │
      └── NI over gross: main rate between thresholds, reduced above

NUMERIC SEMANTICS:
  All band arithmetic happens in the annual domain. Each reported component
  is divided into the pay period and rounded (2dp, half away from zero)
  exactly once, at the end. Rounding mid-band would compound error across
  bands.

ERROR MODEL:
  The engine never fails. Negative or nonsense inputs are clamped to zero.
  Fully deterministic, no I/O, no state - safe for concurrent use.

SEE ALSO:
  - config.go: the per-year constants
  - payslip/calculator.go: the main consumer
*/
package tax

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/warp/payroll-engine/money"
)

// Engine computes income tax and National Insurance for one tax year.
// The zero value is not usable; construct with NewEngine.
type Engine struct {
	config YearConfiguration
}

// NewEngine returns an engine bound to the given tax year configuration.
func NewEngine(config YearConfiguration) *Engine {
	return &Engine{config: config}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() YearConfiguration { return e.config }

// =============================================================================
// PERSONAL ALLOWANCE
// =============================================================================

// PersonalAllowance returns the personal allowance for the given annual
// gross, applying high-earner tapering: the allowance shrinks by £1 for
// every £2 of income above the taper threshold, never below zero.
func (e *Engine) PersonalAllowance(annualGross money.Money) money.Money {
	return e.taperedAllowance(annualGross, e.config.PersonalAllowance)
}

func (e *Engine) taperedAllowance(annualGross, allowance money.Money) money.Money {
	gross := annualGross.ClampZero()
	if !gross.GreaterThan(e.config.TaperThreshold) {
		return allowance
	}

	excess := gross.Sub(e.config.TaperThreshold)
	// £1 reduction per £2 of excess, floored to whole pounds.
	reduction := money.FromDecimal(excess.Div(money.FromInt(2)).Decimal().Floor())
	return allowance.Sub(reduction).ClampZero()
}

// allowanceForCode resolves the allowance from a tax code, then tapers it.
// Codes like "1257L" encode the allowance as digits*10. Codes with no
// leading digits (or an empty code) fall back to the configured allowance.
func (e *Engine) allowanceForCode(annualGross money.Money, taxCode string) money.Money {
	allowance := e.config.PersonalAllowance

	digits := leadingDigits(strings.TrimSpace(taxCode))
	if digits != "" {
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			allowance = money.FromInt(n * 10)
		}
	}
	return e.taperedAllowance(annualGross, allowance)
}

func leadingDigits(s string) string {
	for i, r := range s {
		if !unicode.IsDigit(r) {
			return s[:i]
		}
	}
	return s
}

// =============================================================================
// INCOME TAX
// =============================================================================

// IncomeTax computes income tax for the pay period implied by frequency.
// Band arithmetic is annual; the total is converted once at the end.
func (e *Engine) IncomeTax(annualGross money.Money, taxCode string, frequency Frequency) money.Money {
	annual := money.Zero
	for _, part := range e.bandParts(annualGross, taxCode) {
		annual = annual.Add(part.Tax)
	}
	return frequency.ForPeriod(annual)
}

// bandPart is one band's contribution, in annual terms.
type bandPart struct {
	Band    Band
	Taxable money.Money
	Tax     money.Money
}

// bandParts walks the bands in ascending order, consuming taxable income.
// Each band taxes min(remaining, band width); iteration stops when the
// remaining taxable income is exhausted.
func (e *Engine) bandParts(annualGross money.Money, taxCode string) []bandPart {
	gross := annualGross.ClampZero()
	allowance := e.allowanceForCode(gross, taxCode)
	remaining := gross.Sub(allowance).ClampZero()

	var parts []bandPart
	for _, band := range e.config.Bands {
		if remaining.IsZero() {
			break
		}
		taxable := remaining
		if width := band.Width(); width != nil {
			taxable = remaining.Min(*width)
		}
		parts = append(parts, bandPart{
			Band:    band,
			Taxable: taxable,
			Tax:     taxable.MulRate(band.Rate),
		})
		remaining = remaining.Sub(taxable)
	}
	return parts
}

// =============================================================================
// NATIONAL INSURANCE
// =============================================================================

// NationalInsurance computes employee NI for the pay period implied by
// frequency. Below the primary threshold: zero. Between the thresholds:
// the main rate. Above the upper limit: the reduced rate on the excess.
func (e *Engine) NationalInsurance(annualGross money.Money, frequency Frequency) money.Money {
	standard, reduced := e.niParts(annualGross)
	return frequency.ForPeriod(standard.Add(reduced))
}

func (e *Engine) niParts(annualGross money.Money) (standard, reduced money.Money) {
	gross := annualGross.ClampZero()
	if !gross.GreaterThan(e.config.NIPrimaryThreshold) {
		return money.Zero, money.Zero
	}

	mainBand := gross.Min(e.config.NIUpperLimit).Sub(e.config.NIPrimaryThreshold).ClampZero()
	standard = mainBand.MulRate(e.config.NIMainRate)

	excess := gross.Sub(e.config.NIUpperLimit).ClampZero()
	reduced = excess.MulRate(e.config.NIReducedRate)
	return standard, reduced
}

// =============================================================================
// FULL BREAKDOWN
// =============================================================================

// BandAmount is one band's contribution converted to the pay period.
type BandAmount struct {
	Name    string      `json:"name"`
	Taxable money.Money `json:"taxable"`
	Tax     money.Money `json:"tax"`
}

// Result is the full per-period tax calculation, with each band's
// contribution retained separately for reporting.
//
// Invariants: IncomeTax equals the sum of Bands[i].Tax, and
// NationalInsurance equals StandardRateNI + ReducedRateNI.
type Result struct {
	Frequency         Frequency   `json:"frequency"`
	AnnualGross       money.Money `json:"annualGross"`
	GrossForPeriod    money.Money `json:"grossForPeriod"`
	PersonalAllowance money.Money `json:"personalAllowance"`
	TaxableIncome     money.Money `json:"taxableIncome"`
	IncomeTax         money.Money `json:"incomeTax"`
	Bands             []BandAmount `json:"bands"`
	NationalInsurance money.Money `json:"nationalInsurance"`
	StandardRateNI    money.Money `json:"standardRateNi"`
	ReducedRateNI     money.Money `json:"reducedRateNi"`
	NetForPeriod      money.Money `json:"netForPeriod"`
}

// BandTax returns the period tax attributed to the named band, or zero when
// the band was not touched.
func (r Result) BandTax(name string) money.Money {
	for _, b := range r.Bands {
		if b.Name == name {
			return b.Tax
		}
	}
	return money.Zero
}

// Breakdown computes the full per-period result. Each component (each band,
// each NI part) is converted to the period and rounded individually, so the
// reported parts sum exactly to the reported totals.
func (e *Engine) Breakdown(annualGross money.Money, taxCode string, frequency Frequency) Result {
	gross := annualGross.ClampZero()
	allowance := e.allowanceForCode(gross, taxCode)

	result := Result{
		Frequency:         frequency,
		AnnualGross:       gross,
		GrossForPeriod:    frequency.ForPeriod(gross),
		PersonalAllowance: allowance,
		TaxableIncome:     gross.Sub(allowance).ClampZero(),
	}

	for _, part := range e.bandParts(gross, taxCode) {
		amount := BandAmount{
			Name:    part.Band.Name,
			Taxable: frequency.ForPeriod(part.Taxable),
			Tax:     frequency.ForPeriod(part.Tax),
		}
		result.Bands = append(result.Bands, amount)
		result.IncomeTax = result.IncomeTax.Add(amount.Tax)
	}

	standard, reduced := e.niParts(gross)
	result.StandardRateNI = frequency.ForPeriod(standard)
	result.ReducedRateNI = frequency.ForPeriod(reduced)
	result.NationalInsurance = result.StandardRateNI.Add(result.ReducedRateNI)

	result.NetForPeriod = result.GrossForPeriod.
		Sub(result.IncomeTax).
		Sub(result.NationalInsurance)

	return result
}
