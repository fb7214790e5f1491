/*
calculator.go - Payslip computation pipeline

PURPOSE:
  Produces a complete payslip for one employee and one pay period:

  load employee ──▶ working days ──▶ allowances ──▶ gross ──▶ deductions
                                                      │
                                                      ▼
                                            tax engine (income tax + NI)
                                                      │
                                                      ▼
                                                 net salary

ACTIVE ASSIGNMENTS:
  An allowance/deduction applies when it is active AND its effective range
  overlaps the period: effectiveFrom <= periodEnd and (effectiveTo is nil
  or effectiveTo >= periodStart).

WORKING DAYS:
  Calendar days in the inclusive period excluding Saturday and Sunday.
  Fixed 5-day week; public holidays are NOT considered. Known limitation.

ANNUALIZATION:
  Gross is annualized as gross × 12 and taxed at Monthly frequency
  regardless of the actual period length. Periods other than one calendar
  month will therefore be mis-taxed. Preserved deliberately: period-length-
  aware taxation changes every historical payslip and needs a tax-year
  cumulative basis, which this engine does not model.

SIDE EFFECTS:
  None. Persisting the resulting payslip is the caller's problem.
*/
package payslip

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/money"
	"github.com/warp/payroll-engine/tax"
)

// Calculator computes payslips. Stateless; safe for concurrent use.
type Calculator struct {
	Employees EmployeeSource
	Tax       *tax.Engine
}

// NewCalculator returns a calculator backed by the given employee source
// and tax engine.
func NewCalculator(employees EmployeeSource, engine *tax.Engine) *Calculator {
	return &Calculator{Employees: employees, Tax: engine}
}

// Calculate produces the payslip for one employee and one inclusive period.
// Returns a NotFoundError (unwrapping to ErrEmployeeNotFound) when the
// employee does not exist.
func (c *Calculator) Calculate(ctx context.Context, employeeID string, periodStart, periodEnd time.Time) (*Result, error) {
	employee, err := c.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, &NotFoundError{EmployeeID: employeeID}
	}

	result := &Result{
		EmployeeID:  employee.ID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		BasicSalary: employee.BasicSalary,
	}

	result.WorkingDays = WorkingDays(periodStart, periodEnd)
	result.ActualWorkingDays = result.WorkingDays

	// Allowances: percentage of basic salary, rounded at evaluation.
	taxableAllowances := money.Zero
	for _, a := range employee.Allowances {
		if !a.Active || !overlapsPeriod(a.EffectiveFrom, a.EffectiveTo, periodStart, periodEnd) {
			continue
		}
		amount := lineAmount(a.Amount, a.Percentage, employee.BasicSalary)
		result.Allowances = append(result.Allowances, AppliedLine{
			ID:      a.ID,
			Name:    a.Name,
			Amount:  amount,
			Taxable: a.Taxable,
		})
		result.TotalAllowances = result.TotalAllowances.Add(amount)
		if a.Taxable {
			taxableAllowances = taxableAllowances.Add(amount)
		}
	}

	// Gross includes only taxable allowances; non-taxable ones appear on
	// the payslip but do not enter the tax base.
	result.GrossSalary = employee.BasicSalary.Add(taxableAllowances)

	// Deductions: percentage of gross salary.
	for _, d := range employee.Deductions {
		if !d.Active || !overlapsPeriod(d.EffectiveFrom, d.EffectiveTo, periodStart, periodEnd) {
			continue
		}
		amount := lineAmount(d.Amount, d.Percentage, result.GrossSalary)
		result.Deductions = append(result.Deductions, AppliedLine{
			ID:     d.ID,
			Name:   d.Name,
			Amount: amount,
		})
		result.TotalDeductions = result.TotalDeductions.Add(amount)
	}

	// Annualize ×12 and tax as Monthly. See package comment above.
	annualGross := result.GrossSalary.Mul(money.FromInt(12))
	breakdown := c.Tax.Breakdown(annualGross, employee.TaxCode, tax.Monthly)
	result.IncomeTax = breakdown.IncomeTax
	result.NationalInsurance = breakdown.NationalInsurance

	result.NetSalary = result.GrossSalary.
		Sub(result.TotalDeductions).
		Sub(result.IncomeTax).
		Sub(result.NationalInsurance).
		Round2()

	return result, nil
}

// lineAmount resolves a fixed-or-percentage assignment against a base.
// Percentage amounts are rounded to 2dp at evaluation time.
func lineAmount(fixed, percentage *money.Money, base money.Money) money.Money {
	if percentage != nil {
		return base.Percent(*percentage).Round2()
	}
	if fixed != nil {
		return *fixed
	}
	return money.Zero
}

// overlapsPeriod reports whether an effective-date range overlaps the
// inclusive pay period.
func overlapsPeriod(from time.Time, to *time.Time, periodStart, periodEnd time.Time) bool {
	if from.After(periodEnd) {
		return false
	}
	if to != nil && to.Before(periodStart) {
		return false
	}
	return true
}

// WorkingDays counts weekdays (Mon-Fri) in the inclusive range.
// Returns 0 when end precedes start.
func WorkingDays(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)

	count := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
