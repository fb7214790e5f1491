package tax

import (
	"github.com/warp/payroll-engine/money"
)

// Frequency is how often an employee is paid.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Weekly    Frequency = "weekly"
	BiWeekly  Frequency = "biweekly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// PeriodsPerYear returns how many pay periods the frequency has in a year.
// Unrecognized frequencies default to monthly.
func (f Frequency) PeriodsPerYear() int64 {
	switch f {
	case Weekly:
		return 52
	case BiWeekly:
		return 26
	case Quarterly:
		return 4
	case Annual:
		return 1
	case Monthly:
		return 12
	default:
		return 12
	}
}

// ForPeriod converts an annual amount to one pay period, rounding to
// 2 decimal places half away from zero. This is the ONLY place a tax
// component is rounded; all band arithmetic stays in the annual domain.
func (f Frequency) ForPeriod(annual money.Money) money.Money {
	return annual.Div(money.FromInt(f.PeriodsPerYear())).Round2()
}
