/*
Package payslip computes complete payslips: basic salary plus allowances,
minus deductions, income tax and National Insurance for one pay period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: The pay-relevant view of an employee (salary, department,
    join date, assignments). Loaded through EmployeeSource, never stored
    inside the package.
  - Allowance / Deduction: Assignments with an effective-date range and
    either a fixed amount or a percentage - exactly one of the two.
  - Result: The full payslip breakdown for a period.

OWNERSHIP:
  Everything here is request-scoped. A Calculator call loads the employee,
  computes, returns, and holds nothing between calls.

SEE ALSO:
  - calculator.go: the computation
  - tax package: income tax / NI arithmetic
*/
package payslip

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/money"
)

// Employee is the pay-relevant view of an employee.
type Employee struct {
	ID           string
	Name         string
	DepartmentID string
	Level        string // seniority level, used by approval rule filters
	JoinDate     time.Time
	BasicSalary  money.Money // per pay period (monthly)
	TaxCode      string
	Allowances   []Allowance
	Deductions   []Deduction
}

// Allowance is an allowance assignment. Exactly one of Amount or Percentage
// is set; Percentage is evaluated against basic salary.
type Allowance struct {
	ID            string
	Name          string
	Amount        *money.Money
	Percentage    *money.Money // e.g. 10 for 10% of basic salary
	Taxable       bool
	Active        bool
	EffectiveFrom time.Time
	EffectiveTo   *time.Time // nil = open-ended
}

// Deduction is a deduction assignment. Exactly one of Amount or Percentage
// is set; Percentage is evaluated against gross salary.
type Deduction struct {
	ID            string
	Name          string
	Amount        *money.Money
	Percentage    *money.Money
	Active        bool
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// AppliedLine is one allowance or deduction as it appeared on a payslip,
// with its percentage (if any) already evaluated.
type AppliedLine struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Amount  money.Money `json:"amount"`
	Taxable bool        `json:"taxable,omitempty"`
}

// Result is the complete payslip computation for one employee and period.
//
// Invariants:
//   GrossSalary = BasicSalary + sum of taxable allowance amounts
//   NetSalary   = GrossSalary - TotalDeductions - IncomeTax - NationalInsurance
type Result struct {
	EmployeeID        string        `json:"employeeId"`
	PeriodStart       time.Time     `json:"periodStart"`
	PeriodEnd         time.Time     `json:"periodEnd"`
	BasicSalary       money.Money   `json:"basicSalary"`
	TotalAllowances   money.Money   `json:"totalAllowances"`
	GrossSalary       money.Money   `json:"grossSalary"`
	TotalDeductions   money.Money   `json:"totalDeductions"`
	IncomeTax         money.Money   `json:"incomeTax"`
	NationalInsurance money.Money   `json:"nationalInsurance"`
	NetSalary         money.Money   `json:"netSalary"`
	WorkingDays       int           `json:"workingDays"`
	ActualWorkingDays int           `json:"actualWorkingDays"`
	Allowances        []AppliedLine `json:"allowances"`
	Deductions        []AppliedLine `json:"deductions"`
}

// EmployeeSource loads employees with their allowance and deduction
// assignments. Implemented by store/memory, store/sqlite and store/postgres.
type EmployeeSource interface {
	// GetEmployee returns the employee or ErrEmployeeNotFound.
	GetEmployee(ctx context.Context, id string) (*Employee, error)
}
