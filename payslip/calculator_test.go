package payslip_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/payroll-engine/money"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/tax"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// stubSource serves a fixed set of employees.
type stubSource struct {
	employees map[string]payslip.Employee
}

func (s *stubSource) GetEmployee(_ context.Context, id string) (*payslip.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, &payslip.NotFoundError{EmployeeID: id}
	}
	return &e, nil
}

func newCalculator(employees ...payslip.Employee) *payslip.Calculator {
	source := &stubSource{employees: make(map[string]payslip.Employee)}
	for _, e := range employees {
		source.employees[e.ID] = e
	}
	return payslip.NewCalculator(source, tax.NewEngine(tax.TaxYear2024_25()))
}

func gbp(v float64) money.Money { return money.FromFloat(v) }

func gbpPtr(v float64) *money.Money {
	m := money.FromFloat(v)
	return &m
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// WORKING DAYS TESTS
// =============================================================================

func TestWorkingDays(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"full working week", date(2024, time.January, 1), date(2024, time.January, 5), 5},
		{"weekend only", date(2024, time.January, 6), date(2024, time.January, 7), 0},
		{"single weekday", date(2024, time.January, 3), date(2024, time.January, 3), 1},
		{"single saturday", date(2024, time.January, 6), date(2024, time.January, 6), 0},
		{"january 2024", date(2024, time.January, 1), date(2024, time.January, 31), 23},
		{"february leap 2024", date(2024, time.February, 1), date(2024, time.February, 29), 21},
		{"end before start", date(2024, time.January, 5), date(2024, time.January, 1), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := payslip.WorkingDays(tc.start, tc.end); got != tc.want {
				t.Fatalf("expected %d working days, got %d", tc.want, got)
			}
		})
	}
}

// =============================================================================
// CALCULATION TESTS
// =============================================================================

func TestCalculate_EmployeeNotFound(t *testing.T) {
	calc := newCalculator()

	_, err := calc.Calculate(context.Background(), "missing", date(2024, time.January, 1), date(2024, time.January, 31))
	if !errors.Is(err, payslip.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestCalculate_BasicSalaryOnly(t *testing.T) {
	// GIVEN: £2,500/month basic salary, no allowances or deductions
	// THEN: annualized £30,000 → tax £290.50/month, NI £116.20/month

	calc := newCalculator(payslip.Employee{
		ID:          "emp-1",
		BasicSalary: gbp(2500),
		TaxCode:     "1257L",
	})

	result, err := calc.Calculate(context.Background(), "emp-1", date(2024, time.January, 1), date(2024, time.January, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.GrossSalary.Equal(gbp(2500)) {
		t.Errorf("expected gross 2500, got %v", result.GrossSalary)
	}
	if !result.IncomeTax.Equal(gbp(290.50)) {
		t.Errorf("expected income tax 290.50, got %v", result.IncomeTax)
	}
	// (30000 - 12570) * 8% / 12 = 116.20
	if !result.NationalInsurance.Equal(gbp(116.20)) {
		t.Errorf("expected NI 116.20, got %v", result.NationalInsurance)
	}
	wantNet := gbp(2500).Sub(gbp(290.50)).Sub(gbp(116.20))
	if !result.NetSalary.Equal(wantNet) {
		t.Errorf("expected net %v, got %v", wantNet, result.NetSalary)
	}
	if result.WorkingDays != 23 {
		t.Errorf("expected 23 working days in January 2024, got %d", result.WorkingDays)
	}
}

func TestCalculate_AllowancesAndDeductions(t *testing.T) {
	// GIVEN: £2,500 basic, £200 fixed taxable allowance, 10%% non-taxable
	// allowance, 5%% deduction on gross
	// THEN: gross = 2500 + 200 (non-taxable excluded from gross),
	//       deduction = 5%% of 2700 = 135

	openEnded := payslip.Employee{
		ID:          "emp-2",
		BasicSalary: gbp(2500),
		TaxCode:     "1257L",
		Allowances: []payslip.Allowance{
			{ID: "al-1", Name: "Travel", Amount: gbpPtr(200), Taxable: true, Active: true, EffectiveFrom: date(2023, time.June, 1)},
			{ID: "al-2", Name: "Wellness", Percentage: gbpPtr(10), Taxable: false, Active: true, EffectiveFrom: date(2023, time.June, 1)},
		},
		Deductions: []payslip.Deduction{
			{ID: "de-1", Name: "Pension", Percentage: gbpPtr(5), Active: true, EffectiveFrom: date(2023, time.June, 1)},
		},
	}
	calc := newCalculator(openEnded)

	result, err := calc.Calculate(context.Background(), "emp-2", date(2024, time.March, 1), date(2024, time.March, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.GrossSalary.Equal(gbp(2700)) {
		t.Errorf("expected gross 2700 (basic + taxable allowance), got %v", result.GrossSalary)
	}
	// 10% of basic = 250, listed but outside the tax base
	if !result.TotalAllowances.Equal(gbp(450)) {
		t.Errorf("expected total allowances 450, got %v", result.TotalAllowances)
	}
	if len(result.Allowances) != 2 {
		t.Fatalf("expected 2 applied allowances, got %d", len(result.Allowances))
	}
	if !result.TotalDeductions.Equal(gbp(135)) {
		t.Errorf("expected deduction 135 (5%% of gross), got %v", result.TotalDeductions)
	}

	// Annualized 32,400: tax (32400-12570)*20%/12 = 330.50, NI (32400-12570)*8%/12 = 132.20
	if !result.IncomeTax.Equal(gbp(330.50)) {
		t.Errorf("expected income tax 330.50, got %v", result.IncomeTax)
	}
	if !result.NationalInsurance.Equal(gbp(132.20)) {
		t.Errorf("expected NI 132.20, got %v", result.NationalInsurance)
	}

	wantNet := gbp(2700).Sub(gbp(135)).Sub(gbp(330.50)).Sub(gbp(132.20))
	if !result.NetSalary.Equal(wantNet) {
		t.Errorf("expected net %v, got %v", wantNet, result.NetSalary)
	}
}

func TestCalculate_EffectiveDateFiltering(t *testing.T) {
	// Assignments outside the period, inactive assignments, and closed
	// ranges ending before the period are all skipped.

	expired := date(2023, time.December, 31)
	calc := newCalculator(payslip.Employee{
		ID:          "emp-3",
		BasicSalary: gbp(2000),
		TaxCode:     "1257L",
		Allowances: []payslip.Allowance{
			{ID: "al-1", Name: "Future", Amount: gbpPtr(100), Taxable: true, Active: true, EffectiveFrom: date(2024, time.June, 1)},
			{ID: "al-2", Name: "Expired", Amount: gbpPtr(100), Taxable: true, Active: true, EffectiveFrom: date(2023, time.January, 1), EffectiveTo: &expired},
			{ID: "al-3", Name: "Inactive", Amount: gbpPtr(100), Taxable: true, Active: false, EffectiveFrom: date(2023, time.January, 1)},
			{ID: "al-4", Name: "Current", Amount: gbpPtr(100), Taxable: true, Active: true, EffectiveFrom: date(2024, time.January, 1)},
		},
	})

	result, err := calc.Calculate(context.Background(), "emp-3", date(2024, time.January, 1), date(2024, time.January, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Allowances) != 1 || result.Allowances[0].Name != "Current" {
		t.Fatalf("expected only the Current allowance to apply, got %+v", result.Allowances)
	}
	if !result.GrossSalary.Equal(gbp(2100)) {
		t.Errorf("expected gross 2100, got %v", result.GrossSalary)
	}
}

func TestCalculate_BoundaryOverlap(t *testing.T) {
	// An assignment whose range touches the period boundary applies:
	// effectiveFrom == periodEnd and effectiveTo == periodStart both overlap.

	endsAtStart := date(2024, time.January, 1)
	calc := newCalculator(payslip.Employee{
		ID:          "emp-4",
		BasicSalary: gbp(2000),
		TaxCode:     "1257L",
		Allowances: []payslip.Allowance{
			{ID: "al-1", Name: "StartsAtEnd", Amount: gbpPtr(50), Taxable: true, Active: true, EffectiveFrom: date(2024, time.January, 31)},
			{ID: "al-2", Name: "EndsAtStart", Amount: gbpPtr(50), Taxable: true, Active: true, EffectiveFrom: date(2023, time.June, 1), EffectiveTo: &endsAtStart},
		},
	})

	result, err := calc.Calculate(context.Background(), "emp-4", date(2024, time.January, 1), date(2024, time.January, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Allowances) != 2 {
		t.Fatalf("expected both boundary assignments to apply, got %d", len(result.Allowances))
	}
}
