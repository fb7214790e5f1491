/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Tax:
    TaxPreviewRequest, TaxPreviewDTO, BandTaxDTO

  Payslip:
    PayslipRequest, PayslipDTO, PayslipLineDTO

  Employee:
    EmployeeDTO, SaveEmployeeRequest

  Rules:
    RuleDTO (wraps factory.RuleJSON)

  Leave:
    SubmitLeaveRequest, LeaveRequestDTO, DecisionRequest, BalanceDTO,
    SetEntitlementRequest, EvaluationDTO, RuleLogDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payslip"
)

// =============================================================================
// TAX TYPES
// =============================================================================

// TaxPreviewRequest asks for a tax breakdown of an annual gross salary.
type TaxPreviewRequest struct {
	AnnualGross float64 `json:"annual_gross"`
	TaxCode     string  `json:"tax_code,omitempty"`
	Frequency   string  `json:"frequency,omitempty"` // defaults to monthly
}

// BandTaxDTO is one band's share of taxable income and tax.
type BandTaxDTO struct {
	Name    string `json:"name"`
	Taxable string `json:"taxable"`
	Tax     string `json:"tax"`
}

// TaxPreviewDTO is the full tax breakdown for one period.
type TaxPreviewDTO struct {
	Frequency         string       `json:"frequency"`
	AnnualGross       string       `json:"annual_gross"`
	GrossForPeriod    string       `json:"gross_for_period"`
	PersonalAllowance string       `json:"personal_allowance"`
	TaxableIncome     string       `json:"taxable_income"`
	IncomeTax         string       `json:"income_tax"`
	Bands             []BandTaxDTO `json:"bands"`
	NationalInsurance string       `json:"national_insurance"`
	NetForPeriod      string       `json:"net_for_period"`
}

// =============================================================================
// PAYSLIP TYPES
// =============================================================================

// PayslipRequest asks for a payslip over a period.
type PayslipRequest struct {
	PeriodStart string `json:"period_start"` // YYYY-MM-DD
	PeriodEnd   string `json:"period_end"`
}

// PayslipLineDTO is one allowance or deduction as applied.
type PayslipLineDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	Taxable bool   `json:"taxable,omitempty"`
}

// PayslipDTO is the computed payslip.
type PayslipDTO struct {
	EmployeeID        string           `json:"employee_id"`
	PeriodStart       string           `json:"period_start"`
	PeriodEnd         string           `json:"period_end"`
	BasicSalary       string           `json:"basic_salary"`
	TotalAllowances   string           `json:"total_allowances"`
	GrossSalary       string           `json:"gross_salary"`
	TotalDeductions   string           `json:"total_deductions"`
	IncomeTax         string           `json:"income_tax"`
	NationalInsurance string           `json:"national_insurance"`
	NetSalary         string           `json:"net_salary"`
	WorkingDays       int              `json:"working_days"`
	Allowances        []PayslipLineDTO `json:"allowances"`
	Deductions        []PayslipLineDTO `json:"deductions"`
}

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DepartmentID string `json:"department_id"`
	Level        string `json:"level,omitempty"`
	JoinDate     string `json:"join_date"`
	BasicSalary  string `json:"basic_salary"`
	TaxCode      string `json:"tax_code,omitempty"`
}

// SaveEmployeeRequest creates or replaces an employee. Allowances and
// deductions use the domain shape directly; Money fields accept decimal
// strings or numbers.
type SaveEmployeeRequest struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	DepartmentID string              `json:"department_id"`
	Level        string              `json:"level,omitempty"`
	JoinDate     string              `json:"join_date"` // YYYY-MM-DD
	BasicSalary  string              `json:"basic_salary"`
	TaxCode      string              `json:"tax_code,omitempty"`
	Allowances   []payslip.Allowance `json:"allowances,omitempty"`
	Deductions   []payslip.Deduction `json:"deductions,omitempty"`
}

// =============================================================================
// RULE TYPES
// =============================================================================

// RuleDTO is an approval rule in its JSON definition form.
type RuleDTO = factory.RuleJSON

// =============================================================================
// LEAVE TYPES
// =============================================================================

// SubmitLeaveRequest submits a leave request for evaluation.
type SubmitLeaveRequest struct {
	EmployeeID             string `json:"employee_id"`
	LeaveType              string `json:"leave_type"`
	StartDate              string `json:"start_date"` // YYYY-MM-DD
	EndDate                string `json:"end_date"`
	Reason                 string `json:"reason,omitempty"`
	HasSupportingDocuments bool   `json:"has_supporting_documents,omitempty"`
}

// DecisionRequest records a manual decision.
type DecisionRequest struct {
	ActorID string `json:"actor_id"`
}

// EvaluationDTO is the auto-approval outcome for a submission.
type EvaluationDTO struct {
	Verdict  string   `json:"verdict"`
	Reason   string   `json:"reason"`
	RuleID   string   `json:"rule_id,omitempty"`
	RuleName string   `json:"rule_name,omitempty"`
	Trail    []string `json:"trail,omitempty"`
}

// LeaveRequestDTO is a leave request in API responses.
type LeaveRequestDTO struct {
	ID          string  `json:"id"`
	EmployeeID  string  `json:"employee_id"`
	LeaveType   string  `json:"leave_type"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Days        float64 `json:"days"`
	Reason      string  `json:"reason,omitempty"`
	Status      string  `json:"status"`
	SubmittedAt string  `json:"submitted_at"`
	DecidedBy   string  `json:"decided_by,omitempty"`
	DecidedAt   *string `json:"decided_at,omitempty"`
}

// SubmitLeaveResponse pairs the stored request with its evaluation.
type SubmitLeaveResponse struct {
	Request    LeaveRequestDTO `json:"request"`
	Evaluation *EvaluationDTO  `json:"evaluation,omitempty"`
}

// SetEntitlementRequest sets an employee's entitlement for the financial
// year containing as_of (default: today).
type SetEntitlementRequest struct {
	LeaveType   string  `json:"leave_type"`
	Entitlement float64 `json:"entitlement"`
	AsOf        string  `json:"as_of"`
}

// BalanceDTO is a leave balance for one financial year.
type BalanceDTO struct {
	EmployeeID  string  `json:"employee_id"`
	LeaveType   string  `json:"leave_type"`
	YearStart   string  `json:"year_start"`
	Entitlement float64 `json:"entitlement"`
	Pending     float64 `json:"pending"`
	Used        float64 `json:"used"`
	Available   float64 `json:"available"`
}

// RuleLogDTO is one audit entry from the evaluation log.
type RuleLogDTO struct {
	ID             string   `json:"id"`
	RuleID         string   `json:"rule_id,omitempty"`
	LeaveRequestID string   `json:"leave_request_id"`
	EmployeeID     string   `json:"employee_id"`
	Verdict        string   `json:"verdict"`
	Reason         string   `json:"reason,omitempty"`
	Trail          []string `json:"trail,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
