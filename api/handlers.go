/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll and leave engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Tax:
    POST   /api/tax/preview            Tax breakdown for an annual gross

  Employees:
    GET    /api/employees              List all employees
    POST   /api/employees              Create or replace employee
    GET    /api/employees/{id}         Get employee details
    POST   /api/employees/{id}/payslip Compute payslip for a period
    GET    /api/employees/{id}/requests Leave request history
    GET    /api/employees/{id}/balance Leave balance for a financial year
    POST   /api/employees/{id}/balance Set entitlement for a financial year

  Rules:
    GET    /api/rules                  List all approval rules
    POST   /api/rules                  Create or replace a rule (JSON definition)
    GET    /api/rules/{id}             Get one rule

  Leave:
    POST   /api/leave/requests         Submit request (runs auto-approval)
    GET    /api/leave/requests/{id}    Get one request
    POST   /api/leave/requests/{id}/approve  Manual approval
    POST   /api/leave/requests/{id}/reject   Manual rejection
    POST   /api/leave/requests/{id}/cancel   Cancellation by the employee

  Audit:
    GET    /api/rule-logs              Evaluation audit log

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: persistence (memory, sqlite or postgres)
  - Tax/Payslip/Leave: domain services
  - RuleFactory: JSON to Rule conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (decision on a non-pending request)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/money"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/tax"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store aggregates the persistence surface the API needs. All three store
// implementations (memory, sqlite, postgres) satisfy it.
type Store interface {
	payslip.EmployeeSource
	approval.RuleSource
	approval.TeamStats
	approval.RuleLogStore
	leave.RequestStore
	leave.BalanceStore

	PutEmployee(ctx context.Context, e payslip.Employee) error
	ListEmployees(ctx context.Context) ([]payslip.Employee, error)
	PutRule(ctx context.Context, r approval.Rule) error
	GetRule(ctx context.Context, id string) (*approval.Rule, error)
	ListRules(ctx context.Context) ([]approval.Rule, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Store
	Tax         *tax.Engine
	Payslip     *payslip.Calculator
	Leave       *leave.Service
	RuleFactory *factory.RuleFactory
}

// NewHandler wires the domain services on top of the given store.
func NewHandler(store Store) *Handler {
	engine := tax.NewEngine(tax.TaxYear2024_25())
	evaluator := approval.NewEvaluator(store, store)
	return &Handler{
		Store:       store,
		Tax:         engine,
		Payslip:     payslip.NewCalculator(store, engine),
		Leave:       leave.NewService(store, store, store, evaluator, store),
		RuleFactory: factory.NewRuleFactory(),
	}
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

// PreviewTax returns the tax breakdown for an annual gross salary.
func (h *Handler) PreviewTax(w http.ResponseWriter, r *http.Request) {
	var req TaxPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnnualGross < 0 {
		writeError(w, http.StatusBadRequest, "annual_gross must not be negative", nil)
		return
	}

	frequency := tax.Monthly
	if req.Frequency != "" {
		frequency = tax.Frequency(req.Frequency)
	}

	result := h.Tax.Breakdown(money.FromFloat(req.AnnualGross), req.TaxCode, frequency)
	writeJSON(w, http.StatusOK, toTaxPreviewDTO(result))
}

func toTaxPreviewDTO(result tax.Result) TaxPreviewDTO {
	dto := TaxPreviewDTO{
		Frequency:         string(result.Frequency),
		AnnualGross:       result.AnnualGross.String(),
		GrossForPeriod:    result.GrossForPeriod.String(),
		PersonalAllowance: result.PersonalAllowance.String(),
		TaxableIncome:     result.TaxableIncome.String(),
		IncomeTax:         result.IncomeTax.String(),
		NationalInsurance: result.NationalInsurance.String(),
		NetForPeriod:      result.NetForPeriod.String(),
	}
	for _, b := range result.Bands {
		dto.Bands = append(dto.Bands, BandTaxDTO{
			Name:    b.Name,
			Taxable: b.Taxable.String(),
			Tax:     b.Tax.String(),
		})
	}
	return dto
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	employee, err := h.Store.GetEmployee(r.Context(), id)
	if errors.Is(err, payslip.ErrEmployeeNotFound) {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(*employee))
}

// SaveEmployee creates or replaces an employee.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.DepartmentID == "" {
		writeError(w, http.StatusBadRequest, "id, name and department_id are required", nil)
		return
	}

	joinDate, err := time.Parse(dateLayout, req.JoinDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid join_date format (use YYYY-MM-DD)", err)
		return
	}
	salary, err := decimal.NewFromString(req.BasicSalary)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid basic_salary", err)
		return
	}

	employee := payslip.Employee{
		ID:           req.ID,
		Name:         req.Name,
		DepartmentID: req.DepartmentID,
		Level:        req.Level,
		JoinDate:     joinDate,
		BasicSalary:  money.FromDecimal(salary),
		TaxCode:      req.TaxCode,
		Allowances:   req.Allowances,
		Deductions:   req.Deductions,
	}

	if err := h.Store.PutEmployee(r.Context(), employee); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(employee))
}

// ComputePayslip calculates a payslip for the given period.
func (h *Handler) ComputePayslip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PayslipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	periodStart, err := time.Parse(dateLayout, req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start format (use YYYY-MM-DD)", err)
		return
	}
	periodEnd, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Payslip.Calculate(r.Context(), id, periodStart, periodEnd)
	if errors.Is(err, payslip.ErrEmployeeNotFound) {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute payslip", err)
		return
	}

	writeJSON(w, http.StatusOK, toPayslipDTO(*result))
}

func toEmployeeDTO(e payslip.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:           e.ID,
		Name:         e.Name,
		DepartmentID: e.DepartmentID,
		Level:        e.Level,
		JoinDate:     e.JoinDate.Format(dateLayout),
		BasicSalary:  e.BasicSalary.String(),
		TaxCode:      e.TaxCode,
	}
}

func toPayslipDTO(result payslip.Result) PayslipDTO {
	dto := PayslipDTO{
		EmployeeID:        result.EmployeeID,
		PeriodStart:       result.PeriodStart.Format(dateLayout),
		PeriodEnd:         result.PeriodEnd.Format(dateLayout),
		BasicSalary:       result.BasicSalary.String(),
		TotalAllowances:   result.TotalAllowances.String(),
		GrossSalary:       result.GrossSalary.String(),
		TotalDeductions:   result.TotalDeductions.String(),
		IncomeTax:         result.IncomeTax.String(),
		NationalInsurance: result.NationalInsurance.String(),
		NetSalary:         result.NetSalary.String(),
		WorkingDays:       result.WorkingDays,
	}
	for _, line := range result.Allowances {
		dto.Allowances = append(dto.Allowances, toPayslipLineDTO(line))
	}
	for _, line := range result.Deductions {
		dto.Deductions = append(dto.Deductions, toPayslipLineDTO(line))
	}
	return dto
}

func toPayslipLineDTO(line payslip.AppliedLine) PayslipLineDTO {
	return PayslipLineDTO{
		ID:      line.ID,
		Name:    line.Name,
		Amount:  line.Amount.String(),
		Taxable: line.Taxable,
	}
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns every approval rule.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = h.RuleFactory.ToJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns one rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := h.Store.GetRule(r.Context(), id)
	if errors.Is(err, approval.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}

	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(*rule))
}

// SaveRule creates or replaces a rule from its JSON definition. Validation
// happens here, so invalid definitions never reach the evaluator.
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var rj RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule definition", err)
		return
	}

	if err := h.Store.PutRule(r.Context(), *rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.RuleFactory.ToJSON(*rule))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// SubmitLeave submits a leave request and runs auto-approval.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	request, evaluation, err := h.Leave.Submit(r.Context(), leave.SubmitInput{
		EmployeeID:             req.EmployeeID,
		LeaveType:              req.LeaveType,
		StartDate:              startDate,
		EndDate:                endDate,
		Reason:                 req.Reason,
		HasSupportingDocuments: req.HasSupportingDocuments,
	})
	if errors.Is(err, payslip.ErrEmployeeNotFound) {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	if errors.Is(err, leave.ErrInvalidDateRange) {
		writeError(w, http.StatusBadRequest, "end_date is before start_date", nil)
		return
	}
	if err != nil && request == nil {
		writeError(w, http.StatusInternalServerError, "Failed to submit request", err)
		return
	}

	// Evaluation infrastructure failures leave the request pending; report
	// the stored request without a verdict.
	resp := SubmitLeaveResponse{Request: toLeaveRequestDTO(*request)}
	if evaluation != nil {
		resp.Evaluation = &EvaluationDTO{
			Verdict:  string(evaluation.Verdict),
			Reason:   evaluation.Reason,
			RuleID:   evaluation.RuleID,
			RuleName: evaluation.RuleName,
			Trail:    evaluation.Trail,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetLeaveRequest returns one leave request.
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	request, err := h.Store.GetRequest(r.Context(), id)
	if errors.Is(err, leave.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Request not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*request))
}

// ApproveLeave records a manual approval.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, h.Leave.Approve)
}

// RejectLeave records a manual rejection.
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, h.Leave.Reject)
}

// CancelLeave cancels a pending request.
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	h.decideLeave(w, r, h.Leave.Cancel)
}

func (h *Handler) decideLeave(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, requestID, actorID string) (*leave.Request, error)) {
	id := chi.URLParam(r, "id")

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	request, err := decide(r.Context(), id, req.ActorID)
	if errors.Is(err, leave.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, "Request not found", nil)
		return
	}
	if errors.Is(err, leave.ErrInvalidState) {
		writeError(w, http.StatusConflict, "Request is not pending", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*request))
}

// ListLeaveRequests returns an employee's request history.
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	requests, err := h.Store.ListRequests(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]LeaveRequestDTO, len(requests))
	for i, request := range requests {
		dtos[i] = toLeaveRequestDTO(request)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeaveBalance returns the balance for the financial year containing the
// as_of date (default: today).
func (h *Handler) GetLeaveBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	leaveType := r.URL.Query().Get("leave_type")
	if leaveType == "" {
		leaveType = "annual"
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	balance, err := h.Store.GetBalance(r.Context(), id, leaveType, leave.FinancialYearStart(asOf))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(*balance))
}

// SetLeaveBalance sets the entitlement for the financial year containing
// the as_of date (default: today). Pending and used days are preserved.
func (h *Handler) SetLeaveBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetEntitlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Entitlement < 0 {
		writeError(w, http.StatusBadRequest, "entitlement must not be negative", nil)
		return
	}
	leaveType := req.LeaveType
	if leaveType == "" {
		leaveType = "annual"
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := time.Parse(dateLayout, req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	balance, err := h.Leave.SetEntitlement(r.Context(), id, leaveType, leave.FinancialYearStart(asOf), req.Entitlement)
	if err != nil {
		if errors.Is(err, payslip.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "Employee not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(*balance))
}

func toBalanceDTO(balance leave.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  balance.EmployeeID,
		LeaveType:   balance.LeaveType,
		YearStart:   balance.YearStart.Format(dateLayout),
		Entitlement: balance.Entitlement,
		Pending:     balance.Pending,
		Used:        balance.Used,
		Available:   balance.Available(),
	}
}

func toLeaveRequestDTO(request leave.Request) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:          request.ID,
		EmployeeID:  request.EmployeeID,
		LeaveType:   request.LeaveType,
		StartDate:   request.StartDate.Format(dateLayout),
		EndDate:     request.EndDate.Format(dateLayout),
		Days:        request.Days,
		Reason:      request.Reason,
		Status:      request.Status,
		SubmittedAt: request.SubmittedAt.Format(time.RFC3339),
		DecidedBy:   request.DecidedBy,
	}
	if request.DecidedAt != nil {
		decidedAt := request.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &decidedAt
	}
	return dto
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListRuleLogs returns evaluation audit entries, newest first.
func (h *Handler) ListRuleLogs(w http.ResponseWriter, r *http.Request) {
	filter := approval.RuleLogFilter{
		EmployeeID:     r.URL.Query().Get("employee_id"),
		LeaveRequestID: r.URL.Query().Get("request_id"),
		RuleID:         r.URL.Query().Get("rule_id"),
	}

	logs, err := h.Store.ListRuleLogs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rule logs", err)
		return
	}

	dtos := make([]RuleLogDTO, len(logs))
	for i, entry := range logs {
		dtos[i] = RuleLogDTO{
			ID:             entry.ID,
			RuleID:         entry.RuleID,
			LeaveRequestID: entry.LeaveRequestID,
			EmployeeID:     entry.EmployeeID,
			Verdict:        string(entry.Verdict),
			Reason:         entry.Reason,
			Trail:          entry.Trail,
			CreatedAt:      entry.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
