/*
service.go - Leave request lifecycle orchestration

SUBMIT FLOW:
  load employee ──▶ create request (pending) ──▶ hold balance
        │
        ▼
  auto-approval evaluation ──▶ rule log (audit, always written)
        │
        ├── approved ──▶ status approved, pending → used
        ├── rejected ──▶ status rejected, hold released
        └── manual / error ──▶ stays pending for a human

ERROR SHAPES:
  - Unknown employee/request: business errors (ErrRequestNotFound,
    payslip.ErrEmployeeNotFound), surfaced to the immediate caller.
  - Evaluator infrastructure failures: propagated; the request stays
    pending and no verdict is recorded. Callers may retry evaluation.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/payslip"
)

// Service orchestrates leave requests around the approval engine.
type Service struct {
	Employees payslip.EmployeeSource
	Requests  RequestStore
	Balances  BalanceStore
	Evaluator *approval.Evaluator
	Logs      approval.RuleLogStore

	// now is swappable for tests.
	now func() time.Time
}

// NewService wires the orchestrator.
func NewService(employees payslip.EmployeeSource, requests RequestStore, balances BalanceStore, evaluator *approval.Evaluator, logs approval.RuleLogStore) *Service {
	return &Service{
		Employees: employees,
		Requests:  requests,
		Balances:  balances,
		Evaluator: evaluator,
		Logs:      logs,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SubmitInput is what a caller provides to create a leave request.
type SubmitInput struct {
	EmployeeID             string
	LeaveType              string
	StartDate              time.Time
	EndDate                time.Time
	Reason                 string
	HasSupportingDocuments bool
}

// Submit creates a leave request, runs auto-approval, records the outcome
// and applies balance movements. The returned Result is nil when the
// evaluator could not run (infrastructure failure); the request is left
// pending in that case.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Request, *approval.Result, error) {
	employee, err := s.Employees.GetEmployee(ctx, input.EmployeeID)
	if err != nil {
		return nil, nil, err
	}

	days, err := RequestDays(input.StartDate, input.EndDate)
	if err != nil {
		return nil, nil, err
	}

	submittedAt := s.now()
	request := Request{
		ID:                     uuid.NewString(),
		EmployeeID:             employee.ID,
		DepartmentID:           employee.DepartmentID,
		LeaveType:              input.LeaveType,
		StartDate:              input.StartDate,
		EndDate:                input.EndDate,
		Days:                   days,
		Reason:                 input.Reason,
		Status:                 StatusPending,
		HasSupportingDocuments: input.HasSupportingDocuments,
		SubmittedAt:            submittedAt,
	}

	if err := s.Requests.CreateRequest(ctx, request); err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	yearStart := FinancialYearStart(input.StartDate)
	if err := s.Balances.AddPending(ctx, employee.ID, input.LeaveType, yearStart, days); err != nil {
		return nil, nil, fmt.Errorf("hold balance: %w", err)
	}

	result, err := s.Evaluator.Evaluate(ctx, approval.Request{
		ID:                     request.ID,
		EmployeeID:             employee.ID,
		EmployeeLevel:          employee.Level,
		DepartmentID:           employee.DepartmentID,
		LeaveType:              input.LeaveType,
		StartDate:              input.StartDate,
		EndDate:                input.EndDate,
		DaysRequested:          days,
		SubmittedAt:            submittedAt,
		JoinDate:               employee.JoinDate,
		HasSupportingDocuments: input.HasSupportingDocuments,
	})
	if err != nil {
		// Storage failure mid-evaluation. The request stays pending with
		// its balance hold; no verdict is recorded.
		return &request, nil, err
	}

	if err := s.Logs.AppendRuleLog(ctx, approval.RuleLogEntry{
		ID:             uuid.NewString(),
		RuleID:         result.RuleID,
		LeaveRequestID: request.ID,
		EmployeeID:     employee.ID,
		Verdict:        result.Verdict,
		Reason:         result.Reason,
		Trail:          result.Trail,
		CreatedAt:      s.now(),
	}); err != nil {
		return &request, result, fmt.Errorf("append rule log: %w", err)
	}

	switch result.Verdict {
	case approval.VerdictApproved:
		if err := s.decide(ctx, &request, StatusApproved, "auto-approval"); err != nil {
			return &request, result, err
		}
		if err := s.Balances.SettlePending(ctx, employee.ID, input.LeaveType, yearStart, days, true); err != nil {
			return &request, result, fmt.Errorf("settle balance: %w", err)
		}

	case approval.VerdictRejected:
		if err := s.decide(ctx, &request, StatusRejected, "auto-approval"); err != nil {
			return &request, result, err
		}
		if err := s.Balances.SettlePending(ctx, employee.ID, input.LeaveType, yearStart, days, false); err != nil {
			return &request, result, fmt.Errorf("release balance: %w", err)
		}

	default:
		// Manual review and error verdicts leave the request pending.
	}

	return &request, result, nil
}

// Approve performs a manual approval of a pending request.
func (s *Service) Approve(ctx context.Context, requestID, approverID string) (*Request, error) {
	request, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, request.Status)
	}

	if err := s.decide(ctx, request, StatusApproved, approverID); err != nil {
		return nil, err
	}
	yearStart := FinancialYearStart(request.StartDate)
	if err := s.Balances.SettlePending(ctx, request.EmployeeID, request.LeaveType, yearStart, request.Days, true); err != nil {
		return nil, fmt.Errorf("settle balance: %w", err)
	}
	return request, nil
}

// Reject performs a manual rejection of a pending request.
func (s *Service) Reject(ctx context.Context, requestID, approverID string) (*Request, error) {
	request, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, request.Status)
	}

	if err := s.decide(ctx, request, StatusRejected, approverID); err != nil {
		return nil, err
	}
	yearStart := FinancialYearStart(request.StartDate)
	if err := s.Balances.SettlePending(ctx, request.EmployeeID, request.LeaveType, yearStart, request.Days, false); err != nil {
		return nil, fmt.Errorf("release balance: %w", err)
	}
	return request, nil
}

// Cancel cancels a pending request. Approved requests cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, requestID, actorID string) (*Request, error) {
	request, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, request.Status)
	}

	if err := s.decide(ctx, request, StatusCancelled, actorID); err != nil {
		return nil, err
	}
	yearStart := FinancialYearStart(request.StartDate)
	if err := s.Balances.SettlePending(ctx, request.EmployeeID, request.LeaveType, yearStart, request.Days, false); err != nil {
		return nil, fmt.Errorf("release balance: %w", err)
	}
	return request, nil
}

// SetEntitlement sets the employee's entitlement for one leave type and
// financial year, preserving any pending and used days already recorded.
func (s *Service) SetEntitlement(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64) (*Balance, error) {
	if _, err := s.Employees.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	balance, err := s.Balances.GetBalance(ctx, employeeID, leaveType, yearStart)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	balance.Entitlement = days
	if err := s.Balances.PutBalance(ctx, *balance); err != nil {
		return nil, fmt.Errorf("save balance: %w", err)
	}
	return balance, nil
}

func (s *Service) decide(ctx context.Context, request *Request, status, decidedBy string) error {
	decidedAt := s.now()
	if err := s.Requests.UpdateRequestStatus(ctx, request.ID, status, decidedBy, decidedAt); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	request.Status = status
	request.DecidedBy = decidedBy
	request.DecidedAt = &decidedAt
	return nil
}
