/*
Package leave orchestrates the leave-request lifecycle: submission,
auto-approval, manual approval/rejection, cancellation, and leave-balance
bookkeeping.

The package is deliberately thin. The decision-making lives in the approval
engine; this service wires it to the stores and applies the resulting
balance movements.

STATE MACHINE:
  pending ──▶ approved          (auto or manual)
          ──▶ rejected
          ──▶ cancelled         (only while pending)

BALANCES:
  Submitting a request holds its days as "pending" against the balance for
  the financial year (April-March). Approval moves pending → used;
  rejection and cancellation release the hold.
*/
package leave

import (
	"context"
	"time"
)

// Status of a leave request.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Request is a persisted leave request.
type Request struct {
	ID           string     `json:"id"`
	EmployeeID   string     `json:"employeeId"`
	DepartmentID string     `json:"departmentId"`
	LeaveType    string     `json:"leaveType"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	Days         float64    `json:"days"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	HasSupportingDocuments bool `json:"hasSupportingDocuments"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	DecidedBy    string     `json:"decidedBy,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
}

// Balance tracks one employee's leave for one type and financial year.
type Balance struct {
	EmployeeID  string    `json:"employeeId"`
	LeaveType   string    `json:"leaveType"`
	YearStart   time.Time `json:"yearStart"` // April 1 of the financial year
	Entitlement float64   `json:"entitlement"`
	Pending     float64   `json:"pending"`
	Used        float64   `json:"used"`
}

// Available returns what the employee can still request.
func (b Balance) Available() float64 {
	return b.Entitlement - b.Pending - b.Used
}

// RequestStore persists leave requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	UpdateRequestStatus(ctx context.Context, id, status, decidedBy string, decidedAt time.Time) error
	ListRequests(ctx context.Context, employeeID string) ([]Request, error)
}

// BalanceStore persists leave balances.
type BalanceStore interface {
	GetBalance(ctx context.Context, employeeID, leaveType string, yearStart time.Time) (*Balance, error)

	// PutBalance creates or replaces a balance row.
	PutBalance(ctx context.Context, b Balance) error

	// AddPending holds days against the balance when a request is created.
	AddPending(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64) error

	// SettlePending releases a hold. When used is true the days move to
	// Used (approval); otherwise they are simply released (rejection,
	// cancellation).
	SettlePending(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64, used bool) error
}

// FinancialYearStart returns April 1 of the financial year containing t.
// The UK financial year runs April through March.
func FinancialYearStart(t time.Time) time.Time {
	year := t.Year()
	if t.Month() < time.April {
		year--
	}
	return time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
}

// RequestDays returns the inclusive day count between start and end.
func RequestDays(start, end time.Time) (float64, error) {
	if end.Before(start) {
		return 0, ErrInvalidDateRange
	}
	return end.Sub(start).Hours()/24 + 1, nil
}
