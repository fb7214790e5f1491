package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payslip"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestActiveRules_FilterSemantics(t *testing.T) {
	// GIVEN: Rules scoped to departments and leave types
	// WHEN: Loading with a filter
	// THEN: Unscoped rules always match; scoped rules only on overlap

	ctx := context.Background()
	s := New()

	mustPutRule(t, s, approval.Rule{ID: "any", Name: "Any", Priority: 2, Active: true})
	mustPutRule(t, s, approval.Rule{
		ID: "eng-only", Name: "Eng", Priority: 1, Active: true,
		ApplicableDepartments: []string{"dept-eng"},
	})
	mustPutRule(t, s, approval.Rule{
		ID: "sick-only", Name: "Sick", Priority: 3, Active: true,
		ApplicableLeaveTypes: []string{"sick"},
	})
	mustPutRule(t, s, approval.Rule{ID: "off", Name: "Off", Priority: 0, Active: false})

	rules, err := s.ActiveRules(ctx, approval.RuleFilter{
		DepartmentID: "dept-eng",
		LeaveType:    "annual",
	})
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	sorted := approval.SortRules(rules)
	if sorted[0].ID != "eng-only" || sorted[1].ID != "any" {
		t.Errorf("unexpected rules: %s, %s", sorted[0].ID, sorted[1].ID)
	}

	// An empty filter matches everything active, including scoped rules.
	rules, err = s.ActiveRules(ctx, approval.RuleFilter{})
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if len(rules) != 3 {
		t.Errorf("expected 3 rules with empty filter, got %d", len(rules))
	}
}

func TestRequestsInMonth(t *testing.T) {
	ctx := context.Background()
	s := New()

	submit := func(id string, submittedAt time.Time, status string) {
		err := s.CreateRequest(ctx, leave.Request{
			ID: id, EmployeeID: "emp-1", DepartmentID: "dept-eng",
			LeaveType: "annual", StartDate: submittedAt, EndDate: submittedAt,
			Days: 1, Status: status, SubmittedAt: submittedAt,
		})
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
	}

	submit("r1", date(2025, time.June, 2), leave.StatusApproved)
	submit("r2", date(2025, time.June, 20), leave.StatusPending)
	submit("r3", date(2025, time.June, 25), leave.StatusCancelled) // not counted
	submit("r4", date(2025, time.July, 1), leave.StatusPending)    // wrong month

	count, err := s.RequestsInMonth(ctx, "emp-1", 2025, time.June)
	if err != nil {
		t.Fatalf("RequestsInMonth: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 requests in June, got %d", count)
	}
}

func TestOverlappingApproved(t *testing.T) {
	ctx := context.Background()
	s := New()

	put := func(id, dept, status string, start, end time.Time) {
		err := s.CreateRequest(ctx, leave.Request{
			ID: id, EmployeeID: "emp-" + id, DepartmentID: dept,
			LeaveType: "annual", StartDate: start, EndDate: end,
			Days: 1, Status: status, SubmittedAt: start.AddDate(0, 0, -7),
		})
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
	}

	put("a", "dept-eng", leave.StatusApproved, date(2025, time.June, 10), date(2025, time.June, 12))
	put("b", "dept-eng", leave.StatusPending, date(2025, time.June, 10), date(2025, time.June, 12))
	put("c", "dept-eng", leave.StatusApproved, date(2025, time.June, 20), date(2025, time.June, 22))
	put("d", "dept-hr", leave.StatusApproved, date(2025, time.June, 10), date(2025, time.June, 12))

	count, err := s.OverlappingApproved(ctx, "dept-eng", date(2025, time.June, 11), date(2025, time.June, 13))
	if err != nil {
		t.Fatalf("OverlappingApproved: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 overlapping approved request, got %d", count)
	}
}

func TestBalanceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	yearStart := date(2025, time.April, 1)

	if err := s.AddPending(ctx, "emp-1", "annual", yearStart, 3); err != nil {
		t.Fatalf("AddPending: %v", err)
	}
	if err := s.SettlePending(ctx, "emp-1", "annual", yearStart, 3, true); err != nil {
		t.Fatalf("SettlePending: %v", err)
	}

	b, err := s.GetBalance(ctx, "emp-1", "annual", yearStart)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.Pending != 0 || b.Used != 3 {
		t.Errorf("expected pending=0 used=3, got %+v", b)
	}

	// Missing balances read as zero
	b, err = s.GetBalance(ctx, "emp-2", "annual", yearStart)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.Pending != 0 || b.Used != 0 || b.Entitlement != 0 {
		t.Errorf("expected zero balance, got %+v", b)
	}
}

func TestGetEmployee_NotFound(t *testing.T) {
	s := New()

	_, err := s.GetEmployee(context.Background(), "ghost")
	if !errors.Is(err, payslip.ErrEmployeeNotFound) {
		t.Errorf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestUpdateRequestStatus_NotFound(t *testing.T) {
	s := New()

	err := s.UpdateRequestStatus(context.Background(), "nope", leave.StatusApproved, "mgr", time.Now())
	if !errors.Is(err, leave.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func mustPutRule(t *testing.T, s *Store, r approval.Rule) {
	t.Helper()
	if err := s.PutRule(context.Background(), r); err != nil {
		t.Fatalf("PutRule: %v", err)
	}
}
