package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/money"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }

func newService(t *testing.T, rules ...approval.Rule) (*leave.Service, *memory.Store) {
	t.Helper()

	ctx := context.Background()
	store := memory.New()
	err := store.PutEmployee(ctx, payslip.Employee{
		ID:           "emp-1",
		Name:         "Priya Shah",
		DepartmentID: "dept-eng",
		Level:        "senior",
		JoinDate:     date(2021, time.February, 1),
		BasicSalary:  money.FromFloat(2500),
		TaxCode:      "1257L",
	})
	require.NoError(t, err)
	for _, r := range rules {
		require.NoError(t, store.PutRule(ctx, r))
	}

	evaluator := approval.NewEvaluator(store, store)
	service := leave.NewService(store, store, store, evaluator, store).
		WithClock(func() time.Time { return date(2025, time.June, 2) })
	return service, store
}

func submitInput() leave.SubmitInput {
	return leave.SubmitInput{
		EmployeeID:             "emp-1",
		LeaveType:              "annual",
		StartDate:              date(2025, time.June, 16),
		EndDate:                date(2025, time.June, 18),
		Reason:                 "family visit",
		HasSupportingDocuments: true,
	}
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmit_AutoApproved(t *testing.T) {
	// GIVEN: An unrestricted active rule
	// WHEN: A request is submitted
	// THEN: Approved, balance moved pending → used, rule log written

	service, store := newService(t, approval.Rule{
		ID: "rule-1", Name: "Open door", Priority: 1, Active: true,
	})
	ctx := context.Background()

	request, result, err := service.Submit(ctx, submitInput())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, approval.VerdictApproved, result.Verdict)
	assert.Equal(t, leave.StatusApproved, request.Status)
	assert.Equal(t, "auto-approval", request.DecidedBy)
	assert.Equal(t, 3.0, request.Days)

	balance, err := store.GetBalance(ctx, "emp-1", "annual", leave.FinancialYearStart(date(2025, time.June, 16)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance.Pending)
	assert.Equal(t, 3.0, balance.Used)

	logs, err := store.ListRuleLogs(ctx, approval.RuleLogFilter{LeaveRequestID: request.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, approval.VerdictApproved, logs[0].Verdict)
	assert.Equal(t, "rule-1", logs[0].RuleID)
	assert.NotEmpty(t, logs[0].Trail)
}

func TestSubmit_ManualReview_StaysPending(t *testing.T) {
	// A restrictive rule routes the request to a human; the balance hold
	// stays in place.

	service, store := newService(t, approval.Rule{
		ID: "rule-1", Name: "One day only", Priority: 1, Active: true,
		MaxDaysAllowed: floatPtr(1),
	})
	ctx := context.Background()

	request, result, err := service.Submit(ctx, submitInput())
	require.NoError(t, err)

	assert.Equal(t, approval.VerdictManualApproval, result.Verdict)
	assert.Equal(t, leave.StatusPending, request.Status)

	balance, err := store.GetBalance(ctx, "emp-1", "annual", leave.FinancialYearStart(date(2025, time.June, 16)))
	require.NoError(t, err)
	assert.Equal(t, 3.0, balance.Pending)
	assert.Equal(t, 0.0, balance.Used)
}

func TestSubmit_UnknownEmployee(t *testing.T) {
	service, _ := newService(t)

	input := submitInput()
	input.EmployeeID = "ghost"
	_, _, err := service.Submit(context.Background(), input)
	assert.True(t, errors.Is(err, payslip.ErrEmployeeNotFound))
}

func TestSubmit_InvalidDateRange(t *testing.T) {
	service, _ := newService(t)

	input := submitInput()
	input.StartDate, input.EndDate = input.EndDate, input.StartDate
	_, _, err := service.Submit(context.Background(), input)
	assert.True(t, errors.Is(err, leave.ErrInvalidDateRange))
}

// =============================================================================
// MANUAL DECISION TESTS
// =============================================================================

func TestApprove_PendingRequest(t *testing.T) {
	service, store := newService(t, approval.Rule{
		ID: "rule-1", Name: "One day only", Priority: 1, Active: true,
		MaxDaysAllowed: floatPtr(1),
	})
	ctx := context.Background()

	pending, _, err := service.Submit(ctx, submitInput())
	require.NoError(t, err)
	require.Equal(t, leave.StatusPending, pending.Status)

	approved, err := service.Approve(ctx, pending.ID, "manager-7")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, "manager-7", approved.DecidedBy)

	balance, err := store.GetBalance(ctx, "emp-1", "annual", leave.FinancialYearStart(date(2025, time.June, 16)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance.Pending)
	assert.Equal(t, 3.0, balance.Used)
}

func TestSetEntitlement_PreservesMovements(t *testing.T) {
	service, _ := newService(t, approval.Rule{
		ID: "rule-1", Name: "Open door", Priority: 1, Active: true,
	})
	ctx := context.Background()

	approved, _, err := service.Submit(ctx, submitInput())
	require.NoError(t, err)
	require.Equal(t, leave.StatusApproved, approved.Status)

	yearStart := leave.FinancialYearStart(date(2025, time.June, 16))
	balance, err := service.SetEntitlement(ctx, "emp-1", "annual", yearStart, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, balance.Entitlement)
	assert.Equal(t, 3.0, balance.Used)
	assert.Equal(t, 22.0, balance.Available())
}

func TestSetEntitlement_UnknownEmployee(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	_, err := service.SetEntitlement(ctx, "nobody", "annual", leave.FinancialYearStart(date(2025, time.June, 1)), 25)
	require.ErrorIs(t, err, payslip.ErrEmployeeNotFound)
}

func TestReject_ReleasesHold(t *testing.T) {
	service, store := newService(t, approval.Rule{
		ID: "rule-1", Name: "One day only", Priority: 1, Active: true,
		MaxDaysAllowed: floatPtr(1),
	})
	ctx := context.Background()

	pending, _, err := service.Submit(ctx, submitInput())
	require.NoError(t, err)

	rejected, err := service.Reject(ctx, pending.ID, "manager-7")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)

	balance, err := store.GetBalance(ctx, "emp-1", "annual", leave.FinancialYearStart(date(2025, time.June, 16)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance.Pending)
	assert.Equal(t, 0.0, balance.Used)
}

func TestCancel_ApprovedRequest_InvalidState(t *testing.T) {
	service, _ := newService(t, approval.Rule{
		ID: "rule-1", Name: "Open door", Priority: 1, Active: true,
	})
	ctx := context.Background()

	approved, _, err := service.Submit(ctx, submitInput())
	require.NoError(t, err)
	require.Equal(t, leave.StatusApproved, approved.Status)

	_, err = service.Cancel(ctx, approved.ID, "emp-1")
	assert.True(t, errors.Is(err, leave.ErrInvalidState))
}

func TestApprove_UnknownRequest(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Approve(context.Background(), "nope", "manager-7")
	assert.True(t, errors.Is(err, leave.ErrRequestNotFound))
}

// =============================================================================
// FINANCIAL YEAR TESTS
// =============================================================================

func TestFinancialYearStart(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{date(2025, time.June, 15), date(2025, time.April, 1)},
		{date(2025, time.April, 1), date(2025, time.April, 1)},
		{date(2025, time.March, 31), date(2024, time.April, 1)},
		{date(2025, time.January, 2), date(2024, time.April, 1)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, leave.FinancialYearStart(tc.in), "input %s", tc.in)
	}
}

func TestRequestDays(t *testing.T) {
	days, err := leave.RequestDays(date(2025, time.June, 16), date(2025, time.June, 18))
	require.NoError(t, err)
	assert.Equal(t, 3.0, days)

	days, err = leave.RequestDays(date(2025, time.June, 16), date(2025, time.June, 16))
	require.NoError(t, err)
	assert.Equal(t, 1.0, days)

	_, err = leave.RequestDays(date(2025, time.June, 18), date(2025, time.June, 16))
	assert.Error(t, err)
}
