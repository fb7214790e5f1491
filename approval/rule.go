/*
Package approval implements the auto-approval rule engine for leave requests.

PURPOSE:
  Given a leave request, decides whether it can be approved automatically,
  must be rejected, or needs a human. Rules are evaluated in priority order;
  each rule is a bundle of optional predicates checked in a fixed sequence
  with short-circuit semantics.

KEY CONCEPTS IN THIS FILE (rule.go):
  - Rule: A named, prioritized set of optional conditions. A condition that
    is not set simply does not restrict.
  - CustomCondition: A closed, tagged set of extra conditions (minimum
    tenure, request-rate limit). Parsed and validated ONCE at rule load
    time - never re-interpreted per evaluation.
  - RuleSource / TeamStats: The injected read-only accessors. The engine
    owns no data; the rule set belongs to the persistence layer.

ORDERING:
  Rules evaluate ascending by Priority. Equal priorities tie-break by rule
  ID ascending, so evaluation order is fully deterministic regardless of
  how the source returns them.

SEE ALSO:
  - evaluator.go: the evaluation loop and condition checks
  - result.go: verdicts and the explanation trail
  - factory/rule.go: building rules from JSON definitions
*/
package approval

import (
	"context"
	"sort"
	"time"
)

// Rule is one auto-approval rule. Every predicate is optional: nil pointers
// and empty slices mean "no restriction".
type Rule struct {
	ID       string
	Name     string
	Priority int // ascending = evaluated first
	Active   bool

	// Numeric limits
	MaxDaysAllowed     *float64
	MinNoticeDays      *int
	MaxConsecutiveDays *float64

	// Applicability filters. Empty = applies to everything.
	ApplicableLeaveTypes  []string
	ApplicableLevels      []string
	ApplicableDepartments []string

	// Calendar restrictions
	AllowedWeekdays []time.Weekday
	AllowedMonths   []time.Month
	BlackoutStart   *time.Time
	BlackoutEnd     *time.Time

	// Documents
	RequireSupportingDocuments bool

	// Team conflict limit: the fraction of an active department that may be
	// on approved leave at once, in percent.
	CheckTeamConflicts  bool
	MaxTeamLeavePercent *float64

	// Extra conditions from the closed vocabulary below.
	CustomConditions []CustomCondition
}

// CustomConditionKind enumerates the supported custom conditions. The set is
// closed: unknown kinds are rejected at rule load time, not at evaluation.
type CustomConditionKind string

const (
	// MinTenureMonths requires the employee to have been in the system for
	// at least N months at submission time.
	MinTenureMonths CustomConditionKind = "min_tenure_months"

	// MaxRequestsPerMonth caps non-cancelled requests per calendar month.
	MaxRequestsPerMonth CustomConditionKind = "max_requests_per_month"
)

// CustomCondition is one tagged condition with its integer threshold.
type CustomCondition struct {
	Kind  CustomConditionKind
	Value int
}

// Request is the evaluator's view of a leave request. It carries everything
// the condition checks need so that evaluation reads nothing but team state.
type Request struct {
	ID             string
	EmployeeID     string
	EmployeeLevel  string
	DepartmentID   string
	LeaveType      string
	StartDate      time.Time
	EndDate        time.Time
	DaysRequested  float64
	SubmittedAt    time.Time
	JoinDate       time.Time // employee's join date, for tenure checks
	HasSupportingDocuments bool
}

// RuleFilter narrows the rule set to those applicable to a request.
// Empty fields mean "do not filter".
type RuleFilter struct {
	LeaveType     string
	EmployeeLevel string
	DepartmentID  string
}

// Matches reports whether the rule's applicability lists accept the filter.
// An empty filter field does not restrict.
func (f RuleFilter) Matches(r Rule) bool {
	check := r
	if f.LeaveType == "" {
		check.ApplicableLeaveTypes = nil
	}
	if f.EmployeeLevel == "" {
		check.ApplicableLevels = nil
	}
	if f.DepartmentID == "" {
		check.ApplicableDepartments = nil
	}
	return check.AppliesTo(Request{
		LeaveType:     f.LeaveType,
		EmployeeLevel: f.EmployeeLevel,
		DepartmentID:  f.DepartmentID,
	})
}

// RuleSource loads active rules matching a filter. Implementations may
// pre-filter on applicability; the evaluator re-checks and re-orders
// defensively.
type RuleSource interface {
	ActiveRules(ctx context.Context, filter RuleFilter) ([]Rule, error)
}

// TeamStats provides the department-level reads performed mid-evaluation.
// All calls are blocking I/O and honor ctx cancellation.
type TeamStats interface {
	// OverlappingApproved counts approved leave requests in the department
	// that overlap [start, end].
	OverlappingApproved(ctx context.Context, departmentID string, start, end time.Time) (int, error)

	// ActiveHeadcount returns the number of active employees in the department.
	ActiveHeadcount(ctx context.Context, departmentID string) (int, error)

	// RequestsInMonth counts the employee's non-cancelled requests submitted
	// in the given calendar month.
	RequestsInMonth(ctx context.Context, employeeID string, year int, month time.Month) (int, error)
}

// SortRules orders rules by priority ascending, ties broken by rule ID
// ascending. Sorting is done on a copy; the input slice is not mutated.
func SortRules(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// AppliesTo reports whether the rule's applicability filters accept the
// request. An empty filter set accepts everything.
func (r Rule) AppliesTo(req Request) bool {
	if len(r.ApplicableLeaveTypes) > 0 && !containsString(r.ApplicableLeaveTypes, req.LeaveType) {
		return false
	}
	if len(r.ApplicableLevels) > 0 && !containsString(r.ApplicableLevels, req.EmployeeLevel) {
		return false
	}
	if len(r.ApplicableDepartments) > 0 && !containsString(r.ApplicableDepartments, req.DepartmentID) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
