/*
evaluator.go - The rule evaluation loop

PURPOSE:
  Walks the applicable rules in deterministic order and evaluates each
  rule's conditions in a fixed sequence, short-circuiting on the first
  failure. The first decisive verdict wins and later rules are never
  evaluated.

EVALUATION FLOW:
  load active rules (RuleSource)
      │ sort by (priority, id)
      ▼
  for each rule:
      inactive?            ──▶ skip, next rule
      department mismatch? ──▶ rule not applicable, next rule
      any condition fails  ──▶ terminal verdict (manual approval), STOP
      all conditions pass  ──▶ APPROVED, STOP
  no decisive verdict      ──▶ requires manual approval

ERROR MODEL:
  Three distinct failure shapes, kept apart on purpose:
  1. Business verdicts (manual approval, not applicable) - returned in the
     Result, never as an error.
  2. Evaluation faults (zero headcount, unknown condition kind, panics) -
     converted to a VerdictError Result with the trail preserved up to the
     fault.
  3. Infrastructure failures (RuleSource/TeamStats unreachable) - returned
     as a wrapped error in the second return value, so callers can retry
     or surface a 5xx instead of recording a bogus business verdict.

CONCURRENCY:
  The evaluator is stateless; every call starts fresh. Safe for concurrent
  use. Mid-evaluation reads (team conflicts, request counts) honor ctx.
*/
package approval

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Evaluator evaluates leave requests against the active rule set.
type Evaluator struct {
	Rules RuleSource
	Team  TeamStats
}

// NewEvaluator returns an evaluator backed by the given rule source and
// team statistics reader.
func NewEvaluator(rules RuleSource, team TeamStats) *Evaluator {
	return &Evaluator{Rules: rules, Team: team}
}

// Evaluate runs the request through the rule set and returns a verdict.
// The error return carries infrastructure failures only; every business
// outcome, including internal evaluation faults, arrives as a Result.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (result *Result, err error) {
	started := time.Now()

	var trail []string

	// Unexpected faults inside condition evaluation must surface as an
	// Error verdict with the trail preserved, never as a panic to the
	// caller.
	defer func() {
		if r := recover(); r != nil {
			result = &Result{
				Verdict:  VerdictError,
				Reason:   fmt.Sprintf("evaluation fault: %v", r),
				Trail:    trail,
				Duration: time.Since(started),
			}
			err = nil
		}
	}()

	rules, err := e.Rules.ActiveRules(ctx, RuleFilter{
		LeaveType:     req.LeaveType,
		EmployeeLevel: req.EmployeeLevel,
		DepartmentID:  req.DepartmentID,
	})
	if err != nil {
		return nil, &InfrastructureError{Op: "load rules", Err: err}
	}

	for _, rule := range SortRules(rules) {
		if !rule.Active {
			trail = append(trail, fmt.Sprintf("rule %q: inactive, skipped", rule.Name))
			continue
		}
		if !rule.AppliesTo(req) {
			trail = append(trail, fmt.Sprintf("rule %q: not applicable to this request", rule.Name))
			continue
		}

		trail = append(trail, fmt.Sprintf("evaluating rule %q (priority %d)", rule.Name, rule.Priority))

		outcome, lines, infraErr := e.evaluateRule(ctx, rule, req)
		trail = append(trail, lines...)
		if infraErr != nil {
			return nil, infraErr
		}

		switch outcome.verdict {
		case VerdictApproved:
			return &Result{
				Verdict:  VerdictApproved,
				Reason:   fmt.Sprintf("auto-approved by rule %q", rule.Name),
				Trail:    trail,
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Duration: time.Since(started),
			}, nil
		case VerdictRuleNotApplicable:
			// This rule contributes nothing; try the next one.
			continue
		default:
			// Rejected, manual approval and evaluation faults are terminal.
			return &Result{
				Verdict:  outcome.verdict,
				Reason:   outcome.reason,
				Trail:    trail,
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Duration: time.Since(started),
			}, nil
		}
	}

	return &Result{
		Verdict:  VerdictManualApproval,
		Reason:   "no rules resulted in auto-approval",
		Trail:    trail,
		Duration: time.Since(started),
	}, nil
}

// evaluateRule runs one rule's conditions in the fixed sequence,
// short-circuiting on the first failure. Returns the final checkResult,
// the trail lines produced, and any infrastructure error.
func (e *Evaluator) evaluateRule(ctx context.Context, rule Rule, req Request) (checkResult, []string, error) {
	var lines []string

	checks := []func() (checkResult, error){
		func() (checkResult, error) { return checkMaxDays(rule, req), nil },
		func() (checkResult, error) { return checkMinNotice(rule, req), nil },
		func() (checkResult, error) { return checkMaxConsecutive(rule, req), nil },
		func() (checkResult, error) { return checkDepartment(rule, req), nil },
		func() (checkResult, error) { return checkAllowedWeekdays(rule, req), nil },
		func() (checkResult, error) { return checkAllowedMonths(rule, req), nil },
		func() (checkResult, error) { return checkBlackout(rule, req), nil },
		func() (checkResult, error) { return checkDocuments(rule, req), nil },
		func() (checkResult, error) { return e.checkTeamConflicts(ctx, rule, req) },
		func() (checkResult, error) { return e.checkCustomConditions(ctx, rule, req) },
	}

	for _, check := range checks {
		outcome, err := check()
		if err != nil {
			return checkResult{}, lines, err
		}
		if outcome.line != "" {
			lines = append(lines, outcome.line)
		}
		if !outcome.passed() {
			return outcome, lines, nil
		}
	}

	return pass(""), lines, nil
}

// =============================================================================
// CONDITION CHECKS
// =============================================================================
// Each check is a pure function from (rule, request) to a checkResult.
// A predicate that is not set passes silently with no trail line.

func checkMaxDays(rule Rule, req Request) checkResult {
	if rule.MaxDaysAllowed == nil {
		return pass("")
	}
	if req.DaysRequested > *rule.MaxDaysAllowed {
		reason := fmt.Sprintf("requested %.1f days exceeds maximum allowed %.1f", req.DaysRequested, *rule.MaxDaysAllowed)
		return fail(VerdictManualApproval, reason, "max days: "+reason)
	}
	return pass(fmt.Sprintf("max days: requested %.1f within limit %.1f", req.DaysRequested, *rule.MaxDaysAllowed))
}

func checkMinNotice(rule Rule, req Request) checkResult {
	if rule.MinNoticeDays == nil {
		return pass("")
	}
	notice := wholeDaysBetween(req.SubmittedAt, req.StartDate)
	if notice < *rule.MinNoticeDays {
		reason := fmt.Sprintf("notice of %d days is below required %d", notice, *rule.MinNoticeDays)
		return fail(VerdictManualApproval, reason, "min notice: "+reason)
	}
	return pass(fmt.Sprintf("min notice: %d days given, %d required", notice, *rule.MinNoticeDays))
}

func checkMaxConsecutive(rule Rule, req Request) checkResult {
	if rule.MaxConsecutiveDays == nil {
		return pass("")
	}
	if req.DaysRequested > *rule.MaxConsecutiveDays {
		reason := fmt.Sprintf("requested %.1f consecutive days exceeds maximum %.1f", req.DaysRequested, *rule.MaxConsecutiveDays)
		return fail(VerdictManualApproval, reason, "max consecutive: "+reason)
	}
	return pass(fmt.Sprintf("max consecutive: %.1f within limit %.1f", req.DaysRequested, *rule.MaxConsecutiveDays))
}

// checkDepartment yields RuleNotApplicable, not a rejection: a department
// mismatch means the rule has nothing to say about this request, and
// evaluation continues with the next rule.
func checkDepartment(rule Rule, req Request) checkResult {
	if len(rule.ApplicableDepartments) == 0 {
		return pass("")
	}
	if !containsString(rule.ApplicableDepartments, req.DepartmentID) {
		reason := fmt.Sprintf("department %s outside rule scope", req.DepartmentID)
		return fail(VerdictRuleNotApplicable, reason, "department: "+reason)
	}
	return pass(fmt.Sprintf("department: %s within rule scope", req.DepartmentID))
}

func checkAllowedWeekdays(rule Rule, req Request) checkResult {
	if len(rule.AllowedWeekdays) == 0 {
		return pass("")
	}
	for day := truncateDay(req.StartDate); !day.After(truncateDay(req.EndDate)); day = day.AddDate(0, 0, 1) {
		if !containsWeekday(rule.AllowedWeekdays, day.Weekday()) {
			reason := fmt.Sprintf("%s falls on %s, outside allowed weekdays", day.Format("2006-01-02"), day.Weekday())
			return fail(VerdictManualApproval, reason, "allowed weekdays: "+reason)
		}
	}
	return pass("allowed weekdays: all requested days permitted")
}

func checkAllowedMonths(rule Rule, req Request) checkResult {
	if len(rule.AllowedMonths) == 0 {
		return pass("")
	}
	for _, m := range []time.Month{req.StartDate.Month(), req.EndDate.Month()} {
		if !containsMonth(rule.AllowedMonths, m) {
			reason := fmt.Sprintf("%s is outside allowed months", m)
			return fail(VerdictManualApproval, reason, "allowed months: "+reason)
		}
	}
	return pass("allowed months: start and end months permitted")
}

func checkBlackout(rule Rule, req Request) checkResult {
	if rule.BlackoutStart == nil || rule.BlackoutEnd == nil {
		return pass("")
	}
	// Standard interval overlap: start1 <= end2 AND end1 >= start2.
	if !req.StartDate.After(*rule.BlackoutEnd) && !req.EndDate.Before(*rule.BlackoutStart) {
		reason := fmt.Sprintf("request overlaps blackout period %s to %s",
			rule.BlackoutStart.Format("2006-01-02"), rule.BlackoutEnd.Format("2006-01-02"))
		return fail(VerdictManualApproval, reason, "blackout: "+reason)
	}
	return pass("blackout: no overlap with blackout period")
}

func checkDocuments(rule Rule, req Request) checkResult {
	if !rule.RequireSupportingDocuments {
		return pass("")
	}
	if !req.HasSupportingDocuments {
		reason := "supporting documents required but not provided"
		return fail(VerdictManualApproval, reason, "documents: "+reason)
	}
	return pass("documents: supporting documents provided")
}

func (e *Evaluator) checkTeamConflicts(ctx context.Context, rule Rule, req Request) (checkResult, error) {
	if !rule.CheckTeamConflicts || rule.MaxTeamLeavePercent == nil {
		return pass(""), nil
	}

	overlapping, err := e.Team.OverlappingApproved(ctx, req.DepartmentID, req.StartDate, req.EndDate)
	if err != nil {
		return checkResult{}, &InfrastructureError{Op: "count overlapping leave", Err: err}
	}
	headcount, err := e.Team.ActiveHeadcount(ctx, req.DepartmentID)
	if err != nil {
		return checkResult{}, &InfrastructureError{Op: "department headcount", Err: err}
	}
	if headcount <= 0 {
		reason := fmt.Sprintf("department %s has no active employees", req.DepartmentID)
		return fail(VerdictError, reason, "team conflicts: "+reason), nil
	}

	percent := float64(overlapping+1) / float64(headcount) * 100
	if percent > *rule.MaxTeamLeavePercent {
		reason := fmt.Sprintf("%.1f%% of the team would be on leave, above the %.1f%% limit", percent, *rule.MaxTeamLeavePercent)
		return fail(VerdictManualApproval, reason, "team conflicts: "+reason), nil
	}
	return pass(fmt.Sprintf("team conflicts: %.1f%% of team on leave, within %.1f%% limit", percent, *rule.MaxTeamLeavePercent)), nil
}

func (e *Evaluator) checkCustomConditions(ctx context.Context, rule Rule, req Request) (checkResult, error) {
	for _, cond := range rule.CustomConditions {
		switch cond.Kind {
		case MinTenureMonths:
			tenure := monthsBetween(req.JoinDate, req.SubmittedAt)
			if tenure < cond.Value {
				reason := fmt.Sprintf("tenure of %d months is below required %d", tenure, cond.Value)
				return fail(VerdictManualApproval, reason, "min tenure: "+reason), nil
			}

		case MaxRequestsPerMonth:
			count, err := e.Team.RequestsInMonth(ctx, req.EmployeeID, req.SubmittedAt.Year(), req.SubmittedAt.Month())
			if err != nil {
				return checkResult{}, &InfrastructureError{Op: "count monthly requests", Err: err}
			}
			if count >= cond.Value {
				reason := fmt.Sprintf("%d requests this month reaches the limit of %d", count, cond.Value)
				return fail(VerdictManualApproval, reason, "request rate: "+reason), nil
			}

		default:
			// Unknown kinds are filtered at load time; reaching here means a
			// malformed rule slipped through. Evaluation fault, not a panic.
			reason := fmt.Sprintf("unsupported custom condition %q", cond.Kind)
			return fail(VerdictError, reason, "custom conditions: "+reason), nil
		}
	}
	if len(rule.CustomConditions) > 0 {
		return pass("custom conditions: all satisfied"), nil
	}
	return pass(""), nil
}

// =============================================================================
// DATE HELPERS
// =============================================================================

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// wholeDaysBetween returns the number of whole days from a to b, floored.
func wholeDaysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// monthsBetween returns whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func containsWeekday(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func containsMonth(months []time.Month, month time.Month) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
