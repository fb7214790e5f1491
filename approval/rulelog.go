/*
rulelog.go - Audit log for rule evaluations

PURPOSE:
  Every evaluation can be persisted as a RuleLogEntry: which rule decided,
  what the verdict was, and the full explanation trail. Logging is a side
  effect performed by the caller (the leave orchestrator) AFTER the
  evaluator returns - the evaluator itself never writes.

  Append-only, like every audit surface in this system.
*/
package approval

import (
	"context"
	"time"
)

// RuleLogEntry is one persisted evaluation outcome.
type RuleLogEntry struct {
	ID             string
	RuleID         string // empty when no rule produced the verdict
	LeaveRequestID string
	EmployeeID     string
	Verdict        Verdict
	Reason         string
	Trail          []string
	CreatedAt      time.Time
}

// RuleLogStore persists evaluation outcomes. Append-only: no update, no
// delete.
type RuleLogStore interface {
	AppendRuleLog(ctx context.Context, entry RuleLogEntry) error
	ListRuleLogs(ctx context.Context, filter RuleLogFilter) ([]RuleLogEntry, error)
}

// RuleLogFilter narrows a rule-log query. Nil/empty fields do not filter.
type RuleLogFilter struct {
	EmployeeID     string
	LeaveRequestID string
	RuleID         string
	Limit          int // 0 = no limit
}
