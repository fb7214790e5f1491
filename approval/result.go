/*
result.go - Verdicts and the evaluation result

PURPOSE:
  The evaluator always hands its caller a Result value for business
  outcomes. Verdicts are data, not errors: a rejected request is an
  expected outcome, and the explanation trail is the audit record of how
  the engine got there.

LIFECYCLE:
  A Result is created fresh per Evaluate call and never mutated after
  return. Persisting it as a rule log is the caller's side effect
  (see rulelog.go), not part of the evaluator's contract.
*/
package approval

import (
	"time"
)

// Verdict is the outcome of evaluating a leave request.
type Verdict string

const (
	VerdictApproved          Verdict = "approved"
	VerdictRejected          Verdict = "rejected"
	VerdictManualApproval    Verdict = "requires_manual_approval"
	VerdictRuleNotApplicable Verdict = "rule_not_applicable"
	VerdictError             Verdict = "error"
)

// Terminal reports whether the verdict ends evaluation. RuleNotApplicable
// means "this rule contributes nothing, try the next one".
func (v Verdict) Terminal() bool {
	return v != VerdictRuleNotApplicable
}

// Result is the outcome of one evaluation run.
type Result struct {
	Verdict  Verdict       `json:"verdict"`
	Reason   string        `json:"reason"`
	Trail    []string      `json:"trail"` // ordered, human-readable, one line per condition check
	RuleID   string        `json:"ruleId,omitempty"`   // the rule that produced the verdict
	RuleName string        `json:"ruleName,omitempty"`
	Duration time.Duration `json:"duration"`
}

// checkResult is the outcome of one condition check. Checks are pure
// functions returning values; the trail is assembled from them, never
// mutated in place by the checks themselves.
type checkResult struct {
	verdict Verdict // VerdictApproved when the check passes
	reason  string  // set when the check fails
	line    string  // trail line, produced pass or fail
}

func pass(line string) checkResult {
	return checkResult{verdict: VerdictApproved, line: line}
}

func fail(verdict Verdict, reason, line string) checkResult {
	return checkResult{verdict: verdict, reason: reason, line: line}
}

func (c checkResult) passed() bool { return c.verdict == VerdictApproved }
