/*
errors.go - Error types for the approval engine

ERROR CATEGORIES:
  1. Business verdicts - NOT errors. Returned inside Result (result.go).
  2. Evaluation faults - converted to VerdictError results, trail preserved.
  3. Infrastructure errors - the types below; the only errors Evaluate
     ever returns.

USAGE:
  result, err := evaluator.Evaluate(ctx, req)
  if err != nil {
      // storage unreachable - retry or 503, do NOT record a verdict
  }
*/
package approval

import (
	"errors"
	"fmt"
)

// ErrInfrastructure marks failures of the injected data sources. Use with
// errors.Is() to distinguish them from business outcomes.
var ErrInfrastructure = errors.New("infrastructure failure")

// ErrRuleNotFound is returned by stores when a referenced rule is missing.
var ErrRuleNotFound = errors.New("rule not found")

// InfrastructureError wraps a data-source failure with the operation that
// was being performed.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause, so
// errors.Is(err, ErrInfrastructure) and errors.Is(err, pgx.ErrNoRows)
// both work.
func (e *InfrastructureError) Unwrap() []error {
	return []error{ErrInfrastructure, e.Err}
}
