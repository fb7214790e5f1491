/*
Package factory provides JSON to Go approval-rule conversion.

PURPOSE:
  Converts JSON rule definitions into approval.Rule values. This enables
  rule configuration without code changes - HR can define auto-approval
  rules in JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify rules
  - Easy integration with admin UI
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "id": "annual-fast-track",
    "name": "Annual fast track",
    "priority": 1,
    "active": true,
    "max_days_allowed": 5,
    "min_notice_days": 7,
    "leave_types": ["annual"],
    "levels": ["junior", "mid"],
    "departments": ["dept-eng"],
    "allowed_weekdays": ["monday", "tuesday", "wednesday", "thursday", "friday"],
    "allowed_months": [6, 7, 8],
    "blackout": {"start": "2025-12-20", "end": "2026-01-05"},
    "require_supporting_documents": false,
    "check_team_conflicts": true,
    "max_team_leave_percent": 30,
    "custom_conditions": [
      {"kind": "min_tenure_months", "value": 6}
    ]
  }

KEY FEATURES:
  - Validates JSON structure at load time
  - Rejects unknown custom-condition kinds before any request is evaluated
  - Parses weekday and month names
  - Round-trips rules back to JSON for storage and admin APIs

USAGE:
  factory := NewRuleFactory()

  // From JSON string
  rule, err := factory.ParseRule(jsonString)

  // From a JSON array
  rules, err := factory.ParseRules(jsonArray)

SEE ALSO:
  - approval/rule.go: Rule type definition
  - approval/evaluator.go: rule evaluation
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/payroll-engine/approval"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of an approval rule.
type RuleJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Active   bool   `json:"active"`

	MaxDaysAllowed     *float64 `json:"max_days_allowed,omitempty"`
	MinNoticeDays      *int     `json:"min_notice_days,omitempty"`
	MaxConsecutiveDays *float64 `json:"max_consecutive_days,omitempty"`

	LeaveTypes  []string `json:"leave_types,omitempty"`
	Levels      []string `json:"levels,omitempty"`
	Departments []string `json:"departments,omitempty"`

	AllowedWeekdays []string    `json:"allowed_weekdays,omitempty"`
	AllowedMonths   []int       `json:"allowed_months,omitempty"`
	Blackout        *WindowJSON `json:"blackout,omitempty"`

	RequireSupportingDocuments bool `json:"require_supporting_documents,omitempty"`

	CheckTeamConflicts  bool     `json:"check_team_conflicts,omitempty"`
	MaxTeamLeavePercent *float64 `json:"max_team_leave_percent,omitempty"`

	CustomConditions []ConditionJSON `json:"custom_conditions,omitempty"`
}

// WindowJSON is a date window in "2006-01-02" form, inclusive on both ends.
type WindowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ConditionJSON is one custom condition with its integer threshold.
type ConditionJSON struct {
	Kind  string `json:"kind"`
	Value int    `json:"value"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rule definitions to Go structs.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a single JSON object into a Rule.
func (f *RuleFactory) ParseRule(jsonStr string) (*approval.Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseRules parses a JSON array of rule objects.
func (f *RuleFactory) ParseRules(jsonStr string) ([]approval.Rule, error) {
	var rjs []RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rjs); err != nil {
		return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
	}

	rules := make([]approval.Rule, 0, len(rjs))
	for i, rj := range rjs {
		rule, err := f.FromJSON(rj)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

// FromJSON converts RuleJSON to an approval.Rule, validating every field.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*approval.Rule, error) {
	if rj.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}
	if rj.Name == "" {
		return nil, fmt.Errorf("rule %q: name is required", rj.ID)
	}
	if rj.MaxDaysAllowed != nil && *rj.MaxDaysAllowed <= 0 {
		return nil, fmt.Errorf("rule %q: max_days_allowed must be positive", rj.ID)
	}
	if rj.MinNoticeDays != nil && *rj.MinNoticeDays < 0 {
		return nil, fmt.Errorf("rule %q: min_notice_days must not be negative", rj.ID)
	}
	if rj.MaxConsecutiveDays != nil && *rj.MaxConsecutiveDays <= 0 {
		return nil, fmt.Errorf("rule %q: max_consecutive_days must be positive", rj.ID)
	}
	if rj.MaxTeamLeavePercent != nil && (*rj.MaxTeamLeavePercent <= 0 || *rj.MaxTeamLeavePercent > 100) {
		return nil, fmt.Errorf("rule %q: max_team_leave_percent must be in (0, 100]", rj.ID)
	}

	rule := &approval.Rule{
		ID:                 rj.ID,
		Name:               rj.Name,
		Priority:           rj.Priority,
		Active:             rj.Active,
		MaxDaysAllowed:     rj.MaxDaysAllowed,
		MinNoticeDays:      rj.MinNoticeDays,
		MaxConsecutiveDays: rj.MaxConsecutiveDays,

		ApplicableLeaveTypes:  rj.LeaveTypes,
		ApplicableLevels:      rj.Levels,
		ApplicableDepartments: rj.Departments,

		RequireSupportingDocuments: rj.RequireSupportingDocuments,
		CheckTeamConflicts:         rj.CheckTeamConflicts,
		MaxTeamLeavePercent:        rj.MaxTeamLeavePercent,
	}

	for _, name := range rj.AllowedWeekdays {
		wd, err := parseWeekday(name)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rj.ID, err)
		}
		rule.AllowedWeekdays = append(rule.AllowedWeekdays, wd)
	}

	for _, m := range rj.AllowedMonths {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("rule %q: month %d out of range", rj.ID, m)
		}
		rule.AllowedMonths = append(rule.AllowedMonths, time.Month(m))
	}

	if rj.Blackout != nil {
		start, end, err := parseWindow(*rj.Blackout)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rj.ID, err)
		}
		rule.BlackoutStart = &start
		rule.BlackoutEnd = &end
	}

	for _, cj := range rj.CustomConditions {
		cond, err := parseCondition(cj)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rj.ID, err)
		}
		rule.CustomConditions = append(rule.CustomConditions, cond)
	}

	return rule, nil
}

// ToJSON converts a Rule back to its JSON representation.
func (f *RuleFactory) ToJSON(rule approval.Rule) RuleJSON {
	rj := RuleJSON{
		ID:                 rule.ID,
		Name:               rule.Name,
		Priority:           rule.Priority,
		Active:             rule.Active,
		MaxDaysAllowed:     rule.MaxDaysAllowed,
		MinNoticeDays:      rule.MinNoticeDays,
		MaxConsecutiveDays: rule.MaxConsecutiveDays,

		LeaveTypes:  rule.ApplicableLeaveTypes,
		Levels:      rule.ApplicableLevels,
		Departments: rule.ApplicableDepartments,

		RequireSupportingDocuments: rule.RequireSupportingDocuments,
		CheckTeamConflicts:         rule.CheckTeamConflicts,
		MaxTeamLeavePercent:        rule.MaxTeamLeavePercent,
	}

	for _, wd := range rule.AllowedWeekdays {
		rj.AllowedWeekdays = append(rj.AllowedWeekdays, strings.ToLower(wd.String()))
	}
	for _, m := range rule.AllowedMonths {
		rj.AllowedMonths = append(rj.AllowedMonths, int(m))
	}
	if rule.BlackoutStart != nil && rule.BlackoutEnd != nil {
		rj.Blackout = &WindowJSON{
			Start: rule.BlackoutStart.Format("2006-01-02"),
			End:   rule.BlackoutEnd.Format("2006-01-02"),
		}
	}
	for _, c := range rule.CustomConditions {
		rj.CustomConditions = append(rj.CustomConditions, ConditionJSON{
			Kind:  string(c.Kind),
			Value: c.Value,
		})
	}

	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(s) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
}

func parseWindow(wj WindowJSON) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", wj.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid blackout start: %w", err)
	}
	end, err := time.Parse("2006-01-02", wj.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid blackout end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("blackout end before start")
	}
	return start, end, nil
}

func parseCondition(cj ConditionJSON) (approval.CustomCondition, error) {
	kind := approval.CustomConditionKind(cj.Kind)
	switch kind {
	case approval.MinTenureMonths, approval.MaxRequestsPerMonth:
	default:
		return approval.CustomCondition{}, fmt.Errorf("unknown custom condition kind %q", cj.Kind)
	}
	if cj.Value < 0 {
		return approval.CustomCondition{}, fmt.Errorf("custom condition %q: value must not be negative", cj.Kind)
	}
	return approval.CustomCondition{Kind: kind, Value: cj.Value}, nil
}
