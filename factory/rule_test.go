package factory

import (
	"strings"
	"testing"
	"time"
)

func TestParseRule_FullDefinition(t *testing.T) {
	// GIVEN: A rule definition using every field
	// WHEN: Parsed
	// THEN: Every field lands on the Rule

	jsonStr := `{
		"id": "annual-fast-track",
		"name": "Annual fast track",
		"priority": 1,
		"active": true,
		"max_days_allowed": 5,
		"min_notice_days": 7,
		"max_consecutive_days": 10,
		"leave_types": ["annual"],
		"levels": ["junior", "mid"],
		"departments": ["dept-eng"],
		"allowed_weekdays": ["monday", "friday"],
		"allowed_months": [6, 7, 8],
		"blackout": {"start": "2025-12-20", "end": "2026-01-05"},
		"require_supporting_documents": true,
		"check_team_conflicts": true,
		"max_team_leave_percent": 30,
		"custom_conditions": [
			{"kind": "min_tenure_months", "value": 6},
			{"kind": "max_requests_per_month", "value": 2}
		]
	}`

	rule, err := NewRuleFactory().ParseRule(jsonStr)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}

	if rule.ID != "annual-fast-track" || rule.Name != "Annual fast track" {
		t.Errorf("identity fields wrong: %+v", rule)
	}
	if rule.Priority != 1 || !rule.Active {
		t.Errorf("priority/active wrong: %+v", rule)
	}
	if rule.MaxDaysAllowed == nil || *rule.MaxDaysAllowed != 5 {
		t.Errorf("max days wrong: %v", rule.MaxDaysAllowed)
	}
	if rule.MinNoticeDays == nil || *rule.MinNoticeDays != 7 {
		t.Errorf("min notice wrong: %v", rule.MinNoticeDays)
	}
	if len(rule.AllowedWeekdays) != 2 || rule.AllowedWeekdays[0] != time.Monday {
		t.Errorf("weekdays wrong: %v", rule.AllowedWeekdays)
	}
	if len(rule.AllowedMonths) != 3 || rule.AllowedMonths[0] != time.June {
		t.Errorf("months wrong: %v", rule.AllowedMonths)
	}
	if rule.BlackoutStart == nil || rule.BlackoutStart.Year() != 2025 {
		t.Errorf("blackout start wrong: %v", rule.BlackoutStart)
	}
	if len(rule.CustomConditions) != 2 {
		t.Fatalf("expected 2 custom conditions, got %d", len(rule.CustomConditions))
	}
	if rule.CustomConditions[0].Value != 6 {
		t.Errorf("tenure value wrong: %d", rule.CustomConditions[0].Value)
	}
}

func TestParseRule_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		jsonStr string
		wantErr string
	}{
		{
			name:    "missing id",
			jsonStr: `{"name": "No ID"}`,
			wantErr: "id is required",
		},
		{
			name:    "missing name",
			jsonStr: `{"id": "r1"}`,
			wantErr: "name is required",
		},
		{
			name:    "unknown custom condition",
			jsonStr: `{"id": "r1", "name": "R", "custom_conditions": [{"kind": "phase_of_moon", "value": 1}]}`,
			wantErr: "unknown custom condition",
		},
		{
			name:    "unknown weekday",
			jsonStr: `{"id": "r1", "name": "R", "allowed_weekdays": ["funday"]}`,
			wantErr: "unknown weekday",
		},
		{
			name:    "month out of range",
			jsonStr: `{"id": "r1", "name": "R", "allowed_months": [13]}`,
			wantErr: "out of range",
		},
		{
			name:    "blackout end before start",
			jsonStr: `{"id": "r1", "name": "R", "blackout": {"start": "2025-06-10", "end": "2025-06-01"}}`,
			wantErr: "end before start",
		},
		{
			name:    "negative max days",
			jsonStr: `{"id": "r1", "name": "R", "max_days_allowed": -1}`,
			wantErr: "must be positive",
		},
		{
			name:    "percent over 100",
			jsonStr: `{"id": "r1", "name": "R", "max_team_leave_percent": 150}`,
			wantErr: "(0, 100]",
		},
	}

	factory := NewRuleFactory()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ParseRule(tc.jsonStr)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseRules_Array(t *testing.T) {
	jsonStr := `[
		{"id": "r1", "name": "First", "priority": 1, "active": true},
		{"id": "r2", "name": "Second", "priority": 2, "active": true}
	]`

	rules, err := NewRuleFactory().ParseRules(jsonStr)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "r1" || rules[1].ID != "r2" {
		t.Errorf("ids wrong: %v %v", rules[0].ID, rules[1].ID)
	}
}

func TestParseRules_ReportsIndex(t *testing.T) {
	jsonStr := `[
		{"id": "r1", "name": "Good", "active": true},
		{"id": "r2", "name": "Bad", "allowed_months": [0]}
	]`

	_, err := NewRuleFactory().ParseRules(jsonStr)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "rule 1") {
		t.Errorf("error %q does not name the failing index", err)
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	jsonStr := `{
		"id": "r1",
		"name": "Round trip",
		"priority": 3,
		"active": true,
		"max_days_allowed": 2,
		"allowed_weekdays": ["tuesday"],
		"blackout": {"start": "2025-08-01", "end": "2025-08-15"},
		"custom_conditions": [{"kind": "min_tenure_months", "value": 12}]
	}`

	factory := NewRuleFactory()
	rule, err := factory.ParseRule(jsonStr)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}

	rj := factory.ToJSON(*rule)
	if rj.ID != "r1" || rj.Priority != 3 {
		t.Errorf("identity wrong: %+v", rj)
	}
	if len(rj.AllowedWeekdays) != 1 || rj.AllowedWeekdays[0] != "tuesday" {
		t.Errorf("weekdays wrong: %v", rj.AllowedWeekdays)
	}
	if rj.Blackout == nil || rj.Blackout.Start != "2025-08-01" {
		t.Errorf("blackout wrong: %+v", rj.Blackout)
	}
	if len(rj.CustomConditions) != 1 || rj.CustomConditions[0].Kind != "min_tenure_months" {
		t.Errorf("conditions wrong: %+v", rj.CustomConditions)
	}
}
