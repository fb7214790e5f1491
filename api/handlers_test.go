/*
handlers_test.go - Tests for API handlers

Tests for:
- Tax preview endpoint
- Employee save/get and payslip computation
- Rule definition validation on save
- Leave submission, auto-approval and manual decisions
- Rule log retrieval
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/warp/payroll-engine/store/memory"
)

func newTestRouter() http.Handler {
	return NewRouter(NewHandler(memory.New()))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

// =============================================================================
// TAX ENDPOINT
// =============================================================================

func TestPreviewTax(t *testing.T) {
	// GIVEN: A £30,000 annual salary
	// WHEN: Previewing monthly tax
	// THEN: Income tax is 290.50 and NI is 116.20 per month

	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/tax/preview", TaxPreviewRequest{
		AnnualGross: 30000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	dto := decodeBody[TaxPreviewDTO](t, rec)
	if dto.IncomeTax != "290.50" {
		t.Errorf("Expected income tax 290.50, got %s", dto.IncomeTax)
	}
	if dto.NationalInsurance != "116.20" {
		t.Errorf("Expected NI 116.20, got %s", dto.NationalInsurance)
	}
	if dto.PersonalAllowance != "12570.00" {
		t.Errorf("Expected allowance 12570.00, got %s", dto.PersonalAllowance)
	}
	if len(dto.Bands) != 1 || dto.Bands[0].Name != "basic" {
		t.Errorf("Expected a single basic band, got %+v", dto.Bands)
	}
}

func TestPreviewTax_NegativeGross(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/tax/preview", TaxPreviewRequest{
		AnnualGross: -1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

func saveTestEmployee(t *testing.T, router http.Handler) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/employees", SaveEmployeeRequest{
		ID:           "emp-1",
		Name:         "Priya Shah",
		DepartmentID: "dept-eng",
		Level:        "senior",
		JoinDate:     "2021-02-01",
		BasicSalary:  "2500.00",
		TaxCode:      "1257L",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to save employee: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSaveAndGetEmployee(t *testing.T) {
	router := newTestRouter()
	saveTestEmployee(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	dto := decodeBody[EmployeeDTO](t, rec)
	if dto.Name != "Priya Shah" || dto.BasicSalary != "2500.00" {
		t.Errorf("Unexpected employee: %+v", dto)
	}
}

func TestGetEmployee_NotFound(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/employees/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestSaveEmployee_Validation(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/employees", SaveEmployeeRequest{
		Name: "No ID",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestComputePayslip(t *testing.T) {
	// GIVEN: A £2,500/month employee
	// WHEN: Computing the January 2024 payslip
	// THEN: Tax and NI match the £30,000 annual figures

	router := newTestRouter()
	saveTestEmployee(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/employees/emp-1/payslip", PayslipRequest{
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-01-31",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	dto := decodeBody[PayslipDTO](t, rec)
	if dto.GrossSalary != "2500.00" {
		t.Errorf("Expected gross 2500.00, got %s", dto.GrossSalary)
	}
	if dto.IncomeTax != "290.50" {
		t.Errorf("Expected income tax 290.50, got %s", dto.IncomeTax)
	}
	if dto.NationalInsurance != "116.20" {
		t.Errorf("Expected NI 116.20, got %s", dto.NationalInsurance)
	}
	if dto.WorkingDays != 23 {
		t.Errorf("Expected 23 working days in January 2024, got %d", dto.WorkingDays)
	}
}

// =============================================================================
// RULE ENDPOINTS
// =============================================================================

func TestSaveRule_InvalidDefinition(t *testing.T) {
	// Unknown custom-condition kinds must be rejected at save time, not
	// at evaluation time.
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/rules", map[string]any{
		"id":   "r1",
		"name": "Bad rule",
		"custom_conditions": []map[string]any{
			{"kind": "phase_of_moon", "value": 3},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSaveAndListRules(t *testing.T) {
	router := newTestRouter()

	for i := 1; i <= 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/rules", map[string]any{
			"id":       fmt.Sprintf("rule-%d", i),
			"name":     fmt.Sprintf("Rule %d", i),
			"priority": i,
			"active":   true,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Failed to save rule: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/api/rules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	rules := decodeBody[[]RuleDTO](t, rec)
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "rule-1" {
		t.Errorf("Expected priority order, got %s first", rules[0].ID)
	}
}

// =============================================================================
// LEAVE ENDPOINTS
// =============================================================================

func submitTestLeave(t *testing.T, router http.Handler) SubmitLeaveResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/leave/requests", SubmitLeaveRequest{
		EmployeeID: "emp-1",
		LeaveType:  "annual",
		StartDate:  "2026-10-12",
		EndDate:    "2026-10-14",
		Reason:     "family visit",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to submit leave: %d %s", rec.Code, rec.Body.String())
	}
	return decodeBody[SubmitLeaveResponse](t, rec)
}

func TestSubmitLeave_AutoApproved(t *testing.T) {
	// GIVEN: An unrestricted active rule
	// WHEN: Submitting a request
	// THEN: The response carries the approved request, the verdict, and
	//       the balance reflects the used days

	router := newTestRouter()
	saveTestEmployee(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/rules", map[string]any{
		"id": "open-door", "name": "Open door", "priority": 1, "active": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to save rule: %d", rec.Code)
	}

	resp := submitTestLeave(t, router)
	if resp.Request.Status != "approved" {
		t.Errorf("Expected approved, got %s", resp.Request.Status)
	}
	if resp.Evaluation == nil || resp.Evaluation.Verdict != "approved" {
		t.Fatalf("Expected approved verdict, got %+v", resp.Evaluation)
	}
	if resp.Evaluation.RuleID != "open-door" {
		t.Errorf("Expected rule open-door, got %s", resp.Evaluation.RuleID)
	}
	if resp.Request.Days != 3 {
		t.Errorf("Expected 3 days, got %v", resp.Request.Days)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance?as_of=2026-10-12", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	balance := decodeBody[BalanceDTO](t, rec)
	if balance.Used != 3 || balance.Pending != 0 {
		t.Errorf("Expected used=3 pending=0, got %+v", balance)
	}
}

func TestSetEntitlement(t *testing.T) {
	// GIVEN: An employee with days already used in the financial year
	// WHEN: Setting the entitlement for that year
	// THEN: The entitlement changes and used days are preserved

	router := newTestRouter()
	saveTestEmployee(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/rules", map[string]any{
		"id": "open-door", "name": "Open door", "priority": 1, "active": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Failed to save rule: %d", rec.Code)
	}
	submitTestLeave(t, router)

	rec = doJSON(t, router, http.MethodPost, "/api/employees/emp-1/balance", SetEntitlementRequest{
		Entitlement: 25,
		AsOf:        "2026-10-12",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	balance := decodeBody[BalanceDTO](t, rec)
	if balance.Entitlement != 25 || balance.Used != 3 {
		t.Errorf("Expected entitlement=25 used=3, got %+v", balance)
	}
	if balance.Available != 22 {
		t.Errorf("Expected available=22, got %v", balance.Available)
	}
	if balance.LeaveType != "annual" {
		t.Errorf("Expected default leave type annual, got %s", balance.LeaveType)
	}
}

func TestSetEntitlement_UnknownEmployee(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/employees/nobody/balance", SetEntitlementRequest{Entitlement: 25})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestSubmitLeave_NoRules_ManualApproval(t *testing.T) {
	router := newTestRouter()
	saveTestEmployee(t, router)

	resp := submitTestLeave(t, router)
	if resp.Request.Status != "pending" {
		t.Errorf("Expected pending, got %s", resp.Request.Status)
	}
	if resp.Evaluation == nil || resp.Evaluation.Verdict != "requires_manual_approval" {
		t.Fatalf("Expected manual approval verdict, got %+v", resp.Evaluation)
	}
}

func TestManualDecisionFlow(t *testing.T) {
	router := newTestRouter()
	saveTestEmployee(t, router)

	resp := submitTestLeave(t, router)
	id := resp.Request.ID

	// Approve the pending request
	rec := doJSON(t, router, http.MethodPost, "/api/leave/requests/"+id+"/approve", DecisionRequest{
		ActorID: "manager-7",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	approved := decodeBody[LeaveRequestDTO](t, rec)
	if approved.Status != "approved" || approved.DecidedBy != "manager-7" {
		t.Errorf("Unexpected decision: %+v", approved)
	}

	// A second decision conflicts
	rec = doJSON(t, router, http.MethodPost, "/api/leave/requests/"+id+"/reject", DecisionRequest{
		ActorID: "manager-7",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
}

func TestDecision_RequestNotFound(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/leave/requests/nope/approve", DecisionRequest{
		ActorID: "manager-7",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// AUDIT ENDPOINT
// =============================================================================

func TestListRuleLogs(t *testing.T) {
	router := newTestRouter()
	saveTestEmployee(t, router)

	resp := submitTestLeave(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/rule-logs?employee_id=emp-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	logs := decodeBody[[]RuleLogDTO](t, rec)
	if len(logs) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(logs))
	}
	if logs[0].LeaveRequestID != resp.Request.ID {
		t.Errorf("Log not linked to request: %+v", logs[0])
	}
	if logs[0].Verdict != "requires_manual_approval" {
		t.Errorf("Unexpected verdict: %s", logs[0].Verdict)
	}
}
