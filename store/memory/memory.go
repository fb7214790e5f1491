/*
Package memory provides an in-memory implementation of every store
interface in the engine. Used by tests and the dev server; the sqlite and
postgres packages are the durable equivalents.

Thread-safe via a single RWMutex. Data does not survive the process.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payslip"
)

// Store holds everything in maps. The zero value is not usable; call New.
type Store struct {
	mu        sync.RWMutex
	employees map[string]payslip.Employee
	rules     map[string]approval.Rule
	requests  map[string]leave.Request
	balances  map[balanceKey]*leave.Balance
	ruleLogs  []approval.RuleLogEntry
}

type balanceKey struct {
	EmployeeID string
	LeaveType  string
	YearStart  time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		employees: make(map[string]payslip.Employee),
		rules:     make(map[string]approval.Rule),
		requests:  make(map[string]leave.Request),
		balances:  make(map[balanceKey]*leave.Balance),
	}
}

// =============================================================================
// EMPLOYEES (payslip.EmployeeSource)
// =============================================================================

// PutEmployee inserts or replaces an employee.
func (s *Store) PutEmployee(_ context.Context, e payslip.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*payslip.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, &payslip.NotFoundError{EmployeeID: id}
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by ID.
func (s *Store) ListEmployees(_ context.Context) ([]payslip.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payslip.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// RULES (approval.RuleSource)
// =============================================================================

// PutRule inserts or replaces a rule.
func (s *Store) PutRule(_ context.Context, r approval.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

// GetRule returns a rule by ID or approval.ErrRuleNotFound.
func (s *Store) GetRule(_ context.Context, id string) (*approval.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, approval.ErrRuleNotFound
	}
	return &r, nil
}

// ActiveRules returns active rules whose applicability filters accept the
// given request attributes. Order is unspecified; the evaluator sorts.
func (s *Store) ActiveRules(_ context.Context, filter approval.RuleFilter) ([]approval.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []approval.Rule
	for _, r := range s.rules {
		if !r.Active {
			continue
		}
		if !filter.Matches(r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ListRules returns every rule, sorted by priority then ID.
func (s *Store) ListRules(_ context.Context) ([]approval.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]approval.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return approval.SortRules(out), nil
}

// =============================================================================
// TEAM STATS (approval.TeamStats)
// =============================================================================

func (s *Store) OverlappingApproved(_ context.Context, departmentID string, start, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, req := range s.requests {
		if req.DepartmentID != departmentID || req.Status != leave.StatusApproved {
			continue
		}
		if !req.StartDate.After(end) && !req.EndDate.Before(start) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ActiveHeadcount(_ context.Context, departmentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.employees {
		if e.DepartmentID == departmentID {
			count++
		}
	}
	return count, nil
}

func (s *Store) RequestsInMonth(_ context.Context, employeeID string, year int, month time.Month) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, req := range s.requests {
		if req.EmployeeID != employeeID || req.Status == leave.StatusCancelled {
			continue
		}
		if req.SubmittedAt.Year() == year && req.SubmittedAt.Month() == month {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// LEAVE REQUESTS (leave.RequestStore)
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, req leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	return &req, nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, id, status, decidedBy string, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return leave.ErrRequestNotFound
	}
	req.Status = status
	req.DecidedBy = decidedBy
	req.DecidedAt = &decidedAt
	s.requests[id] = req
	return nil
}

func (s *Store) ListRequests(_ context.Context, employeeID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []leave.Request
	for _, req := range s.requests {
		if employeeID == "" || req.EmployeeID == employeeID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// =============================================================================
// BALANCES (leave.BalanceStore)
// =============================================================================

// PutBalance seeds an entitlement.
func (s *Store) PutBalance(_ context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := b
	s.balances[balanceKey{b.EmployeeID, b.LeaveType, b.YearStart}] = &copied
	return nil
}

func (s *Store) GetBalance(_ context.Context, employeeID, leaveType string, yearStart time.Time) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[balanceKey{employeeID, leaveType, yearStart}]
	if !ok {
		return &leave.Balance{EmployeeID: employeeID, LeaveType: leaveType, YearStart: yearStart}, nil
	}
	copied := *b
	return &copied, nil
}

func (s *Store) AddPending(_ context.Context, employeeID, leaveType string, yearStart time.Time, days float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceLocked(employeeID, leaveType, yearStart).Pending += days
	return nil
}

func (s *Store) SettlePending(_ context.Context, employeeID, leaveType string, yearStart time.Time, days float64, used bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balanceLocked(employeeID, leaveType, yearStart)
	b.Pending -= days
	if used {
		b.Used += days
	}
	return nil
}

func (s *Store) balanceLocked(employeeID, leaveType string, yearStart time.Time) *leave.Balance {
	key := balanceKey{employeeID, leaveType, yearStart}
	b, ok := s.balances[key]
	if !ok {
		b = &leave.Balance{EmployeeID: employeeID, LeaveType: leaveType, YearStart: yearStart}
		s.balances[key] = b
	}
	return b
}

// =============================================================================
// RULE LOGS (approval.RuleLogStore)
// =============================================================================

func (s *Store) AppendRuleLog(_ context.Context, entry approval.RuleLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleLogs = append(s.ruleLogs, entry)
	return nil
}

func (s *Store) ListRuleLogs(_ context.Context, filter approval.RuleLogFilter) ([]approval.RuleLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []approval.RuleLogEntry
	for _, entry := range s.ruleLogs {
		if filter.EmployeeID != "" && entry.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.LeaveRequestID != "" && entry.LeaveRequestID != filter.LeaveRequestID {
			continue
		}
		if filter.RuleID != "" && entry.RuleID != filter.RuleID {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ payslip.EmployeeSource = (*Store)(nil)
	_ approval.RuleSource    = (*Store)(nil)
	_ approval.TeamStats     = (*Store)(nil)
	_ approval.RuleLogStore  = (*Store)(nil)
	_ leave.RequestStore     = (*Store)(nil)
	_ leave.BalanceStore     = (*Store)(nil)
)
