/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences
  (see store/postgres for the pgx implementation).

INTERFACES IMPLEMENTED:
  payslip.EmployeeSource: Employee records with allowances/deductions
  approval.RuleSource:    Auto-approval rule definitions
  approval.TeamStats:     Department-level reads for conflict checks
  approval.RuleLogStore:  Append-only evaluation audit log
  leave.RequestStore:     Leave request lifecycle
  leave.BalanceStore:     Per-year leave balances

KEY TABLES:
  employees:       Employee records; allowances/deductions as JSON
  approval_rules:  Rule definitions stored as JSON (factory schema)
  leave_requests:  Leave request lifecycle
  leave_balances:  Pending/used day counters per financial year
  rule_logs:       Immutable audit of every evaluation verdict

APPEND-ONLY ENFORCEMENT:
  rule_logs is append-only: no UPDATE or DELETE statement exists for it
  anywhere in this package.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/memory: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
  - factory/rule.go: JSON schema used for rule storage
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/money"
	"github.com/warp/payroll-engine/payslip"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.RuleFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, factory: factory.NewRuleFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department_id TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT '',
		join_date TEXT NOT NULL,
		basic_salary TEXT NOT NULL,
		tax_code TEXT NOT NULL DEFAULT '',
		allowances_json TEXT,
		deductions_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department_id);

	-- Approval rules (definition stored in the factory JSON schema)
	CREATE TABLE IF NOT EXISTS approval_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		definition_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_approval_rules_active
		ON approval_rules(active, priority);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		department_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days REAL NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		has_documents BOOLEAN NOT NULL DEFAULT FALSE,
		submitted_at TEXT NOT NULL,
		decided_by TEXT,
		decided_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, submitted_at);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_department_status
		ON leave_requests(department_id, status);

	-- Overlap checks scan approved requests by date range (hot path for
	-- team-conflict evaluation)
	CREATE INDEX IF NOT EXISTS idx_leave_requests_dates
		ON leave_requests(department_id, start_date, end_date);

	-- Leave balances, one row per employee+type+financial year
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		year_start TEXT NOT NULL,
		entitlement REAL NOT NULL DEFAULT 0,
		pending REAL NOT NULL DEFAULT 0,
		used REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, leave_type, year_start)
	);

	-- Rule logs (append-only audit of evaluation verdicts)
	CREATE TABLE IF NOT EXISTS rule_logs (
		id TEXT PRIMARY KEY,
		rule_id TEXT,
		leave_request_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		reason TEXT,
		trail_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rule_logs_request
		ON rule_logs(leave_request_id);
	CREATE INDEX IF NOT EXISTS idx_rule_logs_employee
		ON rule_logs(employee_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES (payslip.EmployeeSource)
// =============================================================================

// PutEmployee inserts or replaces an employee record.
func (s *Store) PutEmployee(ctx context.Context, e payslip.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowancesJSON, err := json.Marshal(e.Allowances)
	if err != nil {
		return fmt.Errorf("failed to encode allowances: %w", err)
	}
	deductionsJSON, err := json.Marshal(e.Deductions)
	if err != nil {
		return fmt.Errorf("failed to encode deductions: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO employees
		(id, name, department_id, level, join_date, basic_salary, tax_code,
		 allowances_json, deductions_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department_id = excluded.department_id,
			level = excluded.level,
			join_date = excluded.join_date,
			basic_salary = excluded.basic_salary,
			tax_code = excluded.tax_code,
			allowances_json = excluded.allowances_json,
			deductions_json = excluded.deductions_json,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.DepartmentID, e.Level,
		e.JoinDate.Format(dateLayout),
		e.BasicSalary.Decimal().String(),
		e.TaxCode,
		string(allowancesJSON), string(deductionsJSON),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert employee: %w", err)
	}
	return nil
}

// GetEmployee loads one employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (*payslip.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, department_id, level, join_date, basic_salary, tax_code,
		       allowances_json, deductions_json
		FROM employees WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, &payslip.NotFoundError{EmployeeID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns every employee, ordered by ID.
func (s *Store) ListEmployees(ctx context.Context) ([]payslip.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, department_id, level, join_date, basic_salary, tax_code,
		       allowances_json, deductions_json
		FROM employees ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []payslip.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*payslip.Employee, error) {
	var (
		e              payslip.Employee
		joinDate       string
		basicSalary    string
		allowancesJSON sql.NullString
		deductionsJSON sql.NullString
	)

	err := row.Scan(
		&e.ID, &e.Name, &e.DepartmentID, &e.Level,
		&joinDate, &basicSalary, &e.TaxCode,
		&allowancesJSON, &deductionsJSON,
	)
	if err != nil {
		return nil, err
	}

	e.JoinDate, err = time.Parse(dateLayout, joinDate)
	if err != nil {
		return nil, fmt.Errorf("invalid join_date for employee %s: %w", e.ID, err)
	}
	salary, err := decimal.NewFromString(basicSalary)
	if err != nil {
		return nil, fmt.Errorf("invalid basic_salary for employee %s: %w", e.ID, err)
	}
	e.BasicSalary = money.FromDecimal(salary)

	if allowancesJSON.Valid && allowancesJSON.String != "" {
		if err := json.Unmarshal([]byte(allowancesJSON.String), &e.Allowances); err != nil {
			return nil, fmt.Errorf("invalid allowances for employee %s: %w", e.ID, err)
		}
	}
	if deductionsJSON.Valid && deductionsJSON.String != "" {
		if err := json.Unmarshal([]byte(deductionsJSON.String), &e.Deductions); err != nil {
			return nil, fmt.Errorf("invalid deductions for employee %s: %w", e.ID, err)
		}
	}

	return &e, nil
}

// =============================================================================
// APPROVAL RULES (approval.RuleSource)
// =============================================================================

// PutRule inserts or replaces a rule. The definition is stored in the
// factory JSON schema so admin tooling can edit it directly.
func (s *Store) PutRule(ctx context.Context, r approval.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	definition, err := json.Marshal(s.factory.ToJSON(r))
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO approval_rules (id, name, priority, active, definition_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			active = excluded.active,
			definition_json = excluded.definition_json,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, r.ID, r.Name, r.Priority, r.Active, string(definition), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert rule: %w", err)
	}
	return nil
}

// GetRule loads one rule by ID.
func (s *Store) GetRule(ctx context.Context, id string) (*approval.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var definition string
	err := s.db.QueryRowContext(ctx,
		"SELECT definition_json FROM approval_rules WHERE id = ?", id,
	).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, approval.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}

	return s.decodeRule(definition)
}

// ActiveRules returns active rules matching the filter, ordered by priority
// then ID. Applicability filtering happens after decode since the lists live
// inside the JSON definition.
func (s *Store) ActiveRules(ctx context.Context, filter approval.RuleFilter) ([]approval.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT definition_json FROM approval_rules WHERE active = TRUE ORDER BY priority, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []approval.Rule
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule, err := s.decodeRule(definition)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(*rule) {
			continue
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// ListRules returns every rule regardless of active flag.
func (s *Store) ListRules(ctx context.Context) ([]approval.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT definition_json FROM approval_rules ORDER BY priority, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []approval.Rule
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule, err := s.decodeRule(definition)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (s *Store) decodeRule(definition string) (*approval.Rule, error) {
	var rj factory.RuleJSON
	if err := json.Unmarshal([]byte(definition), &rj); err != nil {
		return nil, fmt.Errorf("failed to decode rule definition: %w", err)
	}
	rule, err := s.factory.FromJSON(rj)
	if err != nil {
		return nil, fmt.Errorf("stored rule definition invalid: %w", err)
	}
	return rule, nil
}

// =============================================================================
// TEAM STATS (approval.TeamStats)
// =============================================================================

// OverlappingApproved counts approved requests in the department overlapping
// [start, end].
func (s *Store) OverlappingApproved(ctx context.Context, departmentID string, start, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leave_requests
		WHERE department_id = ? AND status = 'approved'
		  AND start_date <= ? AND end_date >= ?
	`, departmentID, end.Format(dateLayout), start.Format(dateLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping requests: %w", err)
	}
	return count, nil
}

// ActiveHeadcount returns the number of employees in the department.
func (s *Store) ActiveHeadcount(ctx context.Context, departmentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM employees WHERE department_id = ?", departmentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count headcount: %w", err)
	}
	return count, nil
}

// RequestsInMonth counts the employee's non-cancelled requests submitted in
// the given calendar month.
func (s *Store) RequestsInMonth(ctx context.Context, employeeID string, year int, month time.Month) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leave_requests
		WHERE employee_id = ? AND status != 'cancelled'
		  AND submitted_at >= ? AND submitted_at < ?
	`, employeeID,
		monthStart.Format(time.RFC3339), monthEnd.Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count monthly requests: %w", err)
	}
	return count, nil
}

// =============================================================================
// LEAVE REQUESTS (leave.RequestStore)
// =============================================================================

// CreateRequest inserts a new leave request.
func (s *Store) CreateRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_requests
		(id, employee_id, department_id, leave_type, start_date, end_date, days,
		 reason, status, has_documents, submitted_at, decided_by, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.DepartmentID, r.LeaveType,
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout), r.Days,
		r.Reason, r.Status, r.HasSupportingDocuments,
		r.SubmittedAt.Format(time.RFC3339),
		nullString(r.DecidedBy), nullTime(r.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

// GetRequest loads one request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, department_id, leave_type, start_date, end_date,
		       days, reason, status, has_documents, submitted_at, decided_by, decided_at
		FROM leave_requests WHERE id = ?
	`

	r, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leave request: %w", err)
	}
	return r, nil
}

// UpdateRequestStatus records a decision on a request.
func (s *Store) UpdateRequestStatus(ctx context.Context, id, status, decidedBy string, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ?
	`, status, decidedBy, decidedAt.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return leave.ErrRequestNotFound
	}
	return nil
}

// ListRequests returns an employee's requests, oldest first.
func (s *Store) ListRequests(ctx context.Context, employeeID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, department_id, leave_type, start_date, end_date,
		       days, reason, status, has_documents, submitted_at, decided_by, decided_at
		FROM leave_requests WHERE employee_id = ?
		ORDER BY submitted_at
	`

	rows, err := s.db.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*leave.Request, error) {
	var (
		r           leave.Request
		startDate   string
		endDate     string
		reason      sql.NullString
		submittedAt string
		decidedBy   sql.NullString
		decidedAt   sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.DepartmentID, &r.LeaveType,
		&startDate, &endDate, &r.Days, &reason, &r.Status,
		&r.HasSupportingDocuments, &submittedAt, &decidedBy, &decidedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("invalid start_date for request %s: %w", r.ID, err)
	}
	if r.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("invalid end_date for request %s: %w", r.ID, err)
	}
	if r.SubmittedAt, err = time.Parse(time.RFC3339, submittedAt); err != nil {
		return nil, fmt.Errorf("invalid submitted_at for request %s: %w", r.ID, err)
	}
	r.Reason = reason.String
	r.DecidedBy = decidedBy.String
	if decidedAt.Valid && decidedAt.String != "" {
		t, err := time.Parse(time.RFC3339, decidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid decided_at for request %s: %w", r.ID, err)
		}
		r.DecidedAt = &t
	}

	return &r, nil
}

// =============================================================================
// LEAVE BALANCES (leave.BalanceStore)
// =============================================================================

// PutBalance inserts or replaces a balance row (used for seeding entitlements).
func (s *Store) PutBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_balances (employee_id, leave_type, year_start, entitlement, pending, used)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, leave_type, year_start) DO UPDATE SET
			entitlement = excluded.entitlement,
			pending = excluded.pending,
			used = excluded.used
	`

	_, err := s.db.ExecContext(ctx, query,
		b.EmployeeID, b.LeaveType, b.YearStart.Format(dateLayout),
		b.Entitlement, b.Pending, b.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// GetBalance loads a balance; a missing row reads as all-zero.
func (s *Store) GetBalance(ctx context.Context, employeeID, leaveType string, yearStart time.Time) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := leave.Balance{EmployeeID: employeeID, LeaveType: leaveType, YearStart: yearStart}
	err := s.db.QueryRowContext(ctx, `
		SELECT entitlement, pending, used FROM leave_balances
		WHERE employee_id = ? AND leave_type = ? AND year_start = ?
	`, employeeID, leaveType, yearStart.Format(dateLayout),
	).Scan(&b.Entitlement, &b.Pending, &b.Used)
	if err == sql.ErrNoRows {
		return &b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return &b, nil
}

// AddPending holds days against the balance.
func (s *Store) AddPending(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_balances (employee_id, leave_type, year_start, entitlement, pending, used)
		VALUES (?, ?, ?, 0, ?, 0)
		ON CONFLICT(employee_id, leave_type, year_start) DO UPDATE SET
			pending = pending + excluded.pending
	`

	_, err := s.db.ExecContext(ctx, query,
		employeeID, leaveType, yearStart.Format(dateLayout), days)
	if err != nil {
		return fmt.Errorf("failed to add pending days: %w", err)
	}
	return nil
}

// SettlePending releases a hold; when used is true the days move to used.
func (s *Store) SettlePending(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64, used bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usedDelta := 0.0
	if used {
		usedDelta = days
	}

	query := `
		INSERT INTO leave_balances (employee_id, leave_type, year_start, entitlement, pending, used)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(employee_id, leave_type, year_start) DO UPDATE SET
			pending = pending - ?,
			used = used + ?
	`

	_, err := s.db.ExecContext(ctx, query,
		employeeID, leaveType, yearStart.Format(dateLayout),
		-days, usedDelta, days, usedDelta)
	if err != nil {
		return fmt.Errorf("failed to settle pending days: %w", err)
	}
	return nil
}

// =============================================================================
// RULE LOGS (approval.RuleLogStore)
// =============================================================================

// AppendRuleLog records one evaluation outcome. Append-only.
func (s *Store) AppendRuleLog(ctx context.Context, entry approval.RuleLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trailJSON, err := json.Marshal(entry.Trail)
	if err != nil {
		return fmt.Errorf("failed to encode trail: %w", err)
	}

	query := `
		INSERT INTO rule_logs
		(id, rule_id, leave_request_id, employee_id, verdict, reason, trail_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID, nullString(entry.RuleID), entry.LeaveRequestID, entry.EmployeeID,
		string(entry.Verdict), entry.Reason, string(trailJSON),
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append rule log: %w", err)
	}
	return nil
}

// ListRuleLogs returns log entries matching the filter, newest first.
func (s *Store) ListRuleLogs(ctx context.Context, filter approval.RuleLogFilter) ([]approval.RuleLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conditions []string
		args       []any
	)
	if filter.EmployeeID != "" {
		conditions = append(conditions, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.LeaveRequestID != "" {
		conditions = append(conditions, "leave_request_id = ?")
		args = append(args, filter.LeaveRequestID)
	}
	if filter.RuleID != "" {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, filter.RuleID)
	}

	query := `
		SELECT id, rule_id, leave_request_id, employee_id, verdict, reason, trail_json, created_at
		FROM rule_logs
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule logs: %w", err)
	}
	defer rows.Close()

	var out []approval.RuleLogEntry
	for rows.Next() {
		var (
			entry     approval.RuleLogEntry
			ruleID    sql.NullString
			reason    sql.NullString
			trailJSON sql.NullString
			createdAt string
			verdict   string
		)
		err := rows.Scan(&entry.ID, &ruleID, &entry.LeaveRequestID, &entry.EmployeeID,
			&verdict, &reason, &trailJSON, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule log: %w", err)
		}
		entry.RuleID = ruleID.String
		entry.Reason = reason.String
		entry.Verdict = approval.Verdict(verdict)
		if entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at for rule log %s: %w", entry.ID, err)
		}
		if trailJSON.Valid && trailJSON.String != "" {
			if err := json.Unmarshal([]byte(trailJSON.String), &entry.Trail); err != nil {
				return nil, fmt.Errorf("invalid trail for rule log %s: %w", entry.ID, err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
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
