/*
Package postgres provides a PostgreSQL-backed implementation of the storage
interfaces using pgx connection pooling.

PURPOSE:
  Production persistence. Implements the same interfaces as store/sqlite
  and store/memory; database-level concurrency control replaces the
  mutexes the SQLite store needs.

INTERFACES IMPLEMENTED:
  payslip.EmployeeSource, approval.RuleSource, approval.TeamStats,
  approval.RuleLogStore, leave.RequestStore, leave.BalanceStore

USAGE:
  pool, err := postgres.Connect(ctx, databaseURL)
  if err != nil {
      log.Fatal(err)
  }
  store, err := postgres.New(ctx, pool)

SEE ALSO:
  - store/sqlite: schema notes and table layout (identical apart from dialect)
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/money"
	"github.com/warp/payroll-engine/payslip"
)

// Connect opens a pgx pool with sensible defaults.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Store implements all storage interfaces on a pgx pool.
type Store struct {
	db      *pgxpool.Pool
	factory *factory.RuleFactory
}

// New creates the store and auto-migrates the schema.
func New(ctx context.Context, db *pgxpool.Pool) (*Store, error) {
	store := &Store{db: db, factory: factory.NewRuleFactory()}
	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department_id TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT '',
		join_date DATE NOT NULL,
		basic_salary NUMERIC(12,2) NOT NULL,
		tax_code TEXT NOT NULL DEFAULT '',
		allowances_json JSONB,
		deductions_json JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department_id);

	CREATE TABLE IF NOT EXISTS approval_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		definition_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_approval_rules_active
		ON approval_rules(active, priority);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		department_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		days DOUBLE PRECISION NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		has_documents BOOLEAN NOT NULL DEFAULT FALSE,
		submitted_at TIMESTAMPTZ NOT NULL,
		decided_by TEXT,
		decided_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, submitted_at);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_department_status
		ON leave_requests(department_id, status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_dates
		ON leave_requests(department_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		year_start DATE NOT NULL,
		entitlement DOUBLE PRECISION NOT NULL DEFAULT 0,
		pending DOUBLE PRECISION NOT NULL DEFAULT 0,
		used DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, leave_type, year_start)
	);

	CREATE TABLE IF NOT EXISTS rule_logs (
		id TEXT PRIMARY KEY,
		rule_id TEXT,
		leave_request_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		reason TEXT,
		trail_json JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rule_logs_request
		ON rule_logs(leave_request_id);
	CREATE INDEX IF NOT EXISTS idx_rule_logs_employee
		ON rule_logs(employee_id, created_at);
	`

	_, err := s.db.Exec(ctx, schema)
	return err
}

// =============================================================================
// EMPLOYEES (payslip.EmployeeSource)
// =============================================================================

func (s *Store) PutEmployee(ctx context.Context, e payslip.Employee) error {
	allowancesJSON, err := json.Marshal(e.Allowances)
	if err != nil {
		return fmt.Errorf("failed to encode allowances: %w", err)
	}
	deductionsJSON, err := json.Marshal(e.Deductions)
	if err != nil {
		return fmt.Errorf("failed to encode deductions: %w", err)
	}

	_, err = s.db.Exec(ctx, `
    INSERT INTO employees
      (id, name, department_id, level, join_date, basic_salary, tax_code, allowances_json, deductions_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    ON CONFLICT (id) DO UPDATE SET
      name = EXCLUDED.name,
      department_id = EXCLUDED.department_id,
      level = EXCLUDED.level,
      join_date = EXCLUDED.join_date,
      basic_salary = EXCLUDED.basic_salary,
      tax_code = EXCLUDED.tax_code,
      allowances_json = EXCLUDED.allowances_json,
      deductions_json = EXCLUDED.deductions_json,
      updated_at = now()
  `, e.ID, e.Name, e.DepartmentID, e.Level, e.JoinDate,
		e.BasicSalary.Decimal().String(), e.TaxCode,
		allowancesJSON, deductionsJSON)
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*payslip.Employee, error) {
	var (
		e              payslip.Employee
		basicSalary    string
		allowancesJSON []byte
		deductionsJSON []byte
	)
	err := s.db.QueryRow(ctx, `
    SELECT id, name, department_id, level, join_date, basic_salary::text, tax_code,
           allowances_json, deductions_json
    FROM employees WHERE id = $1
  `, id).Scan(&e.ID, &e.Name, &e.DepartmentID, &e.Level, &e.JoinDate,
		&basicSalary, &e.TaxCode, &allowancesJSON, &deductionsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &payslip.NotFoundError{EmployeeID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}

	salary, err := decimal.NewFromString(basicSalary)
	if err != nil {
		return nil, fmt.Errorf("invalid basic_salary for employee %s: %w", e.ID, err)
	}
	e.BasicSalary = money.FromDecimal(salary)

	if len(allowancesJSON) > 0 {
		if err := json.Unmarshal(allowancesJSON, &e.Allowances); err != nil {
			return nil, fmt.Errorf("invalid allowances for employee %s: %w", e.ID, err)
		}
	}
	if len(deductionsJSON) > 0 {
		if err := json.Unmarshal(deductionsJSON, &e.Deductions); err != nil {
			return nil, fmt.Errorf("invalid deductions for employee %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]payslip.Employee, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]payslip.Employee, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEmployee(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// =============================================================================
// APPROVAL RULES (approval.RuleSource)
// =============================================================================

func (s *Store) PutRule(ctx context.Context, r approval.Rule) error {
	definition, err := json.Marshal(s.factory.ToJSON(r))
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	_, err = s.db.Exec(ctx, `
    INSERT INTO approval_rules (id, name, priority, active, definition_json)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (id) DO UPDATE SET
      name = EXCLUDED.name,
      priority = EXCLUDED.priority,
      active = EXCLUDED.active,
      definition_json = EXCLUDED.definition_json,
      updated_at = now()
  `, r.ID, r.Name, r.Priority, r.Active, definition)
	return err
}

func (s *Store) GetRule(ctx context.Context, id string) (*approval.Rule, error) {
	var definition []byte
	err := s.db.QueryRow(ctx,
		"SELECT definition_json FROM approval_rules WHERE id = $1", id,
	).Scan(&definition)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	return s.decodeRule(definition)
}

func (s *Store) ActiveRules(ctx context.Context, filter approval.RuleFilter) ([]approval.Rule, error) {
	rows, err := s.db.Query(ctx,
		"SELECT definition_json FROM approval_rules WHERE active ORDER BY priority, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []approval.Rule
	for rows.Next() {
		var definition []byte
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

func (s *Store) ListRules(ctx context.Context) ([]approval.Rule, error) {
	rows, err := s.db.Query(ctx,
		"SELECT definition_json FROM approval_rules ORDER BY priority, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []approval.Rule
	for rows.Next() {
		var definition []byte
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

func (s *Store) decodeRule(definition []byte) (*approval.Rule, error) {
	var rj factory.RuleJSON
	if err := json.Unmarshal(definition, &rj); err != nil {
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

func (s *Store) OverlappingApproved(ctx context.Context, departmentID string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
    SELECT COUNT(1) FROM leave_requests
    WHERE department_id = $1 AND status = 'approved'
      AND start_date <= $2 AND end_date >= $3
  `, departmentID, end, start).Scan(&count)
	return count, err
}

func (s *Store) ActiveHeadcount(ctx context.Context, departmentID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(1) FROM employees WHERE department_id = $1", departmentID,
	).Scan(&count)
	return count, err
}

func (s *Store) RequestsInMonth(ctx context.Context, employeeID string, year int, month time.Month) (int, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var count int
	err := s.db.QueryRow(ctx, `
    SELECT COUNT(1) FROM leave_requests
    WHERE employee_id = $1 AND status != 'cancelled'
      AND submitted_at >= $2 AND submitted_at < $3
  `, employeeID, monthStart, monthEnd).Scan(&count)
	return count, err
}

// =============================================================================
// LEAVE REQUESTS (leave.RequestStore)
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r leave.Request) error {
	_, err := s.db.Exec(ctx, `
    INSERT INTO leave_requests
      (id, employee_id, department_id, leave_type, start_date, end_date, days,
       reason, status, has_documents, submitted_at, decided_by, decided_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, r.ID, r.EmployeeID, r.DepartmentID, r.LeaveType,
		r.StartDate, r.EndDate, r.Days, r.Reason, r.Status,
		r.HasSupportingDocuments, r.SubmittedAt,
		nullString(r.DecidedBy), r.DecidedAt)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	var (
		r         leave.Request
		reason    *string
		decidedBy *string
	)
	err := s.db.QueryRow(ctx, `
    SELECT id, employee_id, department_id, leave_type, start_date, end_date,
           days, reason, status, has_documents, submitted_at, decided_by, decided_at
    FROM leave_requests WHERE id = $1
  `, id).Scan(&r.ID, &r.EmployeeID, &r.DepartmentID, &r.LeaveType,
		&r.StartDate, &r.EndDate, &r.Days, &reason, &r.Status,
		&r.HasSupportingDocuments, &r.SubmittedAt, &decidedBy, &r.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leave request: %w", err)
	}
	if reason != nil {
		r.Reason = *reason
	}
	if decidedBy != nil {
		r.DecidedBy = *decidedBy
	}
	return &r, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id, status, decidedBy string, decidedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
    UPDATE leave_requests SET status = $1, decided_by = $2, decided_at = $3 WHERE id = $4
  `, status, decidedBy, decidedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leave.ErrRequestNotFound
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, employeeID string) ([]leave.Request, error) {
	rows, err := s.db.Query(ctx, `
    SELECT id, employee_id, department_id, leave_type, start_date, end_date,
           days, reason, status, has_documents, submitted_at, decided_by, decided_at
    FROM leave_requests WHERE employee_id = $1
    ORDER BY submitted_at
  `, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		var (
			r         leave.Request
			reason    *string
			decidedBy *string
		)
		err := rows.Scan(&r.ID, &r.EmployeeID, &r.DepartmentID, &r.LeaveType,
			&r.StartDate, &r.EndDate, &r.Days, &reason, &r.Status,
			&r.HasSupportingDocuments, &r.SubmittedAt, &decidedBy, &r.DecidedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		if reason != nil {
			r.Reason = *reason
		}
		if decidedBy != nil {
			r.DecidedBy = *decidedBy
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE BALANCES (leave.BalanceStore)
// =============================================================================

func (s *Store) PutBalance(ctx context.Context, b leave.Balance) error {
	_, err := s.db.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type, year_start, entitlement, pending, used)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (employee_id, leave_type, year_start) DO UPDATE SET
      entitlement = EXCLUDED.entitlement,
      pending = EXCLUDED.pending,
      used = EXCLUDED.used
  `, b.EmployeeID, b.LeaveType, b.YearStart, b.Entitlement, b.Pending, b.Used)
	return err
}

func (s *Store) GetBalance(ctx context.Context, employeeID, leaveType string, yearStart time.Time) (*leave.Balance, error) {
	b := leave.Balance{EmployeeID: employeeID, LeaveType: leaveType, YearStart: yearStart}
	err := s.db.QueryRow(ctx, `
    SELECT entitlement, pending, used FROM leave_balances
    WHERE employee_id = $1 AND leave_type = $2 AND year_start = $3
  `, employeeID, leaveType, yearStart).Scan(&b.Entitlement, &b.Pending, &b.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return &b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return &b, nil
}

func (s *Store) AddPending(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64) error {
	_, err := s.db.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type, year_start, pending)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (employee_id, leave_type, year_start) DO UPDATE SET
      pending = leave_balances.pending + EXCLUDED.pending
  `, employeeID, leaveType, yearStart, days)
	return err
}

func (s *Store) SettlePending(ctx context.Context, employeeID, leaveType string, yearStart time.Time, days float64, used bool) error {
	usedDelta := 0.0
	if used {
		usedDelta = days
	}

	_, err := s.db.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type, year_start, pending, used)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (employee_id, leave_type, year_start) DO UPDATE SET
      pending = leave_balances.pending - $6,
      used = leave_balances.used + $5
  `, employeeID, leaveType, yearStart, -days, usedDelta, days)
	return err
}

// =============================================================================
// RULE LOGS (approval.RuleLogStore)
// =============================================================================

func (s *Store) AppendRuleLog(ctx context.Context, entry approval.RuleLogEntry) error {
	trailJSON, err := json.Marshal(entry.Trail)
	if err != nil {
		return fmt.Errorf("failed to encode trail: %w", err)
	}

	_, err = s.db.Exec(ctx, `
    INSERT INTO rule_logs
      (id, rule_id, leave_request_id, employee_id, verdict, reason, trail_json, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, entry.ID, nullString(entry.RuleID), entry.LeaveRequestID, entry.EmployeeID,
		string(entry.Verdict), entry.Reason, trailJSON, entry.CreatedAt.UTC())
	return err
}

func (s *Store) ListRuleLogs(ctx context.Context, filter approval.RuleLogFilter) ([]approval.RuleLogEntry, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.EmployeeID != "" {
		conditions = append(conditions, "employee_id = "+arg(filter.EmployeeID))
	}
	if filter.LeaveRequestID != "" {
		conditions = append(conditions, "leave_request_id = "+arg(filter.LeaveRequestID))
	}
	if filter.RuleID != "" {
		conditions = append(conditions, "rule_id = "+arg(filter.RuleID))
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
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule logs: %w", err)
	}
	defer rows.Close()

	var out []approval.RuleLogEntry
	for rows.Next() {
		var (
			entry     approval.RuleLogEntry
			ruleID    *string
			reason    *string
			trailJSON []byte
			verdict   string
		)
		err := rows.Scan(&entry.ID, &ruleID, &entry.LeaveRequestID, &entry.EmployeeID,
			&verdict, &reason, &trailJSON, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule log: %w", err)
		}
		if ruleID != nil {
			entry.RuleID = *ruleID
		}
		if reason != nil {
			entry.Reason = *reason
		}
		entry.Verdict = approval.Verdict(verdict)
		if len(trailJSON) > 0 {
			if err := json.Unmarshal(trailJSON, &entry.Trail); err != nil {
				return nil, fmt.Errorf("invalid trail for rule log %s: %w", entry.ID, err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
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
