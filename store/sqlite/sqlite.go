/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.TxStore (directory, ledger, balance trail) on top of
  database/sql with the sqlite3 driver. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

CONCURRENCY:
  CompareAndSetStatus is a single guarded UPDATE (WHERE status = expected);
  zero affected rows means the caller lost the race. AdjustBalance is a
  guarded relative UPDATE enforcing 0 <= used <= total. WithTx wraps a unit
  in an immediate database transaction: writers serialize at BEGIN, so the
  loser of a racing transition re-reads the committed status and fails its
  CAS with ErrConflict rather than hitting SQLITE_BUSY mid-transaction.

WAL MODE:
  The database is opened with WAL for better concurrency: readers don't
  block, single writer, better crash recovery.

FAILURE MAPPING:
  Driver-level failures surface wrapped in leave.ErrStoreUnavailable and
  propagate to the caller unchanged; this store never retries.

SEE ALSO:
  - leave/store.go:         interface contracts
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	session
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	// _txlock=immediate makes transactions take the write lock at BEGIN, so
	// concurrent units queue under _busy_timeout instead of failing mid-way
	// with SQLITE_BUSY once both hold read snapshots.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, session: session{r: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		manager_id TEXT NOT NULL DEFAULT '',
		total_days INTEGER NOT NULL,
		used_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		CHECK (used_days >= 0 AND used_days <= total_days)
	);

	CREATE INDEX IF NOT EXISTS idx_employees_manager
		ON employees(manager_id) WHERE manager_id != '';

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days INTEGER NOT NULL,
		leave_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT NOT NULL DEFAULT '',
		decision_date TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_created
		ON leave_requests(created_at DESC, id);

	-- Append-only balance trail. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS balance_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		request_id TEXT NOT NULL,
		delta TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_employee
		ON balance_entries(employee_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", leave.ErrStoreUnavailable, err)
	}

	if err := fn(&session{r: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", leave.ErrStoreUnavailable, err)
	}
	return nil
}

// =============================================================================
// SESSION - Queries bound to either the pool or an open transaction
// =============================================================================

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type session struct {
	r runner
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", leave.ErrStoreUnavailable, op, err)
}

// =============================================================================
// DIRECTORY
// =============================================================================

const employeeColumns = `id, name, email, password_hash, role, department, position,
	manager_id, total_days, used_days, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*leave.Employee, error) {
	var (
		emp          leave.Employee
		email        sql.NullString
		total, used  int
		createdAtRaw string
	)
	err := row.Scan(&emp.ID, &emp.Name, &email, &emp.PasswordHash, &emp.Role,
		&emp.Department, &emp.Position, &emp.ManagerID, &total, &used, &createdAtRaw)
	if err != nil {
		return nil, err
	}
	emp.Email = email.String
	emp.Balance = leave.NewBalance(total, used)
	if emp.CreatedAt, err = time.Parse(time.RFC3339, createdAtRaw); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &emp, nil
}

// SaveEmployee inserts or replaces an employee record.
func (s *session) SaveEmployee(ctx context.Context, emp *leave.Employee) error {
	_, err := s.r.ExecContext(ctx, `
		INSERT OR REPLACE INTO employees
			(id, name, email, password_hash, role, department, position,
			 manager_id, total_days, used_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		emp.ID, emp.Name, nullable(emp.Email), emp.PasswordHash, string(emp.Role),
		emp.Department, emp.Position, emp.ManagerID,
		emp.Balance.Total, emp.Balance.Used, emp.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return storeErr("save employee", err)
	}
	return nil
}

func (s *session) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	row := s.r.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: employee %s", leave.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get employee", err)
	}
	return emp, nil
}

func (s *session) FindEmployeeByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	row := s.r.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE email = ? COLLATE NOCASE`, email)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: employee with email %s", leave.ErrNotFound, email)
	}
	if err != nil {
		return nil, storeErr("find employee by email", err)
	}
	return emp, nil
}

func (s *session) ListEmployees(ctx context.Context) ([]*leave.Employee, error) {
	rows, err := s.r.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY id`)
	if err != nil {
		return nil, storeErr("list employees", err)
	}
	defer rows.Close()
	return collectEmployees(rows)
}

func (s *session) GetDirectReports(ctx context.Context, managerID string) ([]*leave.Employee, error) {
	rows, err := s.r.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE manager_id = ? ORDER BY id`, managerID)
	if err != nil {
		return nil, storeErr("get direct reports", err)
	}
	defer rows.Close()
	return collectEmployees(rows)
}

func collectEmployees(rows *sql.Rows) ([]*leave.Employee, error) {
	var out []*leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, storeErr("scan employee", err)
		}
		out = append(out, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate employees", err)
	}
	return out, nil
}

func (s *session) AdjustBalance(ctx context.Context, employeeID string, deltaUsed int) (*leave.Employee, error) {
	res, err := s.r.ExecContext(ctx, `
		UPDATE employees
		SET used_days = used_days + ?
		WHERE id = ?
		  AND used_days + ? >= 0
		  AND used_days + ? <= total_days`,
		deltaUsed, employeeID, deltaUsed, deltaUsed)
	if err != nil {
		return nil, storeErr("adjust balance", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("adjust balance", err)
	}
	if affected == 0 {
		emp, err := s.GetEmployee(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		if emp.Balance.Used+deltaUsed > emp.Balance.Total {
			return nil, &leave.InsufficientBalanceError{
				EmployeeID: employeeID,
				Remaining:  emp.Balance.Remaining,
				Requested:  deltaUsed,
			}
		}
		return nil, fmt.Errorf("%w: balance adjustment would make used negative for %s",
			leave.ErrConflict, employeeID)
	}
	return s.GetEmployee(ctx, employeeID)
}

// =============================================================================
// LEDGER
// =============================================================================

const requestColumns = `id, employee_id, start_date, end_date, days, leave_type,
	reason, status, decided_by, decision_date, rejection_reason, created_at, updated_at`

func scanRequest(row rowScanner) (*leave.LeaveRequest, error) {
	var (
		req                                      leave.LeaveRequest
		startRaw, endRaw, createdRaw, updatedRaw string
		decisionRaw                              sql.NullString
	)
	err := row.Scan(&req.ID, &req.EmployeeID, &startRaw, &endRaw, &req.Days,
		&req.Type, &req.Reason, &req.Status, &req.DecidedBy, &decisionRaw,
		&req.RejectionReason, &createdRaw, &updatedRaw)
	if err != nil {
		return nil, err
	}
	if req.StartDate, err = time.Parse("2006-01-02", startRaw); err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	if req.EndDate, err = time.Parse("2006-01-02", endRaw); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	if req.CreatedAt, err = time.Parse(time.RFC3339, createdRaw); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = time.Parse(time.RFC3339, updatedRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if decisionRaw.Valid {
		decided, err := time.Parse(time.RFC3339, decisionRaw.String)
		if err != nil {
			return nil, fmt.Errorf("parse decision_date: %w", err)
		}
		req.DecisionDate = &decided
	}
	return &req, nil
}

func (s *session) Get(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	row := s.r.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get request", err)
	}
	return req, nil
}

func (s *session) Create(ctx context.Context, req *leave.LeaveRequest) error {
	_, err := s.r.ExecContext(ctx, `
		INSERT INTO leave_requests
			(id, employee_id, start_date, end_date, days, leave_type, reason,
			 status, decided_by, decision_date, rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.EmployeeID,
		req.StartDate.UTC().Format("2006-01-02"), req.EndDate.UTC().Format("2006-01-02"),
		req.Days, string(req.Type), req.Reason, string(req.Status),
		req.DecidedBy, nullableTime(req.DecisionDate), req.RejectionReason,
		req.CreatedAt.UTC().Format(time.RFC3339), req.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: request %s already exists", leave.ErrConflict, req.ID)
		}
		return storeErr("create request", err)
	}
	return nil
}

func (s *session) CompareAndSetStatus(ctx context.Context, id string, expected leave.Status, update leave.StatusUpdate) (*leave.LeaveRequest, error) {
	// MAX keeps updated_at monotonic; RFC3339 UTC strings compare
	// lexicographically in time order.
	res, err := s.r.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?,
		    decided_by = ?,
		    decision_date = ?,
		    rejection_reason = ?,
		    updated_at = MAX(updated_at, ?)
		WHERE id = ? AND status = ?`,
		string(update.Status), update.DecidedBy, nullableTime(update.DecisionDate),
		update.RejectionReason, update.UpdatedAt.UTC().Format(time.RFC3339),
		id, string(expected))
	if err != nil {
		return nil, storeErr("compare-and-set status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("compare-and-set status", err)
	}
	if affected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: request %s is %s, expected %s",
			leave.ErrConflict, id, current.Status, expected)
	}
	return s.Get(ctx, id)
}

func (s *session) Query(ctx context.Context, employeeIDs []string) ([]*leave.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	var args []any
	if employeeIDs != nil {
		if len(employeeIDs) == 0 {
			return nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(employeeIDs)), ",")
		query += ` WHERE employee_id IN (` + placeholders + `)`
		for _, id := range employeeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query requests", err)
	}
	defer rows.Close()

	var out []*leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storeErr("scan request", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate requests", err)
	}
	return out, nil
}

// =============================================================================
// BALANCE TRAIL
// =============================================================================

func (s *session) AppendEntry(ctx context.Context, entry leave.BalanceEntry) error {
	_, err := s.r.ExecContext(ctx, `
		INSERT INTO balance_entries
			(id, employee_id, request_id, delta, entry_type, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EmployeeID, entry.RequestID, entry.Delta.String(),
		string(entry.Type), entry.Reason, entry.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return storeErr("append balance entry", err)
	}
	return nil
}

func (s *session) Entries(ctx context.Context, employeeID string) ([]leave.BalanceEntry, error) {
	rows, err := s.r.QueryContext(ctx, `
		SELECT id, employee_id, request_id, delta, entry_type, reason, created_at
		FROM balance_entries
		WHERE employee_id = ?
		ORDER BY created_at, id`, employeeID)
	if err != nil {
		return nil, storeErr("load balance entries", err)
	}
	defer rows.Close()

	var out []leave.BalanceEntry
	for rows.Next() {
		var (
			entry      leave.BalanceEntry
			deltaRaw   string
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.EmployeeID, &entry.RequestID,
			&deltaRaw, &entry.Type, &entry.Reason, &createdRaw); err != nil {
			return nil, storeErr("scan balance entry", err)
		}
		delta, err := decimal.NewFromString(deltaRaw)
		if err != nil {
			return nil, storeErr("parse balance delta", err)
		}
		entry.Delta = delta
		if entry.CreatedAt, err = time.Parse(time.RFC3339, createdRaw); err != nil {
			return nil, storeErr("parse entry created_at", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate balance entries", err)
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Compile-time interface checks.
var (
	_ leave.TxStore = (*Store)(nil)
	_ leave.Store   = (*session)(nil)
)
