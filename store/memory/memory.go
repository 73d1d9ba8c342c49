// Package memory provides an in-memory TxStore for tests and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	employees map[string]*leave.Employee
	requests  map[string]*leave.LeaveRequest
	trail     map[string][]leave.BalanceEntry
	byEmail   map[string]string
}

func New() *Store {
	return &Store{
		employees: make(map[string]*leave.Employee),
		requests:  make(map[string]*leave.LeaveRequest),
		trail:     make(map[string][]leave.BalanceEntry),
		byEmail:   make(map[string]string),
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// SaveEmployee inserts or replaces an employee record. Remaining is derived
// from total/used so the balance invariant holds on write.
func (m *Store) SaveEmployee(_ context.Context, emp *leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *emp
	c.Balance = leave.NewBalance(emp.Balance.Total, emp.Balance.Used)
	m.employees[c.ID] = &c
	if c.Email != "" {
		m.byEmail[strings.ToLower(c.Email)] = c.ID
	}
	return nil
}

func (m *Store) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id)
}

func (m *Store) getEmployeeLocked(id string) (*leave.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: employee %s", leave.ErrNotFound, id)
	}
	c := *emp
	return &c, nil
}

func (m *Store) FindEmployeeByEmail(_ context.Context, email string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: employee with email %s", leave.ErrNotFound, email)
	}
	return m.getEmployeeLocked(id)
}

func (m *Store) ListEmployees(_ context.Context) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*leave.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		c := *emp
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetDirectReports(_ context.Context, managerID string) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDirectReportsLocked(managerID)
}

func (m *Store) getDirectReportsLocked(managerID string) ([]*leave.Employee, error) {
	var out []*leave.Employee
	for _, emp := range m.employees {
		if emp.ManagerID == managerID {
			c := *emp
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) AdjustBalance(_ context.Context, employeeID string, deltaUsed int) (*leave.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustBalanceLocked(employeeID, deltaUsed)
}

func (m *Store) adjustBalanceLocked(employeeID string, deltaUsed int) (*leave.Employee, error) {
	emp, ok := m.employees[employeeID]
	if !ok {
		return nil, fmt.Errorf("%w: employee %s", leave.ErrNotFound, employeeID)
	}

	newUsed := emp.Balance.Used + deltaUsed
	if newUsed > emp.Balance.Total {
		return nil, &leave.InsufficientBalanceError{
			EmployeeID: employeeID,
			Remaining:  emp.Balance.Remaining,
			Requested:  deltaUsed,
		}
	}
	if newUsed < 0 {
		// A credit below zero means a duplicate reversal won a race it
		// should have lost.
		return nil, fmt.Errorf("%w: balance adjustment would make used negative for %s",
			leave.ErrConflict, employeeID)
	}

	emp.Balance = leave.NewBalance(emp.Balance.Total, newUsed)
	c := *emp
	return &c, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Store) Get(_ context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Store) getRequestLocked(id string) (*leave.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	c := *req
	return &c, nil
}

func (m *Store) Create(_ context.Context, req *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(req)
}

func (m *Store) createLocked(req *leave.LeaveRequest) error {
	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("%w: request %s already exists", leave.ErrConflict, req.ID)
	}
	c := *req
	m.requests[c.ID] = &c
	return nil
}

func (m *Store) CompareAndSetStatus(_ context.Context, id string, expected leave.Status, update leave.StatusUpdate) (*leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.casLocked(id, expected, update)
}

func (m *Store) casLocked(id string, expected leave.Status, update leave.StatusUpdate) (*leave.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	if req.Status != expected {
		return nil, fmt.Errorf("%w: request %s is %s, expected %s",
			leave.ErrConflict, id, req.Status, expected)
	}

	req.Status = update.Status
	req.DecidedBy = update.DecidedBy
	req.DecisionDate = update.DecisionDate
	req.RejectionReason = update.RejectionReason
	if update.UpdatedAt.After(req.UpdatedAt) {
		req.UpdatedAt = update.UpdatedAt
	}

	c := *req
	return &c, nil
}

func (m *Store) Query(_ context.Context, employeeIDs []string) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(employeeIDs)
}

func (m *Store) queryLocked(employeeIDs []string) ([]*leave.LeaveRequest, error) {
	var filter map[string]struct{}
	if employeeIDs != nil {
		filter = make(map[string]struct{}, len(employeeIDs))
		for _, id := range employeeIDs {
			filter[id] = struct{}{}
		}
	}

	var out []*leave.LeaveRequest
	for _, req := range m.requests {
		if filter != nil {
			if _, ok := filter[req.EmployeeID]; !ok {
				continue
			}
		}
		c := *req
		out = append(out, &c)
	}
	return out, nil
}

// =============================================================================
// BALANCE TRAIL
// =============================================================================

func (m *Store) AppendEntry(_ context.Context, entry leave.BalanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(entry)
}

func (m *Store) appendEntryLocked(entry leave.BalanceEntry) error {
	m.trail[entry.EmployeeID] = append(m.trail[entry.EmployeeID], entry)
	return nil
}

func (m *Store) Entries(_ context.Context, employeeID string) ([]leave.BalanceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(employeeID)
}

func (m *Store) entriesLocked(employeeID string) ([]leave.BalanceEntry, error) {
	entries := m.trail[employeeID]
	out := make([]leave.BalanceEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn atomically by holding the write lock for the whole
// unit and restoring a snapshot if fn fails. Serializing transactions this
// way is what makes concurrent decide/cancel on the same request resolve
// to exactly one winner.
func (m *Store) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	employees map[string]*leave.Employee
	requests  map[string]*leave.LeaveRequest
	trail     map[string][]leave.BalanceEntry
}

func (m *Store) snapshot() storeSnapshot {
	employees := make(map[string]*leave.Employee, len(m.employees))
	for id, emp := range m.employees {
		c := *emp
		employees[id] = &c
	}
	requests := make(map[string]*leave.LeaveRequest, len(m.requests))
	for id, req := range m.requests {
		c := *req
		requests[id] = &c
	}
	trail := make(map[string][]leave.BalanceEntry, len(m.trail))
	for id, entries := range m.trail {
		trail[id] = append([]leave.BalanceEntry{}, entries...)
	}
	return storeSnapshot{employees: employees, requests: requests, trail: trail}
}

func (m *Store) restore(s storeSnapshot) {
	m.employees = s.employees
	m.requests = s.requests
	m.trail = s.trail
}

// txView exposes the locked internals to the transaction function. The
// parent's write lock is already held.
type txView struct {
	parent *Store
}

func (tv *txView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return tv.parent.getEmployeeLocked(id)
}

func (tv *txView) GetDirectReports(_ context.Context, managerID string) ([]*leave.Employee, error) {
	return tv.parent.getDirectReportsLocked(managerID)
}

func (tv *txView) AdjustBalance(_ context.Context, employeeID string, deltaUsed int) (*leave.Employee, error) {
	return tv.parent.adjustBalanceLocked(employeeID, deltaUsed)
}

func (tv *txView) Get(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return tv.parent.getRequestLocked(id)
}

func (tv *txView) Create(_ context.Context, req *leave.LeaveRequest) error {
	return tv.parent.createLocked(req)
}

func (tv *txView) CompareAndSetStatus(_ context.Context, id string, expected leave.Status, update leave.StatusUpdate) (*leave.LeaveRequest, error) {
	return tv.parent.casLocked(id, expected, update)
}

func (tv *txView) Query(_ context.Context, employeeIDs []string) ([]*leave.LeaveRequest, error) {
	return tv.parent.queryLocked(employeeIDs)
}

func (tv *txView) AppendEntry(_ context.Context, entry leave.BalanceEntry) error {
	return tv.parent.appendEntryLocked(entry)
}

func (tv *txView) Entries(_ context.Context, employeeID string) ([]leave.BalanceEntry, error) {
	return tv.parent.entriesLocked(employeeID)
}

// Compile-time interface checks.
var (
	_ leave.TxStore = (*Store)(nil)
	_ leave.Store   = (*txView)(nil)
)
