package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE TRAIL ENTRIES
// =============================================================================
//
// Every balance mutation leaves an immutable entry in the trail, written in
// the same atomic unit as the status transition that caused it. Deltas are
// signed day amounts: negative consumes, positive credits. For any employee
// the deltas sum to the negation of Balance.Used.

type EntryType string

const (
	EntryConsumption EntryType = "consumption"
	EntryReversal    EntryType = "reversal"
)

type BalanceEntry struct {
	ID         string
	EmployeeID string
	RequestID  string
	Delta      decimal.Decimal
	Type       EntryType
	Reason     string
	CreatedAt  time.Time
}

// ConsumptionEntry records the deduction made when req is approved.
func ConsumptionEntry(id string, req *LeaveRequest, at time.Time) BalanceEntry {
	return BalanceEntry{
		ID:         id,
		EmployeeID: req.EmployeeID,
		RequestID:  req.ID,
		Delta:      decimal.NewFromInt(int64(req.Days)).Neg(),
		Type:       EntryConsumption,
		Reason:     req.Reason,
		CreatedAt:  at,
	}
}

// ReversalEntry records the credit made when an approved req is cancelled.
func ReversalEntry(id string, req *LeaveRequest, at time.Time) BalanceEntry {
	return BalanceEntry{
		ID:         id,
		EmployeeID: req.EmployeeID,
		RequestID:  req.ID,
		Delta:      decimal.NewFromInt(int64(req.Days)),
		Type:       EntryReversal,
		Reason:     "approved request cancelled",
		CreatedAt:  at,
	}
}

// TrailTotal sums entry deltas.
func TrailTotal(entries []BalanceEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Delta)
	}
	return total
}
