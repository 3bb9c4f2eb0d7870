package models

import "github.com/mmynk/splitledger/internal/money"

// Scope distinguishes personal spending from shared group expenses.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeGroup    Scope = "group"
)

// SplitPolicy names how a group expense is divided among participants.
type SplitPolicy string

const (
	SplitEqual      SplitPolicy = "equal"
	SplitExact      SplitPolicy = "exact"
	SplitPercentage SplitPolicy = "percentage"
)

// Expense represents a single monetary event, personal or shared.
// Group expenses are immutable once their obligations exist; editing the
// amount or split would invalidate obligations that may already be settled.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Amount is the full expense amount in minor currency units.
	Amount money.Amount

	// Description is a human-readable label ("Dinner at Luigi's").
	Description string

	// Category is an opaque category reference managed elsewhere.
	Category string

	// ExpenseDate is the Unix timestamp of when the money was spent,
	// which may differ from CreatedAt. Settlement allocation orders
	// debts by this date first.
	ExpenseDate int64

	// CreatorID is the user who recorded the expense.
	CreatorID string

	// PayerID is the user who fronted the money.
	PayerID string

	// Scope is personal or group; GroupID is set iff Scope is group.
	Scope   Scope
	GroupID string

	// Split is the policy the obligations were computed with.
	Split SplitPolicy

	// Settled is derived: true iff every obligation on this expense is
	// settled. Maintained by the ledger, never set by callers.
	Settled bool

	// Deleted marks a soft-deleted expense. Rows are never hard-deleted.
	Deleted bool

	// CreatedAt is the Unix timestamp when the row was written.
	CreatedAt int64
}

// Obligation is one participant's owed share of one expense.
// The payer's own row always carries AmountOwed = 0 and is settled at
// creation; their consumption is the fair share they never had to pay back.
type Obligation struct {
	ExpenseID string
	UserID    string

	// AmountOwed is what this participant owes the payer, in minor units.
	AmountOwed money.Amount

	// ShareBps is the participant's share of the expense in basis points
	// (10000 = 100%). Display-only; AmountOwed is authoritative.
	ShareBps int64

	// Settled flips to true exactly once, when a confirmed settlement
	// retires this obligation. Obligations are never re-split.
	Settled bool

	// CreatedAt is the Unix timestamp when the row was written. Used as
	// the FIFO tie-breaker when two expenses share an expense date.
	CreatedAt int64
}
