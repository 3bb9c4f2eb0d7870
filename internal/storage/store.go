// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// DebtRow is one unsettled obligation joined with the expense fields the
// aggregator and allocator need. DebtorID is the obligation holder,
// CreditorID the expense payer.
type DebtRow struct {
	ExpenseID   string
	Description string
	GroupID     string
	DebtorID    string
	CreditorID  string
	ExpenseDate int64
	CreatedAt   int64
	Amount      money.Amount
}

// SettlementFilter narrows settlement history queries. Zero values mean
// "no filter"; Limit 0 falls back to the store's default.
type SettlementFilter struct {
	UserID         string
	GroupID        string
	CounterpartyID string
	Status         models.SettlementStatus
	// Role is "payer" or "receiver" relative to UserID; empty means both.
	Role  string
	Limit int
}

// SettlementOutcome is what a settlement creation transaction produced: the
// persisted record plus the allocation plan computed against the outstanding
// debts read inside the same transaction.
type SettlementOutcome struct {
	Settlement *models.Settlement
	Plan       *calculator.AllocationPlan
}

// Store defines the persistence contract for the ledger engine.
// Every mutating method is atomic: reads that feed a decision and the writes
// acting on it happen inside one transaction, so no partial ledger state is
// ever visible.
type Store interface {
	// CreateExpense persists an expense and its obligations in one
	// transaction. IDs and timestamps are populated if unset.
	CreateExpense(ctx context.Context, expense *models.Expense, obligations []models.Obligation) error

	// GetExpense retrieves an expense by ID, soft-deleted ones included.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// GetObligations returns the obligations for one expense.
	GetObligations(ctx context.Context, expenseID string) ([]models.Obligation, error)

	// UpdatePersonalExpense rewrites the mutable fields of a personal
	// expense. Group-expense immutability is enforced by the service.
	UpdatePersonalExpense(ctx context.Context, expense *models.Expense) error

	// SoftDeleteExpense marks an expense deleted; rows are never removed.
	SoftDeleteExpense(ctx context.Context, expenseID string) error

	// ListGroupExpenses returns a group's non-deleted expenses,
	// newest expense date first.
	ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, error)

	// ListUnsettledByPair returns debtor -> creditor unsettled debt rows
	// in a group, FIFO by (expense date, obligation created at).
	ListUnsettledByPair(ctx context.Context, debtorID, creditorID, groupID string) ([]DebtRow, error)

	// ListUnsettledForUser returns every unsettled group-scope debt row
	// where the user is debtor or creditor, optionally scoped to a group.
	ListUnsettledForUser(ctx context.Context, userID, groupID string) ([]DebtRow, error)

	// CreateSettlement validates the amount against the pair's outstanding
	// debt, computes the allocation plan and persists the settlement, all
	// in one transaction. If the settlement arrives fully confirmed, the
	// plan's obligation flips (and expense check-and-flips) are applied in
	// the same transaction.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) (*SettlementOutcome, error)

	// ConfirmSettlement runs the confirmation state machine transition in
	// one transaction. The returned plan is non-nil only when this call
	// performed the pending -> confirmed transition and retired
	// obligations.
	ConfirmSettlement(ctx context.Context, settlementID, actorID string, confirm bool, disputeReason string) (*models.Settlement, *calculator.AllocationPlan, error)

	// GetSettlement retrieves a settlement by ID.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// ListSettlements returns settlements matching the filter, newest
	// first.
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]*models.Settlement, error)

	// CreateGroup persists a group and its initial members in join order.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with members in join order.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddGroupMembers appends members preserving join order; existing
	// members are ignored.
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error

	// ListGroupsForUser returns the groups a user belongs to.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	// Close releases any resources held by the store.
	Close() error
}
