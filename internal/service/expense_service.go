// Package service implements the ledger engine's operations: the expense
// write path, balance aggregation, settlement allocation and the settlement
// confirmation protocol. Services own validation and orchestration; money
// math lives in calculator, persistence in storage.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// ExpenseService is the Debt Ledger's write path.
type ExpenseService struct {
	store       storage.Store
	invalidator cache.Invalidator
}

// NewExpenseService creates an ExpenseService with the given storage backend
// and cache collaborator.
func NewExpenseService(store storage.Store, invalidator cache.Invalidator) *ExpenseService {
	return &ExpenseService{store: store, invalidator: invalidator}
}

// CreateExpenseInput carries a validated-at-the-boundary expense creation
// request. Split is the tagged policy variant; Participants may be empty for
// group expenses, meaning "all group members".
type CreateExpenseInput struct {
	ActorID      string
	Scope        models.Scope
	Amount       money.Amount
	Description  string
	Category     string
	ExpenseDate  int64
	GroupID      string
	PayerID      string
	Participants []string
	Split        calculator.Split
}

// CreateExpense converts a payment into per-participant obligations and
// persists them atomically with the expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (*models.Expense, []models.Obligation, error) {
	if in.PayerID == "" {
		in.PayerID = in.ActorID
	}

	var participants []string
	switch in.Scope {
	case models.ScopePersonal:
		if in.GroupID != "" {
			return nil, nil, fmt.Errorf("%w: personal expenses cannot reference a group", models.ErrValidation)
		}
		// A personal expense is its own single-participant split: one
		// pre-settled obligation, no counterparty, no debt.
		participants = []string{in.PayerID}
		in.Split = calculator.EqualSplit{}
	case models.ScopeGroup:
		if in.GroupID == "" {
			return nil, nil, fmt.Errorf("%w: group expenses require a group", models.ErrValidation)
		}
		group, err := s.store.GetGroup(ctx, in.GroupID)
		if err != nil {
			return nil, nil, err
		}
		if !group.HasMember(in.ActorID) {
			return nil, nil, fmt.Errorf("%w: user %s is not a member of group %s",
				models.ErrConflict, in.ActorID, in.GroupID)
		}
		if !group.HasMember(in.PayerID) {
			return nil, nil, fmt.Errorf("%w: payer %s is not a member of group %s",
				models.ErrConflict, in.PayerID, in.GroupID)
		}
		participants, err = resolveParticipants(group, in.Participants)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("%w: unknown scope %q", models.ErrValidation, in.Scope)
	}

	if in.Split == nil {
		return nil, nil, fmt.Errorf("%w: unknown split policy", models.ErrValidation)
	}

	// All split validation happens before the transaction opens.
	result, err := calculator.ComputeSplit(participants, in.Amount, in.PayerID, in.Split)
	if err != nil {
		return nil, nil, err
	}

	expense := &models.Expense{
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		ExpenseDate: in.ExpenseDate,
		CreatorID:   in.ActorID,
		PayerID:     in.PayerID,
		Scope:       in.Scope,
		GroupID:     in.GroupID,
		Split:       in.Split.Policy(),
		// No-debt expenses (personal, or a group of one paying for
		// themselves) are born settled.
		Settled: result.NoDebt,
	}

	obligations := make([]models.Obligation, len(result.Drafts))
	for i, d := range result.Drafts {
		obligations[i] = models.Obligation{
			UserID:     d.UserID,
			AmountOwed: d.Amount,
			ShareBps:   d.ShareBps,
			Settled:    d.Settled,
		}
	}

	if err := s.store.CreateExpense(ctx, expense, obligations); err != nil {
		slog.Error("CreateExpense failed", "error", err)
		return nil, nil, err
	}
	metrics.ExpensesCreated.WithLabelValues(string(expense.Scope), string(expense.Split)).Inc()
	slog.Info("Expense created",
		"expense_id", expense.ID,
		"scope", expense.Scope,
		"amount", expense.Amount.String(),
		"participants", len(obligations),
	)

	keys := make([]string, 0, len(participants)+1)
	for _, p := range participants {
		keys = append(keys, cache.DebtSummaryKey(p))
	}
	if expense.GroupID != "" {
		keys = append(keys, cache.GroupExpensesKey(expense.GroupID))
	}
	invalidate(ctx, s.invalidator, keys)

	return expense, obligations, nil
}

// GetExpense returns an expense with its obligations. Soft-deleted expenses
// are reported as not found.
func (s *ExpenseService) GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.Obligation, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	if expense.Deleted {
		return nil, nil, fmt.Errorf("%w: expense %s", models.ErrNotFound, expenseID)
	}
	obligations, err := s.store.GetObligations(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	return expense, obligations, nil
}

// ListGroupExpenses returns a group's expenses for a member.
func (s *ExpenseService) ListGroupExpenses(ctx context.Context, actorID, groupID string) ([]*models.Expense, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(actorID) {
		return nil, fmt.Errorf("%w: user %s is not a member of group %s", models.ErrConflict, actorID, groupID)
	}
	return s.store.ListGroupExpenses(ctx, groupID)
}

// UpdateExpenseInput carries the mutable fields of a personal expense.
type UpdateExpenseInput struct {
	ActorID     string
	ExpenseID   string
	Amount      money.Amount
	Description string
	Category    string
	ExpenseDate int64
}

// UpdatePersonalExpense edits a personal expense. Group expenses are
// immutable once obligations exist; editing them would invalidate computed,
// possibly already-settled, obligations.
func (s *ExpenseService) UpdatePersonalExpense(ctx context.Context, in UpdateExpenseInput) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, in.ExpenseID)
	if err != nil {
		return nil, err
	}
	if expense.Deleted {
		return nil, fmt.Errorf("%w: expense %s", models.ErrNotFound, in.ExpenseID)
	}
	if expense.Scope != models.ScopePersonal {
		return nil, fmt.Errorf("%w: group expenses are immutable once created", models.ErrConflict)
	}
	if expense.CreatorID != in.ActorID {
		return nil, fmt.Errorf("%w: only the creator can edit an expense", models.ErrConflict)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}

	expense.Amount = in.Amount
	expense.Description = in.Description
	expense.Category = in.Category
	if in.ExpenseDate != 0 {
		expense.ExpenseDate = in.ExpenseDate
	}
	if err := s.store.UpdatePersonalExpense(ctx, expense); err != nil {
		return nil, err
	}
	invalidate(ctx, s.invalidator, []string{cache.DebtSummaryKey(in.ActorID)})
	return expense, nil
}

// DeleteExpense soft-deletes an expense. Group expenses can only be removed
// while no obligation on them has been settled; retiring debt and then
// deleting its source would corrupt displayed balances.
func (s *ExpenseService) DeleteExpense(ctx context.Context, actorID, expenseID string) error {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense.Deleted {
		return fmt.Errorf("%w: expense %s", models.ErrNotFound, expenseID)
	}
	if expense.CreatorID != actorID && expense.PayerID != actorID {
		return fmt.Errorf("%w: only the creator or payer can delete an expense", models.ErrConflict)
	}
	if expense.Scope == models.ScopeGroup {
		obligations, err := s.store.GetObligations(ctx, expenseID)
		if err != nil {
			return err
		}
		for _, o := range obligations {
			if o.Settled && o.AmountOwed > 0 {
				return fmt.Errorf("%w: expense %s has settled obligations", models.ErrConflict, expenseID)
			}
		}
	}
	if err := s.store.SoftDeleteExpense(ctx, expenseID); err != nil {
		return err
	}

	keys := []string{cache.DebtSummaryKey(expense.PayerID)}
	if expense.GroupID != "" {
		keys = append(keys, cache.GroupExpensesKey(expense.GroupID))
	}
	invalidate(ctx, s.invalidator, keys)
	return nil
}

// resolveParticipants returns the participant list in membership join order.
// An empty request list means every group member participates.
func resolveParticipants(group *models.Group, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return group.Members, nil
	}
	wanted := make(map[string]bool, len(requested))
	for _, p := range requested {
		if !group.HasMember(p) {
			return nil, fmt.Errorf("%w: participant %s is not a member of group %s",
				models.ErrValidation, p, group.ID)
		}
		wanted[p] = true
	}
	// Reorder into join order so splits stay deterministic.
	ordered := make([]string, 0, len(wanted))
	for _, m := range group.Members {
		if wanted[m] {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

// invalidate notifies the cache collaborator best-effort. Failures are
// logged and counted, never propagated: the ledger mutation already
// committed.
func invalidate(ctx context.Context, inv cache.Invalidator, keys []string) {
	if inv == nil || len(keys) == 0 {
		return
	}
	if err := inv.Invalidate(ctx, keys); err != nil {
		metrics.CacheInvalidationErrors.Inc()
		slog.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
