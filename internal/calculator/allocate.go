package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// OutstandingDebt is one unsettled obligation the payer owes the receiver,
// joined with the expense fields allocation ordering needs.
type OutstandingDebt struct {
	ExpenseID   string
	Description string
	ExpenseDate int64
	CreatedAt   int64
	Amount      money.Amount
}

// PartialSettlement reports the single obligation a payment touched but did
// not fully cover. It exists only in responses: the ledger has no
// sub-obligation granularity, so partial progress is never persisted and a
// later settlement recomputes from the full original amount.
type PartialSettlement struct {
	Debt      OutstandingDebt
	Paid      money.Amount
	Remaining money.Amount
}

// AllocationPlan is the outcome of applying a payment FIFO against a set of
// outstanding debts.
type AllocationPlan struct {
	// Settled lists the obligations fully covered by the payment, in the
	// order they were retired.
	Settled []OutstandingDebt

	// Partial is the at-most-one obligation touched but not retired.
	Partial *PartialSettlement

	// SettledAmount is the sum of fully retired obligations.
	SettledAmount money.Amount

	// Remaining is the aggregate debt left on the ledger once the plan is
	// applied. Because partial progress is not persisted, a partially
	// covered obligation still counts at its full amount.
	Remaining money.Amount
}

// AllocatePayment walks the payer's outstanding debts oldest-first (expense
// date, then obligation creation time) and retires every obligation the
// payment fully covers. Overpayment is rejected outright rather than carried
// forward as credit; a reverse debt outside the model would be worse than
// asking the caller to settle the exact amount.
//
// The walk is deterministic: the same debts and amount always retire the
// same obligations, regardless of input order.
func AllocatePayment(debts []OutstandingDebt, amount money.Amount) (*AllocationPlan, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: settlement amount must be positive, got %s", models.ErrValidation, amount)
	}

	ordered := make([]OutstandingDebt, len(debts))
	copy(ordered, debts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ExpenseDate != ordered[j].ExpenseDate {
			return ordered[i].ExpenseDate < ordered[j].ExpenseDate
		}
		if ordered[i].CreatedAt != ordered[j].CreatedAt {
			return ordered[i].CreatedAt < ordered[j].CreatedAt
		}
		return ordered[i].ExpenseID < ordered[j].ExpenseID
	})

	var outstanding money.Amount
	for _, d := range ordered {
		if d.Amount <= 0 {
			return nil, fmt.Errorf("%w: outstanding debt on expense %s has non-positive amount %s",
				models.ErrLedgerGuard, d.ExpenseID, d.Amount)
		}
		outstanding += d.Amount
	}
	if amount > outstanding {
		return nil, fmt.Errorf("%w: settlement amount %s exceeds outstanding debt %s",
			models.ErrValidation, amount, outstanding)
	}

	plan := &AllocationPlan{}
	remaining := amount
	for _, d := range ordered {
		if remaining == 0 {
			break
		}
		if d.Amount <= remaining {
			plan.Settled = append(plan.Settled, d)
			plan.SettledAmount += d.Amount
			remaining -= d.Amount
			continue
		}
		// First obligation bigger than what is left: touched, not flipped.
		plan.Partial = &PartialSettlement{
			Debt:      d,
			Paid:      remaining,
			Remaining: d.Amount - remaining,
		}
		remaining = 0
	}

	if plan.SettledAmount > amount {
		return nil, fmt.Errorf("%w: allocated %s from a %s payment", models.ErrLedgerGuard, plan.SettledAmount, amount)
	}
	plan.Remaining = outstanding - plan.SettledAmount
	return plan, nil
}
