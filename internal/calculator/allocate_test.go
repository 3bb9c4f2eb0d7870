package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func someDebts() []OutstandingDebt {
	return []OutstandingDebt{
		{ExpenseID: "e1", Description: "groceries", ExpenseDate: 100, CreatedAt: 100, Amount: 1000},
		{ExpenseID: "e2", Description: "dinner", ExpenseDate: 200, CreatedAt: 200, Amount: 2500},
		{ExpenseID: "e3", Description: "cab", ExpenseDate: 300, CreatedAt: 300, Amount: 500},
	}
}

func settledIDs(plan *AllocationPlan) []string {
	ids := make([]string, 0, len(plan.Settled))
	for _, d := range plan.Settled {
		ids = append(ids, d.ExpenseID)
	}
	return ids
}

func TestAllocatePayment(t *testing.T) {
	t.Run("exact payment retires everything", func(t *testing.T) {
		plan, err := AllocatePayment(someDebts(), 4000)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1", "e2", "e3"}, settledIDs(plan))
		assert.Nil(t, plan.Partial)
		assert.Equal(t, money.Amount(4000), plan.SettledAmount)
		assert.Equal(t, money.Amount(0), plan.Remaining)
	})

	t.Run("oldest debt retires first", func(t *testing.T) {
		plan, err := AllocatePayment(someDebts(), 1000)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, settledIDs(plan))
		assert.Nil(t, plan.Partial)
		assert.Equal(t, money.Amount(3000), plan.Remaining)
	})

	t.Run("at most one partial, never persisted progress", func(t *testing.T) {
		plan, err := AllocatePayment(someDebts(), 1500)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, settledIDs(plan))
		require.NotNil(t, plan.Partial)
		assert.Equal(t, "e2", plan.Partial.Debt.ExpenseID)
		assert.Equal(t, money.Amount(500), plan.Partial.Paid)
		assert.Equal(t, money.Amount(2000), plan.Partial.Remaining)
		// The partially covered obligation still counts at full value.
		assert.Equal(t, money.Amount(3000), plan.Remaining)
	})

	t.Run("input order does not matter", func(t *testing.T) {
		shuffled := []OutstandingDebt{someDebts()[2], someDebts()[0], someDebts()[1]}
		plan, err := AllocatePayment(shuffled, 3500)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1", "e2"}, settledIDs(plan))
	})

	t.Run("same date falls back to creation time then id", func(t *testing.T) {
		debts := []OutstandingDebt{
			{ExpenseID: "b", ExpenseDate: 100, CreatedAt: 100, Amount: 100},
			{ExpenseID: "a", ExpenseDate: 100, CreatedAt: 100, Amount: 100},
			{ExpenseID: "c", ExpenseDate: 100, CreatedAt: 50, Amount: 100},
		}
		plan, err := AllocatePayment(debts, 300)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, settledIDs(plan))
	})

	t.Run("overpayment rejected", func(t *testing.T) {
		_, err := AllocatePayment(someDebts(), 4001)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("zero and negative amounts rejected", func(t *testing.T) {
		_, err := AllocatePayment(someDebts(), 0)
		assert.ErrorIs(t, err, models.ErrValidation)
		_, err = AllocatePayment(someDebts(), -100)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("no debts means any payment overpays", func(t *testing.T) {
		_, err := AllocatePayment(nil, 1)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("corrupt non-positive debt row trips the guard", func(t *testing.T) {
		_, err := AllocatePayment([]OutstandingDebt{{ExpenseID: "e1", Amount: 0}}, 1)
		assert.ErrorIs(t, err, models.ErrLedgerGuard)
	})
}
