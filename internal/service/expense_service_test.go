package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func TestCreateExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("group equal split", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob", "carol")
		svc := NewExpenseService(store, cache.Noop{})

		expense, obligations, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID:     "alice",
			Scope:       models.ScopeGroup,
			Amount:      10000,
			Description: "dinner",
			GroupID:     group.ID,
			Split:       calculator.EqualSplit{},
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", expense.PayerID, "payer defaults to the actor")
		assert.False(t, expense.Settled)
		require.Len(t, obligations, 3)

		owed := map[string]money.Amount{}
		for _, o := range obligations {
			owed[o.UserID] = o.AmountOwed
		}
		assert.Equal(t, money.Amount(0), owed["alice"])
		assert.Equal(t, money.Amount(3333), owed["bob"])
		assert.Equal(t, money.Amount(3333), owed["carol"])
	})

	t.Run("subset of participants in join order", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob", "carol")
		svc := NewExpenseService(store, cache.Noop{})

		// Requested out of join order; remainder distribution must still
		// follow membership order.
		_, obligations, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID:      "bob",
			Scope:        models.ScopeGroup,
			Amount:       1001,
			Description:  "cab",
			GroupID:      group.ID,
			Participants: []string{"carol", "alice", "bob"},
			Split:        calculator.EqualSplit{},
		})
		require.NoError(t, err)
		owed := map[string]money.Amount{}
		for _, o := range obligations {
			owed[o.UserID] = o.AmountOwed
		}
		// 1001/3 = 333 rem 2: alice and bob get the extra cents, bob pays.
		assert.Equal(t, money.Amount(334), owed["alice"])
		assert.Equal(t, money.Amount(0), owed["bob"])
		assert.Equal(t, money.Amount(333), owed["carol"])
	})

	t.Run("personal expense is born settled", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewExpenseService(store, cache.Noop{})

		expense, obligations, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID:     "alice",
			Scope:       models.ScopePersonal,
			Amount:      700,
			Description: "coffee",
			Split:       calculator.EqualSplit{},
		})
		require.NoError(t, err)
		assert.True(t, expense.Settled)
		require.Len(t, obligations, 1)
		assert.True(t, obligations[0].Settled)
		assert.Equal(t, money.Amount(0), obligations[0].AmountOwed)
	})

	t.Run("validation failures", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob")
		svc := NewExpenseService(store, cache.Noop{})

		tests := []struct {
			name    string
			in      CreateExpenseInput
			wantErr error
		}{
			{
				name: "personal with group",
				in: CreateExpenseInput{ActorID: "alice", Scope: models.ScopePersonal,
					Amount: 100, GroupID: group.ID, Split: calculator.EqualSplit{}},
				wantErr: models.ErrValidation,
			},
			{
				name: "group without group id",
				in: CreateExpenseInput{ActorID: "alice", Scope: models.ScopeGroup,
					Amount: 100, Split: calculator.EqualSplit{}},
				wantErr: models.ErrValidation,
			},
			{
				name: "actor outside group",
				in: CreateExpenseInput{ActorID: "mallory", Scope: models.ScopeGroup,
					Amount: 100, GroupID: group.ID, Split: calculator.EqualSplit{}},
				wantErr: models.ErrConflict,
			},
			{
				name: "payer outside group",
				in: CreateExpenseInput{ActorID: "alice", PayerID: "mallory", Scope: models.ScopeGroup,
					Amount: 100, GroupID: group.ID, Split: calculator.EqualSplit{}},
				wantErr: models.ErrConflict,
			},
			{
				name: "participant outside group",
				in: CreateExpenseInput{ActorID: "alice", Scope: models.ScopeGroup, Amount: 100,
					GroupID: group.ID, Participants: []string{"alice", "mallory"},
					Split: calculator.EqualSplit{}},
				wantErr: models.ErrValidation,
			},
			{
				name: "unknown scope",
				in: CreateExpenseInput{ActorID: "alice", Scope: "household",
					Amount: 100, Split: calculator.EqualSplit{}},
				wantErr: models.ErrValidation,
			},
			{
				name: "nil split",
				in: CreateExpenseInput{ActorID: "alice", Scope: models.ScopeGroup,
					Amount: 100, GroupID: group.ID},
				wantErr: models.ErrValidation,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := svc.CreateExpense(ctx, tt.in)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})

	t.Run("invalidates debt summaries for all participants", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob")
		inv := &fakeInvalidator{}
		svc := NewExpenseService(store, inv)

		_, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			cache.DebtSummaryKey("alice"),
			cache.DebtSummaryKey("bob"),
			cache.GroupExpensesKey(group.ID),
		}, inv.seen())
	})

	t.Run("cache failure never fails the write", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob")
		inv := &fakeInvalidator{err: errors.New("cache down")}
		svc := NewExpenseService(store, inv)

		_, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		assert.NoError(t, err)
	})
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("personal expense can be edited by its creator", func(t *testing.T) {
		store := newTestStore(t)
		svc := NewExpenseService(store, cache.Noop{})
		expense, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopePersonal, Amount: 700,
			Description: "coffee", Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)

		updated, err := svc.UpdatePersonalExpense(ctx, UpdateExpenseInput{
			ActorID: "alice", ExpenseID: expense.ID, Amount: 900, Description: "coffee, large",
		})
		require.NoError(t, err)
		assert.Equal(t, money.Amount(900), updated.Amount)

		_, err = svc.UpdatePersonalExpense(ctx, UpdateExpenseInput{
			ActorID: "bob", ExpenseID: expense.ID, Amount: 100,
		})
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("group expenses are immutable", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob")
		svc := NewExpenseService(store, cache.Noop{})
		expense, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)

		_, err = svc.UpdatePersonalExpense(ctx, UpdateExpenseInput{
			ActorID: "alice", ExpenseID: expense.ID, Amount: 2000,
		})
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("delete hides the expense and frees its debt", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob")
		svc := NewExpenseService(store, cache.Noop{})
		expense, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteExpense(ctx, "alice", expense.ID))
		_, _, err = svc.GetExpense(ctx, expense.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)

		rows, err := store.ListUnsettledByPair(ctx, "bob", "alice", group.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("only creator or payer can delete", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob", "carol")
		svc := NewExpenseService(store, cache.Noop{})
		expense, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)
		assert.ErrorIs(t, svc.DeleteExpense(ctx, "carol", expense.ID), models.ErrConflict)
	})

	t.Run("group expense with settled debt cannot be deleted", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, "alice", "bob")
		svc := NewExpenseService(store, cache.Noop{})
		settlements := NewSettlementService(store, cache.Noop{})

		expense, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)

		_, err = settlements.Settle(ctx, SettleInput{
			ActorID: "bob", GroupID: group.ID, ToUserID: "alice",
			Amount: 500, AutoConfirm: true,
		})
		require.NoError(t, err)

		assert.ErrorIs(t, svc.DeleteExpense(ctx, "alice", expense.ID), models.ErrConflict)
	})
}

func TestListGroupExpenses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	group := seedGroup(t, store, "alice", "bob")
	svc := NewExpenseService(store, cache.Noop{})

	for _, desc := range []string{"rent", "groceries"} {
		_, _, err := svc.CreateExpense(ctx, CreateExpenseInput{
			ActorID: "alice", Scope: models.ScopeGroup, Amount: 1000,
			Description: desc, GroupID: group.ID, Split: calculator.EqualSplit{},
		})
		require.NoError(t, err)
	}

	expenses, err := svc.ListGroupExpenses(ctx, "bob", group.ID)
	require.NoError(t, err)
	assert.Len(t, expenses, 2)

	_, err = svc.ListGroupExpenses(ctx, "mallory", group.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}
