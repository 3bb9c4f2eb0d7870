package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateExpense persists an expense and its obligations in one transaction.
// If any obligation insert fails, the whole creation rolls back.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense, obligations []models.Obligation) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	if expense.ExpenseDate == 0 {
		expense.ExpenseDate = now
	}

	return s.execTx(ctx, func(tx *sql.Tx) error {
		var groupID interface{}
		if expense.GroupID != "" {
			groupID = expense.GroupID
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, amount, description, category, expense_date, creator_id, payer_id,
			                       scope, group_id, split_policy, settled, deleted, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			expense.ID, expense.Amount, expense.Description, expense.Category, expense.ExpenseDate,
			expense.CreatorID, expense.PayerID, expense.Scope, groupID, expense.Split,
			boolToInt(expense.Settled), expense.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		for i := range obligations {
			o := &obligations[i]
			o.ExpenseID = expense.ID
			if o.CreatedAt == 0 {
				o.CreatedAt = expense.CreatedAt
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO obligations (expense_id, user_id, amount_owed, share_bps, settled, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				o.ExpenseID, o.UserID, o.AmountOwed, o.ShareBps, boolToInt(o.Settled), o.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert obligation for %s: %w", o.UserID, err)
			}
		}
		return nil
	})
}

const expenseColumns = `id, amount, description, category, expense_date, creator_id, payer_id,
       scope, COALESCE(group_id, ''), split_policy, settled, deleted, created_at`

func scanExpense(row interface{ Scan(...any) error }) (*models.Expense, error) {
	e := &models.Expense{}
	var settled, deleted int
	err := row.Scan(&e.ID, &e.Amount, &e.Description, &e.Category, &e.ExpenseDate,
		&e.CreatorID, &e.PayerID, &e.Scope, &e.GroupID, &e.Split, &settled, &deleted, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Settled = settled != 0
	e.Deleted = deleted != 0
	return e, nil
}

// GetExpense retrieves an expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, expenseID)
	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: expense %s", models.ErrNotFound, expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// GetObligations returns the obligations for one expense.
func (s *SQLiteStore) GetObligations(ctx context.Context, expenseID string) ([]models.Obligation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id, amount_owed, share_bps, settled, created_at
		 FROM obligations WHERE expense_id = ? ORDER BY rowid`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get obligations: %w", err)
	}
	defer rows.Close()

	var obligations []models.Obligation
	for rows.Next() {
		var o models.Obligation
		var settled int
		if err := rows.Scan(&o.ExpenseID, &o.UserID, &o.AmountOwed, &o.ShareBps, &settled, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		o.Settled = settled != 0
		obligations = append(obligations, o)
	}
	return obligations, rows.Err()
}

// UpdatePersonalExpense rewrites the mutable fields of an expense.
// The service layer guarantees only personal expenses reach this path.
func (s *SQLiteStore) UpdatePersonalExpense(ctx context.Context, expense *models.Expense) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, description = ?, category = ?, expense_date = ?
		 WHERE id = ? AND scope = 'personal' AND deleted = 0`,
		expense.Amount, expense.Description, expense.Category, expense.ExpenseDate, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: personal expense %s", models.ErrNotFound, expense.ID)
	}
	return nil
}

// SoftDeleteExpense marks an expense deleted.
func (s *SQLiteStore) SoftDeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET deleted = 1 WHERE id = ? AND deleted = 0`, expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: expense %s", models.ErrNotFound, expenseID)
	}
	return nil
}

// ListGroupExpenses returns a group's non-deleted expenses, newest first.
func (s *SQLiteStore) ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE group_id = ? AND deleted = 0
		 ORDER BY expense_date DESC, created_at DESC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// debtRowQuery selects unsettled group-scope obligations joined with their
// expense. The payer's own zero rows are excluded by amount_owed > 0.
const debtRowQuery = `
SELECT o.expense_id, e.description, e.group_id, o.user_id, e.payer_id,
       e.expense_date, o.created_at, o.amount_owed
FROM obligations o
JOIN expenses e ON e.id = o.expense_id
WHERE o.settled = 0 AND o.amount_owed > 0
  AND e.deleted = 0 AND e.scope = 'group'`

const debtRowOrder = ` ORDER BY e.expense_date ASC, o.created_at ASC, o.expense_id ASC`

func scanDebtRows(rows *sql.Rows) ([]storage.DebtRow, error) {
	defer rows.Close()
	var out []storage.DebtRow
	for rows.Next() {
		var r storage.DebtRow
		if err := rows.Scan(&r.ExpenseID, &r.Description, &r.GroupID, &r.DebtorID,
			&r.CreditorID, &r.ExpenseDate, &r.CreatedAt, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan debt row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListUnsettledByPair returns debtor -> creditor debt rows in FIFO order.
func (s *SQLiteStore) ListUnsettledByPair(ctx context.Context, debtorID, creditorID, groupID string) ([]storage.DebtRow, error) {
	rows, err := s.db.QueryContext(ctx,
		debtRowQuery+` AND o.user_id = ? AND e.payer_id = ? AND e.group_id = ?`+debtRowOrder,
		debtorID, creditorID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair debts: %w", err)
	}
	return scanDebtRows(rows)
}

// listUnsettledByPairTx is ListUnsettledByPair inside an open transaction,
// for decision reads that must see the same snapshot as the writes.
func listUnsettledByPairTx(ctx context.Context, tx *sql.Tx, debtorID, creditorID, groupID string) ([]storage.DebtRow, error) {
	rows, err := tx.QueryContext(ctx,
		debtRowQuery+` AND o.user_id = ? AND e.payer_id = ? AND e.group_id = ?`+debtRowOrder,
		debtorID, creditorID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair debts: %w", err)
	}
	return scanDebtRows(rows)
}

// ListUnsettledForUser returns all debt rows where the user is debtor or
// creditor, optionally scoped to one group.
func (s *SQLiteStore) ListUnsettledForUser(ctx context.Context, userID, groupID string) ([]storage.DebtRow, error) {
	query := debtRowQuery + ` AND (o.user_id = ? OR e.payer_id = ?) AND o.user_id != e.payer_id`
	args := []any{userID, userID}
	if groupID != "" {
		query += ` AND e.group_id = ?`
		args = append(args, groupID)
	}
	rows, err := s.db.QueryContext(ctx, query+debtRowOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user debts: %w", err)
	}
	return scanDebtRows(rows)
}

// settleObligationTx marks one obligation settled, then flips the expense's
// own settled flag if every obligation on it is now settled. Both writes run
// on the caller's transaction so two settlements can never both believe they
// were "the last one".
func settleObligationTx(ctx context.Context, tx *sql.Tx, expenseID, userID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE obligations SET settled = 1 WHERE expense_id = ? AND user_id = ? AND settled = 0`,
		expenseID, userID)
	if err != nil {
		return fmt.Errorf("failed to settle obligation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check obligation update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: obligation (%s, %s) already settled or missing",
			models.ErrLedgerGuard, expenseID, userID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET settled = 1
		 WHERE id = ?
		   AND NOT EXISTS (SELECT 1 FROM obligations WHERE expense_id = ? AND settled = 0)`,
		expenseID, expenseID)
	if err != nil {
		return fmt.Errorf("failed to flip expense settled flag: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
