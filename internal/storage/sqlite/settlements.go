package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

const defaultSettlementLimit = 50

// CreateSettlement validates the amount against the outstanding pair debt,
// computes the allocation plan and inserts the settlement, all in one
// transaction. When the settlement arrives with both confirmation flags set
// (single-step trusted settlement), the plan is applied in the same
// transaction; otherwise obligations stay untouched until confirmation.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) (*storage.SettlementOutcome, error) {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	var plan *calculator.AllocationPlan
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		debts, err := listUnsettledByPairTx(ctx, tx, settlement.FromUserID, settlement.ToUserID, settlement.GroupID)
		if err != nil {
			return err
		}

		// Validation against outstanding debt happens on the same
		// snapshot the writes act on.
		plan, err = calculator.AllocatePayment(toOutstanding(debts), settlement.Amount)
		if err != nil {
			return err
		}

		if settlement.FullyConfirmed() {
			settlement.Status = models.SettlementConfirmed
			if settlement.ConfirmedAt == 0 {
				settlement.ConfirmedAt = settlement.CreatedAt
			}
		} else {
			settlement.Status = models.SettlementPending
		}

		var description, reason interface{}
		if settlement.Description != "" {
			description = settlement.Description
		}
		if settlement.DisputeReason != "" {
			reason = settlement.DisputeReason
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, method, description,
			                          status, confirmed_by_payer, confirmed_by_receiver, confirmed_at,
			                          dispute_reason, created_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			settlement.ID, settlement.GroupID, settlement.FromUserID, settlement.ToUserID,
			settlement.Amount, settlement.Method, description, settlement.Status,
			boolToInt(settlement.ConfirmedByPayer), boolToInt(settlement.ConfirmedByReceiver),
			settlement.ConfirmedAt, reason, settlement.CreatedBy, settlement.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}

		if settlement.Status == models.SettlementConfirmed {
			return applyPlanTx(ctx, tx, plan, settlement.FromUserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &storage.SettlementOutcome{Settlement: settlement, Plan: plan}, nil
}

// ConfirmSettlement runs one confirmation-state-machine step atomically.
// The obligation retirement is guarded by the pending -> confirmed status
// transition, so two near-simultaneous confirmations can never both flip the
// same obligations.
func (s *SQLiteStore) ConfirmSettlement(ctx context.Context, settlementID, actorID string, confirm bool, disputeReason string) (*models.Settlement, *calculator.AllocationPlan, error) {
	var out *models.Settlement
	var plan *calculator.AllocationPlan

	err := s.execTx(ctx, func(tx *sql.Tx) error {
		settlement, err := getSettlementTx(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if !settlement.IsParty(actorID) {
			return fmt.Errorf("%w: user %s is not a party to settlement %s",
				models.ErrConflict, actorID, settlementID)
		}
		if settlement.Status != models.SettlementPending {
			return fmt.Errorf("%w: settlement %s is already %s",
				models.ErrConflict, settlementID, settlement.Status)
		}

		if !confirm {
			res, err := tx.ExecContext(ctx,
				`UPDATE settlements SET status = ?, dispute_reason = ? WHERE id = ? AND status = ?`,
				models.SettlementDisputed, disputeReason, settlementID, models.SettlementPending)
			if err != nil {
				return fmt.Errorf("failed to dispute settlement: %w", err)
			}
			if err := requireOneRow(res, settlementID); err != nil {
				return err
			}
			settlement.Status = models.SettlementDisputed
			settlement.DisputeReason = disputeReason
			out = settlement
			return nil
		}

		if actorID == settlement.FromUserID {
			settlement.ConfirmedByPayer = true
		} else {
			settlement.ConfirmedByReceiver = true
		}

		if !settlement.FullyConfirmed() {
			// Re-confirming an already-set side lands here too; the
			// write below is a no-op in that case, which is the
			// idempotency the protocol wants.
			_, err := tx.ExecContext(ctx,
				`UPDATE settlements SET confirmed_by_payer = ?, confirmed_by_receiver = ?
				 WHERE id = ? AND status = ?`,
				boolToInt(settlement.ConfirmedByPayer), boolToInt(settlement.ConfirmedByReceiver),
				settlementID, models.SettlementPending)
			if err != nil {
				return fmt.Errorf("failed to record confirmation: %w", err)
			}
			out = settlement
			return nil
		}

		// Both sides have confirmed: transition and retire obligations,
		// exactly once.
		settlement.Status = models.SettlementConfirmed
		settlement.ConfirmedAt = time.Now().Unix()
		res, err := tx.ExecContext(ctx,
			`UPDATE settlements SET status = ?, confirmed_by_payer = 1, confirmed_by_receiver = 1,
			        confirmed_at = ?
			 WHERE id = ? AND status = ?`,
			models.SettlementConfirmed, settlement.ConfirmedAt, settlementID, models.SettlementPending)
		if err != nil {
			return fmt.Errorf("failed to confirm settlement: %w", err)
		}
		if err := requireOneRow(res, settlementID); err != nil {
			return err
		}

		debts, err := listUnsettledByPairTx(ctx, tx, settlement.FromUserID, settlement.ToUserID, settlement.GroupID)
		if err != nil {
			return err
		}
		// Another confirmed settlement may have retired debt since this
		// one was created; apply no more than what is still outstanding.
		var outstanding money.Amount
		for _, d := range debts {
			outstanding += d.Amount
		}
		pay := settlement.Amount
		if pay > outstanding {
			pay = outstanding
		}
		if pay > 0 {
			plan, err = calculator.AllocatePayment(toOutstanding(debts), pay)
			if err != nil {
				return err
			}
			if err := applyPlanTx(ctx, tx, plan, settlement.FromUserID); err != nil {
				return err
			}
		}
		out = settlement
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, plan, nil
}

// applyPlanTx flips the fully covered obligations of an allocation plan on
// the caller's transaction. The partially covered obligation, if any, is
// deliberately left untouched.
func applyPlanTx(ctx context.Context, tx *sql.Tx, plan *calculator.AllocationPlan, debtorID string) error {
	for _, d := range plan.Settled {
		if err := settleObligationTx(ctx, tx, d.ExpenseID, debtorID); err != nil {
			return err
		}
	}
	return nil
}

func requireOneRow(res sql.Result, settlementID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check settlement update: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: settlement %s was finalized concurrently", models.ErrConflict, settlementID)
	}
	return nil
}

func toOutstanding(debts []storage.DebtRow) []calculator.OutstandingDebt {
	out := make([]calculator.OutstandingDebt, len(debts))
	for i, d := range debts {
		out[i] = calculator.OutstandingDebt{
			ExpenseID:   d.ExpenseID,
			Description: d.Description,
			ExpenseDate: d.ExpenseDate,
			CreatedAt:   d.CreatedAt,
			Amount:      d.Amount,
		}
	}
	return out
}

const settlementColumns = `id, group_id, from_user_id, to_user_id, amount, method,
       COALESCE(description, ''), status, confirmed_by_payer, confirmed_by_receiver,
       confirmed_at, COALESCE(dispute_reason, ''), created_by, created_at`

func scanSettlement(row interface{ Scan(...any) error }) (*models.Settlement, error) {
	st := &models.Settlement{}
	var byPayer, byReceiver int
	err := row.Scan(&st.ID, &st.GroupID, &st.FromUserID, &st.ToUserID, &st.Amount, &st.Method,
		&st.Description, &st.Status, &byPayer, &byReceiver, &st.ConfirmedAt,
		&st.DisputeReason, &st.CreatedBy, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	st.ConfirmedByPayer = byPayer != 0
	st.ConfirmedByReceiver = byReceiver != 0
	return st, nil
}

func getSettlementTx(ctx context.Context, tx *sql.Tx, settlementID string) (*models.Settlement, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, settlementID)
	settlement, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: settlement %s", models.ErrNotFound, settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, settlementID)
	settlement, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: settlement %s", models.ErrNotFound, settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// ListSettlements returns settlements matching the filter, newest first.
func (s *SQLiteStore) ListSettlements(ctx context.Context, filter storage.SettlementFilter) ([]*models.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		switch filter.Role {
		case "payer":
			query += ` AND from_user_id = ?`
			args = append(args, filter.UserID)
		case "receiver":
			query += ` AND to_user_id = ?`
			args = append(args, filter.UserID)
		default:
			query += ` AND (from_user_id = ? OR to_user_id = ?)`
			args = append(args, filter.UserID, filter.UserID)
		}
	}
	if filter.GroupID != "" {
		query += ` AND group_id = ?`
		args = append(args, filter.GroupID)
	}
	if filter.CounterpartyID != "" {
		query += ` AND (from_user_id = ? OR to_user_id = ?)`
		args = append(args, filter.CounterpartyID, filter.CounterpartyID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSettlementLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	return settlements, rows.Err()
}
