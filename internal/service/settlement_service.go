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

// SettlementService implements the Settlement Allocator and the two-party
// confirmation state machine.
type SettlementService struct {
	store       storage.Store
	invalidator cache.Invalidator
}

// NewSettlementService creates a SettlementService with the given storage
// backend and cache collaborator.
func NewSettlementService(store storage.Store, invalidator cache.Invalidator) *SettlementService {
	return &SettlementService{store: store, invalidator: invalidator}
}

// SettleInput describes a settlement payment: the actor pays ToUserID within
// a group. AutoConfirm is the single-step trusted path where both
// confirmation flags are set at creation and obligations are retired
// immediately; the default is the two-phase confirmation flow.
type SettleInput struct {
	ActorID     string
	GroupID     string
	ToUserID    string
	Amount      money.Amount
	Method      string
	Description string
	AutoConfirm bool
}

// SettleResult reports what a settlement payment did (or, in the two-phase
// flow, will do once confirmed).
type SettleResult struct {
	Settlement *models.Settlement

	// SettledExpenses lists the obligations the payment fully covers,
	// oldest first.
	SettledExpenses []calculator.OutstandingDebt

	// PartiallySettled is the at-most-one obligation the payment touches
	// without retiring. Response-only; the ledger keeps the full amount.
	PartiallySettled *calculator.PartialSettlement

	// RemainingDebt is the aggregate debt the actor still owes the
	// receiver in the group after the plan applies.
	RemainingDebt money.Amount
}

// Settle applies a payment from the actor to a group member against their
// outstanding obligations, oldest first.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (*SettleResult, error) {
	if in.ActorID == in.ToUserID {
		return nil, fmt.Errorf("%w: cannot settle a debt with yourself", models.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: settlement amount must be positive", models.ErrValidation)
	}

	group, err := s.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(in.ActorID) || !group.HasMember(in.ToUserID) {
		return nil, fmt.Errorf("%w: both parties must be members of group %s", models.ErrConflict, in.GroupID)
	}

	settlement := &models.Settlement{
		GroupID:     in.GroupID,
		FromUserID:  in.ActorID,
		ToUserID:    in.ToUserID,
		Amount:      in.Amount,
		Method:      in.Method,
		Description: in.Description,
		CreatedBy:   in.ActorID,
		// The creator asserts the transfer happened, so their side is
		// confirmed from the start.
		ConfirmedByPayer:    true,
		ConfirmedByReceiver: in.AutoConfirm,
	}

	outcome, err := s.store.CreateSettlement(ctx, settlement)
	if err != nil {
		slog.Error("Settle failed", "from", in.ActorID, "to", in.ToUserID, "error", err)
		return nil, err
	}
	metrics.SettlementsCreated.Inc()
	if outcome.Settlement.Status == models.SettlementConfirmed {
		metrics.SettlementsFinalized.WithLabelValues(string(models.SettlementConfirmed)).Inc()
		metrics.ObligationsRetired.Add(float64(len(outcome.Plan.Settled)))
	}
	slog.Info("Settlement recorded",
		"settlement_id", outcome.Settlement.ID,
		"from", in.ActorID,
		"to", in.ToUserID,
		"amount", in.Amount.String(),
		"status", outcome.Settlement.Status,
		"retires", len(outcome.Plan.Settled),
	)

	invalidate(ctx, s.invalidator, []string{
		cache.DebtSummaryKey(in.ActorID),
		cache.DebtSummaryKey(in.ToUserID),
		cache.GroupExpensesKey(in.GroupID),
	})

	return &SettleResult{
		Settlement:       outcome.Settlement,
		SettledExpenses:  outcome.Plan.Settled,
		PartiallySettled: outcome.Plan.Partial,
		RemainingDebt:    outcome.Plan.Remaining,
	}, nil
}

// Confirm advances the settlement confirmation state machine for one party.
// Confirming from both sides, in either order, reaches confirmed exactly
// once and retires the underlying obligations exactly once; rejecting moves
// the settlement to disputed, which is terminal.
func (s *SettlementService) Confirm(ctx context.Context, settlementID, actorID string, confirm bool, disputeReason string) (*models.Settlement, error) {
	if !confirm && disputeReason == "" {
		return nil, fmt.Errorf("%w: a dispute requires a reason", models.ErrValidation)
	}

	settlement, plan, err := s.store.ConfirmSettlement(ctx, settlementID, actorID, confirm, disputeReason)
	if err != nil {
		return nil, err
	}

	switch settlement.Status {
	case models.SettlementDisputed:
		metrics.SettlementsFinalized.WithLabelValues(string(models.SettlementDisputed)).Inc()
		slog.Info("Settlement disputed",
			"settlement_id", settlement.ID, "by", actorID, "reason", disputeReason)
	case models.SettlementConfirmed:
		retired := 0
		if plan != nil {
			retired = len(plan.Settled)
		}
		metrics.SettlementsFinalized.WithLabelValues(string(models.SettlementConfirmed)).Inc()
		metrics.ObligationsRetired.Add(float64(retired))
		slog.Info("Settlement confirmed",
			"settlement_id", settlement.ID, "by", actorID, "obligations_retired", retired)
	}

	if settlement.Status != models.SettlementPending {
		invalidate(ctx, s.invalidator, []string{
			cache.DebtSummaryKey(settlement.FromUserID),
			cache.DebtSummaryKey(settlement.ToUserID),
			cache.GroupExpensesKey(settlement.GroupID),
		})
	}
	return settlement, nil
}

// GetSettlement returns a settlement visible to one of its parties.
func (s *SettlementService) GetSettlement(ctx context.Context, settlementID, actorID string) (*models.Settlement, error) {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if !settlement.IsParty(actorID) {
		return nil, fmt.Errorf("%w: user %s is not a party to settlement %s",
			models.ErrConflict, actorID, settlementID)
	}
	return settlement, nil
}

// History returns the user's settlements matching the filter, newest first.
func (s *SettlementService) History(ctx context.Context, userID string, filter storage.SettlementFilter) ([]*models.Settlement, error) {
	filter.UserID = userID
	return s.store.ListSettlements(ctx, filter)
}
