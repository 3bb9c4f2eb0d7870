// Package calculator holds the pure money math of the ledger engine:
// turning one expense into per-participant obligations, and applying a
// settlement payment against outstanding debts. No I/O happens here.
package calculator

import (
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// BpsWhole is 100% expressed in basis points.
const BpsWhole = 10000

// Split is the tagged policy variant dispatched once at the boundary.
// Exactly one of EqualSplit, ExactSplit or PercentSplit.
type Split interface {
	Policy() models.SplitPolicy
}

// EqualSplit divides the total evenly, handing the remainder out one minor
// unit at a time in participant (join) order.
type EqualSplit struct{}

// ExactSplit carries a caller-supplied amount per participant.
type ExactSplit struct {
	Shares map[string]money.Amount
}

// PercentSplit carries a caller-supplied share per participant in basis
// points (10000 = 100%).
type PercentSplit struct {
	SharesBps map[string]int64
}

func (EqualSplit) Policy() models.SplitPolicy   { return models.SplitEqual }
func (ExactSplit) Policy() models.SplitPolicy   { return models.SplitExact }
func (PercentSplit) Policy() models.SplitPolicy { return models.SplitPercentage }

// ObligationDraft is one participant's computed share, ready to be persisted.
// The payer's draft always has Amount = 0 and Settled = true.
type ObligationDraft struct {
	UserID   string
	Amount   money.Amount
	ShareBps int64
	Settled  bool
}

// SplitResult is the outcome of ComputeSplit. The exact-sum invariant holds:
// sum of non-payer draft amounts + PayerFairShare == total.
type SplitResult struct {
	Drafts []ObligationDraft

	// PayerFairShare is the payer's own consumption: what they would have
	// owed had someone else paid. Tracked for netting, never a debt row.
	PayerFairShare money.Amount

	// NoDebt is true when nobody owes anything: a single participant who
	// is also the payer, or an exact split assigning the whole total to
	// the payer. Such expenses are born settled.
	NoDebt bool
}

// exactSumTolerance absorbs client-side display rounding on exact splits.
const exactSumTolerance = money.Amount(1)

// ComputeSplit turns (participants, total, payer, policy) into obligation
// drafts. Participants must be in membership join order; equal-split
// remainder distribution depends on it for determinism. All validation
// happens here, before any transaction opens.
func ComputeSplit(participants []string, total money.Amount, payerID string, split Split) (*SplitResult, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive, got %s", models.ErrValidation, total)
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", models.ErrValidation)
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return nil, fmt.Errorf("%w: duplicate participant %q", models.ErrValidation, p)
		}
		seen[p] = true
	}
	if !seen[payerID] {
		return nil, fmt.Errorf("%w: payer %q must be one of the participants", models.ErrValidation, payerID)
	}

	var shares map[string]money.Amount
	var err error
	switch s := split.(type) {
	case EqualSplit:
		shares = equalShares(participants, total)
	case ExactSplit:
		shares, err = exactShares(participants, total, s)
	case PercentSplit:
		shares, err = percentShares(participants, total, payerID, s)
	default:
		return nil, fmt.Errorf("%w: unknown split policy", models.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	result := &SplitResult{Drafts: make([]ObligationDraft, 0, len(participants))}
	var owedSum money.Amount
	for _, p := range participants {
		share := shares[p]
		draft := ObligationDraft{
			UserID:   p,
			ShareBps: shareBps(share, total),
		}
		if p == payerID {
			// The payer owes nothing back to themselves.
			draft.Amount = 0
			draft.Settled = true
			result.PayerFairShare = share
		} else {
			draft.Amount = share
			// A zero share leaves nothing to collect. Born settled like
			// the payer's row, otherwise the expense's derived settled
			// flag could never flip.
			draft.Settled = share == 0
			owedSum += share
		}
		result.Drafts = append(result.Drafts, draft)
	}

	if owedSum+result.PayerFairShare != total {
		return nil, fmt.Errorf("%w: split sums to %s, expense total is %s",
			models.ErrLedgerGuard, owedSum+result.PayerFairShare, total)
	}

	result.NoDebt = owedSum == 0
	if len(participants) == 1 {
		result.Drafts[0].ShareBps = BpsWhole
	}
	return result, nil
}

// equalShares floors total/count and hands the remainder out one minor unit
// at a time to the first participants in order. Integer math only; the
// shares always sum to the total exactly.
func equalShares(participants []string, total money.Amount) map[string]money.Amount {
	n := money.Amount(len(participants))
	base := total / n
	remainder := total % n

	shares := make(map[string]money.Amount, len(participants))
	for i, p := range participants {
		share := base
		if money.Amount(i) < remainder {
			share++
		}
		shares[p] = share
	}
	return shares
}

func exactShares(participants []string, total money.Amount, split ExactSplit) (map[string]money.Amount, error) {
	if err := checkParticipantSet(participants, len(split.Shares), func(p string) bool {
		_, ok := split.Shares[p]
		return ok
	}); err != nil {
		return nil, err
	}

	var sum money.Amount
	for p, amt := range split.Shares {
		if amt < 0 {
			return nil, fmt.Errorf("%w: negative share for %q", models.ErrValidation, p)
		}
		sum += amt
	}
	if diff := (sum - total).Abs(); diff > exactSumTolerance {
		return nil, fmt.Errorf("%w: exact shares sum to %s, expense total is %s",
			models.ErrValidation, sum, total)
	}

	shares := make(map[string]money.Amount, len(participants))
	for _, p := range participants {
		shares[p] = split.Shares[p]
	}
	// A 1-minor-unit tolerance gap is reconciled on a share that can
	// absorb it, so the amounts still sum to the total and no share ever
	// goes negative. The last participant takes it when possible.
	if drift := total - sum; drift != 0 {
		target := participants[len(participants)-1]
		if shares[target]+drift < 0 {
			target = ""
			for _, p := range participants {
				if shares[p]+drift < 0 {
					continue
				}
				if target == "" || shares[p] > shares[target] {
					target = p
				}
			}
			if target == "" {
				return nil, fmt.Errorf("%w: exact shares sum to %s, cannot reconcile with total %s",
					models.ErrValidation, sum, total)
			}
		}
		shares[target] += drift
	}
	return shares, nil
}

func percentShares(participants []string, total money.Amount, payerID string, split PercentSplit) (map[string]money.Amount, error) {
	if err := checkParticipantSet(participants, len(split.SharesBps), func(p string) bool {
		_, ok := split.SharesBps[p]
		return ok
	}); err != nil {
		return nil, err
	}

	var bpsSum int64
	for p, bps := range split.SharesBps {
		if bps < 0 {
			return nil, fmt.Errorf("%w: negative percentage for %q", models.ErrValidation, p)
		}
		bpsSum += bps
	}
	// One basis point of slack per participant absorbs client rounding of
	// displayed percentages without letting real mistakes through.
	tolerance := int64(len(participants))
	if diff := bpsSum - BpsWhole; diff > tolerance || diff < -tolerance {
		return nil, fmt.Errorf("%w: percentages sum to %d.%02d%%, must be 100%%",
			models.ErrValidation, bpsSum/100, bpsSum%100)
	}

	shares := make(map[string]money.Amount, len(participants))
	var sum money.Amount
	for _, p := range participants {
		// Half-up rounding in integer space.
		share := money.Amount((int64(total)*split.SharesBps[p] + BpsWhole/2) / BpsWhole)
		shares[p] = share
		sum += share
	}

	// Independent rounding can drift the sum off the total by a few minor
	// units; the residual lands on the payer's fair share. If the payer's
	// share cannot absorb it, the largest non-payer share takes it.
	residual := total - sum
	if residual != 0 {
		if shares[payerID]+residual >= 0 {
			shares[payerID] += residual
		} else {
			largest := ""
			for _, p := range participants {
				if p == payerID {
					continue
				}
				if largest == "" || shares[p] > shares[largest] {
					largest = p
				}
			}
			if largest == "" || shares[largest]+residual < 0 {
				return nil, fmt.Errorf("%w: cannot reconcile rounding residual %s",
					models.ErrLedgerGuard, residual)
			}
			shares[largest] += residual
		}
	}
	return shares, nil
}

// checkParticipantSet rejects split details that omit a participant or
// reference someone outside the participant set.
func checkParticipantSet(participants []string, detailCount int, has func(string) bool) error {
	for _, p := range participants {
		if !has(p) {
			return fmt.Errorf("%w: split details missing participant %q", models.ErrValidation, p)
		}
	}
	if detailCount != len(participants) {
		return fmt.Errorf("%w: split details reference %d users, expense has %d participants",
			models.ErrValidation, detailCount, len(participants))
	}
	return nil
}

// shareBps derives a display percentage from an authoritative share.
func shareBps(share, total money.Amount) int64 {
	if total == 0 {
		return 0
	}
	return (int64(share)*BpsWhole + int64(total)/2) / int64(total)
}
