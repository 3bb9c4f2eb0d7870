package models

import "github.com/mmynk/splitledger/internal/money"

// SettlementStatus is the confirmation state of a settlement.
// Pending is the only non-terminal state.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementDisputed  SettlementStatus = "disputed"
)

// Settlement represents a payment between group members to clear debts.
// It is created pending with the initiator's confirmation flag set, and only
// retires ledger obligations once both parties have confirmed.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string

	// Amount is the payment amount in minor units. It can never exceed
	// the unsettled debt from FromUserID to ToUserID at creation time.
	Amount money.Amount

	// Method records how the money moved (cash, bank, wallet, ...).
	Method string

	// Description is an optional note for the settlement.
	Description string

	Status SettlementStatus

	// ConfirmedByPayer / ConfirmedByReceiver track the two-party
	// confirmation protocol. The creator's flag is pre-set at creation.
	ConfirmedByPayer    bool
	ConfirmedByReceiver bool

	// ConfirmedAt is stamped on the pending -> confirmed transition.
	ConfirmedAt int64

	// DisputeReason is set only when Status is disputed.
	DisputeReason string

	// CreatedBy is the user who recorded this settlement.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}

// IsParty reports whether userID is one of the two settlement parties.
func (s *Settlement) IsParty(userID string) bool {
	return userID == s.FromUserID || userID == s.ToUserID
}

// FullyConfirmed reports whether both parties have confirmed.
func (s *Settlement) FullyConfirmed() bool {
	return s.ConfirmedByPayer && s.ConfirmedByReceiver
}
