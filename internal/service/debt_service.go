package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// Urgency buckets for outstanding debts. The thresholds are policy, not law,
// but they are applied consistently everywhere.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"

	urgencyHighAfter   = 30 * 24 * time.Hour
	urgencyMediumAfter = 14 * 24 * time.Hour
	overdueAfter       = 14 * 24 * time.Hour
)

// Net positions for a (user, counterparty, group) pair.
const (
	PositionUserIsOwed = "user_is_owed"
	PositionUserOwes   = "user_owes"
	PositionSettled    = "settled"
)

// DebtService is the Balance Aggregator: a pure read path deriving net
// balances from unsettled obligations. It never mutates the ledger, and it
// tolerates the ledger changing between its queries; summaries are
// snapshots, not transactions.
type DebtService struct {
	store storage.Store
	now   func() time.Time
}

// NewDebtService creates a DebtService with the given storage backend.
func NewDebtService(store storage.Store) *DebtService {
	return &DebtService{store: store, now: time.Now}
}

// GroupBalance is a user's net position within one group.
type GroupBalance struct {
	GroupID string
	// OwedToUser and UserOwes are sums of unsettled obligations.
	OwedToUser money.Amount
	UserOwes   money.Amount
	// Net is OwedToUser - UserOwes; negative means the user owes.
	Net money.Amount
	// LastExpenseDate is the most recent contributing expense date,
	// used to order equally-imbalanced groups.
	LastExpenseDate int64
}

// UrgentDebt is one unsettled obligation where the user is the debtor.
type UrgentDebt struct {
	ExpenseID   string
	Description string
	GroupID     string
	CreditorID  string
	Amount      money.Amount
	ExpenseDate int64
	Urgency     string
}

// DebtSummary is the per-user aggregate view.
type DebtSummary struct {
	UserID                string
	TotalOwedToUser       money.Amount
	TotalUserOwes         money.Amount
	NetBalance            money.Amount
	UnsettledExpenseCount int
	GroupBalances         []GroupBalance
	UrgentDebts           []UrgentDebt
}

// UserDebtSummary computes the user's aggregate position across all groups,
// strictly from unsettled obligations on group-scope expenses.
func (s *DebtService) UserDebtSummary(ctx context.Context, userID string) (*DebtSummary, error) {
	rows, err := s.store.ListUnsettledForUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	summary := &DebtSummary{UserID: userID}
	perGroup := make(map[string]*GroupBalance)
	expenses := make(map[string]bool)
	now := s.now()

	for _, r := range rows {
		gb := perGroup[r.GroupID]
		if gb == nil {
			gb = &GroupBalance{GroupID: r.GroupID}
			perGroup[r.GroupID] = gb
		}
		if r.ExpenseDate > gb.LastExpenseDate {
			gb.LastExpenseDate = r.ExpenseDate
		}
		expenses[r.ExpenseID] = true

		if r.CreditorID == userID {
			summary.TotalOwedToUser += r.Amount
			gb.OwedToUser += r.Amount
			continue
		}
		summary.TotalUserOwes += r.Amount
		gb.UserOwes += r.Amount
		summary.UrgentDebts = append(summary.UrgentDebts, UrgentDebt{
			ExpenseID:   r.ExpenseID,
			Description: r.Description,
			GroupID:     r.GroupID,
			CreditorID:  r.CreditorID,
			Amount:      r.Amount,
			ExpenseDate: r.ExpenseDate,
			Urgency:     urgency(now, r.ExpenseDate),
		})
	}

	summary.NetBalance = summary.TotalOwedToUser - summary.TotalUserOwes
	summary.UnsettledExpenseCount = len(expenses)

	for _, gb := range perGroup {
		gb.Net = gb.OwedToUser - gb.UserOwes
		summary.GroupBalances = append(summary.GroupBalances, *gb)
	}
	// Largest imbalances first; ties broken by most recent activity.
	sort.Slice(summary.GroupBalances, func(i, j int) bool {
		bi, bj := summary.GroupBalances[i], summary.GroupBalances[j]
		if bi.Net.Abs() != bj.Net.Abs() {
			return bi.Net.Abs() > bj.Net.Abs()
		}
		return bi.LastExpenseDate > bj.LastExpenseDate
	})
	// Biggest debts first; age breaks ties, oldest first.
	sort.Slice(summary.UrgentDebts, func(i, j int) bool {
		di, dj := summary.UrgentDebts[i], summary.UrgentDebts[j]
		if di.Amount != dj.Amount {
			return di.Amount > dj.Amount
		}
		return di.ExpenseDate < dj.ExpenseDate
	})

	return summary, nil
}

// PairKey identifies a (counterparty, group) pair.
type PairKey struct {
	CounterpartyID string
	GroupID        string
}

// DebtItem is one contributing expense within a pairwise breakdown.
type DebtItem struct {
	ExpenseID   string
	Description string
	Amount      money.Amount
	ExpenseDate int64
	Overdue     bool
}

// PairDebts is a running total plus its contributing expenses.
type PairDebts struct {
	Total money.Amount
	Items []DebtItem
}

// NetBalanceEntry is the netted view of one (counterparty, group) pair.
// Pairs with debt on only one side still produce an entry.
type NetBalanceEntry struct {
	CounterpartyID string
	GroupID        string
	TheyOwe        money.Amount
	UserOwes       money.Amount
	Net            money.Amount
	Position       string
}

// DetailedDebts is the pairwise breakdown for one user.
type DetailedDebts struct {
	PeopleWhoOweUser map[PairKey]*PairDebts
	PeopleUserOwes   map[PairKey]*PairDebts
	NetBalances      []NetBalanceEntry
	Suggestions      []string
}

// DetailedDebts builds the pairwise breakdown for a user, optionally scoped
// to one group.
func (s *DebtService) DetailedDebts(ctx context.Context, userID, groupID string) (*DetailedDebts, error) {
	rows, err := s.store.ListUnsettledForUser(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	out := &DetailedDebts{
		PeopleWhoOweUser: make(map[PairKey]*PairDebts),
		PeopleUserOwes:   make(map[PairKey]*PairDebts),
	}
	now := s.now()

	for _, r := range rows {
		item := DebtItem{
			ExpenseID:   r.ExpenseID,
			Description: r.Description,
			Amount:      r.Amount,
			ExpenseDate: r.ExpenseDate,
			Overdue:     now.Sub(time.Unix(r.ExpenseDate, 0)) > overdueAfter,
		}
		if r.CreditorID == userID {
			key := PairKey{CounterpartyID: r.DebtorID, GroupID: r.GroupID}
			addDebtItem(out.PeopleWhoOweUser, key, item)
		} else {
			key := PairKey{CounterpartyID: r.CreditorID, GroupID: r.GroupID}
			addDebtItem(out.PeopleUserOwes, key, item)
		}
	}

	keys := make(map[PairKey]bool)
	for k := range out.PeopleWhoOweUser {
		keys[k] = true
	}
	for k := range out.PeopleUserOwes {
		keys[k] = true
	}

	for k := range keys {
		entry := NetBalanceEntry{CounterpartyID: k.CounterpartyID, GroupID: k.GroupID}
		if p := out.PeopleWhoOweUser[k]; p != nil {
			entry.TheyOwe = p.Total
		}
		if p := out.PeopleUserOwes[k]; p != nil {
			entry.UserOwes = p.Total
		}
		entry.Net = entry.TheyOwe - entry.UserOwes
		switch {
		case entry.Net > 0:
			entry.Position = PositionUserIsOwed
		case entry.Net < 0:
			entry.Position = PositionUserOwes
		default:
			entry.Position = PositionSettled
		}
		out.NetBalances = append(out.NetBalances, entry)
	}

	// Deterministic order for display and tests.
	sort.Slice(out.NetBalances, func(i, j int) bool {
		bi, bj := out.NetBalances[i], out.NetBalances[j]
		if bi.Net.Abs() != bj.Net.Abs() {
			return bi.Net.Abs() > bj.Net.Abs()
		}
		if bi.CounterpartyID != bj.CounterpartyID {
			return bi.CounterpartyID < bj.CounterpartyID
		}
		return bi.GroupID < bj.GroupID
	})

	for _, entry := range out.NetBalances {
		out.Suggestions = append(out.Suggestions, suggestion(entry))
	}
	return out, nil
}

func addDebtItem(m map[PairKey]*PairDebts, key PairKey, item DebtItem) {
	p := m[key]
	if p == nil {
		p = &PairDebts{}
		m[key] = p
	}
	p.Total += item.Amount
	p.Items = append(p.Items, item)
}

func urgency(now time.Time, expenseDate int64) string {
	age := now.Sub(time.Unix(expenseDate, 0))
	switch {
	case age > urgencyHighAfter:
		return UrgencyHigh
	case age > urgencyMediumAfter:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func suggestion(e NetBalanceEntry) string {
	switch e.Position {
	case PositionUserIsOwed:
		return fmt.Sprintf("%s should pay you %s to settle up in group %s",
			e.CounterpartyID, e.Net.String(), e.GroupID)
	case PositionUserOwes:
		return fmt.Sprintf("You should pay %s %s to settle up in group %s",
			e.CounterpartyID, (-e.Net).String(), e.GroupID)
	default:
		return fmt.Sprintf("You and %s are settled in group %s", e.CounterpartyID, e.GroupID)
	}
}
