package api

import (
	"fmt"
	"math"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
)

// Money crosses the boundary as decimal strings; percentages as display
// numbers (33.33 means 33.33%). Internal amounts are int64 minor units.

type createExpenseRequest struct {
	Scope        string             `json:"scope"`
	Amount       string             `json:"amount"`
	Description  string             `json:"description"`
	Category     string             `json:"category,omitempty"`
	ExpenseDate  int64              `json:"expense_date,omitempty"`
	GroupID      string             `json:"group_id,omitempty"`
	PayerID      string             `json:"payer_id,omitempty"`
	Participants []string           `json:"participants,omitempty"`
	SplitPolicy  string             `json:"split_policy"`
	ExactShares  map[string]string  `json:"exact_shares,omitempty"`
	Percentages  map[string]float64 `json:"percentages,omitempty"`
}

// toSplit dispatches the policy string into the tagged variant exactly once;
// everything downstream consumes calculator.Split uniformly.
func (r *createExpenseRequest) toSplit() (calculator.Split, error) {
	switch models.SplitPolicy(r.SplitPolicy) {
	case models.SplitEqual:
		return calculator.EqualSplit{}, nil
	case models.SplitExact:
		shares := make(map[string]money.Amount, len(r.ExactShares))
		for user, raw := range r.ExactShares {
			amt, err := money.ParseNonNegative(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: exact share for %s: %v", models.ErrValidation, user, err)
			}
			shares[user] = amt
		}
		return calculator.ExactSplit{Shares: shares}, nil
	case models.SplitPercentage:
		shares := make(map[string]int64, len(r.Percentages))
		for user, pct := range r.Percentages {
			shares[user] = int64(math.Round(pct * 100))
		}
		return calculator.PercentSplit{SharesBps: shares}, nil
	default:
		return nil, fmt.Errorf("%w: unknown split policy %q", models.ErrValidation, r.SplitPolicy)
	}
}

type obligationResponse struct {
	UserID     string  `json:"user_id"`
	AmountOwed string  `json:"amount_owed"`
	SharePct   float64 `json:"share_pct"`
	Settled    bool    `json:"settled"`
}

type expenseResponse struct {
	ID          string               `json:"id"`
	Amount      string               `json:"amount"`
	Description string               `json:"description"`
	Category    string               `json:"category,omitempty"`
	ExpenseDate int64                `json:"expense_date"`
	CreatorID   string               `json:"creator_id"`
	PayerID     string               `json:"payer_id"`
	Scope       string               `json:"scope"`
	GroupID     string               `json:"group_id,omitempty"`
	SplitPolicy string               `json:"split_policy"`
	Settled     bool                 `json:"settled"`
	CreatedAt   int64                `json:"created_at"`
	Obligations []obligationResponse `json:"obligations,omitempty"`
}

func toExpenseResponse(e *models.Expense, obligations []models.Obligation) expenseResponse {
	resp := expenseResponse{
		ID:          e.ID,
		Amount:      e.Amount.String(),
		Description: e.Description,
		Category:    e.Category,
		ExpenseDate: e.ExpenseDate,
		CreatorID:   e.CreatorID,
		PayerID:     e.PayerID,
		Scope:       string(e.Scope),
		GroupID:     e.GroupID,
		SplitPolicy: string(e.Split),
		Settled:     e.Settled,
		CreatedAt:   e.CreatedAt,
	}
	for _, o := range obligations {
		resp.Obligations = append(resp.Obligations, obligationResponse{
			UserID:     o.UserID,
			AmountOwed: o.AmountOwed.String(),
			SharePct:   float64(o.ShareBps) / 100,
			Settled:    o.Settled,
		})
	}
	return resp
}

type updateExpenseRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	ExpenseDate int64  `json:"expense_date,omitempty"`
}

type settleRequest struct {
	GroupID     string `json:"group_id"`
	ToUserID    string `json:"to_user_id"`
	Amount      string `json:"amount"`
	Method      string `json:"method,omitempty"`
	Description string `json:"description,omitempty"`
	AutoConfirm bool   `json:"auto_confirm,omitempty"`
}

type settledExpenseResponse struct {
	ExpenseID   string `json:"expense_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	ExpenseDate int64  `json:"expense_date"`
}

type partialSettlementResponse struct {
	ExpenseID   string `json:"expense_id"`
	Description string `json:"description"`
	Paid        string `json:"paid"`
	Remaining   string `json:"remaining"`
}

type settlementResponse struct {
	ID                  string `json:"id"`
	GroupID             string `json:"group_id"`
	FromUserID          string `json:"from_user_id"`
	ToUserID            string `json:"to_user_id"`
	Amount              string `json:"amount"`
	Method              string `json:"method,omitempty"`
	Description         string `json:"description,omitempty"`
	Status              string `json:"status"`
	ConfirmedByPayer    bool   `json:"confirmed_by_payer"`
	ConfirmedByReceiver bool   `json:"confirmed_by_receiver"`
	ConfirmedAt         int64  `json:"confirmed_at,omitempty"`
	DisputeReason       string `json:"dispute_reason,omitempty"`
	CreatedBy           string `json:"created_by"`
	CreatedAt           int64  `json:"created_at"`
}

func toSettlementResponse(s *models.Settlement) settlementResponse {
	return settlementResponse{
		ID:                  s.ID,
		GroupID:             s.GroupID,
		FromUserID:          s.FromUserID,
		ToUserID:            s.ToUserID,
		Amount:              s.Amount.String(),
		Method:              s.Method,
		Description:         s.Description,
		Status:              string(s.Status),
		ConfirmedByPayer:    s.ConfirmedByPayer,
		ConfirmedByReceiver: s.ConfirmedByReceiver,
		ConfirmedAt:         s.ConfirmedAt,
		DisputeReason:       s.DisputeReason,
		CreatedBy:           s.CreatedBy,
		CreatedAt:           s.CreatedAt,
	}
}

type settleResponse struct {
	Settlement       settlementResponse         `json:"settlement"`
	SettledExpenses  []settledExpenseResponse   `json:"settled_expenses"`
	PartiallySettled *partialSettlementResponse `json:"partially_settled,omitempty"`
	RemainingDebt    string                     `json:"remaining_debt"`
}

func toSettleResponse(r *service.SettleResult) settleResponse {
	resp := settleResponse{
		Settlement:    toSettlementResponse(r.Settlement),
		RemainingDebt: r.RemainingDebt.String(),
	}
	for _, d := range r.SettledExpenses {
		resp.SettledExpenses = append(resp.SettledExpenses, settledExpenseResponse{
			ExpenseID:   d.ExpenseID,
			Description: d.Description,
			Amount:      d.Amount.String(),
			ExpenseDate: d.ExpenseDate,
		})
	}
	if r.PartiallySettled != nil {
		resp.PartiallySettled = &partialSettlementResponse{
			ExpenseID:   r.PartiallySettled.Debt.ExpenseID,
			Description: r.PartiallySettled.Debt.Description,
			Paid:        r.PartiallySettled.Paid.String(),
			Remaining:   r.PartiallySettled.Remaining.String(),
		}
	}
	return resp
}

type confirmRequest struct {
	Confirm       bool   `json:"confirm"`
	DisputeReason string `json:"dispute_reason,omitempty"`
}

type groupBalanceResponse struct {
	GroupID         string `json:"group_id"`
	OwedToUser      string `json:"owed_to_user"`
	UserOwes        string `json:"user_owes"`
	Net             string `json:"net"`
	LastExpenseDate int64  `json:"last_expense_date"`
}

type urgentDebtResponse struct {
	ExpenseID   string `json:"expense_id"`
	Description string `json:"description"`
	GroupID     string `json:"group_id"`
	CreditorID  string `json:"creditor_id"`
	Amount      string `json:"amount"`
	ExpenseDate int64  `json:"expense_date"`
	Urgency     string `json:"urgency"`
}

type debtSummaryResponse struct {
	UserID                string                 `json:"user_id"`
	TotalOwedToUser       string                 `json:"total_owed_to_user"`
	TotalUserOwes         string                 `json:"total_user_owes"`
	NetBalance            string                 `json:"net_balance"`
	UnsettledExpenseCount int                    `json:"unsettled_expense_count"`
	GroupBalances         []groupBalanceResponse `json:"group_balances"`
	UrgentDebts           []urgentDebtResponse   `json:"urgent_debts"`
}

func toDebtSummaryResponse(s *service.DebtSummary) debtSummaryResponse {
	resp := debtSummaryResponse{
		UserID:                s.UserID,
		TotalOwedToUser:       s.TotalOwedToUser.String(),
		TotalUserOwes:         s.TotalUserOwes.String(),
		NetBalance:            s.NetBalance.String(),
		UnsettledExpenseCount: s.UnsettledExpenseCount,
	}
	for _, gb := range s.GroupBalances {
		resp.GroupBalances = append(resp.GroupBalances, groupBalanceResponse{
			GroupID:         gb.GroupID,
			OwedToUser:      gb.OwedToUser.String(),
			UserOwes:        gb.UserOwes.String(),
			Net:             gb.Net.String(),
			LastExpenseDate: gb.LastExpenseDate,
		})
	}
	for _, d := range s.UrgentDebts {
		resp.UrgentDebts = append(resp.UrgentDebts, urgentDebtResponse{
			ExpenseID:   d.ExpenseID,
			Description: d.Description,
			GroupID:     d.GroupID,
			CreditorID:  d.CreditorID,
			Amount:      d.Amount.String(),
			ExpenseDate: d.ExpenseDate,
			Urgency:     d.Urgency,
		})
	}
	return resp
}

type debtItemResponse struct {
	ExpenseID   string `json:"expense_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	ExpenseDate int64  `json:"expense_date"`
	Overdue     bool   `json:"overdue"`
}

type pairDebtsResponse struct {
	CounterpartyID string             `json:"counterparty_id"`
	GroupID        string             `json:"group_id"`
	Total          string             `json:"total"`
	Expenses       []debtItemResponse `json:"expenses"`
}

type netBalanceResponse struct {
	CounterpartyID string `json:"counterparty_id"`
	GroupID        string `json:"group_id"`
	TheyOwe        string `json:"they_owe"`
	UserOwes       string `json:"user_owes"`
	Net            string `json:"net"`
	Position       string `json:"position"`
}

type detailedDebtsResponse struct {
	NetBalances      []netBalanceResponse `json:"net_balances"`
	PeopleWhoOweUser []pairDebtsResponse  `json:"people_who_owe_user"`
	PeopleUserOwes   []pairDebtsResponse  `json:"people_user_owes"`
	Suggestions      []string             `json:"suggestions"`
}

func toDetailedDebtsResponse(d *service.DetailedDebts) detailedDebtsResponse {
	resp := detailedDebtsResponse{Suggestions: d.Suggestions}
	for _, e := range d.NetBalances {
		resp.NetBalances = append(resp.NetBalances, netBalanceResponse{
			CounterpartyID: e.CounterpartyID,
			GroupID:        e.GroupID,
			TheyOwe:        e.TheyOwe.String(),
			UserOwes:       e.UserOwes.String(),
			Net:            e.Net.String(),
			Position:       e.Position,
		})
		// Emit the two side maps in the same deterministic pair order.
		key := service.PairKey{CounterpartyID: e.CounterpartyID, GroupID: e.GroupID}
		if p := d.PeopleWhoOweUser[key]; p != nil {
			resp.PeopleWhoOweUser = append(resp.PeopleWhoOweUser, toPairDebtsResponse(key, p))
		}
		if p := d.PeopleUserOwes[key]; p != nil {
			resp.PeopleUserOwes = append(resp.PeopleUserOwes, toPairDebtsResponse(key, p))
		}
	}
	return resp
}

func toPairDebtsResponse(key service.PairKey, p *service.PairDebts) pairDebtsResponse {
	resp := pairDebtsResponse{
		CounterpartyID: key.CounterpartyID,
		GroupID:        key.GroupID,
		Total:          p.Total.String(),
	}
	for _, item := range p.Items {
		resp.Expenses = append(resp.Expenses, debtItemResponse{
			ExpenseID:   item.ExpenseID,
			Description: item.Description,
			Amount:      item.Amount.String(),
			ExpenseDate: item.ExpenseDate,
			Overdue:     item.Overdue,
		})
	}
	return resp
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

type addMembersRequest struct {
	Members []string `json:"members"`
}

type groupResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

func toGroupResponse(g *models.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, Members: g.Members, CreatedAt: g.CreatedAt}
}

func historyFilter(status, role, groupID, counterpartyID string, limit int) storage.SettlementFilter {
	return storage.SettlementFilter{
		GroupID:        groupID,
		CounterpartyID: counterpartyID,
		Status:         models.SettlementStatus(status),
		Role:           role,
		Limit:          limit,
	}
}
