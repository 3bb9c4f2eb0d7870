package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/service"
)

// actorHeader carries the authenticated user identity. Authentication itself
// happens upstream; this engine trusts the header.
const actorHeader = "X-User-ID"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Ledger guard
// failures are server bugs and get logged loudly.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, money.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrLedgerGuard):
		slog.Error("ledger consistency guard tripped", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func actor(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

// requireActor rejects requests with no identity before any work happens.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := actor(r)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + actorHeader + " header"})
		return "", false
	}
	return userID, true
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.ErrValidation
	}
	return nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createExpenseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	split, err := req.toSplit()
	if err != nil {
		writeError(w, err)
		return
	}

	expense, obligations, err := s.expenses.CreateExpense(r.Context(), service.CreateExpenseInput{
		ActorID:      actorID,
		Scope:        models.Scope(req.Scope),
		Amount:       amount,
		Description:  req.Description,
		Category:     req.Category,
		ExpenseDate:  req.ExpenseDate,
		GroupID:      req.GroupID,
		PayerID:      req.PayerID,
		Participants: req.Participants,
		Split:        split,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense, obligations))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, obligations, err := s.expenses.GetExpense(r.Context(), chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense, obligations))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateExpenseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	expense, err := s.expenses.UpdatePersonalExpense(r.Context(), service.UpdateExpenseInput{
		ActorID:     actorID,
		ExpenseID:   chi.URLParam(r, "expenseID"),
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
		ExpenseDate: req.ExpenseDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense, nil))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := s.expenses.DeleteExpense(r.Context(), actorID, chi.URLParam(r, "expenseID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGroupExpenses(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	expenses, err := s.expenses.ListGroupExpenses(r.Context(), actorID, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDebtSummary(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	summary, err := s.debts.UserDebtSummary(r.Context(), actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtSummaryResponse(summary))
}

func (s *Server) handleDetailedDebts(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	detailed, err := s.debts.DetailedDebts(r.Context(), actorID, r.URL.Query().Get("group_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailedDebtsResponse(detailed))
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.settlements.Settle(r.Context(), service.SettleInput{
		ActorID:     actorID,
		GroupID:     req.GroupID,
		ToUserID:    req.ToUserID,
		Amount:      amount,
		Method:      req.Method,
		Description: req.Description,
		AutoConfirm: req.AutoConfirm,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettleResponse(result))
}

func (s *Server) handleConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	settlement, err := s.settlements.Confirm(r.Context(), chi.URLParam(r, "settlementID"), actorID, req.Confirm, req.DisputeReason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	settlement, err := s.settlements.GetSettlement(r.Context(), chi.URLParam(r, "settlementID"), actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

func (s *Server) handleSettlementHistory(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	filter := historyFilter(q.Get("status"), q.Get("role"), q.Get("group_id"), q.Get("counterparty_id"), limit)
	settlements, err := s.settlements.History(r.Context(), actorID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]settlementResponse, 0, len(settlements))
	for _, st := range settlements {
		out = append(out, toSettlementResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	group, err := s.groups.CreateGroup(r.Context(), actorID, req.Name, req.Members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(group))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	group, err := s.groups.GetGroup(r.Context(), actorID, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req addMembersRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	group, err := s.groups.AddMembers(r.Context(), actorID, chi.URLParam(r, "groupID"), req.Members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	groups, err := s.groups.ListGroups(r.Context(), actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}
