// Package api is the HTTP surface of the ledger engine. It owns request
// decoding, money parsing at the boundary, and the mapping from the error
// taxonomy to HTTP statuses; all ledger semantics live in service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitledger/internal/service"
)

// Server bundles the services behind the HTTP handlers.
type Server struct {
	expenses    *service.ExpenseService
	debts       *service.DebtService
	settlements *service.SettlementService
	groups      *service.GroupService
}

// NewServer creates a Server over the given services.
func NewServer(expenses *service.ExpenseService, debts *service.DebtService, settlements *service.SettlementService, groups *service.GroupService) *Server {
	return &Server{
		expenses:    expenses,
		debts:       debts,
		settlements: settlements,
		groups:      groups,
	}
}

// Router builds the chi router with all routes configured.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", actorHeader},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		// Expense routes
		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleCreateExpense)
			r.Get("/{expenseID}", s.handleGetExpense)
			r.Put("/{expenseID}", s.handleUpdateExpense)
			r.Delete("/{expenseID}", s.handleDeleteExpense)
		})

		// Debt routes
		r.Route("/debts", func(r chi.Router) {
			r.Get("/summary", s.handleDebtSummary)
			r.Get("/detailed", s.handleDetailedDebts)
		})

		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Post("/", s.handleSettle)
			r.Get("/", s.handleSettlementHistory)
			r.Get("/{settlementID}", s.handleGetSettlement)
			r.Post("/{settlementID}/confirm", s.handleConfirmSettlement)
		})

		// Group routes
		r.Route("/groups", func(r chi.Router) {
			r.Post("/", s.handleCreateGroup)
			r.Get("/", s.handleListGroups)
			r.Get("/{groupID}", s.handleGetGroup)
			r.Post("/{groupID}/members", s.handleAddMembers)
			r.Get("/{groupID}/expenses", s.handleListGroupExpenses)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
