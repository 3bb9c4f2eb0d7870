// Package metrics exposes Prometheus instrumentation for ledger mutations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExpensesCreated counts expense creations by scope.
	ExpensesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_expenses_created_total",
		Help: "Number of expenses written to the ledger.",
	}, []string{"scope", "split_policy"})

	// SettlementsCreated counts settlement creations.
	SettlementsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_settlements_created_total",
		Help: "Number of settlements recorded.",
	})

	// SettlementsFinalized counts terminal settlement transitions.
	SettlementsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_settlements_finalized_total",
		Help: "Number of settlements reaching a terminal state.",
	}, []string{"status"})

	// ObligationsRetired counts obligations flipped to settled.
	ObligationsRetired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_obligations_retired_total",
		Help: "Number of participant obligations retired by settlements.",
	})

	// CacheInvalidationErrors counts best-effort invalidations that failed.
	CacheInvalidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_cache_invalidation_errors_total",
		Help: "Number of cache invalidation calls that returned an error.",
	})
)
