// Package cache defines the invalidation contract the ledger engine depends
// on, plus a small in-memory implementation. The engine never reads through
// the cache itself; it only names the entries a mutation made stale.
package cache

import "context"

// Invalidator is the engine's one external cache capability. Implementations
// must be safe for concurrent use. Errors are advisory: the caller logs and
// moves on, a failed invalidation never rolls back a ledger mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, keys []string) error
}

// DebtSummaryKey names a user's cached debt summary.
func DebtSummaryKey(userID string) string {
	return "debt-summary:" + userID
}

// GroupExpensesKey names a group's cached expense list.
func GroupExpensesKey(groupID string) string {
	return "group-expenses:" + groupID
}

// Noop discards invalidations. Useful when no cache layer is deployed.
type Noop struct{}

func (Noop) Invalidate(context.Context, []string) error { return nil }
