package models

import "errors"

// Error taxonomy for the ledger engine. The API layer maps these onto HTTP
// status codes; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrValidation covers malformed or inconsistent caller input. Reported
	// before any write, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers state and access conflicts: settlement already
	// finalized, actor not a party, group expense edits, non-members.
	ErrConflict = errors.New("conflict")

	// ErrLedgerGuard indicates a consistency-guard failure: post-split or
	// post-allocation money math does not balance. This is a logic defect,
	// not a user mistake; the operation rolls back entirely.
	ErrLedgerGuard = errors.New("ledger consistency guard failed")

	// ErrUnavailable wraps infrastructure failures (database down).
	// Financial mutations are never retried automatically.
	ErrUnavailable = errors.New("temporarily unavailable")
)
