// Package money provides the fixed-point amount type used throughout the
// ledger. All authoritative arithmetic happens on int64 minor units (cents);
// decimal strings exist only at the external boundary.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor currency units (cents).
// It is a plain integer so ledger math can never accumulate float drift.
type Amount int64

// ErrInvalidAmount is returned when a boundary string cannot be parsed
// into a valid positive amount.
var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// Parse converts a decimal string ("12.34") into minor units with half-up
// rounding on the third decimal place. Negative and zero amounts are
// rejected; the ledger has no use for either.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsInteger() || !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	a := Amount(cents.IntPart())
	if a <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	return a, nil
}

// ParseNonNegative is Parse but allows zero, for fields like exact-split
// shares where a participant may legitimately owe nothing.
func ParseNonNegative(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	a := Amount(cents.IntPart())
	if a < 0 {
		return 0, fmt.Errorf("%w: %q must not be negative", ErrInvalidAmount, s)
	}
	return a, nil
}

// String formats the amount as a decimal string with two fraction digits.
// This is the only representation that crosses the API boundary.
func (a Amount) String() string {
	return decimal.New(int64(a), -2).StringFixed(2)
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}
