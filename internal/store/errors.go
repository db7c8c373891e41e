package store

import "errors"

// Sentinel errors shared by every adapter family. Adapters translate their
// driver-specific failures into these so the composite layer never inspects
// driver error codes.
var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an insert violates a uniqueness
	// constraint (duplicate external ID, order ref, or check-in day).
	ErrConflict = errors.New("store: conflict")

	// ErrInsufficientBalance is returned by the wallet adapter when a
	// conditional decrement would take the balance below zero. The guard
	// lives in the store so concurrent decrements are serialized by the
	// backing engine, not by application read-then-write.
	ErrInsufficientBalance = errors.New("store: insufficient balance")
)

// IsNotFound reports whether err is a missing-row condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInsufficientBalance reports whether err is a rejected wallet decrement.
func IsInsufficientBalance(err error) bool { return errors.Is(err, ErrInsufficientBalance) }
