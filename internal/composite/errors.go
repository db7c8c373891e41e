// Package composite implements multi-table write operations over the
// single-table store adapters. Each operation runs under a Scope that
// collects compensating actions, giving all-or-nothing behaviour without a
// native cross-table transaction.
package composite

import (
	"errors"
	"fmt"
)

// Expected business conditions. These are returned, never logged-and-raised
// twice; callers translate them into user-facing messages.
var (
	// ErrAlreadyExists signals a registration for a taken external ID.
	ErrAlreadyExists = errors.New("composite: already exists")

	// ErrInsufficientBalance signals a deduction that would take the
	// wallet below zero. No write has happened when it is returned.
	ErrInsufficientBalance = errors.New("composite: insufficient balance")

	// ErrAlreadyCheckedIn signals a repeated check-in for the same day.
	// It is an idempotency outcome; callers may treat it as a no-op.
	ErrAlreadyCheckedIn = errors.New("composite: already checked in")

	// ErrSessionAlreadyClosed signals a Close on an ended session.
	ErrSessionAlreadyClosed = errors.New("composite: session already closed")

	// ErrTaskNotRefundable signals a refund for a task that is not in a
	// terminal failed state or has already been refunded.
	ErrTaskNotRefundable = errors.New("composite: task not refundable")
)

// PartialRollbackError reports a failed operation whose compensation chain
// itself did not fully succeed. The aggregate may need manual
// reconciliation, so this error kind should page an operator.
type PartialRollbackError struct {
	Op                 string
	Cause              error
	CompensationErrors []error
}

func (e *PartialRollbackError) Error() string {
	return fmt.Sprintf("%s: %v (rollback incomplete, %d compensation failure(s))",
		e.Op, e.Cause, len(e.CompensationErrors))
}

// Unwrap exposes the original step failure.
func (e *PartialRollbackError) Unwrap() error { return e.Cause }
