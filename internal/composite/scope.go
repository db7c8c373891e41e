package composite

import (
	"context"
	"log/slog"

	"pointsbot/internal/metrics"
)

// Scope collects compensating actions while a composite operation executes.
// The body registers one compensation after each successful mutating step;
// on failure every registered compensation runs in strict reverse order. A
// Scope is single-use and must not be shared between operations.
type Scope struct {
	op      string
	logger  *slog.Logger
	metrics *metrics.Metrics
	comps   []compensation
}

type compensation struct {
	name string
	fn   func(context.Context) error
}

// OnRollback registers the undo for the step that just succeeded.
func (s *Scope) OnRollback(name string, fn func(context.Context) error) {
	s.comps = append(s.comps, compensation{name: name, fn: fn})
}

// Run executes body under a fresh Scope. On a body error the compensation
// chain runs in reverse; the original error is returned unless compensations
// themselves fail, in which case a *PartialRollbackError wraps both. On
// success the compensation list is discarded.
func Run(ctx context.Context, logger *slog.Logger, m *metrics.Metrics, op string, body func(*Scope) error) error {
	s := &Scope{op: op, logger: logger, metrics: m}

	err := body(s)
	if err == nil {
		return nil
	}

	compErrs := s.rollback(ctx)
	if len(compErrs) > 0 {
		return &PartialRollbackError{Op: op, Cause: err, CompensationErrors: compErrs}
	}
	return err
}

// rollback runs every compensation in reverse registration order. A failed
// compensation is recorded and the remaining ones still run, so one stuck
// undo cannot mask the others. The rollback context survives caller
// cancellation: half-finished state is worse than a late undo.
func (s *Scope) rollback(ctx context.Context) []error {
	if len(s.comps) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	var failed []error
	for i := len(s.comps) - 1; i >= 0; i-- {
		c := s.comps[i]
		s.logger.Warn("compensating step", "op", s.op, "step", c.name)
		err := c.fn(ctx)
		s.metrics.ObserveCompensation(s.op, err != nil)
		if err != nil {
			s.logger.Error("compensation failed", "op", s.op, "step", c.name, "error", err)
			failed = append(failed, err)
		}
	}
	return failed
}
