package composite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDiscardsCompensationsOnSuccess(t *testing.T) {
	ran := false
	err := Run(context.Background(), discardLogger(), nil, "test.op", func(s *Scope) error {
		s.OnRollback("undo", func(context.Context) error {
			ran = true
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatal("compensation must not run on success")
	}
}

func TestRunCompensatesInReverseOrder(t *testing.T) {
	boom := errors.New("step 3 failed")
	var undone []string

	err := Run(context.Background(), discardLogger(), nil, "test.op", func(s *Scope) error {
		s.OnRollback("first", func(context.Context) error {
			undone = append(undone, "first")
			return nil
		})
		s.OnRollback("second", func(context.Context) error {
			undone = append(undone, "second")
			return nil
		})
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(undone) != 2 || undone[0] != "second" || undone[1] != "first" {
		t.Fatalf("expected reverse order [second first], got %v", undone)
	}
}

func TestRunReportsPartialRollback(t *testing.T) {
	boom := errors.New("body failed")
	stuck := errors.New("undo stuck")
	var undone []string

	err := Run(context.Background(), discardLogger(), nil, "test.op", func(s *Scope) error {
		s.OnRollback("first", func(context.Context) error {
			undone = append(undone, "first")
			return nil
		})
		s.OnRollback("second", func(context.Context) error {
			undone = append(undone, "second")
			return stuck
		})
		return boom
	})

	var pre *PartialRollbackError
	if !errors.As(err, &pre) {
		t.Fatalf("expected PartialRollbackError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("partial rollback must unwrap to the original error, got %v", pre.Cause)
	}
	if len(pre.CompensationErrors) != 1 || !errors.Is(pre.CompensationErrors[0], stuck) {
		t.Fatalf("expected one compensation error, got %v", pre.CompensationErrors)
	}
	// A stuck undo must not stop earlier compensations from running.
	if len(undone) != 2 || undone[1] != "first" {
		t.Fatalf("expected both compensations attempted, got %v", undone)
	}
}

func TestRunCompensatesWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("body failed")
	ran := false

	err := Run(ctx, discardLogger(), nil, "test.op", func(s *Scope) error {
		s.OnRollback("undo", func(ctx context.Context) error {
			ran = true
			return ctx.Err()
		})
		cancel()
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if !ran {
		t.Fatal("compensation must run after caller cancellation")
	}
}
