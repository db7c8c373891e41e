package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pointsbot/internal/composite"
	"pointsbot/internal/store/mem"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(t *testing.T, v *Verifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestVerifierCountsMatches(t *testing.T) {
	v := NewVerifier("test", discardLogger(), nil, NewStats())

	v.Verify("op", func(context.Context) ([]FieldDiff, error) { return nil, nil })
	v.Verify("op", func(context.Context) ([]FieldDiff, error) {
		return []FieldDiff{Diff("points", 10, 9)}, nil
	})
	v.Verify("op", func(context.Context) ([]FieldDiff, error) {
		return nil, errors.New("connection refused")
	})
	drain(t, v)

	snap := v.Stats()
	if snap.Total != 3 || snap.Matched != 1 || snap.Mismatched != 2 {
		t.Fatalf("unexpected stats: %+v", snap)
	}
}

func TestVerifierSwallowsPanics(t *testing.T) {
	v := NewVerifier("test", discardLogger(), nil, NewStats())

	v.Verify("op", func(context.Context) ([]FieldDiff, error) {
		panic("comparison blew up")
	})
	drain(t, v)

	snap := v.Stats()
	if snap.Total != 1 || snap.Mismatched != 1 {
		t.Fatalf("panic must count as a mismatch: %+v", snap)
	}
}

func TestNilVerifierIsInert(t *testing.T) {
	var v *Verifier
	v.Verify("op", func(context.Context) ([]FieldDiff, error) { return nil, nil })
	if err := v.Drain(context.Background()); err != nil {
		t.Fatalf("nil drain: %v", err)
	}
	if snap := v.Stats(); snap.Total != 0 {
		t.Fatalf("nil verifier must report zero stats: %+v", snap)
	}
}

func newBundle() *composite.Repositories {
	st := mem.NewStore()
	return composite.New(st.Tables(), composite.DefaultConfig(), discardLogger(), nil)
}

func brokenBundle() (*composite.Repositories, *mem.Store) {
	st := mem.NewStore()
	return composite.New(st.Tables(), composite.DefaultConfig(), discardLogger(), nil), st
}

// Shadow failures must never leak into the authoritative result.
func TestParallelModeShadowFailureDoesNotAffectCaller(t *testing.T) {
	ctx := context.Background()
	legacy := newBundle()
	next, shadowStore := brokenBundle()
	shadowStore.FailWith("users.create", errors.New("connection refused"))

	modes := Modes{Users: ModeParallelTest, Points: ModeStable, Sessions: ModeStable, Actions: ModeStable}
	services := Select(modes, legacy, next, discardLogger(), nil)

	view, err := services.Users.Register(ctx, composite.RegisterParams{ExternalID: "ext-1"})
	if err != nil {
		t.Fatalf("authoritative register must succeed, got %v", err)
	}
	if view.Points != composite.DefaultSignupBonus {
		t.Fatalf("unexpected authoritative result: %+v", view)
	}

	if err := services.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	stats := services.VerifierStats()["users"]
	if stats.Total != 1 || stats.Mismatched != 1 {
		t.Fatalf("shadow failure must record one mismatch: %+v", stats)
	}
}

func TestParallelModeMatchingShadow(t *testing.T) {
	ctx := context.Background()
	legacy := newBundle()
	next := newBundle()

	modes := Modes{Users: ModeParallelTest, Points: ModeParallelTest, Sessions: ModeStable, Actions: ModeStable}
	services := Select(modes, legacy, next, discardLogger(), nil)

	view, err := services.Users.Register(ctx, composite.RegisterParams{ExternalID: "ext-1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := services.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	// The shadow register must have landed before dependent writes replay.
	if _, err := services.Points.DailyCheckIn(ctx, view.User.ID); err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if err := services.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	users := services.VerifierStats()["users"]
	if users.Mismatched != 0 || users.Matched != 1 {
		t.Fatalf("expected clean user verification: %+v", users)
	}
	points := services.VerifierStats()["points"]
	if points.Total != 1 {
		t.Fatalf("expected one points sample: %+v", points)
	}
}

func TestTaskMappingDroppedAfterTerminalReplay(t *testing.T) {
	ctx := context.Background()
	legacy := newBundle()
	next := newBundle()

	modes := Modes{Users: ModeParallelTest, Points: ModeParallelTest, Sessions: ModeStable, Actions: ModeStable}
	services := Select(modes, legacy, next, discardLogger(), nil)
	vp := services.Points.(*verifiedPoints)

	view, err := services.Users.Register(ctx, composite.RegisterParams{ExternalID: "ext-1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := services.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	task, err := services.Points.CreateTaskWithDeduction(ctx, view.User.ID, composite.TaskQuickEnhance, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := services.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, ok := vp.taskIDs.Load(task.ID); !ok {
		t.Fatal("expected a shadow mapping after task creation")
	}

	if err := services.Points.CompleteTask(ctx, task.ID, "https://example.com/out.png"); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if err := services.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, ok := vp.taskIDs.Load(task.ID); ok {
		t.Fatal("completed task must drop its shadow mapping")
	}
}

func TestStableModeBypassesShadow(t *testing.T) {
	ctx := context.Background()
	legacy := newBundle()
	next, shadowStore := brokenBundle()
	shadowStore.FailWith("users.create", errors.New("must never be called"))

	modes := Modes{Users: ModeStable, Points: ModeStable, Sessions: ModeStable, Actions: ModeStable}
	services := Select(modes, legacy, next, discardLogger(), nil)

	if _, err := services.Users.Register(ctx, composite.RegisterParams{ExternalID: "ext-1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(services.VerifierStats()) != 0 {
		t.Fatal("stable mode must not create verifiers")
	}
}

func TestMigratedModeUsesNewRepository(t *testing.T) {
	ctx := context.Background()
	legacy, legacyStore := brokenBundle()
	legacyStore.FailWith("users.create", errors.New("must never be called"))
	next := newBundle()

	modes := Modes{Users: ModeMigrated, Points: ModeStable, Sessions: ModeStable, Actions: ModeStable}
	services := Select(modes, legacy, next, discardLogger(), nil)

	if _, err := services.Users.Register(ctx, composite.RegisterParams{ExternalID: "ext-1"}); err != nil {
		t.Fatalf("register must hit the new repository, got %v", err)
	}
}
