package composite

import (
	"context"
	"errors"
	"testing"

	"pointsbot/internal/store"
)

func TestSessionLifecycle(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	info, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if info.Record.EndedAt != nil {
		t.Fatal("new session must not be ended")
	}

	stats, _ := st.Tables().Stats.GetByUserID(ctx, view.User.ID)
	if stats.SessionCount != 1 {
		t.Fatalf("expected session count 1, got %d", stats.SessionCount)
	}

	if err := repos.Sessions.Touch(ctx, "sess-1", 3); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := repos.Sessions.Touch(ctx, "sess-1", 2); err != nil {
		t.Fatalf("touch: %v", err)
	}

	summary := "resolved billing question"
	finalCount := int64(7)
	closed, err := repos.Sessions.Close(ctx, "sess-1", &finalCount, &summary)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Record.EndedAt == nil || closed.Record.DurationSec == nil {
		t.Fatal("closed session must carry end time and duration")
	}
	if closed.Record.MessageCount != 7 {
		t.Fatalf("close must stamp the reported final count, got %d", closed.Record.MessageCount)
	}

	stats, _ = st.Tables().Stats.GetByUserID(ctx, view.User.ID)
	if stats.TotalMessagesSent != 5 {
		t.Fatalf("expected lifetime messages 5, got %d", stats.TotalMessagesSent)
	}
}

func TestCloseTwiceFails(t *testing.T) {
	repos, _ := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repos.Sessions.Close(ctx, "sess-1", nil, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := repos.Sessions.Close(ctx, "sess-1", nil, nil); !errors.Is(err, ErrSessionAlreadyClosed) {
		t.Fatalf("expected ErrSessionAlreadyClosed, got %v", err)
	}
	if err := repos.Sessions.Touch(ctx, "sess-1", 1); !errors.Is(err, ErrSessionAlreadyClosed) {
		t.Fatalf("touch on closed session must fail, got %v", err)
	}
}

func TestOpenDuplicateSessionID(t *testing.T) {
	repos, _ := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestOpenRollsBackWhenCounterFails(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	boom := errors.New("injected")
	st.FailWith("stats.incrementSession", boom)
	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	st.ClearFaults()

	if _, err := st.Tables().Sessions.GetBySessionID(ctx, "sess-1"); !store.IsNotFound(err) {
		t.Fatalf("session row must be rolled back, got %v", err)
	}
	if _, err := st.Tables().SessionRecords.GetBySessionID(ctx, "sess-1"); !store.IsNotFound(err) {
		t.Fatalf("session record must be rolled back, got %v", err)
	}

	// The ID is free again after compensation.
	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); err != nil {
		t.Fatalf("reopen after rollback: %v", err)
	}
}

func TestCloseRollsBackRecordWhenStatsFail(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repos.Sessions.Touch(ctx, "sess-1", 2); err != nil {
		t.Fatalf("touch: %v", err)
	}

	boom := errors.New("injected")
	st.FailWith("stats.touch", boom)
	summary := "cut short"
	finalCount := int64(9)
	if _, err := repos.Sessions.Close(ctx, "sess-1", &finalCount, &summary); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	st.ClearFaults()

	rec, _ := st.Tables().SessionRecords.GetBySessionID(ctx, "sess-1")
	if rec.EndedAt != nil || rec.DurationSec != nil || rec.Summary != nil {
		t.Fatalf("close must be fully compensated, got %+v", rec)
	}
	if rec.MessageCount != 2 {
		t.Fatalf("message count must be restored to 2, got %d", rec.MessageCount)
	}

	// Still closeable once the fault clears.
	closed, err := repos.Sessions.Close(ctx, "sess-1", &finalCount, &summary)
	if err != nil {
		t.Fatalf("close after rollback: %v", err)
	}
	if closed.Record.EndedAt == nil || closed.Record.MessageCount != 9 {
		t.Fatalf("expected closed record with count 9, got %+v", closed.Record)
	}
}

func TestTouchRollsBackRecordWhenStatsFail(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	if _, err := repos.Sessions.Open(ctx, view.User.ID, "sess-1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	boom := errors.New("injected")
	st.FailWith("stats.incrementMessages", boom)
	if err := repos.Sessions.Touch(ctx, "sess-1", 4); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	st.ClearFaults()

	rec, _ := st.Tables().SessionRecords.GetBySessionID(ctx, "sess-1")
	if rec.MessageCount != 0 {
		t.Fatalf("message count must be restored, got %d", rec.MessageCount)
	}
}
