package composite

import (
	"context"
	"errors"
	"testing"
)

func TestRecordActionClassifiesStats(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	cases := []struct {
		kind         string
		wantSessions int64
		wantMessages int64
	}{
		{ActionStartSession, 1, 0},
		{ActionNewSession, 2, 0},
		{ActionSendMessage, 2, 1},
		{ActionTextMessage, 2, 2},
		{ActionImageMessage, 2, 3},
		{"change_language", 2, 3}, // default branch touches the timestamp only
	}

	for _, tc := range cases {
		if _, err := repos.Actions.Record(ctx, ActionParams{
			UserID:    view.User.ID,
			SessionID: "sess-1",
			Kind:      tc.kind,
		}); err != nil {
			t.Fatalf("record %s: %v", tc.kind, err)
		}
		stats, _ := st.Tables().Stats.GetByUserID(ctx, view.User.ID)
		if stats.SessionCount != tc.wantSessions || stats.TotalMessagesSent != tc.wantMessages {
			t.Fatalf("%s: got sessions=%d messages=%d, want %d/%d",
				tc.kind, stats.SessionCount, stats.TotalMessagesSent, tc.wantSessions, tc.wantMessages)
		}
	}

	recs, err := repos.Actions.ListByUser(ctx, view.User.ID, 20)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(recs) != len(cases) {
		t.Fatalf("expected %d action rows, got %d", len(cases), len(recs))
	}
}

// The action row is the source of truth; a failing counter update must not
// undo it.
func TestRecordActionSurvivesStatsFailure(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	boom := errors.New("injected")
	st.FailWith("stats.incrementMessages", boom)
	defer st.ClearFaults()

	rec, err := repos.Actions.Record(ctx, ActionParams{
		UserID:    view.User.ID,
		SessionID: "sess-1",
		Kind:      ActionSendMessage,
	})
	if err != nil {
		t.Fatalf("record must succeed despite stats failure, got %v", err)
	}
	if rec.Status != "completed" {
		t.Fatalf("expected default status completed, got %s", rec.Status)
	}

	recs, _ := repos.Actions.ListByUser(ctx, view.User.ID, 10)
	if len(recs) != 1 {
		t.Fatalf("action row must persist, got %d rows", len(recs))
	}
}

func TestRecordActionFailsWhenLogWriteFails(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()
	view := register(t, repos, "ext-1")

	boom := errors.New("injected")
	st.FailWith("actions.create", boom)
	defer st.ClearFaults()

	if _, err := repos.Actions.Record(ctx, ActionParams{
		UserID:    view.User.ID,
		SessionID: "sess-1",
		Kind:      ActionSendMessage,
	}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
