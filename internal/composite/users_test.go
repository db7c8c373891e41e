package composite

import (
	"context"
	"errors"
	"testing"

	"pointsbot/internal/store"
	"pointsbot/internal/store/mem"
)

func newTestRepos(t *testing.T) (*Repositories, *mem.Store) {
	t.Helper()
	st := mem.NewStore()
	repos := New(st.Tables(), DefaultConfig(), discardLogger(), nil)
	return repos, st
}

func register(t *testing.T, repos *Repositories, externalID string) *UserView {
	t.Helper()
	view, err := repos.Users.Register(context.Background(), RegisterParams{ExternalID: externalID})
	if err != nil {
		t.Fatalf("register %s: %v", externalID, err)
	}
	return view
}

func TestRegisterCreditsSignupBonus(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()

	view := register(t, repos, "ext-1")
	if view.Points != DefaultSignupBonus {
		t.Fatalf("expected balance %d, got %d", DefaultSignupBonus, view.Points)
	}
	if view.Level != DefaultUserLevel {
		t.Fatalf("expected level %d, got %d", DefaultUserLevel, view.Level)
	}

	recs, err := st.Tables().Ledger.ListByUser(ctx, view.User.ID, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(recs))
	}
	if recs[0].Delta != DefaultSignupBonus || recs[0].BalanceAfter != DefaultSignupBonus {
		t.Fatalf("unexpected signup ledger row: %+v", recs[0])
	}
}

func TestRegisterDuplicateExternalID(t *testing.T) {
	repos, _ := newTestRepos(t)

	register(t, repos, "ext-1")
	_, err := repos.Users.Register(context.Background(), RegisterParams{ExternalID: "ext-1"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterDuplicateDetectedBeforeAnyWrite(t *testing.T) {
	repos, st := newTestRepos(t)

	register(t, repos, "ext-1")

	// A faulted create proves the duplicate is rejected before the first
	// write is even attempted.
	st.FailWith("users.create", errors.New("must never be called"))
	_, err := repos.Users.Register(context.Background(), RegisterParams{ExternalID: "ext-1"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterRollsBackOnAnyStepFailure(t *testing.T) {
	boom := errors.New("injected")
	steps := []string{"wallets.create", "stats.create", "ledger.create"}

	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			repos, st := newTestRepos(t)
			ctx := context.Background()

			st.FailWith(step, boom)
			_, err := repos.Users.Register(ctx, RegisterParams{ExternalID: "ext-1"})
			if !errors.Is(err, boom) {
				t.Fatalf("expected injected error, got %v", err)
			}
			st.ClearFaults()

			if _, err := st.Tables().Users.GetByExternalID(ctx, "ext-1"); !store.IsNotFound(err) {
				t.Fatalf("user row must be rolled back, got %v", err)
			}
		})
	}
}

func TestGetViewDefaultsMissingSatellites(t *testing.T) {
	repos, st := newTestRepos(t)
	ctx := context.Background()

	view := register(t, repos, "ext-1")
	if err := st.Tables().Wallets.DeleteByUserID(ctx, view.User.ID); err != nil {
		t.Fatalf("delete wallet: %v", err)
	}

	got, err := repos.Users.GetView(ctx, "ext-1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if got.Points != 0 {
		t.Fatalf("missing wallet must read as zero balance, got %d", got.Points)
	}
	if got.Level != DefaultUserLevel {
		t.Fatalf("missing wallet must read default level, got %d", got.Level)
	}
}

func TestDeactivate(t *testing.T) {
	repos, _ := newTestRepos(t)
	ctx := context.Background()

	register(t, repos, "ext-1")
	if err := repos.Users.Deactivate(ctx, "ext-1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	view, err := repos.Users.GetView(ctx, "ext-1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.User.IsActive {
		t.Fatal("expected user inactive")
	}
}
