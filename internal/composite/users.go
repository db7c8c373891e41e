package composite

import (
	"context"
	"fmt"

	"pointsbot/internal/store"
)

type userRepo struct {
	*deps
}

// Register creates the user root plus both satellites and credits the
// signup bonus, all-or-nothing. A duplicate external ID returns
// ErrAlreadyExists with no writes left behind.
func (r *userRepo) Register(ctx context.Context, p RegisterParams) (*UserView, error) {
	// Identity check before the scope starts; a known duplicate should not
	// enter the rollback path at all. The store conflict below still catches
	// the race with a concurrent register.
	if _, err := r.tables.Users.GetByExternalID(ctx, p.ExternalID); err == nil {
		return nil, ErrAlreadyExists
	} else if !store.IsNotFound(err) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	var view *UserView

	err := r.run(ctx, "users.register", func(s *Scope) error {
		now := r.now()
		id := p.ID
		if id == "" {
			id = r.newID()
		}
		user, err := r.tables.Users.Create(ctx, store.User{
			ID:         id,
			ExternalID: p.ExternalID,
			Username:   p.Username,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			UTMSource:  p.UTMSource,
			IsActive:   true,
			CreatedAt:  now,
		})
		if err != nil {
			if store.IsConflict(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}
		s.OnRollback("delete user", func(ctx context.Context) error {
			return r.tables.Users.Delete(ctx, user.ID)
		})

		wallet, err := r.tables.Wallets.Create(ctx, store.Wallet{
			UserID:   user.ID,
			Points:   r.cfg.SignupBonus,
			Level:    r.cfg.UserLevel,
			FirstAdd: true,
		})
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		s.OnRollback("delete wallet", func(ctx context.Context) error {
			return r.tables.Wallets.DeleteByUserID(ctx, user.ID)
		})

		stats, err := r.tables.Stats.Create(ctx, store.ActivityStats{
			UserID:        user.ID,
			FirstActiveAt: now,
			LastActiveAt:  now,
		})
		if err != nil {
			return fmt.Errorf("create stats: %w", err)
		}
		s.OnRollback("delete stats", func(ctx context.Context) error {
			return r.tables.Stats.DeleteByUserID(ctx, user.ID)
		})

		if r.cfg.SignupBonus > 0 {
			rec, err := r.tables.Ledger.Create(ctx, store.PointRecord{
				ID:           r.newID(),
				UserID:       user.ID,
				Delta:        r.cfg.SignupBonus,
				ActionType:   "signup_bonus",
				Description:  "welcome bonus",
				BalanceAfter: wallet.Points,
				EventID:      r.newID(),
				CreatedAt:    now,
			})
			if err != nil {
				return fmt.Errorf("record signup bonus: %w", err)
			}
			s.OnRollback("delete signup ledger entry", func(ctx context.Context) error {
				return r.tables.Ledger.Delete(ctx, rec.ID)
			})
		}

		view = mergeView(user, wallet, stats)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("user registered", "user_id", view.User.ID, "external_id", p.ExternalID)
	return view, nil
}

// GetView returns the merged read shape. Missing satellites degrade to zero
// values instead of failing the whole read; a half-provisioned user still
// resolves.
func (r *userRepo) GetView(ctx context.Context, externalID string) (*UserView, error) {
	user, err := r.tables.Users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	wallet, err := r.tables.Wallets.GetByUserID(ctx, user.ID)
	if err != nil {
		if !store.IsNotFound(err) {
			return nil, fmt.Errorf("get wallet: %w", err)
		}
		wallet = &store.Wallet{UserID: user.ID, Level: r.cfg.UserLevel}
	}

	stats, err := r.tables.Stats.GetByUserID(ctx, user.ID)
	if err != nil {
		if !store.IsNotFound(err) {
			return nil, fmt.Errorf("get stats: %w", err)
		}
		stats = &store.ActivityStats{UserID: user.ID}
	}

	return mergeView(user, wallet, stats), nil
}

func (r *userRepo) Update(ctx context.Context, externalID string, patch store.UserPatch) error {
	user, err := r.tables.Users.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := r.tables.Users.Update(ctx, user.ID, patch); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *userRepo) Deactivate(ctx context.Context, externalID string) error {
	inactive := false
	return r.Update(ctx, externalID, store.UserPatch{IsActive: &inactive})
}

func mergeView(u *store.User, w *store.Wallet, st *store.ActivityStats) *UserView {
	return &UserView{
		User:              *u,
		Points:            w.Points,
		TotalPaidCents:    w.TotalPaidCents,
		TotalPointsSpent:  w.TotalPointsSpent,
		Level:             w.Level,
		SessionCount:      st.SessionCount,
		TotalMessagesSent: st.TotalMessagesSent,
	}
}
