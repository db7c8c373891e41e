package postgres

import (
	"context"

	"pointsbot/internal/store"
)

type walletTable struct{ s *Store }

func (t *walletTable) Create(ctx context.Context, w store.Wallet) (*store.Wallet, error) {
	const q = `
INSERT INTO user_wallets_v2 (user_id, points, total_paid_cents, total_points_spent, level, first_add)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at;
`
	row := t.s.pool.QueryRow(ctx, q, w.UserID, w.Points, w.TotalPaidCents, w.TotalPointsSpent, w.Level, w.FirstAdd)
	var out store.Wallet
	if err := row.Scan(&out.UserID, &out.Points, &out.TotalPaidCents, &out.TotalPointsSpent, &out.Level, &out.FirstAdd, &out.UpdatedAt); err != nil {
		return nil, translate("create wallet", err)
	}
	return &out, nil
}

func (t *walletTable) GetByUserID(ctx context.Context, userID string) (*store.Wallet, error) {
	const q = `
SELECT user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at
FROM user_wallets_v2
WHERE user_id = $1
LIMIT 1;
`
	row := t.s.pool.QueryRow(ctx, q, userID)
	var w store.Wallet
	if err := row.Scan(&w.UserID, &w.Points, &w.TotalPaidCents, &w.TotalPointsSpent, &w.Level, &w.FirstAdd, &w.UpdatedAt); err != nil {
		return nil, translate("get wallet", err)
	}
	return &w, nil
}

// AddPoints moves the balance in a single conditional UPDATE so concurrent
// mutations serialize on the row and the balance can never cross zero.
func (t *walletTable) AddPoints(ctx context.Context, userID string, delta int64) (*store.Wallet, error) {
	const q = `
UPDATE user_wallets_v2
SET points = points + $2,
    total_points_spent = total_points_spent + CASE WHEN $2 < 0 THEN -$2 ELSE 0 END,
    updated_at = NOW()
WHERE user_id = $1 AND points + $2 >= 0
RETURNING user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at;
`
	row := t.s.pool.QueryRow(ctx, q, userID, delta)
	var w store.Wallet
	err := row.Scan(&w.UserID, &w.Points, &w.TotalPaidCents, &w.TotalPointsSpent, &w.Level, &w.FirstAdd, &w.UpdatedAt)
	if err == nil {
		return &w, nil
	}
	if !store.IsNotFound(translate("add points", err)) {
		return nil, translate("add points", err)
	}
	// The guard and a missing row both yield zero rows; disambiguate.
	if _, getErr := t.GetByUserID(ctx, userID); getErr != nil {
		return nil, getErr
	}
	return nil, translate("add points", store.ErrInsufficientBalance)
}

func (t *walletTable) AddPaidAmount(ctx context.Context, userID string, cents int64) error {
	const q = `
UPDATE user_wallets_v2
SET total_paid_cents = total_paid_cents + $2,
    first_add = TRUE,
    updated_at = NOW()
WHERE user_id = $1;
`
	ct, err := t.s.pool.Exec(ctx, q, userID, cents)
	if err != nil {
		return translate("add paid amount", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("add paid amount", store.ErrNotFound)
	}
	return nil
}

func (t *walletTable) DeleteByUserID(ctx context.Context, userID string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM user_wallets_v2 WHERE user_id = $1;`, userID)
	if err != nil {
		return translate("delete wallet", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete wallet", store.ErrNotFound)
	}
	return nil
}
