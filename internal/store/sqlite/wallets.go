package sqlite

import (
	"context"

	"pointsbot/internal/store"
)

type walletTable struct{ s *Store }

func (t *walletTable) Create(ctx context.Context, w store.Wallet) (*store.Wallet, error) {
	const q = `
INSERT INTO user_wallets (user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
RETURNING user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at;
`
	row := t.s.db.QueryRowContext(ctx, q, w.UserID, w.Points, w.TotalPaidCents, w.TotalPointsSpent, w.Level, w.FirstAdd)
	return scanWallet(row, "create wallet")
}

func (t *walletTable) GetByUserID(ctx context.Context, userID string) (*store.Wallet, error) {
	const q = `
SELECT user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at
FROM user_wallets WHERE user_id = ? LIMIT 1;
`
	return scanWallet(t.s.db.QueryRowContext(ctx, q, userID), "get wallet")
}

// AddPoints mirrors the Postgres adapter: one conditional UPDATE so the
// balance guard is enforced by the engine, not by read-then-write.
func (t *walletTable) AddPoints(ctx context.Context, userID string, delta int64) (*store.Wallet, error) {
	const q = `
UPDATE user_wallets
SET points = points + ?1,
    total_points_spent = total_points_spent + CASE WHEN ?1 < 0 THEN -?1 ELSE 0 END,
    updated_at = CURRENT_TIMESTAMP
WHERE user_id = ?2 AND points + ?1 >= 0
RETURNING user_id, points, total_paid_cents, total_points_spent, level, first_add, updated_at;
`
	row := t.s.db.QueryRowContext(ctx, q, delta, userID)
	w, err := scanWallet(row, "add points")
	if err == nil {
		return w, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}
	if _, getErr := t.GetByUserID(ctx, userID); getErr != nil {
		return nil, getErr
	}
	return nil, translate("add points", store.ErrInsufficientBalance)
}

func (t *walletTable) AddPaidAmount(ctx context.Context, userID string, cents int64) error {
	const q = `
UPDATE user_wallets
SET total_paid_cents = total_paid_cents + ?,
    first_add = 1,
    updated_at = CURRENT_TIMESTAMP
WHERE user_id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, cents, userID)
	return execResult("add paid amount", res, err)
}

func (t *walletTable) DeleteByUserID(ctx context.Context, userID string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM user_wallets WHERE user_id = ?;`, userID)
	return execResult("delete wallet", res, err)
}

func scanWallet(row rowScanner, op string) (*store.Wallet, error) {
	var w store.Wallet
	if err := row.Scan(&w.UserID, &w.Points, &w.TotalPaidCents, &w.TotalPointsSpent, &w.Level, &w.FirstAdd, &w.UpdatedAt); err != nil {
		return nil, translate(op, err)
	}
	return &w, nil
}
