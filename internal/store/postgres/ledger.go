package postgres

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

type ledgerTable struct{ s *Store }

func (t *ledgerTable) Create(ctx context.Context, rec store.PointRecord) (*store.PointRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	const q = `
INSERT INTO point_records_v2 (id, user_id, points_change, action_type, description, points_balance, event_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, points_change, action_type, description, points_balance, event_id, created_at;
`
	row := t.s.pool.QueryRow(ctx, q, rec.ID, rec.UserID, rec.Delta, rec.ActionType, rec.Description, rec.BalanceAfter, rec.EventID)
	var out store.PointRecord
	if err := row.Scan(&out.ID, &out.UserID, &out.Delta, &out.ActionType, &out.Description, &out.BalanceAfter, &out.EventID, &out.CreatedAt); err != nil {
		return nil, translate("create point record", err)
	}
	return &out, nil
}

func (t *ledgerTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM point_records_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete point record", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete point record", store.ErrNotFound)
	}
	return nil
}

func (t *ledgerTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.PointRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, points_change, action_type, description, points_balance, event_id, created_at
FROM point_records_v2
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := t.s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, translate("list point records", err)
	}
	defer rows.Close()

	var records []store.PointRecord
	for rows.Next() {
		var rec store.PointRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Delta, &rec.ActionType, &rec.Description, &rec.BalanceAfter, &rec.EventID, &rec.CreatedAt); err != nil {
			return nil, translate("scan point record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate point records", err)
	}
	return records, nil
}

func (t *ledgerTable) SumDeltas(ctx context.Context, userID string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(points_change), 0)
FROM point_records_v2
WHERE user_id = $1;
`
	var sum int64
	if err := t.s.pool.QueryRow(ctx, q, userID).Scan(&sum); err != nil {
		return 0, translate("sum point records", err)
	}
	return sum, nil
}
