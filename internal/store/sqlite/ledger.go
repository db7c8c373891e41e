package sqlite

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
INSERT INTO point_records (id, user_id, points_change, action_type, description, points_balance, event_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, user_id, points_change, action_type, description, points_balance, event_id, created_at;
`
	row := t.s.db.QueryRowContext(ctx, q, rec.ID, rec.UserID, rec.Delta, rec.ActionType, rec.Description, rec.BalanceAfter, rec.EventID)
	return scanPointRecord(row, "create point record")
}

func (t *ledgerTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM point_records WHERE id = ?;`, id)
	return execResult("delete point record", res, err)
}

func (t *ledgerTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.PointRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, points_change, action_type, description, points_balance, event_id, created_at
FROM point_records
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := t.s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, translate("list point records", err)
	}
	defer rows.Close()

	var records []store.PointRecord
	for rows.Next() {
		rec, err := scanPointRecord(rows, "scan point record")
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate point records", err)
	}
	return records, nil
}

func (t *ledgerTable) SumDeltas(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(points_change), 0) FROM point_records WHERE user_id = ?;`
	var sum int64
	if err := t.s.db.QueryRowContext(ctx, q, userID).Scan(&sum); err != nil {
		return 0, translate("sum point records", err)
	}
	return sum, nil
}

func scanPointRecord(row rowScanner, op string) (*store.PointRecord, error) {
	var rec store.PointRecord
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Delta, &rec.ActionType, &rec.Description, &rec.BalanceAfter, &rec.EventID, &rec.CreatedAt); err != nil {
		return nil, translate(op, err)
	}
	return &rec, nil
}

type checkinTable struct{ s *Store }

func (t *checkinTable) Create(ctx context.Context, c store.DailyCheckin) (*store.DailyCheckin, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
INSERT INTO daily_checkins (id, user_id, checkin_day, points_earned)
VALUES (?, ?, ?, ?)
RETURNING id, user_id, checkin_day, points_earned, created_at;
`
	row := t.s.db.QueryRowContext(ctx, q, c.ID, c.UserID, c.Day, c.PointsEarned)
	return scanCheckin(row, "create checkin")
}

func (t *checkinTable) GetByUserDay(ctx context.Context, userID, day string) (*store.DailyCheckin, error) {
	const q = `
SELECT id, user_id, checkin_day, points_earned, created_at
FROM daily_checkins
WHERE user_id = ? AND checkin_day = ?
LIMIT 1;
`
	return scanCheckin(t.s.db.QueryRowContext(ctx, q, userID, day), "get checkin")
}

func (t *checkinTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM daily_checkins WHERE id = ?;`, id)
	return execResult("delete checkin", res, err)
}

func scanCheckin(row rowScanner, op string) (*store.DailyCheckin, error) {
	var c store.DailyCheckin
	if err := row.Scan(&c.ID, &c.UserID, &c.Day, &c.PointsEarned, &c.CreatedAt); err != nil {
		return nil, translate(op, err)
	}
	return &c, nil
}
