package postgres

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

type checkinTable struct{ s *Store }

func (t *checkinTable) Create(ctx context.Context, c store.DailyCheckin) (*store.DailyCheckin, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
INSERT INTO daily_checkins_v2 (id, user_id, checkin_day, points_earned)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, checkin_day, points_earned, created_at;
`
	row := t.s.pool.QueryRow(ctx, q, c.ID, c.UserID, c.Day, c.PointsEarned)
	var out store.DailyCheckin
	if err := row.Scan(&out.ID, &out.UserID, &out.Day, &out.PointsEarned, &out.CreatedAt); err != nil {
		return nil, translate("create checkin", err)
	}
	return &out, nil
}

func (t *checkinTable) GetByUserDay(ctx context.Context, userID, day string) (*store.DailyCheckin, error) {
	const q = `
SELECT id, user_id, checkin_day, points_earned, created_at
FROM daily_checkins_v2
WHERE user_id = $1 AND checkin_day = $2
LIMIT 1;
`
	row := t.s.pool.QueryRow(ctx, q, userID, day)
	var c store.DailyCheckin
	if err := row.Scan(&c.ID, &c.UserID, &c.Day, &c.PointsEarned, &c.CreatedAt); err != nil {
		return nil, translate("get checkin", err)
	}
	return &c, nil
}

func (t *checkinTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM daily_checkins_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete checkin", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete checkin", store.ErrNotFound)
	}
	return nil
}
