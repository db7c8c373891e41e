package postgres

import (
	"context"

	"pointsbot/internal/store"
)

type statsTable struct{ s *Store }

func (t *statsTable) Create(ctx context.Context, st store.ActivityStats) (*store.ActivityStats, error) {
	const q = `
INSERT INTO user_activity_stats_v2 (user_id, session_count, total_messages_sent, first_active_at, last_active_at)
VALUES ($1, $2, $3, NOW(), NOW())
RETURNING user_id, session_count, total_messages_sent, first_active_at, last_active_at;
`
	row := t.s.pool.QueryRow(ctx, q, st.UserID, st.SessionCount, st.TotalMessagesSent)
	var out store.ActivityStats
	if err := row.Scan(&out.UserID, &out.SessionCount, &out.TotalMessagesSent, &out.FirstActiveAt, &out.LastActiveAt); err != nil {
		return nil, translate("create stats", err)
	}
	return &out, nil
}

func (t *statsTable) GetByUserID(ctx context.Context, userID string) (*store.ActivityStats, error) {
	const q = `
SELECT user_id, session_count, total_messages_sent, first_active_at, last_active_at
FROM user_activity_stats_v2
WHERE user_id = $1
LIMIT 1;
`
	row := t.s.pool.QueryRow(ctx, q, userID)
	var st store.ActivityStats
	if err := row.Scan(&st.UserID, &st.SessionCount, &st.TotalMessagesSent, &st.FirstActiveAt, &st.LastActiveAt); err != nil {
		return nil, translate("get stats", err)
	}
	return &st, nil
}

func (t *statsTable) IncrementSessionCount(ctx context.Context, userID string) error {
	const q = `
UPDATE user_activity_stats_v2
SET session_count = session_count + 1, last_active_at = NOW()
WHERE user_id = $1;
`
	return t.exec(ctx, "increment session count", q, userID)
}

func (t *statsTable) IncrementMessageCount(ctx context.Context, userID string, n int64) error {
	const q = `
UPDATE user_activity_stats_v2
SET total_messages_sent = total_messages_sent + $2, last_active_at = NOW()
WHERE user_id = $1;
`
	ct, err := t.s.pool.Exec(ctx, q, userID, n)
	if err != nil {
		return translate("increment message count", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("increment message count", store.ErrNotFound)
	}
	return nil
}

func (t *statsTable) TouchLastActive(ctx context.Context, userID string) error {
	const q = `
UPDATE user_activity_stats_v2
SET last_active_at = NOW()
WHERE user_id = $1;
`
	return t.exec(ctx, "touch last active", q, userID)
}

func (t *statsTable) DeleteByUserID(ctx context.Context, userID string) error {
	return t.exec(ctx, "delete stats", `DELETE FROM user_activity_stats_v2 WHERE user_id = $1;`, userID)
}

func (t *statsTable) exec(ctx context.Context, op, q, userID string) error {
	ct, err := t.s.pool.Exec(ctx, q, userID)
	if err != nil {
		return translate(op, err)
	}
	if ct.RowsAffected() == 0 {
		return translate(op, store.ErrNotFound)
	}
	return nil
}
