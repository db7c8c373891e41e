package sqlite

import (
	"context"

	"pointsbot/internal/store"
)

type statsTable struct{ s *Store }

func (t *statsTable) Create(ctx context.Context, st store.ActivityStats) (*store.ActivityStats, error) {
	const q = `
INSERT INTO user_activity_stats (user_id, session_count, total_messages_sent, first_active_at, last_active_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
RETURNING user_id, session_count, total_messages_sent, first_active_at, last_active_at;
`
	row := t.s.db.QueryRowContext(ctx, q, st.UserID, st.SessionCount, st.TotalMessagesSent)
	return scanStats(row, "create stats")
}

func (t *statsTable) GetByUserID(ctx context.Context, userID string) (*store.ActivityStats, error) {
	const q = `
SELECT user_id, session_count, total_messages_sent, first_active_at, last_active_at
FROM user_activity_stats WHERE user_id = ? LIMIT 1;
`
	return scanStats(t.s.db.QueryRowContext(ctx, q, userID), "get stats")
}

func (t *statsTable) IncrementSessionCount(ctx context.Context, userID string) error {
	const q = `
UPDATE user_activity_stats
SET session_count = session_count + 1, last_active_at = CURRENT_TIMESTAMP
WHERE user_id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, userID)
	return execResult("increment session count", res, err)
}

func (t *statsTable) IncrementMessageCount(ctx context.Context, userID string, n int64) error {
	const q = `
UPDATE user_activity_stats
SET total_messages_sent = total_messages_sent + ?, last_active_at = CURRENT_TIMESTAMP
WHERE user_id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, n, userID)
	return execResult("increment message count", res, err)
}

func (t *statsTable) TouchLastActive(ctx context.Context, userID string) error {
	const q = `
UPDATE user_activity_stats
SET last_active_at = CURRENT_TIMESTAMP
WHERE user_id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, userID)
	return execResult("touch last active", res, err)
}

func (t *statsTable) DeleteByUserID(ctx context.Context, userID string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM user_activity_stats WHERE user_id = ?;`, userID)
	return execResult("delete stats", res, err)
}

func scanStats(row rowScanner, op string) (*store.ActivityStats, error) {
	var st store.ActivityStats
	if err := row.Scan(&st.UserID, &st.SessionCount, &st.TotalMessagesSent, &st.FirstActiveAt, &st.LastActiveAt); err != nil {
		return nil, translate(op, err)
	}
	return &st, nil
}
