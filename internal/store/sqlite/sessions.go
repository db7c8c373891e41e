package sqlite

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

type sessionTable struct{ s *Store }

func (t *sessionTable) Create(ctx context.Context, sess store.Session) (*store.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	const q = `
INSERT INTO user_sessions (id, user_id, session_id)
VALUES (?, ?, ?)
RETURNING id, user_id, session_id, created_at;
`
	row := t.s.db.QueryRowContext(ctx, q, sess.ID, sess.UserID, sess.SessionID)
	var out store.Session
	if err := row.Scan(&out.ID, &out.UserID, &out.SessionID, &out.CreatedAt); err != nil {
		return nil, translate("create session", err)
	}
	return &out, nil
}

func (t *sessionTable) GetBySessionID(ctx context.Context, sessionID string) (*store.Session, error) {
	const q = `
SELECT id, user_id, session_id, created_at
FROM user_sessions WHERE session_id = ? LIMIT 1;
`
	row := t.s.db.QueryRowContext(ctx, q, sessionID)
	var sess store.Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.SessionID, &sess.CreatedAt); err != nil {
		return nil, translate("get session", err)
	}
	return &sess, nil
}

func (t *sessionTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = ?;`, id)
	return execResult("delete session", res, err)
}

type sessionRecordTable struct{ s *Store }

func (t *sessionRecordTable) Create(ctx context.Context, r store.SessionRecord) (*store.SessionRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	const q = `
INSERT INTO session_records (id, user_id, session_id, started_at, message_count, summary)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, user_id, session_id, started_at, ended_at, duration_sec, message_count, summary;
`
	row := t.s.db.QueryRowContext(ctx, q, r.ID, r.UserID, r.SessionID, r.StartedAt, r.MessageCount, r.Summary)
	return scanSessionRecord(row, "create session record")
}

func (t *sessionRecordTable) GetBySessionID(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	const q = `
SELECT id, user_id, session_id, started_at, ended_at, duration_sec, message_count, summary
FROM session_records WHERE session_id = ? LIMIT 1;
`
	return scanSessionRecord(t.s.db.QueryRowContext(ctx, q, sessionID), "get session record")
}

func (t *sessionRecordTable) Update(ctx context.Context, id string, patch store.SessionRecordPatch) error {
	const q = `
UPDATE session_records
SET ended_at      = CASE WHEN ? THEN NULL ELSE COALESCE(?, ended_at) END,
    duration_sec  = CASE WHEN ? THEN NULL ELSE COALESCE(?, duration_sec) END,
    message_count = COALESCE(?, message_count),
    summary       = CASE WHEN ? THEN NULL ELSE COALESCE(?, summary) END
WHERE id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q,
		patch.ClearEnded, patch.EndedAt,
		patch.ClearEnded, patch.DurationSec,
		patch.MessageCount,
		patch.ClearEnded, patch.Summary,
		id)
	return execResult("update session record", res, err)
}

func (t *sessionRecordTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM session_records WHERE id = ?;`, id)
	return execResult("delete session record", res, err)
}

func scanSessionRecord(row rowScanner, op string) (*store.SessionRecord, error) {
	var r store.SessionRecord
	if err := row.Scan(&r.ID, &r.UserID, &r.SessionID, &r.StartedAt, &r.EndedAt, &r.DurationSec, &r.MessageCount, &r.Summary); err != nil {
		return nil, translate(op, err)
	}
	return &r, nil
}

type actionTable struct{ s *Store }

func (t *actionTable) Create(ctx context.Context, a store.ActionRecord) (*store.ActionRecord, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	params, err := toJSON(a.Parameters)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO user_action_records (id, user_id, session_id, action_type, parameters, message_context, status, points_cost)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, user_id, session_id, action_type, parameters, message_context, status, points_cost, created_at;
`
	row := t.s.db.QueryRowContext(ctx, q, a.ID, a.UserID, a.SessionID, a.ActionType, params, a.Context, a.Status, a.PointsCost)
	return scanAction(row, "create action record")
}

func (t *actionTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM user_action_records WHERE id = ?;`, id)
	return execResult("delete action record", res, err)
}

func (t *actionTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.ActionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, session_id, action_type, parameters, message_context, status, points_cost, created_at
FROM user_action_records
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := t.s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, translate("list action records", err)
	}
	defer rows.Close()

	var records []store.ActionRecord
	for rows.Next() {
		rec, err := scanAction(rows, "scan action record")
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate action records", err)
	}
	return records, nil
}

func scanAction(row rowScanner, op string) (*store.ActionRecord, error) {
	var a store.ActionRecord
	var params []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.SessionID, &a.ActionType, &params, &a.Context, &a.Status, &a.PointsCost, &a.CreatedAt); err != nil {
		return nil, translate(op, err)
	}
	a.Parameters = fromJSON(params)
	return &a, nil
}
