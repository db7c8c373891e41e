package postgres

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
INSERT INTO user_sessions_v2 (id, user_id, session_id)
VALUES ($1, $2, $3)
RETURNING id, user_id, session_id, created_at;
`
	row := t.s.pool.QueryRow(ctx, q, sess.ID, sess.UserID, sess.SessionID)
	var out store.Session
	if err := row.Scan(&out.ID, &out.UserID, &out.SessionID, &out.CreatedAt); err != nil {
		return nil, translate("create session", err)
	}
	return &out, nil
}

func (t *sessionTable) GetBySessionID(ctx context.Context, sessionID string) (*store.Session, error) {
	const q = `
SELECT id, user_id, session_id, created_at
FROM user_sessions_v2
WHERE session_id = $1
LIMIT 1;
`
	row := t.s.pool.QueryRow(ctx, q, sessionID)
	var sess store.Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.SessionID, &sess.CreatedAt); err != nil {
		return nil, translate("get session", err)
	}
	return &sess, nil
}

func (t *sessionTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM user_sessions_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete session", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete session", store.ErrNotFound)
	}
	return nil
}

type sessionRecordTable struct{ s *Store }

func (t *sessionRecordTable) Create(ctx context.Context, r store.SessionRecord) (*store.SessionRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	const q = `
INSERT INTO session_records_v2 (id, user_id, session_id, started_at, message_count, summary)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, session_id, started_at, ended_at, duration_sec, message_count, summary;
`
	row := t.s.pool.QueryRow(ctx, q, r.ID, r.UserID, r.SessionID, r.StartedAt, r.MessageCount, r.Summary)
	return scanSessionRecord(row, "create session record")
}

func (t *sessionRecordTable) GetBySessionID(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	const q = `
SELECT id, user_id, session_id, started_at, ended_at, duration_sec, message_count, summary
FROM session_records_v2
WHERE session_id = $1
LIMIT 1;
`
	return scanSessionRecord(t.s.pool.QueryRow(ctx, q, sessionID), "get session record")
}

func (t *sessionRecordTable) Update(ctx context.Context, id string, patch store.SessionRecordPatch) error {
	const q = `
UPDATE session_records_v2
SET ended_at      = CASE WHEN $6 THEN NULL ELSE COALESCE($2, ended_at) END,
    duration_sec  = CASE WHEN $6 THEN NULL ELSE COALESCE($3, duration_sec) END,
    message_count = COALESCE($4, message_count),
    summary       = CASE WHEN $6 THEN NULL ELSE COALESCE($5, summary) END
WHERE id = $1;
`
	ct, err := t.s.pool.Exec(ctx, q, id, patch.EndedAt, patch.DurationSec, patch.MessageCount, patch.Summary, patch.ClearEnded)
	if err != nil {
		return translate("update session record", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("update session record", store.ErrNotFound)
	}
	return nil
}

func (t *sessionRecordTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM session_records_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete session record", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete session record", store.ErrNotFound)
	}
	return nil
}

func scanSessionRecord(row rowScanner, op string) (*store.SessionRecord, error) {
	var r store.SessionRecord
	if err := row.Scan(&r.ID, &r.UserID, &r.SessionID, &r.StartedAt, &r.EndedAt, &r.DurationSec, &r.MessageCount, &r.Summary); err != nil {
		return nil, translate(op, err)
	}
	return &r, nil
}
