package postgres

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

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
INSERT INTO user_action_records_v2 (id, user_id, session_id, action_type, parameters, message_context, status, points_cost)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, session_id, action_type, parameters, message_context, status, points_cost, created_at;
`
	row := t.s.pool.QueryRow(ctx, q, a.ID, a.UserID, a.SessionID, a.ActionType, params, a.Context, a.Status, a.PointsCost)
	return scanAction(row, "create action record")
}

func (t *actionTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM user_action_records_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete action record", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete action record", store.ErrNotFound)
	}
	return nil
}

func (t *actionTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.ActionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, session_id, action_type, parameters, message_context, status, points_cost, created_at
FROM user_action_records_v2
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := t.s.pool.Query(ctx, q, userID, limit)
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
