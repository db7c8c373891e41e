package postgres

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

type taskTable struct{ s *Store }

func (t *taskTable) Create(ctx context.Context, task store.ImageTask) (*store.ImageTask, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	payload, err := toJSON(task.Payload)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO image_tasks_v2 (id, user_id, task_kind, status, points_cost, ledger_id, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, task_kind, status, points_cost, ledger_id, payload, result_url, error_message, refunded, created_at, updated_at;
`
	row := t.s.pool.QueryRow(ctx, q, task.ID, task.UserID, task.Kind, task.Status, task.PointsCost, task.LedgerID, payload)
	return scanTask(row, "create task")
}

func (t *taskTable) GetByID(ctx context.Context, id string) (*store.ImageTask, error) {
	const q = `
SELECT id, user_id, task_kind, status, points_cost, ledger_id, payload, result_url, error_message, refunded, created_at, updated_at
FROM image_tasks_v2
WHERE id = $1
LIMIT 1;
`
	return scanTask(t.s.pool.QueryRow(ctx, q, id), "get task")
}

func (t *taskTable) Update(ctx context.Context, id string, patch store.TaskPatch) error {
	const q = `
UPDATE image_tasks_v2
SET status        = COALESCE($2, status),
    result_url    = COALESCE($3, result_url),
    error_message = COALESCE($4, error_message),
    refunded      = COALESCE($5, refunded),
    updated_at    = NOW()
WHERE id = $1;
`
	ct, err := t.s.pool.Exec(ctx, q, id, patch.Status, patch.ResultURL, patch.ErrorMsg, patch.Refunded)
	if err != nil {
		return translate("update task", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("update task", store.ErrNotFound)
	}
	return nil
}

func (t *taskTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM image_tasks_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete task", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete task", store.ErrNotFound)
	}
	return nil
}

func (t *taskTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.ImageTask, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, task_kind, status, points_cost, ledger_id, payload, result_url, error_message, refunded, created_at, updated_at
FROM image_tasks_v2
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := t.s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, translate("list tasks", err)
	}
	defer rows.Close()

	var tasks []store.ImageTask
	for rows.Next() {
		task, err := scanTask(rows, "scan task")
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate tasks", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner, op string) (*store.ImageTask, error) {
	var task store.ImageTask
	var payload []byte
	if err := row.Scan(&task.ID, &task.UserID, &task.Kind, &task.Status, &task.PointsCost, &task.LedgerID, &payload, &task.ResultURL, &task.ErrorMsg, &task.Refunded, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, translate(op, err)
	}
	task.Payload = fromJSON(payload)
	return &task, nil
}
