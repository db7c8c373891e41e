package sqlite

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
INSERT INTO image_tasks (id, user_id, task_kind, status, points_cost, ledger_id, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
RETURNING id, user_id, task_kind, status, points_cost, ledger_id, payload, result_url, error_message, refunded, created_at, updated_at;
`
	row := t.s.db.QueryRowContext(ctx, q, task.ID, task.UserID, task.Kind, task.Status, task.PointsCost, task.LedgerID, payload)
	return scanTask(row, "create task")
}

func (t *taskTable) GetByID(ctx context.Context, id string) (*store.ImageTask, error) {
	const q = `
SELECT id, user_id, task_kind, status, points_cost, ledger_id, payload, result_url, error_message, refunded, created_at, updated_at
FROM image_tasks WHERE id = ? LIMIT 1;
`
	return scanTask(t.s.db.QueryRowContext(ctx, q, id), "get task")
}

func (t *taskTable) Update(ctx context.Context, id string, patch store.TaskPatch) error {
	const q = `
UPDATE image_tasks
SET status        = COALESCE(?, status),
    result_url    = COALESCE(?, result_url),
    error_message = COALESCE(?, error_message),
    refunded      = COALESCE(?, refunded),
    updated_at    = CURRENT_TIMESTAMP
WHERE id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, patch.Status, patch.ResultURL, patch.ErrorMsg, patch.Refunded, id)
	return execResult("update task", res, err)
}

func (t *taskTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM image_tasks WHERE id = ?;`, id)
	return execResult("delete task", res, err)
}

func (t *taskTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.ImageTask, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, task_kind, status, points_cost, ledger_id, payload, result_url, error_message, refunded, created_at, updated_at
FROM image_tasks
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := t.s.db.QueryContext(ctx, q, userID, limit)
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

func scanTask(row rowScanner, op string) (*store.ImageTask, error) {
	var task store.ImageTask
	var payload []byte
	if err := row.Scan(&task.ID, &task.UserID, &task.Kind, &task.Status, &task.PointsCost, &task.LedgerID, &payload, &task.ResultURL, &task.ErrorMsg, &task.Refunded, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, translate(op, err)
	}
	task.Payload = fromJSON(payload)
	return &task, nil
}

type orderTable struct{ s *Store }

func (t *orderTable) Create(ctx context.Context, o store.PaymentOrder) (*store.PaymentOrder, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	const q = `
INSERT INTO payment_orders (id, user_id, order_ref, amount_cents, status, method, points_awarded, paid_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
RETURNING id, user_id, order_ref, amount_cents, status, method, points_awarded, error_message, paid_at, created_at, updated_at;
`
	row := t.s.db.QueryRowContext(ctx, q, o.ID, o.UserID, o.OrderRef, o.AmountCents, o.Status, o.Method, o.PointsAwarded, o.PaidAt)
	return scanOrder(row, "create order")
}

func (t *orderTable) GetByRef(ctx context.Context, orderRef string) (*store.PaymentOrder, error) {
	const q = `
SELECT id, user_id, order_ref, amount_cents, status, method, points_awarded, error_message, paid_at, created_at, updated_at
FROM payment_orders WHERE order_ref = ? LIMIT 1;
`
	return scanOrder(t.s.db.QueryRowContext(ctx, q, orderRef), "get order")
}

func (t *orderTable) Update(ctx context.Context, orderRef string, patch store.OrderPatch) error {
	const q = `
UPDATE payment_orders
SET status        = COALESCE(?, status),
    error_message = COALESCE(?, error_message),
    paid_at       = CASE WHEN ? THEN NULL ELSE COALESCE(?, paid_at) END,
    updated_at    = CURRENT_TIMESTAMP
WHERE order_ref = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, patch.Status, patch.ErrorMsg, patch.ClearPaidAt, patch.PaidAt, orderRef)
	return execResult("update order status", res, err)
}

func (t *orderTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM payment_orders WHERE id = ?;`, id)
	return execResult("delete order", res, err)
}

func (t *orderTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.PaymentOrder, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, order_ref, amount_cents, status, method, points_awarded, error_message, paid_at, created_at, updated_at
FROM payment_orders
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := t.s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, translate("list orders", err)
	}
	defer rows.Close()

	var orders []store.PaymentOrder
	for rows.Next() {
		o, err := scanOrder(rows, "scan order")
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("iterate orders", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner, op string) (*store.PaymentOrder, error) {
	var o store.PaymentOrder
	if err := row.Scan(&o.ID, &o.UserID, &o.OrderRef, &o.AmountCents, &o.Status, &o.Method, &o.PointsAwarded, &o.ErrorMsg, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, translate(op, err)
	}
	return &o, nil
}
