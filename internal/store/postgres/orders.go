package postgres

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

type orderTable struct{ s *Store }

func (t *orderTable) Create(ctx context.Context, o store.PaymentOrder) (*store.PaymentOrder, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	const q = `
INSERT INTO payment_orders_v2 (id, user_id, order_ref, amount_cents, status, method, points_awarded, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, order_ref, amount_cents, status, method, points_awarded, error_message, paid_at, created_at, updated_at;
`
	row := t.s.pool.QueryRow(ctx, q, o.ID, o.UserID, o.OrderRef, o.AmountCents, o.Status, o.Method, o.PointsAwarded, o.PaidAt)
	return scanOrder(row, "create order")
}

func (t *orderTable) GetByRef(ctx context.Context, orderRef string) (*store.PaymentOrder, error) {
	const q = `
SELECT id, user_id, order_ref, amount_cents, status, method, points_awarded, error_message, paid_at, created_at, updated_at
FROM payment_orders_v2
WHERE order_ref = $1
LIMIT 1;
`
	return scanOrder(t.s.pool.QueryRow(ctx, q, orderRef), "get order")
}

func (t *orderTable) Update(ctx context.Context, orderRef string, patch store.OrderPatch) error {
	const q = `
UPDATE payment_orders_v2
SET status        = COALESCE($2, status),
    error_message = COALESCE($3, error_message),
    paid_at       = CASE WHEN $5 THEN NULL ELSE COALESCE($4, paid_at) END,
    updated_at    = NOW()
WHERE order_ref = $1;
`
	ct, err := t.s.pool.Exec(ctx, q, orderRef, patch.Status, patch.ErrorMsg, patch.PaidAt, patch.ClearPaidAt)
	if err != nil {
		return translate("update order status", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("update order status", store.ErrNotFound)
	}
	return nil
}

func (t *orderTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM payment_orders_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete order", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete order", store.ErrNotFound)
	}
	return nil
}

func (t *orderTable) ListByUser(ctx context.Context, userID string, limit int) ([]store.PaymentOrder, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, order_ref, amount_cents, status, method, points_awarded, error_message, paid_at, created_at, updated_at
FROM payment_orders_v2
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := t.s.pool.Query(ctx, q, userID, limit)
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
