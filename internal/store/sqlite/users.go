package sqlite

import (
	"context"

	"github.com/google/uuid"

	"pointsbot/internal/store"
)

type userTable struct{ s *Store }

func (t *userTable) Create(ctx context.Context, u store.User) (*store.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	const q = `
INSERT INTO users (id, external_id, username, first_name, last_name, utm_source, is_active)
VALUES (?, ?, ?, ?, ?, ?, 1)
RETURNING id, external_id, username, first_name, last_name, utm_source, is_active, created_at;
`
	row := t.s.db.QueryRowContext(ctx, q, u.ID, u.ExternalID, u.Username, u.FirstName, u.LastName, u.UTMSource)
	return scanUser(row, "create user")
}

func (t *userTable) GetByID(ctx context.Context, id string) (*store.User, error) {
	const q = `
SELECT id, external_id, username, first_name, last_name, utm_source, is_active, created_at
FROM users WHERE id = ? LIMIT 1;
`
	return scanUser(t.s.db.QueryRowContext(ctx, q, id), "get user by id")
}

func (t *userTable) GetByExternalID(ctx context.Context, externalID string) (*store.User, error) {
	const q = `
SELECT id, external_id, username, first_name, last_name, utm_source, is_active, created_at
FROM users WHERE external_id = ? LIMIT 1;
`
	return scanUser(t.s.db.QueryRowContext(ctx, q, externalID), "get user by external id")
}

func (t *userTable) Update(ctx context.Context, id string, patch store.UserPatch) error {
	const q = `
UPDATE users
SET username   = COALESCE(?, username),
    first_name = COALESCE(?, first_name),
    last_name  = COALESCE(?, last_name),
    utm_source = COALESCE(?, utm_source),
    is_active  = COALESCE(?, is_active)
WHERE id = ?;
`
	res, err := t.s.db.ExecContext(ctx, q, patch.Username, patch.FirstName, patch.LastName, patch.UTMSource, patch.IsActive, id)
	return execResult("update user", res, err)
}

func (t *userTable) Delete(ctx context.Context, id string) error {
	res, err := t.s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, id)
	return execResult("delete user", res, err)
}

func scanUser(row rowScanner, op string) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.FirstName, &u.LastName, &u.UTMSource, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

func execResult(op string, res interface{ RowsAffected() (int64, error) }, err error) error {
	if err != nil {
		return translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(op, err)
	}
	if n == 0 {
		return translate(op, store.ErrNotFound)
	}
	return nil
}
