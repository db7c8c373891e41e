package postgres

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
INSERT INTO users_v2 (id, external_id, username, first_name, last_name, utm_source, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
RETURNING id, external_id, username, first_name, last_name, utm_source, is_active, created_at;
`
	row := t.s.pool.QueryRow(ctx, q, u.ID, u.ExternalID, u.Username, u.FirstName, u.LastName, u.UTMSource)
	var out store.User
	if err := row.Scan(&out.ID, &out.ExternalID, &out.Username, &out.FirstName, &out.LastName, &out.UTMSource, &out.IsActive, &out.CreatedAt); err != nil {
		return nil, translate("create user", err)
	}
	return &out, nil
}

func (t *userTable) GetByID(ctx context.Context, id string) (*store.User, error) {
	const q = `
SELECT id, external_id, username, first_name, last_name, utm_source, is_active, created_at
FROM users_v2
WHERE id = $1
LIMIT 1;
`
	return t.scanOne(ctx, "get user by id", q, id)
}

func (t *userTable) GetByExternalID(ctx context.Context, externalID string) (*store.User, error) {
	const q = `
SELECT id, external_id, username, first_name, last_name, utm_source, is_active, created_at
FROM users_v2
WHERE external_id = $1
LIMIT 1;
`
	return t.scanOne(ctx, "get user by external id", q, externalID)
}

func (t *userTable) scanOne(ctx context.Context, op, q string, arg any) (*store.User, error) {
	row := t.s.pool.QueryRow(ctx, q, arg)
	var u store.User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.FirstName, &u.LastName, &u.UTMSource, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, translate(op, err)
	}
	return &u, nil
}

func (t *userTable) Update(ctx context.Context, id string, patch store.UserPatch) error {
	const q = `
UPDATE users_v2
SET username   = COALESCE($2, username),
    first_name = COALESCE($3, first_name),
    last_name  = COALESCE($4, last_name),
    utm_source = COALESCE($5, utm_source),
    is_active  = COALESCE($6, is_active)
WHERE id = $1;
`
	ct, err := t.s.pool.Exec(ctx, q, id, patch.Username, patch.FirstName, patch.LastName, patch.UTMSource, patch.IsActive)
	if err != nil {
		return translate("update user", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("update user", store.ErrNotFound)
	}
	return nil
}

func (t *userTable) Delete(ctx context.Context, id string) error {
	ct, err := t.s.pool.Exec(ctx, `DELETE FROM users_v2 WHERE id = $1;`, id)
	if err != nil {
		return translate("delete user", err)
	}
	if ct.RowsAffected() == 0 {
		return translate("delete user", store.ErrNotFound)
	}
	return nil
}
