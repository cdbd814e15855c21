package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openpredict/openpredict/pkg/core"
)

type UserRepo struct {
	q sqlx.ExtContext
}

func (r *UserRepo) Create(ctx context.Context, u *core.User) error {
	const q = `INSERT INTO users (id, email, username, password_hash, role, active, created_at, updated_at)
		VALUES (:id, :email, :username, :password_hash, :role, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, q, u); err != nil {
		return fmt.Errorf("insert user: %w", mapErr(err))
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	var u core.User
	if err := sqlx.GetContext(ctx, r.q, &u, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, mapErr(err))
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	var u core.User
	if err := sqlx.GetContext(ctx, r.q, &u, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, fmt.Errorf("get user by email: %w", mapErr(err))
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	var u core.User
	if err := sqlx.GetContext(ctx, r.q, &u, `SELECT * FROM users WHERE username = ?`, username); err != nil {
		return nil, fmt.Errorf("get user by username: %w", mapErr(err))
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]core.User, error) {
	var out []core.User
	if err := sqlx.SelectContext(ctx, r.q, &out, `SELECT * FROM users ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list users: %w", mapErr(err))
	}
	return out, nil
}

// Update persists the mutable fields: role, active flag and updated_at.
func (r *UserRepo) Update(ctx context.Context, u *core.User) error {
	const q = `UPDATE users SET role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.q, q, u)
	if err != nil {
		return fmt.Errorf("update user: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update user %s: %w", u.ID, core.ErrNotFound)
	}
	return nil
}
