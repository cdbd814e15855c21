package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openpredict/openpredict/pkg/core"
)

type PositionRepo struct {
	q sqlx.ExtContext
}

func (r *PositionRepo) Create(ctx context.Context, p *core.Position) error {
	const q = `INSERT INTO positions
		(id, user_id, market_id, yes_shares, no_shares, avg_yes_price, avg_no_price, created_at, updated_at)
		VALUES (:id, :user_id, :market_id, :yes_shares, :no_shares, :avg_yes_price, :avg_no_price, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, q, p); err != nil {
		return fmt.Errorf("insert position: %w", mapErr(err))
	}
	return nil
}

// Get returns the position for (user, market), or ErrNotFound if the user
// has never bought into the market.
func (r *PositionRepo) Get(ctx context.Context, userID, marketID uuid.UUID) (*core.Position, error) {
	var p core.Position
	const q = `SELECT * FROM positions WHERE user_id = ? AND market_id = ?`
	if err := sqlx.GetContext(ctx, r.q, &p, q, userID, marketID); err != nil {
		return nil, fmt.Errorf("get position: %w", mapErr(err))
	}
	return &p, nil
}

func (r *PositionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]core.Position, error) {
	var out []core.Position
	const q = `SELECT * FROM positions WHERE user_id = ? ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &out, q, userID); err != nil {
		return nil, fmt.Errorf("list positions: %w", mapErr(err))
	}
	return out, nil
}

func (r *PositionRepo) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]core.Position, error) {
	var out []core.Position
	const q = `SELECT * FROM positions WHERE market_id = ? ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &out, q, marketID); err != nil {
		return nil, fmt.Errorf("list positions: %w", mapErr(err))
	}
	return out, nil
}

func (r *PositionRepo) Update(ctx context.Context, p *core.Position) error {
	const q = `UPDATE positions SET
		yes_shares = :yes_shares, no_shares = :no_shares,
		avg_yes_price = :avg_yes_price, avg_no_price = :avg_no_price, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.q, q, p)
	if err != nil {
		return fmt.Errorf("update position: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update position %s: %w", p.ID, core.ErrNotFound)
	}
	return nil
}
