package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openpredict/openpredict/pkg/core"
)

type MarketRepo struct {
	q sqlx.ExtContext
}

// MarketFilter narrows List. Zero values mean no constraint.
type MarketFilter struct {
	Status   core.MarketStatus
	Category string
}

func (r *MarketRepo) Create(ctx context.Context, m *core.Market) error {
	const q = `INSERT INTO markets
		(id, title, description, category, image_url, resolution_source, status, outcome,
		 q_yes, q_no, liquidity, volume, start_time, end_time, resolved_at, settled_at,
		 creator_id, created_at, updated_at)
		VALUES (:id, :title, :description, :category, :image_url, :resolution_source, :status, :outcome,
		 :q_yes, :q_no, :liquidity, :volume, :start_time, :end_time, :resolved_at, :settled_at,
		 :creator_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, q, m); err != nil {
		return fmt.Errorf("insert market: %w", mapErr(err))
	}
	return nil
}

func (r *MarketRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.Market, error) {
	var m core.Market
	if err := sqlx.GetContext(ctx, r.q, &m, `SELECT * FROM markets WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, mapErr(err))
	}
	return &m, nil
}

func (r *MarketRepo) List(ctx context.Context, f MarketFilter) ([]core.Market, error) {
	q := `SELECT * FROM markets WHERE 1=1`
	var args []any
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Category != "" {
		q += ` AND category = ?`
		args = append(args, f.Category)
	}
	q += ` ORDER BY created_at DESC, id`
	var out []core.Market
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list markets: %w", mapErr(err))
	}
	return out, nil
}

// Update persists every mutable field of a market.
func (r *MarketRepo) Update(ctx context.Context, m *core.Market) error {
	const q = `UPDATE markets SET
		title = :title, description = :description, category = :category,
		image_url = :image_url, resolution_source = :resolution_source,
		status = :status, outcome = :outcome,
		q_yes = :q_yes, q_no = :q_no, liquidity = :liquidity, volume = :volume,
		start_time = :start_time, end_time = :end_time,
		resolved_at = :resolved_at, settled_at = :settled_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.q, q, m)
	if err != nil {
		return fmt.Errorf("update market: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update market %s: %w", m.ID, core.ErrNotFound)
	}
	return nil
}

// Categories returns the distinct non-empty categories in use.
func (r *MarketRepo) Categories(ctx context.Context) ([]string, error) {
	var out []string
	const q = `SELECT DISTINCT category FROM markets WHERE category != '' ORDER BY category`
	if err := sqlx.SelectContext(ctx, r.q, &out, q); err != nil {
		return nil, fmt.Errorf("list categories: %w", mapErr(err))
	}
	return out, nil
}
