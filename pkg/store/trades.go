package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openpredict/openpredict/pkg/core"
)

type TradeRepo struct {
	q sqlx.ExtContext
}

// Insert appends a trade record and fills in its assigned id.
func (r *TradeRepo) Insert(ctx context.Context, t *core.Trade) error {
	const q = `INSERT INTO trades
		(user_id, market_id, type, side, shares, price, cost, fee,
		 q_yes_before, q_no_before, q_yes_after, q_no_after, created_at)
		VALUES (:user_id, :market_id, :type, :side, :shares, :price, :cost, :fee,
		 :q_yes_before, :q_no_before, :q_yes_after, :q_no_after, :created_at)`
	res, err := sqlx.NamedExecContext(ctx, r.q, q, t)
	if err != nil {
		return fmt.Errorf("insert trade: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("trade id: %w", mapErr(err))
	}
	t.ID = id
	return nil
}

// ListByMarket returns a market's trades, newest first. limit <= 0 means all.
func (r *TradeRepo) ListByMarket(ctx context.Context, marketID uuid.UUID, limit int) ([]core.Trade, error) {
	q := `SELECT * FROM trades WHERE market_id = ? ORDER BY id DESC`
	args := []any{marketID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []core.Trade
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list trades: %w", mapErr(err))
	}
	return out, nil
}

// ListByMarketAsc returns a market's trades oldest first, for q-chain audits.
func (r *TradeRepo) ListByMarketAsc(ctx context.Context, marketID uuid.UUID) ([]core.Trade, error) {
	var out []core.Trade
	const q = `SELECT * FROM trades WHERE market_id = ? ORDER BY id ASC`
	if err := sqlx.SelectContext(ctx, r.q, &out, q, marketID); err != nil {
		return nil, fmt.Errorf("list trades: %w", mapErr(err))
	}
	return out, nil
}

func (r *TradeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]core.Trade, error) {
	q := `SELECT * FROM trades WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []core.Trade
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list trades: %w", mapErr(err))
	}
	return out, nil
}

func (r *TradeRepo) ListAll(ctx context.Context, limit int) ([]core.Trade, error) {
	q := `SELECT * FROM trades ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []core.Trade
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list trades: %w", mapErr(err))
	}
	return out, nil
}
