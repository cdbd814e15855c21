package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openpredict/openpredict/pkg/core"
)

type WalletRepo struct {
	q sqlx.ExtContext
}

func (r *WalletRepo) Create(ctx context.Context, w *core.Wallet) error {
	const q = `INSERT INTO wallets (id, user_id, balance, frozen_balance, created_at, updated_at)
		VALUES (:id, :user_id, :balance, :frozen_balance, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, q, w); err != nil {
		return fmt.Errorf("insert wallet: %w", mapErr(err))
	}
	return nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.Wallet, error) {
	var w core.Wallet
	if err := sqlx.GetContext(ctx, r.q, &w, `SELECT * FROM wallets WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get wallet %s: %w", id, mapErr(err))
	}
	return &w, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*core.Wallet, error) {
	var w core.Wallet
	if err := sqlx.GetContext(ctx, r.q, &w, `SELECT * FROM wallets WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("get wallet for user %s: %w", userID, mapErr(err))
	}
	return &w, nil
}

func (r *WalletRepo) List(ctx context.Context) ([]core.Wallet, error) {
	var out []core.Wallet
	if err := sqlx.SelectContext(ctx, r.q, &out, `SELECT * FROM wallets ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list wallets: %w", mapErr(err))
	}
	return out, nil
}

// UpdateBalance writes the new balances. Callers append the matching ledger
// entry in the same unit of work.
func (r *WalletRepo) UpdateBalance(ctx context.Context, w *core.Wallet) error {
	const q = `UPDATE wallets SET balance = :balance, frozen_balance = :frozen_balance, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.q, q, w)
	if err != nil {
		return fmt.Errorf("update wallet: %w", mapErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update wallet %s: %w", w.ID, core.ErrNotFound)
	}
	return nil
}

// AppendTransaction inserts a ledger entry and fills in its assigned id.
// Ids are monotonic, so per-wallet entries ordered by id form the
// balance_before/balance_after chain.
func (r *WalletRepo) AppendTransaction(ctx context.Context, tx *core.WalletTransaction) error {
	const q = `INSERT INTO wallet_transactions
		(wallet_id, kind, amount, balance_before, balance_after, description, ref_id, created_at)
		VALUES (:wallet_id, :kind, :amount, :balance_before, :balance_after, :description, :ref_id, :created_at)`
	res, err := sqlx.NamedExecContext(ctx, r.q, q, tx)
	if err != nil {
		return fmt.Errorf("append wallet tx: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("wallet tx id: %w", mapErr(err))
	}
	tx.ID = id
	return nil
}

// Transactions returns a wallet's ledger, newest first. limit <= 0 means all.
func (r *WalletRepo) Transactions(ctx context.Context, walletID uuid.UUID, limit int) ([]core.WalletTransaction, error) {
	q := `SELECT * FROM wallet_transactions WHERE wallet_id = ? ORDER BY id DESC`
	args := []any{walletID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []core.WalletTransaction
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, fmt.Errorf("list wallet txs: %w", mapErr(err))
	}
	return out, nil
}

// TransactionsAsc returns the full ledger oldest first, for chain audits.
func (r *WalletRepo) TransactionsAsc(ctx context.Context, walletID uuid.UUID) ([]core.WalletTransaction, error) {
	var out []core.WalletTransaction
	const q = `SELECT * FROM wallet_transactions WHERE wallet_id = ? ORDER BY id ASC`
	if err := sqlx.SelectContext(ctx, r.q, &out, q, walletID); err != nil {
		return nil, fmt.Errorf("list wallet txs: %w", mapErr(err))
	}
	return out, nil
}
