// Package exchange implements the transactional core of the prediction
// market: the wallet ledger, market lifecycle, trade execution, settlement
// and the analytics derived from the append-only logs.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

// Ledger is the only writer of wallet balances. Every mutation appends a
// WalletTransaction whose balance_before/balance_after chain is contiguous
// per wallet.
type Ledger struct {
	store *store.Store
	clock util.Clock
	log   *zap.SugaredLogger
}

func NewLedger(s *store.Store, clock util.Clock, log *zap.SugaredLogger) *Ledger {
	return &Ledger{store: s, clock: clock, log: log}
}

// applyEntry mutates a wallet balance inside the given unit of work and
// appends the matching ledger row. amount is signed: positive credits,
// negative debits. The wallet struct is updated in place.
func applyEntry(ctx context.Context, u *store.Uow, w *core.Wallet, kind core.TxKind, amount decimal.Decimal, desc string, ref *uuid.UUID, now time.Time) (*core.WalletTransaction, error) {
	before := w.Balance
	after := before.Add(amount)
	if after.IsNegative() {
		return nil, fmt.Errorf("balance %s after %s: %w", after, amount, core.ErrInsufficientFunds)
	}

	w.Balance = after
	w.UpdatedAt = now
	if err := u.Wallets().UpdateBalance(ctx, w); err != nil {
		return nil, err
	}

	tx := &core.WalletTransaction{
		WalletID:      w.ID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   desc,
		RefID:         ref,
		CreatedAt:     now,
	}
	if err := u.Wallets().AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Get returns the caller's wallet.
func (l *Ledger) Get(ctx context.Context, userID uuid.UUID) (*core.Wallet, error) {
	return l.store.Wallets().GetByUserID(ctx, userID)
}

// Deposit credits the user's wallet. Amounts must be strictly positive.
func (l *Ledger) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*core.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit %s: %w", amount, core.ErrInvalidAmount)
	}
	var out *core.WalletTransaction
	err := l.store.WithTx(ctx, func(u *store.Uow) error {
		w, err := u.Wallets().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		out, err = applyEntry(ctx, u, w, core.TxDeposit, amount, "deposit", nil, l.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Infow("deposit", "user", userID, "amount", amount)
	return out, nil
}

// Withdraw debits the user's wallet. Withdrawing the exact balance is
// allowed and leaves it at zero.
func (l *Ledger) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*core.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("withdraw %s: %w", amount, core.ErrInvalidAmount)
	}
	var out *core.WalletTransaction
	err := l.store.WithTx(ctx, func(u *store.Uow) error {
		w, err := u.Wallets().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		out, err = applyEntry(ctx, u, w, core.TxWithdraw, amount.Neg(), "withdraw", nil, l.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Infow("withdraw", "user", userID, "amount", amount)
	return out, nil
}

// Transactions returns the user's ledger, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]core.WalletTransaction, error) {
	w, err := l.store.Wallets().GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.store.Wallets().Transactions(ctx, w.ID, limit)
}

// AdminCredit credits an arbitrary wallet, for support and bootstrap flows.
func (l *Ledger) AdminCredit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, desc string) (*core.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("credit %s: %w", amount, core.ErrInvalidAmount)
	}
	if desc == "" {
		desc = "admin credit"
	}
	var out *core.WalletTransaction
	err := l.store.WithTx(ctx, func(u *store.Uow) error {
		w, err := u.Wallets().GetByID(ctx, walletID)
		if err != nil {
			return err
		}
		out, err = applyEntry(ctx, u, w, core.TxDeposit, amount, desc, nil, l.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Infow("admin credit", "wallet", walletID, "amount", amount)
	return out, nil
}

// ListAll returns every wallet, for the admin surface.
func (l *Ledger) ListAll(ctx context.Context) ([]core.Wallet, error) {
	return l.store.Wallets().List(ctx)
}

// Audit walks a wallet's full ledger and verifies the balance chain:
// each entry's after equals before plus amount, consecutive entries are
// contiguous, and the final after equals the stored balance.
func (l *Ledger) Audit(ctx context.Context, walletID uuid.UUID) error {
	w, err := l.store.Wallets().GetByID(ctx, walletID)
	if err != nil {
		return err
	}
	txs, err := l.store.Wallets().TransactionsAsc(ctx, walletID)
	if err != nil {
		return err
	}

	prev := decimal.Zero
	for i, tx := range txs {
		if !tx.BalanceAfter.Equal(tx.BalanceBefore.Add(tx.Amount)) {
			return fmt.Errorf("ledger entry %d: after %s != before %s + amount %s", tx.ID, tx.BalanceAfter, tx.BalanceBefore, tx.Amount)
		}
		if i > 0 && !tx.BalanceBefore.Equal(prev) {
			return fmt.Errorf("ledger entry %d: before %s != previous after %s", tx.ID, tx.BalanceBefore, prev)
		}
		prev = tx.BalanceAfter
	}
	if len(txs) > 0 && !w.Balance.Equal(prev) {
		return fmt.Errorf("wallet %s: balance %s != last after %s", walletID, w.Balance, prev)
	}
	return nil
}
