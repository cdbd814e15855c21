package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/store"
)

// settle credits every winning position on the market one unit per share
// and stamps settled_at. Positions stay as the historical record; losers
// get no ledger row. A market already stamped settles nothing, so a retried
// resolve cannot pay twice.
func settle(ctx context.Context, u *store.Uow, mk *core.Market, now time.Time) (int, error) {
	if mk.SettledAt != nil {
		return 0, nil
	}
	if mk.Outcome == nil {
		return 0, fmt.Errorf("settle without outcome: %w", core.ErrInvalidTransition)
	}
	winning := core.SideYes
	if *mk.Outcome == core.OutcomeNo {
		winning = core.SideNo
	}

	positions, err := u.Positions().ListByMarket(ctx, mk.ID)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range positions {
		p := &positions[i]
		payout := p.Shares(winning)
		if !payout.IsPositive() {
			continue
		}
		w, err := u.Wallets().GetByUserID(ctx, p.UserID)
		if err != nil {
			return 0, err
		}
		desc := fmt.Sprintf("settlement %s: %s x %s", mk.Title, payout, winning)
		if _, err := applyEntry(ctx, u, w, core.TxSettlement, payout, desc, &mk.ID, now); err != nil {
			return 0, err
		}
		settled++
	}

	mk.SettledAt = &now
	return settled, nil
}

// refundAll returns each holder's cost basis (shares x avg price, both
// sides) when a market is cancelled. Wallets with nothing at stake get no
// ledger row.
func refundAll(ctx context.Context, u *store.Uow, mk *core.Market, now time.Time) error {
	positions, err := u.Positions().ListByMarket(ctx, mk.ID)
	if err != nil {
		return err
	}

	for i := range positions {
		p := &positions[i]
		refund := p.CostBasis()
		if !refund.IsPositive() {
			continue
		}
		w, err := u.Wallets().GetByUserID(ctx, p.UserID)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("refund %s: market cancelled", mk.Title)
		if _, err := applyEntry(ctx, u, w, core.TxRefund, refund, desc, &mk.ID, now); err != nil {
			return err
		}
	}
	return nil
}
