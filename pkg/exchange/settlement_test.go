package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openpredict/openpredict/pkg/core"
)

func TestResolvePaysWinnersOnly(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	bob := ex.user(t, "bob", 100)

	buy := ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)
	ex.buyAmount(t, bob, mk.ID, core.SideNo, 10)

	resolved, settled, err := ex.markets.Resolve(ctx, mk.ID, core.OutcomeYes)
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	require.Equal(t, core.MarketResolved, resolved.Status)
	require.NotNil(t, resolved.SettledAt)
	require.NotNil(t, resolved.ResolvedAt)

	// winner gets one unit per winning share
	w, err := ex.ledger.Get(ctx, alice.ID)
	require.NoError(t, err)
	want := buy.Shares.InexactFloat64() + 90.0
	require.InDelta(t, want, w.Balance.InexactFloat64(), 1e-3)

	txs, err := ex.ledger.Transactions(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Equal(t, core.TxSettlement, txs[0].Kind)
	require.NotNil(t, txs[0].RefID)
	require.Equal(t, mk.ID, *txs[0].RefID)

	// loser keeps what was left after the buy, no settlement row
	w, err = ex.ledger.Get(ctx, bob.ID)
	require.NoError(t, err)
	require.InDelta(t, 90.0, w.Balance.InexactFloat64(), 1e-3)
	txs, err = ex.ledger.Transactions(ctx, bob.ID, 0)
	require.NoError(t, err)
	for _, tx := range txs {
		require.NotEqual(t, core.TxSettlement, tx.Kind)
	}

	// positions survive as the historical record
	positions, err := ex.executor.UserPositions(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.True(t, positions[0].YesShares.Equal(buy.Shares))
}

func TestResolveIsIdempotent(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)

	_, settled, err := ex.markets.Resolve(ctx, mk.ID, core.OutcomeYes)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	w, err := ex.ledger.Get(ctx, alice.ID)
	require.NoError(t, err)
	balance := w.Balance

	// a second resolution is refused and pays nothing
	_, _, err = ex.markets.Resolve(ctx, mk.ID, core.OutcomeNo)
	require.ErrorIs(t, err, core.ErrInvalidTransition)

	w, err = ex.ledger.Get(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(balance))
}

func TestResolveFromSuspended(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	ex.buyAmount(t, alice, mk.ID, core.SideNo, 10)

	_, err := ex.markets.SetStatus(ctx, mk.ID, core.MarketSuspended)
	require.NoError(t, err)

	_, settled, err := ex.markets.Resolve(ctx, mk.ID, core.OutcomeNo)
	require.NoError(t, err)
	require.Equal(t, 1, settled)
}

func TestCancellationRefundsCostBasis(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)

	ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)

	cancelled, err := ex.markets.SetStatus(ctx, mk.ID, core.MarketCancelled)
	require.NoError(t, err)
	require.Equal(t, core.MarketCancelled, cancelled.Status)

	// shares * average price puts the stake back, fees aside
	w, err := ex.ledger.Get(ctx, alice.ID)
	require.NoError(t, err)
	require.InDelta(t, 100.0, w.Balance.InexactFloat64(), 1e-2)

	txs, err := ex.ledger.Transactions(ctx, alice.ID, 0)
	require.NoError(t, err)
	require.Equal(t, core.TxRefund, txs[0].Kind)

	require.NoError(t, ex.ledger.Audit(ctx, mustWallet(t, ex, alice.ID).ID))
}

func TestCancelEmptyMarket(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)

	cancelled, err := ex.markets.SetStatus(ctx, mk.ID, core.MarketCancelled)
	require.NoError(t, err)
	require.Equal(t, core.MarketCancelled, cancelled.Status)
}
