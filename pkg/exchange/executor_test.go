package exchange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openpredict/openpredict/pkg/core"
)

func TestFirstBuyOnFreshMarket(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	user := ex.user(t, "alice", 100)

	trade := ex.buyAmount(t, user, mk.ID, core.SideYes, 10)

	require.Equal(t, core.TradeBuy, trade.Type)
	require.Equal(t, core.SideYes, trade.Side)
	require.InDelta(t, 19.512658, trade.Shares.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.512488, trade.Price.InexactFloat64(), 1e-3)
	require.InDelta(t, 10.0, trade.Cost.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.196078, trade.Fee.InexactFloat64(), 1e-3)
	require.True(t, trade.QYesBefore.IsZero())
	require.True(t, trade.QNoBefore.IsZero())
	require.InDelta(t, 19.512658, trade.QYesAfter.InexactFloat64(), 1e-3)
	require.True(t, trade.QNoAfter.IsZero())

	w, err := ex.ledger.Get(ctx, user.ID)
	require.NoError(t, err)
	require.InDelta(t, 90.0, w.Balance.InexactFloat64(), 1e-3)

	got, err := ex.markets.Get(ctx, mk.ID)
	require.NoError(t, err)
	require.InDelta(t, 19.512658, got.QYes.InexactFloat64(), 1e-3)
	require.True(t, got.QNo.IsZero())
	require.InDelta(t, 10.0, got.Volume.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.504878, got.PriceYes.InexactFloat64(), 1e-3)

	positions, err := ex.executor.UserPositions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.InDelta(t, 19.512658, positions[0].YesShares.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.512488, positions[0].AvgYesPrice.InexactFloat64(), 1e-3)
	require.True(t, positions[0].NoShares.IsZero())
}

func TestRoundTripSell(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	user := ex.user(t, "alice", 100)

	buy := ex.buyAmount(t, user, mk.ID, core.SideYes, 10)
	sell := ex.sellShares(t, user, mk.ID, core.SideYes, buy.Shares)

	// fee taken both ways: ~9.607843 comes back
	require.InDelta(t, 9.607843, sell.Cost.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.192157, sell.Fee.InexactFloat64(), 1e-2)

	w, err := ex.ledger.Get(ctx, user.ID)
	require.NoError(t, err)
	require.InDelta(t, 99.607843, w.Balance.InexactFloat64(), 1e-3)

	positions, err := ex.executor.UserPositions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.True(t, positions[0].YesShares.IsZero())
	require.True(t, positions[0].AvgYesPrice.IsZero())

	got, err := ex.markets.Get(ctx, mk.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.0, got.QYes.InexactFloat64(), 1e-3)
	require.NoError(t, ex.ledger.Audit(ctx, mustWallet(t, ex, user.ID).ID))
}

func TestInsufficientFundsLeavesNoTrace(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	user := ex.user(t, "poor", 5)

	amount := decimal.NewFromInt(10)
	req, err := NewTradeRequest(mk.ID, core.TradeBuy, core.SideYes, &amount, nil)
	require.NoError(t, err)
	_, err = ex.executor.Execute(ctx, user.ID, req)
	require.ErrorIs(t, err, core.ErrInsufficientFunds)

	got, err := ex.markets.Get(ctx, mk.ID)
	require.NoError(t, err)
	require.True(t, got.QYes.IsZero())
	require.True(t, got.Volume.IsZero())

	trades, err := ex.executor.MarketTrades(ctx, mk.ID, 0)
	require.NoError(t, err)
	require.Empty(t, trades)

	// only the funding deposit is on the ledger
	txs, err := ex.ledger.Transactions(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestSellMoreThanHeld(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	user := ex.user(t, "alice", 100)

	buy := ex.buyAmount(t, user, mk.ID, core.SideYes, 10)

	over := buy.Shares.Add(decimal.NewFromInt(1))
	req, err := NewTradeRequest(mk.ID, core.TradeSell, core.SideYes, nil, &over)
	require.NoError(t, err)
	_, err = ex.executor.Execute(ctx, user.ID, req)
	require.ErrorIs(t, err, core.ErrInsufficientShares)

	// selling the side never bought also fails
	one := decimal.NewFromInt(1)
	req, err = NewTradeRequest(mk.ID, core.TradeSell, core.SideNo, nil, &one)
	require.NoError(t, err)
	_, err = ex.executor.Execute(ctx, user.ID, req)
	require.ErrorIs(t, err, core.ErrInsufficientShares)
}

func TestTradePreconditions(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	admin, err := ex.auth.EnsureAdmin(ctx, "admin@example.com", "admin", "change-me-now", decimal.Zero)
	require.NoError(t, err)
	user := ex.user(t, "alice", 100)

	draft, err := ex.markets.Create(ctx, admin.ID, CreateInput{
		Title:     "not yet open",
		StartTime: ex.clock.T.Add(-time.Hour),
		EndTime:   ex.clock.T.Add(time.Hour),
	})
	require.NoError(t, err)

	amount := decimal.NewFromInt(10)
	req, err := NewTradeRequest(draft.ID, core.TradeBuy, core.SideYes, &amount, nil)
	require.NoError(t, err)
	_, err = ex.executor.Execute(ctx, user.ID, req)
	require.ErrorIs(t, err, core.ErrMarketClosed)

	active := ex.activeMarket(t)
	req, err = NewTradeRequest(active.ID, core.TradeBuy, core.SideYes, &amount, nil)
	require.NoError(t, err)

	// past the window the market may still be active but refuses trades
	ex.clock.Advance(100 * 24 * time.Hour)
	_, err = ex.executor.Execute(ctx, user.ID, req)
	require.ErrorIs(t, err, core.ErrOutOfWindow)
}

func TestTradeRequestValidation(t *testing.T) {
	ex := newTestExchange(t)
	mk := ex.activeMarket(t)

	amount := decimal.NewFromInt(10)
	shares := decimal.NewFromInt(5)
	zero := decimal.Zero

	_, err := NewTradeRequest(mk.ID, core.TradeBuy, core.SideYes, nil, nil)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = NewTradeRequest(mk.ID, core.TradeBuy, core.SideYes, &amount, &shares)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = NewTradeRequest(mk.ID, core.TradeBuy, core.SideYes, &zero, nil)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = NewTradeRequest(mk.ID, core.TradeSell, core.SideYes, &amount, nil)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = NewTradeRequest(mk.ID, core.TradeBuy, core.Side("maybe"), &amount, nil)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = NewTradeRequest(mk.ID, core.TradeType("short"), core.SideYes, &amount, nil)
	require.ErrorIs(t, err, core.ErrInvalidTrade)
}

func TestQuoteMatchesExecution(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	user := ex.user(t, "alice", 100)

	amount := decimal.NewFromInt(10)
	req, err := NewTradeRequest(mk.ID, core.TradeBuy, core.SideNo, &amount, nil)
	require.NoError(t, err)

	quote, err := ex.executor.Quote(ctx, req)
	require.NoError(t, err)

	trade, err := ex.executor.Execute(ctx, user.ID, req)
	require.NoError(t, err)
	require.InDelta(t, quote.Total.InexactFloat64(), trade.Cost.InexactFloat64(), 1e-3)
	require.InDelta(t, quote.Shares.InexactFloat64(), trade.Shares.InexactFloat64(), 1e-3)
}

func TestConcurrentBuysSerialize(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	a := ex.user(t, "alice", 100)
	b := ex.user(t, "bob", 100)

	amount := decimal.NewFromInt(10)
	req, err := NewTradeRequest(mk.ID, core.TradeBuy, core.SideYes, &amount, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []*core.User{a, b} {
		wg.Add(1)
		go func(i int, u *core.User) {
			defer wg.Done()
			_, errs[i] = ex.executor.Execute(ctx, u.ID, req)
		}(i, user)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	trades, err := ex.store.Trades().ListByMarketAsc(ctx, mk.ID)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// the q-chain is contiguous across the serialized trades
	require.True(t, trades[1].QYesBefore.Equal(trades[0].QYesAfter))
	require.True(t, trades[1].QNoBefore.Equal(trades[0].QNoAfter))

	got, err := ex.markets.Get(ctx, mk.ID)
	require.NoError(t, err)
	require.True(t, got.QYes.Equal(trades[1].QYesAfter))
	require.InDelta(t, 20.0, got.Volume.InexactFloat64(), 1e-2)

	for _, user := range []*core.User{a, b} {
		require.NoError(t, ex.ledger.Audit(ctx, mustWallet(t, ex, user.ID).ID))
	}
}

func mustWallet(t *testing.T, ex *testExchange, userID uuid.UUID) *core.Wallet {
	t.Helper()
	w, err := ex.store.Wallets().GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w
}
