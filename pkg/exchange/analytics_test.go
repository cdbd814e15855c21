package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openpredict/openpredict/pkg/core"
)

func TestFeeRevenueWindows(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	alice := ex.user(t, "alice", 1000)

	old := ex.activeMarket(t)
	first := ex.buyAmount(t, alice, old.ID, core.SideYes, 10)

	// a month later only the newer trade falls inside the short windows
	ex.clock.Advance(30 * 24 * time.Hour)
	fresh := ex.activeMarket(t)
	second := ex.buyAmount(t, alice, fresh.ID, core.SideYes, 10)

	fees, err := ex.analytics.FeeRevenue(ctx)
	require.NoError(t, err)

	require.InDelta(t, second.Fee.InexactFloat64(), fees.Today.InexactFloat64(), 1e-6)
	require.InDelta(t, second.Fee.InexactFloat64(), fees.ThisWeek.InexactFloat64(), 1e-6)
	require.InDelta(t, second.Fee.InexactFloat64(), fees.ThisMonth.InexactFloat64(), 1e-6)
	require.InDelta(t, first.Fee.Add(second.Fee).InexactFloat64(), fees.AllTime.InexactFloat64(), 1e-6)
}

func TestMarketsPnLReconciles(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	bob := ex.user(t, "bob", 100)

	aliceBuy := ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)
	bobBuy := ex.buyAmount(t, bob, mk.ID, core.SideNo, 10)

	_, _, err := ex.markets.Resolve(ctx, mk.ID, core.OutcomeYes)
	require.NoError(t, err)

	rows, err := ex.analytics.MarketsPnL(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]

	require.Equal(t, mk.ID, row.MarketID)
	require.Equal(t, core.MarketResolved, row.Status)

	wantBuy := aliceBuy.Cost.Sub(aliceBuy.Fee).Add(bobBuy.Cost.Sub(bobBuy.Fee))
	require.True(t, row.BuyVolume.Equal(wantBuy))
	require.True(t, row.SellVolume.IsZero())
	require.True(t, row.Fees.Equal(aliceBuy.Fee.Add(bobBuy.Fee)))
	// only the winning side's shares come due
	require.True(t, row.SettlementPayout.Equal(aliceBuy.Shares))
	require.True(t, row.PnL.Equal(row.BuyVolume.Sub(row.SellVolume).Sub(row.SettlementPayout)))
}

func TestExposureSkipsSettledMarkets(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	alice := ex.user(t, "alice", 1000)

	open := ex.activeMarket(t)
	openBuy := ex.buyAmount(t, alice, open.ID, core.SideNo, 10)

	done := ex.activeMarket(t)
	ex.buyAmount(t, alice, done.ID, core.SideYes, 10)
	_, _, err := ex.markets.Resolve(ctx, done.ID, core.OutcomeYes)
	require.NoError(t, err)

	report, err := ex.analytics.Exposure(ctx)
	require.NoError(t, err)
	require.Len(t, report.Markets, 1)
	require.Equal(t, open.ID, report.Markets[0].MarketID)
	require.True(t, report.Markets[0].Exposure.Equal(openBuy.Shares))
	require.True(t, report.Total.Equal(openBuy.Shares))
}

func TestExposureOrdersWorstFirst(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	alice := ex.user(t, "alice", 1000)

	small := ex.activeMarket(t)
	ex.buyAmount(t, alice, small.ID, core.SideYes, 5)
	big := ex.activeMarket(t)
	ex.buyAmount(t, alice, big.ID, core.SideYes, 50)

	report, err := ex.analytics.Exposure(ctx)
	require.NoError(t, err)
	require.Len(t, report.Markets, 2)
	require.Equal(t, big.ID, report.Markets[0].MarketID)
	require.Equal(t, small.ID, report.Markets[1].MarketID)
}

func TestTopContributors(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	bob := ex.user(t, "bob", 100)

	ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)
	ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)
	ex.buyAmount(t, bob, mk.ID, core.SideNo, 10)

	top, err := ex.analytics.TopContributors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, alice.ID, top[0].UserID)
	require.Equal(t, "alice", top[0].Username)
	require.Equal(t, 2, top[0].Trades)
	require.Equal(t, bob.ID, top[1].UserID)

	top, err = ex.analytics.TopContributors(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, alice.ID, top[0].UserID)
}

func TestPlatformOverview(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	bob := ex.user(t, "bob", 100)

	ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)
	ex.buyAmount(t, bob, mk.ID, core.SideNo, 10)
	_, _, err := ex.markets.Resolve(ctx, mk.ID, core.OutcomeNo)
	require.NoError(t, err)

	overview, err := ex.analytics.PlatformOverview(ctx)
	require.NoError(t, err)

	rows, err := ex.analytics.MarketsPnL(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, overview.ResolvedPnL.Equal(rows[0].PnL))
	require.True(t, overview.PlatformProfit.Equal(overview.Fees.AllTime.Add(overview.ResolvedPnL)))
	require.True(t, overview.TotalCashFlow.Equal(rows[0].BuyVolume))
}

func TestDashboard(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	mk := ex.activeMarket(t)
	alice := ex.user(t, "alice", 100)
	trade := ex.buyAmount(t, alice, mk.ID, core.SideYes, 10)

	stats, err := ex.analytics.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Users) // admin + alice
	require.Equal(t, 1, stats.Markets)
	require.Equal(t, 1, stats.ActiveMarkets)
	require.Equal(t, 1, stats.Trades)
	require.True(t, stats.TotalVolume.Equal(trade.Cost))
	require.True(t, stats.TotalFees.Equal(trade.Fee))
}
