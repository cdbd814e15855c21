package lmsr

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openpredict/openpredict/pkg/core"
)

func newTestEngine() *Engine {
	return New(decimal.NewFromFloat(0.02), decimal.NewFromInt(1000))
}

func TestPriceFreshMarket(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	pYes, pNo := e.Price(decimal.Zero, decimal.Zero, b)
	require.True(t, pYes.Equal(decimal.NewFromFloat(0.5)))
	require.True(t, pNo.Equal(decimal.NewFromFloat(0.5)))
}

func TestPricesSumToOne(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	cases := []struct{ qYes, qNo float64 }{
		{0, 0},
		{100, 50},
		{50, 100},
		{1234.5, 987.6},
		{0, 5000},
	}
	for _, c := range cases {
		pYes, pNo := e.Price(decimal.NewFromFloat(c.qYes), decimal.NewFromFloat(c.qNo), b)
		require.True(t, pYes.Add(pNo).Equal(decimal.NewFromInt(1)))
		require.True(t, pYes.IsPositive())
		require.True(t, pYes.LessThan(decimal.NewFromInt(1)))
	}
}

func TestPriceStableAtExtremeImbalance(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	// exponents near 1000 would overflow a naive e^{q/b} sum
	pYes, pNo := e.Price(decimal.NewFromInt(1_000_000), decimal.Zero, b)
	require.True(t, pYes.GreaterThan(decimal.NewFromFloat(0.999)))
	require.False(t, pNo.IsNegative())
	require.True(t, pYes.Add(pNo).Equal(decimal.NewFromInt(1)))
}

func TestQuoteBuyAmount(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	q, err := e.QuoteBuyAmount(decimal.Zero, decimal.Zero, b, core.SideYes, decimal.NewFromInt(10))
	require.NoError(t, err)

	// raw = 10 / 1.02, delta = b * ln(2*e^{raw/b} - 1)
	require.InDelta(t, 9.803922, q.RawCost.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.196078, q.Fee.InexactFloat64(), 1e-3)
	require.InDelta(t, 10.0, q.Total.InexactFloat64(), 1e-3)
	require.InDelta(t, 19.512658, q.Shares.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.512488, q.AvgPrice.InexactFloat64(), 1e-3)
	require.InDelta(t, 0.504878, q.NewPriceYes.InexactFloat64(), 1e-3)
	require.True(t, q.PriceImpact.IsPositive())
	require.True(t, q.NewQNo.IsZero())
}

func TestQuoteBuySharesMatchesCostDelta(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	shares := decimal.NewFromInt(50)
	q, err := e.QuoteBuyShares(decimal.NewFromInt(200), decimal.NewFromInt(100), b, core.SideNo, shares)
	require.NoError(t, err)

	require.True(t, q.NewQNo.Equal(decimal.NewFromInt(150)))
	require.True(t, q.NewQYes.Equal(decimal.NewFromInt(200)))
	require.True(t, q.Total.Equal(q.RawCost.Add(q.Fee)))
	require.InDelta(t, q.RawCost.Mul(e.FeeRate).InexactFloat64(), q.Fee.InexactFloat64(), 1e-6)
	// per-share average sits inside the price band the trade traversed
	require.True(t, q.AvgPrice.IsPositive())
	require.True(t, q.AvgPrice.LessThan(decimal.NewFromInt(1)))
}

func TestRoundTripWithFee(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	buy, err := e.QuoteBuyAmount(decimal.Zero, decimal.Zero, b, core.SideYes, decimal.NewFromInt(10))
	require.NoError(t, err)

	sell, err := e.QuoteSellShares(buy.NewQYes, buy.NewQNo, b, core.SideYes, buy.Shares)
	require.NoError(t, err)

	// fee charged both ways: 10 in, ~9.607843 back out
	require.InDelta(t, 9.607843, sell.Total.InexactFloat64(), 1e-3)
	require.True(t, sell.NewQYes.Abs().LessThan(decimal.NewFromFloat(0.001)))
}

func TestRoundTripZeroFee(t *testing.T) {
	e := New(decimal.Zero, decimal.NewFromInt(1000))
	b := decimal.NewFromInt(1000)

	buy, err := e.QuoteBuyAmount(decimal.NewFromInt(30), decimal.NewFromInt(70), b, core.SideNo, decimal.NewFromInt(25))
	require.NoError(t, err)

	sell, err := e.QuoteSellShares(buy.NewQYes, buy.NewQNo, b, core.SideNo, buy.Shares)
	require.NoError(t, err)

	// without fees the AMM is path-independent
	require.InDelta(t, 25.0, sell.Total.InexactFloat64(), 1e-3)
}

func TestSuccessiveBuysRaisePrice(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	qYes, qNo := decimal.Zero, decimal.Zero
	prev := decimal.NewFromFloat(0.5)
	for i := 0; i < 5; i++ {
		q, err := e.QuoteBuyShares(qYes, qNo, b, core.SideYes, decimal.NewFromInt(100))
		require.NoError(t, err)
		require.True(t, q.NewPriceYes.GreaterThan(prev))
		prev = q.NewPriceYes
		qYes, qNo = q.NewQYes, q.NewQNo
	}
}

func TestQuoteRejectsBadInputs(t *testing.T) {
	e := newTestEngine()
	b := decimal.NewFromInt(1000)

	_, err := e.QuoteBuyShares(decimal.Zero, decimal.Zero, b, core.SideYes, decimal.Zero)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = e.QuoteBuyShares(decimal.Zero, decimal.Zero, b, core.SideYes, decimal.NewFromInt(-5))
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = e.QuoteBuyAmount(decimal.Zero, decimal.Zero, b, core.SideNo, decimal.Zero)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	_, err = e.QuoteSellShares(decimal.NewFromInt(10), decimal.Zero, b, core.SideYes, decimal.Zero)
	require.ErrorIs(t, err, core.ErrInvalidTrade)

	// selling more than the outstanding side would take the AMM negative
	_, err = e.QuoteSellShares(decimal.NewFromInt(10), decimal.Zero, b, core.SideYes, decimal.NewFromInt(11))
	require.ErrorIs(t, err, core.ErrInvalidTrade)
}

func TestQuoteBuyAmountPoolCapacity(t *testing.T) {
	e := newTestEngine()
	// yes nearly worthless: one unit of money would buy far more than 10x
	// its value in shares, outside the inversion bracket
	_, err := e.QuoteBuyAmount(decimal.Zero, decimal.NewFromInt(100_000), decimal.NewFromInt(10_000), core.SideYes, decimal.NewFromInt(10))
	require.ErrorIs(t, err, core.ErrInvalidTrade)
}
