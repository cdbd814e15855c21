// Package lmsr implements Hanson's logarithmic market scoring rule for
// binary markets: C(q_yes, q_no) = b * ln(e^{q_yes/b} + e^{q_no/b}).
// Trades are priced as the cost-function delta between the pre- and
// post-trade share vectors, plus a proportional fee.
package lmsr

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/openpredict/openpredict/pkg/core"
)

const (
	// observable money/share values are rounded to this many places
	quotePrecision = 6

	bisectTol     = 1e-4
	bisectMaxIter = 100

	// upper bracket for the amount->shares inversion: with p >= b-floor
	// prices one unit of money never buys more than 10x its value in shares
	bracketFactor = 10
)

// Engine prices trades. It is a pure value type: all market state comes in
// through the arguments, nothing is retained between calls.
type Engine struct {
	FeeRate  decimal.Decimal
	DefaultB decimal.Decimal
}

func New(feeRate, defaultB decimal.Decimal) *Engine {
	return &Engine{FeeRate: feeRate, DefaultB: defaultB}
}

// Quote is a priced (but unexecuted) trade. RawCost is the pure cost-function
// delta; Total is the money that would move: RawCost+Fee for buys,
// RawCost-Fee for sells.
type Quote struct {
	Type     core.TradeType  `json:"type"`
	Side     core.Side       `json:"side"`
	Shares   decimal.Decimal `json:"shares"`
	RawCost  decimal.Decimal `json:"rawCost"`
	Fee      decimal.Decimal `json:"fee"`
	Total    decimal.Decimal `json:"total"`
	AvgPrice decimal.Decimal `json:"avgPrice"`

	NewQYes     decimal.Decimal `json:"newQYes"`
	NewQNo      decimal.Decimal `json:"newQNo"`
	NewPriceYes decimal.Decimal `json:"newPriceYes"`
	NewPriceNo  decimal.Decimal `json:"newPriceNo"`
	PriceImpact decimal.Decimal `json:"priceImpact"`
}

// logSumExp computes ln(e^a + e^b) without overflowing for large exponents.
func logSumExp(a, b float64) float64 {
	m := math.Max(a, b)
	return m + math.Log(math.Exp(a-m)+math.Exp(b-m))
}

func costFn(qYes, qNo, b float64) float64 {
	return b * logSumExp(qYes/b, qNo/b)
}

// priceYesFn is the softmax derivative of the cost function, stabilized the
// same way as logSumExp.
func priceYesFn(qYes, qNo, b float64) float64 {
	m := math.Max(qYes/b, qNo/b)
	ey := math.Exp(qYes/b - m)
	en := math.Exp(qNo/b - m)
	return ey / (ey + en)
}

// Price returns the instantaneous YES and NO prices. They always sum to 1
// and each lies strictly inside (0, 1).
func (e *Engine) Price(qYes, qNo, b decimal.Decimal) (pYes, pNo decimal.Decimal) {
	py := priceYesFn(qYes.InexactFloat64(), qNo.InexactFloat64(), b.InexactFloat64())
	pYes = decimal.NewFromFloat(py).Round(quotePrecision)
	pNo = decimal.NewFromInt(1).Sub(pYes)
	return pYes, pNo
}

// QuoteBuyShares prices a buy of an exact number of shares.
func (e *Engine) QuoteBuyShares(qYes, qNo, b decimal.Decimal, side core.Side, shares decimal.Decimal) (*Quote, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("shares must be positive: %w", core.ErrInvalidTrade)
	}

	qy, qn, bf := qYes.InexactFloat64(), qNo.InexactFloat64(), b.InexactFloat64()
	df := shares.InexactFloat64()

	before := costFn(qy, qn, bf)
	nqy, nqn := qy, qn
	if side == core.SideYes {
		nqy += df
	} else {
		nqn += df
	}
	raw := costFn(nqy, nqn, bf) - before
	if raw <= 0 {
		return nil, fmt.Errorf("non-positive cost: %w", core.ErrInvalidTrade)
	}

	return e.buildQuote(core.TradeBuy, side, shares, raw, qy, qn, nqy, nqn, bf), nil
}

// QuoteBuyAmount prices a buy that spends an exact amount of money,
// fee-inclusive. The share count is found by bisecting the cost-function
// delta towards amount/(1+fee_rate). An amount the pool cannot absorb, or a
// bisection that fails to converge, is an invalid trade.
func (e *Engine) QuoteBuyAmount(qYes, qNo, b decimal.Decimal, side core.Side, amount decimal.Decimal) (*Quote, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", core.ErrInvalidTrade)
	}

	qy, qn, bf := qYes.InexactFloat64(), qNo.InexactFloat64(), b.InexactFloat64()
	af := amount.InexactFloat64()
	target := af / (1 + e.FeeRate.InexactFloat64())

	before := costFn(qy, qn, bf)
	rawAt := func(shares float64) float64 {
		if side == core.SideYes {
			return costFn(qy+shares, qn, bf) - before
		}
		return costFn(qy, qn+shares, bf) - before
	}

	lo, hi := 0.0, af*bracketFactor
	if rawAt(hi) < target-bisectTol {
		return nil, fmt.Errorf("amount exceeds pool capacity: %w", core.ErrInvalidTrade)
	}

	var mid float64
	converged := false
	for i := 0; i < bisectMaxIter; i++ {
		mid = (lo + hi) / 2
		r := rawAt(mid)
		if math.Abs(r-target) <= bisectTol {
			converged = true
			break
		}
		if r < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	if !converged {
		return nil, fmt.Errorf("quote did not converge: %w", core.ErrInvalidTrade)
	}

	shares := decimal.NewFromFloat(mid).Round(quotePrecision)
	if !shares.IsPositive() {
		return nil, fmt.Errorf("amount too small: %w", core.ErrInvalidTrade)
	}

	nqy, nqn := qy, qn
	if side == core.SideYes {
		nqy += mid
	} else {
		nqn += mid
	}
	return e.buildQuote(core.TradeBuy, side, shares, rawAt(mid), qy, qn, nqy, nqn, bf), nil
}

// QuoteSellShares prices a sell of an exact number of shares. The caller is
// responsible for checking the seller actually holds them.
func (e *Engine) QuoteSellShares(qYes, qNo, b decimal.Decimal, side core.Side, shares decimal.Decimal) (*Quote, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("shares must be positive: %w", core.ErrInvalidTrade)
	}

	if shares.GreaterThan(sideQ(qYes, qNo, side)) {
		return nil, fmt.Errorf("sell exceeds pool shares: %w", core.ErrInvalidTrade)
	}

	qy, qn, bf := qYes.InexactFloat64(), qNo.InexactFloat64(), b.InexactFloat64()
	df := shares.InexactFloat64()

	nqy, nqn := qy, qn
	if side == core.SideYes {
		nqy -= df
	} else {
		nqn -= df
	}
	raw := costFn(qy, qn, bf) - costFn(nqy, nqn, bf)
	if raw <= 0 {
		return nil, fmt.Errorf("non-positive return: %w", core.ErrInvalidTrade)
	}

	q := e.buildQuote(core.TradeSell, side, shares, raw, qy, qn, nqy, nqn, bf)
	if !q.Total.IsPositive() {
		return nil, fmt.Errorf("net return not positive: %w", core.ErrInvalidTrade)
	}
	return q, nil
}

func (e *Engine) buildQuote(typ core.TradeType, side core.Side, shares decimal.Decimal, raw, qy, qn, nqy, nqn, bf float64) *Quote {
	rawD := decimal.NewFromFloat(raw).Round(quotePrecision)
	fee := rawD.Mul(e.FeeRate).Round(quotePrecision)

	var total decimal.Decimal
	if typ == core.TradeBuy {
		total = rawD.Add(fee)
	} else {
		total = rawD.Sub(fee)
	}

	oldP := priceYesFn(qy, qn, bf)
	newP := priceYesFn(nqy, nqn, bf)
	newPYes := decimal.NewFromFloat(newP).Round(quotePrecision)
	// relative move of the YES price
	impact := math.Abs(newP-oldP) / oldP

	return &Quote{
		Type:        typ,
		Side:        side,
		Shares:      shares,
		RawCost:     rawD,
		Fee:         fee,
		Total:       total,
		AvgPrice:    total.Div(shares).Round(quotePrecision),
		NewQYes:     decimal.NewFromFloat(nqy).Round(quotePrecision),
		NewQNo:      decimal.NewFromFloat(nqn).Round(quotePrecision),
		NewPriceYes: newPYes,
		NewPriceNo:  decimal.NewFromInt(1).Sub(newPYes),
		PriceImpact: decimal.NewFromFloat(impact).Round(quotePrecision),
	}
}

func sideQ(qYes, qNo decimal.Decimal, side core.Side) decimal.Decimal {
	if side == core.SideYes {
		return qYes
	}
	return qNo
}
