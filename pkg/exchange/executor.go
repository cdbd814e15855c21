package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/lmsr"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

// TradeRequest is the validated form of the wire shape {amount?, shares?}:
// buy-by-amount, buy-by-shares, or sell-by-shares.
type TradeRequest struct {
	MarketID uuid.UUID
	Type     core.TradeType
	Side     core.Side
	ByAmount bool
	Amount   decimal.Decimal // set when ByAmount
	Shares   decimal.Decimal // set otherwise
}

// NewTradeRequest folds the optional amount/shares pair into the tagged
// form. Buys take exactly one of the two; sells take shares, amount is
// ignored.
func NewTradeRequest(marketID uuid.UUID, typ core.TradeType, side core.Side, amount, shares *decimal.Decimal) (TradeRequest, error) {
	req := TradeRequest{MarketID: marketID, Type: typ, Side: side}
	if side != core.SideYes && side != core.SideNo {
		return req, fmt.Errorf("unknown side %q: %w", side, core.ErrInvalidTrade)
	}

	switch typ {
	case core.TradeBuy:
		if (amount == nil) == (shares == nil) {
			return req, fmt.Errorf("buy takes exactly one of amount or shares: %w", core.ErrInvalidTrade)
		}
		if amount != nil {
			if !amount.IsPositive() {
				return req, fmt.Errorf("amount must be positive: %w", core.ErrInvalidTrade)
			}
			req.ByAmount = true
			req.Amount = *amount
		} else {
			if !shares.IsPositive() {
				return req, fmt.Errorf("shares must be positive: %w", core.ErrInvalidTrade)
			}
			req.Shares = *shares
		}
	case core.TradeSell:
		if shares == nil || !shares.IsPositive() {
			return req, fmt.Errorf("sell requires positive shares: %w", core.ErrInvalidTrade)
		}
		req.Shares = *shares
	default:
		return req, fmt.Errorf("unknown type %q: %w", typ, core.ErrInvalidTrade)
	}
	return req, nil
}

// Executor orchestrates a trade: quote, wallet move, pool update, position
// upsert and trade record, all in one unit of work.
type Executor struct {
	store  *store.Store
	engine *lmsr.Engine
	clock  util.Clock
	log    *zap.SugaredLogger

	// OnTrade runs after a trade commits, outside the transaction. Used to
	// journal price ticks and push live updates.
	OnTrade func(t *core.Trade, m *core.Market, priceYes, priceNo decimal.Decimal)
}

func NewExecutor(s *store.Store, engine *lmsr.Engine, clock util.Clock, log *zap.SugaredLogger) *Executor {
	return &Executor{store: s, engine: engine, clock: clock, log: log}
}

// Quote prices a request against the current pool without executing it.
// The same preconditions as Execute apply, minus funds and holdings.
func (e *Executor) Quote(ctx context.Context, req TradeRequest) (*lmsr.Quote, error) {
	mk, err := e.store.Markets().GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}
	if err := tradeable(mk, e.clock); err != nil {
		return nil, err
	}
	return e.quoteFor(mk, req)
}

// Execute runs the full trade. Any precondition failure aborts with no
// partial state.
func (e *Executor) Execute(ctx context.Context, userID uuid.UUID, req TradeRequest) (*core.Trade, error) {
	var (
		trade *core.Trade
		final *core.Market
	)
	err := e.store.WithTx(ctx, func(u *store.Uow) error {
		mk, err := u.Markets().GetByID(ctx, req.MarketID)
		if err != nil {
			return err
		}
		if err := tradeable(mk, e.clock); err != nil {
			return err
		}
		now := e.clock.Now()

		pos, err := u.Positions().Get(ctx, userID, mk.ID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if req.Type == core.TradeSell {
			held := decimal.Zero
			if pos != nil {
				held = pos.Shares(req.Side)
			}
			if held.LessThan(req.Shares) {
				return fmt.Errorf("hold %s, sell %s: %w", held, req.Shares, core.ErrInsufficientShares)
			}
		}

		q, err := e.quoteFor(mk, req)
		if err != nil {
			return err
		}

		w, err := u.Wallets().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}

		if req.Type == core.TradeBuy {
			desc := fmt.Sprintf("buy %s %s: %s", q.Shares, req.Side, mk.Title)
			if _, err := applyEntry(ctx, u, w, core.TxTrade, q.Total.Neg(), desc, &mk.ID, now); err != nil {
				return err
			}
			if err := upsertPosition(ctx, u, pos, userID, mk.ID, req.Side, q, now); err != nil {
				return err
			}
		} else {
			desc := fmt.Sprintf("sell %s %s: %s", q.Shares, req.Side, mk.Title)
			if _, err := applyEntry(ctx, u, w, core.TxTrade, q.Total, desc, &mk.ID, now); err != nil {
				return err
			}
			if err := reducePosition(ctx, u, pos, req.Side, q.Shares, now); err != nil {
				return err
			}
		}

		trade = &core.Trade{
			UserID:     userID,
			MarketID:   mk.ID,
			Type:       req.Type,
			Side:       req.Side,
			Shares:     q.Shares,
			Price:      q.AvgPrice,
			Cost:       q.Total,
			Fee:        q.Fee,
			QYesBefore: mk.QYes,
			QNoBefore:  mk.QNo,
			QYesAfter:  q.NewQYes,
			QNoAfter:   q.NewQNo,
			CreatedAt:  now,
		}
		if err := u.Trades().Insert(ctx, trade); err != nil {
			return err
		}

		mk.QYes = q.NewQYes
		mk.QNo = q.NewQNo
		mk.Volume = mk.Volume.Add(q.Total)
		mk.UpdatedAt = now
		if err := u.Markets().Update(ctx, mk); err != nil {
			return err
		}
		final = mk
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Infow("trade executed",
		"trade", trade.ID, "user", userID, "market", trade.MarketID,
		"type", trade.Type, "side", trade.Side, "shares", trade.Shares, "cost", trade.Cost)

	if e.OnTrade != nil {
		pYes, pNo := e.engine.Price(final.QYes, final.QNo, final.Liquidity)
		e.OnTrade(trade, final, pYes, pNo)
	}
	return trade, nil
}

func (e *Executor) quoteFor(mk *core.Market, req TradeRequest) (*lmsr.Quote, error) {
	switch {
	case req.Type == core.TradeSell:
		return e.engine.QuoteSellShares(mk.QYes, mk.QNo, mk.Liquidity, req.Side, req.Shares)
	case req.ByAmount:
		return e.engine.QuoteBuyAmount(mk.QYes, mk.QNo, mk.Liquidity, req.Side, req.Amount)
	default:
		return e.engine.QuoteBuyShares(mk.QYes, mk.QNo, mk.Liquidity, req.Side, req.Shares)
	}
}

// UserTrades returns the caller's trades, newest first.
func (e *Executor) UserTrades(ctx context.Context, userID uuid.UUID, limit int) ([]core.Trade, error) {
	return e.store.Trades().ListByUser(ctx, userID, limit)
}

// UserPositions returns every position the caller holds.
func (e *Executor) UserPositions(ctx context.Context, userID uuid.UUID) ([]core.Position, error) {
	return e.store.Positions().ListByUser(ctx, userID)
}

// MarketTrades returns a market's trades, newest first.
func (e *Executor) MarketTrades(ctx context.Context, marketID uuid.UUID, limit int) ([]core.Trade, error) {
	return e.store.Trades().ListByMarket(ctx, marketID, limit)
}

// AllTrades returns the global trade log, newest first, for the admin
// surface.
func (e *Executor) AllTrades(ctx context.Context, limit int) ([]core.Trade, error) {
	return e.store.Trades().ListAll(ctx, limit)
}

func tradeable(mk *core.Market, clock util.Clock) error {
	if mk.Status != core.MarketActive {
		return fmt.Errorf("market is %s: %w", mk.Status, core.ErrMarketClosed)
	}
	if !mk.InWindow(clock.Now()) {
		return fmt.Errorf("window %s..%s: %w", mk.StartTime.Format("2006-01-02"), mk.EndTime.Format("2006-01-02"), core.ErrOutOfWindow)
	}
	return nil
}

// upsertPosition applies a buy: create the row on first contact, otherwise
// fold the execution price into the volume-weighted average. The opposite
// side is untouched.
func upsertPosition(ctx context.Context, u *store.Uow, pos *core.Position, userID, marketID uuid.UUID, side core.Side, q *lmsr.Quote, now time.Time) error {
	if pos == nil {
		p := &core.Position{
			ID:        uuid.New(),
			UserID:    userID,
			MarketID:  marketID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if side == core.SideYes {
			p.YesShares = q.Shares
			p.AvgYesPrice = q.AvgPrice
		} else {
			p.NoShares = q.Shares
			p.AvgNoPrice = q.AvgPrice
		}
		return u.Positions().Create(ctx, p)
	}

	old := pos.Shares(side)
	newShares := old.Add(q.Shares)
	newAvg := old.Mul(pos.AvgPrice(side)).Add(q.Shares.Mul(q.AvgPrice)).Div(newShares).Round(6)
	if side == core.SideYes {
		pos.YesShares = newShares
		pos.AvgYesPrice = newAvg
	} else {
		pos.NoShares = newShares
		pos.AvgNoPrice = newAvg
	}
	pos.UpdatedAt = now
	return u.Positions().Update(ctx, pos)
}

// reducePosition applies a sell. The average survives a partial sale and
// resets to zero when the side is emptied.
func reducePosition(ctx context.Context, u *store.Uow, pos *core.Position, side core.Side, shares decimal.Decimal, now time.Time) error {
	remaining := pos.Shares(side).Sub(shares)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if side == core.SideYes {
		pos.YesShares = remaining
		if remaining.IsZero() {
			pos.AvgYesPrice = decimal.Zero
		}
	} else {
		pos.NoShares = remaining
		if remaining.IsZero() {
			pos.AvgNoPrice = decimal.Zero
		}
	}
	pos.UpdatedAt = now
	return u.Positions().Update(ctx, pos)
}
