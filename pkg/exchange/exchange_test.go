package exchange

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/lmsr"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

type testExchange struct {
	store     *store.Store
	engine    *lmsr.Engine
	clock     *util.FixedClock
	auth      *Auth
	ledger    *Ledger
	markets   *Markets
	executor  *Executor
	analytics *Analytics
}

func newTestExchange(t *testing.T) *testExchange {
	t.Helper()

	log := zap.NewNop().Sugar()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &util.FixedClock{T: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	engine := lmsr.New(decimal.NewFromFloat(0.02), decimal.NewFromInt(1000))

	return &testExchange{
		store:     db,
		engine:    engine,
		clock:     clock,
		auth:      NewAuth(db, clock, log),
		ledger:    NewLedger(db, clock, log),
		markets:   NewMarkets(db, engine, decimal.NewFromInt(100), clock, log),
		executor:  NewExecutor(db, engine, clock, log),
		analytics: NewAnalytics(db, clock, log),
	}
}

func (ex *testExchange) user(t *testing.T, name string, funds float64) *core.User {
	t.Helper()
	user, _, err := ex.auth.Register(context.Background(), name+"@example.com", name, "hunter2hunter2")
	require.NoError(t, err)
	if funds > 0 {
		_, err = ex.ledger.Deposit(context.Background(), user.ID, decimal.NewFromFloat(funds))
		require.NoError(t, err)
	}
	return user
}

// activeMarket creates a market whose window brackets the test clock and
// activates it.
func (ex *testExchange) activeMarket(t *testing.T) *MarketView {
	t.Helper()
	admin, err := ex.auth.EnsureAdmin(context.Background(), "admin@example.com", "admin", "change-me-now", decimal.Zero)
	require.NoError(t, err)

	mk, err := ex.markets.Create(context.Background(), admin.ID, CreateInput{
		Title:     "Will it rain tomorrow",
		Category:  "weather",
		StartTime: ex.clock.T.Add(-time.Hour),
		EndTime:   ex.clock.T.Add(72 * time.Hour),
	})
	require.NoError(t, err)

	mk, err = ex.markets.SetStatus(context.Background(), mk.ID, core.MarketActive)
	require.NoError(t, err)
	return mk
}

func (ex *testExchange) buyAmount(t *testing.T, user *core.User, marketID uuid.UUID, side core.Side, amount float64) *core.Trade {
	t.Helper()
	a := decimal.NewFromFloat(amount)
	req, err := NewTradeRequest(marketID, core.TradeBuy, side, &a, nil)
	require.NoError(t, err)
	trade, err := ex.executor.Execute(context.Background(), user.ID, req)
	require.NoError(t, err)
	return trade
}

func (ex *testExchange) sellShares(t *testing.T, user *core.User, marketID uuid.UUID, side core.Side, shares decimal.Decimal) *core.Trade {
	t.Helper()
	req, err := NewTradeRequest(marketID, core.TradeSell, side, nil, &shares)
	require.NoError(t, err)
	trade, err := ex.executor.Execute(context.Background(), user.ID, req)
	require.NoError(t, err)
	return trade
}
