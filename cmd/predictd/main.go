// predictd is the prediction-market exchange daemon: SQLite-backed
// transactional core, Pebble price journal, REST + WebSocket API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openpredict/openpredict/params"
	"github.com/openpredict/openpredict/pkg/api"
	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/exchange"
	"github.com/openpredict/openpredict/pkg/lmsr"
	"github.com/openpredict/openpredict/pkg/pricelog"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Server.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Server.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Fatalw("predictd exited", "error", err)
	}
}

func run(cfg params.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Server.DBPath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	prices, err := pricelog.Open(cfg.Server.PriceLogPath)
	if err != nil {
		return err
	}
	defer prices.Close()

	clock := util.RealClock{}
	engine := lmsr.New(cfg.Exchange.FeeRate, cfg.Exchange.LiquidityDefault)

	auth := exchange.NewAuth(db, clock, log)
	ledger := exchange.NewLedger(db, clock, log)
	markets := exchange.NewMarkets(db, engine, cfg.Exchange.LiquidityMin, clock, log)
	executor := exchange.NewExecutor(db, engine, clock, log)
	analytics := exchange.NewAnalytics(db, clock, log)

	if _, err := auth.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.BootstrapCredit); err != nil {
		return err
	}

	server := api.NewServer(auth, ledger, markets, executor, analytics, prices, log)

	// every committed trade journals a tick and pushes a live price update
	executor.OnTrade = func(t *core.Trade, m *core.Market, pYes, pNo decimal.Decimal) {
		tick := pricelog.Tick{
			MarketID: m.ID,
			PriceYes: pYes,
			PriceNo:  pNo,
			Volume:   m.Volume,
			Ts:       t.CreatedAt,
		}
		if err := prices.Append(tick); err != nil {
			log.Errorw("price tick append", "market", m.ID, "error", err)
		}
		server.Hub().BroadcastToChannel("prices:"+m.ID.String(), api.PriceUpdate{
			Type:     "price",
			MarketID: m.ID.String(),
			PriceYes: pYes,
			PriceNo:  pNo,
			Volume:   m.Volume,
			Ts:       t.CreatedAt.UnixMilli(),
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(cfg.Server.APIAddr)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Infow("predictd started", "api", cfg.Server.APIAddr, "db", cfg.Server.DBPath)
	return g.Wait()
}
