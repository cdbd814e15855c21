// Package store persists the exchange state in SQLite. Repositories run
// over sqlx.ExtContext so the same query code serves both plain reads on the
// pool and writes inside a unit of work.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/openpredict/openpredict/pkg/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	active        INTEGER NOT NULL DEFAULT 1,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wallets (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	balance        TEXT NOT NULL,
	frozen_balance TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	wallet_id      TEXT NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
	kind           TEXT NOT NULL,
	amount         TEXT NOT NULL,
	balance_before TEXT NOT NULL,
	balance_after  TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	ref_id         TEXT,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wallet_tx_wallet ON wallet_transactions(wallet_id, id);

CREATE TABLE IF NOT EXISTS markets (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	image_url         TEXT NOT NULL DEFAULT '',
	resolution_source TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'draft',
	outcome           TEXT,
	q_yes             TEXT NOT NULL,
	q_no              TEXT NOT NULL,
	liquidity         TEXT NOT NULL,
	volume            TEXT NOT NULL,
	start_time        TIMESTAMP NOT NULL,
	end_time          TIMESTAMP NOT NULL,
	resolved_at       TIMESTAMP,
	settled_at        TIMESTAMP,
	creator_id        TEXT NOT NULL REFERENCES users(id),
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_markets_status ON markets(status);
CREATE INDEX IF NOT EXISTS idx_markets_category ON markets(category);

CREATE TABLE IF NOT EXISTS positions (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	market_id     TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	yes_shares    TEXT NOT NULL,
	no_shares     TEXT NOT NULL,
	avg_yes_price TEXT NOT NULL,
	avg_no_price  TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	UNIQUE(user_id, market_id)
);
CREATE INDEX IF NOT EXISTS idx_positions_market ON positions(market_id);

CREATE TABLE IF NOT EXISTS trades (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      TEXT NOT NULL REFERENCES users(id),
	market_id    TEXT NOT NULL REFERENCES markets(id),
	type         TEXT NOT NULL,
	side         TEXT NOT NULL,
	shares       TEXT NOT NULL,
	price        TEXT NOT NULL,
	cost         TEXT NOT NULL,
	fee          TEXT NOT NULL,
	q_yes_before TEXT NOT NULL,
	q_no_before  TEXT NOT NULL,
	q_yes_after  TEXT NOT NULL,
	q_no_after   TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market_id, id);
CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id, id);
`

// Store owns the SQLite handle. SQLite allows one writer at a time, so all
// write transactions funnel through writeMu and start with BEGIN IMMEDIATE;
// that serializes every wallet/market mutation in one total order.
type Store struct {
	db      *sqlx.DB
	writeMu sync.Mutex
	log     *zap.SugaredLogger
}

// Open opens (creating if needed) the database at path and applies the
// schema. Pass ":memory:" for an in-process test database.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite&_txlock=immediate", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single conn keeps :memory: databases coherent and sidesteps
	// writer/writer contention on file databases
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Uow is a unit of work: every repository obtained from it runs on the same
// SQL transaction, so a trade's wallet, market, position and trade rows
// commit or roll back together.
type Uow struct {
	tx *sqlx.Tx
}

// WithTx runs fn inside a single write transaction. Any error rolls the
// whole unit back; mapped sentinel kinds pass through for errors.Is.
func (s *Store) WithTx(ctx context.Context, fn func(u *Uow) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	if err := fn(&Uow{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Errorw("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

// Read-side repositories over the pool.
func (s *Store) Users() *UserRepo         { return &UserRepo{q: s.db} }
func (s *Store) Wallets() *WalletRepo     { return &WalletRepo{q: s.db} }
func (s *Store) Markets() *MarketRepo     { return &MarketRepo{q: s.db} }
func (s *Store) Positions() *PositionRepo { return &PositionRepo{q: s.db} }
func (s *Store) Trades() *TradeRepo       { return &TradeRepo{q: s.db} }

// Write-side repositories over the transaction.
func (u *Uow) Users() *UserRepo         { return &UserRepo{q: u.tx} }
func (u *Uow) Wallets() *WalletRepo     { return &WalletRepo{q: u.tx} }
func (u *Uow) Markets() *MarketRepo     { return &MarketRepo{q: u.tx} }
func (u *Uow) Positions() *PositionRepo { return &PositionRepo{q: u.tx} }
func (u *Uow) Trades() *TradeRepo       { return &TradeRepo{q: u.tx} }

// mapErr folds driver errors into the core sentinel kinds.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%s: %w", msg, core.ErrConflict)
	}
	return fmt.Errorf("%s: %w", msg, core.ErrInternal)
}
