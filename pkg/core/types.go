package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the access level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Side is the outcome a trade is taken on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// TradeType distinguishes buys from sells.
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// Outcome is the resolved result of a market.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// TxKind classifies wallet ledger entries.
type TxKind string

const (
	TxDeposit    TxKind = "deposit"
	TxWithdraw   TxKind = "withdraw"
	TxTrade      TxKind = "trade"
	TxSettlement TxKind = "settlement"
	TxRefund     TxKind = "refund"
)

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketDraft     MarketStatus = "draft"
	MarketActive    MarketStatus = "active"
	MarketSuspended MarketStatus = "suspended"
	MarketResolved  MarketStatus = "resolved"
	MarketCancelled MarketStatus = "cancelled"
)

// transitions is the full lifecycle table. Resolved and cancelled are
// terminal.
var transitions = map[MarketStatus][]MarketStatus{
	MarketDraft:     {MarketActive, MarketCancelled},
	MarketActive:    {MarketSuspended, MarketResolved, MarketCancelled},
	MarketSuspended: {MarketActive, MarketResolved, MarketCancelled},
	MarketResolved:  {},
	MarketCancelled: {},
}

// CanTransition reports whether a market may move from one status to another.
func (s MarketStatus) CanTransition(to MarketStatus) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// User is a registered account. Never destroyed; deactivated instead.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Wallet holds a user's funds. Exactly one per user; balance is mutated
// only through ledger operations that also append a WalletTransaction.
type Wallet struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"userId"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	FrozenBalance decimal.Decimal `db:"frozen_balance" json:"frozenBalance"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// WalletTransaction is an append-only ledger entry. Amount is signed:
// positive credits, negative debits. For consecutive entries on one wallet
// BalanceBefore must equal the previous entry's BalanceAfter.
type WalletTransaction struct {
	ID            int64           `db:"id" json:"id"`
	WalletID      uuid.UUID       `db:"wallet_id" json:"walletId"`
	Kind          TxKind          `db:"kind" json:"kind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	Description   string          `db:"description" json:"description"`
	RefID         *uuid.UUID      `db:"ref_id" json:"refId,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Market is a binary-outcome market priced by the LMSR. QYes/QNo are the
// cumulative shares held by users; Liquidity is the b parameter, fixed at
// creation. Outcome and ResolvedAt are set exactly once, on resolution.
type Market struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description"`
	Category         string          `db:"category" json:"category"`
	ImageURL         string          `db:"image_url" json:"imageUrl"`
	ResolutionSource string          `db:"resolution_source" json:"resolutionSource"`
	Status           MarketStatus    `db:"status" json:"status"`
	Outcome          *Outcome        `db:"outcome" json:"outcome,omitempty"`
	QYes             decimal.Decimal `db:"q_yes" json:"qYes"`
	QNo              decimal.Decimal `db:"q_no" json:"qNo"`
	Liquidity        decimal.Decimal `db:"liquidity" json:"liquidity"`
	Volume           decimal.Decimal `db:"volume" json:"volume"`
	StartTime        time.Time       `db:"start_time" json:"startTime"`
	EndTime          time.Time       `db:"end_time" json:"endTime"`
	ResolvedAt       *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`
	SettledAt        *time.Time      `db:"settled_at" json:"settledAt,omitempty"`
	CreatorID        uuid.UUID       `db:"creator_id" json:"creatorId"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Q returns the outstanding shares on the given side.
func (m *Market) Q(side Side) decimal.Decimal {
	if side == SideYes {
		return m.QYes
	}
	return m.QNo
}

// InWindow reports whether now falls inside the trading window.
func (m *Market) InWindow(now time.Time) bool {
	return !now.Before(m.StartTime) && !now.After(m.EndTime)
}

// Position is the per-(user, market) holding of YES and NO shares with
// their volume-weighted average purchase prices. Created lazily on first
// buy; avg price resets to zero when the side is fully sold.
type Position struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"userId"`
	MarketID    uuid.UUID       `db:"market_id" json:"marketId"`
	YesShares   decimal.Decimal `db:"yes_shares" json:"yesShares"`
	NoShares    decimal.Decimal `db:"no_shares" json:"noShares"`
	AvgYesPrice decimal.Decimal `db:"avg_yes_price" json:"avgYesPrice"`
	AvgNoPrice  decimal.Decimal `db:"avg_no_price" json:"avgNoPrice"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Shares returns the held shares on the given side.
func (p *Position) Shares(side Side) decimal.Decimal {
	if side == SideYes {
		return p.YesShares
	}
	return p.NoShares
}

// AvgPrice returns the average purchase price on the given side.
func (p *Position) AvgPrice(side Side) decimal.Decimal {
	if side == SideYes {
		return p.AvgYesPrice
	}
	return p.AvgNoPrice
}

// CostBasis is the money paid for the currently held shares on both sides.
func (p *Position) CostBasis() decimal.Decimal {
	return p.YesShares.Mul(p.AvgYesPrice).Add(p.NoShares.Mul(p.AvgNoPrice))
}

// Trade is an append-only execution record. Cost is the money that changed
// hands: fee-inclusive for buys, net of fee for sells. The before/after q
// snapshots form the audit chain reconciling AMM state evolution.
type Trade struct {
	ID         int64           `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"userId"`
	MarketID   uuid.UUID       `db:"market_id" json:"marketId"`
	Type       TradeType       `db:"type" json:"type"`
	Side       Side            `db:"side" json:"side"`
	Shares     decimal.Decimal `db:"shares" json:"shares"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Cost       decimal.Decimal `db:"cost" json:"cost"`
	Fee        decimal.Decimal `db:"fee" json:"fee"`
	QYesBefore decimal.Decimal `db:"q_yes_before" json:"qYesBefore"`
	QNoBefore  decimal.Decimal `db:"q_no_before" json:"qNoBefore"`
	QYesAfter  decimal.Decimal `db:"q_yes_after" json:"qYesAfter"`
	QNoAfter   decimal.Decimal `db:"q_no_after" json:"qNoAfter"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}
