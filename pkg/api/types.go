package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openpredict/openpredict/pkg/core"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TradeRequestBody is the wire shape of a trade or quote: exactly one of
// amount or shares for buys; shares for sells.
type TradeRequestBody struct {
	MarketID string           `json:"marketId"`
	Type     core.TradeType   `json:"type"`
	Side     core.Side        `json:"side"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Shares   *decimal.Decimal `json:"shares,omitempty"`
}

type CreateMarketRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	ImageURL         string          `json:"imageUrl"`
	ResolutionSource string          `json:"resolutionSource"`
	Liquidity        decimal.Decimal `json:"liquidity"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          time.Time       `json:"endTime"`
}

type UpdateMarketRequest struct {
	Title            *string          `json:"title,omitempty"`
	Description      *string          `json:"description,omitempty"`
	Category         *string          `json:"category,omitempty"`
	ImageURL         *string          `json:"imageUrl,omitempty"`
	ResolutionSource *string          `json:"resolutionSource,omitempty"`
	Liquidity        *decimal.Decimal `json:"liquidity,omitempty"`
	StartTime        *time.Time       `json:"startTime,omitempty"`
	EndTime          *time.Time       `json:"endTime,omitempty"`
}

type StatusRequest struct {
	Status core.MarketStatus `json:"status"`
}

type ResolveRequest struct {
	Outcome core.Outcome `json:"outcome"`
}

type UserStatusRequest struct {
	Active bool `json:"active"`
}

type UserRoleRequest struct {
	Role core.Role `json:"role"`
}

type CreditRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// WSSubscribeRequest is the client->server websocket control message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // subscribe | unsubscribe
	Channels []string `json:"channels"`
}

// PriceUpdate is pushed on "prices:<marketID>" after every trade.
type PriceUpdate struct {
	Type     string          `json:"type"` // "price"
	MarketID string          `json:"marketId"`
	PriceYes decimal.Decimal `json:"priceYes"`
	PriceNo  decimal.Decimal `json:"priceNo"`
	Volume   decimal.Decimal `json:"volume"`
	Ts       int64           `json:"ts"`
}
