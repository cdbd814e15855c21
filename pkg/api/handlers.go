package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/exchange"
	"github.com/openpredict/openpredict/pkg/store"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad %s: %w", name, core.ErrValidation)
	}
	return id, nil
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	user, token, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, AuthResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	user, token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, AuthResponse{Token: token, User: user})
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	f := store.MarketFilter{
		Status:   core.MarketStatus(r.URL.Query().Get("status")),
		Category: r.URL.Query().Get("category"),
	}
	markets, err := s.markets.List(r.Context(), f)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, markets)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	market, err := s.markets.Get(r.Context(), id)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, market)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.markets.Categories(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, categories)
}

// tradeRequest folds the wire body into the executor's tagged form. The
// path market id wins over any id in the body.
func tradeRequest(r *http.Request, marketID uuid.UUID) (exchange.TradeRequest, error) {
	var body TradeRequestBody
	if err := decodeJSON(r, &body); err != nil {
		return exchange.TradeRequest{}, fmt.Errorf("bad body: %w", core.ErrInvalidTrade)
	}
	if marketID == uuid.Nil {
		id, err := uuid.Parse(body.MarketID)
		if err != nil {
			return exchange.TradeRequest{}, fmt.Errorf("bad marketId: %w", core.ErrInvalidTrade)
		}
		marketID = id
	}
	return exchange.NewTradeRequest(marketID, body.Type, body.Side, body.Amount, body.Shares)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	req, err := tradeRequest(r, id)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	quote, err := s.executor.Quote(r.Context(), req)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, quote)
}

func (s *Server) handleMarketTrades(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	trades, err := s.executor.MarketTrades(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, trades)
}

func (s *Server) handleMarketPrices(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	ticks, err := s.prices.Recent(id, queryLimit(r, 100))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, ticks)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request, user *core.User) {
	wallet, err := s.ledger.Get(r.Context(), user.ID)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, wallet)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, user *core.User) {
	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	tx, err := s.ledger.Deposit(r.Context(), user.ID, req.Amount)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, tx)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, user *core.User) {
	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	tx, err := s.ledger.Withdraw(r.Context(), user.ID, req.Amount)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, tx)
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request, user *core.User) {
	txs, err := s.ledger.Transactions(r.Context(), user.ID, queryLimit(r, 50))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, txs)
}

func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request, user *core.User) {
	req, err := tradeRequest(r, uuid.Nil)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	trade, err := s.executor.Execute(r.Context(), user.ID, req)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, trade)
}

func (s *Server) handleMyTrades(w http.ResponseWriter, r *http.Request, user *core.User) {
	trades, err := s.executor.UserTrades(r.Context(), user.ID, queryLimit(r, 50))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, trades)
}

func (s *Server) handleMyPositions(w http.ResponseWriter, r *http.Request, user *core.User) {
	positions, err := s.executor.UserPositions(r.Context(), user.ID)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, positions)
}
