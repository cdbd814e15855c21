// Package api exposes the exchange over REST and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/exchange"
	"github.com/openpredict/openpredict/pkg/pricelog"
)

// Server wires the exchange services to HTTP routes and the price hub.
type Server struct {
	auth      *exchange.Auth
	ledger    *exchange.Ledger
	markets   *exchange.Markets
	executor  *exchange.Executor
	analytics *exchange.Analytics
	prices    *pricelog.Journal

	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
	srv    *http.Server
}

func NewServer(
	auth *exchange.Auth,
	ledger *exchange.Ledger,
	markets *exchange.Markets,
	executor *exchange.Executor,
	analytics *exchange.Analytics,
	prices *pricelog.Journal,
	log *zap.SugaredLogger,
) *Server {
	s := &Server{
		auth:      auth,
		ledger:    ledger,
		markets:   markets,
		executor:  executor,
		analytics: analytics,
		prices:    prices,
		router:    mux.NewRouter(),
		hub:       NewHub(log),
		log:       log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the price hub so trade callbacks can broadcast on it.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// auth
	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	// public market data
	api.HandleFunc("/markets", s.handleListMarkets).Methods("GET")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}/quote", s.handleQuote).Methods("POST")
	api.HandleFunc("/markets/{id}/trades", s.handleMarketTrades).Methods("GET")
	api.HandleFunc("/markets/{id}/prices", s.handleMarketPrices).Methods("GET")
	api.HandleFunc("/categories", s.handleCategories).Methods("GET")

	// wallet
	api.HandleFunc("/wallet", s.requireAuth(s.handleGetWallet)).Methods("GET")
	api.HandleFunc("/wallet/deposit", s.requireAuth(s.handleDeposit)).Methods("POST")
	api.HandleFunc("/wallet/withdraw", s.requireAuth(s.handleWithdraw)).Methods("POST")
	api.HandleFunc("/wallet/transactions", s.requireAuth(s.handleWalletTransactions)).Methods("GET")

	// trading
	api.HandleFunc("/trades", s.requireAuth(s.handleExecuteTrade)).Methods("POST")
	api.HandleFunc("/trades", s.requireAuth(s.handleMyTrades)).Methods("GET")
	api.HandleFunc("/positions", s.requireAuth(s.handleMyPositions)).Methods("GET")

	// admin
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/stats", s.requireAdmin(s.handleAdminStats)).Methods("GET")
	admin.HandleFunc("/users", s.requireAdmin(s.handleAdminUsers)).Methods("GET")
	admin.HandleFunc("/users/{id}/status", s.requireAdmin(s.handleAdminUserStatus)).Methods("PUT")
	admin.HandleFunc("/users/{id}/role", s.requireAdmin(s.handleAdminUserRole)).Methods("PUT")
	admin.HandleFunc("/wallets", s.requireAdmin(s.handleAdminWallets)).Methods("GET")
	admin.HandleFunc("/wallets/{id}/credit", s.requireAdmin(s.handleAdminCredit)).Methods("POST")
	admin.HandleFunc("/markets", s.requireAdmin(s.handleAdminCreateMarket)).Methods("POST")
	admin.HandleFunc("/markets/{id}", s.requireAdmin(s.handleAdminUpdateMarket)).Methods("PUT")
	admin.HandleFunc("/markets/{id}/status", s.requireAdmin(s.handleAdminMarketStatus)).Methods("PUT")
	admin.HandleFunc("/markets/{id}/resolve", s.requireAdmin(s.handleAdminResolve)).Methods("POST")
	admin.HandleFunc("/trades", s.requireAdmin(s.handleAdminTrades)).Methods("GET")
	admin.HandleFunc("/analytics/overview", s.requireAdmin(s.handleAdminOverview)).Methods("GET")
	admin.HandleFunc("/analytics/markets", s.requireAdmin(s.handleAdminMarketsPnL)).Methods("GET")
	admin.HandleFunc("/analytics/exposure", s.requireAdmin(s.handleAdminExposure)).Methods("GET")
	admin.HandleFunc("/analytics/contributors", s.requireAdmin(s.handleAdminContributors)).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infow("api listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}

// respondCoreError maps the core error kinds to HTTP statuses. Unknown
// errors are logged and surfaced as a generic 500.
func (s *Server) respondCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, core.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidTrade),
		errors.Is(err, core.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, core.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.Is(err, core.ErrInsufficientShares):
		respondError(w, http.StatusUnprocessableEntity, "insufficient_shares", err.Error())
	case errors.Is(err, core.ErrMarketClosed):
		respondError(w, http.StatusConflict, "market_closed", err.Error())
	case errors.Is(err, core.ErrOutOfWindow):
		respondError(w, http.StatusConflict, "out_of_window", err.Error())
	case errors.Is(err, core.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, core.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", "please retry")
	default:
		s.log.Errorw("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
