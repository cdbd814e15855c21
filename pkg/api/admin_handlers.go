package api

import (
	"net/http"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/exchange"
)

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request, _ *core.User) {
	stats, err := s.analytics.Dashboard(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ *core.User) {
	users, err := s.auth.Users(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, users)
}

func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request, _ *core.User) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	var req UserStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	user, err := s.auth.SetUserActive(r.Context(), id, req.Active)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, user)
}

func (s *Server) handleAdminUserRole(w http.ResponseWriter, r *http.Request, _ *core.User) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	var req UserRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	user, err := s.auth.SetUserRole(r.Context(), id, req.Role)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, user)
}

func (s *Server) handleAdminWallets(w http.ResponseWriter, r *http.Request, _ *core.User) {
	wallets, err := s.ledger.ListAll(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, wallets)
}

func (s *Server) handleAdminCredit(w http.ResponseWriter, r *http.Request, _ *core.User) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	var req CreditRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	tx, err := s.ledger.AdminCredit(r.Context(), id, req.Amount, req.Description)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, tx)
}

func (s *Server) handleAdminCreateMarket(w http.ResponseWriter, r *http.Request, admin *core.User) {
	var req CreateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	market, err := s.markets.Create(r.Context(), admin.ID, exchange.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		ImageURL:         req.ImageURL,
		ResolutionSource: req.ResolutionSource,
		Liquidity:        req.Liquidity,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
	})
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, market)
}

func (s *Server) handleAdminUpdateMarket(w http.ResponseWriter, r *http.Request, _ *core.User) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	var req UpdateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	market, err := s.markets.Update(r.Context(), id, exchange.UpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		ImageURL:         req.ImageURL,
		ResolutionSource: req.ResolutionSource,
		Liquidity:        req.Liquidity,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
	})
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, market)
}

func (s *Server) handleAdminMarketStatus(w http.ResponseWriter, r *http.Request, _ *core.User) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	market, err := s.markets.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, market)
}

func (s *Server) handleAdminResolve(w http.ResponseWriter, r *http.Request, _ *core.User) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	market, settled, err := s.markets.Resolve(r.Context(), id, req.Outcome)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{"market": market, "settled": settled})
}

func (s *Server) handleAdminTrades(w http.ResponseWriter, r *http.Request, _ *core.User) {
	trades, err := s.executor.AllTrades(r.Context(), queryLimit(r, 100))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, trades)
}

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request, _ *core.User) {
	overview, err := s.analytics.PlatformOverview(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, overview)
}

func (s *Server) handleAdminMarketsPnL(w http.ResponseWriter, r *http.Request, _ *core.User) {
	pnl, err := s.analytics.MarketsPnL(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, pnl)
}

func (s *Server) handleAdminExposure(w http.ResponseWriter, r *http.Request, _ *core.User) {
	exposure, err := s.analytics.Exposure(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, exposure)
}

func (s *Server) handleAdminContributors(w http.ResponseWriter, r *http.Request, _ *core.User) {
	contributors, err := s.analytics.TopContributors(r.Context(), queryLimit(r, 10))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, contributors)
}
