package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openpredict/openpredict/pkg/core"
)

// authedHandler is a handler that runs with a resolved caller identity.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *core.User)

func (s *Server) bearerUser(r *http.Request) (*core.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing authorization header: %w", core.ErrUnauthorized)
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("malformed authorization header: %w", core.ErrUnauthorized)
	}
	return s.auth.Authenticate(r.Context(), token)
}

// requireAuth resolves the bearer token before running the handler.
func (s *Server) requireAuth(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.bearerUser(r)
		if err != nil {
			s.respondCoreError(w, err)
			return
		}
		h(w, r, user)
	}
}

// requireAdmin additionally demands the admin role.
func (s *Server) requireAdmin(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.bearerUser(r)
		if err != nil {
			s.respondCoreError(w, err)
			return
		}
		if user.Role != core.RoleAdmin {
			s.respondCoreError(w, fmt.Errorf("admin role required: %w", core.ErrForbidden))
			return
		}
		h(w, r, user)
	}
}
