package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

// Auth manages registration, login and bearer-token sessions. Tokens are
// opaque uuids held in memory; a restart logs everyone out.
type Auth struct {
	store *store.Store
	clock util.Clock
	log   *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]uuid.UUID // token -> user id
}

func NewAuth(s *store.Store, clock util.Clock, log *zap.SugaredLogger) *Auth {
	return &Auth{
		store:    s,
		clock:    clock,
		log:      log,
		sessions: make(map[string]uuid.UUID),
	}
}

// Register creates a user and their wallet in one transaction. Duplicate
// email or username surfaces as Conflict.
func (a *Auth) Register(ctx context.Context, email, username, password string) (*core.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("email required: %w", core.ErrValidation)
	}
	if username == "" {
		return nil, "", fmt.Errorf("username required: %w", core.ErrValidation)
	}
	if len(password) < 8 {
		return nil, "", fmt.Errorf("password too short: %w", core.ErrValidation)
	}

	user, err := a.createUser(ctx, email, username, password, core.RoleUser, decimal.Zero)
	if err != nil {
		return nil, "", err
	}

	token := a.issueToken(user.ID)
	a.log.Infow("user registered", "user", user.ID, "username", username)
	return user, token, nil
}

// Login verifies credentials and issues a token. Deactivated accounts are
// refused.
func (a *Auth) Login(ctx context.Context, email, password string) (*core.User, string, error) {
	user, err := a.store.Users().GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, "", fmt.Errorf("bad credentials: %w", core.ErrUnauthorized)
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("bad credentials: %w", core.ErrUnauthorized)
	}
	if !user.Active {
		return nil, "", fmt.Errorf("account deactivated: %w", core.ErrForbidden)
	}

	token := a.issueToken(user.ID)
	a.log.Infow("user logged in", "user", user.ID)
	return user, token, nil
}

// Authenticate resolves a bearer token to its (fresh) user record.
func (a *Auth) Authenticate(ctx context.Context, token string) (*core.User, error) {
	a.mu.RLock()
	userID, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown token: %w", core.ErrUnauthorized)
	}

	user, err := a.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session user: %w", core.ErrUnauthorized)
	}
	if !user.Active {
		return nil, fmt.Errorf("account deactivated: %w", core.ErrForbidden)
	}
	return user, nil
}

func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

func (a *Auth) issueToken(userID uuid.UUID) string {
	token := uuid.NewString()
	a.mu.Lock()
	a.sessions[token] = userID
	a.mu.Unlock()
	return token
}

// EnsureAdmin seeds the bootstrap administrator on first start. Existing
// users (matched by email) are left untouched. A positive credit funds the
// admin wallet so the platform can be exercised immediately.
func (a *Auth) EnsureAdmin(ctx context.Context, email, username, password string, credit decimal.Decimal) (*core.User, error) {
	existing, err := a.store.Users().GetByEmail(ctx, strings.ToLower(email))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	user, err := a.createUser(ctx, strings.ToLower(email), username, password, core.RoleAdmin, credit)
	if err != nil {
		return nil, err
	}
	a.log.Infow("admin seeded", "user", user.ID, "username", username)
	return user, nil
}

func (a *Auth) createUser(ctx context.Context, email, username, password string, role core.Role, credit decimal.Decimal) (*core.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := a.clock.Now()
	user := &core.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	wallet := &core.Wallet{
		ID:            uuid.New(),
		UserID:        user.ID,
		Balance:       decimal.Zero,
		FrozenBalance: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = a.store.WithTx(ctx, func(u *store.Uow) error {
		if err := u.Users().Create(ctx, user); err != nil {
			return err
		}
		if err := u.Wallets().Create(ctx, wallet); err != nil {
			return err
		}
		if credit.IsPositive() {
			if _, err := applyEntry(ctx, u, wallet, core.TxDeposit, credit, "bootstrap credit", nil, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Users returns all users, for the admin surface.
func (a *Auth) Users(ctx context.Context) ([]core.User, error) {
	return a.store.Users().List(ctx)
}

// SetUserActive flips a user's active flag.
func (a *Auth) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) (*core.User, error) {
	var out *core.User
	err := a.store.WithTx(ctx, func(u *store.Uow) error {
		user, err := u.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.Active = active
		user.UpdatedAt = a.clock.Now()
		if err := u.Users().Update(ctx, user); err != nil {
			return err
		}
		out = user
		return nil
	})
	return out, err
}

// SetUserRole changes a user's role.
func (a *Auth) SetUserRole(ctx context.Context, userID uuid.UUID, role core.Role) (*core.User, error) {
	if role != core.RoleUser && role != core.RoleAdmin {
		return nil, fmt.Errorf("unknown role %q: %w", role, core.ErrValidation)
	}
	var out *core.User
	err := a.store.WithTx(ctx, func(u *store.Uow) error {
		user, err := u.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.Role = role
		user.UpdatedAt = a.clock.Now()
		if err := u.Users().Update(ctx, user); err != nil {
			return err
		}
		out = user
		return nil
	})
	return out, err
}
