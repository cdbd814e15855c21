package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/lmsr"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

// Markets owns market records and their lifecycle. Resolution settles
// positions inline, within the same transaction that flips the status.
type Markets struct {
	store  *store.Store
	engine *lmsr.Engine
	clock  util.Clock
	log    *zap.SugaredLogger

	liquidityMin decimal.Decimal
}

func NewMarkets(s *store.Store, engine *lmsr.Engine, liquidityMin decimal.Decimal, clock util.Clock, log *zap.SugaredLogger) *Markets {
	return &Markets{store: s, engine: engine, clock: clock, log: log, liquidityMin: liquidityMin}
}

// MarketView is a market with its live prices attached.
type MarketView struct {
	core.Market
	PriceYes decimal.Decimal `json:"priceYes"`
	PriceNo  decimal.Decimal `json:"priceNo"`
}

func (m *Markets) view(mk core.Market) MarketView {
	pYes, pNo := m.engine.Price(mk.QYes, mk.QNo, mk.Liquidity)
	return MarketView{Market: mk, PriceYes: pYes, PriceNo: pNo}
}

// CreateInput carries the admin-supplied market fields. Zero Liquidity
// falls back to the engine default.
type CreateInput struct {
	Title            string
	Description      string
	Category         string
	ImageURL         string
	ResolutionSource string
	Liquidity        decimal.Decimal
	StartTime        time.Time
	EndTime          time.Time
}

// Create makes a draft market with an empty pool.
func (m *Markets) Create(ctx context.Context, creatorID uuid.UUID, in CreateInput) (*MarketView, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title required: %w", core.ErrValidation)
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, fmt.Errorf("end_time must follow start_time: %w", core.ErrValidation)
	}
	b := in.Liquidity
	if b.IsZero() {
		b = m.engine.DefaultB
	}
	if b.LessThan(m.liquidityMin) {
		return nil, fmt.Errorf("liquidity %s below minimum %s: %w", b, m.liquidityMin, core.ErrValidation)
	}

	now := m.clock.Now()
	mk := &core.Market{
		ID:               uuid.New(),
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		ImageURL:         in.ImageURL,
		ResolutionSource: in.ResolutionSource,
		Status:           core.MarketDraft,
		QYes:             decimal.Zero,
		QNo:              decimal.Zero,
		Liquidity:        b,
		Volume:           decimal.Zero,
		StartTime:        in.StartTime,
		EndTime:          in.EndTime,
		CreatorID:        creatorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := m.store.WithTx(ctx, func(u *store.Uow) error {
		return u.Markets().Create(ctx, mk)
	})
	if err != nil {
		return nil, err
	}
	m.log.Infow("market created", "market", mk.ID, "title", mk.Title, "liquidity", b)
	v := m.view(*mk)
	return &v, nil
}

// UpdateInput carries the editable fields. Nil pointers leave the field
// unchanged; liquidity and the trading window only move while still draft.
type UpdateInput struct {
	Title            *string
	Description      *string
	Category         *string
	ImageURL         *string
	ResolutionSource *string
	Liquidity        *decimal.Decimal
	StartTime        *time.Time
	EndTime          *time.Time
}

func (m *Markets) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*MarketView, error) {
	var out MarketView
	err := m.store.WithTx(ctx, func(u *store.Uow) error {
		mk, err := u.Markets().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if mk.Status == core.MarketResolved || mk.Status == core.MarketCancelled {
			return fmt.Errorf("market %s is terminal: %w", id, core.ErrInvalidTransition)
		}

		if in.Title != nil {
			if *in.Title == "" {
				return fmt.Errorf("title required: %w", core.ErrValidation)
			}
			mk.Title = *in.Title
		}
		if in.Description != nil {
			mk.Description = *in.Description
		}
		if in.Category != nil {
			mk.Category = *in.Category
		}
		if in.ImageURL != nil {
			mk.ImageURL = *in.ImageURL
		}
		if in.ResolutionSource != nil {
			mk.ResolutionSource = *in.ResolutionSource
		}
		if in.Liquidity != nil || in.StartTime != nil || in.EndTime != nil {
			if mk.Status != core.MarketDraft {
				return fmt.Errorf("pool parameters frozen after draft: %w", core.ErrValidation)
			}
			if in.Liquidity != nil {
				if in.Liquidity.LessThan(m.liquidityMin) {
					return fmt.Errorf("liquidity %s below minimum %s: %w", in.Liquidity, m.liquidityMin, core.ErrValidation)
				}
				mk.Liquidity = *in.Liquidity
			}
			if in.StartTime != nil {
				mk.StartTime = *in.StartTime
			}
			if in.EndTime != nil {
				mk.EndTime = *in.EndTime
			}
			if !mk.EndTime.After(mk.StartTime) {
				return fmt.Errorf("end_time must follow start_time: %w", core.ErrValidation)
			}
		}

		mk.UpdatedAt = m.clock.Now()
		if err := u.Markets().Update(ctx, mk); err != nil {
			return err
		}
		out = m.view(*mk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns one market with live prices.
func (m *Markets) Get(ctx context.Context, id uuid.UUID) (*MarketView, error) {
	mk, err := m.store.Markets().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := m.view(*mk)
	return &v, nil
}

// List returns markets matching the filter, with live prices.
func (m *Markets) List(ctx context.Context, f store.MarketFilter) ([]MarketView, error) {
	mks, err := m.store.Markets().List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]MarketView, 0, len(mks))
	for _, mk := range mks {
		out = append(out, m.view(mk))
	}
	return out, nil
}

func (m *Markets) Categories(ctx context.Context) ([]string, error) {
	return m.store.Markets().Categories(ctx)
}

// SetStatus applies a lifecycle move other than resolve: activate, suspend
// or cancel. Cancelling a traded market refunds every holder their cost
// basis.
func (m *Markets) SetStatus(ctx context.Context, id uuid.UUID, to core.MarketStatus) (*MarketView, error) {
	if to == core.MarketResolved {
		return nil, fmt.Errorf("use resolve: %w", core.ErrInvalidTransition)
	}
	var out MarketView
	err := m.store.WithTx(ctx, func(u *store.Uow) error {
		mk, err := u.Markets().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !mk.Status.CanTransition(to) {
			return fmt.Errorf("%s -> %s: %w", mk.Status, to, core.ErrInvalidTransition)
		}

		now := m.clock.Now()
		if to == core.MarketCancelled {
			if err := refundAll(ctx, u, mk, now); err != nil {
				return err
			}
		}
		mk.Status = to
		mk.UpdatedAt = now
		if err := u.Markets().Update(ctx, mk); err != nil {
			return err
		}
		out = m.view(*mk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Infow("market status changed", "market", id, "status", to)
	return &out, nil
}

// Resolve flips an active or suspended market to resolved with the given
// outcome and settles every winning position in the same transaction.
func (m *Markets) Resolve(ctx context.Context, id uuid.UUID, outcome core.Outcome) (*MarketView, int, error) {
	if outcome != core.OutcomeYes && outcome != core.OutcomeNo {
		return nil, 0, fmt.Errorf("unknown outcome %q: %w", outcome, core.ErrValidation)
	}

	var (
		out     MarketView
		settled int
	)
	err := m.store.WithTx(ctx, func(u *store.Uow) error {
		mk, err := u.Markets().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !mk.Status.CanTransition(core.MarketResolved) {
			return fmt.Errorf("%s -> resolved: %w", mk.Status, core.ErrInvalidTransition)
		}

		now := m.clock.Now()
		mk.Status = core.MarketResolved
		mk.Outcome = &outcome
		mk.ResolvedAt = &now
		mk.UpdatedAt = now

		settled, err = settle(ctx, u, mk, now)
		if err != nil {
			return err
		}
		if err := u.Markets().Update(ctx, mk); err != nil {
			return err
		}
		out = m.view(*mk)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	m.log.Infow("market resolved", "market", id, "outcome", outcome, "settled", settled)
	return &out, settled, nil
}
