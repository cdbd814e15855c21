package exchange

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpredict/openpredict/pkg/core"
	"github.com/openpredict/openpredict/pkg/store"
	"github.com/openpredict/openpredict/pkg/util"
)

// Analytics derives platform risk and P&L figures from the append-only
// trade and position logs. Everything here is read-only full scans;
// aggregation happens in decimal, never in SQL floats.
type Analytics struct {
	store *store.Store
	clock util.Clock
	log   *zap.SugaredLogger
}

func NewAnalytics(s *store.Store, clock util.Clock, log *zap.SugaredLogger) *Analytics {
	return &Analytics{store: s, clock: clock, log: log}
}

// FeeWindows partitions collected fees by calendar window. Weeks start
// Sunday 00:00 UTC; all windows are UTC.
type FeeWindows struct {
	Today     decimal.Decimal `json:"today"`
	ThisWeek  decimal.Decimal `json:"thisWeek"`
	ThisMonth decimal.Decimal `json:"thisMonth"`
	AllTime   decimal.Decimal `json:"allTime"`
}

// MarketPnL reconciles one market's AMM cash flows.
type MarketPnL struct {
	MarketID         uuid.UUID         `json:"marketId"`
	Title            string            `json:"title"`
	Status           core.MarketStatus `json:"status"`
	BuyVolume        decimal.Decimal   `json:"buyVolume"`        // net cash received, fees excluded
	SellVolume       decimal.Decimal   `json:"sellVolume"`       // cash paid out to sellers
	Fees             decimal.Decimal   `json:"fees"`             // fees collected on this market
	SettlementPayout decimal.Decimal   `json:"settlementPayout"` // winning shares, resolved markets only
	PnL              decimal.Decimal   `json:"pnl"`
}

// ExposureEntry is a market's worst-case payout obligation.
type ExposureEntry struct {
	MarketID uuid.UUID         `json:"marketId"`
	Title    string            `json:"title"`
	Status   core.MarketStatus `json:"status"`
	Exposure decimal.Decimal   `json:"exposure"`
}

// ExposureReport sums unresolved obligations, worst markets first.
type ExposureReport struct {
	Total   decimal.Decimal `json:"total"`
	Markets []ExposureEntry `json:"markets"`
}

// Contributor is a user ranked by the fees their trading generated.
type Contributor struct {
	UserID   uuid.UUID       `json:"userId"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Fees     decimal.Decimal `json:"fees"`
	Volume   decimal.Decimal `json:"volume"`
	Trades   int             `json:"trades"`
}

// Overview is the platform-level profit picture.
type Overview struct {
	Fees           FeeWindows      `json:"fees"`
	ResolvedPnL    decimal.Decimal `json:"resolvedPnl"`
	TotalCashFlow  decimal.Decimal `json:"totalCashFlow"` // buy volume - sell volume, all markets
	PlatformProfit decimal.Decimal `json:"platformProfit"`
}

// DashboardStats backs the admin landing page.
type DashboardStats struct {
	Users         int             `json:"users"`
	Markets       int             `json:"markets"`
	ActiveMarkets int             `json:"activeMarkets"`
	Trades        int             `json:"trades"`
	TotalVolume   decimal.Decimal `json:"totalVolume"`
	TotalFees     decimal.Decimal `json:"totalFees"`
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// FeeRevenue sums trade fees into the calendar windows.
func (a *Analytics) FeeRevenue(ctx context.Context) (*FeeWindows, error) {
	trades, err := a.store.Trades().ListAll(ctx, 0)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	day, week, month := dayStart(now), weekStart(now), monthStart(now)

	out := &FeeWindows{
		Today: decimal.Zero, ThisWeek: decimal.Zero, ThisMonth: decimal.Zero, AllTime: decimal.Zero,
	}
	for _, t := range trades {
		out.AllTime = out.AllTime.Add(t.Fee)
		ts := t.CreatedAt.UTC()
		if !ts.Before(day) {
			out.Today = out.Today.Add(t.Fee)
		}
		if !ts.Before(week) {
			out.ThisWeek = out.ThisWeek.Add(t.Fee)
		}
		if !ts.Before(month) {
			out.ThisMonth = out.ThisMonth.Add(t.Fee)
		}
	}
	return out, nil
}

// MarketsPnL reconciles every market: cash in from buys (net of fee), cash
// out to sellers, and the settlement obligation paid on resolution.
func (a *Analytics) MarketsPnL(ctx context.Context) ([]MarketPnL, error) {
	markets, err := a.store.Markets().List(ctx, store.MarketFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]MarketPnL, 0, len(markets))
	for _, mk := range markets {
		row, err := a.marketPnL(ctx, &mk)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, nil
}

func (a *Analytics) marketPnL(ctx context.Context, mk *core.Market) (*MarketPnL, error) {
	trades, err := a.store.Trades().ListByMarketAsc(ctx, mk.ID)
	if err != nil {
		return nil, err
	}

	row := &MarketPnL{
		MarketID: mk.ID, Title: mk.Title, Status: mk.Status,
		BuyVolume: decimal.Zero, SellVolume: decimal.Zero,
		Fees: decimal.Zero, SettlementPayout: decimal.Zero,
	}
	for _, t := range trades {
		row.Fees = row.Fees.Add(t.Fee)
		if t.Type == core.TradeBuy {
			row.BuyVolume = row.BuyVolume.Add(t.Cost.Sub(t.Fee))
		} else {
			row.SellVolume = row.SellVolume.Add(t.Cost)
		}
	}

	if mk.Status == core.MarketResolved && mk.Outcome != nil {
		positions, err := a.store.Positions().ListByMarket(ctx, mk.ID)
		if err != nil {
			return nil, err
		}
		winning := core.SideYes
		if *mk.Outcome == core.OutcomeNo {
			winning = core.SideNo
		}
		for _, p := range positions {
			row.SettlementPayout = row.SettlementPayout.Add(p.Shares(winning))
		}
	}

	row.PnL = row.BuyVolume.Sub(row.SellVolume).Sub(row.SettlementPayout)
	return row, nil
}

// Exposure computes the worst-case payout across unresolved markets:
// max of total YES and total NO shares held per market.
func (a *Analytics) Exposure(ctx context.Context) (*ExposureReport, error) {
	markets, err := a.store.Markets().List(ctx, store.MarketFilter{})
	if err != nil {
		return nil, err
	}

	report := &ExposureReport{Total: decimal.Zero}
	for _, mk := range markets {
		switch mk.Status {
		case core.MarketDraft, core.MarketActive, core.MarketSuspended:
		default:
			continue
		}
		positions, err := a.store.Positions().ListByMarket(ctx, mk.ID)
		if err != nil {
			return nil, err
		}
		yes, no := decimal.Zero, decimal.Zero
		for _, p := range positions {
			yes = yes.Add(p.YesShares)
			no = no.Add(p.NoShares)
		}
		exposure := decimal.Max(yes, no)
		if exposure.IsZero() {
			continue
		}
		report.Total = report.Total.Add(exposure)
		report.Markets = append(report.Markets, ExposureEntry{
			MarketID: mk.ID, Title: mk.Title, Status: mk.Status, Exposure: exposure,
		})
	}

	sort.Slice(report.Markets, func(i, j int) bool {
		return report.Markets[i].Exposure.GreaterThan(report.Markets[j].Exposure)
	})
	return report, nil
}

// TopContributors ranks users by fees generated, descending, top n.
func (a *Analytics) TopContributors(ctx context.Context, n int) ([]Contributor, error) {
	trades, err := a.store.Trades().ListAll(ctx, 0)
	if err != nil {
		return nil, err
	}

	byUser := make(map[uuid.UUID]*Contributor)
	for _, t := range trades {
		c, ok := byUser[t.UserID]
		if !ok {
			c = &Contributor{UserID: t.UserID, Fees: decimal.Zero, Volume: decimal.Zero}
			byUser[t.UserID] = c
		}
		c.Fees = c.Fees.Add(t.Fee)
		c.Volume = c.Volume.Add(t.Cost)
		c.Trades++
	}

	out := make([]Contributor, 0, len(byUser))
	for _, c := range byUser {
		user, err := a.store.Users().GetByID(ctx, c.UserID)
		if err == nil {
			c.Username = user.Username
			c.Email = user.Email
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fees.GreaterThan(out[j].Fees) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// PlatformOverview combines fee revenue with resolved AMM P&L:
// total profit = fees + pnl over resolved markets.
func (a *Analytics) PlatformOverview(ctx context.Context) (*Overview, error) {
	fees, err := a.FeeRevenue(ctx)
	if err != nil {
		return nil, err
	}
	pnls, err := a.MarketsPnL(ctx)
	if err != nil {
		return nil, err
	}

	resolved := decimal.Zero
	cashFlow := decimal.Zero
	for _, row := range pnls {
		cashFlow = cashFlow.Add(row.BuyVolume).Sub(row.SellVolume)
		if row.Status == core.MarketResolved {
			resolved = resolved.Add(row.PnL)
		}
	}

	return &Overview{
		Fees:           *fees,
		ResolvedPnL:    resolved,
		TotalCashFlow:  cashFlow,
		PlatformProfit: fees.AllTime.Add(resolved),
	}, nil
}

// Dashboard returns the headline counters for the admin landing page.
func (a *Analytics) Dashboard(ctx context.Context) (*DashboardStats, error) {
	users, err := a.store.Users().List(ctx)
	if err != nil {
		return nil, err
	}
	markets, err := a.store.Markets().List(ctx, store.MarketFilter{})
	if err != nil {
		return nil, err
	}
	trades, err := a.store.Trades().ListAll(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		Users: len(users), Markets: len(markets), Trades: len(trades),
		TotalVolume: decimal.Zero, TotalFees: decimal.Zero,
	}
	for _, mk := range markets {
		if mk.Status == core.MarketActive {
			stats.ActiveMarkets++
		}
		stats.TotalVolume = stats.TotalVolume.Add(mk.Volume)
	}
	for _, t := range trades {
		stats.TotalFees = stats.TotalFees.Add(t.Fee)
	}
	return stats, nil
}
