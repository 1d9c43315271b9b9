package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielokoye/vestpool/internal/domain"
)

const defaultDurationDays = 90

var (
	one           = decimal.NewFromInt(1)
	secondsPerDay = decimal.NewFromInt(86400)
)

// PortfolioService computes the investor-facing read model: investments
// grouped by pool, with proportional expected yield and time-prorated
// earnings. Everything is recomputed on every call; pool economics can be
// edited after investments exist and the view must reflect the current
// configuration.
type PortfolioService struct {
	pools       domain.PoolStore
	investments domain.InvestmentStore
	logger      *slog.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(pools domain.PoolStore, investments domain.InvestmentStore, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{
		pools:       pools,
		investments: investments,
		logger:      logger.With(slog.String("component", "portfolio_service")),
	}
}

// GetPortfolio returns the investor's grouped holdings partitioned into
// pending and completed, with totals over pending only.
func (s *PortfolioService) GetPortfolio(ctx context.Context, investorID string) (domain.Portfolio, error) {
	invs, err := s.investments.ListByInvestor(ctx, investorID)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: list investments for %q: %w", investorID, err)
	}

	portfolio := domain.Portfolio{
		Pending:             []domain.PortfolioGroup{},
		Completed:           []domain.PortfolioGroup{},
		TotalPrincipal:      decimal.Zero,
		TotalEarningsToDate: decimal.Zero,
	}
	if len(invs) == 0 {
		return portfolio, nil
	}

	now := time.Now().UTC()
	for _, raw := range groupByPool(invs) {
		group := s.buildGroup(ctx, raw, now)

		if group.Status == domain.InvestmentStatusActive {
			portfolio.Pending = append(portfolio.Pending, group)
			portfolio.TotalPrincipal = portfolio.TotalPrincipal.Add(group.Principal)
			portfolio.TotalEarningsToDate = portfolio.TotalEarningsToDate.Add(group.EarningsToDate)
		} else {
			portfolio.Completed = append(portfolio.Completed, group)
		}
	}

	sort.Slice(portfolio.Pending, func(i, j int) bool {
		return portfolio.Pending[i].FirstInvestedAt.Before(portfolio.Pending[j].FirstInvestedAt)
	})
	sort.Slice(portfolio.Completed, func(i, j int) bool {
		return portfolio.Completed[i].FirstInvestedAt.Before(portfolio.Completed[j].FirstInvestedAt)
	})

	return portfolio, nil
}

// rawGroup accumulates one investor's investments sharing a pool.
type rawGroup struct {
	poolID          string
	principal       decimal.Decimal
	fractionalUnits int64
	yieldRate       decimal.Decimal // most recently seen
	firstInvestedAt time.Time
	latestMaturity  time.Time
	anyActive       bool
}

// groupByPool folds the investments, which arrive oldest first, into one
// accumulator per pool. A group counts as active while any member is active:
// an investor topping up an already-mature position still needs attention.
func groupByPool(invs []domain.Investment) []rawGroup {
	byPool := make(map[string]*rawGroup)
	var order []string

	for _, inv := range invs {
		g, ok := byPool[inv.PoolID]
		if !ok {
			g = &rawGroup{
				poolID:          inv.PoolID,
				principal:       decimal.Zero,
				firstInvestedAt: inv.CreatedAt,
			}
			byPool[inv.PoolID] = g
			order = append(order, inv.PoolID)
		}
		g.principal = g.principal.Add(inv.Principal)
		g.fractionalUnits += inv.FractionalUnits
		g.yieldRate = inv.YieldRate
		if inv.CreatedAt.Before(g.firstInvestedAt) {
			g.firstInvestedAt = inv.CreatedAt
		}
		if inv.MaturedAt.After(g.latestMaturity) {
			g.latestMaturity = inv.MaturedAt
		}
		if inv.Status == domain.InvestmentStatusActive {
			g.anyActive = true
		}
	}

	out := make([]rawGroup, 0, len(order))
	for _, id := range order {
		out = append(out, *byPool[id])
	}
	return out
}

// buildGroup computes the derived economics for one pool group.
func (s *PortfolioService) buildGroup(ctx context.Context, raw rawGroup, now time.Time) domain.PortfolioGroup {
	pool, err := s.pools.GetByID(ctx, raw.poolID)
	if err != nil {
		// The pool may have been created before the current catalog or the
		// lookup may be transiently failing; the group still renders from
		// the investment rows alone.
		s.logger.WarnContext(ctx, "pool lookup failed for portfolio group",
			slog.String("pool", raw.poolID),
			slog.String("error", err.Error()),
		)
		pool = domain.Pool{ID: raw.poolID}
	}

	purchasePrice := s.purchasePrice(ctx, pool, raw)
	profitTotal := pool.FaceValue.Sub(purchasePrice)
	if profitTotal.Sign() < 0 {
		profitTotal = decimal.Zero
	}

	expectedYield := expectedYield(raw, purchasePrice, profitTotal)
	durationDays := durationDays(pool, raw)
	progress := progress(raw, now, durationDays)

	earningsToDate := expectedYield.Mul(progress).Round(6)
	earningsPct := progress.Mul(oneHundred).Round(2)
	daily := dailyPct(raw, purchasePrice, profitTotal, durationDays)

	status := domain.InvestmentStatusCompleted
	if raw.anyActive {
		status = domain.InvestmentStatusActive
	}

	group := domain.PortfolioGroup{
		PoolID:          raw.poolID,
		PoolName:        pool.Name,
		Status:          status,
		Principal:       raw.principal,
		FractionalUnits: raw.fractionalUnits,
		YieldRate:       raw.yieldRate,
		ExpectedYield:   expectedYield,
		EarningsToDate:  earningsToDate,
		EarningsPct:     earningsPct,
		DailyPct:        daily,
		DurationDays:    durationDays,
		FirstInvestedAt: raw.firstInvestedAt,
	}
	if !raw.latestMaturity.IsZero() {
		m := raw.latestMaturity
		group.MaturesAt = &m
	}
	return group
}

// purchasePrice resolves what the pool was bought for: the configured
// target when set, else the discounted face value, else the pool's aggregate
// funded amount across all investors as a market-clearing proxy.
func (s *PortfolioService) purchasePrice(ctx context.Context, pool domain.Pool, raw rawGroup) decimal.Decimal {
	if pool.TotalTarget.Sign() > 0 {
		return pool.TotalTarget
	}
	if pool.FaceValue.Sign() > 0 && rateInOpenUnit(raw.yieldRate) {
		return pool.FaceValue.Mul(one.Sub(raw.yieldRate))
	}

	funded, err := s.investments.SumPrincipal(ctx, raw.poolID)
	if err != nil {
		s.logger.WarnContext(ctx, "funded-amount fallback failed",
			slog.String("pool", raw.poolID),
			slog.String("error", err.Error()),
		)
		return decimal.Zero
	}
	return funded
}

// expectedYield is the group's proportional share of the pool profit, with a
// discount-only fallback when pool economics are incomplete.
func expectedYield(raw rawGroup, purchasePrice, profitTotal decimal.Decimal) decimal.Decimal {
	if purchasePrice.Sign() > 0 && profitTotal.Sign() > 0 {
		return raw.principal.Div(purchasePrice).Mul(profitTotal)
	}
	if rateInOpenUnit(raw.yieldRate) {
		return raw.principal.Mul(raw.yieldRate.Div(one.Sub(raw.yieldRate)))
	}
	return decimal.Zero
}

// durationDays prefers the pool's configured duration, then the observed
// investment span, then a 90-day default.
func durationDays(pool domain.Pool, raw rawGroup) int {
	if pool.DurationDays > 0 {
		return pool.DurationDays
	}
	if !raw.latestMaturity.IsZero() && raw.latestMaturity.After(raw.firstInvestedAt) {
		days := int(raw.latestMaturity.Sub(raw.firstInvestedAt).Hours() / 24)
		if days < 1 {
			days = 1
		}
		return days
	}
	return defaultDurationDays
}

// progress is the accrual fraction in [0,1]: 1 once the group is completed
// or matured, otherwise elapsed time over the duration.
func progress(raw rawGroup, now time.Time, durationDays int) decimal.Decimal {
	if !raw.anyActive {
		return one
	}
	if !raw.latestMaturity.IsZero() && !raw.latestMaturity.After(now) {
		return one
	}
	if durationDays <= 0 || !now.After(raw.firstInvestedAt) {
		return decimal.Zero
	}

	elapsedDays := decimal.NewFromInt(int64(now.Sub(raw.firstInvestedAt) / time.Second)).Div(secondsPerDay)
	p := elapsedDays.Div(decimal.NewFromInt(int64(durationDays)))
	if p.GreaterThan(one) {
		return one
	}
	return p
}

// dailyPct is the per-day return percentage implied by the pool economics.
func dailyPct(raw rawGroup, purchasePrice, profitTotal decimal.Decimal, durationDays int) decimal.Decimal {
	if durationDays <= 0 {
		return decimal.Zero
	}
	days := decimal.NewFromInt(int64(durationDays))
	if purchasePrice.Sign() > 0 {
		return profitTotal.Div(purchasePrice).Mul(oneHundred).Div(days)
	}
	if rateInOpenUnit(raw.yieldRate) {
		return raw.yieldRate.Div(one.Sub(raw.yieldRate)).Mul(oneHundred).Div(days)
	}
	return decimal.Zero
}

// rateInOpenUnit reports whether rate lies strictly inside (0,1).
func rateInOpenUnit(rate decimal.Decimal) bool {
	return rate.Sign() > 0 && rate.LessThan(one)
}
