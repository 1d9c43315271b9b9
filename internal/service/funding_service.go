// Package service implements the investment ledger core: funding
// aggregation, investment recording, portfolio aggregation, and settlement.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielokoye/vestpool/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// FundingService derives pool funding state from investment rows. Funding is
// never cached or stored: every read recomputes from the source records, so
// the figures cannot drift from the investment store.
type FundingService struct {
	pools       domain.PoolStore
	investments domain.InvestmentStore
	logger      *slog.Logger
}

// NewFundingService creates a FundingService.
func NewFundingService(pools domain.PoolStore, investments domain.InvestmentStore, logger *slog.Logger) *FundingService {
	return &FundingService{
		pools:       pools,
		investments: investments,
		logger:      logger.With(slog.String("component", "funding_service")),
	}
}

// ComputeFunding returns the derived funding state for one pool.
func (s *FundingService) ComputeFunding(ctx context.Context, poolID string) (domain.FundingSummary, error) {
	pool, err := s.pools.GetByID(ctx, poolID)
	if err != nil {
		return domain.FundingSummary{}, fmt.Errorf("funding_service: get pool %q: %w", poolID, err)
	}

	funded, err := s.investments.SumPrincipal(ctx, poolID)
	if err != nil {
		return domain.FundingSummary{}, fmt.Errorf("funding_service: sum principal for %q: %w", poolID, err)
	}

	return deriveFunding(pool, funded, time.Now().UTC()), nil
}

// ListPools returns pools with derived funding state, filtered and paginated.
// The filter runs after derivation: status is not a stored field, so it
// cannot be pushed down into the store query. Pagination applies after the
// filter. The second return value is the total match count before paging.
func (s *FundingService) ListPools(ctx context.Context, filter domain.PoolFilter, opts domain.ListOpts) ([]domain.PoolListing, int, error) {
	pools, err := s.pools.ListAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("funding_service: list pools: %w", err)
	}

	sums, err := s.investments.SumPrincipalByPool(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("funding_service: sum principal by pool: %w", err)
	}

	now := time.Now().UTC()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	listings := make([]domain.PoolListing, 0, len(pools))
	for _, p := range pools {
		summary := deriveFunding(p, sums[p.ID], now)

		if filter.Status != "" && summary.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}

		listings = append(listings, domain.PoolListing{Pool: p, Funding: summary})
	}

	total := len(listings)
	return paginate(listings, opts), total, nil
}

// deriveFunding is the pure funding derivation. Percentage is capped at 100
// and a zero or unset target always reads as 0%.
func deriveFunding(pool domain.Pool, funded decimal.Decimal, now time.Time) domain.FundingSummary {
	var pct int64
	if pool.TotalTarget.Sign() > 0 {
		pct = funded.Div(pool.TotalTarget).Mul(oneHundred).Round(0).IntPart()
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
	}

	return domain.FundingSummary{
		FundedAmount: funded,
		Percentage:   pct,
		Status:       statusForPercentage(pct),
		DaysLeft:     daysLeft(pool.ExpiresAt, now),
	}
}

// statusForPercentage maps a funding percentage onto the derived status.
// The cases are ordered; the first match wins, and together they are
// exhaustive and mutually exclusive.
func statusForPercentage(pct int64) domain.FundingStatus {
	switch {
	case pct >= 100:
		return domain.FundingStatusFullyFunded
	case pct >= 1:
		return domain.FundingStatusFunded
	default:
		return domain.FundingStatusFunding
	}
}

// daysLeft is ceil((expiry-now)/1d) floored at zero. Display only; it never
// feeds status derivation.
func daysLeft(expiry time.Time, now time.Time) int {
	if expiry.IsZero() || !expiry.After(now) {
		return 0
	}
	return int(math.Ceil(expiry.Sub(now).Seconds() / 86400))
}

func matchesSearch(p domain.Pool, search string) bool {
	return strings.Contains(strings.ToLower(p.Name), search) ||
		strings.Contains(strings.ToLower(p.BusinessName), search)
}

func paginate(listings []domain.PoolListing, opts domain.ListOpts) []domain.PoolListing {
	if opts.Offset > 0 {
		if opts.Offset >= len(listings) {
			return []domain.PoolListing{}
		}
		listings = listings[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(listings) {
		listings = listings[:opts.Limit]
	}
	return listings
}
