package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioGroup aggregates one investor's investments sharing a pool. It is
// recomputed on every portfolio query and never persisted.
type PortfolioGroup struct {
	PoolID          string           `json:"pool_id"`
	PoolName        string           `json:"pool_name"`
	Status          InvestmentStatus `json:"status"`
	Principal       decimal.Decimal  `json:"principal"`
	FractionalUnits int64            `json:"fractional_units"`
	YieldRate       decimal.Decimal  `json:"yield_rate"`
	ExpectedYield   decimal.Decimal  `json:"expected_yield"`
	EarningsToDate  decimal.Decimal  `json:"earnings_to_date"`
	EarningsPct     decimal.Decimal  `json:"earnings_pct_to_date"`
	DailyPct        decimal.Decimal  `json:"daily_pct"`
	DurationDays    int              `json:"duration_days"`
	FirstInvestedAt time.Time        `json:"first_invested_at"`
	MaturesAt       *time.Time       `json:"matures_at,omitempty"`
}

// Portfolio is the investor-facing read model: groups partitioned into
// pending (still active) and completed, with totals over pending only.
type Portfolio struct {
	Pending             []PortfolioGroup `json:"pending"`
	Completed           []PortfolioGroup `json:"completed"`
	TotalPrincipal      decimal.Decimal  `json:"total_principal"`
	TotalEarningsToDate decimal.Decimal  `json:"total_earnings_to_date"`
}
