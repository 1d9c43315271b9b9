package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FundingStatus is the derived lifecycle state of a pool. It is never stored;
// it is recomputed from the investment rows on every read.
type FundingStatus string

const (
	FundingStatusFunding     FundingStatus = "funding"
	FundingStatusFunded      FundingStatus = "funded"
	FundingStatusFullyFunded FundingStatus = "fully_funded"
)

// Pool is a tokenized receivable opened for fractional investment. The funded
// amount is intentionally absent: it is always derived from the investment
// store so the two can never drift.
type Pool struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	BusinessName string          `json:"business_name"`
	Asset        AssetDetails    `json:"asset"`
	Currency     string          `json:"currency"`
	FaceValue    decimal.Decimal `json:"face_value"`
	YieldRate    decimal.Decimal `json:"yield_rate"` // fraction in (0,1); current configuration
	DurationDays int             `json:"duration_days"`
	TotalTarget  decimal.Decimal `json:"total_target"` // zero means no target configured
	MinTicket    decimal.Decimal `json:"min_ticket"`
	MaxTicket    decimal.Decimal `json:"max_ticket"`
	FractionSize decimal.Decimal `json:"fraction_size"`
	ExpiresAt    time.Time       `json:"expires_at"`

	// Ledger references populated when the asset is tokenized.
	EscrowAccount string `json:"escrow_account"` // escrow account holding pooled vUSD
	TokenID       string `json:"token_id"`       // fractional-token (iToken) id on the ledger

	CreatedAt time.Time `json:"created_at"`
}

// NewPool validates and constructs a Pool. Escrow references are attached
// later, when the asset is tokenized.
func NewPool(id, name, business string, asset AssetDetails, currency string,
	faceValue, yieldRate decimal.Decimal, durationDays int,
	target, minTicket, maxTicket, fractionSize decimal.Decimal,
	expiresAt time.Time) (Pool, error) {

	if id == "" {
		return Pool{}, fmt.Errorf("pool: id must not be empty")
	}
	if err := asset.Validate(); err != nil {
		return Pool{}, fmt.Errorf("pool %s: %w", id, err)
	}
	if faceValue.Sign() <= 0 {
		return Pool{}, fmt.Errorf("pool %s: face value must be positive", id)
	}
	if yieldRate.Sign() < 0 || yieldRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Pool{}, fmt.Errorf("pool %s: yield rate must be in [0,1)", id)
	}
	if durationDays <= 0 {
		return Pool{}, fmt.Errorf("pool %s: duration must be positive", id)
	}
	if fractionSize.Sign() <= 0 {
		return Pool{}, fmt.Errorf("pool %s: fraction size must be positive", id)
	}
	if minTicket.Sign() > 0 && maxTicket.Sign() > 0 && maxTicket.LessThan(minTicket) {
		return Pool{}, fmt.Errorf("pool %s: max ticket below min ticket", id)
	}

	return Pool{
		ID:           id,
		Name:         name,
		BusinessName: business,
		Asset:        asset,
		Currency:     currency,
		FaceValue:    faceValue,
		YieldRate:    yieldRate,
		DurationDays: durationDays,
		TotalTarget:  target,
		MinTicket:    minTicket,
		MaxTicket:    maxTicket,
		FractionSize: fractionSize,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Tokenized reports whether the pool carries both ledger references required
// before investments can be recorded against it.
func (p Pool) Tokenized() bool {
	return p.EscrowAccount != "" && p.TokenID != ""
}

// FundingSummary is the derived funding state of a pool.
type FundingSummary struct {
	FundedAmount decimal.Decimal `json:"funded_amount"`
	Percentage   int64           `json:"percentage"`
	Status       FundingStatus   `json:"status"`
	DaysLeft     int             `json:"days_left"`
}

// PoolListing pairs a pool with its derived funding state for list views.
type PoolListing struct {
	Pool    Pool           `json:"pool"`
	Funding FundingSummary `json:"funding"`
}
