package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentStatus is the lifecycle state of a single investment. The only
// transition is active → completed, performed by settlement. Investments are
// never deleted.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
)

// Investment is one investor deposit into a pool. DepositReference is unique
// across all investments; that uniqueness constraint is the idempotency
// barrier against double-crediting a replayed deposit.
//
// YieldRate is a snapshot of the pool's rate at investment time. Later edits
// to the pool never change the yield promised here.
type Investment struct {
	ID                  string           `json:"id"`
	InvestorID          string           `json:"investor_id"`
	InvestorAccount     string           `json:"investor_account"`
	PoolID              string           `json:"pool_id"`
	Principal           decimal.Decimal  `json:"principal"`
	FractionalUnits     int64            `json:"fractional_units"`
	YieldRate           decimal.Decimal  `json:"yield_rate"`
	ExpectedYield       decimal.Decimal  `json:"expected_yield"`
	DepositReference    string           `json:"deposit_reference"`
	SettlementReference *string          `json:"settlement_reference,omitempty"`
	ContractIndex       *int64           `json:"contract_index,omitempty"` // escrow-side bookkeeping index; required for settlement
	Status              InvestmentStatus `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	MaturedAt           time.Time        `json:"matured_at"`
}

// Matured reports whether the investment is past its maturity point at t.
func (i Investment) Matured(t time.Time) bool {
	return !i.MaturedAt.After(t)
}
