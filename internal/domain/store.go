package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PoolFilter selects pools by free-text match on pool/business name and by
// derived funding status. Both are applied after funding derivation, since
// status is not a stored field.
type PoolFilter struct {
	Search string
	Status FundingStatus // empty means any
}

// PoolStore persists pool/asset metadata.
type PoolStore interface {
	Create(ctx context.Context, pool Pool) error
	Update(ctx context.Context, pool Pool) error
	GetByID(ctx context.Context, id string) (Pool, error)
	// ListAll returns every pool; derived-status filtering and pagination
	// happen above the store.
	ListAll(ctx context.Context) ([]Pool, error)
}

// InvestmentStore persists investment records. Insert must enforce uniqueness
// on DepositReference and return ErrAlreadyRecorded for replays.
type InvestmentStore interface {
	Insert(ctx context.Context, inv Investment) error
	GetByID(ctx context.Context, id string) (Investment, error)
	GetByDepositReference(ctx context.Context, ref string) (Investment, error)
	ListByInvestor(ctx context.Context, investorID string) ([]Investment, error)
	ListByPool(ctx context.Context, poolID string) ([]Investment, error)
	// SumPrincipal totals principal over all investments in a pool,
	// regardless of status.
	SumPrincipal(ctx context.Context, poolID string) (decimal.Decimal, error)
	// SumPrincipalByPool is the bulk variant joining every pool in one pass.
	SumPrincipalByPool(ctx context.Context) (map[string]decimal.Decimal, error)
	ListActiveMatured(ctx context.Context, asOf time.Time) ([]Investment, error)
	// MarkCompleted transitions an investment active → completed, recording
	// the settlement reference. The update is conditional on the current
	// status being active; ErrNotFound is returned otherwise, which makes
	// the transition idempotent under concurrent settlement runs.
	MarkCompleted(ctx context.Context, id string, settlementRef string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
