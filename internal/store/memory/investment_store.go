package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielokoye/vestpool/internal/domain"
)

// InvestmentStore is an in-memory implementation of domain.InvestmentStore.
// It enforces the deposit-reference uniqueness constraint the same way the
// postgres store does, so recorder idempotency tests run against it.
type InvestmentStore struct {
	mu    sync.RWMutex
	data  map[string]domain.Investment // keyed by id
	byRef map[string]string            // deposit reference -> id
}

// NewInvestmentStore creates an empty in-memory investment store.
func NewInvestmentStore() *InvestmentStore {
	return &InvestmentStore{
		data:  make(map[string]domain.Investment),
		byRef: make(map[string]string),
	}
}

// Insert adds a new investment. Returns ErrAlreadyRecorded when the deposit
// reference has been seen before.
func (s *InvestmentStore) Insert(_ context.Context, inv domain.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRef[inv.DepositReference]; exists {
		return domain.ErrAlreadyRecorded
	}
	s.data[inv.ID] = inv
	s.byRef[inv.DepositReference] = inv.ID
	return nil
}

// GetByID returns the investment with the given id.
func (s *InvestmentStore) GetByID(_ context.Context, id string) (domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.data[id]
	if !exists {
		return domain.Investment{}, domain.ErrNotFound
	}
	return inv, nil
}

// GetByDepositReference returns the investment recorded for a deposit
// reference.
func (s *InvestmentStore) GetByDepositReference(_ context.Context, ref string) (domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byRef[ref]
	if !exists {
		return domain.Investment{}, domain.ErrNotFound
	}
	return s.data[id], nil
}

// ListByInvestor returns all investments for an investor, oldest first.
func (s *InvestmentStore) ListByInvestor(_ context.Context, investorID string) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Investment
	for _, inv := range s.data {
		if inv.InvestorID == investorID {
			out = append(out, inv)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListByPool returns all investments in a pool, oldest first.
func (s *InvestmentStore) ListByPool(_ context.Context, poolID string) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Investment
	for _, inv := range s.data {
		if inv.PoolID == poolID {
			out = append(out, inv)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// SumPrincipal totals principal over every investment in a pool, regardless
// of status.
func (s *InvestmentStore) SumPrincipal(_ context.Context, poolID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, inv := range s.data {
		if inv.PoolID == poolID {
			sum = sum.Add(inv.Principal)
		}
	}
	return sum, nil
}

// SumPrincipalByPool totals principal per pool in one pass.
func (s *InvestmentStore) SumPrincipalByPool(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]decimal.Decimal)
	for _, inv := range s.data {
		sums[inv.PoolID] = sums[inv.PoolID].Add(inv.Principal)
	}
	return sums, nil
}

// ListActiveMatured returns active investments whose maturity is at or before
// asOf, oldest maturity first.
func (s *InvestmentStore) ListActiveMatured(_ context.Context, asOf time.Time) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Investment
	for _, inv := range s.data {
		if inv.Status == domain.InvestmentStatusActive && inv.Matured(asOf) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MaturedAt.Before(out[j].MaturedAt)
	})
	return out, nil
}

// MarkCompleted transitions active → completed. Returns ErrNotFound when the
// investment does not exist or is not active, making the call idempotent.
func (s *InvestmentStore) MarkCompleted(_ context.Context, id string, settlementRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.data[id]
	if !exists || inv.Status != domain.InvestmentStatusActive {
		return domain.ErrNotFound
	}
	inv.Status = domain.InvestmentStatusCompleted
	inv.SettlementReference = &settlementRef
	s.data[id] = inv
	return nil
}

func sortByCreatedAt(invs []domain.Investment) {
	sort.Slice(invs, func(i, j int) bool {
		return invs[i].CreatedAt.Before(invs[j].CreatedAt)
	})
}

// Compile-time interface check.
var _ domain.InvestmentStore = (*InvestmentStore)(nil)
