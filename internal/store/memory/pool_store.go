// Package memory provides in-memory implementations of the domain stores,
// used by tests and the dev run mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/danielokoye/vestpool/internal/domain"
)

// PoolStore is an in-memory implementation of domain.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string]domain.Pool
}

// NewPoolStore creates an empty in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{data: make(map[string]domain.Pool)}
}

// Create inserts a new pool. Existing ids are rejected.
func (s *PoolStore) Create(_ context.Context, pool domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[pool.ID]; exists {
		return domain.ErrAlreadyRecorded
	}
	s.data[pool.ID] = pool
	return nil
}

// Update replaces an existing pool.
func (s *PoolStore) Update(_ context.Context, pool domain.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[pool.ID]; !exists {
		return domain.ErrPoolNotFound
	}
	s.data[pool.ID] = pool
	return nil
}

// GetByID returns the pool with the given id, or ErrPoolNotFound.
func (s *PoolStore) GetByID(_ context.Context, id string) (domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	return p, nil
}

// ListAll returns every pool ordered by creation time, newest first.
func (s *PoolStore) ListAll(_ context.Context) ([]domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]domain.Pool, 0, len(s.data))
	for _, p := range s.data {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].CreatedAt.After(pools[j].CreatedAt)
	})
	return pools, nil
}

// Compile-time interface check.
var _ domain.PoolStore = (*PoolStore)(nil)
