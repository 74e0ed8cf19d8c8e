package memory

import (
	"context"
	"sort"
	"sync"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// DealStore is an in-memory implementation of storage.DealStore.
type DealStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClosedDeal // keyed by deal_id
}

// NewDealStore creates a new in-memory deal store.
func NewDealStore() *DealStore {
	return &DealStore{
		data: make(map[string]*domain.ClosedDeal),
	}
}

// InsertBulk adds multiple deals atomically. Fails entire batch on any duplicate.
func (s *DealStore) InsertBulk(_ context.Context, deals []*domain.ClosedDeal) error {
	if len(deals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(deals))

	// First pass: check for duplicates (existing + intra-batch)
	for _, d := range deals {
		if d == nil || d.DealID == "" || d.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[d.DealID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[d.DealID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[d.DealID] = struct{}{}
	}

	// Second pass: insert all
	for _, d := range deals {
		dealCopy := *d
		s.data[d.DealID] = &dealCopy
	}

	return nil
}

// GetByID retrieves a deal by its ID. Returns ErrNotFound if not exists.
func (s *DealStore) GetByID(_ context.Context, dealID string) (*domain.ClosedDeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[dealID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	dealCopy := *d
	return &dealCopy, nil
}

// GetByRunID retrieves all deals of a run, ordered by seq ASC.
func (s *DealStore) GetByRunID(_ context.Context, runID string) ([]*domain.ClosedDeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClosedDeal
	for _, d := range s.data {
		if d.RunID == runID {
			dealCopy := *d
			result = append(result, &dealCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

var _ storage.DealStore = (*DealStore)(nil)
