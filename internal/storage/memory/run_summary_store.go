package memory

import (
	"context"
	"sort"
	"sync"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// RunSummaryStore is an in-memory implementation of storage.RunSummaryStore.
type RunSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunSummaryStore creates a new in-memory run summary store.
func NewRunSummaryStore() *RunSummaryStore {
	return &RunSummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(_ context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" || !r.BotType.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = copySummary(r)
	return nil
}

// GetByID retrieves a summary by run ID. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySummary(r), nil
}

// GetByBotType retrieves all summaries of a bot type, ordered by created_at, run_id ASC.
func (s *RunSummaryStore) GetByBotType(_ context.Context, botType domain.BotType) ([]*domain.RunSummary, error) {
	return s.filter(func(r *domain.RunSummary) bool { return r.BotType == botType }), nil
}

// GetAll retrieves all summaries, ordered by created_at, run_id ASC.
func (s *RunSummaryStore) GetAll(_ context.Context) ([]*domain.RunSummary, error) {
	return s.filter(func(*domain.RunSummary) bool { return true }), nil
}

func (s *RunSummaryStore) filter(keep func(*domain.RunSummary) bool) []*domain.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, r := range s.data {
		if keep(r) {
			result = append(result, copySummary(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RunID < result[j].RunID
	})

	return result
}

// copySummary deep-copies the slice and pointer fields.
func copySummary(r *domain.RunSummary) *domain.RunSummary {
	c := *r
	if r.Signals != nil {
		c.Signals = append([]int64(nil), r.Signals...)
	}
	if r.ExpectedValuePerDeal != nil {
		v := *r.ExpectedValuePerDeal
		c.ExpectedValuePerDeal = &v
	}
	if r.AnnualizedCapitalReturn != nil {
		v := *r.AnnualizedCapitalReturn
		c.AnnualizedCapitalReturn = &v
	}
	return &c
}

var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)
