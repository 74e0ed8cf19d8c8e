package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// RunAggregateStore is an in-memory implementation of storage.RunAggregateStore.
type RunAggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunAggregate // keyed by (bot_type, symbol)
}

// NewRunAggregateStore creates a new in-memory run aggregate store.
func NewRunAggregateStore() *RunAggregateStore {
	return &RunAggregateStore{
		data: make(map[string]*domain.RunAggregate),
	}
}

// aggregateKey generates a unique key for an aggregate.
func aggregateKey(botType domain.BotType, symbol string) string {
	return fmt.Sprintf("%s|%s", botType, symbol)
}

// Insert adds a new aggregate. Returns ErrDuplicateKey if key exists.
func (s *RunAggregateStore) Insert(_ context.Context, a *domain.RunAggregate) error {
	if a == nil || !a.BotType.Valid() || a.Symbol == "" {
		return storage.ErrInvalidInput
	}

	key := aggregateKey(a.BotType, a.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	aggCopy := *a
	s.data[key] = &aggCopy
	return nil
}

// GetByKey retrieves an aggregate. Returns ErrNotFound if not exists.
func (s *RunAggregateStore) GetByKey(_ context.Context, botType domain.BotType, symbol string) (*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[aggregateKey(botType, symbol)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	aggCopy := *a
	return &aggCopy, nil
}

// GetAll retrieves all aggregates ordered by bot_type, symbol.
func (s *RunAggregateStore) GetAll(_ context.Context) ([]*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunAggregate, 0, len(s.data))
	for _, a := range s.data {
		aggCopy := *a
		result = append(result, &aggCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BotType != result[j].BotType {
			return result[i].BotType < result[j].BotType
		}
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

var _ storage.RunAggregateStore = (*RunAggregateStore)(nil)
