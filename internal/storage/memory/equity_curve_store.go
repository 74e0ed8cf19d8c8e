package memory

import (
	"context"
	"sync"

	"bot-sim-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string][]float64 // keyed by run_id
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string][]float64),
	}
}

// InsertCurve stores a whole curve. Returns ErrDuplicateKey if the run already has one.
func (s *EquityCurveStore) InsertCurve(_ context.Context, runID string, equity []float64) error {
	if runID == "" || len(equity) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[runID] = append([]float64(nil), equity...)
	return nil
}

// GetByRunID returns the curve in index order. Returns ErrNotFound if absent.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	curve, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return append([]float64(nil), curve...), nil
}

var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
