package memory

import (
	"context"
	"sort"
	"sync"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[domain.SeriesKey]map[int64]*domain.Candle // series -> timestamp -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[domain.SeriesKey]map[int64]*domain.Candle),
	}
}

// InsertBulk adds candles for a series. Fails entire batch on duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, key domain.SeriesKey, candles []*domain.Candle) error {
	if key.Symbol == "" || key.Interval == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.data[key]

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[int64]struct{}, len(candles))

	for _, c := range candles {
		if c == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := series[c.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.Timestamp] = struct{}{}
	}

	if series == nil {
		series = make(map[int64]*domain.Candle, len(candles))
		s.data[key] = series
	}
	for _, c := range candles {
		candleCopy := *c
		series[c.Timestamp] = &candleCopy
	}

	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, key domain.SeriesKey, start, end int64) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for ts, c := range s.data[key] {
		if ts >= start && ts <= end {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// ListSeries returns every stored series key, ordered by symbol, interval.
func (s *CandleStore) ListSeries(_ context.Context) ([]domain.SeriesKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]domain.SeriesKey, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Interval < keys[j].Interval
	})

	return keys, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
