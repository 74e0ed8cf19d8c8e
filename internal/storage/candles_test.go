package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
	"bot-sim-lab/internal/storage/memory"
)

func hourlyCandles(from, n int) []*domain.Candle {
	out := make([]*domain.Candle, n)
	for i := range out {
		ts := int64(from+i) * 3_600_000
		p := 100 + float64(from+i)
		out[i] = &domain.Candle{Timestamp: ts, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	return out
}

func TestImportCandles_ExtendsStoredSeries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	key := domain.SeriesKey{Symbol: "BTC/USDT", Interval: "1h"}

	added, err := storage.ImportCandles(ctx, store, key, hourlyCandles(0, 24))
	require.NoError(t, err)
	assert.Equal(t, 24, added)

	// superset of the stored range
	added, err = storage.ImportCandles(ctx, store, key, hourlyCandles(0, 48))
	require.NoError(t, err)
	assert.Equal(t, 24, added)

	got, err := store.GetByTimeRange(ctx, key, 0, 47*3_600_000)
	require.NoError(t, err)
	assert.Len(t, got, 48)
}

func TestImportCandles_SameSeriesIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	key := domain.SeriesKey{Symbol: "ETH/USDT", Interval: "1h"}

	_, err := storage.ImportCandles(ctx, store, key, hourlyCandles(0, 10))
	require.NoError(t, err)

	added, err := storage.ImportCandles(ctx, store, key, hourlyCandles(0, 10))
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestImportCandles_DifferingOverlapConflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCandleStore()
	key := domain.SeriesKey{Symbol: "SOL/USDT", Interval: "1h"}

	_, err := storage.ImportCandles(ctx, store, key, hourlyCandles(0, 24))
	require.NoError(t, err)

	wider := hourlyCandles(0, 30)
	wider[5].High += 50
	wider[5].Low -= 50

	added, err := storage.ImportCandles(ctx, store, key, wider)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Zero(t, added)

	// nothing from the rejected batch lands, including the new tail
	got, err := store.GetByTimeRange(ctx, key, 0, 29*3_600_000)
	require.NoError(t, err)
	assert.Len(t, got, 24)
	assert.Equal(t, 106.0, got[5].High)
}

func TestImportCandles_Empty(t *testing.T) {
	added, err := storage.ImportCandles(context.Background(), memory.NewCandleStore(),
		domain.SeriesKey{Symbol: "BTC/USDT", Interval: "1h"}, nil)
	require.NoError(t, err)
	assert.Zero(t, added)
}
