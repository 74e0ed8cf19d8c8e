package storage

import (
	"context"
	"fmt"

	"bot-sim-lab/internal/domain"
)

// ImportCandles merges candles into an append-only series.
//
// Timestamps already stored must carry identical OHLCV, otherwise nothing is
// written and ErrConflict is returned. Only new timestamps are inserted.
// Returns the number of candles added.
func ImportCandles(ctx context.Context, store CandleStore, key domain.SeriesKey, candles []*domain.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	lo, hi := candles[0].Timestamp, candles[0].Timestamp
	for _, c := range candles {
		if c == nil {
			return 0, ErrInvalidInput
		}
		lo = min(lo, c.Timestamp)
		hi = max(hi, c.Timestamp)
	}

	stored, err := store.GetByTimeRange(ctx, key, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("read stored candles: %w", err)
	}
	existing := make(map[int64]*domain.Candle, len(stored))
	for _, c := range stored {
		existing[c.Timestamp] = c
	}

	fresh := make([]*domain.Candle, 0, len(candles))
	for _, c := range candles {
		prev, ok := existing[c.Timestamp]
		if !ok {
			fresh = append(fresh, c)
			continue
		}
		if *prev != *c {
			return 0, fmt.Errorf("%w: %s %s candle at %d", ErrConflict, key.Symbol, key.Interval, c.Timestamp)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := store.InsertBulk(ctx, key, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}
