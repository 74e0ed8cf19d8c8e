package clickhouse

import (
	"context"
	"fmt"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles for a series. Fails entire batch on duplicate (symbol, interval, timestamp_ms).
func (s *CandleStore) InsertBulk(ctx context.Context, key domain.SeriesKey, candles []*domain.Candle) error {
	if key.Symbol == "" || key.Interval == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(candles))
	var minTs, maxTs int64
	for i, c := range candles {
		if c == nil || c.Timestamp < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[c.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.Timestamp] = struct{}{}
		if i == 0 || c.Timestamp < minTs {
			minTs = c.Timestamp
		}
		if i == 0 || c.Timestamp > maxTs {
			maxTs = c.Timestamp
		}
	}

	// Check for duplicates against existing DB rows in the batch's span
	existing, err := s.existingTimestamps(ctx, key, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for ts := range seen {
		if _, exists := existing[ts]; exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			key.Symbol, key.Interval, uint64(c.Timestamp),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, key domain.SeriesKey, start, end int64) ([]*domain.Candle, error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, key.Symbol, key.Interval, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// ListSeries returns every stored series key, ordered by symbol, interval.
func (s *CandleStore) ListSeries(ctx context.Context) ([]domain.SeriesKey, error) {
	query := `
		SELECT DISTINCT symbol, interval
		FROM candles
		ORDER BY symbol ASC, interval ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var keys []domain.SeriesKey
	for rows.Next() {
		var k domain.SeriesKey
		if err := rows.Scan(&k.Symbol, &k.Interval); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series rows: %w", err)
	}
	return keys, nil
}

// existingTimestamps returns the stored timestamps of a series within [start, end].
func (s *CandleStore) existingTimestamps(ctx context.Context, key domain.SeriesKey, start, end int64) (map[int64]struct{}, error) {
	query := `
		SELECT timestamp_ms FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`

	rows, err := s.conn.Query(ctx, query, key.Symbol, key.Interval, uint64(start), uint64(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var ts uint64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out[int64(ts)] = struct{}{}
	}
	return out, rows.Err()
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var timestampMs uint64

		err := rows.Scan(
			&timestampMs,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.Timestamp = int64(timestampMs)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
