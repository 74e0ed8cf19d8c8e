package clickhouse

import (
	"context"
	"fmt"

	"bot-sim-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
// One row per point, keyed by (run_id, idx).
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertCurve stores a whole curve. Returns ErrDuplicateKey if the run already has one.
func (s *EquityCurveStore) InsertCurve(ctx context.Context, runID string, equity []float64) error {
	if runID == "" || len(equity) == 0 {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curves (run_id, idx, equity)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, v := range equity {
		if err := batch.Append(runID, uint32(i), v); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID returns the curve in index order. Returns ErrNotFound if absent.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]float64, error) {
	query := `
		SELECT equity
		FROM equity_curves
		WHERE run_id = ?
		ORDER BY idx ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var curve []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		curve = append(curve, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}

	if len(curve) == 0 {
		return nil, storage.ErrNotFound
	}
	return curve, nil
}

// exists checks if any point of the run is stored.
func (s *EquityCurveStore) exists(ctx context.Context, runID string) (bool, error) {
	query := `
		SELECT count(*) FROM equity_curves
		WHERE run_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
