package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// DealStore implements storage.DealStore using PostgreSQL.
type DealStore struct {
	pool *Pool
}

// NewDealStore creates a new DealStore.
func NewDealStore(pool *Pool) *DealStore {
	return &DealStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DealStore = (*DealStore)(nil)

const dealColumns = `
	deal_id, run_id, seq,
	entry_time, exit_time, entry_price, exit_price,
	cost, pnl, pnl_quote, exit_reason
`

// InsertBulk adds multiple deals atomically. Fails entire batch on any duplicate.
func (s *DealStore) InsertBulk(ctx context.Context, deals []*domain.ClosedDeal) error {
	if len(deals) == 0 {
		return nil
	}
	for _, d := range deals {
		if d == nil || d.DealID == "" || d.RunID == "" || !d.ExitReason.Valid() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO deals (` + dealColumns + `) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11
		)
	`

	for _, d := range deals {
		_, err := tx.Exec(ctx, query,
			d.DealID, d.RunID, d.Seq,
			d.EntryTime, d.ExitTime, d.EntryPrice, d.ExitPrice,
			d.Cost, d.PnL, d.PnLQuote, string(d.ExitReason),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert deal in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a deal by its ID. Returns ErrNotFound if not exists.
func (s *DealStore) GetByID(ctx context.Context, dealID string) (*domain.ClosedDeal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE deal_id = $1
	`

	d, err := scanDeal(s.pool.QueryRow(ctx, query, dealID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deal by id: %w", err)
	}
	return d, nil
}

// GetByRunID retrieves all deals of a run, ordered by seq ASC.
func (s *DealStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ClosedDeal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get deals by run id: %w", err)
	}
	defer rows.Close()

	var deals []*domain.ClosedDeal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal row: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deal rows: %w", err)
	}

	return deals, nil
}

// scanDeal scans a single row into a ClosedDeal.
func scanDeal(row pgx.Row) (*domain.ClosedDeal, error) {
	var d domain.ClosedDeal
	var reason string

	err := row.Scan(
		&d.DealID, &d.RunID, &d.Seq,
		&d.EntryTime, &d.ExitTime, &d.EntryPrice, &d.ExitPrice,
		&d.Cost, &d.PnL, &d.PnLQuote, &reason,
	)
	if err != nil {
		return nil, err
	}

	d.ExitReason = domain.ExitReason(reason)
	return &d, nil
}
