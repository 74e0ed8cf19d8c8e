package clickhouse

import (
	"context"
	"errors"
	"fmt"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// RunAggregateStore implements storage.RunAggregateStore using ClickHouse.
type RunAggregateStore struct {
	conn *Conn
}

// NewRunAggregateStore creates a new RunAggregateStore.
func NewRunAggregateStore(conn *Conn) *RunAggregateStore {
	return &RunAggregateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RunAggregateStore = (*RunAggregateStore)(nil)

const runAggregateColumns = `
	bot_type, symbol,
	total_runs, go_runs, profit_pct_mean, profit_pct_median,
	best_sharpe, worst_drawdown_pct, best_run_id,
	total_deals, wins, losses, win_rate,
	pnl_mean, pnl_median, pnl_p10, pnl_p25, pnl_p75, pnl_p90,
	pnl_min, pnl_max, pnl_stddev,
	max_consecutive_losses,
	take_profit_exits, stop_loss_exits, trailing_tp_exits,
	trailing_stop_exits, grid_exits, stop_exits
`

// Insert adds a new aggregate. Returns ErrDuplicateKey if key exists.
func (s *RunAggregateStore) Insert(ctx context.Context, a *domain.RunAggregate) error {
	if a == nil || !a.BotType.Valid() || a.Symbol == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would replace; keep append-only semantics
	exists, err := s.exists(ctx, a.BotType, a.Symbol)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO run_aggregates (` + runAggregateColumns + `) VALUES (
			?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?,
			?,
			?, ?, ?,
			?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		string(a.BotType), a.Symbol,
		uint32(a.TotalRuns), uint32(a.GoRuns), a.ProfitPctMean, a.ProfitPctMedian,
		a.BestSharpe, a.WorstDrawdownPct, a.BestRunID,
		uint32(a.TotalDeals), uint32(a.Wins), uint32(a.Losses), a.WinRate,
		a.PnLMean, a.PnLMedian, a.PnLP10, a.PnLP25, a.PnLP75, a.PnLP90,
		a.PnLMin, a.PnLMax, a.PnLStddev,
		uint32(a.MaxConsecutiveLosses),
		uint32(a.TakeProfitExits), uint32(a.StopLossExits), uint32(a.TrailingTPExits),
		uint32(a.TrailingStopExits), uint32(a.GridExits), uint32(a.StopExits),
	)
	if err != nil {
		return fmt.Errorf("insert run aggregate: %w", err)
	}
	return nil
}

// GetByKey retrieves an aggregate by (bot_type, symbol).
func (s *RunAggregateStore) GetByKey(ctx context.Context, botType domain.BotType, symbol string) (*domain.RunAggregate, error) {
	query := `
		SELECT ` + runAggregateColumns + `
		FROM run_aggregates FINAL
		WHERE bot_type = ? AND symbol = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, string(botType), symbol)
	if err != nil {
		return nil, fmt.Errorf("query by key: %w", err)
	}
	defer rows.Close()

	aggs, err := scanRunAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, storage.ErrNotFound
	}
	return aggs[0], nil
}

// GetAll retrieves all aggregates ordered by bot_type, symbol.
func (s *RunAggregateStore) GetAll(ctx context.Context) ([]*domain.RunAggregate, error) {
	query := `
		SELECT ` + runAggregateColumns + `
		FROM run_aggregates FINAL
		ORDER BY bot_type ASC, symbol ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanRunAggregates(rows)
}

// exists checks if an aggregate with the given key exists.
func (s *RunAggregateStore) exists(ctx context.Context, botType domain.BotType, symbol string) (bool, error) {
	query := `
		SELECT count(*) FROM run_aggregates FINAL
		WHERE bot_type = ? AND symbol = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, string(botType), symbol).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanRunAggregates scans multiple rows. UInt32 columns go through temporaries.
func scanRunAggregates(rows chRows) ([]*domain.RunAggregate, error) {
	var aggregates []*domain.RunAggregate

	for rows.Next() {
		var a domain.RunAggregate
		var botType string
		var totalRuns, goRuns, totalDeals, wins, losses, maxLosses uint32
		var tp, sl, ttp, ts, grid, stop uint32

		err := rows.Scan(
			&botType, &a.Symbol,
			&totalRuns, &goRuns, &a.ProfitPctMean, &a.ProfitPctMedian,
			&a.BestSharpe, &a.WorstDrawdownPct, &a.BestRunID,
			&totalDeals, &wins, &losses, &a.WinRate,
			&a.PnLMean, &a.PnLMedian, &a.PnLP10, &a.PnLP25, &a.PnLP75, &a.PnLP90,
			&a.PnLMin, &a.PnLMax, &a.PnLStddev,
			&maxLosses,
			&tp, &sl, &ttp,
			&ts, &grid, &stop,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run aggregate row: %w", err)
		}

		a.BotType = domain.BotType(botType)
		if !a.BotType.Valid() {
			return nil, errors.New("scan run aggregate row: unknown bot_type " + botType)
		}
		a.TotalRuns = int(totalRuns)
		a.GoRuns = int(goRuns)
		a.TotalDeals = int(totalDeals)
		a.Wins = int(wins)
		a.Losses = int(losses)
		a.MaxConsecutiveLosses = int(maxLosses)
		a.TakeProfitExits = int(tp)
		a.StopLossExits = int(sl)
		a.TrailingTPExits = int(ttp)
		a.TrailingStopExits = int(ts)
		a.GridExits = int(grid)
		a.StopExits = int(stop)

		aggregates = append(aggregates, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run aggregate rows: %w", err)
	}

	return aggregates, nil
}
