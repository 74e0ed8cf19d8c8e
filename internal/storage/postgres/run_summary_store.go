package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using PostgreSQL.
type RunSummaryStore struct {
	pool *Pool
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(pool *Pool) *RunSummaryStore {
	return &RunSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

const runSummaryColumns = `
	run_id, bot_type, symbol, interval,
	start_time, end_time, candle_count, signals, initial_capital, params_json,
	total_profit_pct, max_drawdown_pct, sharpe_ratio, win_rate, total_deals,
	avg_deal_duration_hours, max_capital_deployed,
	expected_value_per_deal, annualized_capital_return, final_equity,
	decision, created_at
`

// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" || !r.BotType.Valid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO run_summaries (` + runSummaryColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17,
			$18, $19, $20,
			$21, $22
		)
	`

	signals := r.Signals
	if signals == nil {
		signals = []int64{}
	}

	_, err := s.pool.Exec(ctx, query,
		r.RunID, string(r.BotType), r.Symbol, r.Interval,
		r.StartTime, r.EndTime, r.CandleCount, signals, r.InitialCapital, r.ParamsJSON,
		r.TotalProfitPct, r.MaxDrawdownPct, r.SharpeRatio, r.WinRate, r.TotalDeals,
		r.AvgDealDurationHours, r.MaxCapitalDeployed,
		r.ExpectedValuePerDeal, r.AnnualizedCapitalReturn, r.FinalEquity,
		r.Decision, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByID retrieves a summary by run ID. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		WHERE run_id = $1
	`

	r, err := scanRunSummary(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary by id: %w", err)
	}
	return r, nil
}

// GetByBotType retrieves all summaries of a bot type, ordered by created_at, run_id ASC.
func (s *RunSummaryStore) GetByBotType(ctx context.Context, botType domain.BotType) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		WHERE bot_type = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(botType))
	if err != nil {
		return nil, fmt.Errorf("get run summaries by bot type: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

// GetAll retrieves all summaries, ordered by created_at, run_id ASC.
func (s *RunSummaryStore) GetAll(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all run summaries: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

// scanRunSummary scans a single row into a RunSummary.
func scanRunSummary(row pgx.Row) (*domain.RunSummary, error) {
	var r domain.RunSummary
	var botType string

	err := row.Scan(
		&r.RunID, &botType, &r.Symbol, &r.Interval,
		&r.StartTime, &r.EndTime, &r.CandleCount, &r.Signals, &r.InitialCapital, &r.ParamsJSON,
		&r.TotalProfitPct, &r.MaxDrawdownPct, &r.SharpeRatio, &r.WinRate, &r.TotalDeals,
		&r.AvgDealDurationHours, &r.MaxCapitalDeployed,
		&r.ExpectedValuePerDeal, &r.AnnualizedCapitalReturn, &r.FinalEquity,
		&r.Decision, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.BotType = domain.BotType(botType)
	if len(r.Signals) == 0 {
		r.Signals = nil
	}
	return &r, nil
}

// scanRunSummaries scans multiple rows into a slice of RunSummary.
func scanRunSummaries(rows pgx.Rows) ([]*domain.RunSummary, error) {
	var summaries []*domain.RunSummary

	for rows.Next() {
		r, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run summary row: %w", err)
		}
		summaries = append(summaries, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary rows: %w", err)
	}

	return summaries, nil
}
