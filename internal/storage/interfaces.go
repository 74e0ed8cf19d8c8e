package storage

import (
	"context"

	"bot-sim-lab/internal/domain"
)

// CandleStore provides access to candles storage.
type CandleStore interface {
	// InsertBulk adds candles for a series atomically.
	// Returns ErrDuplicateKey if any (series, timestamp) exists, including within the batch.
	InsertBulk(ctx context.Context, key domain.SeriesKey, candles []*domain.Candle) error

	// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, key domain.SeriesKey, start, end int64) ([]*domain.Candle, error)

	// ListSeries returns every stored series key, ordered by symbol, interval.
	ListSeries(ctx context.Context) ([]domain.SeriesKey, error)
}

// DealStore provides access to deals storage.
type DealStore interface {
	// InsertBulk adds multiple deals atomically. Fails entire batch on any duplicate deal_id.
	InsertBulk(ctx context.Context, deals []*domain.ClosedDeal) error

	// GetByID retrieves a deal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, dealID string) (*domain.ClosedDeal, error)

	// GetByRunID retrieves all deals of a run, ordered by seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ClosedDeal, error)
}

// RunSummaryStore provides access to run_summaries storage.
type RunSummaryStore interface {
	// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByID retrieves a summary by run ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetByBotType retrieves all summaries of a bot type, ordered by created_at, run_id ASC.
	GetByBotType(ctx context.Context, botType domain.BotType) ([]*domain.RunSummary, error)

	// GetAll retrieves all summaries, ordered by created_at, run_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunSummary, error)
}

// EquityCurveStore provides access to equity_points storage.
type EquityCurveStore interface {
	// InsertCurve stores a whole curve. Returns ErrDuplicateKey if the run already has one.
	InsertCurve(ctx context.Context, runID string, equity []float64) error

	// GetByRunID returns the curve in index order. Returns ErrNotFound if absent.
	GetByRunID(ctx context.Context, runID string) ([]float64, error)
}

// RunAggregateStore provides access to run_aggregates storage.
type RunAggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if (bot_type, symbol) exists.
	Insert(ctx context.Context, a *domain.RunAggregate) error

	// GetByKey retrieves an aggregate. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, botType domain.BotType, symbol string) (*domain.RunAggregate, error)

	// GetAll retrieves all aggregates ordered by bot_type, symbol.
	GetAll(ctx context.Context) ([]*domain.RunAggregate, error)
}
