package storage

import (
	"context"
	"errors"
	"time"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/observability"
)

// observe records one store call. ErrNotFound is an answer, not a failure.
func observe(store, op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery(store, op, time.Since(start).Seconds(), err)
}

// InstrumentedCandleStore records query latency and errors for a CandleStore.
type InstrumentedCandleStore struct {
	name  string
	inner CandleStore
}

// NewInstrumentedCandleStore wraps inner; name labels the metrics.
func NewInstrumentedCandleStore(name string, inner CandleStore) *InstrumentedCandleStore {
	return &InstrumentedCandleStore{name: name, inner: inner}
}

func (s *InstrumentedCandleStore) InsertBulk(ctx context.Context, key domain.SeriesKey, candles []*domain.Candle) (err error) {
	defer func(start time.Time) { observe(s.name, "insert_bulk", start, err) }(time.Now())
	return s.inner.InsertBulk(ctx, key, candles)
}

func (s *InstrumentedCandleStore) GetByTimeRange(ctx context.Context, key domain.SeriesKey, start, end int64) (out []*domain.Candle, err error) {
	defer func(t time.Time) { observe(s.name, "get_by_time_range", t, err) }(time.Now())
	return s.inner.GetByTimeRange(ctx, key, start, end)
}

func (s *InstrumentedCandleStore) ListSeries(ctx context.Context) (out []domain.SeriesKey, err error) {
	defer func(start time.Time) { observe(s.name, "list_series", start, err) }(time.Now())
	return s.inner.ListSeries(ctx)
}

// InstrumentedDealStore records query latency and errors for a DealStore.
type InstrumentedDealStore struct {
	name  string
	inner DealStore
}

// NewInstrumentedDealStore wraps inner; name labels the metrics.
func NewInstrumentedDealStore(name string, inner DealStore) *InstrumentedDealStore {
	return &InstrumentedDealStore{name: name, inner: inner}
}

func (s *InstrumentedDealStore) InsertBulk(ctx context.Context, deals []*domain.ClosedDeal) (err error) {
	defer func(start time.Time) { observe(s.name, "insert_bulk", start, err) }(time.Now())
	return s.inner.InsertBulk(ctx, deals)
}

func (s *InstrumentedDealStore) GetByID(ctx context.Context, dealID string) (out *domain.ClosedDeal, err error) {
	defer func(start time.Time) { observe(s.name, "get_by_id", start, err) }(time.Now())
	return s.inner.GetByID(ctx, dealID)
}

func (s *InstrumentedDealStore) GetByRunID(ctx context.Context, runID string) (out []*domain.ClosedDeal, err error) {
	defer func(start time.Time) { observe(s.name, "get_by_run_id", start, err) }(time.Now())
	return s.inner.GetByRunID(ctx, runID)
}

// InstrumentedRunSummaryStore records query latency and errors for a RunSummaryStore.
type InstrumentedRunSummaryStore struct {
	name  string
	inner RunSummaryStore
}

// NewInstrumentedRunSummaryStore wraps inner; name labels the metrics.
func NewInstrumentedRunSummaryStore(name string, inner RunSummaryStore) *InstrumentedRunSummaryStore {
	return &InstrumentedRunSummaryStore{name: name, inner: inner}
}

func (s *InstrumentedRunSummaryStore) Insert(ctx context.Context, r *domain.RunSummary) (err error) {
	defer func(start time.Time) { observe(s.name, "insert", start, err) }(time.Now())
	return s.inner.Insert(ctx, r)
}

func (s *InstrumentedRunSummaryStore) GetByID(ctx context.Context, runID string) (out *domain.RunSummary, err error) {
	defer func(start time.Time) { observe(s.name, "get_by_id", start, err) }(time.Now())
	return s.inner.GetByID(ctx, runID)
}

func (s *InstrumentedRunSummaryStore) GetByBotType(ctx context.Context, botType domain.BotType) (out []*domain.RunSummary, err error) {
	defer func(start time.Time) { observe(s.name, "get_by_bot_type", start, err) }(time.Now())
	return s.inner.GetByBotType(ctx, botType)
}

func (s *InstrumentedRunSummaryStore) GetAll(ctx context.Context) (out []*domain.RunSummary, err error) {
	defer func(start time.Time) { observe(s.name, "get_all", start, err) }(time.Now())
	return s.inner.GetAll(ctx)
}

// InstrumentedEquityCurveStore records query latency and errors for an EquityCurveStore.
type InstrumentedEquityCurveStore struct {
	name  string
	inner EquityCurveStore
}

// NewInstrumentedEquityCurveStore wraps inner; name labels the metrics.
func NewInstrumentedEquityCurveStore(name string, inner EquityCurveStore) *InstrumentedEquityCurveStore {
	return &InstrumentedEquityCurveStore{name: name, inner: inner}
}

func (s *InstrumentedEquityCurveStore) InsertCurve(ctx context.Context, runID string, equity []float64) (err error) {
	defer func(start time.Time) { observe(s.name, "insert_curve", start, err) }(time.Now())
	return s.inner.InsertCurve(ctx, runID, equity)
}

func (s *InstrumentedEquityCurveStore) GetByRunID(ctx context.Context, runID string) (out []float64, err error) {
	defer func(start time.Time) { observe(s.name, "get_by_run_id", start, err) }(time.Now())
	return s.inner.GetByRunID(ctx, runID)
}

// InstrumentedRunAggregateStore records query latency and errors for a RunAggregateStore.
type InstrumentedRunAggregateStore struct {
	name  string
	inner RunAggregateStore
}

// NewInstrumentedRunAggregateStore wraps inner; name labels the metrics.
func NewInstrumentedRunAggregateStore(name string, inner RunAggregateStore) *InstrumentedRunAggregateStore {
	return &InstrumentedRunAggregateStore{name: name, inner: inner}
}

func (s *InstrumentedRunAggregateStore) Insert(ctx context.Context, a *domain.RunAggregate) (err error) {
	defer func(start time.Time) { observe(s.name, "insert", start, err) }(time.Now())
	return s.inner.Insert(ctx, a)
}

func (s *InstrumentedRunAggregateStore) GetByKey(ctx context.Context, botType domain.BotType, symbol string) (out *domain.RunAggregate, err error) {
	defer func(start time.Time) { observe(s.name, "get_by_key", start, err) }(time.Now())
	return s.inner.GetByKey(ctx, botType, symbol)
}

func (s *InstrumentedRunAggregateStore) GetAll(ctx context.Context) (out []*domain.RunAggregate, err error) {
	defer func(start time.Time) { observe(s.name, "get_all", start, err) }(time.Now())
	return s.inner.GetAll(ctx)
}

var (
	_ CandleStore       = (*InstrumentedCandleStore)(nil)
	_ DealStore         = (*InstrumentedDealStore)(nil)
	_ RunSummaryStore   = (*InstrumentedRunSummaryStore)(nil)
	_ EquityCurveStore  = (*InstrumentedEquityCurveStore)(nil)
	_ RunAggregateStore = (*InstrumentedRunAggregateStore)(nil)
)
