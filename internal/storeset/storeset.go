// Package storeset opens the full set of stores a command needs:
// PostgreSQL for runs and deals, ClickHouse for candles, equity curves
// and aggregates, or in-memory twins of all of them.
package storeset

import (
	"context"
	"errors"
	"fmt"

	"bot-sim-lab/internal/storage"
	chstore "bot-sim-lab/internal/storage/clickhouse"
	"bot-sim-lab/internal/storage/memory"
	"bot-sim-lab/internal/storage/migrations"
	pgstore "bot-sim-lab/internal/storage/postgres"
)

// ErrMissingDSN is returned when database mode lacks a connection string.
var ErrMissingDSN = errors.New("postgres and clickhouse DSNs are required without in-memory storage")

// Config selects the storage backend.
type Config struct {
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool
	// Migrate applies the embedded schema before opening the stores.
	Migrate bool
}

// Set holds every store used by the commands.
type Set struct {
	Candles    storage.CandleStore
	Runs       storage.RunSummaryStore
	Deals      storage.DealStore
	Equity     storage.EquityCurveStore
	Aggregates storage.RunAggregateStore

	close func()
}

// Close releases database connections. Safe on memory sets.
func (s *Set) Close() {
	if s.close != nil {
		s.close()
	}
}

// NewMemory returns a set backed by in-memory stores.
func NewMemory() *Set {
	return &Set{
		Candles:    memory.NewCandleStore(),
		Runs:       memory.NewRunSummaryStore(),
		Deals:      memory.NewDealStore(),
		Equity:     memory.NewEquityCurveStore(),
		Aggregates: memory.NewRunAggregateStore(),
	}
}

// Open creates the store set described by cfg.
func Open(ctx context.Context, cfg Config) (*Set, error) {
	if cfg.UseMemory {
		return NewMemory(), nil
	}
	if cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "" {
		return nil, ErrMissingDSN
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	// ClickHouse
	var chConn *chstore.Conn
	if cfg.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	return &Set{
		// PostgreSQL stores (runs + deals)
		Runs:  storage.NewInstrumentedRunSummaryStore("postgres_run_summaries", pgstore.NewRunSummaryStore(pool)),
		Deals: storage.NewInstrumentedDealStore("postgres_deals", pgstore.NewDealStore(pool)),

		// ClickHouse stores (analytics)
		Candles:    storage.NewInstrumentedCandleStore("clickhouse_candles", chstore.NewCandleStore(chConn)),
		Equity:     storage.NewInstrumentedEquityCurveStore("clickhouse_equity_points", chstore.NewEquityCurveStore(chConn)),
		Aggregates: storage.NewInstrumentedRunAggregateStore("clickhouse_run_aggregates", chstore.NewRunAggregateStore(chConn)),

		close: func() {
			chConn.Close()
			pool.Close()
		},
	}, nil
}
