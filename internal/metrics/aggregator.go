package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"bot-sim-lab/internal/decision"
	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
)

// ErrNoRuns is returned when no runs are available for aggregation.
var ErrNoRuns = errors.New("no runs available for aggregation")

// Aggregator computes run aggregates from stored run summaries and deals.
type Aggregator struct {
	runStore  storage.RunSummaryStore
	dealStore storage.DealStore
	aggStore  storage.RunAggregateStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.RunSummaryStore, dealStore storage.DealStore, aggStore storage.RunAggregateStore) *Aggregator {
	return &Aggregator{
		runStore:  runStore,
		dealStore: dealStore,
		aggStore:  aggStore,
	}
}

// ComputeAggregate computes the aggregate for (botType, symbol).
// Returns ErrNoRuns if no runs match.
func (a *Aggregator) ComputeAggregate(ctx context.Context, botType domain.BotType, symbol string) (*domain.RunAggregate, error) {
	runs, err := a.runStore.GetByBotType(ctx, botType)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	var matched []*domain.RunSummary
	for _, r := range runs {
		if r.Symbol == symbol {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, ErrNoRuns
	}

	dealsByRun := make([][]domain.ClosedDeal, len(matched))
	for i, r := range matched {
		deals, err := a.dealStore.GetByRunID(ctx, r.RunID)
		if err != nil {
			return nil, fmt.Errorf("load deals for run %s: %w", r.RunID, err)
		}
		dealsByRun[i] = derefDeals(deals)
	}

	agg := computeFromRuns(matched, dealsByRun)
	agg.BotType = botType
	agg.Symbol = symbol
	return agg, nil
}

// ComputeAndStore computes and persists an aggregate.
// Returns storage.ErrDuplicateKey if aggregate already exists (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, botType domain.BotType, symbol string) (*domain.RunAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, botType, symbol)
	if err != nil {
		return nil, err
	}

	if err := a.aggStore.Insert(ctx, agg); err != nil {
		return nil, err
	}

	return agg, nil
}

// computeFromRuns reduces runs and their deals. dealsByRun[i] belongs to runs[i].
// Runs are ordered by RunID before order-dependent choices (best run ties).
func computeFromRuns(runs []*domain.RunSummary, dealsByRun [][]domain.ClosedDeal) *domain.RunAggregate {
	agg := &domain.RunAggregate{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return agg
	}

	order := make([]int, len(runs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return runs[order[i]].RunID < runs[order[j]].RunID
	})

	profits := make([]float64, 0, len(runs))
	var pnls []float64
	bestSet := false

	for _, i := range order {
		r := runs[i]
		profits = append(profits, r.TotalProfitPct)
		if r.Decision == string(decision.DecisionGO) {
			agg.GoRuns++
		}
		if !bestSet || r.SharpeRatio > agg.BestSharpe {
			agg.BestSharpe = r.SharpeRatio
			agg.BestRunID = r.RunID
			bestSet = true
		}
		if r.MaxDrawdownPct < agg.WorstDrawdownPct {
			agg.WorstDrawdownPct = r.MaxDrawdownPct
		}

		deals := dealsByRun[i]
		if streak := computeMaxConsecutiveLosses(deals); streak > agg.MaxConsecutiveLosses {
			agg.MaxConsecutiveLosses = streak
		}
		for _, d := range deals {
			pnls = append(pnls, d.PnL)
			if d.PnL > 0 {
				agg.Wins++
			} else {
				agg.Losses++
			}
			agg.CountExit(d.ExitReason)
		}
	}

	agg.ProfitPctMean = computeMean(profits)
	agg.ProfitPctMedian = computePercentile(sortedCopy(profits), 0.50)

	agg.TotalDeals = len(pnls)
	agg.WinRate = computeWinRate(agg.Wins, agg.TotalDeals)
	if len(pnls) > 0 {
		sorted := sortedCopy(pnls)
		mean := computeMean(pnls)
		agg.PnLMean = mean
		agg.PnLMedian = computePercentile(sorted, 0.50)
		agg.PnLP10 = computePercentile(sorted, 0.10)
		agg.PnLP25 = computePercentile(sorted, 0.25)
		agg.PnLP75 = computePercentile(sorted, 0.75)
		agg.PnLP90 = computePercentile(sorted, 0.90)
		agg.PnLMin = sorted[0]
		agg.PnLMax = sorted[len(sorted)-1]
		agg.PnLStddev = computeStddev(pnls, mean)
	}

	return agg
}

func derefDeals(deals []*domain.ClosedDeal) []domain.ClosedDeal {
	out := make([]domain.ClosedDeal, len(deals))
	for i, d := range deals {
		out[i] = *d
	}
	return out
}
