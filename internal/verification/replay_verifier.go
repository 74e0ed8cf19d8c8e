package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bot-sim-lab/internal/bots"
	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/idhash"
	"bot-sim-lab/internal/lookup"
	"bot-sim-lab/internal/observability"
	"bot-sim-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrCandlesNotFound is returned when the run's candle range is no longer stored.
	ErrCandlesNotFound = errors.New("candles for run not found")
)

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	runStore    storage.RunSummaryStore
	dealStore   storage.DealStore
	equityStore storage.EquityCurveStore // optional
	candleStore storage.CandleStore

	annualFactor float64
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore    storage.RunSummaryStore
	DealStore   storage.DealStore
	EquityStore storage.EquityCurveStore
	CandleStore storage.CandleStore
	// AnnualFactor must match the one the runs were produced with.
	AnnualFactor float64
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:     opts.RunStore,
		dealStore:    opts.DealStore,
		equityStore:  opts.EquityStore,
		candleStore:  opts.CandleStore,
		annualFactor: opts.AnnualFactor,
	}
}

// Compile-time interface check.
var _ Verifier = (*ReplayVerifier)(nil)

// VerifyRun verifies a single run by replaying its simulation.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Replay simulation
	replayed, res, err := v.replayRun(ctx, stored)
	if err != nil {
		return nil, err
	}

	// 3. Compare summary, deals, equity
	divergences := CompareSummaries(stored, replayed)

	storedDeals, err := v.dealStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load deals: %w", err)
	}
	replayedDeals := make([]*domain.ClosedDeal, len(res.Deals))
	for i := range res.Deals {
		d := &res.Deals[i]
		d.RunID = runID
		d.DealID = idhash.ComputeDealID(runID, d.Seq, d.EntryTime, d.ExitTime)
		replayedDeals[i] = d
	}
	divergences = append(divergences, CompareDeals(storedDeals, replayedDeals)...)

	if v.equityStore != nil {
		curve, err := v.equityStore.GetByRunID(ctx, runID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			divergences = append(divergences, FieldDivergence{"Equity", nil, len(res.EquityCurve)})
		case err != nil:
			return nil, fmt.Errorf("load equity curve: %w", err)
		default:
			divergences = append(divergences, CompareEquity(curve, res.EquityCurve)...)
		}
	}

	result := &VerificationResult{
		RunID:             runID,
		Match:             len(divergences) == 0,
		Divergences:       divergences,
		StoredProfitPct:   stored.TotalProfitPct,
		ReplayedProfitPct: replayed.TotalProfitPct,
	}
	observability.RecordVerification(result.Match)
	return result, nil
}

// VerifyAll verifies all stored runs.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				RunID:           run.RunID,
				Match:           false,
				StoredProfitPct: run.TotalProfitPct,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

// replayRun re-executes the simulation with the stored run's inputs and
// returns the replayed summary fields alongside the raw result.
func (v *ReplayVerifier) replayRun(ctx context.Context, stored *domain.RunSummary) (*domain.RunSummary, *domain.BotResult, error) {
	// 1. Rebuild bot from the params echo
	var echo domain.ParamsEcho
	if err := json.Unmarshal([]byte(stored.ParamsJSON), &echo); err != nil {
		return nil, nil, fmt.Errorf("decode params echo: %w", err)
	}
	bot, err := bots.FromEcho(echo)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild bot: %w", err)
	}

	// 2. Load candles
	series := domain.SeriesKey{Symbol: stored.Symbol, Interval: stored.Interval}
	candles, err := v.candleStore.GetByTimeRange(ctx, series, stored.StartTime, stored.EndTime)
	if err != nil {
		return nil, nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, nil, ErrCandlesNotFound
	}

	// 3. Rebuild the shifted signal from stored timestamps
	var signal []bool
	if len(stored.Signals) > 0 {
		signal = lookup.SignalFromTimestamps(candles, stored.Signals)
	}

	// 4. Execute
	res, err := bot.Run(ctx, &bots.RunInput{
		Candles:        candles,
		Signal:         signal,
		InitialCapital: stored.InitialCapital,
		AnnualFactor:   v.annualFactor,
	})
	if err != nil {
		return nil, nil, err
	}

	paramsJSON, err := json.Marshal(res.OptimizedParams)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal params echo: %w", err)
	}

	replayed := &domain.RunSummary{
		BotType:                 res.BotType,
		CandleCount:             len(candles),
		ParamsJSON:              string(paramsJSON),
		TotalProfitPct:          res.TotalProfitPct,
		MaxDrawdownPct:          res.MaxDrawdownPct,
		SharpeRatio:             res.SharpeRatio,
		WinRate:                 res.WinRate,
		TotalDeals:              res.TotalDeals,
		AvgDealDurationHours:    res.AvgDealDurationHours,
		MaxCapitalDeployed:      res.MaxCapitalDeployed,
		ExpectedValuePerDeal:    res.ExpectedValuePerDeal,
		AnnualizedCapitalReturn: res.AnnualizedCapitalReturn,
		FinalEquity:             res.FinalEquity(),
	}
	return replayed, res, nil
}
