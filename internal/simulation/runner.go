package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"bot-sim-lab/internal/bots"
	"bot-sim-lab/internal/decision"
	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/idhash"
	"bot-sim-lab/internal/lookup"
	"bot-sim-lab/internal/observability"
	"bot-sim-lab/internal/storage"
)

// Runner errors
var (
	ErrNoCandles         = errors.New("no candles in requested range")
	ErrNoCandleStore     = errors.New("runner has no candle store")
	ErrInvalidRequest    = errors.New("invalid run request")
	ErrNegativeSignalLag = errors.New("signal lag must not be negative")
)

// DefaultConcurrency bounds RunBatch when RunnerOptions.Concurrency is zero.
const DefaultConcurrency = 4

// Request describes one run: a bot configuration over one candle range.
type Request struct {
	BotType domain.BotType
	Params  map[string]any // platform field names

	Series domain.SeriesKey
	Start  int64 // first candle (Unix ms), inclusive
	End    int64 // last candle (Unix ms), inclusive; 0 means open-ended

	// Signals are sparse entry signal points, aligned onto the candles.
	Signals []domain.SignalPoint
	// SignalLag shifts the aligned signal forward by this many candles.
	SignalLag int

	InitialCapital float64
}

// Outcome is the result of one run.
type Outcome struct {
	Summary  *domain.RunSummary
	Result   *domain.BotResult
	Decision *decision.DecisionResult
	// Stored is false when nothing was written: no stores configured,
	// or an identical run already existed.
	Stored bool
}

// Runner executes bot simulations and persists their results.
type Runner struct {
	candleStore storage.CandleStore
	runStore    storage.RunSummaryStore
	dealStore   storage.DealStore
	equityStore storage.EquityCurveStore

	evaluator    *decision.Evaluator
	annualFactor float64
	concurrency  int
	now          func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
// Nil result stores disable persistence.
type RunnerOptions struct {
	CandleStore storage.CandleStore
	RunStore    storage.RunSummaryStore
	DealStore   storage.DealStore
	EquityStore storage.EquityCurveStore

	Thresholds   *decision.Thresholds // nil selects decision.DefaultThresholds
	AnnualFactor float64              // zero selects bots.DefaultAnnualFactor
	Concurrency  int                  // zero selects DefaultConcurrency
	Now          func() time.Time     // nil selects time.Now
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	th := decision.DefaultThresholds
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		candleStore:  opts.CandleStore,
		runStore:     opts.RunStore,
		dealStore:    opts.DealStore,
		equityStore:  opts.EquityStore,
		evaluator:    decision.NewEvaluator(th),
		annualFactor: opts.AnnualFactor,
		concurrency:  concurrency,
		now:          now,
	}
}

// Run loads the requested candle range from the candle store and executes it.
func (r *Runner) Run(ctx context.Context, req *Request) (*Outcome, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if r.candleStore == nil {
		return nil, ErrNoCandleStore
	}

	end := req.End
	if end <= 0 {
		end = math.MaxInt64
	}
	candles, err := r.candleStore.GetByTimeRange(ctx, req.Series, req.Start, end)
	if err != nil {
		observability.RecordRunError("load")
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		observability.RecordRunError("load")
		return nil, ErrNoCandles
	}

	return r.Execute(ctx, req, candles)
}

// Execute runs the bot over candles, evaluates the gate and persists the run.
// Steps:
//  1. Build bot from params
//  2. Align and shift the signal
//  3. Simulate
//  4. Evaluate the deployment gate
//  5. Derive the run ID and summary
//  6. Persist summary, deals, equity curve
func (r *Runner) Execute(ctx context.Context, req *Request, candles []*domain.Candle) (*Outcome, error) {
	started := time.Now()

	if req == nil || req.Series.Symbol == "" {
		return nil, ErrInvalidRequest
	}
	if req.SignalLag < 0 {
		return nil, ErrNegativeSignalLag
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}

	// 1. Build bot
	bot, err := bots.FromParams(req.BotType, req.Params)
	if err != nil {
		observability.RecordRunError("config")
		return nil, err
	}

	// 2. Signal
	var signal []bool
	if len(req.Signals) > 0 {
		signal = lookup.ShiftSignal(lookup.AlignSignal(candles, req.Signals), req.SignalLag)
	}

	// 3. Simulate
	res, err := bot.Run(ctx, &bots.RunInput{
		Candles:        candles,
		Signal:         signal,
		InitialCapital: req.InitialCapital,
		AnnualFactor:   r.annualFactor,
	})
	if err != nil {
		observability.RecordRunError("simulate")
		return nil, fmt.Errorf("simulate %s: %w", req.BotType, err)
	}

	// 4. Gate
	dec, err := r.evaluator.Evaluate(decision.FromResult(res))
	if err != nil {
		return nil, fmt.Errorf("evaluate gate: %w", err)
	}

	// 5. Summary
	summary, err := r.buildSummary(req, candles, signal, res, dec)
	if err != nil {
		return nil, err
	}
	for i := range res.Deals {
		d := &res.Deals[i]
		d.RunID = summary.RunID
		d.DealID = idhash.ComputeDealID(summary.RunID, d.Seq, d.EntryTime, d.ExitTime)
	}

	out := &Outcome{Summary: summary, Result: res, Decision: dec}

	// 6. Persist
	if r.runStore != nil {
		stored, err := r.persist(ctx, summary, res)
		if err != nil {
			observability.RecordRunError("persist")
			return nil, err
		}
		out.Stored = stored
		if !stored {
			observability.RecordRunDeduplicated()
			if existing, err := r.runStore.GetByID(ctx, summary.RunID); err == nil {
				out.Summary = existing
			}
		}
	}

	observability.RecordRun(res, len(candles), string(dec.Decision), time.Since(started).Seconds())
	observability.SetLastSuccessfulRun(r.now().Unix())

	return out, nil
}

// RunBatch runs requests concurrently, at most Concurrency at a time.
// Outcomes are returned in request order. The first error cancels the rest.
func (r *Runner) RunBatch(ctx context.Context, reqs []*Request) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			out, err := r.Run(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d (%s %s): %w", i, requestBotType(req), requestSymbol(req), err)
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// buildSummary derives the deterministic run ID and the persisted record.
func (r *Runner) buildSummary(req *Request, candles []*domain.Candle, signal []bool, res *domain.BotResult, dec *decision.DecisionResult) (*domain.RunSummary, error) {
	paramsJSON, err := json.Marshal(res.OptimizedParams)
	if err != nil {
		return nil, fmt.Errorf("marshal params echo: %w", err)
	}

	signals := lookup.SignalTimestamps(candles, signal)
	start := candles[0].Timestamp
	end := candles[len(candles)-1].Timestamp

	runID := idhash.ComputeRunID(
		res.BotType, req.Series.Symbol, req.Series.Interval,
		start, end, res.InitialCapital, string(paramsJSON), signals,
	)

	return &domain.RunSummary{
		RunID:                   runID,
		BotType:                 res.BotType,
		Symbol:                  req.Series.Symbol,
		Interval:                req.Series.Interval,
		StartTime:               start,
		EndTime:                 end,
		CandleCount:             len(candles),
		Signals:                 signals,
		InitialCapital:          res.InitialCapital,
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
		Decision:                string(dec.Decision),
		CreatedAt:               r.now().UnixMilli(),
	}, nil
}

// persist writes summary, deals and equity in that order.
// Returns false without writing anything else when the run already exists.
func (r *Runner) persist(ctx context.Context, summary *domain.RunSummary, res *domain.BotResult) (bool, error) {
	if err := r.runStore.Insert(ctx, summary); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("store run summary: %w", err)
	}

	if r.dealStore != nil && len(res.Deals) > 0 {
		deals := make([]*domain.ClosedDeal, len(res.Deals))
		for i := range res.Deals {
			deals[i] = &res.Deals[i]
		}
		if err := r.dealStore.InsertBulk(ctx, deals); err != nil {
			return false, fmt.Errorf("store deals: %w", err)
		}
	}

	if r.equityStore != nil && len(res.EquityCurve) > 0 {
		if err := r.equityStore.InsertCurve(ctx, summary.RunID, res.EquityCurve); err != nil {
			return false, fmt.Errorf("store equity curve: %w", err)
		}
	}

	return true, nil
}

func requestBotType(req *Request) domain.BotType {
	if req == nil {
		return ""
	}
	return req.BotType
}

func requestSymbol(req *Request) string {
	if req == nil {
		return ""
	}
	return req.Series.Symbol
}
