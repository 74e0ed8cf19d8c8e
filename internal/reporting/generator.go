package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bot-sim-lab/internal/decision"
	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/observability"
	"bot-sim-lab/internal/storage"
	"bot-sim-lab/internal/verification"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore  storage.RunSummaryStore
	dealStore storage.DealStore
	aggStore  storage.RunAggregateStore // optional
	now       func() time.Time          // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. aggStore may be nil.
func NewGenerator(
	runStore storage.RunSummaryStore,
	dealStore storage.DealStore,
	aggStore storage.RunAggregateStore,
) *Generator {
	return &Generator{
		runStore:  runStore,
		dealStore: dealStore,
		aggStore:  aggStore,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report over every stored run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	runs, err := g.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// Load deals per run
	dealsByRun := make(map[string][]*domain.ClosedDeal, len(runs))
	for _, r := range runs {
		deals, err := g.dealStore.GetByRunID(ctx, r.RunID)
		if err != nil {
			return nil, fmt.Errorf("load deals for run %s: %w", r.RunID, err)
		}
		dealsByRun[r.RunID] = deals
	}

	aggregates, err := g.generateAggregates(ctx)
	if err != nil {
		return nil, err
	}

	// Count unique bot types and symbols
	botTypes := make(map[domain.BotType]struct{})
	symbols := make(map[string]struct{})
	for _, r := range runs {
		botTypes[r.BotType] = struct{}{}
		symbols[r.Symbol] = struct{}{}
	}

	observability.RecordReportGenerated()

	return &Report{
		GeneratedAt:  g.now(),
		RunCount:     len(runs),
		BotTypeCount: len(botTypes),
		SymbolCount:  len(symbols),
		DataSummary:  generateDataSummary(runs, dealsByRun),
		Runs:         generateRunRows(runs),
		Aggregates:   aggregates,
		ExitReasons:  generateExitReasons(runs, dealsByRun),
	}, nil
}

// generateDataSummary computes totals and the covered date range.
func generateDataSummary(runs []*domain.RunSummary, dealsByRun map[string][]*domain.ClosedDeal) DataSummary {
	var s DataSummary
	s.TotalRuns = len(runs)

	for i, r := range runs {
		if r.Decision == string(decision.DecisionGO) {
			s.GoRuns++
		}
		s.TotalDeals += len(dealsByRun[r.RunID])
		s.TotalCandles += r.CandleCount

		if i == 0 || r.StartTime < s.DateRangeStart {
			s.DateRangeStart = r.StartTime
		}
		if i == 0 || r.EndTime > s.DateRangeEnd {
			s.DateRangeEnd = r.EndTime
		}
	}
	return s
}

// generateRunRows builds sorted run rows.
func generateRunRows(runs []*domain.RunSummary) []RunRow {
	rows := make([]RunRow, len(runs))
	for i, r := range runs {
		metric := r.ExpectedValuePerDeal
		if r.BotType == domain.BotTypeGrid {
			metric = r.AnnualizedCapitalReturn
		}
		rows[i] = RunRow{
			RunID:                r.RunID,
			BotType:              string(r.BotType),
			Symbol:               r.Symbol,
			Interval:             r.Interval,
			CandleCount:          r.CandleCount,
			TotalDeals:           r.TotalDeals,
			TotalProfitPct:       r.TotalProfitPct,
			MaxDrawdownPct:       r.MaxDrawdownPct,
			SharpeRatio:          r.SharpeRatio,
			WinRate:              r.WinRate,
			AvgDealDurationHours: r.AvgDealDurationHours,
			FinalEquity:          r.FinalEquity,
			ReturnMetric:         metric,
			Decision:             r.Decision,
		}
	}

	// Sort by (bot_type, symbol, run_id)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BotType != rows[j].BotType {
			return rows[i].BotType < rows[j].BotType
		}
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].RunID < rows[j].RunID
	})
	return rows
}

// generateAggregates loads stored aggregates. Returns nil without an aggregate store.
func (g *Generator) generateAggregates(ctx context.Context) ([]AggregateRow, error) {
	if g.aggStore == nil {
		return nil, nil
	}
	aggs, err := g.aggStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}

	rows := make([]AggregateRow, len(aggs))
	for i, a := range aggs {
		rows[i] = AggregateRow{
			BotType:              string(a.BotType),
			Symbol:               a.Symbol,
			TotalRuns:            a.TotalRuns,
			GoRuns:               a.GoRuns,
			ProfitPctMean:        a.ProfitPctMean,
			ProfitPctMedian:      a.ProfitPctMedian,
			BestSharpe:           a.BestSharpe,
			WorstDrawdownPct:     a.WorstDrawdownPct,
			BestRunID:            a.BestRunID,
			TotalDeals:           a.TotalDeals,
			WinRate:              a.WinRate,
			PnLMedian:            a.PnLMedian,
			PnLP10:               a.PnLP10,
			PnLP90:               a.PnLP90,
			MaxConsecutiveLosses: a.MaxConsecutiveLosses,
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].BotType != rows[j].BotType {
			return rows[i].BotType < rows[j].BotType
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows, nil
}

// generateExitReasons counts deals per (bot_type, exit_reason).
// Reasons that never occurred for a bot type are omitted.
func generateExitReasons(runs []*domain.RunSummary, dealsByRun map[string][]*domain.ClosedDeal) []ExitReasonRow {
	counts := make(map[domain.BotType]map[domain.ExitReason]int)
	totals := make(map[domain.BotType]int)

	for _, r := range runs {
		for _, d := range dealsByRun[r.RunID] {
			if counts[r.BotType] == nil {
				counts[r.BotType] = make(map[domain.ExitReason]int)
			}
			counts[r.BotType][d.ExitReason]++
			totals[r.BotType]++
		}
	}

	botTypes := make([]domain.BotType, 0, len(counts))
	for bt := range counts {
		botTypes = append(botTypes, bt)
	}
	sort.Slice(botTypes, func(i, j int) bool { return botTypes[i] < botTypes[j] })

	var rows []ExitReasonRow
	for _, bt := range botTypes {
		for _, reason := range domain.AllExitReasons() {
			n := counts[bt][reason]
			if n == 0 {
				continue
			}
			rows = append(rows, ExitReasonRow{
				BotType: string(bt),
				Reason:  string(reason),
				Count:   n,
				Share:   float64(n) / float64(totals[bt]),
			})
		}
	}
	return rows
}

// VerificationSectionFrom condenses a verification report for rendering.
func VerificationSectionFrom(vr *verification.VerificationReport) *VerificationSection {
	if vr == nil {
		return nil
	}
	s := &VerificationSection{
		TotalRuns:     vr.TotalRuns,
		MatchedRuns:   vr.MatchedRuns,
		DivergentRuns: vr.DivergentRuns,
	}
	for _, r := range vr.Results {
		for _, d := range r.Divergences {
			s.Divergences = append(s.Divergences,
				fmt.Sprintf("%s: %s expected=%v actual=%v", r.RunID, d.Field, d.Expected, d.Actual))
		}
	}
	return s
}
