package reporting

import (
	"fmt"
	"strings"
	"time"

	"bot-sim-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d | Bot Types: %d | Symbols: %d\n\n", r.RunCount, r.BotTypeCount, r.SymbolCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Runs | %d |\n", r.DataSummary.TotalRuns))
	sb.WriteString(fmt.Sprintf("| GO Runs | %d |\n", r.DataSummary.GoRuns))
	sb.WriteString(fmt.Sprintf("| Total Deals | %d |\n", r.DataSummary.TotalDeals))
	sb.WriteString(fmt.Sprintf("| Candles Replayed | %d |\n", r.DataSummary.TotalCandles))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Runs
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Run | Bot | Symbol | Interval | Deals | Profit% | MaxDD% | Sharpe | WinRate | AvgHours | FinalEquity | EV/Annual | Decision |\n")
		sb.WriteString("|-----|-----|--------|----------|-------|---------|--------|--------|---------|----------|-------------|-----------|----------|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %.2f | %.2f | %.4f | %.4f | %.2f | %.2f | %s | %s |\n",
				shortID(run.RunID), run.BotType, run.Symbol, run.Interval, run.TotalDeals,
				run.TotalProfitPct, run.MaxDrawdownPct, run.SharpeRatio, run.WinRate,
				run.AvgDealDurationHours, run.FinalEquity, optional(run.ReturnMetric), run.Decision))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	// Aggregates
	sb.WriteString("## Aggregates\n\n")
	if len(r.Aggregates) > 0 {
		sb.WriteString("| Bot | Symbol | Runs | GO | MeanProfit% | MedianProfit% | BestSharpe | WorstDD% | Deals | WinRate | PnL Median | PnL P10 | PnL P90 | MaxLossStreak |\n")
		sb.WriteString("|-----|--------|------|----|-------------|---------------|------------|----------|-------|---------|------------|---------|---------|---------------|\n")
		for _, a := range r.Aggregates {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.2f | %.2f | %.4f | %.2f | %d | %.4f | %.4f | %.4f | %.4f | %d |\n",
				a.BotType, a.Symbol, a.TotalRuns, a.GoRuns, a.ProfitPctMean, a.ProfitPctMedian,
				a.BestSharpe, a.WorstDrawdownPct, a.TotalDeals, a.WinRate,
				a.PnLMedian, a.PnLP10, a.PnLP90, a.MaxConsecutiveLosses))
		}
	} else {
		sb.WriteString("No aggregates available.\n")
	}
	sb.WriteString("\n")

	// Exit Reasons
	sb.WriteString("## Exit Reasons\n\n")
	if len(r.ExitReasons) > 0 {
		sb.WriteString("| Bot | Reason | Count | Share |\n")
		sb.WriteString("|-----|--------|-------|-------|\n")
		for _, e := range r.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f |\n", e.BotType, e.Reason, e.Count, e.Share))
		}
	} else {
		sb.WriteString("No closed deals.\n")
	}
	sb.WriteString("\n")

	// Replay Verification
	if v := r.Verification; v != nil {
		sb.WriteString("## Replay Verification\n\n")
		sb.WriteString(fmt.Sprintf("Verified: %d | Matched: %d | Divergent: %d\n\n", v.TotalRuns, v.MatchedRuns, v.DivergentRuns))
		for _, d := range v.Divergences {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
		if len(v.Divergences) > 0 {
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// RenderRunMarkdown renders a single run with its deal log.
func RenderRunMarkdown(s *domain.RunSummary, deals []*domain.ClosedDeal) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Run %s\n\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Bot: %s | Symbol: %s | Interval: %s | Decision: %s\n\n",
		s.BotType, s.Symbol, s.Interval, s.Decision))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Candles | %d |\n", s.CandleCount))
	sb.WriteString(fmt.Sprintf("| Range (ms) | %d - %d |\n", s.StartTime, s.EndTime))
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", s.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", s.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Total Profit %% | %.4f |\n", s.TotalProfitPct))
	sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %.4f |\n", s.MaxDrawdownPct))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", s.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", s.WinRate))
	sb.WriteString(fmt.Sprintf("| Total Deals | %d |\n", s.TotalDeals))
	sb.WriteString(fmt.Sprintf("| Avg Deal Hours | %.2f |\n", s.AvgDealDurationHours))
	sb.WriteString(fmt.Sprintf("| Max Capital Deployed | %.2f |\n", s.MaxCapitalDeployed))
	if s.ExpectedValuePerDeal != nil {
		sb.WriteString(fmt.Sprintf("| Expected Value / Deal | %.6f |\n", *s.ExpectedValuePerDeal))
	}
	if s.AnnualizedCapitalReturn != nil {
		sb.WriteString(fmt.Sprintf("| Annualized Return %% | %.4f |\n", *s.AnnualizedCapitalReturn))
	}
	sb.WriteString("\n")

	sb.WriteString("## Parameters\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(s.ParamsJSON)
	sb.WriteString("\n```\n\n")

	sb.WriteString("## Deals\n\n")
	if len(deals) == 0 {
		sb.WriteString("No closed deals.\n")
		return sb.String()
	}
	sb.WriteString("| # | Entry (ms) | Exit (ms) | Entry | Exit | Cost | PnL | PnL Quote | Reason |\n")
	sb.WriteString("|---|------------|-----------|-------|------|------|-----|-----------|--------|\n")
	for _, d := range deals {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %.8f | %.8f | %.2f | %.6f | %.4f | %s |\n",
			d.Seq, d.EntryTime, d.ExitTime, d.EntryPrice, d.ExitPrice,
			d.Cost, d.PnL, d.PnLQuote, d.ExitReason))
	}
	return sb.String()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

// shortID trims a run UUID to its first group for table display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
