package reporting

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"bot-sim-lab/internal/domain"
)

// Decimal places used in CSV output.
const (
	pricePlaces = 8
	ratioPlaces = 6
)

// RenderDealsCSV renders closed deals as the trades table.
// Prices and quote amounts are fixed-point decimals, pnl is a fraction of cost.
func RenderDealsCSV(deals []domain.ClosedDeal) string {
	var sb strings.Builder

	// Header
	sb.WriteString("seq,entry_time,exit_time,entry_price,exit_price,cost,pnl,pnl_quote,exit_reason,deal_id\n")

	// Rows
	for _, d := range deals {
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%s,%s,%s,%s,%s,%s,%s\n",
			d.Seq,
			d.EntryTime,
			d.ExitTime,
			fixed(d.EntryPrice, pricePlaces),
			fixed(d.ExitPrice, pricePlaces),
			fixed(d.Cost, pricePlaces),
			fixed(d.PnL, ratioPlaces),
			fixed(d.PnLQuote, pricePlaces),
			d.ExitReason,
			d.DealID,
		))
	}

	return sb.String()
}

// RenderRunsCSV renders run rows as CSV string.
func RenderRunsCSV(rows []RunRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,bot_type,symbol,interval,candles,total_deals,total_profit_pct,max_drawdown_pct,")
	sb.WriteString("sharpe_ratio,win_rate,avg_deal_duration_hours,final_equity,return_metric,decision\n")

	for _, r := range rows {
		returnMetric := ""
		if r.ReturnMetric != nil {
			returnMetric = fixed(*r.ReturnMetric, ratioPlaces)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s\n",
			r.RunID,
			r.BotType,
			csvField(r.Symbol),
			r.Interval,
			r.CandleCount,
			r.TotalDeals,
			fixed(r.TotalProfitPct, ratioPlaces),
			fixed(r.MaxDrawdownPct, ratioPlaces),
			fixed(r.SharpeRatio, ratioPlaces),
			fixed(r.WinRate, ratioPlaces),
			fixed(r.AvgDealDurationHours, ratioPlaces),
			fixed(r.FinalEquity, pricePlaces),
			returnMetric,
			r.Decision,
		))
	}

	return sb.String()
}

// RenderAggregatesCSV renders run aggregates as CSV string.
func RenderAggregatesCSV(rows []AggregateRow) string {
	var sb strings.Builder

	sb.WriteString("bot_type,symbol,total_runs,go_runs,profit_pct_mean,profit_pct_median,best_sharpe,")
	sb.WriteString("worst_drawdown_pct,best_run_id,total_deals,win_rate,pnl_median,pnl_p10,pnl_p90,max_consecutive_losses\n")

	for _, a := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,%s,%s,%s,%s,%d,%s,%s,%s,%s,%d\n",
			a.BotType,
			csvField(a.Symbol),
			a.TotalRuns,
			a.GoRuns,
			fixed(a.ProfitPctMean, ratioPlaces),
			fixed(a.ProfitPctMedian, ratioPlaces),
			fixed(a.BestSharpe, ratioPlaces),
			fixed(a.WorstDrawdownPct, ratioPlaces),
			a.BestRunID,
			a.TotalDeals,
			fixed(a.WinRate, ratioPlaces),
			fixed(a.PnLMedian, ratioPlaces),
			fixed(a.PnLP10, ratioPlaces),
			fixed(a.PnLP90, ratioPlaces),
			a.MaxConsecutiveLosses,
		))
	}

	return sb.String()
}

// fixed formats v with a fixed number of decimal places.
// NaN and infinities have no decimal form and render empty.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// csvField quotes values containing separators.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
