package reporting

import "time"

// Report is the cross-run backtest report.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	RunCount     int
	BotTypeCount int
	SymbolCount  int

	// Data Summary
	DataSummary DataSummary

	// Runs (sorted by bot_type, symbol, run_id)
	Runs []RunRow

	// Aggregates (sorted by bot_type, symbol)
	Aggregates []AggregateRow

	// Exit reason breakdown (sorted by bot_type, then the fixed reason order)
	ExitReasons []ExitReasonRow

	// Replay verification, nil when not performed
	Verification *VerificationSection
}

// DataSummary contains data description.
type DataSummary struct {
	TotalRuns      int
	GoRuns         int
	TotalDeals     int
	TotalCandles   int
	DateRangeStart int64 // Unix ms, earliest run start
	DateRangeEnd   int64 // Unix ms, latest run end
}

// RunRow represents one row in the runs table.
type RunRow struct {
	RunID                string
	BotType              string
	Symbol               string
	Interval             string
	CandleCount          int
	TotalDeals           int
	TotalProfitPct       float64
	MaxDrawdownPct       float64
	SharpeRatio          float64
	WinRate              float64
	AvgDealDurationHours float64
	FinalEquity          float64
	// ReturnMetric is EV per deal for DCA/signal runs and the annualized
	// capital return for grid runs. Nil when not reported.
	ReturnMetric *float64
	Decision     string
}

// AggregateRow represents one (bot_type, symbol) aggregate.
type AggregateRow struct {
	BotType              string
	Symbol               string
	TotalRuns            int
	GoRuns               int
	ProfitPctMean        float64
	ProfitPctMedian      float64
	BestSharpe           float64
	WorstDrawdownPct     float64
	BestRunID            string
	TotalDeals           int
	WinRate              float64
	PnLMedian            float64
	PnLP10               float64
	PnLP90               float64
	MaxConsecutiveLosses int
}

// ExitReasonRow counts closed deals per exit reason.
type ExitReasonRow struct {
	BotType string
	Reason  string
	Count   int
	Share   float64 // of the bot type's deals
}

// VerificationSection summarizes a replay verification pass.
type VerificationSection struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Divergences   []string // "run_id: field expected=... actual=..."
}
