package domain

// BotMetrics is the reduction of a run's closed deals and equity curve.
type BotMetrics struct {
	TotalDeals           int
	WinRate              float64 // deals with pnl > 0 / total deals
	AvgDealDurationHours float64 // over deals with both timestamps
	TotalReturnPct       float64 // (prod(1+pnl) - 1) * 100
	SharpeRatio          float64 // equity-curve Sharpe when available, else trade Sharpe
	MaxDrawdownPct       float64 // min((eq - peak) / peak) * 100, <= 0
	MaxCapitalDeployed   float64 // max equity, initial capital without deals
}

// BotResult is the output of one simulator run.
type BotResult struct {
	BotType        BotType
	InitialCapital float64

	// Summary metrics
	TotalProfitPct       float64
	MaxDrawdownPct       float64
	SharpeRatio          float64
	WinRate              float64
	TotalDeals           int
	AvgDealDurationHours float64
	MaxCapitalDeployed   float64

	// Bot-specific (nil when not reported by the bot type)
	ExpectedValuePerDeal    *float64 // DCA, signal
	AnnualizedCapitalReturn *float64 // grid

	Deals       []ClosedDeal
	EquityCurve []float64

	OptimizedParams ParamsEcho
}

// ApplyMetrics copies m into the summary fields of r.
func (r *BotResult) ApplyMetrics(m BotMetrics) {
	r.TotalProfitPct = m.TotalReturnPct
	r.MaxDrawdownPct = m.MaxDrawdownPct
	r.SharpeRatio = m.SharpeRatio
	r.WinRate = m.WinRate
	r.TotalDeals = m.TotalDeals
	r.AvgDealDurationHours = m.AvgDealDurationHours
	r.MaxCapitalDeployed = m.MaxCapitalDeployed
}

// FinalEquity returns the last equity point, or the initial capital
// for an empty curve.
func (r *BotResult) FinalEquity() float64 {
	if len(r.EquityCurve) == 0 {
		return r.InitialCapital
	}
	return r.EquityCurve[len(r.EquityCurve)-1]
}

// RunSummary is the persisted record of one run.
// Corresponds to the run_summaries table.
type RunSummary struct {
	RunID    string  // deterministic UUID
	BotType  BotType // dca | grid | signal
	Symbol   string
	Interval string

	// Input
	StartTime      int64 // first candle (Unix ms)
	EndTime        int64 // last candle (Unix ms)
	CandleCount    int
	Signals        []int64 // timestamps of true entry signals, kept for replay
	InitialCapital float64
	ParamsJSON     string // ParamsEcho JSON

	// Metrics
	TotalProfitPct          float64
	MaxDrawdownPct          float64
	SharpeRatio             float64
	WinRate                 float64
	TotalDeals              int
	AvgDealDurationHours    float64
	MaxCapitalDeployed      float64
	ExpectedValuePerDeal    *float64
	AnnualizedCapitalReturn *float64
	FinalEquity             float64

	// Gate
	Decision string // GO | NO-GO

	CreatedAt int64 // Unix ms
}

// EquityPoint is one stored equity curve sample.
type EquityPoint struct {
	RunID  string
	Index  int     // position in the curve, 0 = initial capital
	Equity float64 // quote currency
}
