package domain

// RunAggregate summarizes every stored run of one bot type on one symbol,
// typically the runs of a parameter sweep.
// Corresponds to run_aggregates table.
type RunAggregate struct {
	BotType BotType
	Symbol  string

	// Runs
	TotalRuns        int
	GoRuns           int     // runs that passed the deployment gate
	ProfitPctMean    float64 // mean TotalProfitPct across runs
	ProfitPctMedian  float64
	BestSharpe       float64
	WorstDrawdownPct float64 // most negative MaxDrawdownPct
	BestRunID        string  // run with the highest Sharpe

	// Deals (pooled across runs)
	TotalDeals int
	Wins       int
	Losses     int
	WinRate    float64

	// Deal PnL distribution (fractions of cost)
	PnLMean   float64
	PnLMedian float64
	PnLP10    float64
	PnLP25    float64
	PnLP75    float64
	PnLP90    float64
	PnLMin    float64
	PnLMax    float64
	PnLStddev float64

	MaxConsecutiveLosses int // longest losing streak within a single run

	// Exit reason counts
	TakeProfitExits   int
	StopLossExits     int
	TrailingTPExits   int
	TrailingStopExits int
	GridExits         int
	StopExits         int
}

// CountExit increments the counter for reason.
func (a *RunAggregate) CountExit(reason ExitReason) {
	switch reason {
	case ExitReasonTakeProfit:
		a.TakeProfitExits++
	case ExitReasonStopLoss:
		a.StopLossExits++
	case ExitReasonTrailingTP:
		a.TrailingTPExits++
	case ExitReasonTrailingStop:
		a.TrailingStopExits++
	case ExitReasonGrid:
		a.GridExits++
	case ExitReasonStop:
		a.StopExits++
	}
}
