package domain

// ExitReason is the closed set of reasons a deal can be closed for.
type ExitReason string

const (
	ExitReasonTakeProfit   ExitReason = "take_profit"   // static TP hit (DCA, signal)
	ExitReasonStopLoss     ExitReason = "stop_loss"     // stop-loss hit (DCA, signal)
	ExitReasonTrailingTP   ExitReason = "trailing_tp"   // DCA trailing take-profit reversal
	ExitReasonTrailingStop ExitReason = "trailing_stop" // signal bot trailing stop reversal
	ExitReasonGrid         ExitReason = "grid"          // completed grid cell buy -> sell cycle
	ExitReasonStop         ExitReason = "stop"          // grid stop_bot_price liquidation
)

// AllExitReasons returns every exit reason in a fixed order.
func AllExitReasons() []ExitReason {
	return []ExitReason{
		ExitReasonTakeProfit,
		ExitReasonStopLoss,
		ExitReasonTrailingTP,
		ExitReasonTrailingStop,
		ExitReasonGrid,
		ExitReasonStop,
	}
}

// Valid reports whether r is one of the known exit reasons.
func (r ExitReason) Valid() bool {
	switch r {
	case ExitReasonTakeProfit, ExitReasonStopLoss, ExitReasonTrailingTP,
		ExitReasonTrailingStop, ExitReasonGrid, ExitReasonStop:
		return true
	}
	return false
}

// ClosedDeal is a finished position. Immutable once appended to a result.
// Corresponds to the deals table.
type ClosedDeal struct {
	DealID string // deterministic hash, assigned when persisted
	RunID  string // owning run, assigned when persisted
	Seq    int    // close order within the run (0-based)

	// Timing (Unix ms). Zero when the platform does not report it
	// (grid stop liquidations).
	EntryTime int64
	ExitTime  int64

	// Prices
	EntryPrice float64 // base order fill, cell buy level or position entry
	ExitPrice  float64 // TP/SL/reversal/level/stop price

	// Economics
	Cost       float64 // quote spent including fees
	PnL        float64 // fraction of Cost
	PnLQuote   float64 // quote currency
	ExitReason ExitReason
}

// HasTimes reports whether both entry and exit timestamps are known.
func (d ClosedDeal) HasTimes() bool {
	return d.EntryTime != 0 && d.ExitTime != 0
}

// DurationHours returns the holding time in hours, 0 without timestamps.
func (d ClosedDeal) DurationHours() float64 {
	if !d.HasTimes() {
		return 0
	}
	return float64(d.ExitTime-d.EntryTime) / float64(3600*1000)
}
