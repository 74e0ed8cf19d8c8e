// Package verification replays stored runs and checks that the stored
// summary, deals and equity curve are reproduced.
package verification

import (
	"context"
	"fmt"
	"math"

	"bot-sim-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, e.g. "Deals[2].ExitPrice"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID             string
	Match             bool // true if all fields match
	Divergences       []FieldDivergence
	StoredProfitPct   float64
	ReplayedProfitPct float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// Verifier replays stored runs.
type Verifier interface {
	// VerifyRun loads the stored run, re-executes the simulation with the
	// stored parameters and signal, and compares every field.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies all stored runs.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareSummaries compares the metric fields of two run summaries.
// Identity and bookkeeping fields (run ID, created-at, decision) are not compared.
func CompareSummaries(stored, replayed *domain.RunSummary) []FieldDivergence {
	var divs []FieldDivergence

	if stored.BotType != replayed.BotType {
		divs = append(divs, FieldDivergence{"BotType", stored.BotType, replayed.BotType})
	}
	if stored.CandleCount != replayed.CandleCount {
		divs = append(divs, FieldDivergence{"CandleCount", stored.CandleCount, replayed.CandleCount})
	}
	if stored.ParamsJSON != replayed.ParamsJSON {
		divs = append(divs, FieldDivergence{"ParamsJSON", stored.ParamsJSON, replayed.ParamsJSON})
	}
	if stored.TotalDeals != replayed.TotalDeals {
		divs = append(divs, FieldDivergence{"TotalDeals", stored.TotalDeals, replayed.TotalDeals})
	}

	floats := []struct {
		name     string
		expected float64
		actual   float64
	}{
		{"TotalProfitPct", stored.TotalProfitPct, replayed.TotalProfitPct},
		{"MaxDrawdownPct", stored.MaxDrawdownPct, replayed.MaxDrawdownPct},
		{"SharpeRatio", stored.SharpeRatio, replayed.SharpeRatio},
		{"WinRate", stored.WinRate, replayed.WinRate},
		{"AvgDealDurationHours", stored.AvgDealDurationHours, replayed.AvgDealDurationHours},
		{"MaxCapitalDeployed", stored.MaxCapitalDeployed, replayed.MaxCapitalDeployed},
		{"FinalEquity", stored.FinalEquity, replayed.FinalEquity},
	}
	for _, f := range floats {
		if !floatEquals(f.expected, f.actual) {
			divs = append(divs, FieldDivergence{f.name, f.expected, f.actual})
		}
	}

	if !floatPtrEquals(stored.ExpectedValuePerDeal, replayed.ExpectedValuePerDeal) {
		divs = append(divs, FieldDivergence{"ExpectedValuePerDeal", stored.ExpectedValuePerDeal, replayed.ExpectedValuePerDeal})
	}
	if !floatPtrEquals(stored.AnnualizedCapitalReturn, replayed.AnnualizedCapitalReturn) {
		divs = append(divs, FieldDivergence{"AnnualizedCapitalReturn", stored.AnnualizedCapitalReturn, replayed.AnnualizedCapitalReturn})
	}

	return divs
}

// CompareDeals compares stored and replayed deals position by position.
func CompareDeals(stored, replayed []*domain.ClosedDeal) []FieldDivergence {
	var divs []FieldDivergence

	if len(stored) != len(replayed) {
		divs = append(divs, FieldDivergence{"Deals.Len", len(stored), len(replayed)})
	}

	n := min(len(stored), len(replayed))
	for i := 0; i < n; i++ {
		s, r := stored[i], replayed[i]
		field := func(name string) string { return fmt.Sprintf("Deals[%d].%s", i, name) }

		if s.DealID != r.DealID {
			divs = append(divs, FieldDivergence{field("DealID"), s.DealID, r.DealID})
		}
		if s.Seq != r.Seq {
			divs = append(divs, FieldDivergence{field("Seq"), s.Seq, r.Seq})
		}
		if s.EntryTime != r.EntryTime {
			divs = append(divs, FieldDivergence{field("EntryTime"), s.EntryTime, r.EntryTime})
		}
		if s.ExitTime != r.ExitTime {
			divs = append(divs, FieldDivergence{field("ExitTime"), s.ExitTime, r.ExitTime})
		}
		if s.ExitReason != r.ExitReason {
			divs = append(divs, FieldDivergence{field("ExitReason"), s.ExitReason, r.ExitReason})
		}
		if !floatEquals(s.EntryPrice, r.EntryPrice) {
			divs = append(divs, FieldDivergence{field("EntryPrice"), s.EntryPrice, r.EntryPrice})
		}
		if !floatEquals(s.ExitPrice, r.ExitPrice) {
			divs = append(divs, FieldDivergence{field("ExitPrice"), s.ExitPrice, r.ExitPrice})
		}
		if !floatEquals(s.Cost, r.Cost) {
			divs = append(divs, FieldDivergence{field("Cost"), s.Cost, r.Cost})
		}
		if !floatEquals(s.PnL, r.PnL) {
			divs = append(divs, FieldDivergence{field("PnL"), s.PnL, r.PnL})
		}
		if !floatEquals(s.PnLQuote, r.PnLQuote) {
			divs = append(divs, FieldDivergence{field("PnLQuote"), s.PnLQuote, r.PnLQuote})
		}
	}

	return divs
}

// CompareEquity compares two equity curves point by point.
// Only the first mismatching point is reported.
func CompareEquity(stored, replayed []float64) []FieldDivergence {
	if len(stored) != len(replayed) {
		return []FieldDivergence{{"Equity.Len", len(stored), len(replayed)}}
	}
	for i := range stored {
		if !floatEquals(stored[i], replayed[i]) {
			return []FieldDivergence{{fmt.Sprintf("Equity[%d]", i), stored[i], replayed[i]}}
		}
	}
	return nil
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
