package metrics

import (
	"math"
	"sort"

	"bot-sim-lab/internal/domain"
)

// ComputeBotMetrics reduces closed deals and an equity curve.
//
// Trade-level statistics come from the deals; when the equity curve has
// more than one point, drawdown and max capital come from it, and its
// period-return Sharpe replaces the trade Sharpe when defined.
// No deals yields zero metrics with MaxCapitalDeployed = initialCapital.
func ComputeBotMetrics(deals []domain.ClosedDeal, equity []float64, initialCapital, annualFactor float64) domain.BotMetrics {
	m := domain.BotMetrics{
		TotalDeals:         len(deals),
		MaxCapitalDeployed: initialCapital,
	}
	if len(deals) == 0 {
		return m
	}

	pnls := make([]float64, len(deals))
	wins := 0
	for i, d := range deals {
		pnls[i] = d.PnL
		if d.PnL > 0 {
			wins++
		}
	}
	m.WinRate = computeWinRate(wins, len(pnls))
	m.AvgDealDurationHours = computeAvgDurationHours(deals)
	m.TotalReturnPct = computeCompoundReturn(pnls) * 100

	mean := computeMean(pnls)
	if std := computeStddev(pnls, mean); std > 0 {
		m.SharpeRatio = mean / std * math.Sqrt(annualFactor/float64(len(pnls)))
	}

	if len(equity) > 1 {
		m.MaxDrawdownPct = computeEquityDrawdown(equity) * 100
		m.MaxCapitalDeployed = maxOf(equity)

		returns := computePeriodReturns(equity)
		if len(returns) > 1 {
			rm := computeMean(returns)
			if rs := computeStddev(returns, rm); rs > 0 {
				m.SharpeRatio = rm / rs * math.Sqrt(annualFactor)
			}
		}
	}

	return m
}

// ComputePerDealEV is mean(pnl | take_profit) * win_rate +
// mean(pnl | stop_loss) * (1 - win_rate), with win_rate over all deals.
// Returns 0 for an empty set or when no deal has a TP/SL exit.
func ComputePerDealEV(deals []domain.ClosedDeal) float64 {
	if len(deals) == 0 {
		return 0
	}

	var tp, sl []float64
	wins := 0
	for _, d := range deals {
		if d.PnL > 0 {
			wins++
		}
		switch d.ExitReason {
		case domain.ExitReasonTakeProfit:
			tp = append(tp, d.PnL)
		case domain.ExitReasonStopLoss:
			sl = append(sl, d.PnL)
		}
	}
	if len(tp) == 0 && len(sl) == 0 {
		return 0
	}

	winRate := computeWinRate(wins, len(deals))
	return computeMean(tp)*winRate + computeMean(sl)*(1-winRate)
}

// ComputeAnnualizedCapitalReturn is (profit / capital) / years * 100.
// Returns 0 for non-positive years or capital.
func ComputeAnnualizedCapitalReturn(totalProfit, initialCapital, years float64) float64 {
	if years <= 0 || initialCapital <= 0 {
		return 0
	}
	return totalProfit / initialCapital / years * 100
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeAvgDurationHours averages over deals carrying both timestamps.
func computeAvgDurationHours(deals []domain.ClosedDeal) float64 {
	sum := 0.0
	n := 0
	for _, d := range deals {
		if !d.HasTimes() {
			continue
		}
		sum += d.DurationHours()
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// computeCompoundReturn is prod(1 + r) - 1.
func computeCompoundReturn(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// computeEquityDrawdown returns min((eq - peak) / peak) as a fraction <= 0.
// A non-positive running peak divides by 1.
func computeEquityDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		denom := peak
		if denom <= 0 {
			denom = 1
		}
		if dd := (v - peak) / denom; dd < worst {
			worst = dd
		}
	}
	return worst
}

// computePeriodReturns is the percentage change between consecutive points.
// Steps from a zero value are skipped.
func computePeriodReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		out = append(out, equity[i]/prev-1)
	}
	return out
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxConsecutiveLosses finds longest streak of pnl <= 0.
// Deals must be in close order.
func computeMaxConsecutiveLosses(deals []domain.ClosedDeal) int {
	maxStreak := 0
	currentStreak := 0

	for _, d := range deals {
		if d.PnL <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}

// sortedCopy returns values sorted ASC without touching the input.
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
