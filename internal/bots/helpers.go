package bots

import (
	"context"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/metrics"
)

// ctxCheckInterval is how many candles pass between cancellation checks.
const ctxCheckInterval = 1024

// checkContext returns ctx.Err() every ctxCheckInterval candles.
func checkContext(ctx context.Context, i int) error {
	if i%ctxCheckInterval != 0 {
		return nil
	}
	return ctx.Err()
}

// closeDeal builds a ClosedDeal from the quote spent and the quote received.
// A zero cost yields a zero pnl fraction.
func closeDeal(seq int, entryTime, exitTime int64, entryPrice, exitPrice, cost, proceeds float64, reason domain.ExitReason) domain.ClosedDeal {
	pnlQuote := proceeds - cost
	pnl := 0.0
	if cost > 0 {
		pnl = pnlQuote / cost
	}
	return domain.ClosedDeal{
		Seq:        seq,
		EntryTime:  entryTime,
		ExitTime:   exitTime,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Cost:       cost,
		PnL:        pnl,
		PnLQuote:   pnlQuote,
		ExitReason: reason,
	}
}

// buildResult reduces deals and equity into a BotResult.
func buildResult(botType domain.BotType, capital float64, deals []domain.ClosedDeal, equity []float64, annualFactor float64, echo domain.ParamsEcho) *domain.BotResult {
	if deals == nil {
		deals = []domain.ClosedDeal{}
	}
	res := &domain.BotResult{
		BotType:         botType,
		InitialCapital:  capital,
		Deals:           deals,
		EquityCurve:     equity,
		OptimizedParams: echo,
	}
	res.ApplyMetrics(metrics.ComputeBotMetrics(deals, equity, capital, annualFactor))
	return res
}

func floatPtr(v float64) *float64 {
	return &v
}
