package bots

import (
	"context"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/metrics"
)

// position is the signal bot's single open position.
type position struct {
	entryTime    int64
	entryPrice   float64
	qty          float64
	cost         float64 // quote spent including fees
	trailingHigh *float64
}

// SignalBot simulates a single-position bot driven by an external signal.
type SignalBot struct {
	params domain.SignalParams
	fees   FeeEngine
}

// NewSignalBot creates a SignalBot; a zero Version is set to the current one.
func NewSignalBot(p domain.SignalParams) *SignalBot {
	if p.Version == 0 {
		p.Version = domain.ParamsVersion
	}
	return &SignalBot{
		params: p,
		fees:   NewFeeEngine(p.Fee, p.SlippageBps),
	}
}

// Type returns domain.BotTypeSignal.
func (b *SignalBot) Type() domain.BotType { return domain.BotTypeSignal }

// Params returns the exported configuration.
func (b *SignalBot) Params() domain.ParamsEcho { return b.params.Echo() }

// Run simulates the bot. Exits are checked in order stop-loss, trailing
// stop, take-profit. A bar that closes the position does not re-enter.
func (b *SignalBot) Run(ctx context.Context, input *RunInput) (*domain.BotResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSignalParams(b.params); err != nil {
		return nil, err
	}

	capital := input.InitialCapital
	if capital == 0 {
		capital = DefaultInitialCapital
	}

	p := b.params
	candles := input.Candles

	var pos *position
	var closed []domain.ClosedDeal
	equity := []float64{capital}
	totalPnL := 0.0

	exit := func(ts int64, price float64, reason domain.ExitReason) {
		proceeds := b.fees.exitProceeds(pos.qty, price)
		deal := closeDeal(len(closed), pos.entryTime, ts, pos.entryPrice, price, pos.cost, proceeds, reason)
		closed = append(closed, deal)
		totalPnL += deal.PnLQuote
		pos = nil
	}

	for i := 1; i < len(candles); i++ {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		c := candles[i]

		if pos != nil {
			exited := false

			slPrice := pos.entryPrice * (1 - p.StopLossPercentage/100)
			if c.Low <= slPrice {
				exit(c.Timestamp, slPrice, domain.ExitReasonStopLoss)
				exited = true
			}

			if !exited && p.TrailingStopLoss && pos.trailingHigh != nil {
				reversal := *pos.trailingHigh * (1 - p.TrailingStopLossPercentage/100)
				if c.Low <= reversal {
					exit(c.Timestamp, reversal, domain.ExitReasonTrailingStop)
					exited = true
				}
			}

			if !exited {
				tpPrice := pos.entryPrice * (1 + p.TakeProfitPercentage/100)
				if c.High >= tpPrice {
					exit(c.Timestamp, tpPrice, domain.ExitReasonTakeProfit)
					exited = true
				}
			}

			if exited {
				equity = append(equity, capital+totalPnL)
				continue
			}

			if p.TrailingStopLoss && (pos.trailingHigh == nil || c.High > *pos.trailingHigh) {
				pos.trailingHigh = floatPtr(c.High)
			}
		}

		if pos == nil && input.signalAt(i) && c.Open > 0 {
			pos = &position{
				entryTime:  c.Timestamp,
				entryPrice: c.Open,
				qty:        p.PositionSize / c.Open,
				cost:       b.fees.ApplyBuyFee(p.PositionSize),
			}
		}

		equity = append(equity, capital+totalPnL)
	}
	equity = append(equity, capital+totalPnL)

	res := buildResult(domain.BotTypeSignal, capital, closed, equity, input.annualFactor(), b.Params())
	res.ExpectedValuePerDeal = floatPtr(metrics.ComputePerDealEV(res.Deals))
	return res, nil
}

var _ Bot = (*SignalBot)(nil)
