package bots

import (
	"context"
	"math"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/metrics"
)

// SafetyOrderLevel is one rung of a deal's safety-order ladder.
type SafetyOrderLevel struct {
	Index   int
	Trigger float64 // fills when candle low <= Trigger
	Size    float64 // quote amount before fees
}

// dcaDeal is an open DCA deal. The ladder is fixed at entry and consumed
// through next, the index of the first unfilled rung.
type dcaDeal struct {
	entryTime    int64
	entryPrice   float64
	filledQuote  float64 // quote spent including fees
	filledBase   float64 // base quantity bought
	ladder       []SafetyOrderLevel
	next         int
	trailingHigh *float64
}

// avgPrice is filledQuote / filledBase, falling back to the entry price.
func (d *dcaDeal) avgPrice() float64 {
	if d.filledBase > 0 {
		return d.filledQuote / d.filledBase
	}
	return d.entryPrice
}

// nextSafetyOrder returns the first unfilled rung.
func (d *dcaDeal) nextSafetyOrder() (SafetyOrderLevel, bool) {
	if d.next >= len(d.ladder) {
		return SafetyOrderLevel{}, false
	}
	return d.ladder[d.next], true
}

// DCABot simulates a martingale DCA bot.
type DCABot struct {
	params domain.DCAParams
	fees   FeeEngine
}

// NewDCABot creates a DCABot. Params are expected to be validated
// (ParseDCAParams does so); a zero Version is set to the current one.
func NewDCABot(p domain.DCAParams) *DCABot {
	if p.Version == 0 {
		p.Version = domain.ParamsVersion
	}
	return &DCABot{
		params: p,
		fees:   NewFeeEngine(p.Fee, p.SlippageBps),
	}
}

// Type returns domain.BotTypeDCA.
func (b *DCABot) Type() domain.BotType { return domain.BotTypeDCA }

// Params returns the exported configuration.
func (b *DCABot) Params() domain.ParamsEcho { return b.params.Echo() }

// SafetyOrderLadder precomputes every safety order for a deal entered at entryPrice.
// Deviation accumulates as step% * step_coeff^i, size grows as so_volume * volume_coeff^i.
func (b *DCABot) SafetyOrderLadder(entryPrice float64) []SafetyOrderLevel {
	p := b.params
	levels := make([]SafetyOrderLevel, 0, max(p.MaxSafetyOrders, 0))
	deviation := p.SafetyOrderStepPercentage / 100
	size := p.SafetyOrderVolume
	cumulative := 0.0
	for i := 0; i < p.MaxSafetyOrders; i++ {
		cumulative += deviation * math.Pow(p.MartingaleStepCoefficient, float64(i))
		levels = append(levels, SafetyOrderLevel{
			Index:   i,
			Trigger: entryPrice * (1 - cumulative),
			Size:    size,
		})
		size *= p.MartingaleVolumeCoefficient
	}
	return levels
}

// TakeProfitPrice returns avgPrice * (1 + tp%).
func (b *DCABot) TakeProfitPrice(avgPrice float64) float64 {
	return avgPrice * (1 + b.params.TakeProfitPercentage/100)
}

// dcaRun is the state of one Run call.
type dcaRun struct {
	active    []*dcaDeal
	closed    []domain.ClosedDeal
	equity    []float64
	realized  float64 // sum of closed pnl in quote
	lastClose int64   // exit time of the latest close (Unix ms)
	hasClosed bool
}

// Run simulates the bot. Candle 0 only seeds the loop; entries happen at
// the open of a candle whose aligned signal is true.
//
// Equity is initial capital plus realized pnl; open deal exposure is not
// marked to market, so intratrade drawdown is understated.
func (b *DCABot) Run(ctx context.Context, input *RunInput) (*domain.BotResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateDCAParams(b.params); err != nil {
		return nil, err
	}

	capital := input.InitialCapital
	if capital == 0 {
		capital = DefaultInitialCapital
	}

	st := &dcaRun{equity: []float64{capital}}
	candles := input.Candles

	for i := 1; i < len(candles); i++ {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		c := candles[i]

		stillActive := make([]*dcaDeal, 0, len(st.active))
		for _, d := range st.active {
			if b.step(st, d, c) {
				stillActive = append(stillActive, d)
			}
		}
		st.active = stillActive

		if input.signalAt(i) && len(st.active) < b.params.MaxActiveDeals && b.cooldownPassed(st, c.Timestamp) {
			b.openDeal(st, c)
		}

		st.equity = append(st.equity, capital+st.realized)
	}
	st.equity = append(st.equity, capital+st.realized)

	res := buildResult(domain.BotTypeDCA, capital, st.closed, st.equity, input.annualFactor(), b.Params())
	res.ExpectedValuePerDeal = floatPtr(metrics.ComputePerDealEV(res.Deals))
	return res, nil
}

// step advances one deal by one candle: safety order, stop-loss, take-profit.
// Returns false when the deal closed.
func (b *DCABot) step(st *dcaRun, d *dcaDeal, c *domain.Candle) bool {
	// At most one safety order per candle, filled at its trigger.
	if so, ok := d.nextSafetyOrder(); ok && so.Trigger > 0 && c.Low <= so.Trigger {
		d.filledQuote += b.fees.ApplyBuyFee(so.Size)
		d.filledBase += so.Size / so.Trigger
		d.next++
	}

	avg := d.avgPrice()

	if b.params.StopLossPercentage != nil {
		slPrice := avg * (1 - *b.params.StopLossPercentage/100)
		if c.Low <= slPrice {
			b.close(st, d, c.Timestamp, slPrice, domain.ExitReasonStopLoss)
			return false
		}
	}

	if b.params.TrailingTakeProfit && d.trailingHigh != nil {
		reversal := *d.trailingHigh * (1 - b.params.TrailingTakeProfitDeviation/100)
		if c.Low <= reversal {
			b.close(st, d, c.Timestamp, reversal, domain.ExitReasonTrailingTP)
			return false
		}
		if c.High > *d.trailingHigh {
			d.trailingHigh = floatPtr(c.High)
		}
		return true
	}

	if tp := b.TakeProfitPrice(avg); c.High >= tp {
		if b.params.TrailingTakeProfit {
			d.trailingHigh = floatPtr(c.High)
			return true
		}
		b.close(st, d, c.Timestamp, tp, domain.ExitReasonTakeProfit)
		return false
	}

	return true
}

func (b *DCABot) close(st *dcaRun, d *dcaDeal, ts int64, exitPrice float64, reason domain.ExitReason) {
	proceeds := b.fees.exitProceeds(d.filledBase, exitPrice)
	deal := closeDeal(len(st.closed), d.entryTime, ts, d.entryPrice, exitPrice, d.filledQuote, proceeds, reason)
	st.closed = append(st.closed, deal)
	st.realized += deal.PnLQuote
	st.lastClose = ts
	st.hasClosed = true
}

// cooldownPassed reports whether at least cooldown seconds elapsed since the last close.
func (b *DCABot) cooldownPassed(st *dcaRun, ts int64) bool {
	if b.params.CooldownBetweenDeals <= 0 || !st.hasClosed {
		return true
	}
	return ts-st.lastClose >= b.params.CooldownBetweenDeals*1000
}

// openDeal enters at the candle open with the base order.
func (b *DCABot) openDeal(st *dcaRun, c *domain.Candle) {
	if c.Open <= 0 {
		return
	}
	st.active = append(st.active, &dcaDeal{
		entryTime:   c.Timestamp,
		entryPrice:  c.Open,
		filledQuote: b.fees.ApplyBuyFee(b.params.BaseOrderVolume),
		filledBase:  b.params.BaseOrderVolume / c.Open,
		ladder:      b.SafetyOrderLadder(c.Open),
	})
}

var _ Bot = (*DCABot)(nil)
