package bots

import (
	"context"
	"math"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/metrics"
)

// msPerYear is a 365.25-day year in milliseconds.
const msPerYear = 365.25 * 24 * 3600 * 1000

// minGridYears floors the elapsed time used for annualizing grid returns.
const minGridYears = 0.001

// gridBuy is an open buy resting in one grid cell.
type gridBuy struct {
	price float64 // lower level of the cell
	qty   float64 // base quantity
	cost  float64 // quote spent including fee
}

// openBuys keeps open cell buys in the order they were placed.
type openBuys struct {
	byCell map[int]gridBuy
	order  []int
}

func newOpenBuys() *openBuys {
	return &openBuys{byCell: make(map[int]gridBuy)}
}

func (o *openBuys) has(cell int) bool {
	_, ok := o.byCell[cell]
	return ok
}

func (o *openBuys) put(cell int, b gridBuy) {
	o.byCell[cell] = b
	o.order = append(o.order, cell)
}

func (o *openBuys) pop(cell int) gridBuy {
	b := o.byCell[cell]
	delete(o.byCell, cell)
	for i, c := range o.order {
		if c == cell {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return b
}

// GridBot simulates a static price grid with optional trailing up and stop price.
type GridBot struct {
	params domain.GridParams
	fees   FeeEngine
}

// NewGridBot creates a GridBot; a zero Version is set to the current one.
func NewGridBot(p domain.GridParams) *GridBot {
	if p.Version == 0 {
		p.Version = domain.ParamsVersion
	}
	if p.GridType == "" {
		p.GridType = domain.GridTypeGeometric
	}
	return &GridBot{
		params: p,
		fees:   NewFeeEngine(p.Fee, p.SlippageBps),
	}
}

// Type returns domain.BotTypeGrid.
func (b *GridBot) Type() domain.BotType { return domain.BotTypeGrid }

// Params returns the exported configuration.
func (b *GridBot) Params() domain.ParamsEcho { return b.params.Echo() }

// Levels returns grid_lines_count+1 ascending levels between the configured
// lower price and upper.
func (b *GridBot) Levels(upper float64) []float64 {
	n := b.params.GridLinesCount
	lower := b.params.LowerPrice
	levels := make([]float64, n+1)
	if b.params.GridType == domain.GridTypeArithmetic {
		step := (upper - lower) / float64(n)
		for i := range levels {
			levels[i] = lower + step*float64(i)
		}
		return levels
	}
	ratio := math.Pow(upper/lower, 1/float64(n))
	for i := range levels {
		levels[i] = lower * math.Pow(ratio, float64(i))
	}
	return levels
}

// orderSize is the quote amount committed to each cell.
func (b *GridBot) orderSize() float64 {
	return b.params.InvestmentAmount / float64(b.params.GridLinesCount)
}

// ProfitPerGrid is the quote profit of one completed buy->sell cycle
// between adjacent levels lo and hi.
func (b *GridBot) ProfitPerGrid(lo, hi float64) float64 {
	size := b.orderSize()
	buyCost := size * (1 + b.fees.Fee())
	sellProceeds := size * (hi / lo) * (1 - b.fees.Fee())
	return sellProceeds - buyCost
}

// Run simulates the grid bar by bar.
//
// A buy fills at a cell's lower level when the previous high was at or
// above it and the current low reaches it; the matching sell fills at the
// upper level when the previous low was at or below it and the current high
// reaches it. Several cells may fill in one bar, and a cell may buy and sell
// in the same bar. Breaching the stop price liquidates everything and ends
// the run.
func (b *GridBot) Run(ctx context.Context, input *RunInput) (*domain.BotResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateGridParams(b.params); err != nil {
		return nil, err
	}

	capital := input.InitialCapital
	if capital == 0 {
		capital = b.params.InvestmentAmount
	}

	candles := input.Candles
	upper := b.params.UpperPrice
	levels := b.Levels(upper)
	size := b.orderSize()
	fee := b.fees.Fee()

	buys := newOpenBuys()
	var closed []domain.ClosedDeal
	equity := []float64{capital}
	totalProfit := 0.0

	prevLow := candles[0].Low
	prevHigh := candles[0].High

	for i := 1; i < len(candles); i++ {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		c := candles[i]

		if stop := b.params.StopBotPrice; stop != nil && c.Low <= *stop {
			for _, cell := range buys.order {
				buy := buys.byCell[cell]
				proceeds := b.fees.exitProceeds(buy.qty, *stop)
				deal := closeDeal(len(closed), 0, 0, buy.price, *stop, buy.cost, proceeds, domain.ExitReasonStop)
				closed = append(closed, deal)
				totalProfit += deal.PnLQuote
			}
			buys = newOpenBuys()
			equity = append(equity, capital+totalProfit)
			break
		}

		if b.params.TrailingUp && c.Close > upper {
			upper = c.Close
			levels = b.Levels(upper)
		}

		for j := 0; j < len(levels)-1; j++ {
			lo, hi := levels[j], levels[j+1]

			if prevHigh >= lo && c.Low <= lo && !buys.has(j) {
				buys.put(j, gridBuy{
					price: lo,
					qty:   size / lo,
					cost:  size * (1 + fee),
				})
			}

			if buys.has(j) && prevLow <= hi && c.High >= hi {
				buy := buys.pop(j)
				proceeds := b.fees.exitProceeds(buy.qty, hi)
				deal := closeDeal(len(closed), candles[i-1].Timestamp, c.Timestamp, buy.price, hi, buy.cost, proceeds, domain.ExitReasonGrid)
				closed = append(closed, deal)
				totalProfit += deal.PnLQuote
			}
		}

		prevLow = c.Low
		prevHigh = c.High
		equity = append(equity, capital+totalProfit)
	}

	years := float64(candles[len(candles)-1].Timestamp-candles[0].Timestamp) / msPerYear
	years = math.Max(years, minGridYears)

	res := buildResult(domain.BotTypeGrid, capital, closed, equity, input.annualFactor(), b.Params())
	res.AnnualizedCapitalReturn = floatPtr(metrics.ComputeAnnualizedCapitalReturn(totalProfit, capital, years))
	return res, nil
}

var _ Bot = (*GridBot)(nil)
