package bots

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Default fee economics (Binance spot taker, no slippage).
const (
	DefaultFee         = 0.001
	DefaultSlippageBps = 0.0
)

// FeeEngine converts notional trade sizes into buy cost and sell proceeds.
// Slippage is held as a fraction (bps / 10000).
type FeeEngine struct {
	fee      float64
	slippage float64
}

// NewFeeEngine creates a FeeEngine from a fee fraction and slippage in basis points.
func NewFeeEngine(fee, slippageBps float64) FeeEngine {
	return FeeEngine{
		fee:      fee,
		slippage: slippageBps / 10000.0,
	}
}

// Fee returns the fee fraction.
func (f FeeEngine) Fee() float64 { return f.fee }

// Slippage returns the slippage fraction.
func (f FeeEngine) Slippage() float64 { return f.slippage }

// ApplyBuyFee returns the quote cost of buying quoteAmount worth.
func (f FeeEngine) ApplyBuyFee(quoteAmount float64) float64 {
	return quoteAmount * (1 + f.fee + f.slippage)
}

// ApplySellFee returns the proceeds of selling quoteAmount worth.
func (f FeeEngine) ApplySellFee(quoteAmount float64) float64 {
	return quoteAmount * (1 - f.fee - f.slippage)
}

// CostForQuantity returns the fee-adjusted quote value of qty at price.
func (f FeeEngine) CostForQuantity(qty, price float64, side Side) float64 {
	notional := qty * price
	if side == SideBuy {
		return f.ApplyBuyFee(notional)
	}
	return f.ApplySellFee(notional)
}

// exitProceeds is what simulators credit on a close: the fee is charged,
// slippage is not (exits are resting TP/SL orders filled at their price).
func (f FeeEngine) exitProceeds(qty, price float64) float64 {
	return qty * price * (1 - f.fee)
}
