package domain

// BotType identifies a simulator.
type BotType string

const (
	BotTypeDCA    BotType = "dca"
	BotTypeGrid   BotType = "grid"
	BotTypeSignal BotType = "signal"
)

// Valid reports whether t is a known bot type.
func (t BotType) Valid() bool {
	switch t {
	case BotTypeDCA, BotTypeGrid, BotTypeSignal:
		return true
	}
	return false
}

// GridType selects level spacing for grid bots.
type GridType string

const (
	GridTypeGeometric  GridType = "geometric"  // constant ratio between levels
	GridTypeArithmetic GridType = "arithmetic" // constant absolute step
)

// ParamsVersion is the current layout of the params structs below.
// Bump it when a field is added, removed or renamed.
const ParamsVersion = 1

// DCAParams configures a DCA bot.
// Field names mirror the platform API so an export step can map them 1:1.
type DCAParams struct {
	Version int `json:"version" yaml:"version"`

	// Entry
	BaseOrderVolume             float64 `json:"base_order_volume" yaml:"base_order_volume"`
	SafetyOrderVolume           float64 `json:"safety_order_volume" yaml:"safety_order_volume"`
	MaxSafetyOrders             int     `json:"max_safety_orders" yaml:"max_safety_orders"`
	SafetyOrderStepPercentage   float64 `json:"safety_order_step_percentage" yaml:"safety_order_step_percentage"`
	MartingaleVolumeCoefficient float64 `json:"martingale_volume_coefficient" yaml:"martingale_volume_coefficient"`
	MartingaleStepCoefficient   float64 `json:"martingale_step_coefficient" yaml:"martingale_step_coefficient"`

	// Exit
	TakeProfitPercentage        float64  `json:"take_profit_percentage" yaml:"take_profit_percentage"`
	TrailingTakeProfit          bool     `json:"trailing_take_profit" yaml:"trailing_take_profit"`
	TrailingTakeProfitDeviation float64  `json:"trailing_take_profit_deviation" yaml:"trailing_take_profit_deviation"`
	StopLossPercentage          *float64 `json:"stop_loss_percentage" yaml:"stop_loss_percentage"` // nil = disabled

	// Deal management
	MaxActiveDeals       int   `json:"max_active_deals" yaml:"max_active_deals"`
	CooldownBetweenDeals int64 `json:"cooldown_between_deals" yaml:"cooldown_between_deals"` // seconds

	// Fees
	Fee         float64 `json:"fee" yaml:"fee"`
	SlippageBps float64 `json:"slippage_bps" yaml:"slippage_bps"`
}

// GridParams configures a grid bot.
type GridParams struct {
	Version int `json:"version" yaml:"version"`

	UpperPrice       float64  `json:"upper_price" yaml:"upper_price"`
	LowerPrice       float64  `json:"lower_price" yaml:"lower_price"`
	InvestmentAmount float64  `json:"investment_amount" yaml:"investment_amount"`
	GridLinesCount   int      `json:"grid_lines_count" yaml:"grid_lines_count"`
	GridType         GridType `json:"grid_type" yaml:"grid_type"`

	TrailingUp    bool     `json:"trailing_up" yaml:"trailing_up"`
	ExpansionDown bool     `json:"expansion_down" yaml:"expansion_down"` // exported only, not simulated
	StopBotPrice  *float64 `json:"stop_bot_price" yaml:"stop_bot_price"` // nil = disabled
	Leverage      int      `json:"leverage" yaml:"leverage"`             // exported only, not simulated

	Fee         float64 `json:"fee" yaml:"fee"`
	SlippageBps float64 `json:"slippage_bps" yaml:"slippage_bps"`
}

// SignalParams configures a single-position signal bot.
type SignalParams struct {
	Version int `json:"version" yaml:"version"`

	PositionSize               float64 `json:"position_size" yaml:"position_size"` // quote per entry
	TakeProfitPercentage       float64 `json:"take_profit_percentage" yaml:"take_profit_percentage"`
	StopLossPercentage         float64 `json:"stop_loss_percentage" yaml:"stop_loss_percentage"`
	TrailingStopLoss           bool    `json:"trailing_stop_loss" yaml:"trailing_stop_loss"`
	TrailingStopLossPercentage float64 `json:"trailing_stop_loss_percentage" yaml:"trailing_stop_loss_percentage"`

	Fee         float64 `json:"fee" yaml:"fee"`
	SlippageBps float64 `json:"slippage_bps" yaml:"slippage_bps"`
}

// Echo returns the exported view of the DCA configuration.
func (p DCAParams) Echo() ParamsEcho {
	return ParamsEcho{
		Version: p.Version,
		BotType: BotTypeDCA,
		Fields: []ParamField{
			{Name: "base_order_volume", Value: p.BaseOrderVolume},
			{Name: "safety_order_volume", Value: p.SafetyOrderVolume},
			{Name: "max_safety_orders", Value: p.MaxSafetyOrders},
			{Name: "safety_order_step_percentage", Value: p.SafetyOrderStepPercentage},
			{Name: "martingale_volume_coefficient", Value: p.MartingaleVolumeCoefficient},
			{Name: "martingale_step_coefficient", Value: p.MartingaleStepCoefficient},
			{Name: "take_profit_percentage", Value: p.TakeProfitPercentage},
			{Name: "trailing_take_profit", Value: p.TrailingTakeProfit},
			{Name: "trailing_take_profit_deviation", Value: p.TrailingTakeProfitDeviation},
			{Name: "stop_loss_percentage", Value: optionalFloat(p.StopLossPercentage)},
			{Name: "max_active_deals", Value: p.MaxActiveDeals},
			{Name: "cooldown_between_deals", Value: p.CooldownBetweenDeals},
			{Name: "fee", Value: p.Fee},
			{Name: "slippage_bps", Value: p.SlippageBps},
		},
	}
}

// Echo returns the exported view of the grid configuration.
// The configured upper price is echoed even if trailing up moved it during a run.
func (p GridParams) Echo() ParamsEcho {
	return ParamsEcho{
		Version: p.Version,
		BotType: BotTypeGrid,
		Fields: []ParamField{
			{Name: "upper_price", Value: p.UpperPrice},
			{Name: "lower_price", Value: p.LowerPrice},
			{Name: "investment_amount", Value: p.InvestmentAmount},
			{Name: "grid_lines_count", Value: p.GridLinesCount},
			{Name: "grid_type", Value: string(p.GridType)},
			{Name: "trailing_up", Value: p.TrailingUp},
			{Name: "expansion_down", Value: p.ExpansionDown},
			{Name: "stop_bot_price", Value: optionalFloat(p.StopBotPrice)},
			{Name: "leverage", Value: p.Leverage},
			{Name: "fee", Value: p.Fee},
			{Name: "slippage_bps", Value: p.SlippageBps},
		},
	}
}

// Echo returns the exported view of the signal bot configuration.
func (p SignalParams) Echo() ParamsEcho {
	return ParamsEcho{
		Version: p.Version,
		BotType: BotTypeSignal,
		Fields: []ParamField{
			{Name: "position_size", Value: p.PositionSize},
			{Name: "take_profit_percentage", Value: p.TakeProfitPercentage},
			{Name: "stop_loss_percentage", Value: p.StopLossPercentage},
			{Name: "trailing_stop_loss", Value: p.TrailingStopLoss},
			{Name: "trailing_stop_loss_percentage", Value: p.TrailingStopLossPercentage},
			{Name: "fee", Value: p.Fee},
			{Name: "slippage_bps", Value: p.SlippageBps},
		},
	}
}

func optionalFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
