package main

import (
	"encoding/json"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/simulation"
)

// runRequest is the POST /runs body.
type runRequest struct {
	BotType        string         `json:"bot_type"`
	Params         map[string]any `json:"params"`
	Symbol         string         `json:"symbol"`
	Interval       string         `json:"interval"`
	Start          int64          `json:"start,omitempty"`
	End            int64          `json:"end,omitempty"`
	Signals        []signalPoint  `json:"signals,omitempty"`
	SignalLag      int            `json:"signal_lag,omitempty"`
	InitialCapital float64        `json:"initial_capital,omitempty"`

	// Candles, when present, are stored and simulated directly
	// instead of loading the range from the candle store.
	Candles []candle `json:"candles,omitempty"`
}

type signalPoint struct {
	Timestamp int64 `json:"timestamp"`
	Value     bool  `json:"value"`
}

type candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (r *runRequest) toRequest() *simulation.Request {
	req := &simulation.Request{
		BotType:        domain.BotType(r.BotType),
		Params:         r.Params,
		Series:         domain.SeriesKey{Symbol: r.Symbol, Interval: r.Interval},
		Start:          r.Start,
		End:            r.End,
		SignalLag:      r.SignalLag,
		InitialCapital: r.InitialCapital,
	}
	for _, p := range r.Signals {
		req.Signals = append(req.Signals, domain.SignalPoint{Timestamp: p.Timestamp, Value: p.Value})
	}
	return req
}

func (r *runRequest) domainCandles() []*domain.Candle {
	out := make([]*domain.Candle, len(r.Candles))
	for i, c := range r.Candles {
		out[i] = &domain.Candle{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return out
}

// runSummary is the JSON form of a stored run.
type runSummary struct {
	RunID                   string          `json:"run_id"`
	BotType                 string          `json:"bot_type"`
	Symbol                  string          `json:"symbol"`
	Interval                string          `json:"interval"`
	StartTime               int64           `json:"start_time"`
	EndTime                 int64           `json:"end_time"`
	CandleCount             int             `json:"candle_count"`
	InitialCapital          float64         `json:"initial_capital"`
	Params                  json.RawMessage `json:"params"`
	TotalProfitPct          float64         `json:"total_profit_pct"`
	MaxDrawdownPct          float64         `json:"max_drawdown_pct"`
	SharpeRatio             float64         `json:"sharpe_ratio"`
	WinRate                 float64         `json:"win_rate"`
	TotalDeals              int             `json:"total_deals"`
	AvgDealDurationHours    float64         `json:"avg_deal_duration_hours"`
	MaxCapitalDeployed      float64         `json:"max_capital_deployed"`
	ExpectedValuePerDeal    *float64        `json:"expected_value_per_deal,omitempty"`
	AnnualizedCapitalReturn *float64        `json:"annualized_capital_return,omitempty"`
	FinalEquity             float64         `json:"final_equity"`
	Decision                string          `json:"decision"`
	CreatedAt               int64           `json:"created_at"`
}

func toRunSummary(s *domain.RunSummary) runSummary {
	var params json.RawMessage
	if s.ParamsJSON != "" {
		params = json.RawMessage(s.ParamsJSON)
	}
	return runSummary{
		RunID:                   s.RunID,
		BotType:                 string(s.BotType),
		Symbol:                  s.Symbol,
		Interval:                s.Interval,
		StartTime:               s.StartTime,
		EndTime:                 s.EndTime,
		CandleCount:             s.CandleCount,
		InitialCapital:          s.InitialCapital,
		Params:                  params,
		TotalProfitPct:          s.TotalProfitPct,
		MaxDrawdownPct:          s.MaxDrawdownPct,
		SharpeRatio:             s.SharpeRatio,
		WinRate:                 s.WinRate,
		TotalDeals:              s.TotalDeals,
		AvgDealDurationHours:    s.AvgDealDurationHours,
		MaxCapitalDeployed:      s.MaxCapitalDeployed,
		ExpectedValuePerDeal:    s.ExpectedValuePerDeal,
		AnnualizedCapitalReturn: s.AnnualizedCapitalReturn,
		FinalEquity:             s.FinalEquity,
		Decision:                s.Decision,
		CreatedAt:               s.CreatedAt,
	}
}

// deal is the JSON form of a closed deal.
type deal struct {
	DealID     string  `json:"deal_id"`
	Seq        int     `json:"seq"`
	EntryTime  int64   `json:"entry_time"`
	ExitTime   int64   `json:"exit_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Cost       float64 `json:"cost"`
	PnL        float64 `json:"pnl"`
	PnLQuote   float64 `json:"pnl_quote"`
	ExitReason string  `json:"exit_reason"`
}

func toDeal(d *domain.ClosedDeal) deal {
	return deal{
		DealID:     d.DealID,
		Seq:        d.Seq,
		EntryTime:  d.EntryTime,
		ExitTime:   d.ExitTime,
		EntryPrice: d.EntryPrice,
		ExitPrice:  d.ExitPrice,
		Cost:       d.Cost,
		PnL:        d.PnL,
		PnLQuote:   d.PnLQuote,
		ExitReason: string(d.ExitReason),
	}
}

// runResponse is the POST /runs response.
type runResponse struct {
	Stored      bool       `json:"stored"`
	Summary     runSummary `json:"summary"`
	Deals       []deal     `json:"deals"`
	EquityCurve []float64  `json:"equity_curve"`
	GateReasons []string   `json:"gate_reasons,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
