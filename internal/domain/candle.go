package domain

// Candle is one OHLCV bar.
// Candle slices handed to simulators are strictly ordered by Timestamp ASC.
type Candle struct {
	Timestamp int64 // bar open time (Unix ms)
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// SignalPoint is one observation of an external boolean entry signal.
// Points are sparse: a timestamp with no point means "no signal".
type SignalPoint struct {
	Timestamp int64 // Unix ms, matched exactly against Candle.Timestamp
	Value     bool
}

// SeriesKey identifies a stored candle series.
type SeriesKey struct {
	Symbol   string // e.g. "BTC/USDT"
	Interval string // e.g. "1h"
}
