package lookup

import (
	"bot-sim-lab/internal/domain"
)

// AlignSignal reindexes sparse signal points onto candle timestamps.
// A candle without a point at exactly its timestamp gets false.
// Points that fall between candles are dropped. The last point wins
// when several share a timestamp.
func AlignSignal(candles []*domain.Candle, points []domain.SignalPoint) []bool {
	byTime := make(map[int64]bool, len(points))
	for _, p := range points {
		byTime[p.Timestamp] = p.Value
	}

	out := make([]bool, len(candles))
	for i, c := range candles {
		out[i] = byTime[c.Timestamp]
	}
	return out
}

// ShiftSignal delays an aligned signal by lag bars, filling the head with
// false, so a condition computed on bar i's close acts on bar i+lag.
// A non-positive lag returns a copy.
func ShiftSignal(signal []bool, lag int) []bool {
	out := make([]bool, len(signal))
	if lag <= 0 {
		copy(out, signal)
		return out
	}
	for i := lag; i < len(signal); i++ {
		out[i] = signal[i-lag]
	}
	return out
}

// SignalTimestamps returns the candle timestamps where signal is true.
// signal must be aligned to candles.
func SignalTimestamps(candles []*domain.Candle, signal []bool) []int64 {
	var out []int64
	for i, v := range signal {
		if v && i < len(candles) {
			out = append(out, candles[i].Timestamp)
		}
	}
	return out
}

// SignalFromTimestamps rebuilds an aligned signal from stored true timestamps.
func SignalFromTimestamps(candles []*domain.Candle, timestamps []int64) []bool {
	points := make([]domain.SignalPoint, len(timestamps))
	for i, ts := range timestamps {
		points[i] = domain.SignalPoint{Timestamp: ts, Value: true}
	}
	return AlignSignal(candles, points)
}
