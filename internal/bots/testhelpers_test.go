package bots

import (
	"math"
	"testing"

	"bot-sim-lab/internal/domain"
)

const hourMs = int64(3600 * 1000)

// bar builds an hourly candle at index i.
func bar(i int, open, high, low, close float64) *domain.Candle {
	return &domain.Candle{
		Timestamp: int64(i) * hourMs,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1,
	}
}

// flat builds n hourly candles around price with a narrow range.
func flat(n int, price float64) []*domain.Candle {
	out := make([]*domain.Candle, n)
	for i := range out {
		out[i] = bar(i, price, price*1.001, price*0.999, price)
	}
	return out
}

func signalAt(n int, idx ...int) []bool {
	s := make([]bool, n)
	for _, i := range idx {
		s[i] = true
	}
	return s
}

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}
