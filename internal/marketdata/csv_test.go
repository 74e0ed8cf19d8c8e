package marketdata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bot-sim-lab/internal/domain"
)

func TestLoadCandles(t *testing.T) {
	data := `Timestamp,Open,High,Low,Close,Volume
1704067200000,100,101,99,100.5,12.5
1704070800000,100.5,102,100,101,8
`
	candles, err := LoadCandles(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadCandles failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	c := candles[1]
	if c.Timestamp != 1704070800000 {
		t.Errorf("expected timestamp 1704070800000, got %d", c.Timestamp)
	}
	if c.Open != 100.5 || c.High != 102 || c.Low != 100 || c.Close != 101 || c.Volume != 8 {
		t.Errorf("unexpected candle: %+v", c)
	}
}

func TestLoadCandles_OptionalVolumeAndTextTime(t *testing.T) {
	data := `date,open,high,low,close
2024-01-01 00:00:00,1,2,0.5,1.5
2024-01-01 01:00:00,1.5,2,1,1.8
`
	candles, err := LoadCandles(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadCandles failed: %v", err)
	}
	if candles[0].Timestamp != 1704067200000 {
		t.Errorf("expected 1704067200000, got %d", candles[0].Timestamp)
	}
	if candles[1].Volume != 0 {
		t.Errorf("expected zero volume, got %v", candles[1].Volume)
	}
}

func TestLoadCandles_MissingColumns(t *testing.T) {
	data := `timestamp,open,close
1,1,1
`
	_, err := LoadCandles(strings.NewReader(data))
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
	if !strings.Contains(err.Error(), "high, low") {
		t.Errorf("expected missing names in error, got %v", err)
	}
}

func TestLoadCandles_Unordered(t *testing.T) {
	data := `timestamp,open,high,low,close
2000,1,1,1,1
2000,1,1,1,1
`
	_, err := LoadCandles(strings.NewReader(data))
	if !errors.Is(err, ErrUnorderedCandles) {
		t.Errorf("expected ErrUnorderedCandles, got %v", err)
	}
}

func TestCheckOrder(t *testing.T) {
	ordered := []*domain.Candle{{Timestamp: 1}, {Timestamp: 2}, {Timestamp: 5}}
	if err := CheckOrder(ordered); err != nil {
		t.Fatalf("expected ordered candles to pass, got %v", err)
	}

	swapped := []*domain.Candle{{Timestamp: 1}, {Timestamp: 5}, {Timestamp: 2}}
	if err := CheckOrder(swapped); !errors.Is(err, ErrUnorderedCandles) {
		t.Errorf("expected ErrUnorderedCandles for swapped candles, got %v", err)
	}

	repeated := []*domain.Candle{{Timestamp: 1}, {Timestamp: 1}}
	if err := CheckOrder(repeated); !errors.Is(err, ErrUnorderedCandles) {
		t.Errorf("expected ErrUnorderedCandles for repeated timestamp, got %v", err)
	}

	if err := CheckOrder([]*domain.Candle{{Timestamp: 1}, nil}); !errors.Is(err, ErrInvalidRow) {
		t.Errorf("expected ErrInvalidRow for null candle, got %v", err)
	}
}

func TestLoadCandles_InvalidNumber(t *testing.T) {
	data := `timestamp,open,high,low,close
1000,abc,1,1,1
`
	_, err := LoadCandles(strings.NewReader(data))
	if !errors.Is(err, ErrInvalidRow) {
		t.Errorf("expected ErrInvalidRow, got %v", err)
	}
}

func TestLoadCandles_Empty(t *testing.T) {
	_, err := LoadCandles(strings.NewReader(""))
	if !errors.Is(err, ErrMissingColumns) {
		t.Errorf("expected ErrMissingColumns, got %v", err)
	}
}

func TestLoadSignal(t *testing.T) {
	data := `timestamp,signal
1704067200,1
1704070800,false
1704074400,True
`
	points, err := LoadSignal(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadSignal failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	// seconds are scaled to milliseconds
	if points[0].Timestamp != 1704067200000 || !points[0].Value {
		t.Errorf("unexpected first point: %+v", points[0])
	}
	if points[1].Value {
		t.Error("expected second point false")
	}
	if !points[2].Value {
		t.Error("expected third point true")
	}
}

func TestLoadSignal_MissingValueColumn(t *testing.T) {
	_, err := LoadSignal(strings.NewReader("timestamp,foo\n1,1\n"))
	if !errors.Is(err, ErrMissingColumns) {
		t.Errorf("expected ErrMissingColumns, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1704067200", 1704067200000},
		{"1704067200000", 1704067200000},
		{"1704067200.5", 1704067200500},
		{"2024-01-01T00:00:00Z", 1704067200000},
		{"2024-01-01T02:00:00+02:00", 1704067200000},
		{"2024-01-01", 1704067200000},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestLoadCandlesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte("timestamp,open,high,low,close\n1000,1,1,1,1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	candles, err := LoadCandlesFile(path)
	if err != nil {
		t.Fatalf("LoadCandlesFile failed: %v", err)
	}
	// 1000 is below the cutoff, read as seconds
	if len(candles) != 1 || candles[0].Timestamp != 1000000 {
		t.Errorf("unexpected candles: %+v", candles)
	}

	if _, err := LoadCandlesFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
