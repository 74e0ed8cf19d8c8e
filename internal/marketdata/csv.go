package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"bot-sim-lab/internal/domain"
)

// Loader errors.
var (
	ErrMissingColumns   = errors.New("missing required columns")
	ErrUnorderedCandles = errors.New("candles are not strictly time-ordered")
	ErrInvalidRow       = errors.New("invalid row")
)

// timestampColumns are accepted names for the time column, in priority order.
var timestampColumns = []string{"timestamp", "open_time", "time", "datetime", "date"}

// signalColumns are accepted names for the signal value column.
var signalColumns = []string{"signal", "value", "entry"}

// secondsCutoff separates Unix seconds from Unix milliseconds.
// 1e11 ms is March 1973; 1e11 s is far beyond any market data.
const secondsCutoff = 1e11

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadCandlesFile opens path and reads candles from it.
func LoadCandlesFile(path string) ([]*domain.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles: %w", err)
	}
	defer f.Close()
	return LoadCandles(f)
}

// LoadCandles reads an OHLCV CSV with a header row.
// Column names are case-insensitive; volume is optional.
// Rows must be strictly increasing in time.
func LoadCandles(r io.Reader) ([]*domain.Candle, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}

	tsCol, ok := findColumn(header, timestampColumns...)
	if !ok {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingColumns)
	}
	cols := make(map[string]int, 4)
	var missing []string
	for _, name := range []string{"open", "high", "low", "close"} {
		idx, ok := findColumn(header, name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	volCol, hasVolume := findColumn(header, "volume")

	candles := make([]*domain.Candle, 0, len(rows))
	for n, row := range rows {
		line := n + 2 // 1-based, after header
		ts, err := ParseTimestamp(row[tsCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
		}

		c := &domain.Candle{Timestamp: ts}
		fields := []struct {
			dst *float64
			col int
		}{
			{&c.Open, cols["open"]},
			{&c.High, cols["high"]},
			{&c.Low, cols["low"]},
			{&c.Close, cols["close"]},
		}
		if hasVolume {
			fields = append(fields, struct {
				dst *float64
				col int
			}{&c.Volume, volCol})
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[f.col]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
			}
			*f.dst = v
		}

		if len(candles) > 0 && c.Timestamp <= candles[len(candles)-1].Timestamp {
			return nil, fmt.Errorf("%w: line %d", ErrUnorderedCandles, line)
		}
		candles = append(candles, c)
	}

	return candles, nil
}

// CheckOrder returns ErrUnorderedCandles unless timestamps strictly increase.
func CheckOrder(candles []*domain.Candle) error {
	for i, c := range candles {
		if c == nil {
			return fmt.Errorf("%w: candle %d is null", ErrInvalidRow, i)
		}
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return fmt.Errorf("%w: candle %d at %d", ErrUnorderedCandles, i, c.Timestamp)
		}
	}
	return nil
}

// LoadSignalFile opens path and reads signal points from it.
func LoadSignalFile(path string) ([]domain.SignalPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signal: %w", err)
	}
	defer f.Close()
	return LoadSignal(f)
}

// LoadSignal reads a two-column CSV of timestamp and boolean value.
// Values accept true/false and numbers (non-zero is true).
func LoadSignal(r io.Reader) ([]domain.SignalPoint, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}

	tsCol, ok := findColumn(header, timestampColumns...)
	if !ok {
		return nil, fmt.Errorf("%w: timestamp", ErrMissingColumns)
	}
	valCol, ok := findColumn(header, signalColumns...)
	if !ok {
		return nil, fmt.Errorf("%w: signal", ErrMissingColumns)
	}

	points := make([]domain.SignalPoint, 0, len(rows))
	for n, row := range rows {
		line := n + 2
		ts, err := ParseTimestamp(row[tsCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
		}
		v, err := parseBool(row[valCol])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRow, line, err)
		}
		points = append(points, domain.SignalPoint{Timestamp: ts, Value: v})
	}
	return points, nil
}

// ParseTimestamp converts a CSV time cell to Unix milliseconds.
// Integers below 1e11 are read as Unix seconds, larger ones as milliseconds.
// Text timestamps without a zone are UTC.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < secondsCutoff {
			return n * 1000, nil
		}
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < secondsCutoff {
			return int64(f * 1000), nil
		}
		return int64(f), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", s)
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return header, records[1:], nil
}

// findColumn returns the index of the first name present in header.
func findColumn(header []string, names ...string) (int, bool) {
	for _, name := range names {
		for i, h := range header {
			if h == name {
				return i, true
			}
		}
	}
	return 0, false
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false, fmt.Errorf("unrecognized signal value %q", s)
	}
	return f != 0, nil
}
