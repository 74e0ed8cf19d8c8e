package simulation

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"bot-sim-lab/internal/domain"
)

// ErrEmptySweep is returned when a sweep file lists no runs.
var ErrEmptySweep = errors.New("sweep has no runs")

// Sweep is a batch of runs over stored candle series, decoded from YAML.
// Series-level fields are defaults for every run.
type Sweep struct {
	Symbol         string  `yaml:"symbol"`
	Interval       string  `yaml:"interval"`
	Candles        string  `yaml:"candles"` // CSV path, imported before running
	Start          int64   `yaml:"start"`
	End            int64   `yaml:"end"`
	InitialCapital float64 `yaml:"initial_capital"`

	Runs []SweepRun `yaml:"runs"`
}

// SweepRun is one entry of a sweep.
type SweepRun struct {
	Bot            string         `yaml:"bot"`
	Params         map[string]any `yaml:"params"`
	Symbol         string         `yaml:"symbol"`
	Interval       string         `yaml:"interval"`
	Candles        string         `yaml:"candles"`
	Signal         string         `yaml:"signal"` // CSV path
	SignalLag      int            `yaml:"signal_lag"`
	InitialCapital float64        `yaml:"initial_capital"`
}

// CandleFile pairs a candle CSV with the series it is stored under.
type CandleFile struct {
	Path   string
	Series domain.SeriesKey
}

// ReadSweep decodes and validates a sweep document.
func ReadSweep(r io.Reader) (*Sweep, error) {
	var s Sweep
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode sweep: %w", err)
	}
	if len(s.Runs) == 0 {
		return nil, ErrEmptySweep
	}
	for i, run := range s.Runs {
		if !domain.BotType(run.Bot).Valid() {
			return nil, fmt.Errorf("run %d: bot %q: %w", i, run.Bot, ErrInvalidRequest)
		}
		if s.series(run).Symbol == "" || s.series(run).Interval == "" {
			return nil, fmt.Errorf("run %d: missing symbol or interval: %w", i, ErrInvalidRequest)
		}
		if run.SignalLag < 0 {
			return nil, fmt.Errorf("run %d: %w", i, ErrNegativeSignalLag)
		}
	}
	return &s, nil
}

func (s *Sweep) series(run SweepRun) domain.SeriesKey {
	key := domain.SeriesKey{Symbol: s.Symbol, Interval: s.Interval}
	if run.Symbol != "" {
		key.Symbol = run.Symbol
	}
	if run.Interval != "" {
		key.Interval = run.Interval
	}
	return key
}

// CandleFiles lists the distinct candle files to import, in first-use order.
func (s *Sweep) CandleFiles() []CandleFile {
	seen := make(map[CandleFile]struct{})
	var out []CandleFile
	for _, run := range s.Runs {
		path := run.Candles
		if path == "" {
			path = s.Candles
		}
		if path == "" {
			continue
		}
		f := CandleFile{Path: path, Series: s.series(run)}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Requests builds one Request per run. loadSignal reads a signal file;
// it is only called for runs that name one.
func (s *Sweep) Requests(loadSignal func(path string) ([]domain.SignalPoint, error)) ([]*Request, error) {
	reqs := make([]*Request, len(s.Runs))
	for i, run := range s.Runs {
		capital := run.InitialCapital
		if capital == 0 {
			capital = s.InitialCapital
		}
		req := &Request{
			BotType:        domain.BotType(run.Bot),
			Params:         run.Params,
			Series:         s.series(run),
			Start:          s.Start,
			End:            s.End,
			SignalLag:      run.SignalLag,
			InitialCapital: capital,
		}
		if run.Signal != "" {
			points, err := loadSignal(run.Signal)
			if err != nil {
				return nil, fmt.Errorf("run %d: load signal: %w", i, err)
			}
			req.Signals = points
		}
		reqs[i] = req
	}
	return reqs, nil
}
