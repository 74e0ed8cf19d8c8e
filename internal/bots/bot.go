package bots

import (
	"context"
	"errors"

	"bot-sim-lab/internal/domain"
)

// DefaultInitialCapital is used when RunInput.InitialCapital is zero
// for bots without an investment amount.
const DefaultInitialCapital = 10000.0

// DefaultAnnualFactor annualizes Sharpe ratios for hourly candles.
const DefaultAnnualFactor = 365 * 24

// Input errors
var (
	ErrNoCandles            = errors.New("no candles")
	ErrSignalLengthMismatch = errors.New("signal length does not match candles")
)

// Bot simulates one bot type over a candle series.
// Implementations are immutable after construction: every Run allocates
// its own state, so one Bot may be used by many goroutines at once.
type Bot interface {
	// Run simulates the bot candle by candle and returns the closed deals,
	// equity curve, metrics and parameter echo.
	Run(ctx context.Context, input *RunInput) (*domain.BotResult, error)

	// Type returns the bot type.
	Type() domain.BotType

	// Params returns the exported configuration view.
	Params() domain.ParamsEcho
}

// RunInput holds everything a run consumes.
type RunInput struct {
	Candles []*domain.Candle // time-ordered
	// Signal is aligned to Candles (same length) or nil for "never".
	// Callers shift it for look-ahead avoidance before passing it in.
	Signal []bool
	// InitialCapital in quote currency. Zero selects the bot default.
	InitialCapital float64
	// AnnualFactor for Sharpe; zero selects DefaultAnnualFactor.
	AnnualFactor float64
}

// Validate checks the structural preconditions of a run.
func (in *RunInput) Validate() error {
	if len(in.Candles) == 0 {
		return ErrNoCandles
	}
	if in.Signal != nil && len(in.Signal) != len(in.Candles) {
		return ErrSignalLengthMismatch
	}
	return nil
}

// signalAt returns the aligned signal at i, false when absent.
func (in *RunInput) signalAt(i int) bool {
	if in.Signal == nil {
		return false
	}
	return in.Signal[i]
}

func (in *RunInput) annualFactor() float64 {
	if in.AnnualFactor > 0 {
		return in.AnnualFactor
	}
	return DefaultAnnualFactor
}
