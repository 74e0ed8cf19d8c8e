package decision

import (
	"errors"

	"bot-sim-lab/internal/domain"
)

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Validation errors for DecisionInput.
var (
	ErrNilInput       = errors.New("decision input is nil")
	ErrInvalidBotType = errors.New("decision input has invalid bot type")
)

// Thresholds configures the deployment gate.
type Thresholds struct {
	MinSharpe      float64 // Sharpe must be strictly greater
	MaxDrawdownPct float64 // drawdown (negative %) must be strictly greater
	MinDeals       int     // closed deals must be at least this many
}

// DefaultThresholds is the research gate: Sharpe > 1.0, drawdown > -25%,
// and at least one closed deal.
var DefaultThresholds = Thresholds{
	MinSharpe:      1.0,
	MaxDrawdownPct: -25.0,
	MinDeals:       1,
}

// DecisionInput contains numeric metrics for decision evaluation.
type DecisionInput struct {
	BotType domain.BotType
	RunID   string // empty for unsaved runs

	SharpeRatio    float64
	MaxDrawdownPct float64 // <= 0
	TotalDeals     int
	TotalProfitPct float64
	WinRate        float64

	// Optional, bot-specific
	ExpectedValuePerDeal *float64
}

// Validate checks the input before evaluation.
func (in *DecisionInput) Validate() error {
	if in == nil {
		return ErrNilInput
	}
	if !in.BotType.Valid() {
		return ErrInvalidBotType
	}
	return nil
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	Decision   Decision
	GOCriteria []CriterionResult // all must pass
	NOGOChecks []CriterionResult // Pass=false means triggered
}
