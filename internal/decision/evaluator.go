package decision

import "fmt"

// Evaluator evaluates decision criteria.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// Evaluate produces DecisionResult from DecisionInput.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) Evaluate(input *DecisionInput) (*DecisionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	goCriteria := e.evaluateGOCriteria(input)
	nogoChecks := e.evaluateNOGOTriggers(input)

	allGOPass := true
	for _, c := range goCriteria {
		if !c.Pass {
			allGOPass = false
			break
		}
	}

	anyNOGOTriggered := false
	for _, c := range nogoChecks {
		if !c.Pass {
			anyNOGOTriggered = true
			break
		}
	}

	decision := DecisionGO
	if !allGOPass || anyNOGOTriggered {
		decision = DecisionNOGO
	}

	return &DecisionResult{
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}, nil
}

// evaluateGOCriteria evaluates the 3 GO criteria.
func (e *Evaluator) evaluateGOCriteria(input *DecisionInput) []CriterionResult {
	t := e.thresholds
	return []CriterionResult{
		{
			Name:      "Sharpe ratio",
			Threshold: fmt.Sprintf("> %.2f", t.MinSharpe),
			Actual:    fmt.Sprintf("%.4f", input.SharpeRatio),
			Pass:      input.SharpeRatio > t.MinSharpe,
		},
		{
			Name:      "Max drawdown",
			Threshold: fmt.Sprintf("> %.2f%%", t.MaxDrawdownPct),
			Actual:    fmt.Sprintf("%.2f%%", input.MaxDrawdownPct),
			Pass:      input.MaxDrawdownPct > t.MaxDrawdownPct,
		},
		{
			Name:      "Closed deals",
			Threshold: fmt.Sprintf(">= %d", t.MinDeals),
			Actual:    fmt.Sprintf("%d", input.TotalDeals),
			Pass:      input.TotalDeals >= t.MinDeals,
		},
	}
}

// evaluateNOGOTriggers evaluates the 2 NO-GO triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateNOGOTriggers(input *DecisionInput) []CriterionResult {
	checks := []CriterionResult{
		{
			Name:      "Net loss",
			Threshold: "total profit < 0",
			Actual:    fmt.Sprintf("%.2f%%", input.TotalProfitPct),
			Pass:      input.TotalProfitPct >= 0,
		},
	}

	evActual := "n/a"
	evPass := true
	if input.ExpectedValuePerDeal != nil {
		evActual = fmt.Sprintf("%.6f", *input.ExpectedValuePerDeal)
		evPass = *input.ExpectedValuePerDeal >= 0
	}
	checks = append(checks, CriterionResult{
		Name:      "Negative expected value per deal",
		Threshold: "EV < 0",
		Actual:    evActual,
		Pass:      evPass,
	})

	return checks
}
