package decision

import "bot-sim-lab/internal/domain"

// FromResult builds a DecisionInput from a fresh run result.
func FromResult(res *domain.BotResult) *DecisionInput {
	return &DecisionInput{
		BotType:              res.BotType,
		SharpeRatio:          res.SharpeRatio,
		MaxDrawdownPct:       res.MaxDrawdownPct,
		TotalDeals:           res.TotalDeals,
		TotalProfitPct:       res.TotalProfitPct,
		WinRate:              res.WinRate,
		ExpectedValuePerDeal: res.ExpectedValuePerDeal,
	}
}

// FromSummary builds a DecisionInput from a stored run summary.
func FromSummary(s *domain.RunSummary) *DecisionInput {
	return &DecisionInput{
		BotType:              s.BotType,
		RunID:                s.RunID,
		SharpeRatio:          s.SharpeRatio,
		MaxDrawdownPct:       s.MaxDrawdownPct,
		TotalDeals:           s.TotalDeals,
		TotalProfitPct:       s.TotalProfitPct,
		WinRate:              s.WinRate,
		ExpectedValuePerDeal: s.ExpectedValuePerDeal,
	}
}
