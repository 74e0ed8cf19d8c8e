package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the deployment gate outcome of one run.
// input may be nil; the metrics block is then omitted.
func RenderMarkdown(input *DecisionInput, result *DecisionResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Deployment Gate: %s\n\n", result.Decision)
	if input != nil {
		writeRunMetrics(&sb, input)
	}

	sb.WriteString("## Gate Criteria\n\n")
	met := writeChecks(&sb, "Criterion", result.GOCriteria, "met", "missed")
	fmt.Fprintf(&sb, "%d of %d criteria met.\n\n", met, len(result.GOCriteria))

	sb.WriteString("## Blocking Conditions\n\n")
	unblocked := writeChecks(&sb, "Condition", result.NOGOChecks, "clear", "blocking")
	fmt.Fprintf(&sb, "%d of %d conditions blocking.\n\n", len(result.NOGOChecks)-unblocked, len(result.NOGOChecks))

	sb.WriteString("## Verdict\n\n")
	reasons := blockingReasons(result)
	if len(reasons) == 0 {
		sb.WriteString("The run is deployable: every criterion is met and nothing blocks it.\n")
		return sb.String()
	}
	sb.WriteString("The run is not deployable:\n")
	for _, r := range reasons {
		fmt.Fprintf(&sb, "- %s\n", r)
	}
	return sb.String()
}

func writeRunMetrics(sb *strings.Builder, in *DecisionInput) {
	sb.WriteString("| Run | Bot | Sharpe | Max drawdown | Deals | Win rate | Total profit | EV per deal |\n")
	sb.WriteString("|-----|-----|--------|--------------|-------|----------|--------------|-------------|\n")

	runID := in.RunID
	if runID == "" {
		runID = "unsaved"
	}
	ev := "n/a"
	if in.ExpectedValuePerDeal != nil {
		ev = fmt.Sprintf("%.6f", *in.ExpectedValuePerDeal)
	}
	fmt.Fprintf(sb, "| %s | %s | %.4f | %.2f%% | %d | %.2f%% | %.2f%% | %s |\n\n",
		runID, in.BotType, in.SharpeRatio, in.MaxDrawdownPct, in.TotalDeals,
		in.WinRate*100, in.TotalProfitPct, ev)
}

// writeChecks writes one table row per check and returns how many passed.
func writeChecks(sb *strings.Builder, label string, checks []CriterionResult, passWord, failWord string) int {
	fmt.Fprintf(sb, "| %s | Required | Observed | Status |\n", label)
	sb.WriteString("|------|----------|----------|--------|\n")
	passed := 0
	for _, c := range checks {
		status := failWord
		if c.Pass {
			status = passWord
			passed++
		}
		fmt.Fprintf(sb, "| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status)
	}
	sb.WriteString("\n")
	return passed
}

func blockingReasons(result *DecisionResult) []string {
	var out []string
	for _, c := range result.GOCriteria {
		if !c.Pass {
			out = append(out, fmt.Sprintf("%s is %s, needs %s", c.Name, c.Actual, c.Threshold))
		}
	}
	for _, c := range result.NOGOChecks {
		if !c.Pass {
			out = append(out, fmt.Sprintf("%s (%s)", c.Name, c.Actual))
		}
	}
	return out
}
