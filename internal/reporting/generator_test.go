package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage/memory"
	"bot-sim-lab/internal/verification"
)

func ptrFloat64(v float64) *float64 {
	return &v
}

func setupTestData(t *testing.T) (*memory.RunSummaryStore, *memory.DealStore, *memory.RunAggregateStore) {
	ctx := context.Background()

	runStore := memory.NewRunSummaryStore()
	dealStore := memory.NewDealStore()
	aggStore := memory.NewRunAggregateStore()

	// Insert runs
	runs := []*domain.RunSummary{
		{
			RunID: "bbbbbbbb-0000-5000-8000-000000000002", BotType: domain.BotTypeGrid,
			Symbol: "BTC/USDT", Interval: "1h", StartTime: 2000, EndTime: 9000, CandleCount: 120,
			InitialCapital: 1000, ParamsJSON: `{"version":1}`, TotalProfitPct: 4.2, MaxDrawdownPct: -3.1,
			SharpeRatio: 1.4, WinRate: 0.66, TotalDeals: 3, FinalEquity: 1042,
			AnnualizedCapitalReturn: ptrFloat64(12.5), Decision: "GO", CreatedAt: 2000,
		},
		{
			RunID: "aaaaaaaa-0000-5000-8000-000000000001", BotType: domain.BotTypeDCA,
			Symbol: "ETH/USDT", Interval: "1h", StartTime: 1000, EndTime: 5000, CandleCount: 80,
			InitialCapital: 10000, ParamsJSON: `{"version":1}`, TotalProfitPct: -1.5, MaxDrawdownPct: -9.0,
			SharpeRatio: -0.2, WinRate: 0.5, TotalDeals: 3, FinalEquity: 9850,
			ExpectedValuePerDeal: ptrFloat64(0.01), Decision: "NO-GO", CreatedAt: 1000,
		},
	}
	for _, r := range runs {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	// Insert deals
	deals := []*domain.ClosedDeal{
		{DealID: "d1", RunID: runs[1].RunID, Seq: 0, PnL: 0.015, ExitReason: domain.ExitReasonTakeProfit},
		{DealID: "d2", RunID: runs[1].RunID, Seq: 1, PnL: 0.015, ExitReason: domain.ExitReasonTakeProfit},
		{DealID: "d3", RunID: runs[1].RunID, Seq: 2, PnL: -0.08, ExitReason: domain.ExitReasonStopLoss},
		{DealID: "d4", RunID: runs[0].RunID, Seq: 0, PnL: 0.01, ExitReason: domain.ExitReasonGrid},
		{DealID: "d5", RunID: runs[0].RunID, Seq: 1, PnL: 0.01, ExitReason: domain.ExitReasonGrid},
		{DealID: "d6", RunID: runs[0].RunID, Seq: 2, PnL: -0.02, ExitReason: domain.ExitReasonStop},
	}
	if err := dealStore.InsertBulk(ctx, deals); err != nil {
		t.Fatalf("InsertBulk deals failed: %v", err)
	}

	// Insert aggregates
	aggregates := []*domain.RunAggregate{
		{BotType: domain.BotTypeGrid, Symbol: "BTC/USDT", TotalRuns: 1, GoRuns: 1, ProfitPctMean: 4.2,
			ProfitPctMedian: 4.2, BestSharpe: 1.4, WorstDrawdownPct: -3.1, BestRunID: runs[0].RunID,
			TotalDeals: 3, WinRate: 0.66, PnLMedian: 0.01, PnLP10: -0.014, PnLP90: 0.01},
		{BotType: domain.BotTypeDCA, Symbol: "ETH/USDT", TotalRuns: 1, ProfitPctMean: -1.5,
			ProfitPctMedian: -1.5, BestSharpe: -0.2, WorstDrawdownPct: -9.0, BestRunID: runs[1].RunID,
			TotalDeals: 3, WinRate: 0.5, PnLMedian: 0.015, PnLP10: -0.061, PnLP90: 0.015, MaxConsecutiveLosses: 1},
	}
	for _, a := range aggregates {
		if err := aggStore.Insert(ctx, a); err != nil {
			t.Fatalf("Insert aggregate failed: %v", err)
		}
	}

	return runStore, dealStore, aggStore
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	runStore, dealStore, aggStore := setupTestData(t)

	fixedTime := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	fixedClock := func() time.Time { return fixedTime }

	var outputs []string
	for i := 0; i < 3; i++ {
		generator := NewGenerator(runStore, dealStore, aggStore).WithClock(fixedClock)
		report, err := generator.Generate(ctx)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		outputs = append(outputs, RenderMarkdown(report)+RenderRunsCSV(report.Runs)+RenderAggregatesCSV(report.Aggregates))
	}

	for i := 1; i < len(outputs); i++ {
		if outputs[i] != outputs[0] {
			t.Errorf("output %d differs from output 0", i)
		}
	}
}

func TestGenerate_WithClock(t *testing.T) {
	runStore, dealStore, aggStore := setupTestData(t)

	fixedTime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	generator := NewGenerator(runStore, dealStore, aggStore).WithClock(func() time.Time {
		return fixedTime
	})

	report, err := generator.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	if !strings.Contains(RenderMarkdown(report), "Generated: 2024-06-15T10:30:00Z") {
		t.Error("markdown should carry the injected timestamp")
	}
}

func TestGenerate_DataSummary(t *testing.T) {
	runStore, dealStore, aggStore := setupTestData(t)

	report, err := NewGenerator(runStore, dealStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.RunCount != 2 || report.BotTypeCount != 2 || report.SymbolCount != 2 {
		t.Errorf("unexpected counts: runs=%d bots=%d symbols=%d",
			report.RunCount, report.BotTypeCount, report.SymbolCount)
	}

	want := DataSummary{
		TotalRuns:      2,
		GoRuns:         1,
		TotalDeals:     6,
		TotalCandles:   200,
		DateRangeStart: 1000,
		DateRangeEnd:   9000,
	}
	if report.DataSummary != want {
		t.Errorf("expected %+v, got %+v", want, report.DataSummary)
	}
}

func TestGenerate_RunRows(t *testing.T) {
	runStore, dealStore, aggStore := setupTestData(t)

	report, err := NewGenerator(runStore, dealStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(report.Runs) != 2 {
		t.Fatalf("expected 2 run rows, got %d", len(report.Runs))
	}

	// dca sorts before grid
	dca, grid := report.Runs[0], report.Runs[1]
	if dca.BotType != "dca" || grid.BotType != "grid" {
		t.Fatalf("unexpected order: %s, %s", dca.BotType, grid.BotType)
	}
	if dca.ReturnMetric == nil || *dca.ReturnMetric != 0.01 {
		t.Errorf("dca return metric should be EV per deal, got %v", dca.ReturnMetric)
	}
	if grid.ReturnMetric == nil || *grid.ReturnMetric != 12.5 {
		t.Errorf("grid return metric should be annualized return, got %v", grid.ReturnMetric)
	}
}

func TestGenerate_ExitReasons(t *testing.T) {
	runStore, dealStore, aggStore := setupTestData(t)

	report, err := NewGenerator(runStore, dealStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := []ExitReasonRow{
		{BotType: "dca", Reason: "take_profit", Count: 2, Share: 2.0 / 3.0},
		{BotType: "dca", Reason: "stop_loss", Count: 1, Share: 1.0 / 3.0},
		{BotType: "grid", Reason: "grid", Count: 2, Share: 2.0 / 3.0},
		{BotType: "grid", Reason: "stop", Count: 1, Share: 1.0 / 3.0},
	}
	if len(report.ExitReasons) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(report.ExitReasons), report.ExitReasons)
	}
	for i, w := range want {
		got := report.ExitReasons[i]
		if got.BotType != w.BotType || got.Reason != w.Reason || got.Count != w.Count {
			t.Errorf("row %d: expected %+v, got %+v", i, w, got)
		}
		if math.Abs(got.Share-w.Share) > 1e-12 {
			t.Errorf("row %d: expected share %v, got %v", i, w.Share, got.Share)
		}
	}
}

func TestGenerate_WithoutAggregateStore(t *testing.T) {
	runStore, dealStore, _ := setupTestData(t)

	report, err := NewGenerator(runStore, dealStore, nil).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Aggregates != nil {
		t.Errorf("expected no aggregates, got %d", len(report.Aggregates))
	}
	if !strings.Contains(RenderMarkdown(report), "No aggregates available.") {
		t.Error("markdown should note missing aggregates")
	}
}

func TestGenerate_Empty(t *testing.T) {
	report, err := NewGenerator(memory.NewRunSummaryStore(), memory.NewDealStore(), memory.NewRunAggregateStore()).
		Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.RunCount != 0 || len(report.Runs) != 0 || len(report.ExitReasons) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}

	md := RenderMarkdown(report)
	for _, s := range []string{"No runs available.", "No closed deals."} {
		if !strings.Contains(md, s) {
			t.Errorf("markdown missing %q", s)
		}
	}
}

func TestRenderMarkdown_ContainsRequiredSections(t *testing.T) {
	runStore, dealStore, aggStore := setupTestData(t)

	report, err := NewGenerator(runStore, dealStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	report.Verification = &VerificationSection{TotalRuns: 2, MatchedRuns: 2}

	md := RenderMarkdown(report)
	sections := []string{
		"# Backtest Report",
		"## Data Summary",
		"## Runs",
		"## Aggregates",
		"## Exit Reasons",
		"## Replay Verification",
	}
	for _, s := range sections {
		if !strings.Contains(md, s) {
			t.Errorf("markdown missing section %q", s)
		}
	}

	// Short run IDs in the table
	if !strings.Contains(md, "| aaaaaaaa | dca | ETH/USDT |") {
		t.Error("markdown should list the dca run with its short id")
	}
	if !strings.Contains(md, "| 12.5000 | GO |") {
		t.Error("markdown should show the grid annualized return")
	}
}

func TestRenderMarkdown_NoVerificationSection(t *testing.T) {
	md := RenderMarkdown(&Report{})
	if strings.Contains(md, "## Replay Verification") {
		t.Error("verification section should be omitted when not performed")
	}
}

func TestRenderRunsCSV_DeterministicOrder(t *testing.T) {
	runStore, dealStore, aggStore := setupTestData(t)

	report, err := NewGenerator(runStore, dealStore, aggStore).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(RenderRunsCSV(report.Runs)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,bot_type,symbol") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "aaaaaaaa-0000-5000-8000-000000000001,dca,ETH/USDT,1h,80,3,-1.500000,") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",0.010000,NO-GO") {
		t.Errorf("unexpected first row tail: %s", lines[1])
	}
}

func TestRenderAggregatesCSV(t *testing.T) {
	rows := []AggregateRow{
		{BotType: "dca", Symbol: "ETH/USDT", TotalRuns: 4, GoRuns: 1, ProfitPctMean: 1.25, BestRunID: "r1",
			TotalDeals: 10, WinRate: 0.7, MaxConsecutiveLosses: 2},
	}
	lines := strings.Split(strings.TrimSpace(RenderAggregatesCSV(rows)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	want := "dca,ETH/USDT,4,1,1.250000,0.000000,0.000000,0.000000,r1,10,0.700000,0.000000,0.000000,0.000000,2"
	if lines[1] != want {
		t.Errorf("expected %q, got %q", want, lines[1])
	}
}

func TestRenderDealsCSV(t *testing.T) {
	deals := []domain.ClosedDeal{
		{DealID: "abc", Seq: 0, EntryTime: 1000, ExitTime: 2000, EntryPrice: 100, ExitPrice: 101.5,
			Cost: 100.1, PnL: 0.0125, PnLQuote: 1.25125, ExitReason: domain.ExitReasonTakeProfit},
	}
	lines := strings.Split(strings.TrimSpace(RenderDealsCSV(deals)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	want := "0,1000,2000,100.00000000,101.50000000,100.10000000,0.012500,1.25125000,take_profit,abc"
	if lines[1] != want {
		t.Errorf("expected %q, got %q", want, lines[1])
	}
}

func TestCSVField_Quotes(t *testing.T) {
	if got := csvField(`a,"b"`); got != `"a,""b"""` {
		t.Errorf("unexpected quoting: %s", got)
	}
	if got := csvField("ETH/USDT"); got != "ETH/USDT" {
		t.Errorf("plain field should pass through, got %s", got)
	}
}

func TestFixed_NonFinite(t *testing.T) {
	if got := fixed(math.NaN(), 4); got != "" {
		t.Errorf("expected empty for NaN, got %q", got)
	}
	if got := fixed(math.Inf(1), 4); got != "" {
		t.Errorf("expected empty for +Inf, got %q", got)
	}
}

func TestRenderRunMarkdown(t *testing.T) {
	s := &domain.RunSummary{
		RunID: "run-1", BotType: domain.BotTypeDCA, Symbol: "ETH/USDT", Interval: "1h",
		ParamsJSON: `{"version":1}`, ExpectedValuePerDeal: ptrFloat64(0.0042), Decision: "GO",
	}
	deals := []*domain.ClosedDeal{
		{Seq: 0, EntryPrice: 100, ExitPrice: 102, Cost: 100, PnL: 0.02, PnLQuote: 2, ExitReason: domain.ExitReasonTakeProfit},
	}

	md := RenderRunMarkdown(s, deals)
	for _, want := range []string{"# Run run-1", "| Expected Value / Deal | 0.004200 |", "take_profit", `{"version":1}`} {
		if !strings.Contains(md, want) {
			t.Errorf("run markdown missing %q", want)
		}
	}
	if strings.Contains(md, "Annualized Return") {
		t.Error("dca run should not show annualized return")
	}

	if !strings.Contains(RenderRunMarkdown(s, nil), "No closed deals.") {
		t.Error("empty deal log should be noted")
	}
}

func TestVerificationSectionFrom(t *testing.T) {
	if VerificationSectionFrom(nil) != nil {
		t.Error("nil report should yield nil section")
	}

	vr := &verification.VerificationReport{
		TotalRuns:     2,
		MatchedRuns:   1,
		DivergentRuns: 1,
		Results: []verification.VerificationResult{
			{RunID: "r1", Match: true},
			{RunID: "r2", Divergences: []verification.FieldDivergence{
				{Field: "TotalDeals", Expected: 3, Actual: 4},
			}},
		},
	}
	s := VerificationSectionFrom(vr)
	if s.TotalRuns != 2 || s.MatchedRuns != 1 || s.DivergentRuns != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if len(s.Divergences) != 1 || s.Divergences[0] != "r2: TotalDeals expected=3 actual=4" {
		t.Errorf("unexpected divergences: %v", s.Divergences)
	}
}
