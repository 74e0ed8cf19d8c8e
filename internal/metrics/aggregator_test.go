package metrics

import (
	"context"
	"errors"
	"math"
	"testing"

	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/storage"
	"bot-sim-lab/internal/storage/memory"
)

// Helper to create a run summary.
func makeRun(runID string, botType domain.BotType, symbol string, profitPct, sharpe, drawdown float64, decision string) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:          runID,
		BotType:        botType,
		Symbol:         symbol,
		Interval:       "1h",
		InitialCapital: 10000,
		TotalProfitPct: profitPct,
		SharpeRatio:    sharpe,
		MaxDrawdownPct: drawdown,
		Decision:       decision,
		CreatedAt:      1704067200000,
	}
}

// Helper to create a closed deal with specific outcome.
func makeDeal(runID string, seq int, pnl float64, reason domain.ExitReason) *domain.ClosedDeal {
	return &domain.ClosedDeal{
		DealID:     runID + "-" + string(rune('A'+seq)),
		RunID:      runID,
		Seq:        seq,
		EntryTime:  int64(seq) * 3600000,
		ExitTime:   int64(seq+1) * 3600000,
		Cost:       100,
		PnL:        pnl,
		PnLQuote:   pnl * 100,
		ExitReason: reason,
	}
}

func newTestAggregator() (*Aggregator, *memory.RunSummaryStore, *memory.DealStore, *memory.RunAggregateStore) {
	runStore := memory.NewRunSummaryStore()
	dealStore := memory.NewDealStore()
	aggStore := memory.NewRunAggregateStore()
	return NewAggregator(runStore, dealStore, aggStore), runStore, dealStore, aggStore
}

func TestComputeAggregate_Deterministic(t *testing.T) {
	ctx := context.Background()

	// Run multiple times to verify determinism
	for run := 0; run < 5; run++ {
		aggregator, runStore, dealStore, _ := newTestAggregator()

		for _, r := range []*domain.RunSummary{
			makeRun("r2", domain.BotTypeDCA, "BTCUSDT", 2.0, 1.5, -4, "GO"),
			makeRun("r1", domain.BotTypeDCA, "BTCUSDT", -1.0, 1.5, -9, "NO-GO"),
		} {
			if err := runStore.Insert(ctx, r); err != nil {
				t.Fatalf("Insert run failed: %v", err)
			}
		}
		deals := []*domain.ClosedDeal{
			makeDeal("r1", 0, 0.02, domain.ExitReasonTakeProfit),
			makeDeal("r1", 1, -0.10, domain.ExitReasonStopLoss),
			makeDeal("r2", 0, 0.02, domain.ExitReasonTakeProfit),
		}
		if err := dealStore.InsertBulk(ctx, deals); err != nil {
			t.Fatalf("InsertBulk failed: %v", err)
		}

		agg, err := aggregator.ComputeAggregate(ctx, domain.BotTypeDCA, "BTCUSDT")
		if err != nil {
			t.Fatalf("Run %d: ComputeAggregate failed: %v", run, err)
		}

		if agg.TotalRuns != 2 {
			t.Errorf("Run %d: expected TotalRuns 2, got %d", run, agg.TotalRuns)
		}
		if agg.GoRuns != 1 {
			t.Errorf("Run %d: expected GoRuns 1, got %d", run, agg.GoRuns)
		}
		// Equal Sharpe: lowest run ID wins the tie
		if agg.BestRunID != "r1" {
			t.Errorf("Run %d: expected BestRunID r1, got %s", run, agg.BestRunID)
		}
		if agg.WorstDrawdownPct != -9 {
			t.Errorf("Run %d: expected WorstDrawdownPct -9, got %v", run, agg.WorstDrawdownPct)
		}
		if math.Abs(agg.ProfitPctMean-0.5) > 1e-12 {
			t.Errorf("Run %d: expected ProfitPctMean 0.5, got %v", run, agg.ProfitPctMean)
		}
	}
}

func TestComputeAggregate_WinLossCounts(t *testing.T) {
	ctx := context.Background()
	aggregator, runStore, dealStore, _ := newTestAggregator()

	if err := runStore.Insert(ctx, makeRun("r1", domain.BotTypeSignal, "ETHUSDT", 3, 1, -2, "GO")); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}

	// 7 wins, 3 losses
	pnls := []float64{0.10, 0.05, -0.03, 0.12, 0.08, -0.05, 0.15, 0.02, -0.08, 0.20}
	deals := make([]*domain.ClosedDeal, len(pnls))
	for i, p := range pnls {
		reason := domain.ExitReasonTakeProfit
		if p <= 0 {
			reason = domain.ExitReasonStopLoss
		}
		deals[i] = makeDeal("r1", i, p, reason)
	}
	if err := dealStore.InsertBulk(ctx, deals); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	agg, err := aggregator.ComputeAggregate(ctx, domain.BotTypeSignal, "ETHUSDT")
	if err != nil {
		t.Fatalf("ComputeAggregate failed: %v", err)
	}

	if agg.TotalDeals != 10 {
		t.Errorf("expected TotalDeals 10, got %d", agg.TotalDeals)
	}
	if agg.Wins != 7 {
		t.Errorf("expected Wins 7, got %d", agg.Wins)
	}
	if agg.Losses != 3 {
		t.Errorf("expected Losses 3, got %d", agg.Losses)
	}
	if math.Abs(agg.WinRate-0.7) > 0.0001 {
		t.Errorf("expected WinRate 0.7000, got %.4f", agg.WinRate)
	}
	if agg.TakeProfitExits != 7 || agg.StopLossExits != 3 {
		t.Errorf("expected 7 TP / 3 SL exits, got %d / %d", agg.TakeProfitExits, agg.StopLossExits)
	}
}

func TestComputeAggregate_Quantiles(t *testing.T) {
	ctx := context.Background()
	aggregator, runStore, dealStore, _ := newTestAggregator()

	if err := runStore.Insert(ctx, makeRun("q1", domain.BotTypeGrid, "BTCUSDT", 1, 0.5, -1, "NO-GO")); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}

	// Sorted: [-0.20, -0.10, 0.00, 0.05, 0.10, 0.15, 0.20, 0.25, 0.30, 0.40]
	pnls := []float64{0.10, -0.10, 0.30, 0.00, 0.20, -0.20, 0.40, 0.05, 0.25, 0.15}
	deals := make([]*domain.ClosedDeal, len(pnls))
	for i, p := range pnls {
		deals[i] = makeDeal("q1", i, p, domain.ExitReasonGrid)
	}
	if err := dealStore.InsertBulk(ctx, deals); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	agg, err := aggregator.ComputeAggregate(ctx, domain.BotTypeGrid, "BTCUSDT")
	if err != nil {
		t.Fatalf("ComputeAggregate failed: %v", err)
	}

	// P10: idx = 0.9 → -0.20 + 0.9*0.10 = -0.11
	// P25: idx = 2.25 → 0.00 + 0.25*0.05 = 0.0125
	// P50: idx = 4.5 → 0.10 + 0.5*0.05 = 0.125
	// P75: idx = 6.75 → 0.20 + 0.75*0.05 = 0.2375
	// P90: idx = 8.1 → 0.30 + 0.1*0.10 = 0.31
	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"PnLMin", agg.PnLMin, -0.20},
		{"PnLMax", agg.PnLMax, 0.40},
		{"PnLP10", agg.PnLP10, -0.11},
		{"PnLP25", agg.PnLP25, 0.0125},
		{"PnLMedian", agg.PnLMedian, 0.125},
		{"PnLP75", agg.PnLP75, 0.2375},
		{"PnLP90", agg.PnLP90, 0.31},
	}

	for _, tt := range tests {
		if math.Abs(tt.got-tt.expected) > 0.0001 {
			t.Errorf("%s: expected %.4f, got %.4f", tt.name, tt.expected, tt.got)
		}
	}
	if agg.GridExits != 10 {
		t.Errorf("expected 10 grid exits, got %d", agg.GridExits)
	}
}

func TestComputeAggregate_MaxConsecutiveLossesPerRun(t *testing.T) {
	ctx := context.Background()
	aggregator, runStore, dealStore, _ := newTestAggregator()

	for _, r := range []*domain.RunSummary{
		makeRun("a", domain.BotTypeDCA, "BTCUSDT", 0, 0, 0, "NO-GO"),
		makeRun("b", domain.BotTypeDCA, "BTCUSDT", 0, 0, 0, "NO-GO"),
	} {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	// Run a: W, L, L. Run b: L, L, W. Streaks do not join across runs.
	deals := []*domain.ClosedDeal{
		makeDeal("a", 0, 0.10, domain.ExitReasonTakeProfit),
		makeDeal("a", 1, -0.05, domain.ExitReasonStopLoss),
		makeDeal("a", 2, -0.03, domain.ExitReasonStopLoss),
		makeDeal("b", 0, -0.02, domain.ExitReasonStopLoss),
		makeDeal("b", 1, -0.04, domain.ExitReasonStopLoss),
		makeDeal("b", 2, 0.12, domain.ExitReasonTakeProfit),
	}
	if err := dealStore.InsertBulk(ctx, deals); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	agg, err := aggregator.ComputeAggregate(ctx, domain.BotTypeDCA, "BTCUSDT")
	if err != nil {
		t.Fatalf("ComputeAggregate failed: %v", err)
	}
	if agg.MaxConsecutiveLosses != 2 {
		t.Errorf("expected MaxConsecutiveLosses 2, got %d", agg.MaxConsecutiveLosses)
	}
}

func TestComputeAggregate_FiltersBySymbol(t *testing.T) {
	ctx := context.Background()
	aggregator, runStore, _, _ := newTestAggregator()

	for _, r := range []*domain.RunSummary{
		makeRun("btc", domain.BotTypeDCA, "BTCUSDT", 5, 2, -1, "GO"),
		makeRun("eth", domain.BotTypeDCA, "ETHUSDT", -5, -1, -20, "NO-GO"),
		makeRun("grid", domain.BotTypeGrid, "BTCUSDT", 1, 1, -1, "NO-GO"),
	} {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	agg, err := aggregator.ComputeAggregate(ctx, domain.BotTypeDCA, "BTCUSDT")
	if err != nil {
		t.Fatalf("ComputeAggregate failed: %v", err)
	}
	if agg.TotalRuns != 1 || agg.BestRunID != "btc" {
		t.Errorf("expected only run btc, got %d runs best=%s", agg.TotalRuns, agg.BestRunID)
	}
	if agg.TotalDeals != 0 || agg.WinRate != 0 {
		t.Errorf("expected no deals, got %d (win rate %v)", agg.TotalDeals, agg.WinRate)
	}
}

func TestComputeAndStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	aggregator, runStore, dealStore, aggStore := newTestAggregator()

	if err := runStore.Insert(ctx, makeRun("dup", domain.BotTypeSignal, "SOLUSDT", 1, 1, -1, "GO")); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}
	if err := dealStore.InsertBulk(ctx, []*domain.ClosedDeal{makeDeal("dup", 0, 0.1, domain.ExitReasonTrailingStop)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// First store should succeed
	agg1, err := aggregator.ComputeAndStore(ctx, domain.BotTypeSignal, "SOLUSDT")
	if err != nil {
		t.Fatalf("First ComputeAndStore failed: %v", err)
	}
	if agg1.TrailingStopExits != 1 {
		t.Errorf("expected 1 trailing stop exit, got %d", agg1.TrailingStopExits)
	}

	stored, err := aggStore.GetByKey(ctx, domain.BotTypeSignal, "SOLUSDT")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if stored.TotalRuns != 1 {
		t.Errorf("expected stored TotalRuns 1, got %d", stored.TotalRuns)
	}

	// Second store should return ErrDuplicateKey
	_, err = aggregator.ComputeAndStore(ctx, domain.BotTypeSignal, "SOLUSDT")
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestComputeAggregate_NoRuns(t *testing.T) {
	aggregator, _, _, _ := newTestAggregator()

	_, err := aggregator.ComputeAggregate(context.Background(), domain.BotTypeGrid, "BTCUSDT")
	if !errors.Is(err, ErrNoRuns) {
		t.Errorf("expected ErrNoRuns, got %v", err)
	}
}
