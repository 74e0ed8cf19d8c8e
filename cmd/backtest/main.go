package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bot-sim-lab/internal/bots"
	"bot-sim-lab/internal/decision"
	"bot-sim-lab/internal/domain"
	"bot-sim-lab/internal/marketdata"
	"bot-sim-lab/internal/reporting"
	"bot-sim-lab/internal/simulation"
	"bot-sim-lab/internal/storage"
	"bot-sim-lab/internal/storeset"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Inputs
	botFlag := flag.String("bot", "", "Bot type: dca, grid, signal (defaults to bot_type in the params file)")
	paramsPath := flag.String("params", "", "Bot parameters file, YAML or JSON (required)")
	candlesPath := flag.String("candles", "", "OHLCV candles CSV (required)")
	signalPath := flag.String("signal", "", "Entry signal CSV (timestamp,signal)")
	signalLag := flag.Int("signal-lag", 0, "Shift the entry signal forward by N candles")
	initialCapital := flag.Float64("initial-capital", 0, "Initial capital in quote currency (0 = bot default)")
	symbol := flag.String("symbol", "BTC/USDT", "Market symbol")
	interval := flag.String("interval", "1h", "Candle interval")
	annualFactor := flag.Float64("annual-factor", bots.DefaultAnnualFactor, "Periods per year for Sharpe annualization")

	// Gate
	minSharpe := flag.Float64("min-sharpe", decision.DefaultThresholds.MinSharpe, "Deployment gate: minimum Sharpe ratio")
	maxDrawdown := flag.Float64("max-drawdown", decision.DefaultThresholds.MaxDrawdownPct, "Deployment gate: drawdown floor (negative %)")
	minDeals := flag.Int("min-deals", decision.DefaultThresholds.MinDeals, "Deployment gate: minimum closed deals")

	// Storage
	persist := flag.Bool("persist", false, "Persist candles, run summary, deals and equity curve")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply database migrations before persisting")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	tradesCSV := flag.String("trades-csv", "", "Write the closed deals table to this CSV path")
	reportPath := flag.String("report", "", "Write a Markdown run report with the gate decision to this path")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	// Validate required flags
	if *paramsPath == "" {
		logger.Fatal("--params is required")
	}
	if *candlesPath == "" {
		logger.Fatal("--candles is required")
	}

	botType, params, err := readParamsFile(*paramsPath)
	if err != nil {
		logger.Fatalf("read params: %v", err)
	}
	if *botFlag != "" {
		botType = domain.BotType(*botFlag)
	}
	if !botType.Valid() {
		logger.Fatalf("Invalid bot type %q. Must be dca, grid or signal", botType)
	}

	candles, err := marketdata.LoadCandlesFile(*candlesPath)
	if err != nil {
		logger.Fatalf("load candles: %v", err)
	}
	var points []domain.SignalPoint
	if *signalPath != "" {
		points, err = marketdata.LoadSignalFile(*signalPath)
		if err != nil {
			logger.Fatalf("load signal: %v", err)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	series := domain.SeriesKey{Symbol: *symbol, Interval: *interval}
	opts := simulation.RunnerOptions{
		Thresholds: &decision.Thresholds{
			MinSharpe:      *minSharpe,
			MaxDrawdownPct: *maxDrawdown,
			MinDeals:       *minDeals,
		},
		AnnualFactor: *annualFactor,
	}

	if *persist {
		stores, err := storeset.Open(ctx, storeset.Config{
			PostgresDSN:   *postgresDSN,
			ClickhouseDSN: *clickhouseDSN,
			UseMemory:     *useMemory,
			Migrate:       *migrate,
		})
		if err != nil {
			logger.Fatalf("open stores: %v", err)
		}
		defer stores.Close()

		added, err := storage.ImportCandles(ctx, stores.Candles, series, candles)
		if err != nil {
			logger.Fatalf("store candles: %v", err)
		}
		logger.Printf("Stored %d new candles for %s %s", added, series.Symbol, series.Interval)

		opts.CandleStore = stores.Candles
		opts.RunStore = stores.Runs
		opts.DealStore = stores.Deals
		opts.EquityStore = stores.Equity
	}

	runner := simulation.NewRunner(opts)

	logger.Printf("Running backtest: bot=%s symbol=%s interval=%s candles=%d signals=%d",
		botType, series.Symbol, series.Interval, len(candles), len(points))

	start := time.Now()
	out, err := runner.Execute(ctx, &simulation.Request{
		BotType:        botType,
		Params:         params,
		Series:         series,
		Signals:        points,
		SignalLag:      *signalLag,
		InitialCapital: *initialCapital,
	}, candles)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}
	logger.Printf("Backtest finished in %v (run=%s stored=%v)", time.Since(start), out.Summary.RunID, out.Stored)

	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderDealsCSV(out.Result.Deals)), 0o644); err != nil {
			logger.Fatalf("write trades csv: %v", err)
		}
		logger.Printf("Wrote %d deals to %s", len(out.Result.Deals), *tradesCSV)
	}

	if *reportPath != "" {
		deals := make([]*domain.ClosedDeal, len(out.Result.Deals))
		for i := range out.Result.Deals {
			deals[i] = &out.Result.Deals[i]
		}
		md := reporting.RenderRunMarkdown(out.Summary, deals) + "\n" +
			decision.RenderMarkdown(decision.FromSummary(out.Summary), out.Decision)
		if err := os.WriteFile(*reportPath, []byte(md), 0o644); err != nil {
			logger.Fatalf("write report: %v", err)
		}
		logger.Printf("Wrote run report to %s", *reportPath)
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(jsonOutput{
			RunID:    out.Summary.RunID,
			Decision: out.Decision.Decision,
			Stored:   out.Stored,
			Result:   out.Result,
		}, "", "  ")
		fmt.Println(string(output))
	} else {
		printResult(out)
	}
}

// jsonOutput is the --json document.
type jsonOutput struct {
	RunID    string            `json:"run_id"`
	Decision decision.Decision `json:"decision"`
	Stored   bool              `json:"stored"`
	Result   *domain.BotResult `json:"result"`
}

// readParamsFile decodes a parameters file via bots.ReadParams.
func readParamsFile(path string) (domain.BotType, map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	return bots.ReadParams(f)
}

// printResult outputs a human-readable run summary.
func printResult(out *simulation.Outcome) {
	s := out.Summary
	res := out.Result

	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", s.RunID)
	fmt.Printf("Bot:                %s\n", s.BotType)
	fmt.Printf("Market:             %s %s\n", s.Symbol, s.Interval)
	fmt.Printf("Range:              %s .. %s (%d candles)\n",
		time.UnixMilli(s.StartTime).UTC().Format(time.RFC3339),
		time.UnixMilli(s.EndTime).UTC().Format(time.RFC3339),
		s.CandleCount)
	fmt.Println()

	fmt.Println("Capital:")
	fmt.Printf("  Initial:          %.2f\n", res.InitialCapital)
	fmt.Printf("  Final Equity:     %.2f\n", res.FinalEquity())
	fmt.Printf("  Max Deployed:     %.2f\n", res.MaxCapitalDeployed)
	fmt.Println()

	fmt.Println("Metrics:")
	fmt.Printf("  Total Profit:     %.2f%%\n", res.TotalProfitPct)
	fmt.Printf("  Max Drawdown:     %.2f%%\n", res.MaxDrawdownPct)
	fmt.Printf("  Sharpe Ratio:     %.4f\n", res.SharpeRatio)
	fmt.Printf("  Win Rate:         %.2f%%\n", res.WinRate*100)
	fmt.Printf("  Deals:            %d\n", res.TotalDeals)
	fmt.Printf("  Avg Duration:     %.2fh\n", res.AvgDealDurationHours)
	if res.ExpectedValuePerDeal != nil {
		fmt.Printf("  EV per Deal:      %.4f%%\n", *res.ExpectedValuePerDeal*100)
	}
	if res.AnnualizedCapitalReturn != nil {
		fmt.Printf("  Annualized:       %.2f%%\n", *res.AnnualizedCapitalReturn)
	}
	fmt.Println()

	fmt.Printf("Decision:           %s\n", out.Decision.Decision)
	for _, c := range out.Decision.GOCriteria {
		if !c.Pass {
			fmt.Printf("  failed: %s (actual %s, threshold %s)\n", c.Name, c.Actual, c.Threshold)
		}
	}
}
