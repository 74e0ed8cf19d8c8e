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

	"github.com/joho/godotenv"

	"bot-sim-lab/internal/bots"
	"bot-sim-lab/internal/reporting"
	"bot-sim-lab/internal/storeset"
	"bot-sim-lab/internal/verification"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags
	runID := flag.String("run-id", "", "Run ID to replay (required unless --all)")
	all := flag.Bool("all", false, "Replay every stored run")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	annualFactor := flag.Float64("annual-factor", bots.DefaultAnnualFactor, "Periods per year the runs were produced with")
	showRun := flag.Bool("show", false, "Print the stored run report before verifying")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Validate required flags
	if *runID == "" && !*all {
		logger.Fatal("--run-id or --all is required")
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

	// Replay needs the stored runs, so memory stores make no sense here.
	stores, err := storeset.Open(ctx, storeset.Config{
		PostgresDSN:   *postgresDSN,
		ClickhouseDSN: *clickhouseDSN,
	})
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RunStore:     stores.Runs,
		DealStore:    stores.Deals,
		EquityStore:  stores.Equity,
		CandleStore:  stores.Candles,
		AnnualFactor: *annualFactor,
	})

	var results []verification.VerificationResult
	if *all {
		report, err := verifier.VerifyAll(ctx)
		if err != nil {
			logger.Fatalf("replay failed: %v", err)
		}
		results = report.Results
	} else {
		if *showRun {
			summary, err := stores.Runs.GetByID(ctx, *runID)
			if err != nil {
				logger.Fatalf("load run: %v", err)
			}
			deals, err := stores.Deals.GetByRunID(ctx, *runID)
			if err != nil {
				logger.Fatalf("load deals: %v", err)
			}
			fmt.Println(reporting.RenderRunMarkdown(summary, deals))
		}
		res, err := verifier.VerifyRun(ctx, *runID)
		if err != nil {
			logger.Fatalf("replay failed: %v", err)
		}
		results = []verification.VerificationResult{*res}
	}

	divergent := 0
	for _, r := range results {
		if !r.Match {
			divergent++
		}
	}

	// Output results
	if *outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	} else {
		for _, r := range results {
			status := "MATCH"
			if !r.Match {
				status = "DIVERGED"
			}
			fmt.Printf("%s  %-8s  stored=%.6f%% replayed=%.6f%%\n", r.RunID, status, r.StoredProfitPct, r.ReplayedProfitPct)
			for _, d := range r.Divergences {
				fmt.Printf("    %s: expected=%v actual=%v\n", d.Field, d.Expected, d.Actual)
			}
		}
		fmt.Printf("\n%d/%d runs match\n", len(results)-divergent, len(results))
	}

	if divergent > 0 {
		stores.Close()
		os.Exit(2)
	}
}
