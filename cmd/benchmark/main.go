// ABOUTME: Command-line benchmark runner for RAGAS-style evaluation
// ABOUTME: Runs the labelled scenarios against the real models and writes JSON results
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/harper/askdocs/benchmarks/ragas"
	"github.com/harper/askdocs/internal/app"
	"github.com/harper/askdocs/internal/config"
	"github.com/harper/askdocs/internal/core"
	"github.com/harper/askdocs/internal/logging"
)

func main() {
	testID := flag.String("test", "", "Run one scenario by id. If empty, runs all scenarios.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (continuing anyway): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatal("OPENAI_API_KEY environment variable is required for benchmarks")
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(os.Stderr, logging.Options{Level: level, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("Invalid logging configuration: %v", err)
	}

	scenarios := ragas.AllScenarios()
	if *testID != "" {
		scenario, ok := ragas.ScenarioByID(*testID)
		if !ok {
			ids := make([]string, 0, len(scenarios))
			for _, s := range scenarios {
				ids = append(ids, s.ID)
			}
			log.Fatalf("Unknown test ID: %s (valid options: %s)", *testID, strings.Join(ids, ", "))
		}
		scenarios = []ragas.TestScenario{scenario}
	}

	// Every scenario gets its own index file and in-memory history
	factory := func(ctx context.Context, scenarioID string) (*core.Service, func(), error) {
		dir, err := os.MkdirTemp("", "askdocs_bench_"+scenarioID+"_")
		if err != nil {
			return nil, nil, err
		}
		scenarioCfg := *cfg
		scenarioCfg.IndexBackend = config.BackendFile
		scenarioCfg.IndexPath = filepath.Join(dir, "index.bin")
		scenarioCfg.HistoryDBPath = ""

		a, err := app.New(ctx, &scenarioCfg, logger)
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, nil, err
		}
		return a.Service, func() {
			_ = a.Close()
			_ = os.RemoveAll(dir)
		}, nil
	}

	fmt.Println("========================================")
	fmt.Println("askdocs RAGAS Benchmarks")
	fmt.Println("========================================")

	runner := ragas.NewBenchmarkRunner(factory, *verbose, os.Stdout)
	results := runner.RunAllTests(context.Background(), scenarios)

	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println("========================================")

	summary := ragas.Summarize(results)
	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.TestID, result.TestName)
		if result.ErrorMessage != "" {
			fmt.Printf("  Error: %s\n", result.ErrorMessage)
		}
		fmt.Printf("  Faithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Printf("  Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Printf("  Overall: %.2f\n", result.OverallScore)
		fmt.Printf("  Status: %s\n", result.Status)
	}

	fmt.Println("\n========================================")
	fmt.Printf("Total Tests: %d\n", summary.Total)
	fmt.Printf("Passed: %d\n", summary.Passed)
	fmt.Printf("Failed: %d\n", summary.Failed)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, *outputPath); err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
