// ABOUTME: Test runner for RAGAS benchmarks - executes scenarios and collects results
// ABOUTME: Each scenario runs against a fresh Service: ingest, converse, then score
package ragas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harper/askdocs/internal/core"
)

// ServiceFactory builds an isolated Service for one scenario.
// The returned cleanup func releases whatever the Service holds.
type ServiceFactory func(ctx context.Context, scenarioID string) (*core.Service, func(), error)

// BenchmarkRunner executes RAGAS benchmark tests
type BenchmarkRunner struct {
	newService ServiceFactory
	metrics    *MetricsCalculator
	verbose    bool
	out        io.Writer
}

// NewBenchmarkRunner creates a new benchmark runner; verbose progress goes to out
func NewBenchmarkRunner(newService ServiceFactory, verbose bool, out io.Writer) *BenchmarkRunner {
	if out == nil {
		out = io.Discard
	}
	return &BenchmarkRunner{
		newService: newService,
		metrics:    NewMetricsCalculator(),
		verbose:    verbose,
		out:        out,
	}
}

func (r *BenchmarkRunner) logf(format string, args ...interface{}) {
	if r.verbose {
		fmt.Fprintf(r.out, format, args...)
	}
}

// RunTest executes a single benchmark test
func (r *BenchmarkRunner) RunTest(ctx context.Context, scenario TestScenario) (TestResult, error) {
	r.logf("\n========================================\n")
	r.logf("RUNNING: %s\n", scenario.Name)
	r.logf("========================================\n")
	r.logf("Description: %s\n\n", scenario.Description)

	service, cleanup, err := r.newService(ctx, scenario.ID)
	if err != nil {
		return TestResult{}, fmt.Errorf("failed to create service: %w", err)
	}
	defer cleanup()

	if len(scenario.Documents) > 0 {
		stats, err := service.Ingest(ctx, scenario.Documents, core.ModeRebuild)
		if err != nil {
			return TestResult{}, fmt.Errorf("setup failed: %w", err)
		}
		r.logf("Indexed %d documents as %d chunks\n", stats.Documents, stats.Chunks)
	}

	var (
		finalResponse    string
		retrievedContext []string
	)
	for _, turn := range scenario.Turns {
		r.logf("[Turn %d] User: %s\n", turn.TurnNumber, turn.UserMessage)

		start := time.Now()
		result, err := service.Ask(ctx, scenario.ID, turn.UserMessage)
		if err != nil {
			return TestResult{}, fmt.Errorf("turn %d failed: %w", turn.TurnNumber, err)
		}
		r.logf("[Turn %d] Assistant (%s, %d sources): %s\n",
			turn.TurnNumber, time.Since(start).Round(time.Millisecond), len(result.Sources), truncateRunes(result.Answer, 150))

		finalResponse = result.Answer
		retrievedContext = retrievedContext[:0]
		for _, src := range result.Sources {
			retrievedContext = append(retrievedContext, src.PageContent)
		}
	}

	result := r.metrics.EvaluateTest(scenario, finalResponse, retrievedContext)
	r.logf("\nFaithfulness: %.2f  Context recall: %.2f  => %s\n",
		result.FaithfulnessScore, result.ContextRecallScore, result.Status)
	return result, nil
}

// RunAllTests runs every scenario; a scenario that errors is recorded as a FAIL
func (r *BenchmarkRunner) RunAllTests(ctx context.Context, scenarios []TestScenario) []TestResult {
	results := make([]TestResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		result, err := r.RunTest(ctx, scenario)
		if err != nil {
			result = TestResult{
				TestID:       scenario.ID,
				TestName:     scenario.Name,
				Status:       "FAIL",
				ErrorMessage: err.Error(),
			}
		}
		results = append(results, result)
	}
	return results
}

// Summary aggregates a benchmark run for export
type Summary struct {
	Timestamp time.Time    `json:"timestamp"`
	Total     int          `json:"total"`
	Passed    int          `json:"passed"`
	Failed    int          `json:"failed"`
	Results   []TestResult `json:"results"`
}

// Summarize counts passes and failures
func Summarize(results []TestResult) Summary {
	s := Summary{Timestamp: time.Now().UTC(), Total: len(results), Results: results}
	for _, r := range results {
		if r.Status == "PASS" {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// ExportResults writes the summary of results as indented JSON
func (r *BenchmarkRunner) ExportResults(results []TestResult, outputPath string) error {
	jsonData, err := json.MarshalIndent(Summarize(results), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
