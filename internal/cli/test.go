package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/scan/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // substring of scenario names to run
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name         string   `json:"name"`
	Pass         bool     `json:"pass"`
	Runs         int      `json:"runs"`
	SuccessRate  float64  `json:"success_rate"`
	GoldenUpdate bool     `json:"golden_updated,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run regression scenarios",
		Long: `Run regression scenarios with fixed seeds.

Each scenario names a model directory, sampling parameters and expected rate
bounds. A scenario with golden_run set also compares the trace of that run
against <scenarios-dir>/golden/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario files)

Examples:
  scan test ./testdata/scenarios
  scan test ./testdata/scenarios --filter coin
  scan test ./testdata/scenarios --update
  scan test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name contains this text")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	scenarios, err := harness.LoadScenarios(dir, opts.Filter)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to load scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarios)),
		Total:     len(scenarios),
	}
	goldenDir := filepath.Join(dir, "golden")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, s := range scenarios {
		out.VerboseLog("running scenario %s (seed %d)", s.Name, s.Seed)
		sr := runScenario(ctx, s, goldenDir, opts.Update)
		if !out.JSON() {
			writeScenarioText(out.Writer, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if err := out.Emit(result, func(w io.Writer) { writeTestSummary(w, result) }); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func runScenario(ctx context.Context, s *harness.Scenario, goldenDir string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: s.Name}

	res, err := harness.RunContext(ctx, s)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Runs = res.Report.Runs
	sr.SuccessRate = res.Report.SuccessRate
	sr.Errors = res.Errors

	if res.Golden != nil {
		if update {
			if err := harness.UpdateGolden(goldenDir, s.Name, res); err != nil {
				sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			} else {
				sr.GoldenUpdate = true
			}
		} else if err := harness.CompareGolden(goldenDir, s.Name, res); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				sr.Errors = append(sr.Errors, "golden file missing (run with --update to create it)")
			} else {
				sr.Errors = append(sr.Errors, fmt.Sprintf("%v (run with --update to regenerate)", err))
			}
		}
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

func writeScenarioText(w io.Writer, sr ScenarioResult) {
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if sr.GoldenUpdate {
		fmt.Fprintf(w, "✓ %s (%d runs, golden updated)\n", sr.Name, sr.Runs)
		return
	}
	fmt.Fprintf(w, "✓ %s (%d runs)\n", sr.Name, sr.Runs)
}

func writeTestSummary(w io.Writer, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
