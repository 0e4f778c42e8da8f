package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/scan/internal/compiler"
	"github.com/roach88/scan/internal/smc"
	"github.com/roach88/scan/internal/store"
	"github.com/roach88/scan/internal/testutil"
)

var errNoGolden = errors.New("scenario has no golden run")

// Harness executes one scenario against a fresh in-memory trace store.
type Harness struct {
	scenario *Scenario
	bundle   *compiler.Bundle
	store    *store.Store
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the model directory (and select guarantees)
// 2. Open a fresh in-memory trace store and create a session
// 3. Estimate with the scenario's fixed seed, storing the golden run
// 4. Check the report against the expectations
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	bundle, err := compiler.Load(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if len(scenario.Guarantees) > 0 {
		if bundle, err = bundle.Select(scenario.Guarantees...); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewFixedIDGenerator("scenario")),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{scenario: scenario, bundle: bundle, store: st, logger: logger}
	return h.execute(ctx)
}

func (h *Harness) config() smc.Config {
	s := h.scenario
	return smc.Config{
		Confidence:  s.Confidence,
		Precision:   s.Precision,
		MaxLength:   s.MaxLength,
		MaxDuration: s.MaxDuration,
		Workers:     s.Workers,
		Seed:        s.Seed,
		Capture:     smc.CaptureNone,
	}
}

func (h *Harness) execute(ctx context.Context) (*Result, error) {
	cfg := h.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", h.scenario.Name, err)
	}

	session, err := h.store.CreateSession(ctx, &store.Session{
		ModelPath:           h.scenario.Model,
		ModelFingerprint:    h.bundle.ModelFingerprint,
		PropertyFingerprint: h.bundle.PropertyFingerprint,
		Confidence:          cfg.Confidence,
		Precision:           cfg.Precision,
		RequiredRuns:        smc.RequiredRuns(cfg.Confidence, cfg.Precision),
		MaxLength:           cfg.MaxLength,
		MaxDuration:         cfg.MaxDuration,
		Workers:             cfg.Workers,
		Seed:                cfg.Seed,
		Capture:             smc.CaptureAll.String(),
	})
	if err != nil {
		return nil, err
	}

	opts := []smc.Option{smc.WithLogger(h.logger)}
	var snapshot *TraceSnapshot
	if golden := h.scenario.GoldenRun; golden != nil {
		cfg.Capture = smc.CaptureAll
		sink := store.NewSessionSink(h.store, session, h.bundle.Model)
		opts = append(opts, smc.WithSink(smc.TraceSinkFunc(func(ctx context.Context, rec *smc.RunRecord) error {
			if rec.Index != *golden {
				return nil
			}
			snapshot = h.snapshot(rec)
			return sink.WriteRun(ctx, rec)
		})))
	}

	report, err := smc.Estimate(ctx, h.bundle.Model, h.bundle.Plan, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := h.store.FinishSession(ctx, session, report); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Report = report
	if snapshot != nil {
		trace, err := h.store.ReadTrace(ctx, session, snapshot.Run)
		if err != nil {
			return nil, err
		}
		snapshot.TraceHash = trace.Run.TraceHash
		result.Golden = snapshot
	} else if h.scenario.GoldenRun != nil {
		result.AddError(fmt.Sprintf("golden run %d was not sampled (%d runs)", *h.scenario.GoldenRun, report.Runs))
	}

	h.check(report, result)
	return result, nil
}

func (h *Harness) snapshot(rec *smc.RunRecord) *TraceSnapshot {
	events := make([]map[string]any, len(rec.Events))
	for i, ev := range rec.Events {
		events[i] = ev.Describe(h.bundle.Model)
	}
	return &TraceSnapshot{
		ScenarioName: h.scenario.Name,
		Run:          rec.Index,
		Outcome:      rec.Outcome.String(),
		Violated:     rec.Violated,
		Events:       events,
	}
}

// check records every expectation the report misses.
func (h *Harness) check(r *smc.Report, result *Result) {
	exp := h.scenario.Expect
	if r.Cancelled {
		result.AddError("estimation was cancelled")
	}
	if exp.Runs != 0 && r.Runs != exp.Runs {
		result.AddError(fmt.Sprintf("runs: got %d, want %d", r.Runs, exp.Runs))
	}

	rates := []struct {
		name  string
		bound *RateBound
		rate  float64
	}{
		{"satisfied", exp.Satisfied, r.SuccessRate},
		{"violated", exp.Violated, r.FailureRate},
		{"undetermined", exp.Undetermined, r.UndeterminedRate},
	}
	for _, c := range rates {
		if msg := c.bound.check(c.rate); msg != "" {
			result.AddError(fmt.Sprintf("%s: %s", c.name, msg))
		}
	}

	counts := make(map[string]int, len(r.Guarantees))
	for _, g := range r.Guarantees {
		counts[g.Name] = g.Violations
	}
	for name, bound := range exp.Guarantees {
		n, ok := counts[name]
		if !ok {
			result.AddError(fmt.Sprintf("guarantee %q is not part of the property", name))
			continue
		}
		rate := 0.0
		if r.Runs > 0 {
			rate = float64(n) / float64(r.Runs)
		}
		if msg := bound.check(rate); msg != "" {
			result.AddError(fmt.Sprintf("guarantee %s violations: %s", name, msg))
		}
	}
}

// GoldenPath returns the golden file of a scenario under dir.
func GoldenPath(dir, scenarioName string) string {
	return filepath.Join(dir, scenarioName+".golden")
}

// UpdateGolden writes the golden run of result to dir.
func UpdateGolden(dir, scenarioName string, result *Result) error {
	if result.Golden == nil {
		return errNoGolden
	}
	data, err := result.Golden.Canonical()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(GoldenPath(dir, scenarioName), data, 0o644)
}

// CompareGolden checks the golden run of result against the file in dir.
// It returns nil when the scenario has no golden run.
func CompareGolden(dir, scenarioName string, result *Result) error {
	if result.Golden == nil {
		return nil
	}
	want, err := os.ReadFile(GoldenPath(dir, scenarioName))
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	got, err := result.Golden.Canonical()
	if err != nil {
		return err
	}
	if string(got) != string(want) {
		return fmt.Errorf("trace of run %d differs from %s", result.Golden.Run, GoldenPath(dir, scenarioName))
	}
	return nil
}
