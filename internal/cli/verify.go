package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/scan/internal/compiler"
	"github.com/roach88/scan/internal/config"
	"github.com/roach88/scan/internal/smc"
	"github.com/roach88/scan/internal/store"
	"github.com/roach88/scan/internal/telemetry"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Config      string
	Confidence  float64
	Precision   float64
	MaxLength   int
	MaxDuration int64
	Workers     int
	Seed        uint64
	Database    string
	Traces      string
	Telemetry   string
	Properties  []string
}

// VerifyResult is the JSON payload of a verification.
type VerifyResult struct {
	Model               string      `json:"model"`
	ModelFingerprint    string      `json:"model_fingerprint"`
	PropertyFingerprint string      `json:"property_fingerprint"`
	Session             string      `json:"session,omitempty"`
	TracesStored        int         `json:"traces_stored,omitempty"`
	Report              *smc.Report `json:"report"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "verify <model-dir>",
		Short: "Estimate the probability that a model satisfies its properties",
		Long: `Compile the CUE model and properties in <model-dir>, sample the number of
runs required by the confidence and precision, and report how many satisfied,
violated or left the guarantees undetermined.

Settings come from --config (YAML) and are overridden by explicit flags.
Interrupting the command (Ctrl-C) stops sampling and reports the runs done so far.

Exit codes:
  0 - Estimation completed
  1 - Estimation was interrupted, or the model failed to compile
  2 - Command error (invalid flags, paths, database, etc.)

Examples:
  scan verify ./models/pipeline
  scan verify ./models/pipeline -c 0.99 -p 0.005 --workers 8
  scan verify ./models/pipeline --seed 42 --db runs.db --traces violated
  scan verify ./models/pipeline --property total --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Config, "config", "", "YAML settings file")
	f.Float64VarP(&opts.Confidence, "confidence", "c", def.Confidence, "confidence of the estimate, in (0, 1)")
	f.Float64VarP(&opts.Precision, "precision", "p", def.Precision, "half-width of the estimate, in (0, 1)")
	f.IntVar(&opts.MaxLength, "max-length", def.MaxLength, "maximum steps per run")
	f.Int64Var(&opts.MaxDuration, "max-duration", def.MaxDuration, "maximum model time per run (0 for none)")
	f.IntVar(&opts.Workers, "workers", def.Workers, "parallel workers (0 for GOMAXPROCS)")
	f.Uint64Var(&opts.Seed, "seed", 0, "base seed (random when unset)")
	f.StringVar(&opts.Database, "db", def.Database, "trace store database (disabled when empty)")
	f.StringVar(&opts.Traces, "traces", def.Traces, "runs to store: none|all|failures|satisfied|violated|undetermined")
	f.StringVar(&opts.Telemetry, "telemetry", def.Telemetry, "span exporter: none|stdout")
	f.StringSliceVar(&opts.Properties, "property", nil, "only check these guarantees (repeatable)")

	return cmd
}

// settings layers explicitly set flags over the settings file or defaults.
func (opts *VerifyOptions) settings(cmd *cobra.Command) (config.Settings, error) {
	s := config.Default()
	if opts.Config != "" {
		var err error
		if s, err = config.Load(opts.Config); err != nil {
			return config.Settings{}, err
		}
	}

	f := cmd.Flags()
	if f.Changed("confidence") {
		s.Confidence = opts.Confidence
	}
	if f.Changed("precision") {
		s.Precision = opts.Precision
	}
	if f.Changed("max-length") {
		s.MaxLength = opts.MaxLength
	}
	if f.Changed("max-duration") {
		s.MaxDuration = opts.MaxDuration
	}
	if f.Changed("workers") {
		s.Workers = opts.Workers
	}
	if f.Changed("seed") {
		seed := opts.Seed
		s.Seed = &seed
	}
	if f.Changed("db") {
		s.Database = opts.Database
	}
	if f.Changed("traces") {
		s.Traces = opts.Traces
	}
	if f.Changed("telemetry") {
		s.Telemetry = opts.Telemetry
	}
	return s, s.Validate()
}

func runVerify(opts *VerifyOptions, modelDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	settings, err := opts.settings(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSettings, "invalid settings", err)
	}
	cfg, err := settings.SMC()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSettings, "invalid settings", err)
	}

	shutdown, err := telemetry.Init(settings.Telemetry, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSettings, "invalid telemetry exporter", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	bundle, err := loadBundle(formatter, modelDir, opts.Properties)
	if err != nil {
		return err
	}
	logger.Debug("model compiled", "dir", modelDir, "files", bundle.Files,
		"processes", len(bundle.Model.Processes), "guarantees", bundle.Plan.Guarantees())

	// Use command's context if available (for testing), otherwise create one
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	estimateOpts := []smc.Option{smc.WithLogger(logger), smc.WithProgress(progressLogger(logger))}
	var (
		st      *store.Store
		sink    *store.SessionSink
		session string
	)
	if settings.Database != "" {
		st, err = store.Open(settings.Database, store.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("error closing database", "error", err)
			}
		}()

		session, err = st.CreateSession(ctx, &store.Session{
			ModelPath:           modelDir,
			ModelFingerprint:    bundle.ModelFingerprint,
			PropertyFingerprint: bundle.PropertyFingerprint,
			Confidence:          cfg.Confidence,
			Precision:           cfg.Precision,
			RequiredRuns:        smc.RequiredRuns(cfg.Confidence, cfg.Precision),
			MaxLength:           cfg.MaxLength,
			MaxDuration:         cfg.MaxDuration,
			Workers:             cfg.Workers,
			Seed:                cfg.Seed,
			Capture:             cfg.Capture.String(),
		})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to create session", err)
		}
		sink = store.NewSessionSink(st, session, bundle.Model)
		estimateOpts = append(estimateOpts, smc.WithSink(sink))
	}

	report, err := smc.Estimate(ctx, bundle.Model, bundle.Plan, cfg, estimateOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSettings, "estimation failed", err)
	}
	if report.Cancelled {
		logger.Warn("estimation interrupted", "runs", report.Runs, "required", report.RequiredRuns)
	}

	if st != nil {
		// The session is finished even when sampling was interrupted.
		if err := st.FinishSession(context.Background(), session, report); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to finish session", err)
		}
		logger.Info("session finished", "session", session, "traces", sink.Written())
	}

	result := VerifyResult{
		Model:               modelDir,
		ModelFingerprint:    bundle.ModelFingerprint,
		PropertyFingerprint: bundle.PropertyFingerprint,
		Session:             session,
		Report:              report,
	}
	if sink != nil {
		result.TracesStored = sink.Written()
	}
	if err := formatter.Emit(result, func(w io.Writer) { writeVerifyText(w, &result) }); err != nil {
		return err
	}

	if report.Cancelled {
		return NewExitError(ExitFailure, fmt.Sprintf("interrupted after %d of %d runs", report.Runs, report.RequiredRuns))
	}
	return nil
}

// loadBundle compiles a model directory and narrows it to the selected
// guarantees, reporting failures through the formatter.
func loadBundle(formatter *OutputFormatter, dir string, guarantees []string) (*compiler.Bundle, error) {
	bundle, err := compiler.Load(dir)
	if err != nil {
		return nil, reportCompileFailure(formatter, err)
	}
	if len(guarantees) > 0 {
		if bundle, err = bundle.Select(guarantees...); err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeSettings, "invalid --property", err)
		}
	}
	return bundle, nil
}

// reportCompileFailure prints every diagnostic of a failed load. Missing
// directories are command errors; model problems are failures.
func reportCompileFailure(formatter *OutputFormatter, err error) error {
	diags := diagnostics(err)
	if isCommandError(err) {
		return formatter.Fail(ExitCommandError, diags[0].Code, diags[0].Message, nil)
	}
	if err := outputDiagnostics(formatter, diags); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("model has %d error(s)", len(diags)))
}

// progressLogger logs estimation progress at Debug level every tenth of the runs.
func progressLogger(logger *slog.Logger) smc.Progress {
	return func(done, total int) {
		step := max(total/10, 1)
		if done%step == 0 || done == total {
			logger.Debug("estimation progress", "done", done, "total", total)
		}
	}
}
