package smc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/dispatch"
	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/telemetry"
)

// Progress is called after each committed run with the number of runs done
// and the number required. Calls are serialised.
type Progress func(done, total int)

type settings struct {
	sink     TraceSink
	logger   *slog.Logger
	progress Progress
}

// Option configures Estimate.
type Option func(*settings)

// WithSink hands captured runs, as selected by Config.Capture, to sink.
func WithSink(sink TraceSink) Option {
	return func(s *settings) {
		s.sink = sink
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn Progress) Option {
	return func(s *settings) {
		s.progress = fn
	}
}

// Estimate runs RequiredRuns(cfg.Confidence, cfg.Precision) independent runs
// of m, checks each against plan and reports the outcome frequencies.
//
// Invalid parameters are reported before any run. Cancelling ctx stops the
// estimation early: the report then covers the runs completed so far and
// has Cancelled set. Sink failures are logged and counted, never returned.
func Estimate(ctx context.Context, m *cs.Model, plan *mtl.Plan, cfg Config, opts ...Option) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil || plan == nil {
		return nil, errors.New("estimate: model and plan are required")
	}
	if plan.Model() != m {
		return nil, fmt.Errorf("estimate: plan was compiled for a different model")
	}

	st := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&st)
	}
	if st.sink == nil {
		cfg.Capture = CaptureNone
	}

	n := RequiredRuns(cfg.Confidence, cfg.Precision)
	pool := dispatch.New(cfg.Workers, dispatch.WithLogger(st.logger))
	tally := NewTally(plan.Guarantees())
	limits := engine.Limits{MaxLength: cfg.MaxLength, MaxDuration: cfg.MaxDuration}

	ctx, span := telemetry.StartSpan(ctx, "smc.estimate",
		attribute.Int("required_runs", n),
		attribute.Float64("confidence", cfg.Confidence),
		attribute.Float64("precision", cfg.Precision),
		attribute.Int64("seed", int64(cfg.Seed)),
	)

	st.logger.Info("estimation starting",
		"runs", n,
		"confidence", cfg.Confidence,
		"precision", cfg.Precision,
		"workers", pool.Workers(),
		"seed", cfg.Seed,
		"capture", cfg.Capture.String(),
	)
	start := time.Now()

	_, err := pool.Run(ctx, n, func(ctx context.Context, i int) dispatch.Commit {
		rng := engine.NewRand(cfg.Seed, uint64(i))
		mon := plan.NewMonitor()
		run := engine.Execute(ctx, m, rng, limits, mon, cfg.Capture != CaptureNone)
		if run.Termination == engine.TermCancelled {
			return nil
		}
		if engine.IsCutoff(run.Cutoff) {
			st.logger.Debug("run cut off", "run", i, "reason", run.Cutoff)
		}
		v := mon.Verdict(run.Termination.Complete())

		return func() {
			tally.Add(v, run.Termination)
			if cfg.Capture.Keeps(v.Outcome) {
				// The run is already counted; a cancellation from here on
				// must not lose its trace.
				rec := &RunRecord{
					Index:       i,
					Outcome:     v.Outcome,
					Violated:    v.Violated,
					Discarded:   v.Discarded,
					Termination: run.Termination,
					Steps:       run.Steps,
					Time:        run.Time,
					Events:      run.Events,
				}
				if err := st.sink.WriteRun(context.WithoutCancel(ctx), rec); err != nil {
					tally.sinkFailed()
					st.logger.Warn("trace sink failed", "run", i, "error", err)
				}
			}
			if st.progress != nil {
				st.progress(tally.Runs(), n)
			}
		}
	})

	r := &Report{
		Confidence:   cfg.Confidence,
		Precision:    cfg.Precision,
		RequiredRuns: n,
		Seed:         cfg.Seed,
		Workers:      pool.Workers(),
		Elapsed:      time.Since(start),
		Cancelled:    err != nil,
	}
	tally.fill(r)

	st.logger.Info("estimation finished",
		"runs", r.Runs,
		"satisfied", r.Satisfied,
		"violated", r.Violated,
		"undetermined", r.Undetermined,
		"elapsed", r.Elapsed,
		"cancelled", r.Cancelled,
	)
	span.SetAttributes(
		attribute.Int("runs", r.Runs),
		attribute.Float64("success_rate", r.SuccessRate),
		attribute.Bool("cancelled", r.Cancelled),
	)
	telemetry.EndSpan(span, nil)
	return r, nil
}
