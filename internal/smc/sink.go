package smc

import (
	"context"

	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/mtl"
)

// RunRecord is one captured run.
type RunRecord struct {
	Index       int
	Outcome     mtl.Outcome
	Violated    []string
	Discarded   bool
	Termination engine.Termination
	Steps       int
	Time        int64
	Events      []*engine.Event
}

// TraceSink receives captured runs. Calls are serialised by the caller, but
// a sink shared between estimations must synchronise itself.
type TraceSink interface {
	WriteRun(ctx context.Context, rec *RunRecord) error
}

// TraceSinkFunc adapts a function to a TraceSink.
type TraceSinkFunc func(ctx context.Context, rec *RunRecord) error

// WriteRun calls f.
func (f TraceSinkFunc) WriteRun(ctx context.Context, rec *RunRecord) error { return f(ctx, rec) }
