// Package dispatch runs independent, indexed jobs on a fixed worker pool.
//
// Workers pull indices from a shared cursor, so the assignment of indices to
// goroutines is not deterministic. Anything that must be reproducible (the
// per-run RNG stream, for example) has to be derived from the index alone.
package dispatch

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/scan/internal/telemetry"
)

// Commit applies the result of one job. A nil Commit records nothing.
type Commit func()

// Job executes index i and returns the Commit that records its result.
// Jobs run concurrently; they must not share mutable state except through
// their Commit.
type Job func(ctx context.Context, i int) Commit

// Pool is a fixed-size worker pool.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for pool lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pool. workers <= 0 means runtime.GOMAXPROCS(0).
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{workers: workers, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Run executes job for indices 0..n-1 and blocks until every worker exits.
//
// Commits are applied one at a time and only while ctx is live: a job that
// finishes after cancellation is dropped. Run returns the number of applied
// commits and, when that is short of n, ctx.Err().
func (p *Pool) Run(ctx context.Context, n int, job Job) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "dispatch.run",
		attribute.Int("runs", n),
		attribute.Int("workers", p.workers),
	)

	workers := min(p.workers, n)
	cur := newCursor(n)

	var (
		mu        sync.Mutex
		committed int
		wg        sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				i, ok := cur.take()
				if !ok {
					return
				}
				commit := job(ctx, i)
				if commit == nil {
					continue
				}
				mu.Lock()
				if ctx.Err() == nil {
					commit()
					committed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	var err error
	if committed < n {
		err = ctx.Err()
	}
	p.logger.Debug("dispatch finished",
		"runs", n,
		"issued", cur.issued(),
		"committed", committed,
		"workers", workers,
		"cancelled", err != nil,
	)
	span.SetAttributes(attribute.Int("committed", committed))
	telemetry.EndSpan(span, err)
	return committed, err
}
