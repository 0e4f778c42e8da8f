package smc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/testutil"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

// testConfig asks for 150 runs.
func testConfig() Config {
	return Config{Confidence: 0.9, Precision: 0.1, MaxLength: 100, Workers: 4, Seed: 7}
}

func eventually(iv mtl.Interval, build func(b *mtl.Builder) mtl.NodeID) *mtl.Formula {
	b := mtl.NewBuilder()
	return b.Build(b.Eventually(iv, build(b)))
}

func reachFive() *mtl.Formula {
	return eventually(mtl.Within(10).InSteps(), func(b *mtl.Builder) mtl.NodeID {
		return b.Atom(cs.Eq(cs.Ref("x"), cs.Int(5)))
	})
}

func reachDone() *mtl.Formula {
	return eventually(mtl.Any, func(b *mtl.Builder) mtl.NodeID { return b.At("P.done") })
}

func plan(t *testing.T, m *cs.Model, prop mtl.Property) *mtl.Plan {
	t.Helper()
	p, err := mtl.Compile(m, prop)
	require.NoError(t, err)
	return p
}

func guarantee(name string, f *mtl.Formula) mtl.Property {
	var prop mtl.Property
	prop.Guarantee(name, f)
	return prop
}

func TestEstimate_SyncCounterReachesFive(t *testing.T) {
	m := testutil.SyncCounter(t)
	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("reach", reachFive())), testConfig(), quiet)
	require.NoError(t, err)

	assert.Equal(t, 150, r.RequiredRuns)
	assert.Equal(t, 150, r.Runs)
	assert.Equal(t, 150, r.Satisfied)
	assert.Equal(t, 1.0, r.SuccessRate)
	assert.Zero(t, r.FailureRate)
	assert.Zero(t, r.Deadlocks, "monitor decides before the counter deadlocks")
	assert.False(t, r.Cancelled)
	assert.Equal(t, uint64(7), r.Seed)
	assert.InDelta(t, HalfWidth(150, 0.9), r.HalfWidth, 1e-12)
}

func TestEstimate_DeadlockProbability(t *testing.T) {
	const q = 0.3
	m := testutil.CoinDeadlock(t, q)
	cfg := testConfig()
	cfg.Confidence, cfg.Precision = 0.95, 0.05

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("done", reachDone())), cfg, quiet)
	require.NoError(t, err)

	assert.Equal(t, 738, r.Runs)
	assert.InDelta(t, q, r.FailureRate+r.UndeterminedRate, 0.08)
	assert.Equal(t, r.Violated, r.Deadlocks)
	assert.Equal(t, r.Violated, r.Guarantees[0].Violations)
	assert.Equal(t, r.Runs, r.Satisfied+r.Violated+r.Undetermined)
}

func TestEstimate_DeterministicAcrossWorkers(t *testing.T) {
	m := testutil.CoinDeadlock(t, 0.5)
	p := plan(t, m, guarantee("done", reachDone()))

	var reports []*Report
	for _, workers := range []int{1, 3, 8} {
		cfg := testConfig()
		cfg.Workers = workers
		r, err := Estimate(context.Background(), m, p, cfg, quiet)
		require.NoError(t, err)
		reports = append(reports, r)
	}
	for _, r := range reports[1:] {
		assert.Equal(t, reports[0].Satisfied, r.Satisfied)
		assert.Equal(t, reports[0].Violated, r.Violated)
		assert.Equal(t, reports[0].Deadlocks, r.Deadlocks)
	}
}

func TestEstimate_SeedChangesSample(t *testing.T) {
	m := testutil.CoinDeadlock(t, 0.5)
	p := plan(t, m, guarantee("done", reachDone()))

	counts := make(map[int]bool)
	for seed := uint64(1); seed <= 5; seed++ {
		cfg := testConfig()
		cfg.Seed = seed
		r, err := Estimate(context.Background(), m, p, cfg, quiet)
		require.NoError(t, err)
		counts[r.Satisfied] = true
	}
	assert.Greater(t, len(counts), 1)
}

func TestEstimate_LengthCutoffIsUndetermined(t *testing.T) {
	m := testutil.Interleaving(t)
	f := eventually(mtl.Within(1000).InSteps(), func(b *mtl.Builder) mtl.NodeID {
		return b.Atom(cs.Eq(cs.Ref("A.n"), cs.Int(100)))
	})
	cfg := testConfig()
	cfg.MaxLength = 10

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("far", f)), cfg, quiet)
	require.NoError(t, err)
	assert.Equal(t, r.Runs, r.Undetermined)
	assert.Equal(t, r.Runs, r.LengthCutoffs)
	assert.Equal(t, 1.0, r.UndeterminedRate)
}

func TestEstimate_DurationCutoff(t *testing.T) {
	m := testutil.Timer(t)
	f := eventually(mtl.Any, func(b *mtl.Builder) mtl.NodeID {
		return b.Atom(cs.Ref("fired"))
	})
	cfg := testConfig()
	cfg.MaxDuration = 2

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("fires", f)), cfg, quiet)
	require.NoError(t, err)
	assert.Equal(t, r.Runs, r.DurationCutoffs)
	assert.Equal(t, r.Runs, r.Undetermined)
}

func TestEstimate_ViolatedAssumeDiscards(t *testing.T) {
	m := testutil.SyncCounter(t)
	b := mtl.NewBuilder()
	small := b.Build(b.Always(mtl.Any, b.Atom(cs.Lt(cs.Ref("x"), cs.Int(3)))))

	prop := guarantee("reach", reachFive())
	prop.Assume("small", small)

	r, err := Estimate(context.Background(), m, plan(t, m, prop), testConfig(), quiet)
	require.NoError(t, err)
	assert.Equal(t, r.Runs, r.Discarded)
	assert.Equal(t, r.Runs, r.Undetermined)
	assert.Zero(t, r.Guarantees[0].Violations)
}

func TestEstimate_PerGuaranteeViolations(t *testing.T) {
	m := testutil.SyncCounter(t)
	b := mtl.NewBuilder()
	never := b.Build(b.Always(mtl.Any, b.Atom(cs.Lt(cs.Ref("x"), cs.Int(2)))))

	prop := guarantee("reach", reachFive())
	prop.Guarantee("small", never)

	r, err := Estimate(context.Background(), m, plan(t, m, prop), testConfig(), quiet)
	require.NoError(t, err)
	assert.Equal(t, r.Runs, r.Violated)
	require.Len(t, r.Guarantees, 2)
	assert.Equal(t, GuaranteeCount{Name: "reach", Violations: 0}, r.Guarantees[0])
	assert.Equal(t, GuaranteeCount{Name: "small", Violations: r.Runs}, r.Guarantees[1])
}

type recordingSink struct {
	mu   sync.Mutex
	recs []*RunRecord
	err  error
}

func (s *recordingSink) WriteRun(_ context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

func TestEstimate_CapturesFailures(t *testing.T) {
	m := testutil.CoinDeadlock(t, 0.5)
	cfg := testConfig()
	cfg.Capture = CaptureFailures
	sink := &recordingSink{}

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("done", reachDone())), cfg, quiet, WithSink(sink))
	require.NoError(t, err)

	require.Len(t, sink.recs, r.Violated+r.Undetermined)
	for _, rec := range sink.recs {
		assert.Equal(t, mtl.OutcomeViolated, rec.Outcome)
		assert.Equal(t, []string{"done"}, rec.Violated)
		assert.Equal(t, engine.TermDeadlock, rec.Termination)
		require.Len(t, rec.Events, 2, "init then the flip into P.dead")
		assert.Equal(t, engine.EventInit, rec.Events[0].Kind)
		assert.True(t, rec.Events[1].At(m, mustLoc(t, m, "P.dead")))
	}
	assert.Zero(t, r.SinkErrors)
}

func TestEstimate_SinkFailuresAreCounted(t *testing.T) {
	m := testutil.SyncCounter(t)
	cfg := testConfig()
	cfg.Capture = CaptureAll
	sink := &recordingSink{err: errors.New("disk full")}

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("reach", reachFive())), cfg, quiet, WithSink(sink))
	require.NoError(t, err)
	assert.Equal(t, r.Runs, r.SinkErrors)
	assert.Equal(t, r.Runs, r.Satisfied)
}

func TestEstimate_CaptureWithoutSinkRecordsNothing(t *testing.T) {
	m := testutil.SyncCounter(t)
	cfg := testConfig()
	cfg.Capture = CaptureAll

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("reach", reachFive())), cfg, quiet)
	require.NoError(t, err)
	assert.Zero(t, r.SinkErrors)
}

func TestEstimate_Progress(t *testing.T) {
	m := testutil.SyncCounter(t)
	var calls, last, total int
	progress := WithProgress(func(done, n int) {
		calls++
		last, total = done, n
	})

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("reach", reachFive())), testConfig(), quiet, progress)
	require.NoError(t, err)
	assert.Equal(t, r.Runs, calls)
	assert.Equal(t, 150, last)
	assert.Equal(t, 150, total)
}

func TestEstimate_Cancelled(t *testing.T) {
	m := testutil.SyncCounter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := Estimate(ctx, m, plan(t, m, guarantee("reach", reachFive())), testConfig(), quiet)
	require.NoError(t, err)
	assert.True(t, r.Cancelled)
	assert.Zero(t, r.Runs)
	assert.Equal(t, 150, r.RequiredRuns)
	assert.Equal(t, 1.0, r.HalfWidth)
}

func TestEstimate_CancelMidway(t *testing.T) {
	m := testutil.SyncCounter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := WithProgress(func(done, _ int) {
		if done == 20 {
			cancel()
		}
	})
	r, err := Estimate(ctx, m, plan(t, m, guarantee("reach", reachFive())), testConfig(), quiet, stop)
	require.NoError(t, err)
	assert.True(t, r.Cancelled)
	assert.Equal(t, 20, r.Runs)
	assert.Equal(t, 20, r.Satisfied)
}

func TestEstimate_CancelAfterLastRunIsComplete(t *testing.T) {
	m := testutil.SyncCounter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := WithProgress(func(done, total int) {
		if done == total {
			cancel()
		}
	})
	r, err := Estimate(ctx, m, plan(t, m, guarantee("reach", reachFive())), testConfig(), quiet, stop)
	require.NoError(t, err)
	assert.False(t, r.Cancelled)
	assert.Equal(t, 150, r.Runs)
}

// cancellingSink cancels the estimation on its first write and records the
// context error each write observed.
type cancellingSink struct {
	cancel context.CancelFunc
	errs   []error
}

func (s *cancellingSink) WriteRun(ctx context.Context, _ *RunRecord) error {
	s.cancel()
	s.errs = append(s.errs, ctx.Err())
	return ctx.Err()
}

func TestEstimate_CommittedRunReachesSinkAfterCancel(t *testing.T) {
	m := testutil.SyncCounter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig()
	cfg.Capture = CaptureAll
	sink := &cancellingSink{cancel: cancel}

	r, err := Estimate(ctx, m, plan(t, m, guarantee("reach", reachFive())), cfg, quiet, WithSink(sink))
	require.NoError(t, err)
	assert.True(t, r.Cancelled)
	assert.Equal(t, 1, r.Runs)
	require.Len(t, sink.errs, 1)
	assert.NoError(t, sink.errs[0])
	assert.Zero(t, r.SinkErrors)
}

func TestEstimate_PrecisionTooFine(t *testing.T) {
	m := testutil.CoinDeadlock(t, 0.3)
	cfg := testConfig()
	cfg.Precision = 1e-10

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("done", reachDone())), cfg, quiet)
	require.Error(t, err)
	assert.Nil(t, r)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "precision", ce.Field)
}

func TestEstimate_InvalidConfig(t *testing.T) {
	m := testutil.SyncCounter(t)
	cfg := testConfig()
	cfg.Precision = 0

	r, err := Estimate(context.Background(), m, plan(t, m, guarantee("reach", reachFive())), cfg, quiet)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.True(t, IsConfigError(err))
}

func TestEstimate_PlanForOtherModel(t *testing.T) {
	m := testutil.SyncCounter(t)
	other := testutil.SyncCounter(t)

	_, err := Estimate(context.Background(), m, plan(t, other, guarantee("reach", reachFive())), testConfig(), quiet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different model")
}

func TestReport_Interval(t *testing.T) {
	r := &Report{SuccessRate: 0.98, HalfWidth: 0.05}
	lo, hi := r.Interval()
	assert.InDelta(t, 0.93, lo, 1e-9)
	assert.Equal(t, 1.0, hi)
}

func mustLoc(t *testing.T, m *cs.Model, name string) cs.LocationID {
	t.Helper()
	id, ok := m.LocationByName(name)
	require.True(t, ok, name)
	return id
}
