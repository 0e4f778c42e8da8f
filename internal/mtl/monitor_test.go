package mtl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/testutil"
)

func TestPastOperators_Pointwise(t *testing.T) {
	steps := func(lo, hi int64) Interval { return Closed(lo, hi).InSteps() }

	tests := []struct {
		name  string
		build func(b *Builder) NodeID
		p, q  string
		want  string
	}{
		{"once", func(b *Builder) NodeID { return b.Once(Any, b.Atom(atomP)) }, "FFTFF", "FFFFF", "FFTTT"},
		{"once bounded", func(b *Builder) NodeID { return b.Once(steps(0, 1), b.Atom(atomP)) }, "FFTFF", "FFFFF", "FFTTF"},
		{"once lower bound", func(b *Builder) NodeID { return b.Once(From(2).InSteps(), b.Atom(atomP)) }, "TFFFF", "FFFFF", "FFTTT"},
		{"historically", func(b *Builder) NodeID { return b.Historically(Any, b.Atom(atomP)) }, "TTFTT", "FFFFF", "TTFFF"},
		{"historically bounded", func(b *Builder) NodeID { return b.Historically(steps(0, 1), b.Atom(atomP)) }, "TTFTT", "FFFFF", "TTFFT"},
		{"since", func(b *Builder) NodeID { return b.Since(Any, b.Atom(atomP), b.Atom(atomQ)) }, "TTTTF", "FTFFF", "FTTTF"},
		{"since rewitnessed", func(b *Builder) NodeID { return b.Since(Any, b.Atom(atomP), b.Atom(atomQ)) }, "TFTTT", "TFFTF", "TFFTT"},
		{"since lower bound", func(b *Builder) NodeID {
			return b.Since(From(2).InSteps(), b.Atom(atomP), b.Atom(atomQ))
		}, "TTTTT", "TFFFF", "FFTTT"},
		{"since bounded", func(b *Builder) NodeID { return b.Since(steps(1, 2), b.Atom(atomP), b.Atom(atomQ)) }, "TTTTT", "TFFFF", "FTTFF"},
		{"since open upper", func(b *Builder) NodeID {
			return b.Since(steps(0, 2).Open(false, true), b.Atom(atomP), b.Atom(atomQ))
		}, "TTTTT", "TFFFF", "TTFFF"},
		{"prev", func(b *Builder) NodeID { return b.Prev(Any, b.Atom(atomP)) }, "TFTFF", "FFFFF", "FTFTF"},
		{"prev of once", func(b *Builder) NodeID { return b.Prev(Any, b.Once(Any, b.Atom(atomQ))) }, "FFFFF", "FTFFF", "FFTTT"},
		{"not once", func(b *Builder) NodeID { return b.Not(b.Once(Any, b.Atom(atomQ))) }, "FFFFF", "FFTFF", "TTFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			f := b.Build(tt.build(b))
			assert.Equal(t, parse(tt.want), pointwise(t, f, bools(tt.p, tt.q)))
		})
	}
}

func TestPastOperators_TimeDomain(t *testing.T) {
	pts := []point{{time: 0}, {time: 1, p: true}, {time: 2}, {time: 4}, {time: 5}}

	b := NewBuilder()
	once := b.Build(b.Once(Within(3), b.Atom(atomP)))
	assert.Equal(t, parse("FTTTF"), pointwise(t, once, pts))

	b = NewBuilder()
	prev := b.Build(b.Prev(Within(1), b.Atom(cs.Eq(cs.Ref("x"), cs.Int(0)))))
	assert.Equal(t, parse("FTTFT"), pointwise(t, prev, pts), "gap of 2 between times 2 and 4")
}

func TestFutureOperators(t *testing.T) {
	steps := func(lo, hi int64) Interval { return Closed(lo, hi).InSteps() }

	tests := []struct {
		name     string
		build    func(b *Builder) NodeID
		p, q     string
		want     Status
		decision int // position at which the verdict is reached, -1 if never
	}{
		{"eventually", func(b *Builder) NodeID { return b.Eventually(Any, b.Atom(atomQ)) }, "FFFFF", "FFTFF", Satisfied, 2},
		{"eventually pending", func(b *Builder) NodeID { return b.Eventually(Any, b.Atom(atomQ)) }, "FFFFF", "FFFFF", Pending, -1},
		{"eventually too late", func(b *Builder) NodeID { return b.Eventually(steps(0, 2), b.Atom(atomQ)) }, "FFFFF", "FFFTF", Violated, 3},
		{"eventually too early", func(b *Builder) NodeID { return b.Eventually(steps(2, 3), b.Atom(atomQ)) }, "FFFFF", "TFFFF", Violated, 4},
		{"always", func(b *Builder) NodeID { return b.Always(Any, b.Atom(atomP)) }, "TTFTT", "FFFFF", Violated, 2},
		{"always bounded holds", func(b *Builder) NodeID { return b.Always(steps(0, 1), b.Atom(atomP)) }, "TTFFF", "FFFFF", Satisfied, 2},
		{"always window", func(b *Builder) NodeID { return b.Always(steps(2, 3), b.Atom(atomP)) }, "FFTTF", "FFFFF", Satisfied, 4},
		{"next", func(b *Builder) NodeID { return b.Next(Any, b.Atom(atomP)) }, "FTFFF", "FFFFF", Satisfied, 1},
		{"next fails", func(b *Builder) NodeID { return b.Next(Any, b.Atom(atomP)) }, "TFTTT", "FFFFF", Violated, 1},
		{"until", func(b *Builder) NodeID { return b.Until(Any, b.Atom(atomP), b.Atom(atomQ)) }, "TTFFF", "FFTFF", Satisfied, 2},
		{"until broken", func(b *Builder) NodeID { return b.Until(Any, b.Atom(atomP), b.Atom(atomQ)) }, "TFFFF", "FFTFF", Violated, 1},
		{"until lower bound", func(b *Builder) NodeID {
			return b.Until(From(2).InSteps(), b.Atom(atomP), b.Atom(atomQ))
		}, "TFFFF", "FTFFF", Violated, 1},
		{"until bound exceeded", func(b *Builder) NodeID { return b.Until(steps(0, 1), b.Atom(atomP), b.Atom(atomQ)) }, "TTTTT", "FFFTF", Violated, 2},
		{"eventually of past", func(b *Builder) NodeID {
			return b.Eventually(Any, b.And(b.Atom(atomQ), b.Once(Any, b.Atom(atomP))))
		}, "TFFFF", "FFFTF", Satisfied, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			plan := compileOne(t, traceModel(t), b.Build(tt.build(b)))
			mon := plan.NewMonitor()

			at := observeAll(mon, events(bools(tt.p, tt.q)...))
			assert.Equal(t, tt.decision, at)
			assert.Equal(t, tt.want, mon.Status())
		})
	}
}

func TestFutureOperators_TimeDomain(t *testing.T) {
	pts := []point{{time: 0}, {time: 3}, {time: 3, q: true}, {time: 9}}

	b := NewBuilder()
	plan := compileOne(t, traceModel(t), b.Build(b.Eventually(Within(3), b.Atom(atomQ))))
	mon := plan.NewMonitor()
	assert.Equal(t, 2, observeAll(mon, events(pts...)))
	assert.Equal(t, Satisfied, mon.Status())

	b = NewBuilder()
	plan = compileOne(t, traceModel(t), b.Build(b.Eventually(Within(3).Open(false, true), b.Atom(atomQ))))
	mon = plan.NewMonitor()
	assert.Equal(t, 1, observeAll(mon, events(pts...)), "time 3 is outside [0, 3)")
	assert.Equal(t, Violated, mon.Status())

	b = NewBuilder()
	plan = compileOne(t, traceModel(t), b.Build(b.Next(Closed(1, 2), b.Atom(atomQ))))
	mon = plan.NewMonitor()
	observeAll(mon, events(pts...))
	assert.Equal(t, Violated, mon.Status(), "next event is 3 ticks away")
}

func TestBooleanOverFuture_Kleene(t *testing.T) {
	m := traceModel(t)

	t.Run("and decided by one violated side", func(t *testing.T) {
		b := NewBuilder()
		f := b.Build(b.And(b.Eventually(Any, b.Atom(atomQ)), b.Always(Any, b.Atom(atomP))))
		mon := compileOne(t, m, f).NewMonitor()
		assert.Equal(t, 1, observeAll(mon, events(bools("TFTTT", "FFFFF")...)))
		assert.Equal(t, Violated, mon.Status())
	})

	t.Run("or decided by state at position 0", func(t *testing.T) {
		b := NewBuilder()
		f := b.Build(b.Or(b.Eventually(Any, b.Atom(atomQ)), b.Atom(cs.Eq(cs.Ref("x"), cs.Int(0)))))
		mon := compileOne(t, m, f).NewMonitor()
		assert.Equal(t, 0, observeAll(mon, events(bools("FFF", "FFF")...)))
		assert.Equal(t, Satisfied, mon.Status())
	})

	t.Run("not flips", func(t *testing.T) {
		b := NewBuilder()
		f := b.Build(b.Not(b.Eventually(Any, b.Atom(atomQ))))
		mon := compileOne(t, m, f).NewMonitor()
		observeAll(mon, events(bools("FFF", "FTF")...))
		assert.Equal(t, Violated, mon.Status())
	})

	t.Run("implies with false premise", func(t *testing.T) {
		b := NewBuilder()
		f := b.Build(b.Implies(b.Atom(atomP), b.Always(Any, b.Atom(atomQ))))
		mon := compileOne(t, m, f).NewMonitor()
		assert.Equal(t, 0, observeAll(mon, events(bools("FFF", "FFF")...)))
		assert.Equal(t, Satisfied, mon.Status())
	})
}

func TestVerdict_CompleteAndCutoff(t *testing.T) {
	m := traceModel(t)
	evs := events(bools("TTT", "FFF")...)

	tests := []struct {
		name     string
		build    func(b *Builder) NodeID
		complete Outcome
		cutoff   Outcome
	}{
		{"eventually", func(b *Builder) NodeID { return b.Eventually(Any, b.Atom(atomQ)) }, OutcomeViolated, OutcomeUndetermined},
		{"always", func(b *Builder) NodeID { return b.Always(Any, b.Atom(atomP)) }, OutcomeSatisfied, OutcomeUndetermined},
		{"until", func(b *Builder) NodeID { return b.Until(Any, b.Atom(atomP), b.Atom(atomQ)) }, OutcomeViolated, OutcomeUndetermined},
		{"always or eventually", func(b *Builder) NodeID {
			return b.Or(b.Always(Any, b.Atom(atomP)), b.Eventually(Any, b.Atom(atomQ)))
		}, OutcomeSatisfied, OutcomeUndetermined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			mon := compileOne(t, m, b.Build(tt.build(b))).NewMonitor()
			observeAll(mon, evs)
			assert.Equal(t, tt.complete, mon.Verdict(true).Outcome)
			assert.Equal(t, tt.cutoff, mon.Verdict(false).Outcome)
			assert.Equal(t, Pending, mon.Status(), "Verdict does not change the monitor")
		})
	}
}

func TestVerdict_NoEvents(t *testing.T) {
	b := NewBuilder()
	mon := compileOne(t, traceModel(t), b.Build(b.True())).NewMonitor()
	assert.Equal(t, OutcomeUndetermined, mon.Verdict(true).Outcome)
	assert.Equal(t, Pending, mon.Status())
}

func TestVerdict_NextOnSingleStateTrace(t *testing.T) {
	b := NewBuilder()
	mon := compileOne(t, traceModel(t), b.Build(b.Next(Any, b.True()))).NewMonitor()
	observeAll(mon, events(point{}))
	assert.Equal(t, OutcomeViolated, mon.Verdict(true).Outcome)
}

func TestVerdict_BoundedUntilCutOffIsUndetermined(t *testing.T) {
	m := testutil.Interleaving(t)
	b := NewBuilder()
	f := b.Build(b.Until(Closed(0, 100).InSteps(), b.True(), b.Atom(cs.Ge(cs.Ref("A.n"), cs.Int(1000)))))
	plan := compileOne(t, m, f)

	mon := plan.NewMonitor()
	run := engine.Execute(context.Background(), m, engine.NewRand(1, 0), engine.Limits{MaxLength: 10}, mon, false)
	require.Equal(t, engine.TermLength, run.Termination)
	assert.Equal(t, OutcomeUndetermined, mon.Verdict(run.Termination.Complete()).Outcome)
}

func TestVerdict_AssumesAndGuarantees(t *testing.T) {
	m := traceModel(t)

	build := func() Property {
		b := NewBuilder()
		var prop Property
		prop.Guarantee("stays_p", b.Build(b.Always(Any, b.Atom(atomP))))
		prop.Guarantee("sees_q", b.Build(b.Eventually(Any, b.Atom(atomQ))))
		prop.Assume("small_x", b.Build(b.Always(Any, b.Atom(cs.Lt(cs.Ref("x"), cs.Int(10))))))
		return prop
	}
	plan, err := Compile(m, build())
	require.NoError(t, err)
	assert.Equal(t, []string{"stays_p", "sees_q"}, plan.Guarantees())
	assert.Equal(t, []string{"small_x"}, plan.Assumes())

	t.Run("one guarantee violated", func(t *testing.T) {
		mon := plan.NewMonitor()
		observeAll(mon, events(bools("TFT", "FTF")...))
		v := mon.Verdict(true)
		assert.Equal(t, OutcomeViolated, v.Outcome)
		assert.Equal(t, []string{"stays_p"}, v.Violated)
		assert.False(t, v.Discarded)
	})

	t.Run("assume violated discards", func(t *testing.T) {
		mon := plan.NewMonitor()
		pts := []point{{p: true}, {time: 1, x: 20, p: false}}
		assert.Equal(t, 1, observeAll(mon, events(pts...)), "done as soon as an assume fails")
		v := mon.Verdict(true)
		assert.Equal(t, OutcomeUndetermined, v.Outcome)
		assert.True(t, v.Discarded)
		assert.Empty(t, v.Violated)
	})

	t.Run("assume pending on cutoff", func(t *testing.T) {
		mon := plan.NewMonitor()
		observeAll(mon, events(bools("TTF", "FTF")...))
		v := mon.Verdict(false)
		assert.Equal(t, OutcomeUndetermined, v.Outcome)
		assert.False(t, v.Discarded)
	})

	t.Run("all hold on complete trace", func(t *testing.T) {
		mon := plan.NewMonitor()
		observeAll(mon, events(bools("TTT", "FTF")...))
		assert.Equal(t, OutcomeSatisfied, mon.Verdict(true).Outcome)
	})
}

func TestMonitor_SyncCounterReachesFive(t *testing.T) {
	m := testutil.SyncCounter(t)
	b := NewBuilder()
	f := b.Build(b.Eventually(Within(10).InSteps(), b.Atom(cs.Eq(cs.Ref("x"), cs.Int(5)))))
	plan := compileOne(t, m, f)

	for seed := uint64(0); seed < 20; seed++ {
		mon := plan.NewMonitor()
		run := engine.Execute(context.Background(), m, engine.NewRand(seed, 0), engine.Limits{MaxLength: 100}, mon, false)
		assert.Equal(t, engine.TermDecided, run.Termination)
		assert.Equal(t, 5, run.Steps)
		assert.Equal(t, OutcomeSatisfied, mon.Verdict(false).Outcome)
	}
}

func TestMonitor_AtAndFired(t *testing.T) {
	m := testutil.SyncCounter(t)
	b := NewBuilder()
	var prop Property
	prop.Guarantee("fires", b.Build(b.Eventually(Any, b.Fired("a"))))
	prop.Guarantee("fires_in_q", b.Build(b.Eventually(Any, b.Fired("Q.a"))))
	prop.Guarantee("stays", b.Build(b.Always(Any, b.At("P.loop"))))
	plan, err := Compile(m, prop)
	require.NoError(t, err)

	mon := plan.NewMonitor()
	run := engine.Execute(context.Background(), m, engine.NewRand(1, 0), engine.Limits{MaxLength: 100}, mon, false)
	require.Equal(t, engine.TermDeadlock, run.Termination)
	assert.Equal(t, OutcomeSatisfied, mon.Verdict(true).Outcome)
}

func TestEvaluate_AgreesWithLiveMonitor(t *testing.T) {
	m := testutil.CoinDeadlock(t, 0.5)
	b := NewBuilder()
	var prop Property
	prop.Guarantee("done", b.Build(b.Eventually(Any, b.At("P.done"))))
	prop.Guarantee("ticks", b.Build(b.Always(Within(3).InSteps(), b.Not(b.At("P.dead")))))
	plan, err := Compile(m, prop)
	require.NoError(t, err)

	outcomes := make(map[Outcome]int)
	for seed := uint64(0); seed < 40; seed++ {
		mon := plan.NewMonitor()
		run := engine.Execute(context.Background(), m, engine.NewRand(seed, seed), engine.Limits{MaxLength: 20}, mon, true)
		complete := run.Termination.Complete()

		live := mon.Verdict(complete)
		assert.Equal(t, live, Evaluate(plan, run.Events, complete), "seed %d", seed)
		assert.Equal(t, live, Evaluate(plan, run.Events, complete), "replay is idempotent")
		outcomes[live.Outcome]++
	}
	assert.NotZero(t, outcomes[OutcomeSatisfied])
	assert.NotZero(t, outcomes[OutcomeViolated])
}

func TestMonitor_IgnoresEventsAfterDone(t *testing.T) {
	b := NewBuilder()
	mon := compileOne(t, traceModel(t), b.Build(b.Eventually(Any, b.Atom(atomQ)))).NewMonitor()
	evs := events(bools("FFF", "TFF")...)
	assert.True(t, mon.Observe(evs[0]))
	assert.True(t, mon.Observe(evs[1]))
	assert.Equal(t, 1, mon.position())
}
