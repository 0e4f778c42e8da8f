package mtl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/ir"
)

// traceModel declares globals x:int, p:bool, q:bool and one process P
// switching between idle and busy with actions go and back.
func traceModel(t *testing.T) *cs.Model {
	t.Helper()
	b := cs.NewBuilder()
	b.Global("x", ir.Int(0)).Global("p", ir.Bool(false)).Global("q", ir.Bool(false))
	proc := b.Process("P").Location("idle").Location("busy")
	proc.Transition(cs.TransitionSpec{From: "idle", Action: "go", To: "busy"})
	proc.Transition(cs.TransitionSpec{From: "busy", Action: "back", To: "idle"})
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// point is one hand-written trace position over traceModel.
type point struct {
	time int64
	x    int64
	p, q bool
}

func events(points ...point) []*engine.Event {
	out := make([]*engine.Event, len(points))
	for i, pt := range points {
		out[i] = &engine.Event{
			Seq:  i,
			Kind: engine.EventAction,
			Time: pt.time,
			Sync: cs.NoSync,
			Locs: []cs.LocationID{0},
			Vals: []ir.Value{ir.Int(pt.x), ir.Bool(pt.p), ir.Bool(pt.q)},
		}
	}
	if len(out) > 0 {
		out[0].Kind = engine.EventInit
	}
	return out
}

// bools builds points at times 0, 1, 2, ... with the given p and q values.
func bools(p, q string) []point {
	pts := make([]point, len(p))
	for i := range p {
		pts[i] = point{time: int64(i), p: p[i] == 'T', q: q[i] == 'T'}
	}
	return pts
}

func compileOne(t *testing.T, m *cs.Model, f *Formula) *Plan {
	t.Helper()
	var prop Property
	prop.Guarantee("g", f)
	plan, err := Compile(m, prop)
	require.NoError(t, err)
	return plan
}

// pointwise returns the value of a past formula at every position.
func pointwise(t *testing.T, f *Formula, pts []point) []bool {
	t.Helper()
	plan := compileOne(t, traceModel(t), f)
	root := plan.guarantees[0].node
	mon := plan.NewMonitor()

	var out []bool
	for _, ev := range events(pts...) {
		mon.advance(ev)
		out = append(out, mon.prev[root])
	}
	return out
}

func parse(s string) []bool {
	out := make([]bool, len(s))
	for i := range s {
		out[i] = s[i] == 'T'
	}
	return out
}

// observeAll feeds events until the monitor is done and returns the position
// at which it finished (-1 if never).
func observeAll(mon *Monitor, evs []*engine.Event) int {
	for i, ev := range evs {
		if mon.Observe(ev) {
			return i
		}
	}
	return -1
}

var (
	atomP = cs.Ref("p")
	atomQ = cs.Ref("q")
)
