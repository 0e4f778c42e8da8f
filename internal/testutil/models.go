package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

func ptr[T any](v T) *T { return &v }

// SyncCounter returns two processes P and Q that synchronise on action "a"
// (sync "step") while x < 5. P increments x. Every run reaches x == 5 after
// exactly five steps and then deadlocks.
func SyncCounter(t testing.TB) *cs.Model {
	t.Helper()
	b := cs.NewBuilder()
	b.Global("x", ir.Int(0))
	b.Process("P").Location("loop").Transition(cs.TransitionSpec{
		From: "loop", Action: "a", To: "loop",
		Guard:  ptr(cs.Lt(cs.Ref("x"), cs.Int(5))),
		Assign: []cs.AssignSpec{cs.Assign("x", cs.Add(cs.Ref("x"), cs.Int(1)))},
	})
	b.Process("Q").Location("loop").Transition(cs.TransitionSpec{
		From: "loop", Action: "a", To: "loop",
		Guard: ptr(cs.Lt(cs.Ref("x"), cs.Int(5))),
	})
	b.Sync("step", cs.Participant{Process: "P", Action: "a"}, cs.Participant{Process: "Q", Action: "a"})
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// CoinDeadlock returns a process that flips a coin once: with probability q
// it moves to P.dead, which has no outgoing transition, otherwise to P.done,
// where it ticks forever.
func CoinDeadlock(t testing.TB, q float64) *cs.Model {
	t.Helper()
	b := cs.NewBuilder()
	p := b.Process("P").Location("start").Location("dead").Location("done")
	p.Transition(cs.TransitionSpec{
		From: "start", Action: "flip",
		Branches: []cs.BranchSpec{{Weight: q, To: "dead"}, {Weight: 1 - q, To: "done"}},
	})
	p.Transition(cs.TransitionSpec{From: "done", Action: "tick", To: "done"})
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// Interleaving returns two independent processes, each incrementing its own
// counter with action "inc" forever.
func Interleaving(t testing.TB) *cs.Model {
	t.Helper()
	b := cs.NewBuilder()
	for _, name := range []string{"A", "B"} {
		b.Process(name).Local("n", ir.Int(0)).Location("run").Transition(cs.TransitionSpec{
			From: "run", Action: "inc", To: "run",
			Assign: []cs.AssignSpec{cs.Assign("n", cs.Add(cs.Ref("n"), cs.Int(1)))},
		})
	}
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// Timer returns a process with clock c that waits in P.wait (invariant
// c <= 5) and may leave for P.done once c >= 3. It sets fired when leaving.
func Timer(t testing.TB) *cs.Model {
	t.Helper()
	b := cs.NewBuilder()
	b.Global("fired", ir.Bool(false))
	p := b.Process("P").Clock("c")
	p.Location("wait", cs.AtMost("c", 5)).Location("done")
	p.Transition(cs.TransitionSpec{
		From: "wait", Action: "go", To: "done",
		When:   []cs.ClockSpec{cs.AtLeast("c", 3)},
		Assign: []cs.AssignSpec{cs.Assign("fired", cs.Bool(true))},
	})
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// ProducerConsumer returns a producer sending 1, 2, 3 on channel "q" (capacity
// cap) and a consumer summing what it receives into global sum. A capacity of
// 0 makes the channel a handshake.
func ProducerConsumer(t testing.TB, capacity int) *cs.Model {
	t.Helper()
	b := cs.NewBuilder()
	b.Global("sum", ir.Int(0))
	b.Channel("q", ir.KindInt, capacity)

	prod := b.Process("Prod").Local("i", ir.Int(1)).Location("send").Location("next").Location("stop")
	prod.Transition(cs.TransitionSpec{
		From: "send", Action: "put", To: "next",
		Guard: ptr(cs.Le(cs.Ref("i"), cs.Int(3))),
		Comm:  cs.Send("q", cs.Ref("i")),
	})
	prod.Transition(cs.TransitionSpec{
		From: "next", To: "send",
		Assign: []cs.AssignSpec{cs.Assign("i", cs.Add(cs.Ref("i"), cs.Int(1)))},
	})
	prod.Transition(cs.TransitionSpec{From: "send", To: "stop", Guard: ptr(cs.Gt(cs.Ref("i"), cs.Int(3)))})

	cons := b.Process("Cons").Local("v", ir.Int(0)).Location("recv").Location("add")
	cons.Transition(cs.TransitionSpec{From: "recv", Action: "get", To: "add", Comm: cs.Receive("q", "v")})
	cons.Transition(cs.TransitionSpec{
		From: "add", To: "recv",
		Assign: []cs.AssignSpec{cs.Assign("sum", cs.Add(cs.Ref("sum"), cs.Ref("v")))},
	})

	m, err := b.Build()
	require.NoError(t, err)
	return m
}
