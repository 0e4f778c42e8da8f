package mtl

import (
	"fmt"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/engine"
)

// Status is a three-valued verdict.
type Status uint8

const (
	Pending Status = iota
	Satisfied
	Violated
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Satisfied:
		return "satisfied"
	case Violated:
		return "violated"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

func statusOf(b bool) Status {
	if b {
		return Satisfied
	}
	return Violated
}

func kleeneNot(s Status) Status {
	switch s {
	case Satisfied:
		return Violated
	case Violated:
		return Satisfied
	}
	return Pending
}

func kleeneAnd(l, r Status) Status {
	switch {
	case l == Violated || r == Violated:
		return Violated
	case l == Satisfied && r == Satisfied:
		return Satisfied
	}
	return Pending
}

func kleeneOr(l, r Status) Status {
	return kleeneNot(kleeneAnd(kleeneNot(l), kleeneNot(r)))
}

// Outcome classifies a finished run.
type Outcome uint8

const (
	OutcomeSatisfied Outcome = iota
	OutcomeViolated
	OutcomeUndetermined
)

// String returns the outcome name stored in traces.
func (o Outcome) String() string {
	switch o {
	case OutcomeSatisfied:
		return "satisfied"
	case OutcomeViolated:
		return "violated"
	case OutcomeUndetermined:
		return "undetermined"
	default:
		return fmt.Sprintf("outcome(%d)", o)
	}
}

// ParseOutcome converts an outcome name back to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "satisfied":
		return OutcomeSatisfied, nil
	case "violated":
		return OutcomeViolated, nil
	case "undetermined":
		return OutcomeUndetermined, nil
	}
	return 0, fmt.Errorf("unknown outcome %q (want satisfied, violated or undetermined)", s)
}

// Verdict is the final classification of one run.
type Verdict struct {
	Outcome Outcome

	// Violated lists the guarantees that were violated, in declaration order.
	// It is empty for discarded runs.
	Violated []string

	// Discarded is set when an assume was violated. The outcome is then
	// Undetermined.
	Discarded bool
}

// Monitor evaluates a Plan over the events of one run.
// It implements engine.Observer. A Monitor is not safe for concurrent use.
type Monitor struct {
	plan *Plan
	pos  int

	cur, prev []bool   // values of past and state nodes at this and the previous position
	status    []Status // verdict at position 0, for every node
	witness   [][]int64

	lastTime int64
	done     bool
}

// NewMonitor returns a fresh monitor positioned before the first event.
func (p *Plan) NewMonitor() *Monitor {
	return &Monitor{
		plan:    p,
		cur:     make([]bool, len(p.nodes)),
		prev:    make([]bool, len(p.nodes)),
		status:  make([]Status, len(p.nodes)),
		witness: make([][]int64, p.slots),
	}
}

// position returns the number of events observed.
func (m *Monitor) position() int { return m.pos }

// Observe consumes the next event. It returns true once every guarantee and
// assume is decided, or an assume is violated; later events are ignored.
func (m *Monitor) Observe(ev *engine.Event) bool {
	if m.done {
		return true
	}
	m.advance(ev)
	m.done = m.decided()
	return m.done
}

// advance evaluates every node at the next position.
func (m *Monitor) advance(ev *engine.Event) {
	nodes := m.plan.nodes
	for i := range nodes {
		if nodes[i].future {
			continue
		}
		m.cur[i] = m.evalPast(&nodes[i], ev)
		if m.pos == 0 {
			m.status[i] = statusOf(m.cur[i])
		}
	}
	for i := range nodes {
		if nodes[i].future {
			m.status[i] = m.evalFuture(&nodes[i], m.status[i], ev)
		}
	}

	m.cur, m.prev = m.prev, m.cur
	m.lastTime = ev.Time
	m.pos++
}

func (m *Monitor) stamp(iv Interval, ev *engine.Event) int64 {
	if iv.Domain == Steps {
		return int64(m.pos)
	}
	return ev.Time
}

func (m *Monitor) evalPast(n *pnode, ev *engine.Event) bool {
	model := m.plan.model
	switch n.kind {
	case KindTrue:
		return true
	case KindFalse:
		return false
	case KindAtom:
		return m.plan.exprs.Holds(n.expr, ev.Vals)
	case KindAt:
		return ev.Locs[model.Locations[n.loc].Process] == n.loc
	case KindFired:
		if n.proc == cs.Global {
			return ev.Fires(n.action)
		}
		return ev.FiresIn(n.proc, n.action)
	case KindNot:
		return !m.cur[n.a]
	case KindAnd:
		return m.cur[n.a] && m.cur[n.b]
	case KindOr:
		return m.cur[n.a] || m.cur[n.b]
	case KindImplies:
		return !m.cur[n.a] || m.cur[n.b]
	case KindPrev:
		if m.pos == 0 || !m.prev[n.a] {
			return false
		}
		last := m.lastTime
		if n.iv.Domain == Steps {
			last = int64(m.pos - 1)
		}
		return n.iv.Contains(m.stamp(n.iv, ev) - last)
	case KindOnce:
		return m.since(n, true, m.cur[n.a], ev)
	case KindHistorically:
		return !m.since(n, true, !m.cur[n.a], ev)
	case KindSince:
		return m.since(n, m.cur[n.a], m.cur[n.b], ev)
	}
	panic(fmt.Sprintf("mtl: %s is not a past operator", n.kind))
}

// since updates the witness queue of n and reports whether some witness lies
// within the interval. Witnesses are stamps where the right operand held; the
// queue is cleared whenever the left operand fails. Stamps are
// non-decreasing, so the front is the oldest and farthest witness.
func (m *Monitor) since(n *pnode, left, right bool, ev *engine.Event) bool {
	now := m.stamp(n.iv, ev)
	q := m.witness[n.slot]
	if !left {
		q = q[:0]
	}
	if right {
		switch {
		case len(q) == 0:
			q = append(q, now)
		case n.iv.HasHi && q[len(q)-1] != now:
			q = append(q, now)
		}
	}
	for len(q) > 0 && n.iv.Exceeded(now-q[0]) {
		q = q[1:]
	}
	m.witness[n.slot] = q
	return len(q) > 0 && n.iv.Contains(now-q[0])
}

func (m *Monitor) evalFuture(n *pnode, st Status, ev *engine.Event) Status {
	switch n.kind {
	case KindNot:
		return kleeneNot(m.status[n.a])
	case KindAnd:
		return kleeneAnd(m.status[n.a], m.status[n.b])
	case KindOr:
		return kleeneOr(m.status[n.a], m.status[n.b])
	case KindImplies:
		return kleeneOr(kleeneNot(m.status[n.a]), m.status[n.b])
	}
	if st != Pending {
		return st
	}

	// Distances are measured from position 0, which has stamp 0.
	d := m.stamp(n.iv, ev)
	switch n.kind {
	case KindNext:
		if m.pos == 0 {
			return Pending
		}
		return statusOf(m.cur[n.a] && n.iv.Contains(d))
	case KindEventually:
		if n.iv.Contains(d) && m.cur[n.a] {
			return Satisfied
		}
		if n.iv.Exceeded(d) {
			return Violated
		}
	case KindAlways:
		if n.iv.Contains(d) && !m.cur[n.a] {
			return Violated
		}
		if n.iv.Exceeded(d) {
			return Satisfied
		}
	case KindUntil:
		if n.iv.Contains(d) && m.cur[n.b] {
			return Satisfied
		}
		if !m.cur[n.a] || n.iv.Exceeded(d) {
			return Violated
		}
	}
	return Pending
}

func (m *Monitor) decided() bool {
	for _, r := range m.plan.assumes {
		if m.status[r.node] == Violated {
			return true
		}
	}
	for _, roots := range [][]root{m.plan.guarantees, m.plan.assumes} {
		for _, r := range roots {
			if m.status[r.node] == Pending {
				return false
			}
		}
	}
	return true
}

// Status returns the verdict of the conjunction of guarantees so far.
func (m *Monitor) Status() Status {
	return m.conjunction(m.status)
}

func (m *Monitor) conjunction(status []Status) Status {
	if m.pos == 0 {
		return Pending
	}
	out := Satisfied
	for _, r := range m.plan.guarantees {
		out = kleeneAnd(out, status[r.node])
	}
	return out
}

// final returns the node verdicts at the end of the trace. On a complete
// trace, pending eventualities fail and pending invariants hold.
func (m *Monitor) final(complete bool) []Status {
	status := append([]Status(nil), m.status...)
	if !complete || m.pos == 0 {
		return status
	}
	for i, n := range m.plan.nodes {
		if !n.future {
			continue
		}
		switch n.kind {
		case KindNot:
			status[i] = kleeneNot(status[n.a])
		case KindAnd:
			status[i] = kleeneAnd(status[n.a], status[n.b])
		case KindOr:
			status[i] = kleeneOr(status[n.a], status[n.b])
		case KindImplies:
			status[i] = kleeneOr(kleeneNot(status[n.a]), status[n.b])
		case KindAlways:
			if status[i] == Pending {
				status[i] = Satisfied
			}
		default:
			if status[i] == Pending {
				status[i] = Violated
			}
		}
	}
	return status
}

// Verdict classifies the run. complete reports whether the trace ended for
// good (deadlock) rather than being cut short. Verdict does not change the
// monitor and may be called more than once.
func (m *Monitor) Verdict(complete bool) Verdict {
	status := m.final(complete)

	for _, r := range m.plan.assumes {
		if status[r.node] == Violated {
			return Verdict{Outcome: OutcomeUndetermined, Discarded: true}
		}
	}

	assumed := Satisfied
	for _, r := range m.plan.assumes {
		assumed = kleeneAnd(assumed, status[r.node])
	}
	if m.pos == 0 || assumed == Pending {
		return Verdict{Outcome: OutcomeUndetermined}
	}

	var v Verdict
	for _, r := range m.plan.guarantees {
		if status[r.node] == Violated {
			v.Violated = append(v.Violated, r.name)
		}
	}

	switch {
	case len(v.Violated) > 0:
		v.Outcome = OutcomeViolated
	case m.conjunction(status) == Satisfied:
		v.Outcome = OutcomeSatisfied
	default:
		v.Outcome = OutcomeUndetermined
	}
	return v
}
