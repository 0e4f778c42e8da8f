package mtl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/scan/internal/cs"
)

// Kind is the operator of a formula node.
type Kind uint8

const (
	KindTrue Kind = iota
	KindFalse
	KindAtom  // boolean state expression
	KindAt    // location is active
	KindFired // action fired in the last step
	KindNot
	KindAnd
	KindOr
	KindImplies
	KindPrev
	KindOnce
	KindHistorically
	KindSince
	KindNext
	KindEventually
	KindAlways
	KindUntil
	KindReward
	KindFilter
)

var kindNames = [...]string{
	KindTrue:         "true",
	KindFalse:        "false",
	KindAtom:         "atom",
	KindAt:           "at",
	KindFired:        "fired",
	KindNot:          "not",
	KindAnd:          "and",
	KindOr:           "or",
	KindImplies:      "implies",
	KindPrev:         "prev",
	KindOnce:         "once",
	KindHistorically: "historically",
	KindSince:        "since",
	KindNext:         "next",
	KindEventually:   "eventually",
	KindAlways:       "always",
	KindUntil:        "until",
	KindReward:       "reward",
	KindFilter:       "filter",
}

// String returns the operator name as written in property files.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Past reports whether k is a past temporal operator.
func (k Kind) Past() bool {
	return k == KindPrev || k == KindOnce || k == KindHistorically || k == KindSince
}

// Future reports whether k is a future temporal operator.
func (k Kind) Future() bool {
	return k == KindNext || k == KindEventually || k == KindAlways || k == KindUntil
}

// Temporal reports whether k carries an interval.
func (k Kind) Temporal() bool { return k.Past() || k.Future() }

// Domain is the unit interval bounds are measured in.
type Domain uint8

const (
	// Time measures distances in model time ticks.
	Time Domain = iota
	// Steps measures distances in trace positions.
	Steps
)

// Interval bounds the distance between two trace positions.
// The zero value is [0, inf) in model time.
type Interval struct {
	Domain Domain
	Lo     int64
	Hi     int64 // meaningful only when HasHi
	HasHi  bool
	LoOpen bool
	HiOpen bool
}

// Any is the unbounded interval [0, inf).
var Any = Interval{}

// Closed returns the time interval [lo, hi].
func Closed(lo, hi int64) Interval { return Interval{Lo: lo, Hi: hi, HasHi: true} }

// From returns the time interval [lo, inf).
func From(lo int64) Interval { return Interval{Lo: lo} }

// Within returns the time interval [0, hi].
func Within(hi int64) Interval { return Closed(0, hi) }

// InSteps returns the same bounds measured in trace positions.
func (iv Interval) InSteps() Interval {
	iv.Domain = Steps
	return iv
}

// Open returns the interval with the given bounds made exclusive.
func (iv Interval) Open(lo, hi bool) Interval {
	iv.LoOpen, iv.HiOpen = lo, hi
	return iv
}

// Contains reports whether distance d lies in the interval.
func (iv Interval) Contains(d int64) bool {
	if d < iv.Lo || (iv.LoOpen && d == iv.Lo) {
		return false
	}
	return !iv.Exceeded(d)
}

// Exceeded reports whether d lies beyond the upper bound.
func (iv Interval) Exceeded(d int64) bool {
	return iv.HasHi && (d > iv.Hi || (iv.HiOpen && d == iv.Hi))
}

// IsAny reports whether the interval places no constraint.
func (iv Interval) IsAny() bool {
	return iv.Lo == 0 && !iv.LoOpen && !iv.HasHi
}

// String renders the interval in property-file syntax, e.g. {lo: 2, hi: 10, steps: true}.
func (iv Interval) String() string {
	var parts []string
	if iv.Lo != 0 || iv.LoOpen {
		parts = append(parts, "lo: "+strconv.FormatInt(iv.Lo, 10))
	}
	if iv.HasHi {
		parts = append(parts, "hi: "+strconv.FormatInt(iv.Hi, 10))
	}
	if iv.LoOpen {
		parts = append(parts, "lo_open: true")
	}
	if iv.HiOpen {
		parts = append(parts, "hi_open: true")
	}
	if iv.Domain == Steps {
		parts = append(parts, "steps: true")
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// NodeID indexes a node in a formula arena.
type NodeID int32

// Node is one operator of a formula.
type Node struct {
	Kind     Kind
	Expr     cs.Expr  // KindAtom
	Name     string   // KindAt: "P.loc"; KindFired: "a" or "P.a"; KindReward: reward name
	Args     []NodeID // operands, left first
	Interval Interval // temporal operators
}

// Formula is an immutable formula: an arena of nodes and a root.
type Formula struct {
	nodes []Node
	root  NodeID
}

// Root returns the root node ID.
func (f *Formula) Root() NodeID { return f.root }

// Node returns a node by ID.
func (f *Formula) Node(id NodeID) Node { return f.nodes[id] }

// Len returns the arena size.
func (f *Formula) Len() int { return len(f.nodes) }

// String renders the formula in property-file syntax.
func (f *Formula) String() string {
	if f == nil || len(f.nodes) == 0 {
		return "<empty>"
	}
	return f.render(f.root)
}

func (f *Formula) render(id NodeID) string {
	n := f.nodes[id]
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = f.render(a)
	}

	switch n.Kind {
	case KindTrue, KindFalse:
		return n.Kind.String()
	case KindAtom:
		return n.Expr.String()
	case KindAt, KindFired, KindReward:
		return fmt.Sprintf("%s(%q)", n.Kind, n.Name)
	case KindNot:
		return "!" + args[0]
	case KindAnd:
		return "(" + strings.Join(args, " && ") + ")"
	case KindOr:
		return "(" + strings.Join(args, " || ") + ")"
	}
	if n.Kind.Temporal() && !n.Interval.IsAny() {
		args = append(args, n.Interval.String())
	}
	return fmt.Sprintf("%s(%s)", n.Kind, strings.Join(args, ", "))
}

// Builder appends nodes to a formula arena. Operands must come from the same
// builder. A builder may produce several formulas sharing subformulas.
type Builder struct {
	nodes []Node
}

// NewBuilder creates an empty formula builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(n Node) NodeID {
	b.nodes = append(b.nodes, n)
	return NodeID(len(b.nodes) - 1)
}

// Build returns the formula rooted at root. Later additions to the builder
// do not affect it.
func (b *Builder) Build(root NodeID) *Formula {
	return &Formula{nodes: append([]Node(nil), b.nodes...), root: root}
}

func (b *Builder) True() NodeID  { return b.add(Node{Kind: KindTrue}) }
func (b *Builder) False() NodeID { return b.add(Node{Kind: KindFalse}) }

// Atom is a boolean expression over model variables, in global scope.
func (b *Builder) Atom(e cs.Expr) NodeID { return b.add(Node{Kind: KindAtom, Expr: e}) }

// At holds where location "P.loc" is active.
func (b *Builder) At(location string) NodeID { return b.add(Node{Kind: KindAt, Name: location}) }

// Fired holds where the last step fired action "a" (any process) or "P.a".
func (b *Builder) Fired(action string) NodeID { return b.add(Node{Kind: KindFired, Name: action}) }

func (b *Builder) Not(a NodeID) NodeID        { return b.add(Node{Kind: KindNot, Args: []NodeID{a}}) }
func (b *Builder) And(l, r NodeID) NodeID     { return b.add(Node{Kind: KindAnd, Args: []NodeID{l, r}}) }
func (b *Builder) Or(l, r NodeID) NodeID      { return b.add(Node{Kind: KindOr, Args: []NodeID{l, r}}) }
func (b *Builder) Implies(l, r NodeID) NodeID { return b.add(Node{Kind: KindImplies, Args: []NodeID{l, r}}) }

func (b *Builder) temporal(k Kind, iv Interval, args ...NodeID) NodeID {
	return b.add(Node{Kind: k, Args: args, Interval: iv})
}

// Prev holds where a held at the previous position, within iv of now.
func (b *Builder) Prev(iv Interval, a NodeID) NodeID { return b.temporal(KindPrev, iv, a) }

// Once holds where a held at some earlier or current position within iv.
func (b *Builder) Once(iv Interval, a NodeID) NodeID { return b.temporal(KindOnce, iv, a) }

// Historically holds where a held at every earlier or current position within iv.
func (b *Builder) Historically(iv Interval, a NodeID) NodeID {
	return b.temporal(KindHistorically, iv, a)
}

// Since holds where r held at some position within iv and l has held ever after.
func (b *Builder) Since(iv Interval, l, r NodeID) NodeID { return b.temporal(KindSince, iv, l, r) }

// Next holds where a holds at the following position, within iv.
func (b *Builder) Next(iv Interval, a NodeID) NodeID { return b.temporal(KindNext, iv, a) }

// Eventually holds where a holds at some position within iv.
func (b *Builder) Eventually(iv Interval, a NodeID) NodeID {
	return b.temporal(KindEventually, iv, a)
}

// Always holds where a holds at every position within iv.
func (b *Builder) Always(iv Interval, a NodeID) NodeID { return b.temporal(KindAlways, iv, a) }

// Until holds where r holds at some position within iv and l holds before it.
func (b *Builder) Until(iv Interval, l, r NodeID) NodeID { return b.temporal(KindUntil, iv, l, r) }

// Reward is a reward query. Compile rejects it with ErrNotSupported.
func (b *Builder) Reward(name string) NodeID { return b.add(Node{Kind: KindReward, Name: name}) }

// Filter is a filtered query. Compile rejects it with ErrNotSupported.
func (b *Builder) Filter(a NodeID) NodeID { return b.add(Node{Kind: KindFilter, Args: []NodeID{a}}) }
