package mtl

import (
	"errors"
	"strings"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

// pnode is a compiled formula node. Operands always precede their operator in
// Plan.nodes, so one forward pass evaluates a position.
type pnode struct {
	kind   Kind
	expr   cs.ExprID
	loc    cs.LocationID
	proc   cs.ProcessID // KindFired: cs.Global matches any process
	action cs.ActionID
	a, b   int // operand indices, -1 if absent
	iv     Interval
	future bool // verdict depends on later positions
	slot   int  // witness queue of once, historically and since
}

type root struct {
	name string
	node int
}

// Plan is a property compiled against one model. It is immutable and safe to
// share between goroutines; each run gets its own Monitor.
type Plan struct {
	model      *cs.Model
	exprs      cs.ExprTable
	nodes      []pnode
	guarantees []root
	assumes    []root
	slots      int
}

// Model returns the model the plan was compiled against.
func (p *Plan) Model() *cs.Model { return p.model }

// Guarantees returns the guarantee names in declaration order.
func (p *Plan) Guarantees() []string { return rootNames(p.guarantees) }

// Assumes returns the assume names in declaration order.
func (p *Plan) Assumes() []string { return rootNames(p.assumes) }

// Len returns the number of compiled nodes.
func (p *Plan) Len() int { return len(p.nodes) }

func rootNames(roots []root) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.name
	}
	return out
}

// Compile resolves every formula of prop against m and checks that it lies in
// the monitorable fragment. All problems are returned, joined.
func Compile(m *cs.Model, prop Property) (*Plan, error) {
	p := &Plan{model: m}
	var errs []error

	if len(prop.Guarantees) == 0 {
		errs = append(errs, formulaErr(ErrCodeMalformed, "property has no guarantee"))
	}

	seen := make(map[string]bool)
	compileAll := func(list []Named, into *[]root) {
		for _, named := range list {
			if seen[named.Name] {
				fe := formulaErr(ErrCodeMalformed, "name declared twice")
				fe.Property = named.Name
				errs = append(errs, fe)
				continue
			}
			seen[named.Name] = true

			id, fe := p.compileFormula(named.Formula)
			if fe != nil {
				fe.Property = named.Name
				errs = append(errs, fe)
				continue
			}
			*into = append(*into, root{name: named.Name, node: id})
		}
	}
	compileAll(prop.Guarantees, &p.guarantees)
	compileAll(prop.Assumes, &p.assumes)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

// formulaCompiler compiles one formula arena into the plan.
type formulaCompiler struct {
	plan *Plan
	f    *Formula
	memo map[NodeID]int
}

func (p *Plan) compileFormula(f *Formula) (int, *FormulaError) {
	if f == nil || len(f.nodes) == 0 {
		return -1, formulaErr(ErrCodeMalformed, "empty formula")
	}
	c := &formulaCompiler{plan: p, f: f, memo: make(map[NodeID]int)}
	return c.node(f.root)
}

func arity(k Kind) int {
	switch k {
	case KindTrue, KindFalse, KindAtom, KindAt, KindFired, KindReward:
		return 0
	case KindAnd, KindOr, KindImplies, KindSince, KindUntil:
		return 2
	default:
		return 1
	}
}

func (c *formulaCompiler) node(id NodeID) (int, *FormulaError) {
	if idx, ok := c.memo[id]; ok {
		return idx, nil
	}
	if id < 0 || int(id) >= len(c.f.nodes) {
		return -1, formulaErr(ErrCodeMalformed, "dangling node %d", id)
	}
	n := c.f.nodes[id]
	if int(n.Kind) >= len(kindNames) {
		return -1, formulaErr(ErrCodeMalformed, "unknown operator %d", n.Kind)
	}

	switch n.Kind {
	case KindReward, KindFilter:
		return -1, formulaErr(ErrCodeNotSupported, "%s queries are not supported", n.Kind)
	}
	if len(n.Args) != arity(n.Kind) {
		return -1, formulaErr(ErrCodeMalformed, "%s takes %d operands, got %d", n.Kind, arity(n.Kind), len(n.Args))
	}

	pn := pnode{kind: n.Kind, expr: cs.NoExpr, a: -1, b: -1, iv: n.Interval, slot: -1}
	for i, arg := range n.Args {
		if arg >= id {
			return -1, formulaErr(ErrCodeMalformed, "operand %d of %s is declared after it", i+1, n.Kind)
		}
		idx, fe := c.node(arg)
		if fe != nil {
			return -1, fe
		}
		if i == 0 {
			pn.a = idx
		} else {
			pn.b = idx
		}
	}

	if fe := c.resolve(&pn, n); fe != nil {
		return -1, fe
	}
	if n.Kind.Temporal() {
		if fe := checkInterval(n.Kind, n.Interval); fe != nil {
			return -1, fe
		}
	}

	nested := c.operandFuture(pn)
	switch {
	case n.Kind.Future() && nested:
		return -1, formulaErr(ErrCodeNotSupported, "%s cannot take an operand containing a future operator", n.Kind)
	case n.Kind.Past() && nested:
		return -1, formulaErr(ErrCodeNotSupported, "past operator %s cannot take an operand containing a future operator", n.Kind)
	}
	pn.future = n.Kind.Future() || nested

	switch n.Kind {
	case KindOnce, KindHistorically, KindSince:
		pn.slot = c.plan.slots
		c.plan.slots++
	}

	c.plan.nodes = append(c.plan.nodes, pn)
	idx := len(c.plan.nodes) - 1
	c.memo[id] = idx
	return idx, nil
}

func (c *formulaCompiler) operandFuture(pn pnode) bool {
	nodes := c.plan.nodes
	return (pn.a >= 0 && nodes[pn.a].future) || (pn.b >= 0 && nodes[pn.b].future)
}

// resolve binds the names of atomic nodes to the model.
func (c *formulaCompiler) resolve(pn *pnode, n Node) *FormulaError {
	m := c.plan.model
	switch n.Kind {
	case KindAtom:
		id, kind, err := m.CompileQuery(&c.plan.exprs, n.Expr)
		if err != nil {
			var ee *cs.ExprError
			if errors.As(err, &ee) && ee.Code == cs.ErrCodeUndeclared {
				return formulaErr(ErrCodeUndeclared, "%s", ee.Message)
			}
			return formulaErr(ErrCodeIllTyped, "%s", err.Error())
		}
		if kind != ir.KindBool {
			return formulaErr(ErrCodeIllTyped, "atom %s is %s, want bool", n.Expr, kind)
		}
		pn.expr = id

	case KindAt:
		loc, ok := m.LocationByName(n.Name)
		if !ok {
			return formulaErr(ErrCodeUndeclared, "undeclared location %q (want \"Process.location\")", n.Name)
		}
		pn.loc = loc

	case KindFired:
		pn.proc = cs.Global
		label := n.Name
		if proc, action, qualified := strings.Cut(n.Name, "."); qualified {
			pid, ok := m.ProcessByName(proc)
			if !ok {
				return formulaErr(ErrCodeUndeclared, "undeclared process %q in fired(%q)", proc, n.Name)
			}
			pn.proc = pid
			label = action
		}
		if label == "" {
			return formulaErr(ErrCodeMalformed, "fired needs an action label")
		}
		aid, ok := m.ActionByName(label)
		if !ok {
			return formulaErr(ErrCodeUndeclared, "undeclared action %q", label)
		}
		pn.action = aid
	}
	return nil
}

func checkInterval(k Kind, iv Interval) *FormulaError {
	switch {
	case iv.Domain != Time && iv.Domain != Steps:
		return formulaErr(ErrCodeBadBound, "%s: unknown interval domain %d", k, iv.Domain)
	case iv.Lo < 0:
		return formulaErr(ErrCodeBadBound, "%s: negative lower bound %d", k, iv.Lo)
	case iv.HasHi && iv.Hi < iv.Lo:
		return formulaErr(ErrCodeBadBound, "%s: lower bound %d exceeds upper bound %d", k, iv.Lo, iv.Hi)
	case iv.HasHi && iv.Hi == iv.Lo && (iv.LoOpen || iv.HiOpen):
		return formulaErr(ErrCodeBadBound, "%s: interval %s is empty", k, iv)
	}
	return nil
}
