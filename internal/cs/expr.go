package cs

import (
	"fmt"
	"strings"

	"github.com/roach88/scan/internal/ir"
)

// Op is an expression operator.
type Op uint8

const (
	OpConst Op = iota
	OpRef
	OpNot
	OpNeg
	OpAnd
	OpOr
	OpImplies
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIte
)

var opSymbols = [...]string{
	OpConst:   "const",
	OpRef:     "ref",
	OpNot:     "!",
	OpNeg:     "-",
	OpAnd:     "&&",
	OpOr:      "||",
	OpImplies: "implies",
	OpAdd:     "+",
	OpSub:     "-",
	OpMul:     "*",
	OpDiv:     "/",
	OpMod:     "mod",
	OpEq:      "==",
	OpNe:      "!=",
	OpLt:      "<",
	OpLe:      "<=",
	OpGt:      ">",
	OpGe:      ">=",
	OpIte:     "ite",
}

// String returns the operator symbol.
func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// arity returns the operand count of an operator.
func (o Op) arity() int {
	switch o {
	case OpConst, OpRef:
		return 0
	case OpNot, OpNeg:
		return 1
	case OpIte:
		return 3
	default:
		return 2
	}
}

// Expr is an unresolved expression tree, as produced by a front end.
// Variables are referenced by name and resolved when the model is built.
type Expr struct {
	Op    Op
	Value ir.Value // OpConst
	Name  string   // OpRef
	Args  []Expr
}

// Const wraps a literal value.
func Const(v ir.Value) Expr { return Expr{Op: OpConst, Value: v} }

// Int is an integer literal.
func Int(n int64) Expr { return Const(ir.Int(n)) }

// Bool is a boolean literal.
func Bool(b bool) Expr { return Const(ir.Bool(b)) }

// Ref references a variable by name. Process locals may be qualified as "P.x".
func Ref(name string) Expr { return Expr{Op: OpRef, Name: name} }

// Not is boolean negation.
func Not(e Expr) Expr { return Expr{Op: OpNot, Args: []Expr{e}} }

// Neg is integer negation.
func Neg(e Expr) Expr { return Expr{Op: OpNeg, Args: []Expr{e}} }

// Binary applies a two-operand operator.
func Binary(op Op, l, r Expr) Expr { return Expr{Op: op, Args: []Expr{l, r}} }

// Ite is the conditional expression "if c then a else b".
func Ite(c, a, b Expr) Expr { return Expr{Op: OpIte, Args: []Expr{c, a, b}} }

func And(l, r Expr) Expr     { return Binary(OpAnd, l, r) }
func Or(l, r Expr) Expr      { return Binary(OpOr, l, r) }
func Implies(l, r Expr) Expr { return Binary(OpImplies, l, r) }
func Add(l, r Expr) Expr     { return Binary(OpAdd, l, r) }
func Sub(l, r Expr) Expr     { return Binary(OpSub, l, r) }
func Mul(l, r Expr) Expr     { return Binary(OpMul, l, r) }
func Div(l, r Expr) Expr     { return Binary(OpDiv, l, r) }
func Mod(l, r Expr) Expr     { return Binary(OpMod, l, r) }
func Eq(l, r Expr) Expr      { return Binary(OpEq, l, r) }
func Ne(l, r Expr) Expr      { return Binary(OpNe, l, r) }
func Lt(l, r Expr) Expr      { return Binary(OpLt, l, r) }
func Le(l, r Expr) Expr      { return Binary(OpLe, l, r) }
func Gt(l, r Expr) Expr      { return Binary(OpGt, l, r) }
func Ge(l, r Expr) Expr      { return Binary(OpGe, l, r) }

// String renders the expression in fully parenthesised infix form.
func (e Expr) String() string {
	switch e.Op {
	case OpConst:
		return e.Value.String()
	case OpRef:
		return e.Name
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return render(e.Op, args)
}

// call reports whether the operator is written as a function call.
func (o Op) call() bool {
	return o == OpIte || o == OpMod || o == OpImplies
}

func render(op Op, args []string) string {
	switch {
	case op.call():
		return fmt.Sprintf("%s(%s)", op, strings.Join(args, ", "))
	case op.arity() == 1 && len(args) == 1:
		return op.String() + args[0]
	case len(args) == 2:
		return fmt.Sprintf("(%s %s %s)", args[0], op, args[1])
	default:
		return fmt.Sprintf("%s(%s)", op, strings.Join(args, ", "))
	}
}

// ExprID indexes a resolved expression in an ExprTable.
type ExprID int32

// NoExpr marks an absent guard. An absent guard always holds.
const NoExpr ExprID = -1

type exprNode struct {
	op   Op
	val  ir.Value
	ref  VarID
	args [3]ExprID
}

// ExprTable is an arena of resolved, type-checked expressions.
// Nodes are appended children-first and never modified afterwards.
type ExprTable struct {
	nodes []exprNode
	kinds []ir.Kind
}

// Len returns the number of nodes in the table.
func (t *ExprTable) Len() int { return len(t.nodes) }

// Kind returns the static kind of an expression.
func (t *ExprTable) Kind(id ExprID) ir.Kind { return t.kinds[id] }

func (t *ExprTable) add(n exprNode, k ir.Kind) ExprID {
	t.nodes = append(t.nodes, n)
	t.kinds = append(t.kinds, k)
	return ExprID(len(t.nodes) - 1)
}

// Eval evaluates an expression against a valuation indexed by VarID.
//
// Arithmetic is total: integer division by zero yields 0 and modulo by zero
// yields the dividend, so x == (x/y)*y + x%y holds for every y.
func (t *ExprTable) Eval(id ExprID, vals []ir.Value) ir.Value {
	n := &t.nodes[id]
	switch n.op {
	case OpConst:
		return n.val
	case OpRef:
		return vals[n.ref]
	case OpNot:
		return ir.Bool(!t.Eval(n.args[0], vals).Bool())
	case OpNeg:
		return ir.Int(-t.Eval(n.args[0], vals).N)
	case OpAnd:
		return ir.Bool(t.Eval(n.args[0], vals).Bool() && t.Eval(n.args[1], vals).Bool())
	case OpOr:
		return ir.Bool(t.Eval(n.args[0], vals).Bool() || t.Eval(n.args[1], vals).Bool())
	case OpImplies:
		return ir.Bool(!t.Eval(n.args[0], vals).Bool() || t.Eval(n.args[1], vals).Bool())
	case OpIte:
		if t.Eval(n.args[0], vals).Bool() {
			return t.Eval(n.args[1], vals)
		}
		return t.Eval(n.args[2], vals)
	}

	l := t.Eval(n.args[0], vals).N
	r := t.Eval(n.args[1], vals).N
	switch n.op {
	case OpAdd:
		return ir.Int(l + r)
	case OpSub:
		return ir.Int(l - r)
	case OpMul:
		return ir.Int(l * r)
	case OpDiv:
		if r == 0 {
			return ir.Int(0)
		}
		return ir.Int(l / r)
	case OpMod:
		if r == 0 {
			return ir.Int(l)
		}
		return ir.Int(l % r)
	case OpEq:
		return ir.Bool(l == r)
	case OpNe:
		return ir.Bool(l != r)
	case OpLt:
		return ir.Bool(l < r)
	case OpLe:
		return ir.Bool(l <= r)
	case OpGt:
		return ir.Bool(l > r)
	case OpGe:
		return ir.Bool(l >= r)
	}
	panic(fmt.Sprintf("cs: unknown operator %d", n.op))
}

// Holds evaluates a boolean expression. NoExpr always holds.
func (t *ExprTable) Holds(id ExprID, vals []ir.Value) bool {
	if id == NoExpr {
		return true
	}
	return t.Eval(id, vals).Bool()
}

// Format renders a resolved expression using the given variable names.
func (t *ExprTable) Format(id ExprID, name func(VarID) string) string {
	if id == NoExpr {
		return "true"
	}
	n := t.nodes[id]
	switch n.op {
	case OpConst:
		return n.val.String()
	case OpRef:
		return name(n.ref)
	}
	args := make([]string, n.op.arity())
	for i := range args {
		args[i] = t.Format(n.args[i], name)
	}
	return render(n.op, args)
}

// resolver maps a variable name to its ID and kind in some scope.
type resolver func(name string) (VarID, ir.Kind, *ExprError)

// compile resolves and type-checks e, appending it to t.
func (t *ExprTable) compile(e Expr, resolve resolver) (ExprID, ir.Kind, *ExprError) {
	switch e.Op {
	case OpConst:
		if !e.Value.IsValid() {
			return NoExpr, ir.KindInvalid, mismatch("literal has no type")
		}
		return t.add(exprNode{op: OpConst, val: e.Value}, e.Value.Kind), e.Value.Kind, nil
	case OpRef:
		id, kind, err := resolve(e.Name)
		if err != nil {
			return NoExpr, ir.KindInvalid, err
		}
		return t.add(exprNode{op: OpRef, ref: id}, kind), kind, nil
	}

	if int(e.Op) >= len(opSymbols) {
		return NoExpr, ir.KindInvalid, mismatch("unknown operator %d", e.Op)
	}
	if len(e.Args) != e.Op.arity() {
		return NoExpr, ir.KindInvalid, mismatch("operator %s takes %d operands, got %d", e.Op, e.Op.arity(), len(e.Args))
	}

	var node exprNode
	node.op = e.Op
	kinds := make([]ir.Kind, len(e.Args))
	for i, a := range e.Args {
		id, k, err := t.compile(a, resolve)
		if err != nil {
			return NoExpr, ir.KindInvalid, err
		}
		node.args[i] = id
		kinds[i] = k
	}

	result, err := checkOperands(e, kinds)
	if err != nil {
		return NoExpr, ir.KindInvalid, err
	}
	return t.add(node, result), result, nil
}

// checkOperands returns the result kind of e given its operand kinds.
func checkOperands(e Expr, kinds []ir.Kind) (ir.Kind, *ExprError) {
	want := func(k ir.Kind) *ExprError {
		for i, got := range kinds {
			if got != k {
				return mismatch("operand %d of %s in %s is %s, want %s", i+1, e.Op, e, got, k)
			}
		}
		return nil
	}

	switch e.Op {
	case OpNot, OpAnd, OpOr, OpImplies:
		return ir.KindBool, want(ir.KindBool)
	case OpNeg, OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return ir.KindInt, want(ir.KindInt)
	case OpLt, OpLe, OpGt, OpGe:
		return ir.KindBool, want(ir.KindInt)
	case OpEq, OpNe:
		if kinds[0] != kinds[1] {
			return ir.KindInvalid, mismatch("cannot compare %s with %s in %s", kinds[0], kinds[1], e)
		}
		return ir.KindBool, nil
	case OpIte:
		if kinds[0] != ir.KindBool {
			return ir.KindInvalid, mismatch("condition of %s is %s, want bool", e, kinds[0])
		}
		if kinds[1] != kinds[2] {
			return ir.KindInvalid, mismatch("branches of %s differ: %s and %s", e, kinds[1], kinds[2])
		}
		return kinds[1], nil
	}
	return ir.KindInvalid, mismatch("unknown operator %s", e.Op)
}
