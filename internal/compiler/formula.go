package compiler

import (
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
	"github.com/roach88/scan/internal/mtl"
)

// ParseFormula parses an MTL formula written in CUE expression syntax.
//
// Boolean connectives (&& || ! implies), true and false build formula nodes.
// The temporal operators take their operands first and an optional trailing
// interval struct {lo, hi, lo_open, hi_open, steps}. at("P.loc") and
// fired("a") / fired("P.a") test the current event. Any other expression is
// an atomic predicate over the model variables.
func ParseFormula(src string) (*mtl.Formula, error) {
	x, err := parser.ParseExpr("formula", src)
	if err != nil {
		return nil, formatCUEError("formula", err)
	}
	p := &formulaParser{b: mtl.NewBuilder()}
	root, err := p.parse(x)
	if err != nil {
		return nil, err
	}
	return p.b.Build(root), nil
}

type formulaParser struct {
	b *mtl.Builder
}

// temporalOps maps operator names to their operand count.
var temporalOps = map[string]struct {
	kind  mtl.Kind
	arity int
}{
	"prev":         {mtl.KindPrev, 1},
	"once":         {mtl.KindOnce, 1},
	"historically": {mtl.KindHistorically, 1},
	"since":        {mtl.KindSince, 2},
	"next":         {mtl.KindNext, 1},
	"eventually":   {mtl.KindEventually, 1},
	"always":       {mtl.KindAlways, 1},
	"until":        {mtl.KindUntil, 2},
}

func formulaErr(n ast.Node, format string, args ...any) error {
	err := exprErr(n, format, args...).(*CompileError)
	err.Field = "formula"
	return err
}

func (p *formulaParser) parse(x ast.Expr) (mtl.NodeID, error) {
	switch n := x.(type) {
	case *ast.ParenExpr:
		return p.parse(n.X)

	case *ast.BasicLit:
		switch n.Kind {
		case token.TRUE:
			return p.b.True(), nil
		case token.FALSE:
			return p.b.False(), nil
		}

	case *ast.UnaryExpr:
		if n.Op == token.NOT {
			a, err := p.parse(n.X)
			if err != nil {
				return 0, err
			}
			return p.b.Not(a), nil
		}

	case *ast.BinaryExpr:
		if n.Op == token.LAND || n.Op == token.LOR {
			l, err := p.parse(n.X)
			if err != nil {
				return 0, err
			}
			r, err := p.parse(n.Y)
			if err != nil {
				return 0, err
			}
			if n.Op == token.LAND {
				return p.b.And(l, r), nil
			}
			return p.b.Or(l, r), nil
		}

	case *ast.CallExpr:
		if fn, ok := n.Fun.(*ast.Ident); ok {
			if id, handled, err := p.call(fn.Name, n); handled {
				return id, err
			}
		}
	}

	e, err := convertExpr(x)
	if err != nil {
		return 0, err
	}
	return p.b.Atom(e), nil
}

// call builds the formula operators written as calls. handled is false for
// calls that belong to the expression language (ite, div, mod).
func (p *formulaParser) call(name string, n *ast.CallExpr) (id mtl.NodeID, handled bool, err error) {
	switch name {
	case "at", "fired", "reward":
		if len(n.Args) != 1 {
			return 0, true, formulaErr(n, "%s takes one string argument", name)
		}
		s, err := stringArg(n.Args[0])
		if err != nil {
			return 0, true, err
		}
		switch name {
		case "at":
			return p.b.At(s), true, nil
		case "fired":
			return p.b.Fired(s), true, nil
		default:
			return p.b.Reward(s), true, nil
		}

	case "filter":
		if len(n.Args) != 1 {
			return 0, true, formulaErr(n, "filter takes one argument")
		}
		a, err := p.parse(n.Args[0])
		if err != nil {
			return 0, true, err
		}
		return p.b.Filter(a), true, nil

	case "implies":
		if len(n.Args) != 2 {
			return 0, true, formulaErr(n, "implies takes two arguments, got %d", len(n.Args))
		}
		args, err := p.operands(n.Args)
		if err != nil {
			return 0, true, err
		}
		return p.b.Implies(args[0], args[1]), true, nil
	}

	op, ok := temporalOps[name]
	if !ok {
		return 0, false, nil
	}

	args := n.Args
	iv := mtl.Any
	if len(args) == op.arity+1 {
		lit, ok := args[op.arity].(*ast.StructLit)
		if !ok {
			return 0, true, formulaErr(args[op.arity], "last argument of %s must be an interval {lo, hi, lo_open, hi_open, steps}", name)
		}
		if iv, err = parseInterval(lit); err != nil {
			return 0, true, err
		}
		args = args[:op.arity]
	}
	if len(args) != op.arity {
		return 0, true, formulaErr(n, "%s takes %d operands and an optional interval, got %d arguments", name, op.arity, len(n.Args))
	}

	operands, err := p.operands(args)
	if err != nil {
		return 0, true, err
	}
	switch op.kind {
	case mtl.KindPrev:
		return p.b.Prev(iv, operands[0]), true, nil
	case mtl.KindOnce:
		return p.b.Once(iv, operands[0]), true, nil
	case mtl.KindHistorically:
		return p.b.Historically(iv, operands[0]), true, nil
	case mtl.KindSince:
		return p.b.Since(iv, operands[0], operands[1]), true, nil
	case mtl.KindNext:
		return p.b.Next(iv, operands[0]), true, nil
	case mtl.KindEventually:
		return p.b.Eventually(iv, operands[0]), true, nil
	case mtl.KindAlways:
		return p.b.Always(iv, operands[0]), true, nil
	default:
		return p.b.Until(iv, operands[0], operands[1]), true, nil
	}
}

func (p *formulaParser) operands(args []ast.Expr) ([]mtl.NodeID, error) {
	ids := make([]mtl.NodeID, len(args))
	for i, a := range args {
		id, err := p.parse(a)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func stringArg(x ast.Expr) (string, error) {
	lit, ok := x.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", formulaErr(x, "want a string literal")
	}
	s, err := literal.Unquote(lit.Value)
	if err != nil {
		return "", formulaErr(x, "%v", err)
	}
	return s, nil
}

// parseInterval reads {lo: 2, hi: 10, lo_open: true, hi_open: false, steps: true}.
// Bounds are checked when the formula is compiled.
func parseInterval(lit *ast.StructLit) (mtl.Interval, error) {
	var iv mtl.Interval
	for _, decl := range lit.Elts {
		f, ok := decl.(*ast.Field)
		if !ok {
			return iv, formulaErr(decl, "interval must contain plain fields only")
		}
		label, _, err := ast.LabelName(f.Label)
		if err != nil {
			return iv, formulaErr(f, "%v", err)
		}
		switch label {
		case "lo", "hi":
			v, err := intValue(f.Value)
			if err != nil {
				return iv, err
			}
			if label == "lo" {
				iv.Lo = v
			} else {
				iv.Hi, iv.HasHi = v, true
			}
		case "lo_open", "hi_open", "steps":
			v, err := boolValue(f.Value)
			if err != nil {
				return iv, err
			}
			switch label {
			case "lo_open":
				iv.LoOpen = v
			case "hi_open":
				iv.HiOpen = v
			default:
				if v {
					iv.Domain = mtl.Steps
				}
			}
		default:
			return iv, formulaErr(f, "unknown interval field %q (want lo, hi, lo_open, hi_open or steps)", label)
		}
	}
	return iv, nil
}

func intValue(x ast.Expr) (int64, error) {
	e, err := convertExpr(x)
	if err != nil {
		return 0, err
	}
	if e.Op != cs.OpConst || e.Value.Kind != ir.KindInt {
		return 0, formulaErr(x, "interval bound must be an integer literal")
	}
	return e.Value.Int(), nil
}

func boolValue(x ast.Expr) (bool, error) {
	lit, ok := x.(*ast.BasicLit)
	if !ok || (lit.Kind != token.TRUE && lit.Kind != token.FALSE) {
		return false, formulaErr(x, "want true or false")
	}
	return lit.Kind == token.TRUE, nil
}
