package compiler

import (
	"fmt"
	"math/big"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scan/internal/cs"
)

// ParseExpr parses a guard, assignment or atom written in CUE expression
// syntax into a model expression. Names are resolved later, when the model
// is built.
//
// Supported: bool and int literals, names (x or P.x), parentheses,
// ! - + && || == != < <= > >= * / and the calls ite(c, a, b), div(a, b),
// mod(a, b) and implies(a, b). "a div b" and "a mod b" are also accepted.
func ParseExpr(src string) (cs.Expr, error) {
	x, err := parser.ParseExpr("expr", src)
	if err != nil {
		return cs.Expr{}, formatCUEError("expr", err)
	}
	return convertExpr(x)
}

var binaryOps = map[token.Token]cs.Op{
	token.LAND: cs.OpAnd,
	token.LOR:  cs.OpOr,
	token.ADD:  cs.OpAdd,
	token.SUB:  cs.OpSub,
	token.MUL:  cs.OpMul,
	token.QUO:  cs.OpDiv,
	token.IDIV: cs.OpDiv,
	token.IQUO: cs.OpDiv,
	token.IMOD: cs.OpMod,
	token.IREM: cs.OpMod,
	token.EQL:  cs.OpEq,
	token.NEQ:  cs.OpNe,
	token.LSS:  cs.OpLt,
	token.LEQ:  cs.OpLe,
	token.GTR:  cs.OpGt,
	token.GEQ:  cs.OpGe,
}

var callOps = map[string]cs.Op{
	"ite":     cs.OpIte,
	"div":     cs.OpDiv,
	"mod":     cs.OpMod,
	"implies": cs.OpImplies,
}

func exprErr(n ast.Node, format string, args ...any) error {
	return &CompileError{Field: "expr", Message: fmt.Sprintf(format, args...), Pos: n.Pos()}
}

func convertExpr(x ast.Expr) (cs.Expr, error) {
	switch n := x.(type) {
	case *ast.ParenExpr:
		return convertExpr(n.X)

	case *ast.BasicLit:
		return convertLit(n)

	case *ast.Ident:
		return cs.Ref(n.Name), nil

	case *ast.SelectorExpr:
		name, err := qualifiedName(n)
		if err != nil {
			return cs.Expr{}, err
		}
		return cs.Ref(name), nil

	case *ast.UnaryExpr:
		operand, err := convertExpr(n.X)
		if err != nil {
			return cs.Expr{}, err
		}
		switch n.Op {
		case token.NOT:
			return cs.Not(operand), nil
		case token.ADD:
			return operand, nil
		case token.SUB:
			if operand.Op == cs.OpConst && operand.Value.IsValid() && operand.Value.Int() >= 0 {
				return cs.Int(-operand.Value.Int()), nil
			}
			return cs.Neg(operand), nil
		}
		return cs.Expr{}, exprErr(n, "unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return cs.Expr{}, exprErr(n, "unsupported operator %s", n.Op)
		}
		l, err := convertExpr(n.X)
		if err != nil {
			return cs.Expr{}, err
		}
		r, err := convertExpr(n.Y)
		if err != nil {
			return cs.Expr{}, err
		}
		return cs.Binary(op, l, r), nil

	case *ast.CallExpr:
		fn, ok := n.Fun.(*ast.Ident)
		if !ok {
			return cs.Expr{}, exprErr(n, "unsupported call")
		}
		op, ok := callOps[fn.Name]
		if !ok {
			return cs.Expr{}, exprErr(n, "unknown function %q", fn.Name)
		}
		want := 2
		if op == cs.OpIte {
			want = 3
		}
		if len(n.Args) != want {
			return cs.Expr{}, exprErr(n, "%s takes %d arguments, got %d", fn.Name, want, len(n.Args))
		}
		args := make([]cs.Expr, len(n.Args))
		for i, a := range n.Args {
			e, err := convertExpr(a)
			if err != nil {
				return cs.Expr{}, err
			}
			args[i] = e
		}
		if op == cs.OpIte {
			return cs.Ite(args[0], args[1], args[2]), nil
		}
		return cs.Binary(op, args[0], args[1]), nil
	}
	return cs.Expr{}, exprErr(x, "unsupported expression")
}

func convertLit(n *ast.BasicLit) (cs.Expr, error) {
	switch n.Kind {
	case token.TRUE:
		return cs.Bool(true), nil
	case token.FALSE:
		return cs.Bool(false), nil
	case token.INT:
		v, err := parseInt(n.Value)
		if err != nil {
			return cs.Expr{}, exprErr(n, "%v", err)
		}
		return cs.Int(v), nil
	}
	return cs.Expr{}, exprErr(n, "unsupported literal %s (only bool and int values exist)", n.Value)
}

// parseInt accepts every CUE integer form: separators, 0x/0o/0b prefixes
// and multipliers such as 1Ki.
func parseInt(s string) (int64, error) {
	var info literal.NumInfo
	if err := literal.ParseNum(s, &info); err != nil {
		return 0, err
	}
	if !info.IsInt() {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	n, ok := new(big.Int).SetString(info.String(), 10)
	if !ok || !n.IsInt64() {
		return 0, fmt.Errorf("integer %s out of range", s)
	}
	return n.Int64(), nil
}

// qualifiedName flattens P.x into "P.x".
func qualifiedName(n *ast.SelectorExpr) (string, error) {
	owner, ok := n.X.(*ast.Ident)
	if !ok {
		return "", exprErr(n, "only names of the form P.x may be selected")
	}
	sel, _, err := ast.LabelName(n.Sel)
	if err != nil {
		return "", exprErr(n, "%v", err)
	}
	return owner.Name + "." + sel, nil
}
