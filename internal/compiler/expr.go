package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/projmerge/internal/ir"
)

// tryFunction is the call name that introduces an effect boundary.
const tryFunction = "TRY"

var binaryOps = map[token.Token]ir.BinaryOp{
	token.ADD:  ir.OpAdd,
	token.SUB:  ir.OpSub,
	token.MUL:  ir.OpMul,
	token.QUO:  ir.OpDiv,
	token.EQL:  ir.OpEq,
	token.NEQ:  ir.OpNe,
	token.LSS:  ir.OpLt,
	token.LEQ:  ir.OpLe,
	token.GTR:  ir.OpGt,
	token.GEQ:  ir.OpGe,
	token.LAND: ir.OpAnd,
	token.LOR:  ir.OpOr,
}

// ParseExpression parses src, written in CUE expression syntax, into an
// expression tree. Bare identifiers are symbol references; TRY(x) is the
// effect boundary; any other call is a scalar function call.
//
//	(a * 2) + 1
//	TRY(x / y)
//	concat("id-", name)
//
// Floats are rejected. The output of ir.FormatExpression always parses
// back to an equal tree.
func ParseExpression(src string) (ir.Expression, error) {
	node, err := parser.ParseExpr("expression", src)
	if err != nil {
		return nil, err
	}
	return convertExpr(node)
}

func convertExpr(node ast.Expr) (ir.Expression, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		return convertLiteral(n, false)
	case *ast.Ident:
		switch n.Name {
		case "true":
			return ir.BoolLit(true), nil
		case "false":
			return ir.BoolLit(false), nil
		case "null":
			return ir.NullLit(), nil
		}
		return ir.Ref(n.Name), nil
	case *ast.ParenExpr:
		return convertExpr(n.X)
	case *ast.UnaryExpr:
		return convertUnary(n)
	case *ast.BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %s", n.Op)
		}
		left, err := convertExpr(n.X)
		if err != nil {
			return nil, err
		}
		right, err := convertExpr(n.Y)
		if err != nil {
			return nil, err
		}
		return ir.NewBinary(op, left, right), nil
	case *ast.CallExpr:
		return convertCall(n)
	default:
		return nil, fmt.Errorf("unsupported expression syntax %T", node)
	}
}

func convertUnary(n *ast.UnaryExpr) (ir.Expression, error) {
	switch n.Op {
	case token.SUB:
		// -5 is a literal, not a negation of 5.
		if lit, ok := n.X.(*ast.BasicLit); ok && lit.Kind == token.INT {
			return convertLiteral(lit, true)
		}
		operand, err := convertExpr(n.X)
		if err != nil {
			return nil, err
		}
		return ir.Neg(operand), nil
	case token.NOT:
		operand, err := convertExpr(n.X)
		if err != nil {
			return nil, err
		}
		return ir.Not(operand), nil
	case token.ADD:
		return convertExpr(n.X)
	default:
		return nil, fmt.Errorf("unsupported unary operator %s", n.Op)
	}
}

func convertCall(n *ast.CallExpr) (ir.Expression, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("function name must be an identifier, got %T", n.Fun)
	}

	args := make([]ir.Expression, len(n.Args))
	for i, arg := range n.Args {
		converted, err := convertExpr(arg)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", fn.Name, i, err)
		}
		args[i] = converted
	}

	if fn.Name == tryFunction {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes exactly one argument, got %d", tryFunction, len(args))
		}
		return ir.NewTry(args[0]), nil
	}
	return ir.NewCall(fn.Name, args...), nil
}

func convertLiteral(lit *ast.BasicLit, negate bool) (ir.Expression, error) {
	switch lit.Kind {
	case token.INT:
		n, err := parseInt(lit.Value, negate)
		if err != nil {
			return nil, err
		}
		return ir.IntLit(n), nil
	case token.FLOAT:
		return nil, fmt.Errorf("float literal %s is forbidden, use an integer", lit.Value)
	case token.STRING:
		s, err := literal.Unquote(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid string literal %s: %w", lit.Value, err)
		}
		return ir.StringLit(s), nil
	case token.TRUE:
		return ir.BoolLit(true), nil
	case token.FALSE:
		return ir.BoolLit(false), nil
	case token.NULL:
		return ir.NullLit(), nil
	default:
		return nil, fmt.Errorf("unsupported literal %s", lit.Value)
	}
}

// parseInt accepts every CUE integer spelling (0x1f, 1_000, 2Ki) that fits
// in an int64. The sign is applied before range checking so that the
// minimum int64 parses.
func parseInt(src string, negate bool) (int64, error) {
	var info literal.NumInfo
	if err := literal.ParseNum(src, &info); err != nil {
		return 0, fmt.Errorf("invalid integer literal %s: %w", src, err)
	}
	if !info.IsInt() {
		return 0, fmt.Errorf("float literal %s is forbidden, use an integer", src)
	}

	digits := info.String()
	if negate {
		digits = "-" + digits
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("integer literal %s out of range", src)
	}
	return n, nil
}
