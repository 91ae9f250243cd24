package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
)

// parseType validates a declared type name. The empty string means the
// type is left to inference.
func parseType(name string) (ir.Type, string, error) {
	switch t := ir.Type(strings.ToLower(strings.TrimSpace(name))); t {
	case ir.TypeUnknown, ir.TypeBigint, ir.TypeVarchar, ir.TypeBoolean:
		return t, "", nil
	case "double", "real", "float", "decimal":
		return "", ErrFloatTypeForbidden, fmt.Errorf("float type %q is forbidden, use bigint instead", name)
	default:
		return "", ErrInvalidFieldType, fmt.Errorf("invalid type %q, must be bigint, varchar or boolean", name)
	}
}

// inferType derives the type of e from its literals, operators and the
// types already declared in syms. Calls and NULL are unknown.
func inferType(e ir.Expression, syms *plan.SymbolAllocator) ir.Type {
	switch n := e.(type) {
	case *ir.Literal:
		return valueType(n.Value)
	case *ir.SymbolRef:
		t, _ := syms.TypeOf(n.Symbol)
		return t
	case *ir.Try:
		return inferType(n.Inner, syms)
	case *ir.Binary:
		switch n.Op {
		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv:
			return ir.TypeBigint
		default:
			return ir.TypeBoolean
		}
	case *ir.Unary:
		if n.Op == ir.OpNot {
			return ir.TypeBoolean
		}
		return ir.TypeBigint
	default:
		return ir.TypeUnknown
	}
}

func valueType(v ir.Value) ir.Type {
	switch v.(type) {
	case ir.Int:
		return ir.TypeBigint
	case ir.String:
		return ir.TypeVarchar
	case ir.Bool:
		return ir.TypeBoolean
	default:
		return ir.TypeUnknown
	}
}
