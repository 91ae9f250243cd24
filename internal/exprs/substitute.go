package exprs

import "github.com/roach88/projmerge/internal/ir"

// Inline replaces every symbol reference s in e for which mapping(s) is
// non-nil by mapping(s). References mapped to nil are left alone.
//
// Exactly one pass is made: the replacement expressions are not
// themselves rewritten. Subtrees with no replaced reference are returned
// as-is and shared with e; only changed spines are rebuilt.
func Inline(e ir.Expression, mapping func(ir.Symbol) ir.Expression) ir.Expression {
	if ref, ok := e.(*ir.SymbolRef); ok {
		if replacement := mapping(ref.Symbol); replacement != nil {
			return replacement
		}
		return e
	}

	children := ir.Children(e)
	if len(children) == 0 {
		return e
	}

	var rewritten []ir.Expression
	for i, child := range children {
		next := Inline(child, mapping)
		if next != child && rewritten == nil {
			rewritten = make([]ir.Expression, len(children))
			copy(rewritten, children[:i])
		}
		if rewritten != nil {
			rewritten[i] = next
		}
	}
	if rewritten == nil {
		return e
	}
	return ir.WithChildren(e, rewritten)
}

// Substitute replaces each reference to a symbol in bindings with the
// bound expression. It is Inline over a map.
func Substitute(e ir.Expression, bindings map[ir.Symbol]ir.Expression) ir.Expression {
	if len(bindings) == 0 {
		return e
	}
	return Inline(e, func(s ir.Symbol) ir.Expression {
		return bindings[s]
	})
}
