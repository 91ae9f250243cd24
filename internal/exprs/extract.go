package exprs

import "github.com/roach88/projmerge/internal/ir"

// FreeSymbols returns every symbol referenced anywhere in e, including
// references nested inside TRY boundaries, in order of first occurrence.
func FreeSymbols(e ir.Expression) SymbolSet {
	var out SymbolSet
	PreOrder(e, func(n ir.Expression) bool {
		if ref, ok := n.(*ir.SymbolRef); ok {
			out.Add(ref.Symbol)
		}
		return true
	})
	return out
}

// FreeSymbolsOf returns the union of FreeSymbols over exprs, in order.
func FreeSymbolsOf(exprs []ir.Expression) SymbolSet {
	var out SymbolSet
	for _, e := range exprs {
		out.UnionWith(FreeSymbols(e))
	}
	return out
}

// SymbolOccurrences returns one entry per symbol reference in e, in
// pre-order. A symbol referenced twice appears twice.
func SymbolOccurrences(e ir.Expression) []ir.Symbol {
	var out []ir.Symbol
	PreOrder(e, func(n ir.Expression) bool {
		if ref, ok := n.(*ir.SymbolRef); ok {
			out = append(out, ref.Symbol)
		}
		return true
	})
	return out
}

// TryBoundSymbols returns the union of the free symbols of every TRY
// sub-expression of e. A computation bound to one of these symbols must
// not be moved inside the boundary: a failure it raises would be
// suppressed instead of observed.
func TryBoundSymbols(e ir.Expression) SymbolSet {
	var out SymbolSet
	PreOrder(e, func(n ir.Expression) bool {
		if try, ok := n.(*ir.Try); ok {
			out.UnionWith(FreeSymbols(try))
		}
		return true
	})
	return out
}

// IsConstant reports whether e is a literal.
func IsConstant(e ir.Expression) bool {
	_, ok := e.(*ir.Literal)
	return ok
}
