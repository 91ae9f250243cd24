package exprs

import (
	"slices"
	"strings"

	"github.com/roach88/projmerge/internal/ir"
)

// SymbolSet is a set of symbols that remembers insertion order.
// The zero value is an empty set ready to use.
type SymbolSet struct {
	order []ir.Symbol
	index map[ir.Symbol]struct{}
}

// MakeSymbolSet returns a set initialized with the given symbols.
func MakeSymbolSet(symbols ...ir.Symbol) SymbolSet {
	var s SymbolSet
	for _, sym := range symbols {
		s.Add(sym)
	}
	return s
}

// Add adds sym to the set. No-op if sym is already present.
func (s *SymbolSet) Add(sym ir.Symbol) {
	if s.index == nil {
		s.index = make(map[ir.Symbol]struct{})
	}
	if _, ok := s.index[sym]; ok {
		return
	}
	s.index[sym] = struct{}{}
	s.order = append(s.order, sym)
}

// UnionWith adds every member of other, in other's order.
func (s *SymbolSet) UnionWith(other SymbolSet) {
	for _, sym := range other.order {
		s.Add(sym)
	}
}

// Contains reports whether sym is in the set.
func (s SymbolSet) Contains(sym ir.Symbol) bool {
	_, ok := s.index[sym]
	return ok
}

// Len returns the number of members.
func (s SymbolSet) Len() int {
	return len(s.order)
}

// Empty reports whether the set has no members.
func (s SymbolSet) Empty() bool {
	return len(s.order) == 0
}

// Ordered returns the members in insertion order.
func (s SymbolSet) Ordered() []ir.Symbol {
	return slices.Clone(s.order)
}

// Sorted returns the members sorted by name.
func (s SymbolSet) Sorted() []ir.Symbol {
	out := slices.Clone(s.order)
	slices.Sort(out)
	return out
}

// Union returns a new set with the members of s followed by those of other.
func (s SymbolSet) Union(other SymbolSet) SymbolSet {
	var out SymbolSet
	out.UnionWith(s)
	out.UnionWith(other)
	return out
}

// Intersection returns the members of s that are also in other, in s's
// order.
func (s SymbolSet) Intersection(other SymbolSet) SymbolSet {
	var out SymbolSet
	for _, sym := range s.order {
		if other.Contains(sym) {
			out.Add(sym)
		}
	}
	return out
}

// Difference returns the members of s that are not in other, in s's order.
func (s SymbolSet) Difference(other SymbolSet) SymbolSet {
	var out SymbolSet
	for _, sym := range s.order {
		if !other.Contains(sym) {
			out.Add(sym)
		}
	}
	return out
}

// SubsetOf reports whether every member of s is in other.
func (s SymbolSet) SubsetOf(other SymbolSet) bool {
	for _, sym := range s.order {
		if !other.Contains(sym) {
			return false
		}
	}
	return true
}

// String returns the members in insertion order, e.g. "(a, b)".
func (s SymbolSet) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, sym := range s.order {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(sym))
	}
	sb.WriteByte(')')
	return sb.String()
}
