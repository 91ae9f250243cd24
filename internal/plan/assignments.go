package plan

import (
	"github.com/roach88/projmerge/internal/ir"
)

// Assignment binds one output symbol to the expression computing it.
type Assignment struct {
	Symbol     ir.Symbol
	Expression ir.Expression
}

// IsIdentity reports whether the assignment is a pass-through (s := s).
func (a Assignment) IsIdentity() bool {
	return ir.IsReferenceTo(a.Expression, a.Symbol)
}

// Assignments is the ordered symbol-to-expression mapping owned by a
// projection. Output symbols are unique. The zero value is empty.
//
// Assignments is immutable once built; use AssignmentsBuilder to create one.
type Assignments struct {
	entries []Assignment
	index   map[ir.Symbol]int
}

// Len returns the number of assignments.
func (a Assignments) Len() int {
	return len(a.entries)
}

// Get returns the expression bound to s.
func (a Assignments) Get(s ir.Symbol) (ir.Expression, bool) {
	i, ok := a.index[s]
	if !ok {
		return nil, false
	}
	return a.entries[i].Expression, true
}

// Contains reports whether s is an output of the assignments.
func (a Assignments) Contains(s ir.Symbol) bool {
	_, ok := a.index[s]
	return ok
}

// Symbols returns the output symbols in assignment order.
func (a Assignments) Symbols() []ir.Symbol {
	out := make([]ir.Symbol, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Symbol
	}
	return out
}

// Expressions returns the expressions in assignment order.
func (a Assignments) Expressions() []ir.Expression {
	out := make([]ir.Expression, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Expression
	}
	return out
}

// Entries returns a copy of the (symbol, expression) pairs in order.
func (a Assignments) Entries() []Assignment {
	out := make([]Assignment, len(a.entries))
	copy(out, a.entries)
	return out
}

// IsIdentity reports whether s is bound to a bare reference to itself.
// Symbols that are not outputs are not identities.
func (a Assignments) IsIdentity(s ir.Symbol) bool {
	e, ok := a.Get(s)
	return ok && ir.IsReferenceTo(e, s)
}

// IsIdentityProjection reports whether every assignment is an identity.
func (a Assignments) IsIdentityProjection() bool {
	for _, e := range a.entries {
		if !e.IsIdentity() {
			return false
		}
	}
	return true
}

// Filter returns the ordered sub-map of assignments for which keep is true.
func (a Assignments) Filter(keep func(ir.Symbol, ir.Expression) bool) Assignments {
	b := NewAssignmentsBuilder()
	for _, e := range a.entries {
		if keep(e.Symbol, e.Expression) {
			b.Put(e.Symbol, e.Expression)
		}
	}
	return b.Build()
}

// Rewrite returns assignments with every expression replaced by fn(expr).
// Symbols and their order are preserved.
func (a Assignments) Rewrite(fn func(ir.Expression) ir.Expression) Assignments {
	b := NewAssignmentsBuilder()
	for _, e := range a.entries {
		b.Put(e.Symbol, fn(e.Expression))
	}
	return b.Build()
}

// Equal reports whether two assignments bind the same symbols, in the same
// order, to structurally equal expressions.
func (a Assignments) Equal(other Assignments) bool {
	if len(a.entries) != len(other.entries) {
		return false
	}
	for i, e := range a.entries {
		o := other.entries[i]
		if e.Symbol != o.Symbol || !ir.Equal(e.Expression, o.Expression) {
			return false
		}
	}
	return true
}

// AssignmentsBuilder accumulates assignments in insertion order.
type AssignmentsBuilder struct {
	entries []Assignment
	index   map[ir.Symbol]int
}

// NewAssignmentsBuilder creates an empty builder.
func NewAssignmentsBuilder() *AssignmentsBuilder {
	return &AssignmentsBuilder{index: make(map[ir.Symbol]int)}
}

// Put binds s to expr.
//
// Putting a symbol that is already bound to a structurally equal expression
// is a no-op. Binding it to a different expression panics with a
// *DuplicateAssignmentError: output symbols must be unique.
func (b *AssignmentsBuilder) Put(s ir.Symbol, expr ir.Expression) *AssignmentsBuilder {
	if i, ok := b.index[s]; ok {
		existing := b.entries[i].Expression
		if !ir.Equal(existing, expr) {
			panic(&DuplicateAssignmentError{
				Symbol:   string(s),
				Existing: ir.FormatExpression(existing),
				New:      ir.FormatExpression(expr),
			})
		}
		return b
	}
	b.index[s] = len(b.entries)
	b.entries = append(b.entries, Assignment{Symbol: s, Expression: expr})
	return b
}

// PutIdentity binds s to a reference to itself.
func (b *AssignmentsBuilder) PutIdentity(s ir.Symbol) *AssignmentsBuilder {
	return b.Put(s, s.Ref())
}

// PutAll adds every assignment of a, in order.
func (b *AssignmentsBuilder) PutAll(a Assignments) *AssignmentsBuilder {
	for _, e := range a.entries {
		b.Put(e.Symbol, e.Expression)
	}
	return b
}

// Build returns the accumulated assignments. The builder may keep being
// used; later puts do not affect the returned value.
func (b *AssignmentsBuilder) Build() Assignments {
	entries := make([]Assignment, len(b.entries))
	copy(entries, b.entries)
	index := make(map[ir.Symbol]int, len(b.index))
	for s, i := range b.index {
		index[s] = i
	}
	return Assignments{entries: entries, index: index}
}

// AssignmentsOf builds assignments from pairs, in order.
func AssignmentsOf(pairs ...Assignment) Assignments {
	b := NewAssignmentsBuilder()
	for _, p := range pairs {
		b.Put(p.Symbol, p.Expression)
	}
	return b.Build()
}

// Identities builds identity assignments for symbols, in order.
func Identities(symbols ...ir.Symbol) Assignments {
	b := NewAssignmentsBuilder()
	for _, s := range symbols {
		b.PutIdentity(s)
	}
	return b.Build()
}
