package ir

// Symbol is an opaque, uniquely named reference to a computed value.
//
// Symbols compare by name. The symbol allocator guarantees names are unique
// within a plan, so two symbols with the same name are the same symbol.
// Semantic types are tracked by the allocator (plan.SymbolAllocator.TypeOf),
// not by the symbol itself.
type Symbol string

// Name returns the symbol's name.
func (s Symbol) Name() string {
	return string(s)
}

// Ref returns a bare reference expression to s.
func (s Symbol) Ref() *SymbolRef {
	return &SymbolRef{Symbol: s}
}

// Type names a semantic type ("bigint", "varchar", "boolean", ...).
// The zero value means the type is unknown.
type Type string

// Well-known types used by the compiler when a literal's type is inferred.
const (
	TypeUnknown Type = ""
	TypeBigint  Type = "bigint"
	TypeVarchar Type = "varchar"
	TypeBoolean Type = "boolean"
)
