package ir

// Expression is an immutable expression tree over symbols.
//
// This is a sealed interface - only types in this package implement it.
// Backends and rewrites switch over the concrete types exhaustively:
//
//	switch e := expr.(type) {
//	case *Literal:
//	case *SymbolRef:
//	case *Try:
//	case *Binary:
//	case *Unary:
//	case *Call:
//	}
//
// Expressions are never mutated after construction. Rewrites build new
// spines and share unchanged subtrees.
type Expression interface {
	exprNode()
	String() string
}

// Literal is a constant value.
type Literal struct {
	Value Value
}

func (*Literal) exprNode() {}

// SymbolRef is a reference to a symbol produced by a source.
type SymbolRef struct {
	Symbol Symbol
}

func (*SymbolRef) exprNode() {}

// Try is the effect boundary. A runtime failure raised while evaluating
// Inner is suppressed (the expression yields NULL) instead of failing the
// query. Moving a computation into or out of a Try changes which errors
// are observed.
type Try struct {
	Inner Expression
}

func (*Try) exprNode() {}

// BinaryOp is a binary operator.
type BinaryOp string

// Binary operators. The spellings match the expression syntax accepted by
// the plan compiler.
const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
)

// Binary applies a binary operator to two operands.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (*Binary) exprNode() {}

// UnaryOp is a unary operator.
type UnaryOp string

// Unary operators.
const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "!"
)

// Unary applies a unary operator to one operand.
type Unary struct {
	Op      UnaryOp
	Operand Expression
}

func (*Unary) exprNode() {}

// Call is a scalar function call.
type Call struct {
	Name string
	Args []Expression
}

func (*Call) exprNode() {}

// Children returns the direct sub-expressions of e in evaluation order.
// The returned slice must not be modified.
func Children(e Expression) []Expression {
	switch n := e.(type) {
	case *Try:
		return []Expression{n.Inner}
	case *Binary:
		return []Expression{n.Left, n.Right}
	case *Unary:
		return []Expression{n.Operand}
	case *Call:
		return n.Args
	default:
		return nil
	}
}

// WithChildren returns a copy of e with its direct sub-expressions replaced.
// children must have the same length as Children(e). Leaves are returned
// unchanged.
func WithChildren(e Expression, children []Expression) Expression {
	switch n := e.(type) {
	case *Try:
		return &Try{Inner: children[0]}
	case *Binary:
		return &Binary{Op: n.Op, Left: children[0], Right: children[1]}
	case *Unary:
		return &Unary{Op: n.Op, Operand: children[0]}
	case *Call:
		args := make([]Expression, len(children))
		copy(args, children)
		return &Call{Name: n.Name, Args: args}
	default:
		return e
	}
}

// Equal reports whether two expressions are structurally equal.
func Equal(a, b Expression) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *Literal:
		y, ok := b.(*Literal)
		return ok && ValueEqual(x.Value, y.Value)
	case *SymbolRef:
		y, ok := b.(*SymbolRef)
		return ok && x.Symbol == y.Symbol
	case *Try:
		y, ok := b.(*Try)
		return ok && Equal(x.Inner, y.Inner)
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsReferenceTo reports whether e is a bare reference to s.
func IsReferenceTo(e Expression, s Symbol) bool {
	ref, ok := e.(*SymbolRef)
	return ok && ref.Symbol == s
}
