package ir

// Constructors for building expressions in code and tests.

// Lit wraps a value in a literal.
func Lit(v Value) *Literal {
	return &Literal{Value: v}
}

// IntLit is a literal integer.
func IntLit(n int64) *Literal {
	return &Literal{Value: Int(n)}
}

// StringLit is a literal string.
func StringLit(s string) *Literal {
	return &Literal{Value: String(s)}
}

// BoolLit is a literal boolean.
func BoolLit(b bool) *Literal {
	return &Literal{Value: Bool(b)}
}

// NullLit is the NULL literal.
func NullLit() *Literal {
	return &Literal{Value: Null{}}
}

// Ref is a reference to the symbol with the given name.
func Ref(name string) *SymbolRef {
	return &SymbolRef{Symbol: Symbol(name)}
}

// NewBinary builds a binary expression.
func NewBinary(op BinaryOp, left, right Expression) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Add builds left + right.
func Add(left, right Expression) *Binary { return NewBinary(OpAdd, left, right) }

// Sub builds left - right.
func Sub(left, right Expression) *Binary { return NewBinary(OpSub, left, right) }

// Mul builds left * right.
func Mul(left, right Expression) *Binary { return NewBinary(OpMul, left, right) }

// Div builds left / right.
func Div(left, right Expression) *Binary { return NewBinary(OpDiv, left, right) }

// Eq builds left == right.
func Eq(left, right Expression) *Binary { return NewBinary(OpEq, left, right) }

// And builds left && right.
func And(left, right Expression) *Binary { return NewBinary(OpAnd, left, right) }

// Not builds !operand.
func Not(operand Expression) *Unary {
	return &Unary{Op: OpNot, Operand: operand}
}

// Neg builds -operand.
func Neg(operand Expression) *Unary {
	return &Unary{Op: OpNeg, Operand: operand}
}

// NewTry wraps inner in an effect boundary.
func NewTry(inner Expression) *Try {
	return &Try{Inner: inner}
}

// NewCall builds a function call.
func NewCall(name string, args ...Expression) *Call {
	return &Call{Name: name, Args: args}
}
