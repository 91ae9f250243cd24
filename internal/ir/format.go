package ir

import "strings"

// FormatExpression renders e in the expression syntax accepted by the plan
// compiler. Nested binary operands are always parenthesized, so the output
// never depends on operator precedence:
//
//	(a * 2) + 1
//	TRY(x / y)
//	!(a && b)
func FormatExpression(e Expression) string {
	var sb strings.Builder
	writeExpression(&sb, e)
	return sb.String()
}

func (e *Literal) String() string   { return FormatExpression(e) }
func (e *SymbolRef) String() string { return FormatExpression(e) }
func (e *Try) String() string       { return FormatExpression(e) }
func (e *Binary) String() string    { return FormatExpression(e) }
func (e *Unary) String() string     { return FormatExpression(e) }
func (e *Call) String() string      { return FormatExpression(e) }

func writeExpression(sb *strings.Builder, e Expression) {
	switch n := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Literal:
		sb.WriteString(FormatValue(n.Value))
	case *SymbolRef:
		sb.WriteString(string(n.Symbol))
	case *Try:
		sb.WriteString("TRY(")
		writeExpression(sb, n.Inner)
		sb.WriteByte(')')
	case *Binary:
		writeOperand(sb, n.Left)
		sb.WriteByte(' ')
		sb.WriteString(string(n.Op))
		sb.WriteByte(' ')
		writeOperand(sb, n.Right)
	case *Unary:
		sb.WriteString(string(n.Op))
		writeOperand(sb, n.Operand)
	case *Call:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeExpression(sb, arg)
		}
		sb.WriteByte(')')
	}
}

// writeOperand parenthesizes operands that are themselves operator
// applications.
func writeOperand(sb *strings.Builder, e Expression) {
	switch e.(type) {
	case *Binary, *Unary:
		sb.WriteByte('(')
		writeExpression(sb, e)
		sb.WriteByte(')')
	default:
		writeExpression(sb, e)
	}
}
