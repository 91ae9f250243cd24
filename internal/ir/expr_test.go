package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatExpression(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expression
		expected string
	}{
		{"literal int", IntLit(5), "5"},
		{"negative int", IntLit(-5), "-5"},
		{"string", StringLit("a\"b"), `"a\"b"`},
		{"bool", BoolLit(true), "true"},
		{"null", NullLit(), "null"},
		{"ref", Ref("a"), "a"},
		{"flat binary", Add(IntLit(5), IntLit(5)), "5 + 5"},
		{"nested binary", Add(Mul(Ref("a"), IntLit(2)), IntLit(1)), "(a * 2) + 1"},
		{"try", NewTry(Div(Ref("a"), Ref("b"))), "TRY(a / b)"},
		{"not", Not(And(Ref("p"), Ref("q"))), "!(p && q)"},
		{"neg", Neg(Ref("a")), "-a"},
		{"call", NewCall("concat", Ref("a"), StringLit("x")), `concat(a, "x")`},
		{"call no args", NewCall("now"), "now()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatExpression(tt.expr))
			assert.Equal(t, tt.expected, tt.expr.String())
		})
	}
}

func TestEqual(t *testing.T) {
	a := Add(Mul(Ref("a"), IntLit(2)), NewTry(NewCall("f", Ref("b"))))
	b := Add(Mul(Ref("a"), IntLit(2)), NewTry(NewCall("f", Ref("b"))))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, Add(Mul(Ref("a"), IntLit(3)), NewTry(NewCall("f", Ref("b"))))))
	assert.False(t, Equal(Ref("a"), IntLit(1)))
	assert.False(t, Equal(IntLit(1), StringLit("1")))
	assert.True(t, Equal(NullLit(), NullLit()))
	assert.False(t, Equal(NewCall("f", Ref("a")), NewCall("f")))
}

func TestChildrenRoundTrip(t *testing.T) {
	exprs := []Expression{
		IntLit(1),
		Ref("a"),
		NewTry(Ref("a")),
		Add(Ref("a"), Ref("b")),
		Not(Ref("p")),
		NewCall("f", Ref("a"), Ref("b"), Ref("c")),
	}

	for _, e := range exprs {
		rebuilt := WithChildren(e, Children(e))
		assert.True(t, Equal(e, rebuilt), "WithChildren(Children(%s)) must be equal", e)
	}
}

func TestIsReferenceTo(t *testing.T) {
	assert.True(t, IsReferenceTo(Ref("a"), Symbol("a")))
	assert.False(t, IsReferenceTo(Ref("a"), Symbol("b")))
	assert.False(t, IsReferenceTo(NewTry(Ref("a")), Symbol("a")))
}
