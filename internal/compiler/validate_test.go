package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/testutil"
)

func TestValidate_ValidPlan(t *testing.T) {
	root := testutil.Project("p1", testutil.Scan("s", "t", "a"), testutil.Assign("x", ir.Add(ir.Ref("a"), ir.IntLit(1))))
	assert.Empty(t, Validate(root, nil))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	root := testutil.Project("p2",
		testutil.Project("p1", testutil.Values("v", []string{"a"}, testutil.Row(1, 2)), testutil.Assign("x", ir.Ref("a"))),
		testutil.Assign("y", ir.Ref("z")),
	)

	errs := Validate(root, map[plan.NodeID]int{"p2": 3, "v": 9})
	require.Len(t, errs, 2)

	assert.Equal(t, ErrUnresolvedSymbol, errs[0].Code)
	assert.Equal(t, plan.NodeID("p2"), errs[0].Node)
	assert.Equal(t, "nodes.p2.z", errs[0].Field)
	assert.Equal(t, 3, errs[0].Line)

	assert.Equal(t, ErrRowWidth, errs[1].Code)
	assert.Equal(t, "nodes.v", errs[1].Field)
	assert.Equal(t, 9, errs[1].Line)
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "nodes.p1.b", Message: "missing", Code: ErrUnresolvedSymbol}
	assert.Equal(t, "[E120] nodes.p1.b: missing", err.Error())

	err.Line = 4
	assert.Equal(t, "[E120] line 4: nodes.p1.b: missing", err.Error())
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		want     ir.Type
		wantCode string
	}{
		{"", ir.TypeUnknown, ""},
		{"bigint", ir.TypeBigint, ""},
		{"Boolean", ir.TypeBoolean, ""},
		{" varchar ", ir.TypeVarchar, ""},
		{"double", "", ErrFloatTypeForbidden},
		{"real", "", ErrFloatTypeForbidden},
		{"json", "", ErrInvalidFieldType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, code, err := parseType(tt.name)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantCode != "" {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferType(t *testing.T) {
	syms := plan.NewSymbolAllocator()
	require.NoError(t, syms.Declare("a", ir.TypeBigint))
	require.NoError(t, syms.Declare("s", ir.TypeVarchar))

	tests := []struct {
		name string
		expr ir.Expression
		want ir.Type
	}{
		{"int literal", ir.IntLit(1), ir.TypeBigint},
		{"string literal", ir.StringLit("x"), ir.TypeVarchar},
		{"bool literal", ir.BoolLit(true), ir.TypeBoolean},
		{"null", ir.NullLit(), ir.TypeUnknown},
		{"declared ref", ir.Ref("s"), ir.TypeVarchar},
		{"undeclared ref", ir.Ref("zz"), ir.TypeUnknown},
		{"arithmetic", ir.Mul(ir.Ref("a"), ir.IntLit(2)), ir.TypeBigint},
		{"comparison", ir.Eq(ir.Ref("a"), ir.IntLit(2)), ir.TypeBoolean},
		{"logical", ir.And(ir.BoolLit(true), ir.BoolLit(false)), ir.TypeBoolean},
		{"negation", ir.Neg(ir.Ref("a")), ir.TypeBigint},
		{"not", ir.Not(ir.Ref("a")), ir.TypeBoolean},
		{"try", ir.NewTry(ir.Ref("s")), ir.TypeVarchar},
		{"call", ir.NewCall("f", ir.Ref("a")), ir.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.expr, syms))
		})
	}
}
