package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionEncodingDeterminism(t *testing.T) {
	build := func() Expression {
		return Add(Mul(Ref("a"), IntLit(2)), IntLit(1))
	}

	fp1, err := Fingerprint(DomainExpression, EncodeExpression(build()))
	require.NoError(t, err)
	fp2, err := Fingerprint(DomainExpression, EncodeExpression(build()))
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "structurally equal expressions must hash equally")
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestExpressionEncodingChangesWithStructure(t *testing.T) {
	base := MustFingerprint(DomainExpression, EncodeExpression(Add(Ref("a"), IntLit(1))))

	variants := []Expression{
		Add(Ref("b"), IntLit(1)),
		Add(Ref("a"), IntLit(2)),
		Sub(Ref("a"), IntLit(1)),
		Add(IntLit(1), Ref("a")),
		NewTry(Add(Ref("a"), IntLit(1))),
	}
	for _, v := range variants {
		fp := MustFingerprint(DomainExpression, EncodeExpression(v))
		assert.NotEqual(t, base, fp, "fingerprint of %s must differ", v)
	}
}

func TestFingerprintDomainSeparation(t *testing.T) {
	obj := Object{"kind": String("ref"), "symbol": String("a")}

	exprFP := MustFingerprint(DomainExpression, obj)
	planFP := MustFingerprint(DomainPlan, obj)

	assert.NotEqual(t, exprFP, planFP, "different domains must produce different fingerprints")
}
