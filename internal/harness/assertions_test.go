package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Rule: "InlineProjections", Group: 4, Node: "p3"},
		{Seq: 2, Rule: "InlineProjections", Group: 5, Node: "p2"},
		{Seq: 3, Rule: "RemoveIdentityProjections", Group: 6, Node: "p1"},
	}
}

// flattened is the fully inlined three-level stack.
func flattened() plan.PlanNode {
	return testutil.Project("p3", testutil.Scan("s", "t", "a"),
		testutil.Assign("d", ir.Mul(ir.Add(ir.Mul(ir.Ref("a"), ir.IntLit(2)), ir.IntLit(1)), ir.IntLit(3))),
	)
}

// stacked is the three-level stack before optimization.
func stacked() plan.PlanNode {
	p1 := testutil.Project("p1", testutil.Scan("s", "t", "a"), testutil.Assign("b", ir.Mul(ir.Ref("a"), ir.IntLit(2))))
	p2 := testutil.Project("p2", p1, testutil.Assign("c", ir.Add(ir.Ref("b"), ir.IntLit(1))))
	return testutil.Project("p3", p2, testutil.Assign("d", ir.Mul(ir.Ref("c"), ir.IntLit(3))))
}

func requireAssertionError(t *testing.T, err error) *AssertionError {
	t.Helper()
	require.Error(t, err)
	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr), "expected *AssertionError, got %T: %v", err, err)
	return assertErr
}

func TestAssertFired_Exact(t *testing.T) {
	err := assertFired(sampleTrace(), Assertion{Type: AssertFired, Rule: "InlineProjections", Count: 2})
	assert.NoError(t, err)
}

func TestAssertFired_Zero(t *testing.T) {
	err := assertFired(sampleTrace(), Assertion{Type: AssertFired, Rule: "PruneProjectColumns", Count: 0})
	assert.NoError(t, err)
}

func TestAssertFired_WrongCount(t *testing.T) {
	err := assertFired(sampleTrace(), Assertion{Type: AssertFired, Rule: "RemoveIdentityProjections", Count: 2})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, AssertFired, assertErr.Type)
	assert.Equal(t, "2 firings of RemoveIdentityProjections", assertErr.Expected)
	assert.Equal(t, "1 firings", assertErr.Actual)
	assert.Len(t, assertErr.Trace, 3)
}

func TestAssertAssignment_Match(t *testing.T) {
	err := assertAssignment(flattened(), nil, Assertion{Node: "p3", Symbol: "d", Expr: "((a * 2) + 1) * 3"})
	assert.NoError(t, err)
}

func TestAssertAssignment_PrecedenceInsensitive(t *testing.T) {
	// Structural comparison: redundant parentheses do not matter.
	err := assertAssignment(flattened(), nil, Assertion{Node: "p3", Symbol: "d", Expr: "(a * 2 + 1) * 3"})
	assert.NoError(t, err)
}

func TestAssertAssignment_Mismatch(t *testing.T) {
	err := assertAssignment(stacked(), sampleTrace(), Assertion{Node: "p3", Symbol: "d", Expr: "((a * 2) + 1) * 3"})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, AssertAssignment, assertErr.Type)
	assert.Equal(t, "p3 assigns d := ((a * 2) + 1) * 3", assertErr.Expected)
	assert.Equal(t, "p3 assigns d := c * 3", assertErr.Actual)
}

func TestAssertAssignment_MissingSymbol(t *testing.T) {
	err := assertAssignment(flattened(), nil, Assertion{Node: "p3", Symbol: "c", Expr: "b + 1"})
	assertErr := requireAssertionError(t, err)
	assert.Contains(t, assertErr.Actual, "p3 has no assignment for c")
	assert.Contains(t, assertErr.Actual, "[d]")
}

func TestAssertAssignment_NodeNotFound(t *testing.T) {
	err := assertAssignment(flattened(), nil, Assertion{Node: "p2", Symbol: "c", Expr: "b + 1"})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, "node p2 in the final plan", assertErr.Expected)
	assert.Contains(t, assertErr.Actual, "- Project[p3] => [d]")
}

func TestAssertAssignment_NotAProject(t *testing.T) {
	err := assertAssignment(flattened(), nil, Assertion{Node: "s", Symbol: "a", Expr: "a"})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, "s is a project", assertErr.Expected)
	assert.Equal(t, "s is a "+plan.Kind(testutil.Scan("s", "t", "a")), assertErr.Actual)
}

func TestAssertAssignment_InvalidExpr(t *testing.T) {
	err := assertAssignment(flattened(), nil, Assertion{Node: "p3", Symbol: "d", Expr: "a *"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expr")

	var assertErr *AssertionError
	assert.False(t, errors.As(err, &assertErr), "a malformed expr is a scenario error, not a failed assertion")
}

func TestAssertNoAssignment(t *testing.T) {
	assert.NoError(t, assertNoAssignment(flattened(), nil, Assertion{Node: "p3", Symbol: "c"}))

	err := assertNoAssignment(flattened(), nil, Assertion{Node: "p3", Symbol: "d"})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, "p3 does not assign d", assertErr.Expected)
	assert.Equal(t, "p3 assigns d := ((a * 2) + 1) * 3", assertErr.Actual)
}

func TestAssertOutputs(t *testing.T) {
	assert.NoError(t, assertOutputs(stacked(), nil, Assertion{Node: "p2", Symbols: []string{"c"}}))
	assert.NoError(t, assertOutputs(stacked(), nil, Assertion{Node: "s", Symbols: []string{"a"}}))

	err := assertOutputs(stacked(), nil, Assertion{Node: "p1", Symbols: []string{"a", "b"}})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, "p1 outputs [a, b]", assertErr.Expected)
	assert.Equal(t, "p1 outputs [b]", assertErr.Actual)

	err = assertOutputs(stacked(), nil, Assertion{Node: "missing", Symbols: []string{"a"}})
	requireAssertionError(t, err)
}

func TestAssertFinalPlan(t *testing.T) {
	result := NewResult()
	result.FinalPlan = plan.Format(flattened(), nil)

	text := "\n- Project[p3] => [d]\n    d := ((a * 2) + 1) * 3\n  - TableScan[s] table=t => [a]\n\n"
	assert.NoError(t, assertFinalPlan(result, Assertion{Text: text}))

	err := assertFinalPlan(result, Assertion{Text: "- Project[p3] => [d]\n    d := c * 3\n"})
	assertErr := requireAssertionError(t, err)
	assert.Equal(t, AssertFinalPlan, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "d := c * 3")
	assert.Contains(t, assertErr.Actual, "d := ((a * 2) + 1) * 3")
}

func TestAssertUnchanged(t *testing.T) {
	assert.NoError(t, assertUnchanged(NewResult()))

	result := NewResult()
	result.Trace = sampleTrace()
	result.Steps = 3
	assertErr := requireAssertionError(t, assertUnchanged(result))
	assert.Equal(t, "3 firings", assertErr.Actual)
}

func TestAssertEquivalent_SameRows(t *testing.T) {
	actx := &AssertionContext{
		Ctx:    context.Background(),
		Before: stacked(),
		Final:  flattened(),
		Tables: map[string]Table{
			"t": {Columns: []string{"a"}, Rows: [][]any{{1}, {4}, {-2}, {nil}}},
		},
	}
	assert.NoError(t, assertEquivalent(actx, nil))
}

func TestAssertEquivalent_DifferentRows(t *testing.T) {
	wrong := testutil.Project("p3", testutil.Scan("s", "t", "a"),
		testutil.Assign("d", ir.Mul(ir.Ref("a"), ir.IntLit(3))),
	)
	actx := &AssertionContext{
		Before: stacked(),
		Final:  wrong,
		Tables: map[string]Table{
			"t": {Columns: []string{"a"}, Rows: [][]any{{1}, {2}}},
		},
	}
	assertErr := requireAssertionError(t, assertEquivalent(actx, sampleTrace()))
	assert.Equal(t, AssertEquivalent, assertErr.Type)
	assert.Contains(t, assertErr.Expected, "same 2 rows")
	assert.Contains(t, assertErr.Actual, "rows differ")
}

func TestAssertEquivalent_ValuesWithoutTables(t *testing.T) {
	values := testutil.Values("v", []string{"n"}, testutil.Row(3), testutil.Row(4))
	before := testutil.Project("p2",
		testutil.Project("p1", values, testutil.Assign("m", ir.Add(ir.Ref("n"), ir.IntLit(1)))),
		testutil.Assign("r", ir.Mul(ir.Ref("m"), ir.IntLit(2))),
	)
	after := testutil.Project("p2", values, testutil.Assign("r", ir.Mul(ir.Add(ir.Ref("n"), ir.IntLit(1)), ir.IntLit(2))))

	assert.NoError(t, assertEquivalent(&AssertionContext{Before: before, Final: after}, nil))
}

func TestAssertEquivalent_TryThatMayFailIsNotCheckable(t *testing.T) {
	before := testutil.Project("p2",
		testutil.Project("p1", testutil.Scan("s", "t", "a"), testutil.Assign("x", ir.NewCall("abs", ir.Ref("a")))),
		testutil.Assign("y", ir.NewTry(ir.Ref("x"))),
	)
	after := testutil.Project("p2", testutil.Scan("s", "t", "a"),
		testutil.Assign("y", ir.NewTry(ir.NewCall("abs", ir.Ref("a")))),
	)
	actx := &AssertionContext{
		Before: before,
		Final:  after,
		Tables: map[string]Table{
			"t": {Columns: []string{"a"}, Rows: [][]any{{-3}, {5}}},
		},
	}

	assertErr := requireAssertionError(t, assertEquivalent(actx, sampleTrace()))
	assert.Equal(t, AssertEquivalent, assertErr.Type)
	assert.Contains(t, assertErr.Actual, "not checkable: final plan")
	assert.Contains(t, assertErr.Actual, "TRY(abs(a))")
}

func TestAssertEquivalent_InvalidTableName(t *testing.T) {
	actx := &AssertionContext{
		Before: stacked(),
		Final:  flattened(),
		Tables: map[string]Table{
			"t; DROP TABLE t": {Columns: []string{"a"}},
		},
	}
	err := assertEquivalent(actx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestAssertEquivalent_FloatRejected(t *testing.T) {
	actx := &AssertionContext{
		Before: stacked(),
		Final:  flattened(),
		Tables: map[string]Table{
			"t": {Columns: []string{"a"}, Rows: [][]any{{1.5}}},
		},
	}
	err := assertEquivalent(actx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables.t.rows[0][0]")
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestAssertError(t *testing.T) {
	result := NewResult()
	result.ErrorCode = "QUOTA_EXCEEDED"
	assert.NoError(t, assertError(result, Assertion{Code: "QUOTA_EXCEEDED"}))

	assertErr := requireAssertionError(t, assertError(result, Assertion{Code: "CYCLE_DETECTED"}))
	assert.Equal(t, "error CYCLE_DETECTED", assertErr.Expected)
	assert.Equal(t, "error QUOTA_EXCEEDED", assertErr.Actual)

	assertErr = requireAssertionError(t, assertError(NewResult(), Assertion{Code: "QUOTA_EXCEEDED"}))
	assert.Equal(t, "optimization succeeded", assertErr.Actual)
}

func TestToSQLValue_Types(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    any
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"string", "hello", "hello", false},
		{"int", 42, int64(42), false},
		{"int64", int64(7), int64(7), false},
		{"bool", true, true, false},
		{"integral float", float64(3), int64(3), false},
		{"fractional float", 3.5, nil, true},
		{"list", []any{1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toSQLValue(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Steps = 3
	result.FinalPlan = plan.Format(flattened(), nil)

	assertions := []Assertion{
		{Type: AssertFired, Rule: "InlineProjections", Count: 2},
		{Type: AssertAssignment, Node: "p3", Symbol: "d", Expr: "((a * 2) + 1) * 3"},
		{Type: AssertNoAssignment, Node: "p3", Symbol: "c"},
		{Type: AssertOutputs, Node: "p3", Symbols: []string{"d"}},
		{Type: AssertFinalPlan, Text: result.FinalPlan},
	}
	errs := EvaluateAssertions(result, assertions, &AssertionContext{Before: stacked(), Final: flattened()})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Steps = 3

	assertions := []Assertion{
		{Type: AssertFired, Rule: "InlineProjections", Count: 2},
		{Type: AssertUnchanged},
		{Type: AssertFired, Rule: "PruneProjectColumns", Count: 1},
	}
	errs := EvaluateAssertions(result, assertions, &AssertionContext{Before: stacked(), Final: flattened()})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: unchanged")
	assert.Contains(t, errs[1], "Assertion failed: fired")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "trace_contains"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `assertion[0]: unknown assertion type "trace_contains"`)
}

func TestEvaluateAssertions_UnexpectedRuntimeError(t *testing.T) {
	result := NewResult()
	result.ErrorCode = "QUOTA_EXCEEDED"

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFired, Rule: "InlineProjections", Count: 0},
		{Type: AssertOutputs, Node: "p3", Symbols: []string{"d"}},
	}, &AssertionContext{Before: stacked()})
	require.Len(t, errs, 2)
	assert.Equal(t, "optimization failed with QUOTA_EXCEEDED", errs[0])
	assert.Equal(t, "assertion[1]: outputs requires a final plan", errs[1])
}

func TestEvaluateAssertions_ExpectedRuntimeError(t *testing.T) {
	result := NewResult()
	result.ErrorCode = "QUOTA_EXCEEDED"

	errs := EvaluateAssertions(result, []Assertion{{Type: AssertError, Code: "QUOTA_EXCEEDED"}}, nil)
	assert.Empty(t, errs)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFired,
		Expected: "1 firings of PruneProjectColumns",
		Actual:   "0 firings",
		Trace:    sampleTrace()[:2],
	}

	want := "Assertion failed: fired\n" +
		"  Expected: 1 firings of PruneProjectColumns\n" +
		"  Actual: 0 firings\n" +
		"\nFull trace:\n" +
		"  [1] InlineProjections group=4 node=p3\n" +
		"  [2] InlineProjections group=5 node=p2\n"
	assert.Equal(t, want, err.Error())
}

func TestFindNode(t *testing.T) {
	root := stacked()
	for _, id := range []plan.NodeID{"p3", "p2", "p1", "s"} {
		node := findNode(root, id)
		require.NotNil(t, node, id)
		assert.Equal(t, id, node.ID())
	}
	assert.Nil(t, findNode(root, "nope"))
	assert.Nil(t, findNode(nil, "p3"))
}
