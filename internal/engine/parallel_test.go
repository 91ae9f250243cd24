package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/rule"
	"github.com/roach88/projmerge/internal/testutil"
)

func TestOptimizeAll_ResultsInInputOrder(t *testing.T) {
	inputs := []Input{
		{Name: "chain", Plan: threeLevel()},
		{Name: "scan", Plan: testutil.Scan("s", "t", "a")},
		{Name: "identity", Plan: testutil.Project("p1", testutil.Scan("s", "t", "a"), testutil.Identity("a"))},
	}
	opt := New(rule.DefaultRules(),
		WithLogger(quietLogger()),
		WithRunIDGenerator(NewFixedGenerator("r1", "r2", "r3")),
	)

	results, err := opt.OptimizeAll(context.Background(), inputs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 5, results[0].Steps)
	assert.Equal(t, 0, results[1].Steps)
	assert.Equal(t, "- TableScan[s] table=t => [a]\n", results[2].AfterPlan)
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"},
		[]string{results[0].RunID, results[1].RunID, results[2].RunID})
}

func TestOptimizeAll_FirstErrorWins(t *testing.T) {
	bad := testutil.Project("p1", testutil.Scan("s", "t", "a"), testutil.Assign("y", ir.Add(ir.Ref("a"), ir.IntLit(1))))
	inputs := []Input{
		{Name: "fine", Plan: testutil.Scan("s", "t", "a")},
		{Name: "bad", Plan: bad},
	}
	opt := New([]rule.Rule{commute{}},
		WithLogger(quietLogger()),
		WithRunIDGenerator(NewFixedGenerator("r1", "r2")),
	)

	results, err := opt.OptimizeAll(context.Background(), inputs, 0)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "optimize bad:")
	assert.True(t, IsCycleError(err))
}

func TestOptimizeAll_Empty(t *testing.T) {
	results, err := New(rule.DefaultRules()).OptimizeAll(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
