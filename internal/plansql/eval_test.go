package plansql

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/engine"
	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/rule"
	"github.com/roach88/projmerge/internal/testutil"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEvaluate_ProjectOverValues(t *testing.T) {
	db := openTestDB(t)
	values := testutil.Values("v", []string{"a", "b"}, testutil.Row(3, 1), testutil.Row(1, 0))
	p := testutil.Project("p", values,
		testutil.Assign("sum", ir.Add(ir.Ref("a"), ir.Ref("b"))),
		testutil.Assign("quot", ir.Div(ir.Ref("a"), ir.Ref("b"))),
	)

	rows, err := Evaluate(context.Background(), db, NewSQLCompiler(), p)
	require.NoError(t, err)

	assert.Equal(t, [][]any{
		{int64(1), nil},
		{int64(4), int64(3)},
	}, rows, "sorted by every column; SQLite yields NULL for division by zero")
}

func TestEvaluate_TryThatMayFailIsRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, LoadTable(ctx, db, "t", []string{"a"}, [][]any{{int64(math.MinInt64)}}))

	p := testutil.Project("p", testutil.Scan("s", "t", "a"), testutil.Assign("y", ir.NewTry(ir.NewCall("abs", ir.Ref("a")))))
	rows, err := Evaluate(ctx, db, NewSQLCompiler(), p)
	require.ErrorIs(t, err, ErrTryUnsupported)
	assert.Nil(t, rows)
}

func TestEvaluate_StringsAndEmpty(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	values := testutil.Values("v", []string{"s"}, []ir.Expression{ir.StringLit("b")}, []ir.Expression{ir.StringLit("a")})
	rows, err := Evaluate(ctx, db, NewSQLCompiler(), values)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a"}, {"b"}}, rows)

	none, err := Evaluate(ctx, db, NewSQLCompiler(), testutil.Values("v", []string{"x"}))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLoadTable_Filter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, LoadTable(ctx, db, "t", []string{"a", "b"}, [][]any{
		{int64(1), "x"},
		{int64(2), "y"},
		{int64(3), "x"},
	}))

	f := plan.NewFilterNode("f", testutil.Scan("s", "t", "a", "b"), ir.Eq(ir.Ref("b"), ir.StringLit("x")))
	rows, err := Evaluate(ctx, db, NewSQLCompiler(), f)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "x"}, {int64(3), "x"}}, rows)

	err = LoadTable(ctx, db, "u", []string{"a"}, [][]any{{int64(1), int64(2)}})
	assert.ErrorContains(t, err, "row 0 has 2 values, want 1")
}

func TestEvaluate_OptimizationPreservesResults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, LoadTable(ctx, db, "t", []string{"a", "b"}, [][]any{
		{int64(4), int64(2)},
		{int64(5), int64(0)},
		{int64(-1), int64(1)},
	}))

	scan := testutil.Scan("s", "t", "a", "b")
	child := testutil.Project("p1", scan,
		testutil.Assign("x", ir.Add(ir.Ref("a"), ir.Ref("b"))),
		testutil.Assign("k", ir.IntLit(7)),
		testutil.Identity("b"),
	)
	parent := testutil.Project("p2", child,
		testutil.Assign("y", ir.Mul(ir.Ref("x"), ir.Ref("x"))),
		testutil.Assign("z", ir.NewTry(ir.Eq(ir.Ref("k"), ir.Ref("b")))),
	)

	opt := engine.New(rule.DefaultRules(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := opt.Optimize(ctx, engine.Input{Plan: parent})
	require.NoError(t, err)
	require.True(t, res.Changed())

	before, err := Evaluate(ctx, db, NewSQLCompiler(), parent)
	require.NoError(t, err)
	after, err := Evaluate(ctx, db, NewSQLCompiler(), res.Plan)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, after, 3)
}
