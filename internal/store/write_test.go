package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/ir"
)

func TestWriteRun_AssignsSeqAndStoresFirings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1", "example")
	run.Steps = 2
	firings := []Firing{
		createTestFiring("run-1", 1, "InlineProjections"),
		createTestFiring("run-1", 2, "RemoveIdentityProjections"),
	}

	stored, inserted, err := s.WriteRun(ctx, run, firings)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(1), stored.Seq)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	gotFirings, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, firings, gotFirings)

	second, _, err := s.WriteRun(ctx, createTestRun("run-2", "example"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Seq)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.WriteRun(ctx, createTestRun("run-1", "a"), []Firing{createTestFiring("run-1", 1, "r")})
	require.NoError(t, err)
	require.True(t, inserted)

	again := createTestRun("run-1", "renamed")
	existing, inserted, err := s.WriteRun(ctx, again, []Firing{createTestFiring("run-1", 1, "r"), createTestFiring("run-1", 2, "r")})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, existing, "existing row is returned unchanged")

	firings, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, firings, 1)
}

func TestWriteRun_RejectsForeignFiring(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.WriteRun(ctx, createTestRun("run-1", "a"), []Firing{createTestFiring("run-2", 1, "r")})
	require.Error(t, err)

	_, err = s.ReadRun(ctx, "run-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows), "failed write is rolled back")
}

func TestListRuns_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		plan := "p1"
		if id == "a" {
			plan = "p2"
		}
		_, _, err := s.WriteRun(ctx, createTestRun(id, plan), nil)
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids, "insertion order, not id order")

	p1, err := s.ListRunsForPlan(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p1, 2)
	assert.Equal(t, "c", p1[0].ID)
	assert.Equal(t, "b", p1[1].ID)
}

func TestRead_EmptyResults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	firings, err := s.ReadFirings(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, firings)
	assert.Empty(t, firings)

	_, err = s.ReadRun(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestVerifyRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	encoded := ir.Object{"id": ir.String("s"), "kind": ir.String("scan"), "table": ir.String("t")}
	planJSON, err := MarshalPlan(encoded)
	require.NoError(t, err)

	good := createTestRun("good", "p")
	good.AfterPlanJSON = planJSON
	good.AfterFingerprint = ir.MustFingerprint(ir.DomainPlan, encoded)
	_, _, err = s.WriteRun(ctx, good, nil)
	require.NoError(t, err)
	assert.NoError(t, s.VerifyRun(ctx, "good"))

	bad := createTestRun("bad", "p")
	bad.AfterPlanJSON = planJSON
	_, _, err = s.WriteRun(ctx, bad, nil)
	require.NoError(t, err)
	err = s.VerifyRun(ctx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match recorded")

	assert.Error(t, s.VerifyRun(ctx, "missing"))
}
