package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/testutil"
)

func TestClock_Next(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current does not advance")
}

func TestClock_FreshPerRun(t *testing.T) {
	opt := newTestOptimizer(WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")))

	for range 2 {
		res, err := opt.Optimize(context.Background(), Input{Plan: threeLevel()})
		require.NoError(t, err)
		require.NotEmpty(t, res.Firings)
		for i, f := range res.Firings {
			assert.Equal(t, int64(i+1), f.Seq)
		}
	}
}

// Plans optimized in parallel against one clock draw disjoint seqs.
func TestClock_SharedByParallelRuns(t *testing.T) {
	c := NewClock()
	opt := newTestOptimizer(WithClock(c), WithRunIDGenerator(NewFixedGenerator("r1", "r2", "r3", "r4")))

	inputs := make([]Input, 4)
	for i := range inputs {
		inputs[i] = Input{Name: string(rune('a' + i)), Plan: threeLevel()}
	}
	results, err := opt.OptimizeAll(context.Background(), inputs, 4)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	total := 0
	for _, res := range results {
		for _, f := range res.Firings {
			assert.False(t, seen[f.Seq], "seq %d issued twice", f.Seq)
			seen[f.Seq] = true
			total++
		}
	}
	assert.Equal(t, int64(total), c.Current())
}

func TestSeqSource_Implementations(t *testing.T) {
	sources := map[string]SeqSource{
		"clock":         NewClock(),
		"deterministic": testutil.NewDeterministicClock(),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, int64(1), src.Next())
			assert.Equal(t, int64(2), src.Next())
		})
	}
}
