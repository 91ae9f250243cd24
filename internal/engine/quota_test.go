package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		firings   int
		wantErrAt int // 1-based firing rejected, 0 for none
	}{
		{"under limit", 10, 9, 0},
		{"at limit", 5, 5, 0},
		{"over limit", 5, 6, 6},
		{"zero limit", 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuotaEnforcer(tt.limit)
			for i := 1; i <= tt.firings; i++ {
				err := q.Check("run-1", "InlineProjections")
				if i == tt.wantErrAt {
					var stepsErr *StepsExceededError
					require.ErrorAs(t, err, &stepsErr)
					assert.Equal(t, StepsExceededError{RunID: "run-1", Rule: "InlineProjections", Steps: i, Limit: tt.limit}, *stepsErr)
					return
				}
				require.NoError(t, err, "firing %d", i)
			}
			assert.Equal(t, tt.firings, q.Current())
		})
	}
}

func TestQuotaEnforcer_CountsRejectedFiring(t *testing.T) {
	q := NewQuotaEnforcer(1)
	_ = q.Check("run-1", "A")
	_ = q.Check("run-1", "B")
	assert.Equal(t, 2, q.Current())
	assert.Equal(t, 1, q.MaxSteps())
}

func TestStepsExceededError_Error(t *testing.T) {
	err := &StepsExceededError{RunID: "run-abc", Rule: "PruneProjectColumns", Steps: 1001, Limit: 1000}
	assert.Equal(t, "run run-abc exceeded max steps at PruneProjectColumns: 1001 steps > 1000 limit", err.Error())
}

func TestIsStepsExceededError(t *testing.T) {
	stepsErr := &StepsExceededError{RunID: "run-1", Steps: 10, Limit: 5}

	assert.True(t, IsStepsExceededError(stepsErr))
	assert.True(t, IsStepsExceededError(fmt.Errorf("wrapped: %w", stepsErr)))
	assert.False(t, IsStepsExceededError(nil))
	assert.False(t, IsStepsExceededError(assert.AnError))
}

func TestQuota_ErrorMatchesIsQuotaError(t *testing.T) {
	stepsErr := &StepsExceededError{RunID: "run-1", Rule: "InlineProjections", Steps: 3, Limit: 2}
	runtimeErr := NewQuotaError("run-1", "InlineProjections", 4, stepsErr)

	assert.True(t, IsQuotaError(stepsErr))
	assert.True(t, IsQuotaError(runtimeErr))
	assert.True(t, IsStepsExceededError(runtimeErr), "RuntimeError unwraps to the cause")
	assert.Equal(t, "3", runtimeErr.Details["steps"])
	assert.Equal(t, "2", runtimeErr.Details["max_steps"])
}

// The three-level chain needs five firings; a limit of four stops the run
// on the fifth and names the rule that was about to fire.
func TestQuota_StopsOptimizerRun(t *testing.T) {
	opt := newTestOptimizer(WithMaxSteps(4))

	_, err := opt.Optimize(context.Background(), Input{Plan: threeLevel()})
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, 5, stepsErr.Steps)
	assert.Equal(t, 4, stepsErr.Limit)
	assert.NotEmpty(t, stepsErr.Rule)
}
