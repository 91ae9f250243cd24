package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenariosDir is the shared scenario suite, also run by `projmerge test`.
const scenariosDir = "../../testdata/scenarios"

// TestDemoScenarios runs every scenario in the shared suite and compares
// each trace against the suite's golden files.
func TestDemoScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(scenariosDir)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	goldenDir := filepath.Join(scenariosDir, "golden")
	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err, "scenario execution failed")
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)

			require.NoError(t, AssertGoldenIn(t, goldenDir, scenario.Name, result))
		})
	}
}

// TestDemoScenarios_Replay checks that running the same scenario twice
// gives identical traces.
func TestDemoScenarios_Replay(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenariosDir, "three_level.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.FinalPlan, second.FinalPlan)
}

func TestDemoScenarios_ThreeLevelTrace(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenariosDir, "three_level.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	rules := make([]string, len(result.Trace))
	nodes := make([]string, len(result.Trace))
	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq)
		rules[i] = event.Rule
		nodes[i] = event.Node
	}
	assert.Equal(t, []string{
		"InlineProjections",
		"InlineProjections",
		"RemoveIdentityProjections",
		"InlineProjections",
		"RemoveIdentityProjections",
	}, rules)
	assert.Equal(t, []string{"p3", "p2", "p1", "p3", "p2"}, nodes)
}
