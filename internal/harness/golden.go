package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/projmerge/internal/ir"
)

// TraceSnapshot captures the trace and final plan of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Steps        int          `json:"steps"`
	Trace        []TraceEvent `json:"trace"`
	FinalPlan    string       `json:"final_plan,omitempty"`
	ErrorCode    string       `json:"error_code,omitempty"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
// Per-firing plan texts are not part of the snapshot.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		traceList[i] = map[string]any{
			"seq":   event.Seq,
			"rule":  event.Rule,
			"group": event.Group,
			"node":  event.Node,
		}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"steps":         s.Steps,
		"trace":         traceList,
	}
	if s.FinalPlan != "" {
		result["final_plan"] = s.FinalPlan
	}
	if s.ErrorCode != "" {
		result["error_code"] = s.ErrorCode
	}
	return result
}

// DefaultGoldenDir is where RunWithGolden and AssertGolden keep golden
// files, relative to the test's package directory.
const DefaultGoldenDir = "testdata/golden"

// Snapshot renders the canonical JSON that golden files hold for a
// scenario result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Steps:        result.Steps,
		Trace:        result.Trace,
		FinalPlan:    result.FinalPlan,
		ErrorCode:    result.ErrorCode,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file in
// DefaultGoldenDir.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	return AssertGoldenIn(t, DefaultGoldenDir, scenarioName, result)
}

// AssertGoldenIn is AssertGolden with an explicit fixture directory.
func AssertGoldenIn(t *testing.T, dir, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
