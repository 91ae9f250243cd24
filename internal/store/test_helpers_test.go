package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id, planName string) Run {
	return Run{
		ID:                id,
		PlanName:          planName,
		BeforeFingerprint: "before-" + id,
		AfterFingerprint:  "after-" + id,
		BeforePlan:        "- Project[p2] => [y]\n",
		AfterPlan:         "- Project[p2] => [y]\n",
		AfterPlanJSON:     "{}",
		Steps:             0,
		EngineVersion:     "0.1.0",
		IRVersion:         "1",
	}
}

// createTestFiring creates a firing with minimal required fields.
func createTestFiring(runID string, seq int64, rule string) Firing {
	return Firing{
		RunID:             runID,
		Seq:               seq,
		Rule:              rule,
		GroupID:           1,
		NodeID:            "p2",
		BeforeFingerprint: "fp-before",
		AfterFingerprint:  "fp-after",
		BeforePlan:        "before",
		AfterPlan:         "after",
	}
}
