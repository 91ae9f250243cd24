package engine

import (
	"strconv"
	"sync"
)

// CycleDetector tracks the plans each memo group has held during a run.
//
// A cycle occurs when rules keep rewriting a group back to a plan it
// already had, for example one rule merging two projections and another
// splitting them again. Without detection the optimizer would only stop
// at the step quota.
//
// The detector keeps per-run history of (group, fingerprint) pairs, where
// the fingerprint covers the group's whole subtree. Before a rewrite is
// applied, WouldCycle checks whether its result was seen before.
//
// One detector is shared by every run of an Optimizer, including runs in
// parallel, so history is keyed by run ID.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[run_id]map[cycle_key]bool
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

func cycleKey(group int, fingerprint string) string {
	return strconv.Itoa(group) + ":" + fingerprint
}

// WouldCycle reports whether the group already held the plan with this
// fingerprint in this run.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) WouldCycle(runID string, group int, fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[runID] == nil {
		return false
	}
	return c.history[runID][cycleKey(group, fingerprint)]
}

// Record marks that the group held the plan with this fingerprint.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Record(runID string, group int, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[runID] == nil {
		c.history[runID] = make(map[string]bool)
	}
	c.history[runID][cycleKey(group, fingerprint)] = true
}

// Clear removes all history for a run. Called when a run finishes,
// successfully or not.
//
// Thread-safe: Can be called concurrently.
func (c *CycleDetector) Clear(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, runID)
}

// historySize returns the number of runs with tracked history.
func (c *CycleDetector) historySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}

// runHistorySize returns the number of (group, plan) pairs tracked for a run.
func (c *CycleDetector) runHistorySize(runID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history[runID])
}
