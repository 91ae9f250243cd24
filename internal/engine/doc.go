// Package engine implements the iterative plan optimizer that drives the
// projection rules.
//
// The optimizer is the host for rule.Rule implementations. It owns the
// memo, decides when rules run, and records what each firing changed.
// Rules never see more than one resolved level of the plan.
//
// ARCHITECTURE:
//
// Memo:
// Every plan node is stored in a numbered group. A node's sources are
// replaced by GroupReferences, so a rewrite of one group is visible to
// every node that references it without rebuilding the tree.
//
// Exploration:
//  1. exploreNode applies every enabled rule whose pattern matches the
//     group's node, in declaration order, until none fires.
//  2. exploreChildren explores each source group depth-first.
//  3. If a child changed, the node is explored again, since a rule that
//     did not match before may match now.
//
// Each firing:
//   - checks the context for cancellation
//   - counts against the max-steps quota
//   - is checked for cycles (a group returning to an earlier plan)
//   - must preserve the node's output symbols
//   - is stamped with a logical-clock seq and logged
//
// A finished run can be recorded through a Recorder (store.Store).
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Firings are stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Deterministic Scheduling
// Rules are tried in declaration order. Groups are explored depth-first
// in source order. Optimizing the same plan twice yields the same trace.
package engine
