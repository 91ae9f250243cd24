// Package store records optimizer runs in SQLite so they can be listed,
// inspected and re-verified after the process exits.
//
// A run row holds the input and final plans (rendered text plus the
// canonical JSON of the final plan) with their fingerprints. Each rule
// firing of the run is a row in firings, keyed by (run_id, seq), with
// the plan of its group before and after the rewrite.
//
// Rows are ordered by the logical seq the optimizer assigns, never by
// wall-clock time; queries that could tie fall back to id COLLATE BINARY.
// WriteRun is idempotent: recording a run id a second time leaves the
// first recording in place.
//
// VerifyRun decodes the stored final plan, fingerprints it again with
// internal/plan and compares the result with the recorded fingerprint,
// which detects a store edited after the fact.
//
// Connections use WAL journaling, NORMAL sync, a five second busy timeout
// and enforced foreign keys. Open upgrades older stores in place.
package store
