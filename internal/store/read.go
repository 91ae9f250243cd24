package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/projmerge/internal/ir"
)

const selectRun = `
	SELECT id, plan_name, seq, before_fingerprint, after_fingerprint, before_plan, after_plan,
	       after_plan_json, steps, engine_version, ir_version
	FROM runs`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	return scanRunRow(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
}

// ListRuns returns all runs ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, selectRun+` ORDER BY seq ASC, id COLLATE BINARY ASC`)
}

// ListRunsForPlan returns the runs of one plan ordered by seq ASC, id ASC.
func (s *Store) ListRunsForPlan(ctx context.Context, planName string) ([]Run, error) {
	return s.queryRuns(ctx, selectRun+` WHERE plan_name = ? ORDER BY seq ASC, id COLLATE BINARY ASC`, planName)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadFirings returns the firings of a run ordered by seq ASC.
//
// Returns an empty slice (not nil) if the run has no firings.
func (s *Store) ReadFirings(ctx context.Context, runID string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, rule, group_id, node_id, before_fingerprint, after_fingerprint,
		       before_plan, after_plan
		FROM firings
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		var f Firing
		if err := rows.Scan(
			&f.RunID, &f.Seq, &f.Rule, &f.GroupID, &f.NodeID,
			&f.BeforeFingerprint, &f.AfterFingerprint, &f.BeforePlan, &f.AfterPlan,
		); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// VerifyRun recomputes the fingerprint of a run's stored final plan and
// compares it with the recorded after_fingerprint.
func (s *Store) VerifyRun(ctx context.Context, id string) error {
	run, err := s.ReadRun(ctx, id)
	if err != nil {
		return fmt.Errorf("verify run %s: %w", id, err)
	}

	encoded, err := unmarshalPlan(run.AfterPlanJSON)
	if err != nil {
		return fmt.Errorf("verify run %s: %w", id, err)
	}
	fp, err := ir.Fingerprint(ir.DomainPlan, encoded)
	if err != nil {
		return fmt.Errorf("verify run %s: %w", id, err)
	}
	if fp != run.AfterFingerprint {
		return fmt.Errorf("verify run %s: stored plan fingerprint %s does not match recorded %s", id, fp, run.AfterFingerprint)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRow(row *sql.Row) (Run, error) {
	return scanRun(row)
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	if err := row.Scan(
		&r.ID, &r.PlanName, &r.Seq, &r.BeforeFingerprint, &r.AfterFingerprint,
		&r.BeforePlan, &r.AfterPlan, &r.AfterPlanJSON, &r.Steps, &r.EngineVersion, &r.IRVersion,
	); err != nil {
		return Run{}, err
	}
	return r, nil
}
