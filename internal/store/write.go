package store

import (
	"context"
	"fmt"
)

// WriteRun inserts a run and its firings in one transaction.
// Returns the stored run (with Seq assigned) and whether it was inserted.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing a run whose id
// already exists leaves the store untouched and returns inserted=false
// with the existing row.
func (s *Store) WriteRun(ctx context.Context, run Run, firings []Firing) (Run, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, false, fmt.Errorf("write run: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, plan_name, seq, before_fingerprint, after_fingerprint, before_plan, after_plan,
		 after_plan_json, steps, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.PlanName,
		seq,
		run.BeforeFingerprint,
		run.AfterFingerprint,
		run.BeforePlan,
		run.AfterPlan,
		run.AfterPlanJSON,
		run.Steps,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return Run{}, false, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Run{}, false, fmt.Errorf("write run %s: rows affected: %w", run.ID, err)
	}
	if affected == 0 {
		existing, err := scanRunRow(tx.QueryRowContext(ctx, selectRun+` WHERE id = ?`, run.ID))
		if err != nil {
			return Run{}, false, fmt.Errorf("write run %s: read existing: %w", run.ID, err)
		}
		return existing, false, nil
	}

	for _, f := range firings {
		if f.RunID != run.ID {
			return Run{}, false, fmt.Errorf("write run %s: firing seq %d belongs to run %s", run.ID, f.Seq, f.RunID)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO firings
			(run_id, seq, rule, group_id, node_id, before_fingerprint, after_fingerprint, before_plan, after_plan)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING
		`,
			f.RunID,
			f.Seq,
			f.Rule,
			f.GroupID,
			f.NodeID,
			f.BeforeFingerprint,
			f.AfterFingerprint,
			f.BeforePlan,
			f.AfterPlan,
		)
		if err != nil {
			return Run{}, false, fmt.Errorf("write firing %s/%d: %w", f.RunID, f.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, false, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}

	run.Seq = seq
	return run, true, nil
}
