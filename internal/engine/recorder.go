package engine

import (
	"context"
	"fmt"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/store"
)

// Recorder persists finished runs. Implemented by *store.Store.
//
// WriteRun must be idempotent: writing a run whose ID already exists
// returns the stored run with inserted=false.
type Recorder interface {
	WriteRun(ctx context.Context, run store.Run, firings []store.Firing) (store.Run, bool, error)
}

var _ Recorder = (*store.Store)(nil)

// record converts a result to store rows and writes them.
func record(ctx context.Context, rec Recorder, in Input, res *Result) error {
	planJSON, err := store.MarshalPlan(plan.Encode(res.Plan, nil))
	if err != nil {
		return fmt.Errorf("record run %s: %w", res.RunID, err)
	}

	run := store.Run{
		ID:                res.RunID,
		PlanName:          in.Name,
		BeforeFingerprint: res.BeforeFingerprint,
		AfterFingerprint:  res.AfterFingerprint,
		BeforePlan:        res.BeforePlan,
		AfterPlan:         res.AfterPlan,
		AfterPlanJSON:     planJSON,
		Steps:             res.Steps,
		EngineVersion:     ir.EngineVersion,
		IRVersion:         ir.IRVersion,
	}

	firings := make([]store.Firing, len(res.Firings))
	for i, f := range res.Firings {
		firings[i] = store.Firing{
			RunID:             res.RunID,
			Seq:               f.Seq,
			Rule:              f.Rule,
			GroupID:           f.Group,
			NodeID:            string(f.NodeID),
			BeforeFingerprint: f.BeforeFingerprint,
			AfterFingerprint:  f.AfterFingerprint,
			BeforePlan:        f.Before,
			AfterPlan:         f.After,
		}
	}

	if _, _, err := rec.WriteRun(ctx, run, firings); err != nil {
		return fmt.Errorf("record run %s: %w", res.RunID, err)
	}
	return nil
}
