package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// OptimizeAll optimizes independent plans concurrently, at most
// parallelism at a time (parallelism < 1 means one per input).
//
// Results are returned in input order. The first failure cancels the
// remaining runs and is returned wrapped with the plan's name.
//
// Firing seqs are per run unless the optimizer was built WithClock, in
// which case runs draw from the shared clock in whatever order they
// happen to fire.
func (o *Optimizer) OptimizeAll(ctx context.Context, inputs []Input, parallelism int) ([]*Result, error) {
	results := make([]*Result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, in := range inputs {
		g.Go(func() error {
			res, err := o.Optimize(gctx, in)
			if err != nil {
				return fmt.Errorf("optimize %s: %w", in.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
