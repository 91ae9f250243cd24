package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/projmerge/internal/compiler"
	"github.com/roach88/projmerge/internal/engine"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/rule"
	"github.com/roach88/projmerge/internal/store"
	"github.com/roach88/projmerge/internal/testutil"
)

// DefaultRunID is the run id used when a scenario does not set one.
const DefaultRunID = "test-run-default"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run id.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory trace store for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Compile the scenario's plan file and select the plan
// 2. Optimize it, recording the run in the trace store
// 3. Read the firings back from the store as the trace
// 4. Evaluate assertions against the trace and final plan
//
// A runtime error from the optimizer (quota, cycle, ...) is not a Run
// error: it is reported through Result.ErrorCode and checked by the
// error assertion.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	compiled, err := loadPlan(scenario)
	if err != nil {
		return nil, err
	}

	rules := rule.DefaultRules()
	if len(scenario.Rules) > 0 {
		rules, err = rule.ByName(scenario.Rules...)
		if err != nil {
			return nil, fmt.Errorf("failed to select rules: %w", err)
		}
	}

	// Create fresh in-memory trace store
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		runIDs: testutil.NewFixedRunIDGenerator(runID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	result.RunID = runID
	result.BeforePlan = plan.Format(compiled.Plan, nil)

	final, err := h.optimize(ctx, scenario, rules, compiled, result)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Before: compiled.Plan,
		Final:  final,
		Tables: scenario.Tables,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// optimize runs the optimizer and fills in the trace. It returns the
// final plan, or nil when the optimizer stopped with a runtime error.
func (h *Harness) optimize(ctx context.Context, scenario *Scenario, rules []rule.Rule, compiled compiler.Compiled, result *Result) (plan.PlanNode, error) {
	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithRecorder(h.store),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithClock(h.clock),
		engine.WithSession(rule.Session{}.WithDisabled(scenario.Disable...)),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	opt := engine.New(rules, opts...)

	res, err := opt.Optimize(ctx, engine.Input{
		Name:    compiled.Name,
		Plan:    compiled.Plan,
		Symbols: compiled.Symbols,
	})
	if err != nil {
		var runtimeErr *engine.RuntimeError
		if !errors.As(err, &runtimeErr) {
			return nil, fmt.Errorf("failed to optimize %s: %w", compiled.Name, err)
		}
		result.ErrorCode = string(runtimeErr.Code)
		h.logger.Info("optimization stopped",
			"scenario", scenario.Name,
			"code", runtimeErr.Code,
			"error", runtimeErr.Message,
		)
		return nil, nil
	}

	firings, err := h.store.ReadFirings(ctx, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, f := range firings {
		result.AddFiringTrace(f)
	}
	result.Steps = res.Steps
	result.FinalPlan = res.AfterPlan

	h.logger.Info("scenario optimized",
		"scenario", scenario.Name,
		"run_id", res.RunID,
		"steps", res.Steps,
	)
	return res.Plan, nil
}

// loadPlan compiles the scenario's plan file and selects its plan.
func loadPlan(scenario *Scenario) (compiler.Compiled, error) {
	compiled, err := compiler.CompileFile(scenario.PlanFile)
	if err != nil {
		return compiler.Compiled{}, fmt.Errorf("failed to compile plan file: %w", err)
	}

	if scenario.Plan == "" {
		return compiled[0], nil
	}
	names := make([]string, len(compiled))
	for i, c := range compiled {
		if c.Name == scenario.Plan {
			return c, nil
		}
		names[i] = c.Name
	}
	return compiler.Compiled{}, fmt.Errorf("plan %q not found in %s (available: %s)",
		scenario.Plan, scenario.PlanFile, strings.Join(names, ", "))
}
