package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/rule"
)

// DefaultMaxSteps is the default maximum number of rule firings per run.
const DefaultMaxSteps = 1000

// Optimizer applies rules to plans until no rule fires.
//
// INVARIANTS:
//   - rules slice order NEVER changes after construction
//   - every firing preserves the rewritten node's output symbols
//   - a run either completes or returns a RuntimeError; the input plan is
//     never modified
//
// An Optimizer is safe for concurrent use: each call to Optimize works on
// its own memo, quota and allocators.
type Optimizer struct {
	rules         []rule.Rule
	maxSteps      int
	logger        *slog.Logger
	recorder      Recorder
	runIDs        RunIDGenerator
	session       rule.Session
	clock         SeqSource
	cycleDetector *CycleDetector
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMaxSteps sets the maximum firings per run.
//
// Default: 1000 steps (DefaultMaxSteps)
// Use WithMaxSteps(2) in tests to exercise quota enforcement.
func WithMaxSteps(maxSteps int) Option {
	return func(o *Optimizer) {
		o.maxSteps = maxSteps
	}
}

// WithLogger sets the logger for firings. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// WithRecorder records every successful run.
func WithRecorder(r Recorder) Option {
	return func(o *Optimizer) {
		o.recorder = r
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(o *Optimizer) {
		o.runIDs = g
	}
}

// WithSession sets the session consulted for rule enablement.
func WithSession(s rule.Session) Option {
	return func(o *Optimizer) {
		o.session = s
	}
}

// WithClock shares one seq source across runs. By default each run
// numbers its firings from 1.
func WithClock(c SeqSource) Option {
	return func(o *Optimizer) {
		o.clock = c
	}
}

// New creates an Optimizer for the given rules, tried in slice order.
//
// The rules slice is copied to prevent external mutation from breaking
// the declaration order invariant.
func New(rules []rule.Rule, opts ...Option) *Optimizer {
	o := &Optimizer{
		rules:         slices.Clone(rules),
		maxSteps:      DefaultMaxSteps,
		logger:        slog.Default(),
		runIDs:        UUIDv7Generator{},
		cycleDetector: NewCycleDetector(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Rules returns the optimizer's rules in order.
func (o *Optimizer) Rules() []rule.Rule {
	return slices.Clone(o.rules)
}

// Input is one plan to optimize.
type Input struct {
	// Name labels the run in traces (e.g. the CUE plan name).
	Name string

	// Plan is a concrete plan tree without GroupReferences.
	Plan plan.PlanNode

	// Symbols holds the plan's symbol types. A fresh allocator is used
	// when nil.
	Symbols *plan.SymbolAllocator
}

// Firing records one successful rule application.
type Firing struct {
	Seq    int64
	Rule   string
	Group  int
	NodeID plan.NodeID

	// Before and After are the group's subtree in plan.Format form.
	Before string
	After  string

	BeforeFingerprint string
	AfterFingerprint  string
}

// Result is the outcome of a completed run.
type Result struct {
	RunID string
	Plan  plan.PlanNode
	Steps int

	// Firings in the order they were applied.
	Firings []Firing

	BeforePlan        string
	AfterPlan         string
	BeforeFingerprint string
	AfterFingerprint  string
}

// Changed reports whether any rule fired.
func (r *Result) Changed() bool {
	return r.Steps > 0
}

// run holds the state of one Optimize call.
type run struct {
	o       *Optimizer
	ctx     context.Context
	id      string
	memo    *Memo
	quota   *QuotaEnforcer
	clock   SeqSource
	ruleCtx *rule.Context
	firings []Firing
}

// Optimize rewrites in.Plan until no enabled rule fires.
//
// Returns a RuntimeError when the run is cancelled, exceeds the quota,
// cycles, or a rule returns a node with different outputs.
func (o *Optimizer) Optimize(ctx context.Context, in Input) (*Result, error) {
	runID := o.runIDs.Generate()
	defer o.cycleDetector.Clear(runID)

	ids := plan.NewIDAllocator()
	observeIDs(ids, in.Plan)
	symbols := in.Symbols
	if symbols == nil {
		symbols = plan.NewSymbolAllocator()
	}
	clock := o.clock
	if clock == nil {
		clock = NewClock()
	}

	memo := NewMemo(in.Plan)
	r := &run{
		o:     o,
		ctx:   ctx,
		id:    runID,
		memo:  memo,
		quota: NewQuotaEnforcer(o.maxSteps),
		clock: clock,
		ruleCtx: &rule.Context{
			Lookup:  memo,
			IDs:     ids,
			Symbols: symbols,
			Session: o.session,
		},
	}

	o.logger.Debug("optimization starting",
		"run_id", runID,
		"plan", in.Name,
		"groups", memo.Len(),
	)

	if _, err := r.exploreGroup(memo.RootGroup()); err != nil {
		o.logger.Error("optimization failed",
			"run_id", runID,
			"plan", in.Name,
			"error", err,
		)
		return nil, err
	}

	final := memo.Extract()
	res := &Result{
		RunID:             runID,
		Plan:              final,
		Steps:             r.quota.Current(),
		Firings:           r.firings,
		BeforePlan:        plan.Format(in.Plan, nil),
		AfterPlan:         plan.Format(final, nil),
		BeforeFingerprint: plan.Fingerprint(in.Plan, nil),
		AfterFingerprint:  plan.Fingerprint(final, nil),
	}
	if res.Firings == nil {
		res.Firings = []Firing{}
	}

	o.logger.Info("optimization finished",
		"run_id", runID,
		"plan", in.Name,
		"steps", res.Steps,
	)

	if o.recorder != nil {
		if err := record(ctx, o.recorder, in, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// exploreGroup optimizes a group and its descendants. A group is explored
// again whenever one of its children changed.
func (r *run) exploreGroup(group int) (bool, error) {
	progress, err := r.exploreNode(group)
	if err != nil {
		return false, err
	}
	for {
		changed, err := r.exploreChildren(group)
		if err != nil {
			return false, err
		}
		if !changed {
			return progress, nil
		}
		progress = true
		again, err := r.exploreNode(group)
		if err != nil {
			return false, err
		}
		if !again {
			return progress, nil
		}
	}
}

func (r *run) exploreChildren(group int) (bool, error) {
	progress := false
	for _, source := range r.memo.Node(group).Sources() {
		ref, ok := source.(*plan.GroupReference)
		if !ok {
			continue
		}
		changed, err := r.exploreGroup(ref.Group())
		if err != nil {
			return false, err
		}
		progress = progress || changed
	}
	return progress, nil
}

// exploreNode applies rules to the group's node until none fires.
func (r *run) exploreNode(group int) (bool, error) {
	node := r.memo.Node(group)
	r.o.cycleDetector.Record(r.id, group, plan.Fingerprint(node, r.memo))

	progress := false
	done := false
	for !done {
		done = true
		for _, rl := range r.o.rules {
			if !r.o.session.RuleEnabled(rl.Name()) {
				continue
			}
			if !rl.Pattern().Matches(node, r.memo) {
				continue
			}
			if err := r.ctx.Err(); err != nil {
				return false, NewCancelledError(r.id, err)
			}

			result, ok := rl.Apply(node, r.ruleCtx)
			if !ok {
				continue
			}
			next, err := r.apply(group, rl.Name(), node, result)
			if err != nil {
				return false, err
			}
			node = next
			done = false
			progress = true
		}
	}
	return progress, nil
}

// apply validates a rule result and stores it in the memo.
func (r *run) apply(group int, ruleName string, node, result plan.PlanNode) (plan.PlanNode, error) {
	if err := r.quota.Check(r.id, ruleName); err != nil {
		var stepsErr *StepsExceededError
		if !errors.As(err, &stepsErr) {
			return nil, err
		}
		r.o.logger.Error("max steps quota exceeded",
			"run_id", r.id,
			"rule", ruleName,
			"steps", stepsErr.Steps,
			"max_steps", stepsErr.Limit,
		)
		return nil, NewQuotaError(r.id, ruleName, group, stepsErr)
	}

	if !slices.Equal(node.OutputSymbols(), result.OutputSymbols()) {
		return nil, NewInvalidRewriteError(r.id, ruleName, group,
			plan.FormatSymbols(node.OutputSymbols()),
			plan.FormatSymbols(result.OutputSymbols()))
	}

	beforeFP := plan.Fingerprint(node, r.memo)
	afterFP := plan.Fingerprint(result, r.memo)
	if r.o.cycleDetector.WouldCycle(r.id, group, afterFP) {
		return nil, NewCycleError(r.id, ruleName, group, afterFP)
	}

	firing := Firing{
		Seq:               r.clock.Next(),
		Rule:              ruleName,
		Group:             group,
		NodeID:            node.ID(),
		Before:            plan.Format(node, r.memo),
		BeforeFingerprint: beforeFP,
	}

	stored := r.memo.Replace(group, result)
	firing.After = plan.Format(stored, r.memo)
	firing.AfterFingerprint = afterFP
	r.o.cycleDetector.Record(r.id, group, afterFP)
	r.firings = append(r.firings, firing)

	r.o.logger.Debug("rule fired",
		"run_id", r.id,
		"seq", firing.Seq,
		"rule", ruleName,
		"group", group,
		"node", string(node.ID()),
	)
	return stored, nil
}

// observeIDs registers every id in a concrete plan so allocated ids never
// collide with existing ones.
func observeIDs(ids *plan.IDAllocator, node plan.PlanNode) {
	if id := node.ID(); id != "" {
		ids.Observe(id)
	}
	for _, s := range node.Sources() {
		observeIDs(ids, s)
	}
}
