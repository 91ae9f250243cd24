package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/projmerge/internal/compiler"
	"github.com/roach88/projmerge/internal/engine"
	"github.com/roach88/projmerge/internal/plansql"
	"github.com/roach88/projmerge/internal/rule"
	"github.com/roach88/projmerge/internal/store"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Plans        []string // plan names to optimize; all when empty
	Rules        []string // rule subset, in order; all when empty
	DisableRules []string // rules switched off through the session
	MaxSteps     int
	Database     string // optional trace store
	Parallel     int
	SQL          bool // print the final plan compiled to SQL

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// OptimizedPlan is the outcome of optimizing one plan.
type OptimizedPlan struct {
	Name    string         `json:"name"`
	RunID   string         `json:"run_id"`
	Steps   int            `json:"steps"`
	Before  string         `json:"before"`
	After   string         `json:"after"`
	Firings []FiringOutput `json:"firings"`
	SQL     string         `json:"sql,omitempty"`
	Params  []any          `json:"params,omitempty"`
}

// FiringOutput is one rule firing.
type FiringOutput struct {
	Seq   int64  `json:"seq"`
	Rule  string `json:"rule"`
	Group int    `json:"group"`
	Node  string `json:"node"`
}

// OptimizeResult holds the outcome of every optimized plan.
type OptimizeResult struct {
	Rules []string        `json:"rules"`
	Plans []OptimizedPlan `json:"plans"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	return newOptimizeCommand(&OptimizeOptions{RootOptions: rootOpts})
}

func newOptimizeCommand(opts *OptimizeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <plan-file-or-dir>",
		Short: "Merge projections in compiled plans",
		Long: `Optimize compiled plans with InlineProjections, PruneProjectColumns and
RemoveIdentityProjections until no rule fires.

Each plan is optimized in its own run. Runs are recorded in the trace
store when --db is given and can be inspected with "projmerge trace".

Examples:
  projmerge optimize ./plans/projections.cue
  projmerge optimize ./plans --plan three_level --sql
  projmerge optimize ./plans --disable-rule RemoveIdentityProjections
  projmerge optimize ./plans --db ./projmerge.db --parallel 4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Plans, "plan", nil, "plan names to optimize (default all)")
	cmd.Flags().StringSliceVar(&opts.Rules, "rules", nil, "rules to run, in order (default all)")
	cmd.Flags().StringSliceVar(&opts.DisableRules, "disable-rule", nil, "rules to disable for this session")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "maximum rule firings per plan")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (optional)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "plans optimized concurrently (0 = all at once)")
	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "print the optimized plan compiled to SQL")

	return cmd
}

func runOptimize(opts *OptimizeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.MaxSteps < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "max-steps must be positive", nil)
	}
	if opts.Parallel < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "parallel must be non-negative", nil)
	}

	loadResult, loadErrors := LoadPlans(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return formatter.Fail(ExitCommandError, code, message, nil)
	}

	plans, err := selectPlans(loadResult.Plans, opts.Plans)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	rules := rule.DefaultRules()
	if len(opts.Rules) > 0 {
		if rules, err = rule.ByName(opts.Rules...); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxSteps(opts.MaxSteps),
		engine.WithSession(rule.Session{}.WithDisabled(opts.DisableRules...)),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(st))
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	inputs := make([]engine.Input, len(plans))
	for i, p := range plans {
		inputs[i] = engine.Input{Name: p.Name, Plan: p.Plan, Symbols: p.Symbols}
	}

	opt := engine.New(rules, engineOpts...)
	logger.Info("optimizing plans", "count", len(inputs), "parallel", opts.Parallel)
	results, err := opt.OptimizeAll(ctx, inputs, opts.Parallel)
	if err != nil {
		var runtimeErr *engine.RuntimeError
		if errors.As(err, &runtimeErr) {
			return formatter.Fail(ExitFailure, ErrCodeOptimize, err.Error(), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := OptimizeResult{
		Rules: rule.Names(rules),
		Plans: make([]OptimizedPlan, len(results)),
	}
	for i, res := range results {
		out, err := toOptimizedPlan(inputs[i].Name, res, opts.SQL)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result.Plans[i] = out
	}

	if formatter.Format == "json" {
		var runID string
		if len(result.Plans) == 1 {
			runID = result.Plans[0].RunID
		}
		return formatter.SuccessForRun(runID, result)
	}
	outputOptimizeText(formatter.Writer, result, opts.Verbose)
	return nil
}

// signalContext cancels the command's context on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// selectPlans filters plans by name, keeping the requested order.
func selectPlans(plans []compiler.Compiled, names []string) ([]compiler.Compiled, error) {
	if len(names) == 0 {
		return plans, nil
	}

	available := make([]string, len(plans))
	for i, p := range plans {
		available[i] = p.Name
	}

	selected := make([]compiler.Compiled, 0, len(names))
	for _, name := range names {
		i := slices.Index(available, name)
		if i < 0 {
			return nil, fmt.Errorf("plan %q not found (available: %s)", name, strings.Join(available, ", "))
		}
		selected = append(selected, plans[i])
	}
	return selected, nil
}

func toOptimizedPlan(name string, res *engine.Result, withSQL bool) (OptimizedPlan, error) {
	out := OptimizedPlan{
		Name:    name,
		RunID:   res.RunID,
		Steps:   res.Steps,
		Before:  res.BeforePlan,
		After:   res.AfterPlan,
		Firings: make([]FiringOutput, len(res.Firings)),
	}
	for i, f := range res.Firings {
		out.Firings[i] = FiringOutput{
			Seq:   f.Seq,
			Rule:  f.Rule,
			Group: f.Group,
			Node:  string(f.NodeID),
		}
	}

	if withSQL {
		query, params, err := plansql.NewSQLCompiler().Compile(res.Plan)
		if err != nil {
			return OptimizedPlan{}, fmt.Errorf("compile %s to SQL: %w", name, err)
		}
		out.SQL = query
		out.Params = params
	}
	return out, nil
}

// outputOptimizeText prints each plan's firings and before/after trees.
func outputOptimizeText(w io.Writer, result OptimizeResult, verbose bool) {
	if verbose {
		fmt.Fprintf(w, "Rules: %s\n\n", strings.Join(result.Rules, ", "))
	}

	for _, p := range result.Plans {
		fmt.Fprintf(w, "Plan %s (run %s): %d firing(s)\n", p.Name, p.RunID, p.Steps)
		for _, f := range p.Firings {
			fmt.Fprintf(w, "  [%d] %s group=%d node=%s\n", f.Seq, f.Rule, f.Group, f.Node)
		}
		fmt.Fprintln(w, "Before:")
		fmt.Fprint(w, indentBlock(p.Before, "  "))
		fmt.Fprintln(w, "After:")
		fmt.Fprint(w, indentBlock(p.After, "  "))
		if p.SQL != "" {
			fmt.Fprintln(w, "SQL:")
			fmt.Fprintf(w, "  %s\n", p.SQL)
			if len(p.Params) > 0 {
				fmt.Fprintf(w, "  params: %v\n", p.Params)
			}
		}
		fmt.Fprintln(w)
	}
}
