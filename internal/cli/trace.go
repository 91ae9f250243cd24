package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/projmerge/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Plan     string // optional - filter run listing to one plan
	Verify   bool   // recheck the stored final plan fingerprint
}

// RunSummary is one recorded optimizer run.
type RunSummary struct {
	ID                string `json:"id"`
	Seq               int64  `json:"seq"`
	Plan              string `json:"plan"`
	Steps             int    `json:"steps"`
	BeforeFingerprint string `json:"before_fingerprint"`
	AfterFingerprint  string `json:"after_fingerprint"`
}

// TraceFiring is one rule firing within a recorded run.
type TraceFiring struct {
	Seq    int64  `json:"seq"`
	Rule   string `json:"rule"`
	Group  int    `json:"group"`
	Node   string `json:"node"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// TraceResult holds a single run with its firings.
type TraceResult struct {
	Run      RunSummary    `json:"run"`
	Before   string        `json:"before"`
	After    string        `json:"after"`
	Firings  []TraceFiring `json:"firings"`
	Verified *bool         `json:"verified,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded optimizer runs",
		Long: `Inspect optimizer runs recorded with "projmerge optimize --db".

Without a run id, lists every recorded run in insertion order.
With a run id, shows the input and final plans together with each
rule firing in seq order.

--verify recomputes the fingerprint of the stored final plan and
fails with exit code 1 when it does not match the recorded one.

Examples:
  projmerge trace --db ./projmerge.db
  projmerge trace --db ./projmerge.db --plan three_level
  projmerge trace --db ./projmerge.db 0190a3c4-...
  projmerge trace --db ./projmerge.db 0190a3c4-... --verify --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTraceList(opts, cmd)
			}
			return runTraceShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "only list runs of this plan")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify the stored final plan fingerprint")

	return cmd
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	var runs []store.Run
	if opts.Plan != "" {
		runs, err = st.ListRunsForPlan(cmd.Context(), opts.Plan)
	} else {
		runs, err = st.ListRuns(cmd.Context())
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to list runs: %v", err), nil)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = toRunSummary(r)
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "[%d] %s  %s  %d firing(s)\n", s.Seq, s.ID, s.Plan, s.Steps)
	}
	return nil
}

func runTraceShow(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to read run: %v", err), nil)
	}

	firings, err := st.ReadFirings(ctx, runID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to read firings: %v", err), nil)
	}

	result := TraceResult{
		Run:     toRunSummary(run),
		Before:  run.BeforePlan,
		After:   run.AfterPlan,
		Firings: make([]TraceFiring, len(firings)),
	}
	for i, f := range firings {
		result.Firings[i] = TraceFiring{
			Seq:    f.Seq,
			Rule:   f.Rule,
			Group:  f.GroupID,
			Node:   f.NodeID,
			Before: f.BeforePlan,
			After:  f.AfterPlan,
		}
	}

	var verifyErr error
	if opts.Verify {
		verifyErr = st.VerifyRun(ctx, runID)
		ok := verifyErr == nil
		result.Verified = &ok
	}

	if verifyErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, verifyErr.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.SuccessForRun(result.Run.ID, result)
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func toRunSummary(r store.Run) RunSummary {
	return RunSummary{
		ID:                r.ID,
		Seq:               r.Seq,
		Plan:              r.PlanName,
		Steps:             r.Steps,
		BeforeFingerprint: r.BeforeFingerprint,
		AfterFingerprint:  r.AfterFingerprint,
	}
}

// outputTraceText prints a run. Per-firing plan snapshots are shown only
// in verbose mode.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Run %s\n", result.Run.ID)
	fmt.Fprintf(w, "Plan: %s\n", result.Run.Plan)
	fmt.Fprintf(w, "Fingerprint: %s -> %s\n", truncateID(result.Run.BeforeFingerprint), truncateID(result.Run.AfterFingerprint))
	if result.Verified != nil && *result.Verified {
		fmt.Fprintln(w, "✓ Final plan fingerprint verified")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Firings ===")
	if len(result.Firings) == 0 {
		fmt.Fprintln(w, "  (no rule fired)")
	}
	for _, f := range result.Firings {
		fmt.Fprintf(w, "  [%d] %s group=%d node=%s\n", f.Seq, f.Rule, f.Group, f.Node)
		if verbose {
			fmt.Fprint(w, indentBlock(f.Before, "      "))
			fmt.Fprintln(w, "    =>")
			fmt.Fprint(w, indentBlock(f.After, "      "))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Before ===")
	fmt.Fprint(w, indentBlock(result.Before, "  "))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== After ===")
	fmt.Fprint(w, indentBlock(result.After, "  "))
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
