package harness

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/projmerge/internal/compiler"
	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
	"github.com/roach88/projmerge/internal/plansql"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s group=%d node=%s\n", event.Seq, event.Rule, event.Group, event.Node)
		}
	}

	return buf.String()
}

// assertFired checks that the rule fired exactly the specified number of times.
func assertFired(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Rule == assertion.Rule {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertFired,
			Expected: fmt.Sprintf("%d firings of %s", assertion.Count, assertion.Rule),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertAssignment checks that a project node in the final plan assigns
// the symbol to a structurally equal expression.
func assertAssignment(final plan.PlanNode, trace []TraceEvent, assertion Assertion) error {
	want, err := compiler.ParseExpression(assertion.Expr)
	if err != nil {
		return fmt.Errorf("assignment assertion: invalid expr %q: %w", assertion.Expr, err)
	}

	project, err := findProject(final, assertion.Node, AssertAssignment, trace)
	if err != nil {
		return err
	}

	got, ok := project.Assignments().Get(ir.Symbol(assertion.Symbol))
	if !ok {
		return &AssertionError{
			Type:     AssertAssignment,
			Expected: fmt.Sprintf("%s assigns %s := %s", assertion.Node, assertion.Symbol, ir.FormatExpression(want)),
			Actual:   fmt.Sprintf("%s has no assignment for %s (outputs %s)", assertion.Node, assertion.Symbol, plan.FormatSymbols(project.OutputSymbols())),
			Trace:    trace,
		}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertAssignment,
			Expected: fmt.Sprintf("%s assigns %s := %s", assertion.Node, assertion.Symbol, ir.FormatExpression(want)),
			Actual:   fmt.Sprintf("%s assigns %s := %s", assertion.Node, assertion.Symbol, ir.FormatExpression(got)),
			Trace:    trace,
		}
	}
	return nil
}

// assertNoAssignment checks that a project node in the final plan does not
// assign the symbol.
func assertNoAssignment(final plan.PlanNode, trace []TraceEvent, assertion Assertion) error {
	project, err := findProject(final, assertion.Node, AssertNoAssignment, trace)
	if err != nil {
		return err
	}

	if got, ok := project.Assignments().Get(ir.Symbol(assertion.Symbol)); ok {
		return &AssertionError{
			Type:     AssertNoAssignment,
			Expected: fmt.Sprintf("%s does not assign %s", assertion.Node, assertion.Symbol),
			Actual:   fmt.Sprintf("%s assigns %s := %s", assertion.Node, assertion.Symbol, ir.FormatExpression(got)),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutputs checks a node's output symbols, in order.
func assertOutputs(final plan.PlanNode, trace []TraceEvent, assertion Assertion) error {
	node := findNode(final, plan.NodeID(assertion.Node))
	if node == nil {
		return nodeNotFound(AssertOutputs, assertion.Node, final, trace)
	}

	want := make([]ir.Symbol, len(assertion.Symbols))
	for i, s := range assertion.Symbols {
		want[i] = ir.Symbol(s)
	}
	if got := node.OutputSymbols(); !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertOutputs,
			Expected: fmt.Sprintf("%s outputs %s", assertion.Node, plan.FormatSymbols(want)),
			Actual:   fmt.Sprintf("%s outputs %s", assertion.Node, plan.FormatSymbols(got)),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalPlan compares the rendered final plan, ignoring leading and
// trailing blank lines.
func assertFinalPlan(result *Result, assertion Assertion) error {
	want := strings.Trim(assertion.Text, "\n")
	got := strings.Trim(result.FinalPlan, "\n")
	if want != got {
		return &AssertionError{
			Type:     AssertFinalPlan,
			Expected: "final plan:\n" + want,
			Actual:   "plan differs (-want +got):\n" + cmp.Diff(strings.Split(want, "\n"), strings.Split(got, "\n")),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertUnchanged checks that no rule fired.
func assertUnchanged(result *Result) error {
	if result.Steps != 0 || len(result.Trace) != 0 {
		return &AssertionError{
			Type:     AssertUnchanged,
			Expected: "no rule fires",
			Actual:   fmt.Sprintf("%d firings", len(result.Trace)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// equivalenceError reports a plan that could not be evaluated. A plan
// the SQLite backend cannot express fails the assertion as not checkable
// rather than letting it pass.
func equivalenceError(which string, err error, trace []TraceEvent) error {
	if errors.Is(err, plansql.ErrTryUnsupported) {
		return &AssertionError{
			Type:     AssertEquivalent,
			Expected: "input and final plans the SQLite backend can evaluate",
			Actual:   fmt.Sprintf("not checkable: %s plan: %v", which, err),
			Trace:    trace,
		}
	}
	return fmt.Errorf("evaluate %s plan: %w", which, err)
}

// assertEquivalent evaluates the input and final plans against the
// scenario tables in a fresh in-memory database and compares the rows.
func assertEquivalent(actx *AssertionContext, trace []TraceEvent) error {
	db, err := plansql.OpenMemory()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// Sort table names for deterministic load order
	names := make([]string, 0, len(actx.Tables))
	for name := range actx.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		table := actx.Tables[name]
		if !validIdentifier.MatchString(name) {
			return fmt.Errorf("invalid table name %q: must match pattern %s", name, validIdentifier.String())
		}
		rows := make([][]any, len(table.Rows))
		for i, row := range table.Rows {
			converted := make([]any, len(row))
			for j, v := range row {
				sqlVal, err := toSQLValue(v)
				if err != nil {
					return fmt.Errorf("tables.%s.rows[%d][%d]: %w", name, i, j, err)
				}
				converted[j] = sqlVal
			}
			rows[i] = converted
		}
		if err := plansql.LoadTable(ctx, db, name, table.Columns, rows); err != nil {
			return err
		}
	}

	c := plansql.NewSQLCompiler()
	before, err := plansql.Evaluate(ctx, db, c, actx.Before)
	if err != nil {
		return equivalenceError("input", err, trace)
	}
	after, err := plansql.Evaluate(ctx, db, c, actx.Final)
	if err != nil {
		return equivalenceError("final", err, trace)
	}

	if diff := cmp.Diff(before, after); diff != "" {
		return &AssertionError{
			Type:     AssertEquivalent,
			Expected: fmt.Sprintf("final plan returns the same %d rows as the input plan", len(before)),
			Actual:   "rows differ (-input +final):\n" + diff,
			Trace:    trace,
		}
	}
	return nil
}

// assertError checks the runtime error code of a failed optimization.
func assertError(result *Result, assertion Assertion) error {
	if result.ErrorCode != assertion.Code {
		actual := "optimization succeeded"
		if result.ErrorCode != "" {
			actual = "error " + result.ErrorCode
		}
		return &AssertionError{
			Type:     AssertError,
			Expected: "error " + assertion.Code,
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return nil
}

// toSQLValue converts a YAML-parsed table value to a SQL parameter.
// Floats are rejected unless they hold an integral value.
func toSQLValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64:
		return val, nil
	case int:
		return int64(val), nil
	case float64:
		if val == float64(int64(val)) {
			return int64(val), nil
		}
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func findProject(final plan.PlanNode, id, assertionType string, trace []TraceEvent) (*plan.ProjectNode, error) {
	node := findNode(final, plan.NodeID(id))
	if node == nil {
		return nil, nodeNotFound(assertionType, id, final, trace)
	}
	project, ok := node.(*plan.ProjectNode)
	if !ok {
		return nil, &AssertionError{
			Type:     assertionType,
			Expected: fmt.Sprintf("%s is a project", id),
			Actual:   fmt.Sprintf("%s is a %s", id, plan.Kind(node)),
			Trace:    trace,
		}
	}
	return project, nil
}

func nodeNotFound(assertionType, id string, final plan.PlanNode, trace []TraceEvent) error {
	return &AssertionError{
		Type:     assertionType,
		Expected: fmt.Sprintf("node %s in the final plan", id),
		Actual:   "node not found in:\n" + plan.Format(final, nil),
		Trace:    trace,
	}
}

// findNode returns the node with the given id in a concrete plan tree.
func findNode(root plan.PlanNode, id plan.NodeID) plan.PlanNode {
	if root == nil {
		return nil
	}
	if root.ID() == id {
		return root
	}
	for _, source := range root.Sources() {
		if found := findNode(source, id); found != nil {
			return found
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx context.Context

	// Before is the input plan; Final is the optimized plan, nil when
	// optimization failed.
	Before plan.PlanNode
	Final  plan.PlanNode

	// Tables feed the equivalent assertion.
	Tables map[string]Table
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
//
// A failed optimization is itself an error unless an error assertion
// expects it; assertions on the final plan then fail with that error.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	expectsError := slices.ContainsFunc(assertions, func(a Assertion) bool { return a.Type == AssertError })
	if result.ErrorCode != "" && !expectsError {
		errors = append(errors, fmt.Sprintf("optimization failed with %s", result.ErrorCode))
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFired:
			err = assertFired(result.Trace, assertion)
		case AssertUnchanged:
			err = assertUnchanged(result)
		case AssertError:
			err = assertError(result, assertion)
		case AssertAssignment, AssertNoAssignment, AssertOutputs, AssertFinalPlan, AssertEquivalent:
			if actx == nil || actx.Final == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a final plan", i, assertion.Type)
				break
			}
			err = evaluatePlanAssertion(result, assertion, actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func evaluatePlanAssertion(result *Result, assertion Assertion, actx *AssertionContext) error {
	switch assertion.Type {
	case AssertAssignment:
		return assertAssignment(actx.Final, result.Trace, assertion)
	case AssertNoAssignment:
		return assertNoAssignment(actx.Final, result.Trace, assertion)
	case AssertOutputs:
		return assertOutputs(actx.Final, result.Trace, assertion)
	case AssertFinalPlan:
		return assertFinalPlan(result, assertion)
	default:
		return assertEquivalent(actx, result.Trace)
	}
}
