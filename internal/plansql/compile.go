package plansql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
)

// placeholderColumn stands in for a projection with no assignments, which
// SQL cannot express. It keeps the row count observable.
const placeholderColumn = "_row"

// ErrTryUnsupported is returned for TRY over an expression that can fail.
// SQLite cannot turn that failure into NULL the way TRY requires.
var ErrTryUnsupported = errors.New("TRY is not supported by the SQLite backend")

var functionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCompiler compiles plans to parameterized SQL for SQLite.
//
// Every plan node becomes a nested SELECT, so the SQL has the same shape
// as the plan. Running the SQL before and after optimization is how the
// harness checks that a rewrite did not change results.
//
// CRITICAL: ALL queries end in ORDER BY over every output column.
// CRITICAL: All literal values are parameterized (never interpolated).
// NULL is the only literal written into the SQL text.
type SQLCompiler struct {
	// Lookup resolves GroupReferences. Nil compiles concrete trees only.
	Lookup plan.Lookup
}

// NewSQLCompiler creates a compiler for concrete plan trees.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a plan to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// SQLite has no way to suppress an error inside one expression, so TRY
// compiles only when its argument cannot fail; otherwise Compile returns
// an error wrapping ErrTryUnsupported.
func (c *SQLCompiler) Compile(node plan.PlanNode) (string, []any, error) {
	if node == nil {
		return "", nil, fmt.Errorf("cannot compile nil plan")
	}
	outputs := node.OutputSymbols()
	if len(outputs) == 0 {
		return "", nil, fmt.Errorf("plan root %s has no outputs", node.ID())
	}

	body, params, err := c.compileNode(node)
	if err != nil {
		return "", nil, err
	}

	columns := quoteSymbols(outputs)

	// MANDATORY: Always add ORDER BY
	sql := fmt.Sprintf("SELECT %s FROM (%s) ORDER BY %s",
		strings.Join(columns, ", "),
		body,
		stableOrderKey(columns))
	return sql, params, nil
}

// stableOrderKey orders by every output column.
// COLLATE BINARY ensures deterministic text ordering across SQLite versions.
func stableOrderKey(columns []string) string {
	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = col + " COLLATE BINARY ASC"
	}
	return strings.Join(keys, ", ")
}

func (c *SQLCompiler) compileNode(node plan.PlanNode) (string, []any, error) {
	if ref, ok := node.(*plan.GroupReference); ok {
		if c.Lookup == nil {
			return "", nil, fmt.Errorf("group %d cannot be compiled without a lookup", ref.Group())
		}
		node = c.Lookup.Resolve(node)
	}

	switch n := node.(type) {
	case *plan.TableScanNode:
		return c.compileScan(n)
	case *plan.ValuesNode:
		return c.compileValues(n)
	case *plan.ProjectNode:
		return c.compileProject(n)
	case *plan.FilterNode:
		return c.compileFilter(n)
	default:
		return "", nil, fmt.Errorf("unsupported plan node type: %T", node)
	}
}

// compileScan compiles a table scan to a column list over the table.
// Example: TableScan[s] table=t => [a, b]  →  SELECT "a", "b" FROM "t"
func (c *SQLCompiler) compileScan(n *plan.TableScanNode) (string, []any, error) {
	columns := quoteSymbols(n.OutputSymbols())
	if len(columns) == 0 {
		columns = []string{"1 AS " + quoteIdent(placeholderColumn)}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), quoteIdent(n.Table())), nil, nil
}

// compileValues compiles inline rows to a UNION ALL of single-row SELECTs.
// An empty Values node selects typed NULLs with WHERE 0.
func (c *SQLCompiler) compileValues(n *plan.ValuesNode) (string, []any, error) {
	outputs := n.OutputSymbols()
	if len(outputs) == 0 {
		return "", nil, fmt.Errorf("values node %s has no outputs", n.ID())
	}

	if len(n.Rows()) == 0 {
		cols := make([]string, len(outputs))
		for i, s := range outputs {
			cols[i] = "NULL AS " + quoteIdent(string(s))
		}
		return "SELECT " + strings.Join(cols, ", ") + " WHERE 0", nil, nil
	}

	var selects []string
	var params []any
	for i, row := range n.Rows() {
		if len(row) != len(outputs) {
			return "", nil, fmt.Errorf("values node %s: row %d has %d values, want %d", n.ID(), i, len(row), len(outputs))
		}
		cols := make([]string, len(row))
		for j, e := range row {
			sql, p, err := compileExpression(e)
			if err != nil {
				return "", nil, fmt.Errorf("values node %s row %d: %w", n.ID(), i, err)
			}
			cols[j] = sql + " AS " + quoteIdent(string(outputs[j]))
			params = append(params, p...)
		}
		selects = append(selects, "SELECT "+strings.Join(cols, ", "))
	}
	return strings.Join(selects, " UNION ALL "), params, nil
}

// compileProject compiles assignments to aliased select expressions.
// Example: y := x + 1  →  SELECT ("x" + ?) AS "y" FROM (...)
func (c *SQLCompiler) compileProject(n *plan.ProjectNode) (string, []any, error) {
	var cols []string
	var params []any
	for _, a := range n.Assignments().Entries() {
		sql, p, err := compileExpression(a.Expression)
		if err != nil {
			return "", nil, fmt.Errorf("project %s: assignment %s: %w", n.ID(), a.Symbol, err)
		}
		cols = append(cols, sql+" AS "+quoteIdent(string(a.Symbol)))
		params = append(params, p...)
	}
	if len(cols) == 0 {
		cols = []string{"1 AS " + quoteIdent(placeholderColumn)}
	}

	source, sourceParams, err := c.compileNode(n.Source())
	if err != nil {
		return "", nil, err
	}
	params = append(params, sourceParams...)
	return fmt.Sprintf("SELECT %s FROM (%s)", strings.Join(cols, ", "), source), params, nil
}

// compileFilter compiles a predicate to a WHERE clause over the source.
func (c *SQLCompiler) compileFilter(n *plan.FilterNode) (string, []any, error) {
	source, params, err := c.compileNode(n.Source())
	if err != nil {
		return "", nil, err
	}
	pred, predParams, err := compileExpression(n.Predicate())
	if err != nil {
		return "", nil, fmt.Errorf("filter %s: %w", n.ID(), err)
	}
	return fmt.Sprintf("SELECT * FROM (%s) WHERE %s", source, pred), append(params, predParams...), nil
}

var binaryOps = map[ir.BinaryOp]string{
	ir.OpAdd: "+",
	ir.OpSub: "-",
	ir.OpMul: "*",
	ir.OpDiv: "/",
	ir.OpEq:  "=",
	ir.OpNe:  "<>",
	ir.OpLt:  "<",
	ir.OpLe:  "<=",
	ir.OpGt:  ">",
	ir.OpGe:  ">=",
	ir.OpAnd: "AND",
	ir.OpOr:  "OR",
}

// compileExpression compiles an expression to a SQL fragment.
// Composite expressions are always parenthesized.
// CRITICAL: Values are NEVER interpolated - always parameterized.
func compileExpression(e ir.Expression) (string, []any, error) {
	switch n := e.(type) {
	case *ir.Literal:
		if _, isNull := n.Value.(ir.Null); isNull || n.Value == nil {
			return "NULL", nil, nil
		}
		param, err := valueToParam(n.Value)
		if err != nil {
			return "", nil, err
		}
		return "?", []any{param}, nil

	case *ir.SymbolRef:
		return quoteIdent(string(n.Symbol)), nil, nil

	case *ir.Try:
		// TRY over an expression that cannot fail is its argument.
		// SQLite also differs from the expression language outside TRY:
		// integer division by zero yields NULL instead of failing.
		if mayFail(n.Inner) {
			return "", nil, fmt.Errorf("%s: %w", n, ErrTryUnsupported)
		}
		return compileExpression(n.Inner)

	case *ir.Binary:
		op, ok := binaryOps[n.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported operator %q", n.Op)
		}
		left, lp, err := compileExpression(n.Left)
		if err != nil {
			return "", nil, err
		}
		right, rp, err := compileExpression(n.Right)
		if err != nil {
			return "", nil, err
		}
		return "(" + left + " " + op + " " + right + ")", append(lp, rp...), nil

	case *ir.Unary:
		operand, p, err := compileExpression(n.Operand)
		if err != nil {
			return "", nil, err
		}
		switch n.Op {
		case ir.OpNeg:
			return "(-" + operand + ")", p, nil
		case ir.OpNot:
			return "(NOT " + operand + ")", p, nil
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", n.Op)
		}

	case *ir.Call:
		if !functionName.MatchString(n.Name) {
			return "", nil, fmt.Errorf("invalid function name %q", n.Name)
		}
		args := make([]string, len(n.Args))
		var params []any
		for i, arg := range n.Args {
			sql, p, err := compileExpression(arg)
			if err != nil {
				return "", nil, fmt.Errorf("%s argument %d: %w", n.Name, i, err)
			}
			args[i] = sql
			params = append(params, p...)
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")", params, nil

	default:
		return "", nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

// mayFail reports whether evaluating e can raise a runtime error.
// Arithmetic can overflow or divide by zero and functions can reject
// their arguments; literals, symbol references, comparisons and logic
// over such operands cannot.
func mayFail(e ir.Expression) bool {
	switch n := e.(type) {
	case *ir.Literal, *ir.SymbolRef:
		return false
	case *ir.Try:
		return false
	case *ir.Unary:
		return n.Op != ir.OpNot || mayFail(n.Operand)
	case *ir.Binary:
		switch n.Op {
		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv:
			return true
		}
		return mayFail(n.Left) || mayFail(n.Right)
	default:
		return true
	}
}

// valueToParam converts an ir.Value to a Go native type for a SQL
// parameter. Supports string, int, bool.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Array:
		return nil, fmt.Errorf("array cannot be used as SQL parameter")
	case ir.Object:
		return nil, fmt.Errorf("object cannot be used as SQL parameter")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteSymbols(symbols []ir.Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = quoteIdent(string(s))
	}
	return out
}
