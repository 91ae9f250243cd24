package testutil

import (
	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
)

// Builders for plan fragments in tests. Names are plain strings so test
// tables stay short.

// Assign binds symbol to e.
func Assign(symbol string, e ir.Expression) plan.Assignment {
	return plan.Assignment{Symbol: ir.Symbol(symbol), Expression: e}
}

// Identity binds symbol to a reference to itself.
func Identity(symbol string) plan.Assignment {
	return Assign(symbol, ir.Ref(symbol))
}

// Project builds a projection over source.
func Project(id string, source plan.PlanNode, assignments ...plan.Assignment) *plan.ProjectNode {
	return plan.NewProjectNode(plan.NodeID(id), source, plan.AssignmentsOf(assignments...))
}

// Scan builds a table scan producing outputs.
func Scan(id, table string, outputs ...string) *plan.TableScanNode {
	return plan.NewTableScanNode(plan.NodeID(id), table, Symbols(outputs...))
}

// Values builds a values leaf.
func Values(id string, outputs []string, rows ...[]ir.Expression) *plan.ValuesNode {
	return plan.NewValuesNode(plan.NodeID(id), Symbols(outputs...), rows)
}

// Row is shorthand for a values row of integer literals.
func Row(values ...int64) []ir.Expression {
	row := make([]ir.Expression, len(values))
	for i, v := range values {
		row[i] = ir.IntLit(v)
	}
	return row
}

// Symbols converts names to symbols.
func Symbols(names ...string) []ir.Symbol {
	out := make([]ir.Symbol, len(names))
	for i, n := range names {
		out[i] = ir.Symbol(n)
	}
	return out
}
