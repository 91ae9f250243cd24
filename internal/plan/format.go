package plan

import (
	"strconv"
	"strings"

	"github.com/roach88/projmerge/internal/ir"
)

// Format renders a plan as an indented tree, one operator per line with
// its details indented below it. A projection over a scan renders as
//
//	"- Project[n2] => [y]\n" +
//	"    y := (a * 2) + 1\n" +
//	"  - TableScan[s] table=t => [a]\n"
//
// Sources are resolved through lookup. With a nil lookup, unresolved
// GroupReferences are printed as "- Group[3] => [...]" instead.
func Format(node PlanNode, lookup Lookup) string {
	var sb strings.Builder
	writeNode(&sb, node, lookup, 0)
	return sb.String()
}

func writeNode(sb *strings.Builder, node PlanNode, lookup Lookup, depth int) {
	if lookup != nil {
		node = lookup.Resolve(node)
	}

	indent := strings.Repeat("  ", depth)
	detail := indent + "    "

	sb.WriteString(indent)
	sb.WriteString("- ")
	switch n := node.(type) {
	case *ProjectNode:
		sb.WriteString("Project[" + string(n.ID()) + "]")
		writeOutputs(sb, n.OutputSymbols())
		for _, a := range n.Assignments().Entries() {
			sb.WriteString(detail + string(a.Symbol) + " := " + ir.FormatExpression(a.Expression) + "\n")
		}
	case *FilterNode:
		sb.WriteString("Filter[" + string(n.ID()) + "]")
		writeOutputs(sb, n.OutputSymbols())
		sb.WriteString(detail + "predicate := " + ir.FormatExpression(n.Predicate()) + "\n")
	case *ValuesNode:
		sb.WriteString("Values[" + string(n.ID()) + "]")
		writeOutputs(sb, n.OutputSymbols())
		for _, row := range n.Rows() {
			sb.WriteString(detail + formatRow(row) + "\n")
		}
	case *TableScanNode:
		sb.WriteString("TableScan[" + string(n.ID()) + "] table=" + n.Table())
		writeOutputs(sb, n.OutputSymbols())
	case *GroupReference:
		sb.WriteString("Group[" + strconv.Itoa(n.Group()) + "]")
		writeOutputs(sb, n.OutputSymbols())
	}

	for _, source := range node.Sources() {
		writeNode(sb, source, lookup, depth+1)
	}
}

func writeOutputs(sb *strings.Builder, outputs []ir.Symbol) {
	sb.WriteString(" => ")
	sb.WriteString(FormatSymbols(outputs))
	sb.WriteByte('\n')
}

func formatRow(row []ir.Expression) string {
	parts := make([]string, len(row))
	for i, e := range row {
		parts[i] = ir.FormatExpression(e)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FormatSymbols renders a symbol list as "[a, b, c]".
func FormatSymbols(symbols []ir.Symbol) string {
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = string(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
