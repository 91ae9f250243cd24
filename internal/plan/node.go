package plan

import (
	"slices"

	"github.com/roach88/projmerge/internal/ir"
)

// NodeID identifies a plan node. Rewrites preserve the id of the node they
// supersede.
type NodeID string

// PlanNode is a logical plan operator.
//
// This is a sealed interface - only types in this package implement it.
type PlanNode interface {
	planNode()

	// ID returns the node's identifier.
	ID() NodeID

	// Sources returns the node's inputs, possibly unresolved GroupReferences.
	Sources() []PlanNode

	// OutputSymbols returns the symbols the node produces, in order.
	OutputSymbols() []ir.Symbol

	// ReplaceSources returns a copy of the node over new sources.
	// len(sources) must equal len(Sources()).
	ReplaceSources(sources []PlanNode) PlanNode
}

// ProjectNode computes a fixed set of named output expressions from the
// symbols produced by its single source.
//
// Output symbols are the keys of Assignments, in assignment order.
type ProjectNode struct {
	id          NodeID
	source      PlanNode
	assignments Assignments
}

// NewProjectNode creates a projection over source.
func NewProjectNode(id NodeID, source PlanNode, assignments Assignments) *ProjectNode {
	return &ProjectNode{id: id, source: source, assignments: assignments}
}

func (*ProjectNode) planNode() {}

func (n *ProjectNode) ID() NodeID                 { return n.id }
func (n *ProjectNode) Source() PlanNode           { return n.source }
func (n *ProjectNode) Assignments() Assignments   { return n.assignments }
func (n *ProjectNode) Sources() []PlanNode        { return []PlanNode{n.source} }
func (n *ProjectNode) OutputSymbols() []ir.Symbol { return n.assignments.Symbols() }

func (n *ProjectNode) ReplaceSources(sources []PlanNode) PlanNode {
	checkSourceCount(n, sources, 1)
	return NewProjectNode(n.id, sources[0], n.assignments)
}

// FilterNode passes through the source rows for which Predicate is true.
// Its outputs are the source's outputs.
type FilterNode struct {
	id        NodeID
	source    PlanNode
	predicate ir.Expression
}

// NewFilterNode creates a filter over source.
func NewFilterNode(id NodeID, source PlanNode, predicate ir.Expression) *FilterNode {
	return &FilterNode{id: id, source: source, predicate: predicate}
}

func (*FilterNode) planNode() {}

func (n *FilterNode) ID() NodeID                 { return n.id }
func (n *FilterNode) Source() PlanNode           { return n.source }
func (n *FilterNode) Predicate() ir.Expression   { return n.predicate }
func (n *FilterNode) Sources() []PlanNode        { return []PlanNode{n.source} }
func (n *FilterNode) OutputSymbols() []ir.Symbol { return n.source.OutputSymbols() }

func (n *FilterNode) ReplaceSources(sources []PlanNode) PlanNode {
	checkSourceCount(n, sources, 1)
	return NewFilterNode(n.id, sources[0], n.predicate)
}

// ValuesNode produces a fixed list of rows. Each row holds one expression
// per output symbol.
type ValuesNode struct {
	id      NodeID
	outputs []ir.Symbol
	rows    [][]ir.Expression
}

// NewValuesNode creates a values leaf.
func NewValuesNode(id NodeID, outputs []ir.Symbol, rows [][]ir.Expression) *ValuesNode {
	return &ValuesNode{id: id, outputs: slices.Clone(outputs), rows: rows}
}

func (*ValuesNode) planNode() {}

func (n *ValuesNode) ID() NodeID                 { return n.id }
func (n *ValuesNode) Rows() [][]ir.Expression    { return n.rows }
func (n *ValuesNode) Sources() []PlanNode        { return nil }
func (n *ValuesNode) OutputSymbols() []ir.Symbol { return slices.Clone(n.outputs) }

func (n *ValuesNode) ReplaceSources(sources []PlanNode) PlanNode {
	checkSourceCount(n, sources, 0)
	return n
}

// TableScanNode reads the named table. Outputs are the table's columns,
// named by the symbols bound to them.
type TableScanNode struct {
	id      NodeID
	table   string
	outputs []ir.Symbol
}

// NewTableScanNode creates a scan leaf.
func NewTableScanNode(id NodeID, table string, outputs []ir.Symbol) *TableScanNode {
	return &TableScanNode{id: id, table: table, outputs: slices.Clone(outputs)}
}

func (*TableScanNode) planNode() {}

func (n *TableScanNode) ID() NodeID                 { return n.id }
func (n *TableScanNode) Table() string              { return n.table }
func (n *TableScanNode) Sources() []PlanNode        { return nil }
func (n *TableScanNode) OutputSymbols() []ir.Symbol { return slices.Clone(n.outputs) }

func (n *TableScanNode) ReplaceSources(sources []PlanNode) PlanNode {
	checkSourceCount(n, sources, 0)
	return n
}

// GroupReference is a placeholder for a memo group. Rules see sources as
// GroupReferences and must dereference them with Lookup.Resolve.
type GroupReference struct {
	group   int
	outputs []ir.Symbol
}

// NewGroupReference creates a reference to a memo group.
func NewGroupReference(group int, outputs []ir.Symbol) *GroupReference {
	return &GroupReference{group: group, outputs: slices.Clone(outputs)}
}

func (*GroupReference) planNode() {}

// ID is empty: a group reference is not a node of its own.
func (n *GroupReference) ID() NodeID                 { return "" }
func (n *GroupReference) Group() int                 { return n.group }
func (n *GroupReference) Sources() []PlanNode        { return nil }
func (n *GroupReference) OutputSymbols() []ir.Symbol { return slices.Clone(n.outputs) }

func (n *GroupReference) ReplaceSources(sources []PlanNode) PlanNode {
	checkSourceCount(n, sources, 0)
	return n
}

func checkSourceCount(node PlanNode, sources []PlanNode, want int) {
	if len(sources) != want {
		panic(&SourceCountError{Node: node.ID(), Want: want, Got: len(sources)})
	}
}
