package plan

import (
	"fmt"

	"github.com/roach88/projmerge/internal/exprs"
	"github.com/roach88/projmerge/internal/ir"
)

// Problem codes reported by Validate.
const (
	ProblemUnresolvedSymbol = "unresolved_symbol"
	ProblemDuplicateOutput  = "duplicate_output"
	ProblemRowWidth         = "row_width"
	ProblemDuplicateID      = "duplicate_id"
	ProblemMissingSource    = "missing_source"
)

// Problem is one well-formedness violation found by Validate.
type Problem struct {
	Node    NodeID
	Code    string
	Symbol  ir.Symbol
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("node %s: %s", p.Node, p.Message)
}

// ValidationResult lists the problems found in a plan.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems in pre-order traversal order.
	Problems []Problem
}

// Validate checks that a plan is well formed:
//  1. Every symbol an operator consumes is produced by its source
//  2. Output symbols are unique within a node
//  3. Every values row has one expression per output, and no references
//  4. Node ids are unique across the tree
//
// Sources are resolved through lookup (nil means NoLookup). Validate is a
// pure function with no side effects.
func Validate(node PlanNode, lookup Lookup) ValidationResult {
	v := &validator{lookup: lookup, seen: make(map[NodeID]bool)}
	v.validateNode(node)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	lookup   Lookup
	seen     map[NodeID]bool
	problems []Problem
}

func (v *validator) add(node PlanNode, code string, sym ir.Symbol, format string, args ...any) {
	v.problems = append(v.problems, Problem{
		Node:    node.ID(),
		Code:    code,
		Symbol:  sym,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) validateNode(node PlanNode) {
	node = resolve(v.lookup, node)

	if id := node.ID(); id != "" {
		if v.seen[id] {
			v.add(node, ProblemDuplicateID, "", "node id %q is used more than once", id)
		}
		v.seen[id] = true
	}

	v.checkUniqueOutputs(node)

	switch n := node.(type) {
	case *ProjectNode:
		if v.checkSource(n, n.Source()) {
			v.checkConsumed(n, n.Source(), n.Assignments().Expressions())
		}
	case *FilterNode:
		if v.checkSource(n, n.Source()) {
			v.checkConsumed(n, n.Source(), []ir.Expression{n.Predicate()})
		}
	case *ValuesNode:
		width := len(n.OutputSymbols())
		for i, row := range n.Rows() {
			if len(row) != width {
				v.add(n, ProblemRowWidth, "", "row %d has %d values, expected %d", i, len(row), width)
			}
			for _, s := range exprs.FreeSymbolsOf(row).Ordered() {
				v.add(n, ProblemUnresolvedSymbol, s, "row %d references symbol %q", i, s)
			}
		}
	}

	for _, source := range node.Sources() {
		if source != nil {
			v.validateNode(source)
		}
	}
}

func (v *validator) checkSource(node, source PlanNode) bool {
	if source == nil {
		v.add(node, ProblemMissingSource, "", "missing source")
		return false
	}
	return true
}

// checkConsumed reports symbols referenced by consumed that source does
// not produce.
func (v *validator) checkConsumed(node, source PlanNode, consumed []ir.Expression) {
	produced := exprs.MakeSymbolSet(resolve(v.lookup, source).OutputSymbols()...)
	for _, s := range exprs.FreeSymbolsOf(consumed).Ordered() {
		if !produced.Contains(s) {
			v.add(node, ProblemUnresolvedSymbol, s, "symbol %q is not produced by source %s", s, resolve(v.lookup, source).ID())
		}
	}
}

func (v *validator) checkUniqueOutputs(node PlanNode) {
	// FilterNode repeats its source's outputs; the source reports them.
	if _, ok := node.(*FilterNode); ok {
		return
	}
	seen := make(map[ir.Symbol]bool)
	for _, s := range node.OutputSymbols() {
		if seen[s] {
			v.add(node, ProblemDuplicateOutput, s, "output symbol %q is produced twice", s)
		}
		seen[s] = true
	}
}
