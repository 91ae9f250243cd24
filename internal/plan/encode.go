package plan

import (
	"github.com/roach88/projmerge/internal/ir"
)

// Node kinds used by the canonical encoding and the plan compiler.
const (
	KindProject = "project"
	KindFilter  = "filter"
	KindValues  = "values"
	KindScan    = "scan"
	KindGroup   = "group"
)

// Kind returns the node's kind name.
func Kind(node PlanNode) string {
	switch node.(type) {
	case *ProjectNode:
		return KindProject
	case *FilterNode:
		return KindFilter
	case *ValuesNode:
		return KindValues
	case *TableScanNode:
		return KindScan
	case *GroupReference:
		return KindGroup
	default:
		return "unknown"
	}
}

// Encode converts a plan into its canonical tree form, resolving sources
// through lookup (nil leaves GroupReferences unresolved).
//
// Two plans with the same encoding are structurally identical: same ids,
// same operators, same assignments in the same order.
func Encode(node PlanNode, lookup Lookup) ir.Object {
	if lookup != nil {
		node = lookup.Resolve(node)
	}

	obj := ir.Object{
		"id":      ir.String(node.ID()),
		"kind":    ir.String(Kind(node)),
		"outputs": encodeSymbols(node.OutputSymbols()),
	}

	switch n := node.(type) {
	case *ProjectNode:
		entries := n.Assignments().Entries()
		assignments := make(ir.Array, len(entries))
		for i, a := range entries {
			assignments[i] = ir.Object{
				"symbol": ir.String(a.Symbol),
				"expr":   ir.EncodeExpression(a.Expression),
			}
		}
		obj["assignments"] = assignments
	case *FilterNode:
		obj["predicate"] = ir.EncodeExpression(n.Predicate())
	case *ValuesNode:
		rows := make(ir.Array, len(n.Rows()))
		for i, row := range n.Rows() {
			encoded := make(ir.Array, len(row))
			for j, e := range row {
				encoded[j] = ir.EncodeExpression(e)
			}
			rows[i] = encoded
		}
		obj["rows"] = rows
	case *TableScanNode:
		obj["table"] = ir.String(n.Table())
	case *GroupReference:
		obj["group"] = ir.Int(n.Group())
	}

	sources := node.Sources()
	if len(sources) > 0 {
		encoded := make(ir.Array, len(sources))
		for i, s := range sources {
			encoded[i] = Encode(s, lookup)
		}
		obj["sources"] = encoded
	}
	return obj
}

func encodeSymbols(symbols []ir.Symbol) ir.Array {
	out := make(ir.Array, len(symbols))
	for i, s := range symbols {
		out[i] = ir.String(s)
	}
	return out
}

// Fingerprint returns the content hash of a plan. Plans built only from
// expressions and symbols never contain floats, so encoding cannot fail.
func Fingerprint(node PlanNode, lookup Lookup) string {
	return ir.MustFingerprint(ir.DomainPlan, Encode(node, lookup))
}
