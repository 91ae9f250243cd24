// Package plan provides the logical plan model the rewrite rules operate on.
//
// A plan is a tree of immutable PlanNodes. Rewrites never edit a node in
// place: they construct a replacement that keeps the same NodeID. Sources
// are non-owning links; inside the optimizer they are GroupReferences that
// must be dereferenced through a Lookup.
//
// PlanNode is a sealed interface using the marker method pattern:
//
//	switch n := node.(type) {
//	case *ProjectNode:
//	case *FilterNode:
//	case *ValuesNode:
//	case *TableScanNode:
//	case *GroupReference:
//	}
//
// The package also holds the collaborators every rule receives: the node id
// allocator, the symbol allocator (which owns symbol types), and the Lookup.
package plan
