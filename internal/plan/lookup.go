package plan

// Lookup dereferences source links. Inside the optimizer sources are
// GroupReferences backed by a memo; Resolve returns the group's current
// node. Concrete nodes resolve to themselves.
//
// Callers must resolve every time they need a source and never cache the
// result across rule invocations: the memo may have replaced the group.
type Lookup interface {
	Resolve(node PlanNode) PlanNode
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(PlanNode) PlanNode

// Resolve calls f(node).
func (f LookupFunc) Resolve(node PlanNode) PlanNode {
	return f(node)
}

// NoLookup resolves concrete plan trees. Resolving a GroupReference panics
// with *UnresolvedGroupError.
var NoLookup Lookup = LookupFunc(func(node PlanNode) PlanNode {
	if ref, ok := node.(*GroupReference); ok {
		panic(&UnresolvedGroupError{Group: ref.Group()})
	}
	return node
})

// resolve applies lookup, treating nil as NoLookup.
func resolve(lookup Lookup, node PlanNode) PlanNode {
	if lookup == nil {
		return NoLookup.Resolve(node)
	}
	return lookup.Resolve(node)
}
