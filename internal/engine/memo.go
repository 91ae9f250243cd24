package engine

import (
	"fmt"

	"github.com/roach88/projmerge/internal/plan"
)

// Memo stores a plan as numbered groups, one node per group.
//
// A node's sources are GroupReferences into the memo. Rules see sources
// only through Resolve, which returns the group's current node, so a
// rewrite of a group is immediately visible to its parents.
//
// Groups are numbered from 1 in insertion order. Groups that become
// unreachable after a rewrite are kept; Extract only walks from the root.
//
// Memo is not safe for concurrent use. Each run owns its memo.
type Memo struct {
	groups []plan.PlanNode
	root   int
}

// NewMemo inserts root and all of its descendants.
func NewMemo(root plan.PlanNode) *Memo {
	m := &Memo{}
	m.root = m.insert(root)
	return m
}

// RootGroup returns the group holding the plan root.
func (m *Memo) RootGroup() int {
	return m.root
}

// Len returns the number of groups ever created.
func (m *Memo) Len() int {
	return len(m.groups)
}

// Node returns the current node of a group.
// Panics if the group does not exist.
func (m *Memo) Node(group int) plan.PlanNode {
	if group < 1 || group > len(m.groups) {
		panic(fmt.Sprintf("memo: group %d does not exist", group))
	}
	return m.groups[group-1]
}

// Resolve implements plan.Lookup.
func (m *Memo) Resolve(node plan.PlanNode) plan.PlanNode {
	if ref, ok := node.(*plan.GroupReference); ok {
		return m.Node(ref.Group())
	}
	return node
}

// Replace sets the node of a group and returns the stored node.
//
// Sources of node that are not GroupReferences are inserted as new groups.
// If node is itself a GroupReference, the group takes over the referenced
// group's node.
func (m *Memo) Replace(group int, node plan.PlanNode) plan.PlanNode {
	if ref, ok := node.(*plan.GroupReference); ok {
		node = m.Node(ref.Group())
	} else {
		node = m.insertSources(node)
	}
	m.Node(group) // bounds check
	m.groups[group-1] = node
	return node
}

// Extract rebuilds a concrete plan tree from the root group.
func (m *Memo) Extract() plan.PlanNode {
	return m.extract(m.Node(m.root))
}

func (m *Memo) extract(node plan.PlanNode) plan.PlanNode {
	node = m.Resolve(node)
	sources := node.Sources()
	if len(sources) == 0 {
		return node
	}
	extracted := make([]plan.PlanNode, len(sources))
	for i, s := range sources {
		extracted[i] = m.extract(s)
	}
	return node.ReplaceSources(extracted)
}

// insert stores node in a new group and returns its number. A
// GroupReference is not re-inserted.
func (m *Memo) insert(node plan.PlanNode) int {
	if ref, ok := node.(*plan.GroupReference); ok {
		return ref.Group()
	}
	node = m.insertSources(node)
	m.groups = append(m.groups, node)
	return len(m.groups)
}

func (m *Memo) insertSources(node plan.PlanNode) plan.PlanNode {
	sources := node.Sources()
	if len(sources) == 0 {
		return node
	}
	refs := make([]plan.PlanNode, len(sources))
	changed := false
	for i, s := range sources {
		if ref, ok := s.(*plan.GroupReference); ok {
			refs[i] = ref
			continue
		}
		refs[i] = plan.NewGroupReference(m.insert(s), s.OutputSymbols())
		changed = true
	}
	if !changed {
		return node
	}
	return node.ReplaceSources(refs)
}
