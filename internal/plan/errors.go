package plan

import "fmt"

// SourceCountError is raised (as a panic) when ReplaceSources receives the
// wrong number of sources. It indicates a bug in the caller.
type SourceCountError struct {
	Node NodeID
	Want int
	Got  int
}

func (e *SourceCountError) Error() string {
	return fmt.Sprintf("node %s: expected %d sources, got %d", e.Node, e.Want, e.Got)
}

// DuplicateAssignmentError is raised (as a panic) when an Assignments
// builder receives two different expressions for the same symbol.
type DuplicateAssignmentError struct {
	Symbol   string
	Existing string
	New      string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("symbol %q already assigned to %s, cannot assign %s", e.Symbol, e.Existing, e.New)
}

// UnresolvedGroupError is raised (as a panic) when a GroupReference reaches
// a Lookup that has no memo behind it.
type UnresolvedGroupError struct {
	Group int
}

func (e *UnresolvedGroupError) Error() string {
	return fmt.Sprintf("group %d cannot be resolved without a memo", e.Group)
}
