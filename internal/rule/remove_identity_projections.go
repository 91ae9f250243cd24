package rule

import (
	"slices"

	"github.com/roach88/projmerge/internal/plan"
)

// RemoveIdentityProjections replaces a projection that only passes its
// source's outputs through, in the same order, by the source itself.
type RemoveIdentityProjections struct{}

// NewRemoveIdentityProjections creates the rule.
func NewRemoveIdentityProjections() *RemoveIdentityProjections {
	return &RemoveIdentityProjections{}
}

func (*RemoveIdentityProjections) Name() string { return "RemoveIdentityProjections" }

func (*RemoveIdentityProjections) Pattern() Pattern { return NodePattern(OperandProject) }

// Apply returns the unresolved source reference: inside the optimizer the
// matched group then takes over the source group's node.
func (*RemoveIdentityProjections) Apply(node plan.PlanNode, ctx *Context) (plan.PlanNode, bool) {
	project, ok := node.(*plan.ProjectNode)
	if !ok || !project.Assignments().IsIdentityProjection() {
		return nil, false
	}
	source := ctx.Resolve(project.Source())
	if !slices.Equal(project.OutputSymbols(), source.OutputSymbols()) {
		return nil, false
	}
	return project.Source(), true
}
