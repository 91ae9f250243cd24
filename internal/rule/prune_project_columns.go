package rule

import (
	"github.com/roach88/projmerge/internal/exprs"
	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
)

// PruneProjectColumns drops child projection assignments that the parent
// projection never references.
type PruneProjectColumns struct{}

// NewPruneProjectColumns creates the rule.
func NewPruneProjectColumns() *PruneProjectColumns {
	return &PruneProjectColumns{}
}

func (*PruneProjectColumns) Name() string { return "PruneProjectColumns" }

func (*PruneProjectColumns) Pattern() Pattern {
	return Pattern{Operand: OperandProject, Sources: []Pattern{NodePattern(OperandProject)}}
}

func (*PruneProjectColumns) Apply(node plan.PlanNode, ctx *Context) (plan.PlanNode, bool) {
	parent, ok := node.(*plan.ProjectNode)
	if !ok {
		return nil, false
	}
	child, ok := ctx.Resolve(parent.Source()).(*plan.ProjectNode)
	if !ok {
		return nil, false
	}

	required := exprs.FreeSymbolsOf(parent.Assignments().Expressions())
	pruned := child.Assignments().Filter(func(s ir.Symbol, _ ir.Expression) bool {
		return required.Contains(s)
	})
	if pruned.Len() == child.Assignments().Len() {
		return nil, false
	}

	newChild := plan.NewProjectNode(child.ID(), child.Source(), pruned)
	return plan.NewProjectNode(parent.ID(), newChild, parent.Assignments()), true
}
