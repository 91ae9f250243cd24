package rule

import (
	"github.com/roach88/projmerge/internal/exprs"
	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
)

// InlineProjections folds expressions from a child projection into its
// parent projection when they are simple constants, or when they are
// referenced only once (so no computation is duplicated) and not from
// inside a TRY (so no failure moves across the boundary).
//
// One level is merged per call; the optimizer re-invokes the rule to
// flatten deeper stacks.
type InlineProjections struct{}

// NewInlineProjections creates the rule.
func NewInlineProjections() *InlineProjections {
	return &InlineProjections{}
}

// Name implements Rule.
func (*InlineProjections) Name() string { return "InlineProjections" }

// Pattern implements Rule.
func (*InlineProjections) Pattern() Pattern { return NodePattern(OperandProject) }

// Apply implements Rule.
func (r *InlineProjections) Apply(node plan.PlanNode, ctx *Context) (plan.PlanNode, bool) {
	parent, ok := node.(*plan.ProjectNode)
	if !ok {
		return nil, false
	}
	child, ok := ctx.Resolve(parent.Source()).(*plan.ProjectNode)
	if !ok {
		return nil, false
	}

	targets := InliningTargets(parent.Assignments(), child.Assignments())
	if targets.Empty() {
		return nil, false
	}

	bindings := make(map[ir.Symbol]ir.Expression, targets.Len())
	for _, a := range child.Assignments().Entries() {
		if targets.Contains(a.Symbol) {
			bindings[a.Symbol] = a.Expression
		}
	}

	parentAssignments := parent.Assignments().Rewrite(func(e ir.Expression) ir.Expression {
		return exprs.Substitute(e, bindings)
	})

	// Inputs of the inlined expressions, in child assignment order.
	var inputs exprs.SymbolSet
	for _, a := range child.Assignments().Entries() {
		if targets.Contains(a.Symbol) {
			inputs.UnionWith(exprs.FreeSymbols(a.Expression))
		}
	}

	kept := child.Assignments().Filter(func(s ir.Symbol, _ ir.Expression) bool {
		return !targets.Contains(s)
	})
	b := plan.NewAssignmentsBuilder().PutAll(kept)
	for _, s := range inputs.Difference(exprs.MakeSymbolSet(kept.Symbols()...)).Ordered() {
		b.PutIdentity(s)
	}

	newChild := plan.NewProjectNode(child.ID(), child.Source(), b.Build())
	return plan.NewProjectNode(parent.ID(), newChild, parentAssignments), true
}

// InliningTargets returns the child outputs that may be folded into the
// parent, in order of first reference by the parent:
//
//   - constants: referenced symbols bound to a literal
//   - singletons: symbols referenced exactly once across all parent
//     expressions, never from inside any TRY, and not bound to an identity
//
// tryArgs is collected over every parent expression, so a symbol that is a
// TRY argument anywhere is excluded everywhere. Referenced symbols the
// child does not produce are never targets.
func InliningTargets(parent, child plan.Assignments) exprs.SymbolSet {
	var referenced exprs.SymbolSet
	refCount := make(map[ir.Symbol]int)
	var tryArgs exprs.SymbolSet
	for _, e := range parent.Expressions() {
		for _, s := range exprs.SymbolOccurrences(e) {
			referenced.Add(s)
			refCount[s]++
		}
		tryArgs.UnionWith(exprs.TryBoundSymbols(e))
	}

	var targets exprs.SymbolSet
	for _, s := range referenced.Intersection(exprs.MakeSymbolSet(child.Symbols()...)).Ordered() {
		binding, _ := child.Get(s)
		if exprs.IsConstant(binding) {
			targets.Add(s)
			continue
		}
		if refCount[s] == 1 && !tryArgs.Contains(s) && !child.IsIdentity(s) {
			targets.Add(s)
		}
	}
	return targets
}
