package exprs

import "github.com/roach88/projmerge/internal/ir"

// PreOrder calls visit for e and then each sub-expression, parents before
// children and children left to right. If visit returns false the
// sub-expressions of that node are skipped.
func PreOrder(e ir.Expression, visit func(ir.Expression) bool) {
	if e == nil {
		return
	}
	if !visit(e) {
		return
	}
	for _, child := range ir.Children(e) {
		PreOrder(child, visit)
	}
}
