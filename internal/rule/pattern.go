package rule

import "github.com/roach88/projmerge/internal/plan"

// Operand is the node kind a pattern position matches.
type Operand int

const (
	// OperandAny matches any node.
	OperandAny Operand = iota
	OperandProject
	OperandFilter
	OperandValues
	OperandTableScan
)

func (o Operand) String() string {
	switch o {
	case OperandAny:
		return "any"
	case OperandProject:
		return plan.KindProject
	case OperandFilter:
		return plan.KindFilter
	case OperandValues:
		return plan.KindValues
	case OperandTableScan:
		return plan.KindScan
	default:
		return "unknown"
	}
}

// Pattern describes the shape of a plan fragment. A pattern with no
// Sources constrains only the root; otherwise Sources[i] must match the
// node's i-th (resolved) source.
type Pattern struct {
	Operand Operand
	Sources []Pattern
}

// NodePattern matches any node of the given kind.
func NodePattern(op Operand) Pattern {
	return Pattern{Operand: op}
}

// Matches reports whether node has the pattern's shape. Sources are
// resolved through lookup.
func (p Pattern) Matches(node plan.PlanNode, lookup plan.Lookup) bool {
	if lookup != nil {
		node = lookup.Resolve(node)
	}
	if !p.Operand.matches(node) {
		return false
	}
	if len(p.Sources) == 0 {
		return true
	}

	sources := node.Sources()
	if len(sources) != len(p.Sources) {
		return false
	}
	for i, sp := range p.Sources {
		if !sp.Matches(sources[i], lookup) {
			return false
		}
	}
	return true
}

func (o Operand) matches(node plan.PlanNode) bool {
	switch o {
	case OperandAny:
		return true
	case OperandProject:
		_, ok := node.(*plan.ProjectNode)
		return ok
	case OperandFilter:
		_, ok := node.(*plan.FilterNode)
		return ok
	case OperandValues:
		_, ok := node.(*plan.ValuesNode)
		return ok
	case OperandTableScan:
		_, ok := node.(*plan.TableScanNode)
		return ok
	default:
		return false
	}
}
