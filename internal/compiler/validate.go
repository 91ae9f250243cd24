package compiler

import (
	"fmt"

	"github.com/roach88/projmerge/internal/plan"
)

// Compile and validation error codes (E100-E199)
const (
	// Plan file structure errors (E101-E109)
	ErrMissingField       = "E101" // required field is absent
	ErrUnknownKind        = "E102" // node kind is not project/filter/scan/values
	ErrInvalidExpression  = "E103" // expression does not parse
	ErrInvalidFieldType   = "E104" // invalid type string or conflicting declaration
	ErrDuplicateName      = "E105" // duplicate plan, symbol or assignment name
	ErrFloatTypeForbidden = "E106" // float types and literals not allowed
	ErrInvalidValue       = "E107" // field has the wrong shape

	// Plan well-formedness errors (E120-E129)
	ErrUnresolvedSymbol = "E120" // symbol consumed but not produced by the source
	ErrDuplicateOutput  = "E121" // output symbol produced twice by one node
	ErrRowWidth         = "E122" // values row width differs from outputs
	ErrDuplicateID      = "E123" // node id used more than once
	ErrMissingSource    = "E124" // operator without a source
)

var problemCodes = map[string]string{
	plan.ProblemUnresolvedSymbol: ErrUnresolvedSymbol,
	plan.ProblemDuplicateOutput:  ErrDuplicateOutput,
	plan.ProblemRowWidth:         ErrRowWidth,
	plan.ProblemDuplicateID:      ErrDuplicateID,
	plan.ProblemMissingSource:    ErrMissingSource,
}

// ValidationError represents a plan well-formedness error.
type ValidationError struct {
	Node    plan.NodeID `json:"node,omitempty"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Line    int         `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled plan tree and returns every problem found
// (does not fail-fast). lines maps node ids to the source line that
// declared them; it may be nil.
func Validate(root plan.PlanNode, lines map[plan.NodeID]int) []ValidationError {
	result := plan.Validate(root, plan.NoLookup)
	if result.Valid {
		return nil
	}

	errs := make([]ValidationError, 0, len(result.Problems))
	for _, p := range result.Problems {
		code, ok := problemCodes[p.Code]
		if !ok {
			code = ErrInvalidValue
		}
		field := fmt.Sprintf("nodes.%s", p.Node)
		if p.Symbol != "" {
			field = fmt.Sprintf("nodes.%s.%s", p.Node, p.Symbol)
		}
		errs = append(errs, ValidationError{
			Node:    p.Node,
			Field:   field,
			Message: p.Message,
			Code:    code,
			Line:    lines[p.Node],
		})
	}
	return errs
}
