package harness

import "github.com/roach88/projmerge/internal/store"

// TraceEvent is one rule firing as recorded in the trace store.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Rule   string `json:"rule"`
	Group  int    `json:"group"`
	Node   string `json:"node"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// RunID is the optimizer run id.
	RunID string `json:"run_id"`

	// Trace contains the rule firings in seq order.
	Trace []TraceEvent `json:"trace"`

	// BeforePlan and FinalPlan are the input and output plans in
	// plan.Format form. FinalPlan is empty when optimization failed.
	BeforePlan string `json:"before_plan"`
	FinalPlan  string `json:"final_plan,omitempty"`

	// Steps is the number of firings.
	Steps int `json:"steps"`

	// ErrorCode is the runtime error code when optimization failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddFiringTrace adds a stored firing to the trace.
func (r *Result) AddFiringTrace(f store.Firing) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    f.Seq,
		Rule:   f.Rule,
		Group:  f.GroupID,
		Node:   f.NodeID,
		Before: f.BeforePlan,
		After:  f.AfterPlan,
	})
}
