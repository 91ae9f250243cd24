package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer bounds the number of rule firings in one run.
//
// Cycle detection only sees a group returning to a plan it already had.
// A rule set that keeps producing new plans, for example one that grows
// an expression on every application, never repeats a fingerprint; the
// quota stops it. Each run gets its own enforcer.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer that accepts maxSteps firings.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one firing of rule, before it is applied, and fails once
// the count passes the limit. A limit of zero rejects the first firing.
func (q *QuotaEnforcer) Check(runID, rule string) error {
	q.current++
	if q.current <= q.maxSteps {
		return nil
	}
	return &StepsExceededError{RunID: runID, Rule: rule, Steps: q.current, Limit: q.maxSteps}
}

// Current is the number of firings counted so far, including a rejected one.
func (q *QuotaEnforcer) Current() int { return q.current }

// MaxSteps returns the limit the enforcer was created with.
func (q *QuotaEnforcer) MaxSteps() int { return q.maxSteps }

// StepsExceededError reports the firing that went over the limit. The
// optimizer wraps it in a RuntimeError with ErrCodeQuotaExceeded.
type StepsExceededError struct {
	RunID string
	Rule  string // rule whose firing was rejected
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max steps at %s: %d steps > %d limit",
		e.RunID, e.Rule, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err wraps a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
