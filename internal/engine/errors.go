package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while optimizing a plan.
//
// Runtime errors include:
//   - Cycle detection: a group returned to a plan it already had
//   - Quota exceeded: the run exceeded the max steps limit
//   - Invalid rewrite: a rule changed a node's output symbols
//   - Cancelled: the context was done between firings
//
// A RuntimeError aborts the run; no partial result is returned.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Rule names the rule whose firing failed, if any.
	Rule string

	// GroupID identifies the memo group being explored (0 if none).
	GroupID int

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCycleDetected indicates a group would revisit an earlier plan.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeQuotaExceeded indicates the run exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeInvalidRewrite indicates a rule result does not preserve the
	// node's output symbols.
	ErrCodeInvalidRewrite RuntimeErrorCode = "INVALID_REWRITE"

	// ErrCodeCancelled indicates the context was cancelled mid-run.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" && e.Rule != "" {
		return fmt.Sprintf("%s: %s (run=%s, rule=%s, group=%d)", e.Code, e.Message, e.RunID, e.Rule, e.GroupID)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycleDetected)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded) || IsStepsExceededError(err)
}

// IsInvalidRewriteError returns true if a rule produced an invalid rewrite.
func IsInvalidRewriteError(err error) bool {
	return hasCode(err, ErrCodeInvalidRewrite)
}

// IsCancelledError returns true if the run was cancelled.
func IsCancelledError(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// NewCycleError creates a RuntimeError for cycle detection.
func NewCycleError(runID, rule string, group int, fingerprint string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: "rule would return group to an earlier plan",
		RunID:   runID,
		Rule:    rule,
		GroupID: group,
		Details: map[string]string{"fingerprint": fingerprint},
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(runID, rule string, group int, cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("run exceeded max steps (%d > %d)", cause.Steps, cause.Limit),
		RunID:   runID,
		Rule:    rule,
		GroupID: group,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

// NewInvalidRewriteError creates a RuntimeError for a rule result whose
// outputs differ from the node it replaces.
func NewInvalidRewriteError(runID, rule string, group int, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidRewrite,
		Message: fmt.Sprintf("rewrite changed outputs from %s to %s", want, got),
		RunID:   runID,
		Rule:    rule,
		GroupID: group,
		Details: map[string]string{"want": want, "got": got},
	}
}

// NewCancelledError creates a RuntimeError for a cancelled run.
func NewCancelledError(runID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCancelled,
		Message: "optimization cancelled",
		RunID:   runID,
		Err:     cause,
	}
}
