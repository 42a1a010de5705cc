// Package statestore provides standardized error types for state store operations.
package statestore

import (
	"errors"
	"fmt"
)

// ErrStateNotFound indicates no context exists for the execution id. A
// retry hitting this error means resume information was lost; it must be
// surfaced, never downgraded to a from-scratch run.
var ErrStateNotFound = errors.New("execution state not found")

// StateError wraps state store errors with operation context.
type StateError struct {
	Op          string // Operation being performed (e.g. "GetState", "SetNodeOutput")
	ExecutionID string
	Err         error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a state error with context.
func NewStateError(op, executionID string, err error) *StateError {
	return &StateError{Op: op, ExecutionID: executionID, Err: err}
}

// IsStateNotFound checks if an error indicates a missing execution context.
func IsStateNotFound(err error) bool {
	return errors.Is(err, ErrStateNotFound)
}
