package entities

import (
	"errors"
	"fmt"
)

// ErrNoCompensator is returned when rolling back an action type that has no
// compensating operation.
var ErrNoCompensator = errors.New("no compensating action")

// ErrStatusMismatch is returned by stores when a compare-and-swap finds a
// status other than the expected one.
var ErrStatusMismatch = errors.New("status mismatch")

// ErrSideEffectInFlight is returned when reconcile targets a marker whose
// side effect may still be running.
var ErrSideEffectInFlight = errors.New("side effect may still be in flight")

// ValidationError reports malformed input. Line is set when the input came
// from a feed file.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Line    int
}

func (e *ValidationError) Error() string {
	msg := e.Field + " " + e.Message
	if e.Value != "" {
		msg = fmt.Sprintf("%s %s: %q", e.Field, e.Message, e.Value)
	}
	if e.Line > 0 {
		return fmt.Sprintf("invalid record at line %d: %s", e.Line, msg)
	}
	return "invalid input: " + msg
}

// StateConflictError reports a transition whose precondition did not hold.
type StateConflictError struct {
	ActionID string
	Op       string
	Current  ActionStatus
	Expected []ActionStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("wrong state: cannot %s action %s in status %s (want %v)",
		e.Op, e.ActionID, e.Current, e.Expected)
}

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ExecutionError reports a failed side-effect call. The action is left
// retryable.
type ExecutionError struct {
	ActionID string
	Op       string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed for action %s: %v", e.Op, e.ActionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStateConflict reports whether err is or wraps a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
