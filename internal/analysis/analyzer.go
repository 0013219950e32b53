// Package analysis defines the port to the external text-analysis
// capability and the failure taxonomy that drives retry policy. Every call
// carries the full context it needs; there is no server-side conversational
// state, so a retried call is equivalent to the original.
package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Analyzer invokes the external analysis capability with a task identifier
// and assembled context text, returning the produced text.
type Analyzer interface {
	Invoke(ctx context.Context, taskID, contextText string) (string, error)
}

// Error is a capability failure annotated with retryability. Timeouts, rate
// limits and 5xx-class failures are transient; malformed input and
// unrecognized responses are permanent.
type Error struct {
	TaskID    string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("analysis: task %s: %s failure: %v", e.TaskID, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TransientError wraps err as a retryable capability failure.
func TransientError(taskID string, err error) *Error {
	return &Error{TaskID: taskID, Transient: true, Err: err}
}

// PermanentError wraps err as a non-retryable capability failure.
func PermanentError(taskID string, err error) *Error {
	return &Error{TaskID: taskID, Transient: false, Err: err}
}

// IsTransient reports whether err should be retried. Unclassified errors
// are treated as permanent.
func IsTransient(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}
