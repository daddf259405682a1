package photopicker

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrCancelled indicates the user dismissed the picker without sending.
	// This is a normal flow control error, not a pipeline failure.
	ErrCancelled = errors.New("picker cancelled by user")

	// ErrFetchCancelled is wrapped in the PipelineError of a load whose
	// download was cancelled, by CancelLoad or by closing the session.
	ErrFetchCancelled = errors.New("fetch cancelled")

	// ErrSessionClosed is returned by Session methods after Close.
	ErrSessionClosed = errors.New("picker session closed")

	// ErrTransitionActive is returned when navigation is requested while a
	// transition is still running.
	ErrTransitionActive = errors.New("transition in progress")
)

// PipelineError reports a failure inside the fetch or decode pipelines (the
// library returned nothing, the bytes did not decode, and so on). Pipelines
// never treat these as fatal; the host decides whether to show a placeholder.
type PipelineError struct {
	Op  string // Operation that failed (e.g., "fetch", "decode")
	Err error  // Underlying error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("photopicker: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("photopicker: %s", e.Op)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new pipeline error.
func NewPipelineError(op string, err error) *PipelineError {
	return &PipelineError{Op: op, Err: err}
}

// IsPipelineError checks if an error is a pipeline error.
func IsPipelineError(err error) bool {
	var pipeErr *PipelineError
	return errors.As(err, &pipeErr)
}

// IsCancelled checks if an error indicates user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
