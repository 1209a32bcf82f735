package render

import (
	"errors"
	"fmt"
	"time"

	"clarifai/internal/services"
)

// FailureKind classifies a failed render attempt.
type FailureKind string

const (
	FailureStructural    FailureKind = "structural"
	FailureEngine        FailureKind = "engine"
	FailureTimeout       FailureKind = "timeout"
	FailureMissingOutput FailureKind = "missing_output"
)

// Error is a failed attempt. Error() returns the diagnostic text verbatim.
type Error struct {
	Kind   FailureKind
	Output string
}

func (e *Error) Error() string {
	return e.Output
}

// Unwrap maps the failure onto the shared service error markers.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case FailureStructural:
		return services.ErrValidation
	case FailureTimeout:
		return services.ErrTimeout
	default:
		return services.ErrExternalTool
	}
}

// AsError extracts a render failure from err.
func AsError(err error) (*Error, bool) {
	var renderErr *Error
	if errors.As(err, &renderErr) {
		return renderErr, true
	}
	return nil, false
}

func structuralError() *Error {
	return &Error{
		Kind:   FailureStructural,
		Output: "no renderable scene found: the code must declare a class that extends Scene, e.g. `class Main(Scene):`",
	}
}

func timeoutError(limit time.Duration) *Error {
	return &Error{Kind: FailureTimeout, Output: fmt.Sprintf("render timed out after %s", limit)}
}

func missingOutputError(name string) *Error {
	return &Error{
		Kind:   FailureMissingOutput,
		Output: fmt.Sprintf("manim exited successfully but produced no video for scene %s", name),
	}
}
