package chart

import "errors"

var (
	// ErrTraceIndex is returned when a legend toggle refers to a trace that does not exist.
	ErrTraceIndex = errors.New("trace index out of range")

	// ErrNotRendered is returned when an operation requires a prior render.
	ErrNotRendered = errors.New("chart not rendered yet")
)

// RenderFailure reports that the drawing backend rejected a plot specification.
//
// Render failures are surfaced to the caller and never retried.
type RenderFailure struct {
	Cause error
}

func (e *RenderFailure) Error() string {
	return "render failure: " + e.Cause.Error()
}

func (e *RenderFailure) Unwrap() error {
	return e.Cause
}
