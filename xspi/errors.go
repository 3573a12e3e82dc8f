package xspi

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a poll condition is not met in time.
	ErrTimeout = errors.New("xspi: timeout")

	// ErrState is returned when an operation is illegal in the current
	// bus state, such as a direct command while memory-mapped.
	ErrState = errors.New("xspi: operation not allowed in current state")

	// ErrUnsupported is returned when the bus cannot express a request.
	ErrUnsupported = errors.New("xspi: not supported by this bus")
)

// PhaseError indicates a phase with an invalid or unsupported line width.
type PhaseError struct {
	Phase string
	Lines Lines
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("xspi: invalid %s phase width: %d lines", e.Phase, e.Lines)
}

// StateError reports the state an operation was attempted in.
// It matches ErrState with errors.Is.
type StateError struct {
	Operation string
	State     State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("xspi: %s not allowed in state %s", e.Operation, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrState
}
