package fibers

import (
	"fmt"
)

// ConfigurationError indicates misuse of the scheduler API, e.g. attempting
// to construct a [Hub] outside the root task, calling [Hub.Switch] from the
// hub itself, or invoking a switchpoint from within an atomic section.
//
// A ConfigurationError is not recoverable by retrying: it signals that the
// calling code violates a scheduler invariant. Correct programs never
// trigger it. Match with [errors.As]:
//
//	var cfgErr *fibers.ConfigurationError
//	if errors.As(err, &cfgErr) {
//	    // programming error, fix the caller
//	}
type ConfigurationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return `fibers: ` + e.Reason
}

func newConfigurationError(reason string) error {
	return &ConfigurationError{Reason: reason}
}

// PanicError wraps a value recovered from a panicking task body. It is
// delivered through the parent's switch return path, so the parent observes
// the failure as the result of its own [Task.Switch] call.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf(`fibers: task panicked: %v`, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] for error matching
// through the cause chain. If the panic Value is not an error (e.g. a
// string), Unwrap returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
