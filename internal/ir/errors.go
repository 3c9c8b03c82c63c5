package ir

import (
	"errors"
	"fmt"
)

// Error represents a pipeline error with a stable code.
//
// Pipeline errors include:
//   - Invalid configuration: malformed sampling bounds, empty ensembles,
//     non-monotonic timing windows
//   - Simulation failure: the simulator raised or returned no result for a
//     declared scenario key
//
// Neither is retried by the core.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key identifies the offending scenario (simulation failures only).
	Key *ScenarioKey

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeInvalidConfiguration is raised before any simulation runs.
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"

	// ErrCodeSimulationFailure aborts the ensemble for one scenario key.
	ErrCodeSimulationFailure ErrorCode = "SIMULATION_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != nil {
		msg = fmt.Sprintf("%s (scenario=%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewInvalidConfiguration creates an invalid configuration error.
func NewInvalidConfiguration(message string) *Error {
	return &Error{Code: ErrCodeInvalidConfiguration, Message: message}
}

// NewSimulationFailure creates a simulation failure for key.
func NewSimulationFailure(key ScenarioKey, message string, cause error) *Error {
	return &Error{Code: ErrCodeSimulationFailure, Message: message, Key: &key, Err: cause}
}

// IsInvalidConfiguration reports whether err is an invalid configuration error.
// Uses errors.As to handle wrapped errors.
func IsInvalidConfiguration(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeInvalidConfiguration
	}
	return false
}

// IsSimulationFailure reports whether err is a simulation failure.
// Uses errors.As to handle wrapped errors.
func IsSimulationFailure(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeSimulationFailure
	}
	return false
}

// FailedKey returns the scenario key carried by a simulation failure.
func FailedKey(err error) (ScenarioKey, bool) {
	var e *Error
	if errors.As(err, &e) && e.Key != nil {
		return *e.Key, true
	}
	return ScenarioKey{}, false
}
