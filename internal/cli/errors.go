package cli

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/roach88/epiband/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path or run not found
	ErrCodeWriteFailed = "E007" // File or database write error

	ErrCodeInvalidConfig     = "E201" // Experiment failed schema or semantic checks
	ErrCodeSimulationFailure = "E202" // Simulator failed for one scenario
	ErrCodeCancelled         = "E203" // Ensemble cancelled before completion
)

// classify maps an error to its CLI code and exit status.
func classify(err error) (string, int) {
	switch {
	case ir.IsSimulationFailure(err):
		return ErrCodeSimulationFailure, ExitFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCancelled, ExitFailure
	case ir.IsInvalidConfiguration(err):
		return ErrCodeInvalidConfig, ExitCommandError
	case errors.Is(err, os.ErrNotExist), errors.Is(err, sql.ErrNoRows):
		return ErrCodeNotFound, ExitCommandError
	default:
		return ErrCodeGeneric, ExitCommandError
	}
}

// fail reports err through the formatter and returns the matching ExitError.
func fail(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	var details interface{}
	if key, ok := ir.FailedKey(err); ok {
		details = map[string]string{"scenario": key.String(), "scenario_id": ir.MustScenarioID(key)}
	}
	_ = f.Error(code, message+": "+err.Error(), details)
	return WrapExitError(exit, message, err)
}

// failWrite reports an output write failure.
func failWrite(f *OutputFormatter, message string, err error) error {
	_ = f.Error(ErrCodeWriteFailed, message+": "+err.Error(), nil)
	return WrapExitError(ExitCommandError, message, err)
}
