package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/epiband/internal/ir"
)

func TestOutputFormatter_JSONReport(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf, RunID: "run-7"}

	err := formatter.Report(map[string]int{"scenarios": 400}, "ignored in json mode\n")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-7", resp.RunID)
	assert.Equal(t, map[string]interface{}{"scenarios": float64(400)}, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_TextReport(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Report(map[string]int{"scenarios": 400}, "400 scenarios\n"))
	assert.Equal(t, "400 scenarios\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"scenario": "sample_1/none/0-60"}
	require.NoError(t, formatter.Error(ErrCodeSimulationFailure, "experiment failed", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSimulationFailure, resp.Error.Code)
	assert.Equal(t, "experiment failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
	assert.Empty(t, resp.RunID)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeInvalidConfig, "invalid experiment", []string{"horizon"}))
			assert.Contains(t, buf.String(), "Error [E201]: invalid experiment")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("exporting run %s", "run-1")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "exporting run run-1\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", nil)))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "run", errors.New("boom")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "run failed", WrapExitError(ExitFailure, "run failed", nil).Error())

	cause := errors.New("boom")
	err := WrapExitError(ExitFailure, "run failed", cause)
	assert.Equal(t, "run failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestClassify(t *testing.T) {
	key := ir.ScenarioKey{SampleTag: "sample_1", PolicyID: "none", Window: ir.Window{End: 10}}

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"simulation failure", ir.NewSimulationFailure(key, "simulator raised", errors.New("x")), ErrCodeSimulationFailure, ExitFailure},
		{"cancelled", fmt.Errorf("ensemble r cancelled: %w", context.Canceled), ErrCodeCancelled, ExitFailure},
		{"deadline", context.DeadlineExceeded, ErrCodeCancelled, ExitFailure},
		{"invalid config", ir.NewInvalidConfiguration("horizon must be positive"), ErrCodeInvalidConfig, ExitCommandError},
		{"missing file", fmt.Errorf("read: %w", os.ErrNotExist), ErrCodeNotFound, ExitCommandError},
		{"other", errors.New("disk full"), ErrCodeGeneric, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestFail_ScenarioDetails(t *testing.T) {
	key := ir.ScenarioKey{SampleTag: "sample_2", PolicyID: "elimination", Window: ir.Window{Start: 0, End: 30}}
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := fail(formatter, "experiment failed", ir.NewSimulationFailure(key, "simulator raised", errors.New("nan")))
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sample_2/elimination/0-30", details["scenario"])
	assert.Equal(t, ir.MustScenarioID(key), details["scenario_id"])
}
