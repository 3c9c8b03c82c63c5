package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/epiband/internal/ir"
	"github.com/roach88/epiband/internal/store"
	"github.com/roach88/epiband/internal/testutil"
)

const testOutput = `
output:
  dir: out
  database: results.db
`

func TestRunWritesTablesAndStore(t *testing.T) {
	path := writeExperiment(t, 20, 10, testOutput)
	dir := filepath.Dir(path)

	buf := &bytes.Buffer{}
	err := runExperiment(stubRunOptions("text", nil), path, testCommand(buf))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Run run-1 complete: 20 scenarios")
	assert.Contains(t, out, filepath.Join(dir, "results.db"))

	for _, name := range []string{"curves", "points", "costs", "cost_totals", "quartiles", "samples"} {
		assert.FileExists(t, filepath.Join(dir, "out", name+".csv"))
	}

	st, err := store.Open(filepath.Join(dir, "results.db"))
	require.NoError(t, err)
	defer st.Close()

	exp, err := st.ReadExperiment(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "cli-test", exp.Name)
	assert.Equal(t, 20, exp.Scenarios)
	assert.Equal(t, []float64{0.5, 0.9}, exp.Widths)
	assert.Len(t, exp.ConfigHash, 64)
}

func TestRunFlagsOverrideOutput(t *testing.T) {
	path := writeExperiment(t, 10, 4, testOutput)
	outDir := filepath.Join(t.TempDir(), "tables")
	dbPath := filepath.Join(t.TempDir(), "override.db")

	opts := stubRunOptions("text", nil)
	opts.OutDir = outDir
	opts.Database = dbPath
	opts.Workers = 1

	buf := &bytes.Buffer{}
	require.NoError(t, runExperiment(opts, path, testCommand(buf)))

	assert.FileExists(t, filepath.Join(outDir, "curves.csv"))
	assert.FileExists(t, dbPath)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(path), "out"))
}

func TestRunJSONOutput(t *testing.T) {
	path := writeExperiment(t, 10, 3, "")
	opts := stubRunOptions("json", nil, "run-json")

	buf := &bytes.Buffer{}
	require.NoError(t, runExperiment(opts, path, testCommand(buf)))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-json", resp.RunID)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(6), data["scenarios"])
	assert.NotContains(t, data, "files")
}

func TestRunSimulationFailure(t *testing.T) {
	path := writeExperiment(t, 10, 5, testOutput)
	dir := filepath.Dir(path)

	stub := testutil.NewStubSimulator()
	failing := ir.ScenarioKey{SampleTag: "sample_3", PolicyID: "school_closures", Window: ir.Window{Start: 0, End: 10}}
	stub.FailOn = map[ir.ScenarioKey]error{failing: errors.New("model diverged")}

	buf := &bytes.Buffer{}
	err := runExperiment(stubRunOptions("json", stub), path, testCommand(buf))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, ir.IsSimulationFailure(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSimulationFailure, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, failing.String(), details["scenario"])

	// Nothing is written when the ensemble fails
	assert.NoDirExists(t, filepath.Join(dir, "out"))
	assert.NoFileExists(t, filepath.Join(dir, "results.db"))
}

func TestRunInvalidExperiment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nhorizon: 0\n"), 0644))

	buf := &bytes.Buffer{}
	err := runExperiment(stubRunOptions("text", nil), path, testCommand(buf))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeInvalidConfig)
}

func TestRunMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	err := runExperiment(stubRunOptions("text", nil), filepath.Join(t.TempDir(), "missing.yaml"), testCommand(buf))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeNotFound)
}

func TestRunRequiresSimulatorCommand(t *testing.T) {
	path := writeExperiment(t, 10, 2, "")
	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}}

	buf := &bytes.Buffer{}
	err := runExperiment(opts, path, testCommand(buf))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "simulator.command is required")
}

func TestRunCancelled(t *testing.T) {
	path := writeExperiment(t, 10, 2, "")
	stub := testutil.NewStubSimulator()
	stub.Block = map[ir.ScenarioKey]bool{
		{SampleTag: "sample_1", PolicyID: "none", Window: ir.Window{Start: 0, End: 10}}: true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := &bytes.Buffer{}
	cmd := testCommand(buf)
	cmd.SetContext(ctx)
	err := runExperiment(stubRunOptions("text", stub), path, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeCancelled)
}

func TestRunCommandRequiresArgument(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
