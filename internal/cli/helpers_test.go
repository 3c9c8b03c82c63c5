package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/epiband/internal/ensemble"
	"github.com/roach88/epiband/internal/testutil"
)

const testExperiment = `
name: cli-test
region: NZ
horizon: %d
sampler:
  n: %d
  seed: 11
  primary:
    name: r0
    distribution: {kind: beta, shape1: 2, shape2: 5}
    rescale: {lo: 1.2, hi: 2.1}
  secondary:
    name: severity
    distribution: {kind: gamma, shape1: 2, shape2: 20}
    rescale: {lo: 0.05, hi: 0.2}
  profile:
    groups: ["0-19", "20-64", "65+"]
    weights: [1, 1, 2]
policies:
  - {id: none, baseline: true}
  - {id: school_closures, intensity: [1, 0, 0]}
aggregate:
  widths: [0.5, 0.9]
`

// writeExperiment writes a small experiment into a fresh directory.
func writeExperiment(t *testing.T, horizon, n int, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	content := fmt.Sprintf(testExperiment, horizon, n) + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// stubRunOptions returns run options driving the stub simulator.
func stubRunOptions(format string, stub ensemble.Simulator, ids ...string) *RunOptions {
	if stub == nil {
		stub = testutil.NewStubSimulator()
	}
	if len(ids) == 0 {
		ids = []string{"run-1"}
	}
	return &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Simulator:   stub,
		RunIDs:      ensemble.NewFixedGenerator(ids...),
	}
}

// testCommand returns a bare command writing its output to buf. Logs are
// discarded so JSON output stays parseable.
func testCommand(buf *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	return cmd
}
