// Package simulator provides Simulator implementations that call an external
// epidemic model.
//
// Exec runs one process per scenario. The process receives the JSON-encoded
// ensemble.Request on stdin and must write one JSON-encoded ir.SimulationRun
// to stdout. A non-zero exit status, unparseable output or an empty document
// is an error.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/roach88/epiband/internal/ensemble"
	"github.com/roach88/epiband/internal/ir"
)

// maxStderr bounds how much of the child's stderr is kept for error messages.
const maxStderr = 4096

// Exec runs an external command per scenario.
type Exec struct {
	command string
	args    []string
	env     []string
	dir     string
}

// ExecOption configures an Exec simulator.
type ExecOption func(*Exec)

// WithEnv appends KEY=VALUE pairs to the child's environment.
func WithEnv(env ...string) ExecOption {
	return func(e *Exec) {
		e.env = append(e.env, env...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) ExecOption {
	return func(e *Exec) {
		e.dir = dir
	}
}

// NewExec creates an Exec simulator for command.
func NewExec(command string, args []string, opts ...ExecOption) (*Exec, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ir.NewInvalidConfiguration("simulator command is empty")
	}
	e := &Exec{command: command, args: append([]string(nil), args...)}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Command returns the command line, for logging.
func (e *Exec) Command() string {
	return strings.Join(append([]string{e.command}, e.args...), " ")
}

// Simulate implements ensemble.Simulator. The child is killed when ctx is
// cancelled.
func (e *Exec) Simulate(ctx context.Context, req ensemble.Request) (*ir.SimulationRun, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request %s: %w", req.Key, err)
	}

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Dir = e.dir
	if len(e.env) > 0 {
		cmd.Env = append(cmd.Environ(), e.env...)
	}
	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with status %d: %s",
				e.command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("start %s: %w", e.command, err)
	}

	return decodeRun(stdout.Bytes())
}

func decodeRun(data []byte) (*ir.SimulationRun, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("simulator produced no output")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var run ir.SimulationRun
	if err := dec.Decode(&run); err != nil {
		return nil, fmt.Errorf("decode simulator output: %w", err)
	}
	if dec.More() {
		return nil, errors.New("simulator output has trailing data")
	}
	return &run, nil
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
