package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// ReloadService replaces in-process definitions for every changed file and
// its transitive dependents in the process under test.
type ReloadService interface {
	Reload(ctx context.Context) error
}

// ExecReload shells out to an external reload command.
type ExecReload struct {
	Command []string
	Dir     string
}

// NewExecReload constructs a reload service for the given command.
func NewExecReload(command []string, dir string) *ExecReload {
	return &ExecReload{Command: command, Dir: dir}
}

// Reload runs the reload command and fails on a non-zero exit.
func (r *ExecReload) Reload(ctx context.Context) error {
	if len(r.Command) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Dir = r.Dir

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("reload failed: %w: %s", err, output.String())
	}

	return nil
}

// NoopReload is used when the runner re-reads source on every invocation and
// no explicit reload step exists.
type NoopReload struct{}

// Reload does nothing.
func (NoopReload) Reload(_ context.Context) error {
	return nil
}
