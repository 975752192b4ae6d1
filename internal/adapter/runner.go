package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"

	"spore.dev/pkg/spore/internal/model"
)

// Outcome is the result of running one test.
type Outcome int

const (
	// OutcomePass means the test ran and its assertions held.
	OutcomePass Outcome = iota
	// OutcomeFail means the test ran and an assertion failed.
	OutcomeFail
	// OutcomeThrew means the test aborted with an uncaught error.
	OutcomeThrew
)

// TestRunner executes one test by ID. Implementations must be safely
// repeatable: running the same test twice is always allowed.
type TestRunner interface {
	Run(ctx context.Context, test model.TestID) (Outcome, string, error)
}

// ExecTestRunner shells out to an external runner command. The token
// "{test}" in the argument list is substituted with the test ID. Outcome
// mapping: exit 0 is a pass, exit 1 a failed assertion, anything else an
// uncaught error.
type ExecTestRunner struct {
	Command []string
	Dir     string
}

// NewExecTestRunner constructs a runner for the given command template.
func NewExecTestRunner(command []string, dir string) (*ExecTestRunner, error) {
	if len(command) == 0 {
		return nil, errors.New("test runner command is empty")
	}

	return &ExecTestRunner{Command: command, Dir: dir}, nil
}

// Run executes the runner command for one test.
func (r *ExecTestRunner) Run(ctx context.Context, test model.TestID) (Outcome, string, error) {
	args := make([]string, 0, len(r.Command))

	for _, arg := range r.Command {
		args = append(args, strings.ReplaceAll(arg, "{test}", string(test)))
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err == nil {
		return OutcomePass, output.String(), nil
	}

	if ctx.Err() != nil {
		return OutcomeThrew, output.String(), ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 1 {
			return OutcomeFail, output.String(), nil
		}

		return OutcomeThrew, output.String(), nil
	}

	return OutcomeThrew, output.String(), fmt.Errorf("run test %s: %w", test, err)
}

// TestInfo describes one test and the source files it declares as
// dependencies; the dependency set feeds the coverage unit hash.
type TestInfo struct {
	ID   model.TestID `yaml:"id"`
	Deps []model.Path `yaml:"deps"`
}

// TestInventory lists the tests the engine may select from.
type TestInventory interface {
	Tests(ctx context.Context) ([]TestInfo, error)
}

// ManifestInventory reads the test list from a YAML manifest maintained by
// the project under test.
type ManifestInventory struct {
	Path model.Path
}

// NewManifestInventory constructs an inventory for the given manifest file.
func NewManifestInventory(path model.Path) *ManifestInventory {
	return &ManifestInventory{Path: path}
}

type manifestFile struct {
	Tests []TestInfo `yaml:"tests"`
}

// Tests loads and parses the manifest.
func (m *ManifestInventory) Tests(ctx context.Context) ([]TestInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(string(m.Path))
	if err != nil {
		return nil, fmt.Errorf("read test manifest %s: %w", m.Path, err)
	}

	var manifest manifestFile

	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse test manifest %s: %w", m.Path, err)
	}

	return manifest.Tests, nil
}
