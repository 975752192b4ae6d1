package adapter

import (
	"context"
	"fmt"
	"os"

	"spore.dev/pkg/spore/internal/model"
)

// MutantSelector controls the schemata runtime discriminator: a single
// mutable slot naming the currently active mutant. It is valid only for
// strictly sequential use within one mutation cycle, never concurrent.
type MutantSelector interface {
	Activate(ctx context.Context, mutantID string) error
	Clear(ctx context.Context) error
}

// FileSelector materializes the slot as a file the process under test reads
// on each selector check.
type FileSelector struct {
	Path model.Path
}

// NewFileSelector constructs a selector over the given slot file.
func NewFileSelector(path model.Path) *FileSelector {
	return &FileSelector{Path: path}
}

// Activate writes the mutant ID into the slot.
func (s *FileSelector) Activate(ctx context.Context, mutantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.WriteFile(string(s.Path), []byte(mutantID), 0o600); err != nil {
		return fmt.Errorf("activate mutant %s: %w", mutantID, err)
	}

	return nil
}

// Clear empties the slot so every schemata branch falls through to the
// original expression.
func (s *FileSelector) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.WriteFile(string(s.Path), nil, 0o600); err != nil {
		return fmt.Errorf("clear mutant selector: %w", err)
	}

	return nil
}
