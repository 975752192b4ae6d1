package domain

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pmezard/go-difflib/difflib"

	"spore.dev/pkg/spore/internal/adapter"
	"spore.dev/pkg/spore/internal/cast"
	"spore.dev/pkg/spore/internal/model"
)

// ErrMutationApply marks a failed generator or splice; the site is skipped
// and no file is touched.
var ErrMutationApply = errors.New("mutation apply failed")

// ErrRevertFailure marks a failed backup restore. Guaranteed reversion
// underwrites every other guarantee, so this error is fatal for the run.
var ErrRevertFailure = errors.New("revert failed")

// Handle retains the pre-edit content of a mutated file so the edit can be
// rolled back exactly.
type Handle struct {
	File     model.Path
	original []byte
	mutated  []byte
}

// Diff renders a unified diff of the original versus mutated file content.
func (h *Handle) Diff() string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(h.original)),
		B:        difflib.SplitLines(string(h.mutated)),
		FromFile: string(h.File),
		ToFile:   string(h.File) + " (mutated)",
		Context:  2,
	})
	if err != nil {
		return ""
	}

	return diff
}

// Applier performs transactional single-mutation edits on source files.
type Applier struct {
	fs adapter.SourceFS
}

// NewApplier constructs an Applier backed by the given filesystem adapter.
func NewApplier(fs adapter.SourceFS) *Applier {
	return &Applier{fs: fs}
}

// Apply decodes the site's coordinate on the snapshot, splices the rendered
// replacement into the tree and writes the file. It returns a handle holding
// the pre-edit text for Revert. On any failure no file is touched.
func (a *Applier) Apply(snap *Snapshot, site model.MutationSite) (*Handle, error) {
	node, _, err := snap.DecodeSite(site)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrMutationApply, site.Key(), err)
	}

	fragment, err := cast.ParseFragment(site.Replacement)
	if err != nil {
		return nil, fmt.Errorf("%w: replacement for %s: %w", ErrMutationApply, site.Key(), err)
	}

	mutatedTree, err := snap.Tree.Replace(node, fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: splice %s: %w", ErrMutationApply, site.Key(), err)
	}

	handle := &Handle{
		File:     site.File,
		original: []byte(snap.Content),
		mutated:  []byte(mutatedTree.Render()),
	}

	if err := a.fs.WriteFile(site.File, handle.mutated, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", ErrMutationApply, site.File, err)
	}

	slog.Debug("applied mutation", "site", site.Key(), "file", site.File)

	return handle, nil
}

// Revert restores the file to its byte-identical pre-edit content and
// verifies the restore by reading it back.
func (a *Applier) Revert(handle *Handle) error {
	if err := a.fs.WriteFile(handle.File, handle.original, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrRevertFailure, handle.File, err)
	}

	restored, err := a.fs.ReadFile(handle.File)
	if err != nil {
		return fmt.Errorf("%w: verify %s: %w", ErrRevertFailure, handle.File, err)
	}

	if !bytes.Equal(restored, handle.original) {
		return fmt.Errorf("%w: %s differs from backup after restore", ErrRevertFailure, handle.File)
	}

	slog.Debug("reverted mutation", "file", handle.File)

	return nil
}
