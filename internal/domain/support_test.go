package domain

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"sort"
	"sync"

	"spore.dev/pkg/spore/internal/adapter"
	"spore.dev/pkg/spore/internal/coverage"
	"spore.dev/pkg/spore/internal/model"
)

// memFS is an in-memory SourceFS for pipeline tests.
type memFS struct {
	mu    sync.Mutex
	files map[model.Path][]byte
}

func newMemFS(files map[model.Path]string) *memFS {
	fs := &memFS{files: make(map[model.Path][]byte, len(files))}
	for path, content := range files {
		fs.files[path] = []byte(content)
	}

	return fs
}

func (fs *memFS) Discover(_ []model.Path, _ []string) ([]model.Path, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]model.Path, 0, len(fs.files))
	for path := range fs.files {
		out = append(out, path)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

func (fs *memFS) ReadFile(path model.Path) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	content, ok := fs.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}

	out := make([]byte, len(content))
	copy(out, content)

	return out, nil
}

func (fs *memFS) WriteFile(path model.Path, content []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dup := make([]byte, len(content))
	copy(dup, content)
	fs.files[path] = dup

	return nil
}

func (fs *memFS) HashFile(path model.Path) (string, error) {
	content, err := fs.ReadFile(path)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", sha256.Sum256(content)), nil
}

// scriptedRunner delegates to a function so tests can model pass/fail/timeout
// behavior against the current filesystem state.
type scriptedRunner struct {
	mu    sync.Mutex
	calls []model.TestID
	run   func(ctx context.Context, test model.TestID) (adapter.Outcome, string, error)
}

func (r *scriptedRunner) Run(ctx context.Context, test model.TestID) (adapter.Outcome, string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, test)
	r.mu.Unlock()

	return r.run(ctx, test)
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.calls)
}

type staticInventory struct {
	tests []adapter.TestInfo
}

func (i *staticInventory) Tests(_ context.Context) ([]adapter.TestInfo, error) {
	return i.tests, nil
}

// queueOracle returns the same event set on every drain, mimicking
// instrumentation that reports everything the last test touched.
type queueOracle struct {
	events []coverage.TraceEvent
}

func (o *queueOracle) Reset(_ context.Context) error {
	return nil
}

func (o *queueOracle) Drain(_ context.Context) ([]coverage.TraceEvent, error) {
	return o.events, nil
}

type countingReload struct {
	mu    sync.Mutex
	count int
}

func (r *countingReload) Reload(_ context.Context) error {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()

	return nil
}

func (r *countingReload) reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.count
}

// memSelector records the currently active mutant and every activation.
type memSelector struct {
	mu          sync.Mutex
	active      string
	activations []string
}

func (s *memSelector) Activate(_ context.Context, mutantID string) error {
	s.mu.Lock()
	s.active = mutantID
	s.activations = append(s.activations, mutantID)
	s.mu.Unlock()

	return nil
}

func (s *memSelector) Clear(_ context.Context) error {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()

	return nil
}

func (s *memSelector) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

type memReportStore struct {
	mu        sync.Mutex
	summaries map[model.Path]model.RunSummary
}

func newMemReportStore() *memReportStore {
	return &memReportStore{summaries: make(map[model.Path]model.RunSummary)}
}

func (rs *memReportStore) SaveSummary(dir model.Path, summary model.RunSummary) error {
	rs.mu.Lock()
	rs.summaries[dir] = summary
	rs.mu.Unlock()

	return nil
}

func (rs *memReportStore) LoadSummary(dir model.Path) (model.RunSummary, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	summary, ok := rs.summaries[dir]
	if !ok {
		return model.RunSummary{}, fmt.Errorf("no summary in %s: %w", dir, os.ErrNotExist)
	}

	return summary, nil
}
