// Package adapter contains infrastructure adapters: filesystem access, the
// external test runner, the reload service, the trace oracle and report
// persistence. The domain layer depends only on the interfaces declared
// here.
package adapter

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"spore.dev/pkg/spore/internal/model"
)

// sourceExtensions are the file suffixes the engine treats as mutable source.
var sourceExtensions = []string{".clj", ".cljc", ".cljs", ".lisp", ".edn"}

// SourceFS abstracts the filesystem operations the domain layer relies on,
// so pipeline logic can be tested without touching the disk.
type SourceFS interface {
	// Discover walks the given roots and returns every source file whose
	// path matches none of the exclude regexes, sorted for determinism.
	Discover(roots []model.Path, exclude []string) ([]model.Path, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path model.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path model.Path, content []byte, perm os.FileMode) error

	// HashFile returns a stable fingerprint (SHA-256) for the file at path.
	HashFile(path model.Path) (string, error)
}

// LocalSourceFS is the os-backed SourceFS implementation.
type LocalSourceFS struct{}

// NewLocalSourceFS constructs a LocalSourceFS.
func NewLocalSourceFS() *LocalSourceFS {
	return &LocalSourceFS{}
}

// Discover walks roots and collects matching source files.
func (a *LocalSourceFS) Discover(roots []model.Path, exclude []string) ([]model.Path, error) {
	patterns := make([]*regexp.Regexp, 0, len(exclude))

	for _, expr := range exclude {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", expr, err)
		}

		patterns = append(patterns, re)
	}

	if len(roots) == 0 {
		roots = []model.Path{"."}
	}

	seen := make(map[model.Path]struct{})

	var files []model.Path

	for _, root := range roots {
		err := filepath.Walk(string(root), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() {
				base := filepath.Base(path)
				if base == ".git" || base == ".spore" || base == "node_modules" {
					return filepath.SkipDir
				}

				return nil
			}

			if !isSourceFile(path) {
				return nil
			}

			for _, re := range patterns {
				if re.MatchString(path) {
					return nil
				}
			}

			p := model.Path(path)
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				files = append(files, p)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return files, nil
}

func isSourceFile(path string) bool {
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFS) ReadFile(path model.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFS) WriteFile(path model.Path, content []byte, perm os.FileMode) error {
	return os.WriteFile(string(path), content, perm)
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalSourceFS) HashFile(path model.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
