// Package pkg provides small utilities shared across the spore engine.
package pkg

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Spill accumulates items of type T on disk so large runs do not hold every
// record in memory. Items are append-only and read back in order.
type Spill[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Range(f func(index uint64, item T) error) error
	Close() error
}

type spill[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// NewSpill creates a disk-backed spill in the default temp directory. The
// backing file is removed on Close.
func NewSpill[T any]() (Spill[T], error) {
	file, err := os.CreateTemp("", "spore-spill-*.gob")
	if err != nil {
		return nil, fmt.Errorf("failed to create spill file: %w", err)
	}

	return &spill[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}

// Append encodes one item at the end of the spill.
func (s *spill[T]) Append(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.encoder.Encode(item); err != nil {
		return fmt.Errorf("failed to encode spill item: %w", err)
	}

	s.length++

	return nil
}

// Len returns the number of items appended so far.
func (s *spill[T]) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length
}

// Path returns the backing file location.
func (s *spill[T]) Path() string {
	return s.path
}

// Range decodes every item in append order, stopping at the first error the
// callback returns.
func (s *spill[T]) Range(fn func(index uint64, item T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open spill file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close spill file", "path", s.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := uint64(0); i < s.length; i++ {
		var item T

		if err := decoder.Decode(&item); err != nil {
			return fmt.Errorf("failed to decode spill item %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// Close closes and removes the backing file.
func (s *spill[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	if err := s.file.Close(); err != nil {
		return err
	}

	s.file = nil

	return os.Remove(s.path)
}
