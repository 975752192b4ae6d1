package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"spore.dev/pkg/spore/internal/coverage"
	"spore.dev/pkg/spore/internal/model"
)

// TraceOracle consumes the stream of execution events the instrumentation
// emits while exactly one test runs. The stream is reset before and drained
// after each test.
type TraceOracle interface {
	Reset(ctx context.Context) error
	Drain(ctx context.Context) ([]coverage.TraceEvent, error)
}

// FileTraceOracle reads events from a JSON-lines file the instrumentation
// appends to. Reset truncates the file; Drain parses everything written
// since the last reset.
type FileTraceOracle struct {
	Path model.Path
}

// NewFileTraceOracle constructs an oracle over the given event file.
func NewFileTraceOracle(path model.Path) *FileTraceOracle {
	return &FileTraceOracle{Path: path}
}

type wireEvent struct {
	Test  string `json:"test"`
	Form  string `json:"form"`
	Coord string `json:"coord"`
}

// Reset truncates the event file.
func (o *FileTraceOracle) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.WriteFile(string(o.Path), nil, 0o600); err != nil {
		return fmt.Errorf("reset trace file %s: %w", o.Path, err)
	}

	return nil
}

// Drain parses the events accumulated since the last reset. Lines that do
// not decode are skipped with a warning; a missing file means no events.
func (o *FileTraceOracle) Drain(ctx context.Context) ([]coverage.TraceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(string(o.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("open trace file %s: %w", o.Path, err)
	}

	defer func() { _ = f.Close() }()

	var events []coverage.TraceEvent

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var wire wireEvent

		if err := json.Unmarshal(line, &wire); err != nil {
			slog.Warn("skipping undecodable trace event", "file", o.Path, "error", err)

			continue
		}

		coord, err := model.ParseCoordinate(wire.Coord)
		if err != nil {
			slog.Warn("skipping trace event with bad coordinate", "coord", wire.Coord, "error", err)

			continue
		}

		events = append(events, coverage.NewTraceEvent(
			model.TestID(wire.Test), model.FormID(wire.Form), coord,
		))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace file %s: %w", o.Path, err)
	}

	return events, nil
}
