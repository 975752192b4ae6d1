package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"spore.dev/pkg/spore/internal/model"
)

// FormLocator exposes the oracle's identifier space: which file and start
// line each runtime form ID refers to. The engine reconciles these with
// statically scanned positions by predecessor search on the start line.
type FormLocator interface {
	Locations(ctx context.Context) ([]model.FormLocation, error)
}

// FileFormLocator reads locations from a JSON file the instrumentation
// maintains alongside the trace event stream.
type FileFormLocator struct {
	Path model.Path
}

// NewFileFormLocator constructs a locator over the given file.
func NewFileFormLocator(path model.Path) *FileFormLocator {
	return &FileFormLocator{Path: path}
}

type wireLocation struct {
	Form string `json:"form"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// Locations loads and parses the location table.
func (l *FileFormLocator) Locations(ctx context.Context) ([]model.FormLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(string(l.Path))
	if err != nil {
		return nil, fmt.Errorf("read form locations %s: %w", l.Path, err)
	}

	var wire []wireLocation

	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse form locations %s: %w", l.Path, err)
	}

	out := make([]model.FormLocation, 0, len(wire))

	for _, loc := range wire {
		out = append(out, model.FormLocation{
			ID:        model.FormID(loc.Form),
			File:      model.Path(loc.File),
			StartLine: loc.Line,
		})
	}

	return out, nil
}

// StaticFormLocator serves locations discovered by the static scanner
// itself, for setups where the instrumentation shares the scanner's ID
// scheme.
type StaticFormLocator struct {
	locations []model.FormLocation
}

// NewStaticFormLocator constructs a locator over a fixed location set.
func NewStaticFormLocator(locations []model.FormLocation) *StaticFormLocator {
	return &StaticFormLocator{locations: locations}
}

// Locations returns the fixed location set.
func (l *StaticFormLocator) Locations(ctx context.Context) ([]model.FormLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return l.locations, nil
}
