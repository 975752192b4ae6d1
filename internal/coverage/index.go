// Package coverage builds and persists the coverage-guided test-selection
// index: forward (test to locations) and inverse (location to tests) maps
// folded from trace-oracle events, refreshed incrementally per test unit.
package coverage

import (
	"sort"

	"spore.dev/pkg/spore/internal/model"
)

// TraceEvent is one raw execution event emitted by the trace oracle while
// exactly one test runs.
type TraceEvent struct {
	Test  model.TestID     `json:"test"`
	Form  model.FormID     `json:"form"`
	Coord model.Coordinate `json:"-"`
	// CoordText is the wire shape of Coord, kept alongside it so events
	// serialize without custom marshalling.
	CoordText string `json:"coord"`
}

// NewTraceEvent builds an event with both coordinate representations set.
func NewTraceEvent(test model.TestID, form model.FormID, coord model.Coordinate) TraceEvent {
	return TraceEvent{Test: test, Form: form, Coord: coord, CoordText: coord.String()}
}

type locKey string

func keyOf(form model.FormID, coord model.Coordinate) locKey {
	return locKey(string(form) + "#" + coord.String())
}

// Index holds the forward and inverse coverage maps. The inverse map is a
// pure function of the forward one: both are only ever written by Fold.
type Index struct {
	forward map[model.TestID]map[locKey]struct{}
	inverse map[locKey]map[model.TestID]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		forward: make(map[model.TestID]map[locKey]struct{}),
		inverse: make(map[locKey]map[model.TestID]struct{}),
	}
}

// Fold merges trace events into the index. Repeated events for one test
// union with what is already recorded, never overwrite it.
func (ix *Index) Fold(events []TraceEvent) {
	for _, ev := range events {
		coord := ev.Coord
		if coord == nil && ev.CoordText != "" {
			parsed, err := model.ParseCoordinate(ev.CoordText)
			if err != nil {
				continue
			}

			coord = parsed
		}

		key := keyOf(ev.Form, coord)

		if ix.forward[ev.Test] == nil {
			ix.forward[ev.Test] = make(map[locKey]struct{})
		}

		ix.forward[ev.Test][key] = struct{}{}

		if ix.inverse[key] == nil {
			ix.inverse[key] = make(map[model.TestID]struct{})
		}

		ix.inverse[key][ev.Test] = struct{}{}
	}
}

// TestsFor returns the tests covering a location, sorted for determinism.
// An empty result means "no covering test"; a location the oracle never
// reported looks identical to the caller.
func (ix *Index) TestsFor(form model.FormID, coord model.Coordinate) []model.TestID {
	set := ix.inverse[keyOf(form, coord)]
	if len(set) == 0 {
		return nil
	}

	out := make([]model.TestID, 0, len(set))
	for test := range set {
		out = append(out, test)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Tests returns every test the index knows about, sorted.
func (ix *Index) Tests() []model.TestID {
	out := make([]model.TestID, 0, len(ix.forward))
	for test := range ix.forward {
		out = append(out, test)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// TestsForForm returns every test touching any location inside the form.
// Used by the change detector to invalidate on covering-test changes.
func (ix *Index) TestsForForm(form model.FormID) []model.TestID {
	prefix := locKey(string(form) + "#")
	set := make(map[model.TestID]struct{})

	for key, tests := range ix.inverse {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}

		for test := range tests {
			set[test] = struct{}{}
		}
	}

	out := make([]model.TestID, 0, len(set))
	for test := range set {
		out = append(out, test)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Bridge reconciles the oracle's form identifiers with statically scanned
// file/line positions.
type Bridge struct {
	byFile map[model.Path][]model.FormLocation
}

// NewBridge builds a bridge from form locations; entries are sorted by start
// line per file.
func NewBridge(locations []model.FormLocation) *Bridge {
	byFile := make(map[model.Path][]model.FormLocation)

	for _, loc := range locations {
		byFile[loc.File] = append(byFile[loc.File], loc)
	}

	for file := range byFile {
		locs := byFile[file]
		sort.SliceStable(locs, func(i, j int) bool { return locs[i].StartLine < locs[j].StartLine })
		byFile[file] = locs
	}

	return &Bridge{byFile: byFile}
}

// FormAt resolves (file, line) to the form whose start line is the greatest
// value not exceeding line. When several forms start on that same line the
// first in scan order wins; finer resolution is deliberately not attempted.
func (b *Bridge) FormAt(file model.Path, line int) (model.FormID, bool) {
	locs := b.byFile[file]
	if len(locs) == 0 {
		return "", false
	}

	// First index with StartLine > line; the predecessor is the answer.
	i := sort.Search(len(locs), func(i int) bool { return locs[i].StartLine > line })
	if i == 0 {
		return "", false
	}

	// Several forms may start on the predecessor's line; resolve to the first
	// of them in scan order.
	j := i - 1
	for j > 0 && locs[j-1].StartLine == locs[j].StartLine {
		j--
	}

	return locs[j].ID, true
}
