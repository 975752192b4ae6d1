package coverage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrIndexStale marks a coverage unit whose dependency hash no longer matches
// its sources. Stale units are recomputed, never served.
var ErrIndexStale = errors.New("coverage index stale")

// Unit is one persisted coverage record: the events recorded for a logical
// test unit, content-addressed by a hash of its declared source dependencies.
type Unit struct {
	ID      string
	DepHash string
	Events  []TraceEvent
}

// Recorder re-runs a test unit under the trace oracle and returns the events
// it produced.
type Recorder func(ctx context.Context, unitID string) ([]TraceEvent, error)

// Build folds a set of units into a queryable index. Merging is a
// commutative, idempotent union, so unit order does not matter.
func Build(units []Unit) *Index {
	ix := NewIndex()

	for _, unit := range units {
		ix.Fold(unit.Events)
	}

	return ix
}

// Refresh reconciles stored units with the current dependency hashes. Units
// whose hash is unchanged are reused as-is; new or stale units are recorded
// again, in parallel, and units that disappeared are dropped. Cost is
// proportional to what changed, not to total index size.
func Refresh(ctx context.Context, stored []Unit, current map[string]string, record Recorder, workers int) ([]Unit, error) {
	byID := make(map[string]Unit, len(stored))
	for _, unit := range stored {
		byID[unit.ID] = unit
	}

	var (
		kept  []Unit
		stale []string
	)

	for id, depHash := range current {
		prev, ok := byID[id]
		if ok && prev.DepHash == depHash {
			kept = append(kept, prev)

			continue
		}

		if ok {
			slog.Debug("coverage unit stale, recomputing", "unit", id, "error", ErrIndexStale)
		}

		stale = append(stale, id)
	}

	// Deterministic recompute order; execution itself is parallel.
	sort.Strings(stale)

	if workers < 1 {
		workers = 1
	}

	var (
		mu        sync.Mutex
		refreshed []Unit
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, id := range stale {
		group.Go(func() error {
			events, err := record(groupCtx, id)
			if err != nil {
				return err
			}

			mu.Lock()
			refreshed = append(refreshed, Unit{ID: id, DepHash: current[id], Events: events})
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := append(kept, refreshed...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}
