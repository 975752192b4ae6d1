package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

func TestCompileSchemata_SingleMutantPerTarget(t *testing.T) {
	const source = "(defn pick [a b]\n  (if (< a b) a b))\n"

	snap := mustSnapshot(t, source)

	sites := Scan(snap, catalog.Builtin().Select([]string{"cmp-lt-to-le"}), 0)
	require.Len(t, sites, 1)

	bundle, err := CompileSchemata(snap, sites)
	require.NoError(t, err)
	require.Len(t, bundle.Mutants, 1)
	require.Equal(t, sites[0].Key(), bundle.Mutants[0].ID)

	// The head replacement guards the whole comparison, never a bare operator
	// name in value position.
	compiled := string(bundle.Content())
	require.Contains(t, compiled, `(if (spore.runtime/mutant? "`+sites[0].Key()+`") (<= a b) (< a b))`)
	require.NotContains(t, compiled, ") <= <)")

	// Surrounding text is untouched.
	require.Contains(t, compiled, "(defn pick [a b]")
}

func TestCompileSchemata_SharedTargetBecomesCond(t *testing.T) {
	const source = "(def limit (< 1 2))\n"

	snap := mustSnapshot(t, source)

	sites := Scan(snap, catalog.Builtin().Select([]string{"cmp-lt-to-le", "cmp-lt-to-ge"}), 0)
	require.Len(t, sites, 2)

	bundle, err := CompileSchemata(snap, sites)
	require.NoError(t, err)
	require.Len(t, bundle.Mutants, 2)

	compiled := string(bundle.Content())
	require.Contains(t, compiled, "(cond")
	require.Contains(t, compiled, ":else (< 1 2))")
	require.Contains(t, compiled, `"`+sites[0].Key()+`") (<= 1 2)`)
	require.Contains(t, compiled, `"`+sites[1].Key()+`") (>= 1 2)`)
}

func TestCompileSchemata_LiteralTargetGuardsInPlace(t *testing.T) {
	const source = "(defn f [x] (inc 2))\n"

	snap := mustSnapshot(t, source)

	sites := Scan(snap, catalog.Builtin().Select([]string{"const-inc"}), 0)
	require.Len(t, sites, 1)

	bundle, err := CompileSchemata(snap, sites)
	require.NoError(t, err)

	// A non-head target keeps its guard at the literal itself.
	compiled := string(bundle.Content())
	require.Contains(t, compiled, `(inc (if (spore.runtime/mutant? "`+sites[0].Key()+`") 3 2))`)
}

func TestCompileSchemata_NestedTargetsCompose(t *testing.T) {
	const source = "(defn f [x] (not (< x 1)))\n"

	snap := mustSnapshot(t, source)

	// One site on the inner head, one on the whole (not ...) form enclosing it.
	sites := Scan(snap, catalog.Builtin().Select([]string{"cmp-lt-to-le", "unary-not-removal"}), 0)
	require.Len(t, sites, 2)

	bundle, err := CompileSchemata(snap, sites)
	require.NoError(t, err)
	require.Len(t, bundle.Mutants, 2)

	compiled := string(bundle.Content())

	// The outer guard's fallthrough carries the inner guard, so activating
	// either mutant alone works.
	for _, mutant := range bundle.Mutants {
		require.Contains(t, compiled, mutant.ID)
	}
}

func TestCompileSchemata_RevertRestoresOriginal(t *testing.T) {
	const source = "(def limit (< 1 2))\n"

	fs := newMemFS(map[model.Path]string{"src.clj": source})
	snap := mustSnapshot(t, source)

	sites := Scan(snap, catalog.Builtin().Select([]string{"cmp-lt-to-le"}), 0)

	bundle, err := CompileSchemata(snap, sites)
	require.NoError(t, err)

	require.NoError(t, fs.WriteFile("src.clj", bundle.Content(), 0o600))
	require.NoError(t, NewApplier(fs).Revert(bundle.Handle()))

	restored, err := fs.ReadFile("src.clj")
	require.NoError(t, err)
	require.Equal(t, source, string(restored))
}

func TestCompileSchemata_StaleSiteFails(t *testing.T) {
	snap := mustSnapshot(t, "(def limit (< 1 2))\n")

	stale := model.MutationSite{
		Form:        "src.clj#0",
		File:        "src.clj",
		Coord:       model.Coordinate{model.Ordinal(9)},
		Operator:    "cmp-lt-to-le",
		Replacement: "<=",
	}

	_, err := CompileSchemata(snap, []model.MutationSite{stale})
	require.ErrorIs(t, err, ErrSchemataCompile)
}
