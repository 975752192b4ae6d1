package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spore.dev/pkg/spore/internal/catalog"
)

func mustSnapshot(t *testing.T, content string) *Snapshot {
	t.Helper()

	snap, err := NewSnapshot("src.clj", content)
	require.NoError(t, err)

	return snap
}

func TestScan_DeterministicOrder(t *testing.T) {
	snap := mustSnapshot(t, "(defn pick [a b]\n  (if (< a b) a b))\n")

	cat := catalog.Builtin()
	ops := cat.Select([]string{"cmp-lt-to-le", "cmp-lt-to-ge"})

	sites := Scan(snap, ops, 0)
	require.Len(t, sites, 2)

	// Same node, so operator declaration order decides.
	require.Equal(t, "cmp-lt-to-le", sites[0].Operator)
	require.Equal(t, "cmp-lt-to-ge", sites[1].Operator)
	require.Equal(t, 0, sites[0].ScanIndex)
	require.Equal(t, 1, sites[1].ScanIndex)
	require.Equal(t, sites[0].Coord, sites[1].Coord)

	again := Scan(snap, ops, 0)
	require.Equal(t, sites, again)
}

func TestScan_StartIndexOffsets(t *testing.T) {
	snap := mustSnapshot(t, "(def n (< 1 2))\n")

	ops := catalog.Builtin().Select([]string{"cmp-lt-to-le"})

	sites := Scan(snap, ops, 7)
	require.Len(t, sites, 1)
	require.Equal(t, 7, sites[0].ScanIndex)
}

func TestScan_SkipsQuotedForms(t *testing.T) {
	snap := mustSnapshot(t, "(def template '(+ 1 2))\n")

	ops := catalog.Builtin().Select([]string{"arith-add-to-sub", "const-inc"})

	sites := Scan(snap, ops, 0)
	require.Empty(t, sites)
}

func TestScan_UnquoteReenablesScanning(t *testing.T) {
	snap := mustSnapshot(t, "(def template `(+ 1 ~(inc 2)))\n")

	ops := catalog.Builtin().Select([]string{"const-inc"})

	sites := Scan(snap, ops, 0)
	require.Len(t, sites, 1)
	require.Equal(t, "2", sites[0].Original)
	require.Equal(t, "3", sites[0].Replacement)
}

func TestScan_SkipsStringLiterals(t *testing.T) {
	snap := mustSnapshot(t, "(def msg \"true\")\n(def flag true)\n")

	ops := catalog.Builtin().Select([]string{"bool-flip"})

	sites := Scan(snap, ops, 0)
	require.Len(t, sites, 1)
	require.Equal(t, "true", sites[0].Original)
	require.Equal(t, "false", sites[0].Replacement)
}

func TestScan_SiteRoundTripsThroughDecode(t *testing.T) {
	snap := mustSnapshot(t, "(defn f [x]\n  (when (> x 10)\n    (* x 2)))\n")

	ops := catalog.Builtin().Operators()

	for _, site := range Scan(snap, ops, 0) {
		node, _, err := snap.DecodeSite(site)
		require.NoError(t, err, "site %s", site.Key())
		require.Equal(t, site.Original, node.Render())
	}
}
