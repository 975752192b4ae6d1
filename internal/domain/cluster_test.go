package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

func TestBuildClusters_NoneMakesSingletons(t *testing.T) {
	sites := []model.MutationSite{
		{Form: "a#0", Operator: "op-a", ScanIndex: 0},
		{Form: "a#0", Operator: "op-b", ScanIndex: 1},
	}

	clusters, err := BuildClusters(sites, ClusterNone, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	for i, cluster := range clusters {
		require.Len(t, cluster.Members, 1)
		require.Equal(t, sites[i], cluster.Representative)
	}
}

func TestBuildClusters_ByOperatorPicksHardestRepresentative(t *testing.T) {
	sites := []model.MutationSite{
		{Form: "a#0", Operator: "op-a", Hardness: 0.3, ScanIndex: 0},
		{Form: "a#1", Operator: "op-a", Hardness: 0.9, ScanIndex: 1},
		{Form: "a#2", Operator: "op-a", Hardness: 0.9, ScanIndex: 2},
	}

	clusters, err := BuildClusters(sites, ClusterByOperator, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Members, 3)

	// Highest hardness wins; the tie goes to the earlier scan index.
	require.Equal(t, 1, clusters[0].Representative.ScanIndex)
}

func TestBuildClusters_ByShapeGroupsByParentHead(t *testing.T) {
	snap := mustSnapshot(t, "(defn f [x y]\n  (if (< x y) (+ x 1) (+ y 1)))\n")
	cat := catalog.Builtin()

	sites := Scan(snap, cat.Select([]string{"const-inc"}), 0)
	require.Len(t, sites, 2)

	clusters, err := BuildClusters(sites, ClusterByShape, map[model.Path]*Snapshot{snap.File: snap})
	require.NoError(t, err)

	// Both literals sit under a (+ ...) parent, so they share one cluster.
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Members, 2)
}

func TestBuildClusters_UnknownStrategy(t *testing.T) {
	_, err := BuildClusters(nil, ClusterStrategy("bogus"), nil)
	require.Error(t, err)
}

func TestBuildClusters_OrderedByRepresentativeScanIndex(t *testing.T) {
	sites := []model.MutationSite{
		{Form: "a#0", Operator: "op-b", Hardness: 0.5, ScanIndex: 0},
		{Form: "a#0", Operator: "op-a", Hardness: 0.5, ScanIndex: 1},
		{Form: "a#1", Operator: "op-b", Hardness: 0.9, ScanIndex: 2},
	}

	clusters, err := BuildClusters(sites, ClusterByOperator, nil)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	require.Equal(t, "op-a", clusters[0].Representative.Operator)
	require.Equal(t, "op-b", clusters[1].Representative.Operator)
	require.Less(t, clusters[0].Representative.ScanIndex, clusters[1].Representative.ScanIndex)
}

func TestPropagateVerdict_CopiesToNonRepresentatives(t *testing.T) {
	rep := model.MutationSite{Form: "a#0", Operator: "op-a", Coord: nil, ScanIndex: 0}
	other := model.MutationSite{Form: "a#1", Operator: "op-a", Coord: nil, ScanIndex: 1}

	cluster := model.Cluster{
		Key:            "op-a",
		Members:        []model.MutationSite{rep, other},
		Representative: rep,
	}

	reports := PropagateVerdict(cluster, model.Report{
		Site:     rep,
		Verdict:  model.Killed.String(),
		KilledBy: "t1",
	})

	require.Len(t, reports, 1)
	require.Equal(t, other, reports[0].Site)
	require.Equal(t, model.Killed.String(), reports[0].Verdict)
	require.True(t, reports[0].Propagated)
	require.Equal(t, model.TestID("t1"), reports[0].KilledBy)
}
