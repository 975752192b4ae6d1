package domain

import (
	"fmt"
	"sort"

	"spore.dev/pkg/spore/internal/cast"
	"spore.dev/pkg/spore/internal/model"
)

// ClusterStrategy names a way of grouping sites before execution.
type ClusterStrategy string

const (
	// ClusterByOperator groups sites sharing an operator.
	ClusterByOperator ClusterStrategy = "operator"
	// ClusterByLocation groups sites sharing file, form and a coordinate
	// prefix, so physically close mutations share one representative.
	ClusterByLocation ClusterStrategy = "location"
	// ClusterByShape groups sites sharing operator category and the shape
	// of the parent expression (its head symbol).
	ClusterByShape ClusterStrategy = "shape"
	// ClusterNone makes every site its own cluster.
	ClusterNone ClusterStrategy = "none"
)

// locationPrefixLen is how many leading coordinate segments participate in a
// location cluster key.
const locationPrefixLen = 2

// BuildClusters groups sites by the strategy's key and selects, per cluster,
// the member with the highest hardness score, ties broken by scan order.
// Cluster order follows each representative's scan order, so output is
// deterministic for a fixed input.
func BuildClusters(
	sites []model.MutationSite,
	strategy ClusterStrategy,
	snapshots map[model.Path]*Snapshot,
) ([]model.Cluster, error) {
	keyFn, err := keyFunc(strategy, snapshots)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]model.MutationSite)

	var order []string

	for _, site := range sites {
		key := keyFn(site)

		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}

		grouped[key] = append(grouped[key], site)
	}

	clusters := make([]model.Cluster, 0, len(order))

	for _, key := range order {
		members := grouped[key]
		clusters = append(clusters, model.Cluster{
			Key:            key,
			Members:        members,
			Representative: pickRepresentative(members),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Representative.ScanIndex < clusters[j].Representative.ScanIndex
	})

	return clusters, nil
}

func keyFunc(strategy ClusterStrategy, snapshots map[model.Path]*Snapshot) (func(model.MutationSite) string, error) {
	switch strategy {
	case ClusterByOperator:
		return func(site model.MutationSite) string {
			return site.Operator
		}, nil
	case ClusterByLocation:
		return func(site model.MutationSite) string {
			return fmt.Sprintf("%s|%s|%s", site.File, site.Form, site.Coord.Prefix(locationPrefixLen))
		}, nil
	case ClusterByShape:
		return func(site model.MutationSite) string {
			return site.Category + "|" + parentShape(site, snapshots)
		}, nil
	case ClusterNone, "":
		return func(site model.MutationSite) string {
			return site.Key()
		}, nil
	}

	return nil, fmt.Errorf("unknown cluster strategy %q", strategy)
}

// parentShape describes the enclosing expression of a site: the head symbol
// of its parent call, or the parent's node kind when there is no head.
func parentShape(site model.MutationSite, snapshots map[model.Path]*Snapshot) string {
	snap, ok := snapshots[site.File]
	if !ok {
		return "unknown"
	}

	_, parent, err := snap.DecodeSite(site)
	if err != nil || parent == nil {
		return "top-level"
	}

	if head := parent.Head(); head != nil && head.Kind == cast.KindToken {
		return head.Text
	}

	return parent.Kind.String()
}

func pickRepresentative(members []model.MutationSite) model.MutationSite {
	best := members[0]

	for _, site := range members[1:] {
		if site.Hardness > best.Hardness ||
			(site.Hardness == best.Hardness && site.ScanIndex < best.ScanIndex) {
			best = site
		}
	}

	return best
}

// PropagateVerdict copies the representative's report to every other member
// of its cluster. Propagated members never execute; a killed representative
// may therefore stand in for weaker mutations that were not run. That is a
// documented speed/precision trade, not a correctness defect.
func PropagateVerdict(cluster model.Cluster, representative model.Report) []model.Report {
	reports := make([]model.Report, 0, len(cluster.Members))

	for _, member := range cluster.Members {
		if member.Key() == cluster.Representative.Key() {
			continue
		}

		reports = append(reports, model.Report{
			Site:       member,
			Verdict:    representative.Verdict,
			Propagated: true,
			KilledBy:   representative.KilledBy,
		})
	}

	return reports
}
