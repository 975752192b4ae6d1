package domain

import (
	"log/slog"

	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

// FilterEquivalent evaluates each site's operator equivalence rule against
// the node's immediate context and splits provably-equivalent sites out
// before anything executes. Detection is purely syntactic: runtime-only
// equivalence is an accepted false negative.
func FilterEquivalent(
	sites []model.MutationSite,
	cat *catalog.Catalog,
	snapshots map[model.Path]*Snapshot,
) (kept []model.MutationSite, excluded []model.ExcludedSite) {
	for _, site := range sites {
		op, ok := cat.Get(site.Operator)
		if !ok || op.Equivalent == nil {
			kept = append(kept, site)

			continue
		}

		snap, ok := snapshots[site.File]
		if !ok {
			kept = append(kept, site)

			continue
		}

		node, parent, err := snap.DecodeSite(site)
		if err != nil {
			// Scanning and filtering share the snapshot, so this indicates
			// a stale coordinate; keep the site and let apply surface it.
			slog.Warn("equivalence filter could not decode site", "site", site.Key(), "error", err)

			kept = append(kept, site)

			continue
		}

		if reason, equivalent := op.Equivalent(node, parent); equivalent {
			excluded = append(excluded, model.ExcludedSite{Site: site, Reason: reason})

			continue
		}

		kept = append(kept, site)
	}

	return kept, excluded
}
