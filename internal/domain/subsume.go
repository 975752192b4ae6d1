package domain

import (
	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

// ReduceOperators shrinks a candidate operator set to a dominance-minimal
// subset: an operator is dropped when it appears in the transitively
// dominated set of another candidate. The result is deterministic for a
// fixed catalog and candidate set, and idempotent under repeated reduction.
func ReduceOperators(ops []catalog.Operator, cat *catalog.Catalog) []catalog.Operator {
	dominated := make(map[string]struct{})

	for _, op := range ops {
		for id := range cat.TransitivelyDominated(op.ID) {
			dominated[id] = struct{}{}
		}
	}

	out := make([]catalog.Operator, 0, len(ops))

	for _, op := range ops {
		if _, drop := dominated[op.ID]; drop {
			continue
		}

		out = append(out, op)
	}

	return out
}

// FilterSitesByOperators drops sites whose operator is not in the reduced
// set, preserving scan order.
func FilterSitesByOperators(sites []model.MutationSite, ops []catalog.Operator) []model.MutationSite {
	keep := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		keep[op.ID] = struct{}{}
	}

	out := make([]model.MutationSite, 0, len(sites))

	for _, site := range sites {
		if _, ok := keep[site.Operator]; ok {
			out = append(out, site)
		}
	}

	return out
}
