package domain

import (
	"sort"

	"spore.dev/pkg/spore/internal/cast"
	"spore.dev/pkg/spore/internal/coverage"
	"spore.dev/pkg/spore/internal/model"
)

// DigestForms computes the content digest of every form in a snapshot, keyed
// the way the coverage store persists them. The digest is taken over
// canonical text so formatting-only edits do not register as changes.
func DigestForms(snap *Snapshot) []coverage.FormDigest {
	out := make([]coverage.FormDigest, 0, len(snap.Forms))

	for _, form := range snap.Forms {
		node, ok := snap.FormNode(form.ID)
		if !ok {
			continue
		}

		out = append(out, coverage.FormDigest{
			Form:   form.ID,
			File:   form.File,
			Digest: cast.DigestOf(node),
		})
	}

	return out
}

// DetectChanges compares current form digests against the stored baseline and
// returns the forms whose mutants must be re-executed: forms that are new,
// whose digest differs, or whose covering tests themselves changed. Forms
// absent from the baseline count as changed because no prior verdict can
// apply to them.
func DetectChanges(
	current, stored []coverage.FormDigest,
	covering map[model.FormID][]model.TestID,
	changedTests map[model.TestID]struct{},
) []model.FormID {
	baseline := make(map[model.FormID]coverage.FormDigest, len(stored))
	for _, d := range stored {
		baseline[d.Form] = d
	}

	changed := make(map[model.FormID]struct{})

	for _, d := range current {
		prev, ok := baseline[d.Form]
		if !ok || prev.Digest != d.Digest || prev.File != d.File {
			changed[d.Form] = struct{}{}

			continue
		}

		for _, test := range covering[d.Form] {
			if _, ok := changedTests[test]; ok {
				changed[d.Form] = struct{}{}

				break
			}
		}
	}

	out := make([]model.FormID, 0, len(changed))
	for id := range changed {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// ChangedTests diffs two test inventories by dependency hash. A test whose
// hash is absent from the baseline, or differs from it, is changed.
func ChangedTests(current, stored map[string]string) map[model.TestID]struct{} {
	changed := make(map[model.TestID]struct{})

	for id, hash := range current {
		if prev, ok := stored[id]; !ok || prev != hash {
			changed[model.TestID(id)] = struct{}{}
		}
	}

	return changed
}

// FilterSitesByForms keeps only the sites whose enclosing form is in the
// changed set. With a nil changed set every site is kept, which is the
// cold-cache behavior.
func FilterSitesByForms(sites []model.MutationSite, changed []model.FormID) []model.MutationSite {
	if changed == nil {
		return sites
	}

	keep := make(map[model.FormID]struct{}, len(changed))
	for _, id := range changed {
		keep[id] = struct{}{}
	}

	out := make([]model.MutationSite, 0, len(sites))

	for _, site := range sites {
		if _, ok := keep[site.Form]; ok {
			out = append(out, site)
		}
	}

	return out
}
