package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"spore.dev/pkg/spore/internal/coverage"
	"spore.dev/pkg/spore/internal/model"
)

func TestDigestForms_IgnoresFormatting(t *testing.T) {
	a := mustSnapshot(t, "(defn f [x] (+ x 1))\n")
	b := mustSnapshot(t, "(defn f\n  [x]\n  (+ x   1))\n")

	da := DigestForms(a)
	db := DigestForms(b)

	require.Len(t, da, 1)
	require.Len(t, db, 1)
	require.Equal(t, da[0].Digest, db[0].Digest)
}

func TestDigestForms_ChangesWithContent(t *testing.T) {
	a := mustSnapshot(t, "(defn f [x] (+ x 1))\n")
	b := mustSnapshot(t, "(defn f [x] (+ x 2))\n")

	require.NotEqual(t, DigestForms(a)[0].Digest, DigestForms(b)[0].Digest)
}

func TestDetectChanges(t *testing.T) {
	stored := []coverage.FormDigest{
		{Form: "src.clj#0", File: "src.clj", Digest: "aaa"},
		{Form: "src.clj#1", File: "src.clj", Digest: "bbb"},
		{Form: "src.clj#2", File: "src.clj", Digest: "ccc"},
	}

	current := []coverage.FormDigest{
		{Form: "src.clj#0", File: "src.clj", Digest: "aaa"}, // unchanged
		{Form: "src.clj#1", File: "src.clj", Digest: "xxx"}, // edited
		{Form: "src.clj#2", File: "src.clj", Digest: "ccc"}, // covering test changed
		{Form: "src.clj#3", File: "src.clj", Digest: "ddd"}, // new
	}

	covering := map[model.FormID][]model.TestID{
		"src.clj#0": {"t1"},
		"src.clj#2": {"t2"},
	}

	changed := DetectChanges(current, stored, covering, map[model.TestID]struct{}{"t2": {}})
	require.Equal(t, []model.FormID{"src.clj#1", "src.clj#2", "src.clj#3"}, changed)
}

func TestDetectChanges_EmptyBaselineMarksEverything(t *testing.T) {
	current := []coverage.FormDigest{
		{Form: "src.clj#0", File: "src.clj", Digest: "aaa"},
		{Form: "src.clj#1", File: "src.clj", Digest: "bbb"},
	}

	changed := DetectChanges(current, nil, nil, nil)
	require.Len(t, changed, 2)
}

func TestChangedTests(t *testing.T) {
	current := map[string]string{"t1": "h1", "t2": "h2-new", "t3": "h3"}
	stored := map[string]string{"t1": "h1", "t2": "h2"}

	changed := ChangedTests(current, stored)
	require.Len(t, changed, 2)
	require.Contains(t, changed, model.TestID("t2"))
	require.Contains(t, changed, model.TestID("t3"))
}

func TestFilterSitesByForms(t *testing.T) {
	sites := []model.MutationSite{
		{Form: "src.clj#0", ScanIndex: 0},
		{Form: "src.clj#1", ScanIndex: 1},
		{Form: "src.clj#2", ScanIndex: 2},
	}

	kept := FilterSitesByForms(sites, []model.FormID{"src.clj#1"})
	require.Len(t, kept, 1)
	require.Equal(t, model.FormID("src.clj#1"), kept[0].Form)

	// A nil changed set means no baseline: everything runs.
	require.Equal(t, sites, FilterSitesByForms(sites, nil))

	// An empty, non-nil set keeps nothing.
	require.Empty(t, FilterSitesByForms(sites, []model.FormID{}))
}
