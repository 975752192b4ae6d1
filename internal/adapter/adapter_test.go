package adapter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"spore.dev/pkg/spore/internal/model"
)

func TestLocalSourceFS_DiscoverFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		"src/core.clj",
		"src/util.cljc",
		"src/notes.txt",
		"generated/out.clj",
		".spore/state.clj",
	}

	for _, rel := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("(def x 1)\n"), 0o600))
	}

	fs := NewLocalSourceFS()

	found, err := fs.Discover([]model.Path{model.Path(dir)}, []string{`generated/`})
	require.NoError(t, err)
	require.Len(t, found, 2)

	// Sorted, source extensions only, excludes applied, .spore skipped.
	require.Equal(t, model.Path(filepath.Join(dir, "src/core.clj")), found[0])
	require.Equal(t, model.Path(filepath.Join(dir, "src/util.cljc")), found[1])
}

func TestLocalSourceFS_DiscoverRejectsBadPattern(t *testing.T) {
	fs := NewLocalSourceFS()

	_, err := fs.Discover([]model.Path{"."}, []string{`(`})
	require.Error(t, err)
}

func TestLocalSourceFS_HashFileIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.clj")
	b := filepath.Join(dir, "b.clj")

	require.NoError(t, os.WriteFile(a, []byte("(def x 1)"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("(def x 1)"), 0o600))

	fs := NewLocalSourceFS()

	hashA, err := fs.HashFile(model.Path(a))
	require.NoError(t, err)

	hashB, err := fs.HashFile(model.Path(b))
	require.NoError(t, err)
	require.Equal(t, hashA, hashB)

	require.NoError(t, os.WriteFile(b, []byte("(def x 2)"), 0o600))

	hashB2, err := fs.HashFile(model.Path(b))
	require.NoError(t, err)
	require.NotEqual(t, hashA, hashB2)
}

func TestFileSelector_ActivateAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mutant")
	selector := NewFileSelector(model.Path(path))

	require.NoError(t, selector.Activate(context.Background(), "op@f#0:1"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "op@f#0:1", string(content))

	require.NoError(t, selector.Clear(context.Background()))

	content, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, content)
}

func TestFileFormLocator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forms.json")

	locations := []wireLocation{
		{Form: "core-1", File: "src/core.clj", Line: 1},
		{Form: "core-2", File: "src/core.clj", Line: 8},
	}

	raw, err := json.Marshal(locations)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	locator := NewFileFormLocator(model.Path(path))

	out, err := locator.Locations(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, model.FormID("core-2"), out[1].ID)
	require.Equal(t, 8, out[1].StartLine)
}

func TestReportStore_RoundTrip(t *testing.T) {
	dir := model.Path(t.TempDir())
	store := NewReportStore()

	summary := model.RunSummary{
		RunID:    "run-1",
		Score:    0.75,
		Killed:   3,
		Survived: 1,
		Reports: []model.Report{
			{Site: model.MutationSite{Operator: "cmp-lt-to-le", Form: "src.clj#0"}, Verdict: "killed", KilledBy: "t1"},
		},
	}

	require.NoError(t, store.SaveSummary(dir, summary))

	loaded, err := store.LoadSummary(dir)
	require.NoError(t, err)
	require.Equal(t, summary.RunID, loaded.RunID)
	require.InDelta(t, summary.Score, loaded.Score, 1e-9)
	require.Len(t, loaded.Reports, 1)
	require.Equal(t, model.TestID("t1"), loaded.Reports[0].KilledBy)
}

func TestReportStore_LoadMissing(t *testing.T) {
	_, err := NewReportStore().LoadSummary(model.Path(t.TempDir()))
	require.Error(t, err)
}

func TestExecReload_EmptyCommandIsNoop(t *testing.T) {
	reload := NewExecReload(nil, "")
	require.NoError(t, reload.Reload(context.Background()))
}

func TestExecReload_FailureIncludesOutput(t *testing.T) {
	reload := NewExecReload([]string{"sh", "-c", "echo boom; exit 3"}, "")

	err := reload.Reload(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}
