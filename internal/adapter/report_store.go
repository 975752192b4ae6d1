package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"spore.dev/pkg/spore/internal/model"
)

// summaryFileName is the file a run summary is written to inside the
// reports directory.
const summaryFileName = "summary.yaml"

// ReportStore persists and retrieves run summaries.
type ReportStore interface {
	SaveSummary(dir model.Path, summary model.RunSummary) error
	LoadSummary(dir model.Path) (model.RunSummary, error)
}

type reportStore struct{}

// NewReportStore constructs a YAML-backed ReportStore.
func NewReportStore() ReportStore {
	return &reportStore{}
}

func (rs *reportStore) SaveSummary(dir model.Path, summary model.RunSummary) error {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return fmt.Errorf("create reports dir %s: %w", dir, err)
	}

	raw, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	path := filepath.Join(string(dir), summaryFileName)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write run summary %s: %w", path, err)
	}

	return nil
}

func (rs *reportStore) LoadSummary(dir model.Path) (model.RunSummary, error) {
	path := filepath.Join(string(dir), summaryFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("read run summary %s: %w", path, err)
	}

	var summary model.RunSummary

	if err := yaml.Unmarshal(raw, &summary); err != nil {
		return model.RunSummary{}, fmt.Errorf("decode run summary %s: %w", path, err)
	}

	return summary, nil
}
