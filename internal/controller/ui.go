// Package controller provides output adapters for presenting mutation runs:
// plan estimations, per-site progress and the final summary.
package controller

import (
	"context"

	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

// UI is the presentation seam between the command layer and the pipeline.
// Implementations may render plain text or something richer; the pipeline
// only ever talks to this interface.
type UI interface {
	DisplayEstimation(ctx context.Context, sites []model.MutationSite, clusters []model.Cluster, err error) error
	DisplaySites(ctx context.Context, sites []model.MutationSite) error
	DisplaySummary(ctx context.Context, summary model.RunSummary) error
	DisplayOperators(ctx context.Context, ops []catalog.Operator) error
}
