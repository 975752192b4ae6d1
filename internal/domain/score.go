package domain

import (
	"fmt"

	"spore.dev/pkg/spore/internal/model"
	"spore.dev/pkg/spore/pkg"
)

// Tally aggregates verdict counts from a run's report spill into a summary.
// The score counts only decided mutants: killed over killed plus survived.
// No-coverage, timeout and errored sites are reported but never lower or
// raise the score, and equivalence-filtered sites are outside it entirely.
func Tally(runID string, reports pkg.Spill[model.Report], equivalent []model.ExcludedSite) (model.RunSummary, error) {
	summary := model.RunSummary{
		RunID:      runID,
		Equivalent: equivalent,
	}

	err := reports.Range(func(_ uint64, report model.Report) error {
		verdict, ok := model.ParseVerdict(report.Verdict)
		if !ok || !verdict.Terminal() {
			return fmt.Errorf("unexpected verdict %q for %s", report.Verdict, report.Site.Key())
		}

		summary.Reports = append(summary.Reports, report)

		switch verdict {
		case model.Killed:
			summary.Killed++
		case model.Survived:
			summary.Survived++
		case model.NoCoverage:
			summary.NoCoverage++
		case model.Timeout:
			summary.Timeouts++
		case model.Errored:
			summary.Errors++
		}

		return nil
	})
	if err != nil {
		return model.RunSummary{}, err
	}

	summary.Score = Score(summary.Killed, summary.Survived)

	return summary, nil
}

// Score computes the mutation score over decided mutants. An empty
// denominator scores 1.0: nothing decidable survived.
func Score(killed, survived int) float64 {
	decided := killed + survived
	if decided == 0 {
		return 1.0
	}

	return float64(killed) / float64(decided)
}
