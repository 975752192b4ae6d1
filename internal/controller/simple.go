package controller

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/model"
)

// Verdict styles for the console renderer.
var (
	killedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	survivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	neutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

type fileStat struct {
	path  string
	count int
}

// DisplayEstimation prints a per-file table of planned mutation sites and the
// cluster count, or the estimation error.
func (s *SimpleUI) DisplayEstimation(ctx context.Context, sites []model.MutationSite, clusters []model.Cluster, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		s.printf("estimation error: %v\n", err)

		return err
	}

	s.printf("\n%s", renderEstimationTable(buildFileStats(sites), len(sites)))
	s.printf("Clusters to execute: %d\n", len(clusters))

	return nil
}

// DisplaySites prints every planned site with its operator and replacement.
func (s *SimpleUI) DisplaySites(ctx context.Context, sites []model.MutationSite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, site := range sites {
		s.printf("%s:%d %s: %s -> %s\n",
			site.File, site.Line, site.Operator, site.Original, site.Replacement)
	}

	return nil
}

// DisplaySummary prints the verdict table and the final score. Diffs of
// surviving mutants follow the table so they can be acted on.
func (s *SimpleUI) DisplaySummary(ctx context.Context, summary model.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderSummaryTable(summary))

	for _, report := range summary.Reports {
		if report.Verdict != model.Survived.String() || report.Diff == "" {
			continue
		}

		s.printf("\n%s %s\n%s",
			survivedStyle.Render("survived:"), report.Site.Key(), report.Diff)
	}

	s.printf("\nMutation score: %.2f%%\n", summary.Score*100)

	return nil
}

// DisplayOperators prints the operator table: ID, category, hardness and the
// operators each one dominates.
func (s *SimpleUI) DisplayOperators(ctx context.Context, ops []catalog.Operator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Operator", "Category", "Hardness", "Dominates"})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	for _, op := range ops {
		table.Append([]string{
			op.ID,
			op.Category,
			fmt.Sprintf("%.2f", op.Hardness),
			strings.Join(op.Dominates, ", "),
		})
	}

	table.Render()

	s.printf("\n%s", tableBuffer.String())

	return nil
}

func buildFileStats(sites []model.MutationSite) []fileStat {
	info := make(map[string]int)

	for _, site := range sites {
		info[string(site.File)]++
	}

	statsList := make([]fileStat, 0, len(info))
	for path, count := range info {
		statsList = append(statsList, fileStat{path: path, count: count})
	}

	sort.Slice(statsList, func(i, j int) bool {
		return statsList[i].path < statsList[j].path
	})

	return statsList
}

func renderEstimationTable(statsList []fileStat, totalSites int) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Sites"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	for _, stat := range statsList {
		table.Append([]string{stat.path, fmt.Sprintf("%d", stat.count)})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(statsList)),
		fmt.Sprintf("%d", totalSites),
	})

	table.Render()

	return tableBuffer.String()
}

func renderSummaryTable(summary model.RunSummary) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Verdict", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	rows := []struct {
		label string
		count int
		style lipgloss.Style
	}{
		{model.Killed.String(), summary.Killed, killedStyle},
		{model.Survived.String(), summary.Survived, survivedStyle},
		{model.NoCoverage.String(), summary.NoCoverage, neutralStyle},
		{model.Timeout.String(), summary.Timeouts, neutralStyle},
		{model.Errored.String(), summary.Errors, neutralStyle},
		{"equivalent (excluded)", len(summary.Equivalent), neutralStyle},
	}

	for _, row := range rows {
		table.Append([]string{row.style.Render(row.label), fmt.Sprintf("%d", row.count)})
	}

	table.Render()

	return tableBuffer.String()
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
