package cmd

import (
	"github.com/spf13/cobra"
)

var listSitesFlag bool

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List source files and mutation site counts",
		Long:  listLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, store, err := buildOrchestrator()
			if err != nil {
				return err
			}

			defer func() { _ = store.Close() }()

			sites, _, clusters, err := orchestrator.Estimate(cmd.Context(), pipelineConfig(args))
			if displayErr := ui.DisplayEstimation(cmd.Context(), sites, clusters, err); displayErr != nil {
				return displayErr
			}

			if listSitesFlag {
				return ui.DisplaySites(cmd.Context(), sites)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&listSitesFlag, "sites", false, "list every planned mutation site, not just per-file counts")

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
