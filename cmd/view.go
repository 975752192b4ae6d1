package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	m "spore.dev/pkg/spore/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View a previously generated mutation report",
		Long:  "View the mutation report stored in the reports directory of a prior run.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := reportStore.LoadSummary(m.Path(viper.GetString(outputFlagName)))
			if err != nil {
				return err
			}

			return ui.DisplaySummary(cmd.Context(), summary)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
