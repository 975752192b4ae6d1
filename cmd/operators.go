package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spore.dev/pkg/spore/internal/catalog"
)

// operatorsCmd represents the operators command.
var operatorsCmd = newOperatorsCmd()

func newOperatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the mutation operators of the configured preset",
		Long: `List every mutation operator the configured preset would apply, with its
category, hardness score and the operators it dominates.`,
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := catalog.Builtin()

			ops, err := cat.Preset(viper.GetString(presetConfigKey))
			if err != nil {
				return err
			}

			return ui.DisplayOperators(cmd.Context(), ops)
		},
	}
}

func init() {
	rootCmd.AddCommand(operatorsCmd)
}
