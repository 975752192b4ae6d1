package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runParallelFlag int
var runTimeoutFlag string
var runSchemataFlag bool
var runStrategyFlag string
var runPresetFlag string
var runOperatorsFlag []string

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run mutation testing",
		Long:  runLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, store, err := buildOrchestrator()
			if err != nil {
				return err
			}

			defer func() { _ = store.Close() }()

			summary, err := orchestrator.Run(cmd.Context(), pipelineConfig(args))
			if err != nil {
				return err
			}

			return ui.DisplaySummary(cmd.Context(), summary)
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, parallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of parallel workers for coverage refresh and parsing")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), runParallelConfigKey)

	cmd.Flags().StringVarP(&runTimeoutFlag, timeoutFlagName, "t", viper.GetString(testTimeoutConfigKey), "per-test timeout under mutation (duration or seconds)")
	bindFlagToConfig(cmd.Flags().Lookup(timeoutFlagName), testTimeoutConfigKey)

	cmd.Flags().BoolVar(&runSchemataFlag, schemataFlagName, viper.GetBool(schemataConfigKey), "compile all mutations of a file into one source and switch at runtime")
	bindFlagToConfig(cmd.Flags().Lookup(schemataFlagName), schemataConfigKey)

	cmd.Flags().StringVar(&runStrategyFlag, strategyFlagName, viper.GetString(strategyConfigKey), "cluster strategy: operator, location, shape or none")
	bindFlagToConfig(cmd.Flags().Lookup(strategyFlagName), strategyConfigKey)

	cmd.Flags().StringVar(&runPresetFlag, presetFlagName, viper.GetString(presetConfigKey), "operator preset: fast, default or thorough")
	bindFlagToConfig(cmd.Flags().Lookup(presetFlagName), presetConfigKey)

	cmd.Flags().StringArrayVar(&runOperatorsFlag, operatorFlagName, viper.GetStringSlice(operatorsConfigKey), "explicit operator IDs, overriding the preset (can be repeated)")
	bindFlagToConfig(cmd.Flags().Lookup(operatorFlagName), operatorsConfigKey)
}
