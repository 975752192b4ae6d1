// Package cmd provides the root command and CLI setup for spore.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"spore.dev/pkg/spore/internal/adapter"
	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/controller"
	"spore.dev/pkg/spore/internal/coverage"
	"spore.dev/pkg/spore/internal/domain"
	m "spore.dev/pkg/spore/internal/model"
)

var fsAdapter adapter.SourceFS
var reportStore adapter.ReportStore
var ui controller.UI

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// noCacheFlag disables incremental caching when set.
var noCacheFlag bool

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

// verboseFlag raises the log level to debug.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewSimpleUI(rootCmd)
	fsAdapter = adapter.NewLocalSourceFS()
	reportStore = adapter.NewReportStore()
}

const rootLongDescription = `Spore is a mutation testing tool for Lisp-family sources. It introduces
small syntactic changes (mutations) into your code and verifies that your
tests catch them, using per-test coverage to run only the tests that can
observe each mutation.

The runner, reload and trace integration points are configured in
spore.yaml; see the runner.command, reload.command and trace.* keys.`

const runLongDescription = `Run mutation testing for the given paths (default: current directory).

Each mutation is applied, the targeted tests are run, and the original
source is restored byte-for-byte before the next mutation.`

const listLongDescription = `List source files and the number of applicable mutation sites without
executing anything.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spore",
		Short: "Mutation testing for Lisp-family sources",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for mutation testing reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVar(&noCacheFlag, noCacheFlagName, viper.GetBool(noCacheFlagName), "disable cached incremental runs (re-test everything)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// buildOrchestrator assembles the pipeline from the configured adapters. The
// returned store must be closed by the caller.
func buildOrchestrator() (*domain.Orchestrator, *coverage.Store, error) {
	runnerCommand := viper.GetStringSlice(runnerCommandKey)
	if len(runnerCommand) == 0 {
		return nil, nil, fmt.Errorf("no test runner configured; set %s in %s", runnerCommandKey, configFileName)
	}

	runner, err := adapter.NewExecTestRunner(runnerCommand, viper.GetString(runnerDirKey))
	if err != nil {
		return nil, nil, err
	}

	var reload adapter.ReloadService = adapter.NoopReload{}
	if command := viper.GetStringSlice(reloadCommandKey); len(command) > 0 {
		reload = adapter.NewExecReload(command, viper.GetString(runnerDirKey))
	}

	store, err := coverage.OpenStore(viper.GetString(stateDirKey))
	if err != nil {
		return nil, nil, err
	}

	orchestrator := domain.NewOrchestrator(
		fsAdapter,
		runner,
		adapter.NewManifestInventory(m.Path(viper.GetString(manifestKey))),
		adapter.NewFileTraceOracle(m.Path(viper.GetString(traceEventsKey))),
		reload,
		adapter.NewFileSelector(m.Path(viper.GetString(traceSelectorKey))),
		adapter.NewFileFormLocator(m.Path(viper.GetString(traceFormsKey))),
		reportStore,
		store,
		catalog.Builtin(),
	)

	return orchestrator, store, nil
}

// pipelineConfig collects the shared run/list parameters from flags, config
// and environment.
func pipelineConfig(args []string) domain.PipelineConfig {
	return domain.PipelineConfig{
		Paths:       parsePaths(args),
		Exclude:     viper.GetStringSlice(excludeConfigKey),
		Preset:      viper.GetString(presetConfigKey),
		Operators:   viper.GetStringSlice(operatorsConfigKey),
		Strategy:    domain.ClusterStrategy(viper.GetString(strategyConfigKey)),
		Workers:     viper.GetInt(runParallelConfigKey),
		TestTimeout: parseTestTimeout(viper.GetString(testTimeoutConfigKey)),
		UseCache:    !viper.GetBool(noCacheFlagName),
		UseSchemata: viper.GetBool(schemataConfigKey),
		ReportsDir:  m.Path(viper.GetString(outputFlagName)),
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
