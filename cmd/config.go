package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "spore"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName   = "output"
	noCacheFlagName  = "no-cache"
	excludeFlagName  = "exclude"
	parallelFlagName = "parallel"
	timeoutFlagName  = "test-timeout"
	schemataFlagName = "schemata"
	strategyFlagName = "cluster"
	presetFlagName   = "preset"
	operatorFlagName = "operator"

	runParallelConfigKey = "run.parallel"
	testTimeoutConfigKey = "run.test_timeout"
	schemataConfigKey    = "run.schemata"
	strategyConfigKey    = "run.cluster"
	presetConfigKey      = "run.preset"
	operatorsConfigKey   = "run.operators"
	excludeConfigKey     = "paths.exclude"

	runnerCommandKey = "runner.command"
	runnerDirKey     = "runner.dir"
	reloadCommandKey = "reload.command"
	manifestKey      = "tests.manifest"
	traceEventsKey   = "trace.events"
	traceFormsKey    = "trace.forms"
	traceSelectorKey = "trace.selector"
	stateDirKey      = "state.dir"

	defaultTestTimeout = 2 * time.Second

	defaultReportsDir = ".spore-reports"
	defaultNoCache    = false
	defaultParallel   = 1
	defaultStrategy   = "none"
	defaultPreset     = "default"

	defaultManifest      = "spore-tests.yaml"
	defaultTraceEvents   = ".spore/trace.jsonl"
	defaultTraceForms    = ".spore/forms.json"
	defaultTraceSelector = ".spore/mutant"
	defaultStateDir      = "."

	envPrefix = "SPORE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".spore.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(noCacheFlagName, defaultNoCache)
	viper.SetDefault(runParallelConfigKey, defaultParallel)
	viper.SetDefault(testTimeoutConfigKey, defaultTestTimeout.String())
	viper.SetDefault(schemataConfigKey, false)
	viper.SetDefault(strategyConfigKey, defaultStrategy)
	viper.SetDefault(presetConfigKey, defaultPreset)
	viper.SetDefault(operatorsConfigKey, []string{})
	viper.SetDefault(excludeConfigKey, []string{})

	viper.SetDefault(runnerCommandKey, []string{})
	viper.SetDefault(runnerDirKey, ".")
	viper.SetDefault(reloadCommandKey, []string{})
	viper.SetDefault(manifestKey, defaultManifest)
	viper.SetDefault(traceEventsKey, defaultTraceEvents)
	viper.SetDefault(traceFormsKey, defaultTraceForms)
	viper.SetDefault(traceSelectorKey, defaultTraceSelector)
	viper.SetDefault(stateDirKey, defaultStateDir)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// parseTestTimeout reads the configured per-test timeout, accepting either a
// Go duration string or a plain number of seconds.
func parseTestTimeout(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultTestTimeout
	}

	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}

	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}

	return defaultTestTimeout
}
