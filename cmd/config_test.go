package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "spore", configBaseName)
	assert.Equal(t, "spore.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputFlagName)
	assert.Equal(t, "no-cache", noCacheFlagName)
	assert.Equal(t, "exclude", excludeFlagName)
	assert.Equal(t, "parallel", parallelFlagName)
	assert.Equal(t, "run.parallel", runParallelConfigKey)
	assert.Equal(t, "paths.exclude", excludeConfigKey)
	assert.Equal(t, ".spore-reports", defaultReportsDir)
	assert.Equal(t, false, defaultNoCache)
	assert.Equal(t, 1, defaultParallel)
	assert.Equal(t, "SPORE", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestParseSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseSlogLevel("debug", slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, parseSlogLevel("WARNING", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, parseSlogLevel(" error ", slog.LevelInfo))
	assert.Equal(t, slog.Level(-4), parseSlogLevel("-4", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, parseSlogLevel("", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, parseSlogLevel("bogus", slog.LevelInfo))
}

func TestParseTestTimeout(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, parseTestTimeout("500ms"))
	assert.Equal(t, 3*time.Second, parseTestTimeout("3"))
	assert.Equal(t, defaultTestTimeout, parseTestTimeout(""))
	assert.Equal(t, defaultTestTimeout, parseTestTimeout("bogus"))
	assert.Equal(t, defaultTestTimeout, parseTestTimeout("-1"))
}
