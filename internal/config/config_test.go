package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "coverage.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 10.0, cfg.Geometry.RaySafetyFactor, 0.001)
	assert.InDelta(t, 1.0, cfg.Geometry.DedupeEpsilonM, 0.001)
	assert.InDelta(t, 50.0, cfg.Geometry.PatchBufferM, 0.001)
	assert.InDelta(t, 3.5, cfg.Query.AdaptiveKRatio, 0.001)
	assert.Equal(t, 64, cfg.Query.AdaptiveKMax)
	assert.InDelta(t, 10.0, cfg.Analytics.GapRadiusKM, 0.001)
	assert.InDelta(t, 25.0, cfg.Analytics.CriticalGapRadiusKM, 0.001)
	assert.InDelta(t, 2.0, cfg.Analytics.OverburdenedFactor, 0.001)
	assert.Equal(t, 5, cfg.Analytics.RankCount)
	assert.Equal(t, "state", cfg.Boundary.NameField)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/coverage
log:
  level: debug
  format: console
server:
  port: 9090
geometry:
  ray_safety_factor: 20
query:
  adaptive_k_ratio: 4.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Geometry.RaySafetyFactor, 0.001)
	assert.InDelta(t, 4.0, cfg.Query.AdaptiveKRatio, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 50.0, cfg.Geometry.PatchBufferM, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("COVERAGE_LOG_LEVEL", "warn")
	t.Setenv("COVERAGE_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml:::"), 0644))

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
