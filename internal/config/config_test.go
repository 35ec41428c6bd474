package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	t.Setenv("INKWELL_CONFIG", "")
	t.Setenv("INKWELL_PORT", "")
	t.Setenv("INKWELL_LOG_LEVEL", "")
	t.Setenv("INKWELL_LOG_PRETTY", "")
	t.Setenv("INKWELL_DAILY_RESET_HOUR", "")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Engine.MinorEditThreshold)
	assert.Equal(t, 500, cfg.Engine.ModerateEditThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadProjectFileWithComments(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.jsonc"), []byte(`{
		// local overrides
		"server": { "port": 9090 },
		"engine": { "minorEditThreshold": 25 },
	}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Engine.MinorEditThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, 500, cfg.Engine.ModerateEditThreshold)
}

func TestProjectOverridesGlobal(t *testing.T) {
	isolate(t)

	global := GetPaths().Config
	require.NoError(t, os.MkdirAll(global, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(global, "inkwell.json"),
		[]byte(`{"server": {"port": 7000}, "log": {"level": "debug"}}`), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.json"),
		[]byte(`{"server": {"port": 7100}}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
	// Global settings the project file does not touch still apply.
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesWin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.json"),
		[]byte(`{"server": {"port": 7100}}`), 0o644))

	t.Setenv("INKWELL_PORT", "6000")
	t.Setenv("INKWELL_LOG_LEVEL", "warn")
	t.Setenv("INKWELL_DAILY_RESET_HOUR", "4")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Usage.DailyResetHourUTC)
}

func TestEnvInterpolation(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	t.Setenv("TEST_INKWELL_LEVEL", "error")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.json"),
		[]byte(`{"log": {"level": "{env:TEST_INKWELL_LEVEL}"}}`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestMalformedConfigFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inkwell.json"),
		[]byte(`{"server": `), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestInvalidResetHourIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("INKWELL_DAILY_RESET_HOUR", "99")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Usage.DailyResetHourUTC)
}
