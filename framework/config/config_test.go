package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/config"
)

// ── helpers ───────────────────────────────────────────────────────────────────

var knownVars = []string{
	"APP_NAME", "APP_ENV", "APP_PORT", "LOG_LEVEL",
	"IOC_APP_NAME", "IOC_APP_ENV", "IOC_APP_PORT",
	"IOC_LOG_LEVEL", "IOC_LOG_FORMAT",
	"IOC_CONTAINER_NAME", "IOC_CONTAINER_MANIFEST",
	"IOC_METRICS_ENABLED", "IOC_METRICS_NAMESPACE", "IOC_METRICS_PATH",
}

// fresh runs the test in an empty directory with no configuration variables
// set. godotenv only fills unset variables, so they are unset, not emptied.
func fresh(t *testing.T) string {
	t.Helper()
	for _, k := range knownVars {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { _ = os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(k) })
		}
		require.NoError(t, os.Unsetenv(k))
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// ── Load ──────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	fresh(t)

	cfg, err := config.Load("missing.env")
	require.NoError(t, err)

	assert.Equal(t, config.Config{
		App:       config.AppConfig{Name: "GoIoC", Env: "local", Port: "8000"},
		Log:       config.LogConfig{Level: "info", Format: "console"},
		Container: config.ContainerConfig{Name: "root"},
		Metrics:   config.MetricsConfig{Enabled: false, Namespace: "ioc", Path: "/metrics"},
	}, *cfg)
	assert.Equal(t, ":8000", cfg.App.Addr())
	assert.True(t, cfg.App.IsLocal())
}

func TestLoad_PrefixedEnvOverrides(t *testing.T) {
	fresh(t)
	t.Setenv("IOC_APP_NAME", "Shop")
	t.Setenv("IOC_LOG_LEVEL", "debug")
	t.Setenv("IOC_LOG_FORMAT", "json")
	t.Setenv("IOC_CONTAINER_MANIFEST", "containers.yaml")
	t.Setenv("IOC_METRICS_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "Shop", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "containers.yaml", cfg.Container.Manifest)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_UnprefixedFallback(t *testing.T) {
	fresh(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, "9000", cfg.App.Port)

	t.Setenv("IOC_APP_PORT", "9100")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.App.Port, "prefixed name wins")
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := fresh(t)
	write(t, filepath.Join(dir, "configs", "config.yaml"), `
app:
  name: FromYAML
log:
  format: json
metrics:
  enabled: true
  namespace: shop
`)
	t.Setenv("IOC_METRICS_NAMESPACE", "override")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "FromYAML", cfg.App.Name)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "override", cfg.Metrics.Namespace, "env beats the file")
	assert.Equal(t, "info", cfg.Log.Level, "defaults fill the rest")
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	dir := fresh(t)
	write(t, filepath.Join(dir, "config.yaml"), "app: [unterminated\n")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read config file")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := fresh(t)
	write(t, filepath.Join(dir, "app.env"), "APP_NAME=FromDotenv\nLOG_LEVEL=debug\n")
	t.Setenv("IOC_APP_ENV", "testing")

	cfg, err := config.Load("app.env", "other.env")
	require.NoError(t, err)
	assert.Equal(t, "FromDotenv", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.App.IsTesting())
}

// ── Validate ──────────────────────────────────────────────────────────────────

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		env   string
		value string
		field string
	}{
		"level":     {"IOC_LOG_LEVEL", "trace", "log.level"},
		"format":    {"IOC_LOG_FORMAT", "xml", "log.format"},
		"port":      {"APP_PORT", "http", "app.port"},
		"env":       {"APP_ENV", "staging", "app.env"},
		"namespace": {"IOC_METRICS_NAMESPACE", "my-app", "metrics.namespace"},
		"root name": {"IOC_CONTAINER_NAME", ".root", "container.name"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fresh(t)
			t.Setenv(tc.env, tc.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}
