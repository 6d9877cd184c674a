package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
)

func testConfig(env, level, format string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "test", Env: env, Port: "8000"},
		Log: config.LogConfig{Level: level, Format: format},
	}
}

// ── New ───────────────────────────────────────────────────────────────────────

func TestNew_Level(t *testing.T) {
	l, err := logger.New(testConfig("local", "warn", "console"))
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = logger.New(testConfig("production", "debug", "json"))
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logger.New(testConfig("local", "loud", "console"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger:")
}

// ── Extension ─────────────────────────────────────────────────────────────────

func TestExtension_BindsTaggedLoggerPerContainer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	root := container.New(container.WithName("app"))
	require.NoError(t, root.Extend(&logger.Extension{Base: zap.New(core)}))

	child, err := root.CreateSubContainer()
	require.NoError(t, err)

	container.MustResolve[*zap.Logger](root).Info("from root")
	container.MustResolve[*zap.Logger](child).Info("from child")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "app", entries[0].ContextMap()["container"])
	assert.Equal(t, "app.0", entries[1].ContextMap()["container"])
	assert.Equal(t, child.ID(), entries[1].ContextMap()["container_id"])
}

func TestExtension_DefaultsToContainerLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	root := container.New(container.WithLogger(zap.New(core)))
	require.NoError(t, root.Extend(&logger.Extension{}))

	container.MustResolve[*zap.Logger](root).Info("hello")
	found := logs.FilterMessage("hello").All()
	require.Len(t, found, 1)
	assert.Equal(t, "root", found[0].ContextMap()["container"])
}

func TestExtension_ConflictingBinding(t *testing.T) {
	root := container.New()
	require.NoError(t, container.Bind[*zap.Logger](root).ToInstance(zap.NewNop()))

	err := root.Extend(&logger.Extension{})
	assert.ErrorIs(t, err, container.ErrDuplicateBinding)
}
