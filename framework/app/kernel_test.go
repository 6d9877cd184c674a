package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/routing"
)

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Name: "Test", Env: "testing", Port: "0"},
		Log:       config.LogConfig{Level: "debug", Format: "console"},
		Container: config.ContainerConfig{Name: "root"},
		Metrics:   config.MetricsConfig{Namespace: "test", Path: "/metrics"},
	}
}

func newApp(t *testing.T, cfg *config.Config) *app.Application {
	t.Helper()
	a, err := app.New(cfg, app.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// ── New ───────────────────────────────────────────────────────────────────────

func TestNew_BindsFrameworkServices(t *testing.T) {
	cfg := testConfig()
	a := newApp(t, cfg)

	assert.Equal(t, "root", a.Name())
	assert.True(t, a.IsTesting())
	assert.False(t, a.IsLocal())
	assert.False(t, a.IsProduction())
	assert.Same(t, cfg, a.Config())
	assert.Same(t, cfg, container.MustResolve[*config.Config](a.Container))
	assert.Equal(t, "Test", container.MustResolve[config.AppConfig](a.Container).Name)
	assert.NotNil(t, container.MustResolve[*zap.Logger](a.Container))

	r1, err := a.Router()
	require.NoError(t, err)
	r2, err := a.Router()
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.Len(t, a.Installers.Installers(), 3)
}

func TestNew_NilConfig(t *testing.T) {
	_, err := app.New(nil)
	assert.Error(t, err)
}

func TestNew_LoggerFromConfig(t *testing.T) {
	cfg := testConfig()
	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.NotNil(t, a.Logger())

	cfg = testConfig()
	cfg.Log.Level = "loud"
	_, err = app.New(cfg)
	assert.Error(t, err)
}

// ── Metrics ───────────────────────────────────────────────────────────────────

func TestMetrics_EndpointServedAfterBoot(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	a := newApp(t, cfg)
	require.NoError(t, a.Boot())

	router, err := a.Router()
	require.NoError(t, err)
	router.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_container_resolutions_total")
	assert.Contains(t, rec.Body.String(), "test_container_containers_total")
}

func TestMetrics_DisabledByDefault(t *testing.T) {
	a := newApp(t, testConfig())
	require.NoError(t, a.Boot())

	router, err := a.Router()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ── Manifest ──────────────────────────────────────────────────────────────────

type Ledger struct{ scope string }

type ledgerInstaller struct{ scope string }

func (i *ledgerInstaller) InstallBindings(c *container.Container) error {
	return container.Bind[*Ledger](c).ToInstance(&Ledger{scope: i.scope})
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "containers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBoot_BuildsManifest(t *testing.T) {
	cfg := testConfig()
	cfg.Container.Manifest = writeManifest(t, `
name: root
children:
  - name: billing
    installers: [ledger]
  - name: reports
`)
	a := newApp(t, cfg)
	require.NoError(t, a.Manifests.Register("ledger", func() container.Installer {
		return &ledgerInstaller{scope: "billing"}
	}))

	require.NoError(t, a.Boot())
	require.NoError(t, a.Boot())

	tree := a.Tree()
	require.NotNil(t, tree)
	billing := tree.Find("billing")
	require.NotNil(t, billing)
	assert.Equal(t, "billing", billing.Container.Name())
	assert.Equal(t, "billing", container.MustResolve[*Ledger](billing.Container).scope)
	assert.False(t, a.Has(container.KeyOf[*Ledger]()))

	reports := tree.Find("reports")
	require.NotNil(t, reports)
	assert.Same(t, cfg, container.MustResolve[*config.Config](reports.Container), "children fall back to root")

	require.NoError(t, a.Close())
	assert.True(t, billing.Container.Disposed())
	assert.True(t, a.Disposed())
}

func TestBoot_ManifestErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := testConfig()
		cfg.Container.Manifest = filepath.Join(t.TempDir(), "absent.yaml")
		a := newApp(t, cfg)
		assert.Error(t, a.Boot())
		assert.False(t, a.Installers.Booted())
	})

	t.Run("unknown installer", func(t *testing.T) {
		cfg := testConfig()
		cfg.Container.Manifest = writeManifest(t, "name: root\ninstallers: [ghost]\n")
		a := newApp(t, cfg)
		err := a.Boot()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ghost")
	})
}

// ── Installers ────────────────────────────────────────────────────────────────

func TestRegister_AppInstallerBooted(t *testing.T) {
	a := newApp(t, testConfig())
	p := &eagerInstaller{}
	require.NoError(t, a.Register(p))
	require.NoError(t, a.Boot())
	assert.Equal(t, 1, p.boots)
}

type Greeting struct{ Text string }

type hello struct {
	Greeting *Greeting         `inject:""`
	Res      *routing.Response `inject:""`
}

func (h *hello) Handle(context.Context) error {
	h.Res.Success(h.Greeting.Text)
	return nil
}

func TestRouter_ActionResolvesRootBindings(t *testing.T) {
	a := newApp(t, testConfig())
	require.NoError(t, container.Bind[*Greeting](a.Container).ToInstance(&Greeting{Text: "hi"}))
	require.NoError(t, a.Boot())

	router, err := a.Router()
	require.NoError(t, err)
	routing.Handle[*hello](router, http.MethodGet, "/hello")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi")
}

// ── Run ───────────────────────────────────────────────────────────────────────

func TestRun_StopsOnCancel(t *testing.T) {
	a := newApp(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, a.Disposed())
	assert.True(t, a.Installers.Booted())
}
