package providers

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
	"github.com/km-arc/go-ioc/framework/metrics"
	"github.com/km-arc/go-ioc/framework/routing"
)

// ── ConfigInstaller ───────────────────────────────────────────────────────────

// ConfigInstaller binds the loaded configuration.
//
// Bound keys:
//   - *config.Config
//   - config.AppConfig
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->singleton('config', fn() => new Repository($items));
type ConfigInstaller struct {
	Config *config.Config
}

func (p *ConfigInstaller) InstallBindings(c *container.Container) error {
	if p.Config == nil {
		return errors.New("providers: config installer without config")
	}
	if err := container.Bind[*config.Config](c).ToInstance(p.Config); err != nil {
		return err
	}
	return container.Bind[config.AppConfig](c).ToInstance(p.Config.App)
}

// ── LoggingInstaller ──────────────────────────────────────────────────────────

// LoggingInstaller extends the tree with logger.Extension, so every
// container resolves a *zap.Logger tagged with its own name.
type LoggingInstaller struct {
	Logger *zap.Logger
}

func (p *LoggingInstaller) InstallBindings(c *container.Container) error {
	return c.Extend(&logger.Extension{Base: p.Logger})
}

// ── RoutingInstaller ──────────────────────────────────────────────────────────

// RoutingInstaller registers the HTTP router. Request containers are created
// under the container the router is bound in.
//
// Bound keys:
//   - *routing.Router (singleton)
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingInstaller struct{}

func (p *RoutingInstaller) InstallBindings(c *container.Container) error {
	return container.Bind[*routing.Router](c).FromFactoryMethod(func(ctx container.InjectContext) (*routing.Router, error) {
		log, _, err := container.TryResolve[*zap.Logger](ctx.Container)
		if err != nil {
			return nil, err
		}
		return routing.New(ctx.Container, log), nil
	}).AsSingleton()
}

// ── MetricsInstaller ──────────────────────────────────────────────────────────

// MetricsInstaller extends the tree with the Prometheus collector and, on
// boot, serves the registry at Path on the router.
//
// Bound keys:
//   - *prometheus.Registry
//   - prometheus.Gatherer (forwards to the registry)
type MetricsInstaller struct {
	Namespace string
	Path      string
}

func (p *MetricsInstaller) InstallBindings(c *container.Container) error {
	reg := prometheus.NewRegistry()
	if err := container.Bind[*prometheus.Registry](c).ToInstance(reg); err != nil {
		return err
	}
	if err := container.Bind[prometheus.Gatherer](c).FromResolve(container.KeyOf[*prometheus.Registry]()); err != nil {
		return err
	}
	return c.Extend(&metrics.Extension{Registerer: reg, Namespace: p.Namespace})
}

// Boot mounts the metrics endpoint when a router is bound.
func (p *MetricsInstaller) Boot(c *container.Container) error {
	router, ok, err := container.TryResolve[*routing.Router](c)
	if err != nil || !ok {
		return err
	}
	gatherer, err := container.Resolve[prometheus.Gatherer](c)
	if err != nil {
		return err
	}
	path := p.Path
	if path == "" {
		path = "/metrics"
	}
	router.Mount(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return nil
}
