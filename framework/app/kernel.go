// Package app assembles a container tree into a runnable HTTP application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
	"github.com/km-arc/go-ioc/framework/manifest"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

const shutdownTimeout = 5 * time.Second

// Application is the root container plus the machinery around it. It embeds
// the container so user code can call app.Install, app.CreateSubContainer
// and friends directly.
type Application struct {
	*container.Container
	Installers *InstallerRegistry
	// Manifests names the installers a container manifest may list.
	Manifests *manifest.Registry

	cfg  *config.Config
	log  *zap.Logger
	tree *manifest.Tree
}

// Option customizes New.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger uses l instead of building one from the configuration.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates the root container and registers the framework installers.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		var err error
		if log, err = logger.New(cfg); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	c := container.New(container.WithName(cfg.Container.Name), container.WithLogger(log))
	a := &Application{
		Container:  c,
		Installers: NewInstallerRegistry(c),
		Manifests:  manifest.NewRegistry(),
		cfg:        cfg,
		log:        log,
	}

	core := []container.Installer{
		&providers.ConfigInstaller{Config: cfg},
		&providers.LoggingInstaller{Logger: log},
		&providers.RoutingInstaller{},
	}
	if cfg.Metrics.Enabled {
		core = append(core, &providers.MetricsInstaller{Namespace: cfg.Metrics.Namespace, Path: cfg.Metrics.Path})
	}
	for _, inst := range core {
		if err := a.Installers.Register(inst); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds an installer to the application.
func (a *Application) Register(inst container.Installer) error {
	return a.Installers.Register(inst)
}

// Boot builds the configured container manifest, if any, and boots every
// installer. It is idempotent.
func (a *Application) Boot() error {
	if a.Installers.Booted() {
		return nil
	}
	if path := a.cfg.Container.Manifest; path != "" && a.tree == nil {
		m, err := manifest.LoadFile(path)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		if a.tree, err = manifest.Build(a.Container, m, a.Manifests); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	return a.Installers.Boot()
}

// Config returns the application configuration.
func (a *Application) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// Router resolves the HTTP router.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container)
}

// Tree returns the containers built from the manifest, or nil.
func (a *Application) Tree() *manifest.Tree { return a.tree }

// Run boots the application and serves HTTP on the configured port until
// ctx is done, then shuts the server down and disposes the containers.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Boot(); err != nil {
		return err
	}
	router, err := a.Router()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.App.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("env", a.cfg.App.Env),
			zap.String("container", a.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return multierr.Append(fmt.Errorf("app: serve: %w", err), a.Close())
		}
		return a.Close()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	a.log.Info("stopped")
	return multierr.Append(err, a.Close())
}

// Close disposes the manifest tree and the root container.
func (a *Application) Close() error {
	var err error
	if a.tree != nil {
		err = a.tree.Dispose()
	}
	return multierr.Append(err, a.Container.Dispose())
}

func (a *Application) IsLocal() bool      { return a.cfg.App.IsLocal() }
func (a *Application) IsProduction() bool { return a.cfg.App.IsProduction() }
func (a *Application) IsTesting() bool    { return a.cfg.App.IsTesting() }
