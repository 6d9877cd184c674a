package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/km-arc/go-ioc/framework/container"
)

// Booter is implemented by installers that need a second phase. Boot runs
// after every eager installer has installed, so it may resolve anything.
//
//	// Laravel: public function boot(): void { ... }
type Booter interface {
	Boot(c *container.Container) error
}

// Deferred is implemented by installers that should only run when one of the
// keys they provide is first resolved.
//
//	// Laravel: public function provides(): array { return [Cache::class]; }
type Deferred interface {
	Provides() []container.Key
}

// InstallerRegistry runs installers in two phases, like Laravel's provider
// registration and boot. Deferred installers share one sub-container that is
// built on the first lookup of any key they provide.
type InstallerRegistry struct {
	c        *container.Container
	eager    []container.Installer
	deferred []container.Installer
	source   *container.SubContainerSource
	provided map[container.Key]container.Installer
	booted   bool
}

// NewInstallerRegistry creates a registry installing into c.
func NewInstallerRegistry(c *container.Container) *InstallerRegistry {
	r := &InstallerRegistry{c: c, provided: make(map[container.Key]container.Installer)}
	r.source = container.NewSubContainerSource(container.InstallerFunc(r.installDeferred))
	return r
}

// Register installs inst now, or binds its provided keys for later when inst
// is Deferred. Registering after Boot boots inst immediately.
//
//	// Laravel: $app->register(new AppServiceProvider($app))
func (r *InstallerRegistry) Register(inst container.Installer) error {
	if inst == nil {
		return fmt.Errorf("app: register: nil installer")
	}
	if d, ok := inst.(Deferred); ok && len(d.Provides()) > 0 {
		return r.registerDeferred(inst, d.Provides())
	}
	if err := r.c.Install(inst); err != nil {
		return fmt.Errorf("app: register %T: %w", inst, err)
	}
	r.eager = append(r.eager, inst)
	if r.booted {
		return boot(r.c, inst)
	}
	return nil
}

func (r *InstallerRegistry) registerDeferred(inst container.Installer, keys []container.Key) error {
	for _, key := range keys {
		if _, dup := r.provided[key]; dup {
			return fmt.Errorf("app: register %T: %w", inst,
				&container.Error{Kind: container.KindDuplicateBinding, Op: "register", Key: key, Reason: "already provided by a deferred installer"})
		}
	}
	for _, key := range keys {
		p := container.Singleton(container.SubContainerProvider(r.source))
		if err := r.c.Binder().Register(key, container.Condition{}, p); err != nil {
			return fmt.Errorf("app: register %T: %w", inst, err)
		}
		r.provided[key] = inst
	}
	r.deferred = append(r.deferred, inst)

	// Already loaded: install straight into the shared sub-container.
	if sub := r.source.Container(); sub != nil {
		if err := sub.Install(inst); err != nil {
			return fmt.Errorf("app: register %T: %w", inst, err)
		}
		if r.booted {
			return boot(sub, inst)
		}
	}
	r.c.Logger().Debug("deferred installer registered", zap.String("installer", fmt.Sprintf("%T", inst)), zap.Int("keys", len(keys)))
	return nil
}

// installDeferred loads every deferred installer into the shared
// sub-container on first use.
func (r *InstallerRegistry) installDeferred(sub *container.Container) error {
	for _, inst := range r.deferred {
		if err := sub.Install(inst); err != nil {
			return err
		}
	}
	if r.booted {
		for _, inst := range r.deferred {
			if err := boot(sub, inst); err != nil {
				return err
			}
		}
	}
	r.c.Logger().Debug("deferred installers loaded", zap.Int("installers", len(r.deferred)))
	return nil
}

// Boot runs Boot on every eager installer, and on the deferred ones already
// loaded. Later calls are no-ops.
//
//	// Laravel: $app->boot()
func (r *InstallerRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, inst := range r.eager {
		if err := boot(r.c, inst); err != nil {
			return err
		}
	}
	if sub := r.source.Container(); sub != nil {
		for _, inst := range r.deferred {
			if err := boot(sub, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// Booted reports whether Boot has run.
func (r *InstallerRegistry) Booted() bool { return r.booted }

// Installers returns the eager installers in registration order.
func (r *InstallerRegistry) Installers() []container.Installer {
	return append([]container.Installer(nil), r.eager...)
}

// Loaded reports whether the deferred sub-container has been built.
func (r *InstallerRegistry) Loaded() bool { return r.source.Container() != nil }

func boot(c *container.Container, inst container.Installer) error {
	b, ok := inst.(Booter)
	if !ok {
		return nil
	}
	if err := b.Boot(c); err != nil {
		return fmt.Errorf("app: boot %T: %w", inst, err)
	}
	return nil
}
