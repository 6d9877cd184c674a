package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/app"
	"github.com/km-arc/go-ioc/framework/container"
)

// ── stub installers ───────────────────────────────────────────────────────────

type EagerService struct{ name string }

type eagerInstaller struct {
	installs int
	boots    int
}

func (p *eagerInstaller) InstallBindings(c *container.Container) error {
	p.installs++
	return container.Bind[*EagerService](c).ToInstance(&EagerService{name: "eager"})
}

func (p *eagerInstaller) Boot(c *container.Container) error {
	p.boots++
	_, err := container.Resolve[*EagerService](c)
	return err
}

type Cache struct{ owner string }

type Queue struct{ owner string }

// deferredInstaller is only installed when Cache or Queue is first resolved.
type deferredInstaller struct {
	installs int
	boots    int
}

func (p *deferredInstaller) InstallBindings(c *container.Container) error {
	p.installs++
	if err := container.Bind[*Cache](c).ToInstance(&Cache{owner: c.Name()}); err != nil {
		return err
	}
	return container.Bind[*Queue](c).ToInstance(&Queue{owner: c.Name()})
}

func (p *deferredInstaller) Boot(*container.Container) error {
	p.boots++
	return nil
}

func (p *deferredInstaller) Provides() []container.Key {
	return []container.Key{container.KeyOf[*Cache](), container.KeyOf[*Queue]()}
}

type Mailer struct{}

type mailInstaller struct{}

func (mailInstaller) InstallBindings(c *container.Container) error {
	return container.Bind[*Mailer](c).ToInstance(&Mailer{})
}

func (mailInstaller) Provides() []container.Key {
	return []container.Key{container.KeyOf[*Mailer]()}
}

// ── eager ─────────────────────────────────────────────────────────────────────

func TestRegistry_EagerInstallsImmediately(t *testing.T) {
	c := container.New()
	reg := app.NewInstallerRegistry(c)
	p := &eagerInstaller{}

	require.NoError(t, reg.Register(p))
	assert.Equal(t, 1, p.installs)
	assert.Zero(t, p.boots, "boot waits for Boot")
	assert.True(t, c.Has(container.KeyOf[*EagerService]()))
	assert.Equal(t, []container.Installer{p}, reg.Installers())
}

func TestRegistry_BootIsIdempotent(t *testing.T) {
	reg := app.NewInstallerRegistry(container.New())
	p := &eagerInstaller{}
	require.NoError(t, reg.Register(p))

	assert.False(t, reg.Booted())
	require.NoError(t, reg.Boot())
	require.NoError(t, reg.Boot())
	assert.True(t, reg.Booted())
	assert.Equal(t, 1, p.boots)
}

func TestRegistry_RegisterAfterBootBootsImmediately(t *testing.T) {
	reg := app.NewInstallerRegistry(container.New())
	require.NoError(t, reg.Boot())

	p := &eagerInstaller{}
	require.NoError(t, reg.Register(p))
	assert.Equal(t, 1, p.boots)
}

func TestRegistry_DuplicateRegister(t *testing.T) {
	reg := app.NewInstallerRegistry(container.New())
	p := &eagerInstaller{}
	require.NoError(t, reg.Register(p))

	err := reg.Register(p)
	assert.ErrorIs(t, err, container.ErrAlreadyInstalled)
	assert.Equal(t, 1, p.installs)
	assert.Error(t, reg.Register(nil))
}

// ── deferred ──────────────────────────────────────────────────────────────────

func TestRegistry_DeferredInstallsOnFirstLookup(t *testing.T) {
	c := container.New()
	reg := app.NewInstallerRegistry(c)
	p := &deferredInstaller{}

	require.NoError(t, reg.Register(p))
	assert.Zero(t, p.installs)
	assert.False(t, reg.Loaded())
	assert.True(t, c.Has(container.KeyOf[*Cache]()))

	cache := container.MustResolve[*Cache](c)
	queue := container.MustResolve[*Queue](c)
	assert.Equal(t, 1, p.installs)
	assert.True(t, reg.Loaded())
	assert.Equal(t, cache.owner, queue.owner, "deferred installers share one sub-container")
	assert.NotEqual(t, c.Name(), cache.owner)
	assert.Same(t, cache, container.MustResolve[*Cache](c))
	assert.Len(t, c.Children(), 1)
}

func TestRegistry_DeferredBoot(t *testing.T) {
	t.Run("loaded before boot", func(t *testing.T) {
		c := container.New()
		reg := app.NewInstallerRegistry(c)
		p := &deferredInstaller{}
		require.NoError(t, reg.Register(p))
		_ = container.MustResolve[*Cache](c)
		assert.Zero(t, p.boots)

		require.NoError(t, reg.Boot())
		assert.Equal(t, 1, p.boots)
	})

	t.Run("loaded after boot", func(t *testing.T) {
		c := container.New()
		reg := app.NewInstallerRegistry(c)
		p := &deferredInstaller{}
		require.NoError(t, reg.Register(p))
		require.NoError(t, reg.Boot())
		assert.Zero(t, p.boots, "not loaded yet")

		_ = container.MustResolve[*Queue](c)
		assert.Equal(t, 1, p.boots)
	})
}

func TestRegistry_DeferredAfterLoad(t *testing.T) {
	c := container.New()
	reg := app.NewInstallerRegistry(c)
	require.NoError(t, reg.Register(&deferredInstaller{}))
	cache := container.MustResolve[*Cache](c)

	require.NoError(t, reg.Register(mailInstaller{}))
	_, err := container.Resolve[*Mailer](c)
	require.NoError(t, err)
	assert.Len(t, c.Children(), 1, "late deferred installers join the loaded sub-container")
	assert.Same(t, cache, container.MustResolve[*Cache](c))
}

func TestRegistry_DeferredDuplicateKey(t *testing.T) {
	c := container.New()
	reg := app.NewInstallerRegistry(c)
	require.NoError(t, reg.Register(&deferredInstaller{}))

	err := reg.Register(&deferredInstaller{})
	assert.ErrorIs(t, err, container.ErrDuplicateBinding)

	require.NoError(t, container.Bind[*Mailer](c).ToInstance(&Mailer{}))
	err = reg.Register(mailInstaller{})
	assert.ErrorIs(t, err, container.ErrDuplicateBinding)
}
