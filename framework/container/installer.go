package container

import "reflect"

// Installer registers a group of related bindings into a container.
//
//	type MailInstaller struct{ DSN string }
//
//	func (i *MailInstaller) InstallBindings(c *container.Container) error {
//	    return container.Bind[Mailer](c).To(container.TypeOf[*SMTPMailer]()).AsSingleton()
//	}
type Installer interface {
	InstallBindings(c *Container) error
}

// InstallerFunc adapts a function to Installer. Function values cannot be
// compared, so installing the same InstallerFunc twice is not detected.
type InstallerFunc func(c *Container) error

// InstallBindings calls f(c).
func (f InstallerFunc) InstallBindings(c *Container) error { return f(c) }

// Install runs inst against c. Installing the same installer instance twice
// on one container fails with AlreadyInstalled.
func (c *Container) Install(inst Installer) error {
	const op = "install"
	if inst == nil {
		return invalidOp(op, "nil installer")
	}
	if err := c.checkAlive(op); err != nil {
		return err
	}
	id, tracked := identity(inst)
	if tracked {
		if _, dup := c.installed[id]; dup {
			return newError(KindAlreadyInstalled, op, Key{Type: reflect.TypeOf(inst)}, "installer already installed")
		}
	}
	if err := inst.InstallBindings(c); err != nil {
		if _, ok := err.(*Error); ok {
			return err
		}
		return &Error{Kind: KindInvalidOperation, Op: op, Key: Key{Type: reflect.TypeOf(inst)}, Reason: "installer failed", Err: err}
	}
	if tracked {
		c.installed[id] = struct{}{}
	}
	c.log.Debug("installed", zapType("installer", reflect.TypeOf(inst)))
	return nil
}

// InstallType resolves t from c, or instantiates it with args when t is not
// bound, and installs the result. Each installer type installs once per container.
func (c *Container) InstallType(t reflect.Type, args ...any) error {
	const op = "install"
	if t == nil {
		return invalidOp(op, "nil installer type")
	}
	if _, dup := c.installedTypes[t]; dup {
		return newError(KindAlreadyInstalled, op, Key{Type: t}, "installer type already installed")
	}
	v, found, err := c.resolve(Key{Type: t}, nil)
	if err != nil {
		return err
	}
	if !found {
		if v, err = c.injector.Instantiate(t, args...); err != nil {
			return err
		}
	}
	inst, ok := v.(Installer)
	if !ok || inst == nil {
		return newError(KindInvalidOperation, op, Key{Type: t}, "type does not implement Installer")
	}
	if err := c.Install(inst); err != nil {
		return err
	}
	c.installedTypes[t] = struct{}{}
	return nil
}

// Install instantiates the installer type I and installs it.
//
//	err := container.Install[*MailInstaller](c, container.NamedArg("dsn", dsn))
func Install[I Installer](c *Container, args ...any) error {
	return c.InstallType(TypeOf[I](), args...)
}

// identity returns a comparable identity for v, if it has one.
func identity(v any) (any, bool) {
	t := reflect.TypeOf(v)
	if t == nil || !t.Comparable() {
		return nil, false
	}
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Chan {
		return v, true
	}
	if hasInterfaceField(t) {
		return nil, false
	}
	return v, true
}

func hasInterfaceField(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasInterfaceField(t.Field(i).Type) {
				return true
			}
		}
	case reflect.Array:
		return hasInterfaceField(t.Elem())
	}
	return false
}
