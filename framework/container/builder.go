package container

import (
	"reflect"
)

// BindingBuilder starts a binding for T. It is an immutable value: every
// method returns a modified copy, and nothing is registered until a terminal
// call (AsSingleton, AsTransient, ToInstance, FromResolve, FromContainer).
//
//	container.Bind[Logger](c).To(container.TypeOf[*ConsoleLogger]()).AsSingleton()
//	container.Bind[Logger](c).WithID("audit").ToInstance(auditLog)
//	container.Bind[Store](c).WhenInjectedInto(container.TypeOf[*Reports]()).FromResolve(container.KeyOf[*ReplicaStore]())
type BindingBuilder[T any] struct {
	c    *Container
	key  Key
	cond Condition
	err  error
}

// ScopeBuilder chooses the lifetime of a constructed binding.
type ScopeBuilder[T any] struct {
	b BindingBuilder[T]
	p *Provider
}

// Bind starts a binding for capability T on c.
func Bind[T any](c *Container) BindingBuilder[T] {
	return BindingBuilder[T]{c: c, key: KeyOf[T]()}
}

// WithID sets the binding's identifier.
func (b BindingBuilder[T]) WithID(id string) BindingBuilder[T] {
	b.key.ID = id
	return b
}

// When restricts the binding to lookups matching cond.
func (b BindingBuilder[T]) When(cond Condition) BindingBuilder[T] {
	b.cond = cond
	return b
}

// WhenInjectedInto restricts the binding to lookups made while building one
// of types.
func (b BindingBuilder[T]) WhenInjectedInto(types ...reflect.Type) BindingBuilder[T] {
	return b.When(WhenInjectedInto(types...))
}

// To constructs concrete, which must be assignable to T, through the injector.
// args are passed as explicit arguments on every construction.
func (b BindingBuilder[T]) To(concrete reflect.Type, args ...any) ScopeBuilder[T] {
	if concrete != nil && !concrete.AssignableTo(b.key.Type) {
		b.err = newError(KindInvalidOperation, "bind", b.key, concrete.String()+" is not assignable")
	}
	return ScopeBuilder[T]{b: b, p: ConcreteProvider(concrete, args...)}
}

// ToSelf constructs T itself.
func (b BindingBuilder[T]) ToSelf(args ...any) ScopeBuilder[T] {
	return b.To(b.key.Type, args...)
}

// FromFactory uses factoryType's Create() (T, error). The factory is
// instantiated once, on first use, and reused.
func (b BindingBuilder[T]) FromFactory(factoryType reflect.Type) ScopeBuilder[T] {
	p := FactoryProvider(factoryType)
	if p.err == nil {
		m, _ := factoryType.MethodByName("Create")
		if out := m.Type.Out(0); !out.AssignableTo(b.key.Type) {
			b.err = newError(KindInvalidOperation, "bind", b.key, "factory creates "+out.String())
		}
	}
	return ScopeBuilder[T]{b: b, p: p}
}

// FromFactoryMethod calls fn for each instance.
func (b BindingBuilder[T]) FromFactoryMethod(fn func(ctx InjectContext) (T, error)) ScopeBuilder[T] {
	if fn == nil {
		return ScopeBuilder[T]{b: b, p: MethodProvider(nil)}
	}
	return ScopeBuilder[T]{b: b, p: MethodProvider(func(ctx InjectContext) (any, error) {
		return fn(ctx)
	})}
}

// FromSubContainerResolve resolves T from a child of c that is created on
// first use and populated by installers.
func (b BindingBuilder[T]) FromSubContainerResolve(installers ...Installer) ScopeBuilder[T] {
	return ScopeBuilder[T]{b: b, p: SubContainerProvider(NewSubContainerSource(installers...))}
}

// ToInstance binds a prebuilt value.
func (b BindingBuilder[T]) ToInstance(v T) error {
	return b.register(InstanceProvider(v))
}

// FromResolve forwards lookups of T to target, resolved through c.
func (b BindingBuilder[T]) FromResolve(target Key) error {
	if target.Type != nil && !target.Type.AssignableTo(b.key.Type) {
		return newError(KindInvalidOperation, "bind", b.key, target.Type.String()+" is not assignable")
	}
	if target == b.key {
		return newError(KindInvalidOperation, "bind", b.key, "binding resolves itself")
	}
	return b.register(ResolveProvider(target))
}

// FromContainer forwards lookups of T (with the same identifier) to source.
func (b BindingBuilder[T]) FromContainer(source *Container) error {
	return b.register(ContainerProvider(source, Key{}))
}

// AsSingleton binds T to itself as a singleton.
func (b BindingBuilder[T]) AsSingleton() error { return b.ToSelf().AsSingleton() }

// AsTransient binds T to itself, constructing it on every lookup.
func (b BindingBuilder[T]) AsTransient() error { return b.ToSelf().AsTransient() }

func (b BindingBuilder[T]) register(p *Provider) error {
	if b.c == nil {
		return invalidOp("bind", "nil container")
	}
	if b.err != nil {
		return b.err
	}
	return b.c.binder.Register(b.key, b.cond, p)
}

// AsSingleton registers the binding; the first instance is reused.
func (s ScopeBuilder[T]) AsSingleton() error {
	return s.b.register(Singleton(s.p))
}

// AsTransient registers the binding; every lookup produces a new instance.
func (s ScopeBuilder[T]) AsTransient() error {
	return s.b.register(Transient(s.p))
}
