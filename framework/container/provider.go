package container

import (
	"reflect"
)

type providerKind uint8

const (
	providerInstance providerKind = iota + 1
	providerConcrete
	providerMethod
	providerFactory
	providerResolve
	providerContainer
	providerSubContainer
	providerTransient
	providerSingleton
)

func (k providerKind) String() string {
	switch k {
	case providerInstance:
		return "instance"
	case providerConcrete:
		return "concrete"
	case providerMethod:
		return "method"
	case providerFactory:
		return "factory"
	case providerResolve:
		return "resolve"
	case providerContainer:
		return "container"
	case providerSubContainer:
		return "subcontainer"
	case providerTransient:
		return "transient"
	case providerSingleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// Provider produces the instance behind a binding. It is a closed set of
// variants built by the constructors below; the variant never changes once
// the provider is registered.
type Provider struct {
	kind  providerKind
	owner *Container
	err   error

	instance any

	concrete reflect.Type
	args     []any

	method func(InjectContext) (any, error)

	factoryType reflect.Type
	create      reflect.Value

	target Key
	source *Container
	sub    *SubContainerSource

	inner    *Provider
	cached   any
	resolved bool
}

// InstanceProvider always returns v.
func InstanceProvider(v any) *Provider {
	return &Provider{kind: providerInstance, instance: v}
}

// ConcreteProvider constructs t through the owning container's Injector.
func ConcreteProvider(t reflect.Type, args ...any) *Provider {
	p := &Provider{kind: providerConcrete, concrete: t, args: args}
	switch {
	case t == nil:
		p.err = invalidOp("bind", "nil concrete type")
	case t.Kind() == reflect.Interface:
		p.err = newError(KindAbstractType, "bind", Key{Type: t}, "interfaces cannot be constructed")
	}
	return p
}

// MethodProvider calls fn with the lookup context.
func MethodProvider(fn func(InjectContext) (any, error)) *Provider {
	p := &Provider{kind: providerMethod, method: fn}
	if fn == nil {
		p.err = invalidOp("bind", "nil factory method")
	}
	return p
}

// FactoryProvider instantiates factoryType once, on first use, and calls its
// Create() (T, error) method for every instance.
func FactoryProvider(factoryType reflect.Type) *Provider {
	p := &Provider{kind: providerFactory, factoryType: factoryType}
	if factoryType == nil {
		p.err = invalidOp("bind", "nil factory type")
		return p
	}
	m, ok := factoryType.MethodByName("Create")
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 2 || m.Type.Out(1) != errorType {
		p.err = newError(KindInvalidOperation, "bind", Key{Type: factoryType}, "factory must have method Create() (T, error)")
	}
	return p
}

// ResolveProvider re-resolves target through the owning container.
func ResolveProvider(target Key) *Provider {
	p := &Provider{kind: providerResolve, target: target}
	if target.Type == nil {
		p.err = invalidOp("bind", "nil resolve target")
	}
	return p
}

// ContainerProvider delegates the lookup to source. A zero target means the
// key being resolved.
func ContainerProvider(source *Container, target Key) *Provider {
	p := &Provider{kind: providerContainer, source: source, target: target}
	if source == nil {
		p.err = invalidOp("bind", "nil source container")
	}
	return p
}

// SubContainerProvider resolves the requested key from the sub-container
// built by src.
func SubContainerProvider(src *SubContainerSource) *Provider {
	p := &Provider{kind: providerSubContainer, sub: src}
	if src == nil {
		p.err = invalidOp("bind", "nil sub-container source")
	}
	return p
}

// Transient runs inner on every lookup.
func Transient(inner *Provider) *Provider {
	return wrap(providerTransient, inner)
}

// Singleton runs inner once and returns that instance afterwards. Failures
// are not memoized.
func Singleton(inner *Provider) *Provider {
	return wrap(providerSingleton, inner)
}

func wrap(kind providerKind, inner *Provider) *Provider {
	p := &Provider{kind: kind, inner: inner}
	switch {
	case inner == nil:
		p.err = invalidOp("bind", "nil inner provider")
	case inner.kind == providerTransient || inner.kind == providerSingleton:
		p.err = invalidOp("bind", "scope already chosen")
	case inner.owner != nil:
		p.err = invalidOp("bind", "provider is already registered")
	default:
		p.err = inner.err
	}
	return p
}

// Kind names the provider variant, e.g. "singleton".
func (p *Provider) Kind() string { return p.kind.String() }

// Inner returns the wrapped provider of a transient or singleton provider.
func (p *Provider) Inner() *Provider { return p.inner }

func (p *Provider) attach(owner *Container) {
	p.owner = owner
	if p.inner != nil {
		p.inner.attach(owner)
	}
}

func (p *Provider) get(ctx InjectContext) (any, error) {
	switch p.kind {
	case providerInstance:
		return p.instance, nil

	case providerConcrete:
		return p.owner.injector.Instantiate(p.concrete, p.args...)

	case providerMethod:
		return p.method(InjectContext{Container: p.owner, Key: ctx.Key, Requester: ctx.Requester})

	case providerFactory:
		if !p.create.IsValid() {
			f, err := p.owner.injector.instantiate(p.factoryType, nil)
			if err != nil {
				return nil, err
			}
			p.create = f.MethodByName("Create")
		}
		out := p.create.Call(nil)
		if !out[1].IsNil() {
			return nil, &Error{Kind: KindInvalidOperation, Op: "create", Key: ctx.Key, Reason: "factory failed", Err: out[1].Interface().(error)}
		}
		return out[0].Interface(), nil

	case providerResolve:
		return p.owner.mustResolve("from resolve", p.target, ctx.Requester, false)

	case providerContainer:
		target := p.target
		if target.IsZero() {
			target = ctx.Key
		}
		return p.source.mustResolve("from container", target, ctx.Requester, false)

	case providerSubContainer:
		sub, err := p.sub.container(p.owner)
		if err != nil {
			return nil, err
		}
		return sub.mustResolve("from sub-container", ctx.Key, ctx.Requester, true)

	case providerTransient:
		return p.inner.get(ctx)

	case providerSingleton:
		if p.resolved {
			return p.cached, nil
		}
		v, err := p.inner.get(ctx)
		if err != nil {
			return nil, err
		}
		p.cached, p.resolved = v, true
		return v, nil
	}
	return nil, invalidOp("provide", "unknown provider kind")
}

// SubContainerSource lazily builds one child of the binding's container and
// installs installers into it. Several providers may share one source.
type SubContainerSource struct {
	installers []Installer
	built      *Container
}

// NewSubContainerSource prepares a source; nothing is built until first use.
func NewSubContainerSource(installers ...Installer) *SubContainerSource {
	return &SubContainerSource{installers: installers}
}

// Container returns the built sub-container, or nil before first use.
func (s *SubContainerSource) Container() *Container { return s.built }

func (s *SubContainerSource) container(owner *Container) (*Container, error) {
	if s.built != nil {
		return s.built, nil
	}
	sub, err := owner.CreateSubContainer()
	if err != nil {
		return nil, err
	}
	for _, inst := range s.installers {
		if err := sub.Install(inst); err != nil {
			sub.Dispose()
			return nil, err
		}
	}
	s.built = sub
	return sub, nil
}
