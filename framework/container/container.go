package container

import (
	"fmt"
	"reflect"
	"weak"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the resolution facade. It owns one Binder, one Injector and
// one Extender for its whole life, keeps a strong reference to its parent
// and only weak references to its children.
//
// A Container is not safe for concurrent use; callers serialize every
// operation against one container tree.
type Container struct {
	id     string
	name   string
	parent *Container

	binder   *Binder
	injector *Injector
	extender *Extender

	children   []weak.Pointer[Container]
	spawned    int
	extensions []Extension

	installed      map[any]struct{}
	installedTypes map[reflect.Type]struct{}

	afterResolving     []func(Key, any)
	afterInstantiating []func(reflect.Type, any)

	base     *zap.Logger
	log      *zap.Logger
	disposed bool
}

// Option configures a container at construction.
type Option func(*Container)

// WithLogger sets the logger used for debug tracing. Children inherit it.
func WithLogger(l *zap.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.base = l
		}
	}
}

// WithName names the container in logs and manifests.
func WithName(name string) Option {
	return func(c *Container) {
		if name != "" {
			c.name = name
		}
	}
}

// New creates a root container.
func New(opts ...Option) *Container {
	return newContainer(nil, "root", opts)
}

func newContainer(parent *Container, name string, opts []Option) *Container {
	c := &Container{
		id:             uuid.NewString(),
		name:           name,
		parent:         parent,
		installed:      make(map[any]struct{}),
		installedTypes: make(map[reflect.Type]struct{}),
		base:           zap.NewNop(),
	}
	var parentBinder *Binder
	var parentExtender *Extender
	if parent != nil {
		c.base = parent.base
		parentBinder = parent.binder
		parentExtender = parent.extender
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.base.With(zap.String("container", c.name), zap.String("container_id", c.id))
	c.binder = newBinder(c, parentBinder)
	c.injector = &Injector{container: c}
	c.extender = newExtender(c, parentExtender)

	// Bind the container to itself so types can depend on it.
	_ = c.binder.Register(KeyOf[*Container](), Condition{}, InstanceProvider(c))
	_ = c.binder.Register(KeyOf[*Binder](), Condition{}, InstanceProvider(c.binder))
	_ = c.binder.Register(KeyOf[*Injector](), Condition{}, InstanceProvider(c.injector))
	return c
}

// ID is a random identifier used to correlate log lines.
func (c *Container) ID() string { return c.id }

// Name returns the container's name.
func (c *Container) Name() string { return c.name }

// Parent returns the parent container, or nil for a root.
func (c *Container) Parent() *Container { return c.parent }

// Binder returns the container's binding table.
func (c *Container) Binder() *Binder { return c.binder }

// Injector returns the container's injector.
func (c *Container) Injector() *Injector { return c.injector }

// Extender returns the container's extension registry.
func (c *Container) Extender() *Extender { return c.extender }

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.log }

// Disposed reports whether Dispose has been called.
func (c *Container) Disposed() bool { return c.disposed }

// ── Resolution ────────────────────────────────────────────────────────────────

// ResolveKey resolves key, failing with NotRegistered when no container in
// the ancestor chain binds it.
func (c *Container) ResolveKey(key Key) (any, error) {
	return c.mustResolve("resolve", key, nil, false)
}

// TryResolveKey is ResolveKey that reports a miss as ok == false.
// Errors are returned only when a binding exists but fails to produce.
func (c *Container) TryResolveKey(key Key) (instance any, ok bool, err error) {
	return c.resolve(key, nil)
}

// Has reports whether key is bound here or on an ancestor.
func (c *Container) Has(key Key) bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.binder.Has(key) {
			return true
		}
	}
	return false
}

func (c *Container) resolve(key Key, requester reflect.Type) (any, bool, error) {
	return c.resolveWith(key, requester, false)
}

func (c *Container) resolveWith(key Key, requester reflect.Type, local bool) (any, bool, error) {
	if err := c.checkAlive("resolve"); err != nil {
		return nil, false, err
	}
	if key.Type == nil {
		return nil, false, invalidOp("resolve", "nil capability type")
	}
	ctx := InjectContext{Container: c, Key: key, Requester: requester}

	var p *Provider
	if local {
		p = c.binder.lookupLocal(key, ctx)
	} else {
		var err error
		if p, err = c.binder.TryResolve(key, ctx); err != nil {
			return nil, false, err
		}
	}
	if p == nil {
		return nil, false, nil
	}

	v, err := p.get(ctx)
	if err != nil {
		c.log.Debug("resolve failed", zap.Stringer("key", key), zap.Error(err))
		return nil, true, err
	}
	for _, cb := range c.afterResolving {
		cb(key, v)
	}
	return v, true, nil
}

func (c *Container) mustResolve(op string, key Key, requester reflect.Type, local bool) (any, error) {
	v, found, err := c.resolveWith(key, requester, local)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &Error{Kind: KindNotRegistered, Op: op, Key: key, Requester: requester}
	}
	return v, nil
}

// InstantiateType constructs t with this container as resolution context.
func (c *Container) InstantiateType(t reflect.Type, args ...any) (any, error) {
	return c.injector.Instantiate(t, args...)
}

// Inject fills the injectable members of an existing *struct.
func (c *Container) Inject(instance any, args ...any) error {
	return c.injector.Inject(instance, args...)
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve resolves T (optionally by identifier) from c.
//
//	log, err := container.Resolve[Logger](c)
//	audit, err := container.Resolve[Logger](c, "audit")
func Resolve[T any](c *Container, id ...string) (T, error) {
	key := KeyOf[T](id...)
	v, err := c.ResolveKey(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v, key)
}

// TryResolve is Resolve that reports a miss as ok == false instead of an error.
func TryResolve[T any](c *Container, id ...string) (T, bool, error) {
	var zero T
	key := KeyOf[T](id...)
	v, ok, err := c.TryResolveKey(key)
	if err != nil || !ok {
		return zero, ok, err
	}
	typed, err := cast[T](v, key)
	if err != nil {
		return zero, true, err
	}
	return typed, true, nil
}

// MustResolve is Resolve that panics on failure. Use it during startup only.
func MustResolve[T any](c *Container, id ...string) T {
	v, err := Resolve[T](c, id...)
	if err != nil {
		panic(err)
	}
	return v
}

// Instantiate constructs T with c as resolution context.
func Instantiate[T any](c *Container, args ...any) (T, error) {
	var zero T
	t := TypeOf[T]()
	v, err := c.injector.Instantiate(t, args...)
	if err != nil {
		return zero, err
	}
	return cast[T](v, Key{Type: t})
}

func cast[T any](v any, key Key) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, newError(KindInvalidOperation, "resolve", key, fmt.Sprintf("resolved %T", v))
	}
	return typed, nil
}

// ── Hierarchy ─────────────────────────────────────────────────────────────────

// CreateSubContainer creates a child whose lookups fall back to c. The child
// receives every extension installed on c, in installation order.
func (c *Container) CreateSubContainer(opts ...Option) (*Container, error) {
	if err := c.checkAlive("create sub-container"); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s.%d", c.name, c.spawned)
	c.spawned++
	child := newContainer(c, name, opts)
	c.prune()
	c.children = append(c.children, weak.Make(child))

	if err := c.replay(child); err != nil {
		return nil, multierr.Append(err, child.Dispose())
	}
	c.log.Debug("sub-container created", zap.String("child", child.name), zap.String("child_id", child.id))
	return child, nil
}

func (c *Container) replay(child *Container) error {
	for _, ext := range c.extensions {
		if err := child.Extend(ext); err != nil {
			return err
		}
	}
	return c.extender.Extend(child)
}

// Children returns the live children. Collected or disposed children are
// pruned from the bookkeeping.
func (c *Container) Children() []*Container {
	return c.prune()
}

func (c *Container) prune() []*Container {
	live := make([]*Container, 0, len(c.children))
	kept := c.children[:0]
	for _, wp := range c.children {
		child := wp.Value()
		if child == nil || child.disposed {
			continue
		}
		kept = append(kept, wp)
		live = append(live, child)
	}
	clear(c.children[len(kept):])
	c.children = kept
	return live
}

// ── Extensions ────────────────────────────────────────────────────────────────

// Extension is a cross-cutting add-on. Extend is called once for every
// container of the subtree the extension is installed on, including
// children created later. Extensions are told apart by identity, so they
// must be pointers or comparable values without interface fields.
type Extension interface {
	Extend(c *Container) error
}

// Extend installs ext on c and on every live descendant.
func (c *Container) Extend(ext Extension) error {
	const op = "extend"
	if ext == nil {
		return invalidOp(op, "nil extension")
	}
	if err := c.checkAlive(op); err != nil {
		return err
	}
	if _, ok := identity(ext); !ok {
		return newError(KindInvalidOperation, op, Key{Type: reflect.TypeOf(ext)}, "extension has no identity; pass a pointer")
	}
	if c.hasExtension(ext) {
		return newError(KindAlreadyInstalled, op, Key{Type: reflect.TypeOf(ext)}, "extension already installed")
	}
	if err := ext.Extend(c); err != nil {
		if _, ok := err.(*Error); ok {
			return err
		}
		return &Error{Kind: KindInvalidOperation, Op: op, Key: Key{Type: reflect.TypeOf(ext)}, Reason: "extension failed", Err: err}
	}
	c.extensions = append(c.extensions, ext)
	c.log.Debug("extended", zapType("extension", reflect.TypeOf(ext)))

	for _, child := range c.Children() {
		if child.hasExtension(ext) {
			continue
		}
		if err := child.Extend(ext); err != nil {
			return err
		}
	}
	return nil
}

// Extensions returns the installed extensions in installation order.
func (c *Container) Extensions() []Extension {
	return append([]Extension(nil), c.extensions...)
}

func (c *Container) hasExtension(ext Extension) bool {
	id, _ := identity(ext)
	for _, e := range c.extensions {
		if other, _ := identity(e); reflect.TypeOf(e) == reflect.TypeOf(ext) && other == id {
			return true
		}
	}
	return false
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// AfterResolving registers cb, fired after every successful lookup made
// through this container.
func (c *Container) AfterResolving(cb func(key Key, instance any)) {
	c.afterResolving = append(c.afterResolving, cb)
}

// AfterInstantiating registers cb, fired after this container's Injector
// builds an instance.
func (c *Container) AfterInstantiating(cb func(t reflect.Type, instance any)) {
	c.afterInstantiating = append(c.afterInstantiating, cb)
}

func (c *Container) fireInstantiated(t reflect.Type, v reflect.Value) {
	if len(c.afterInstantiating) == 0 {
		return
	}
	instance := v.Interface()
	for _, cb := range c.afterInstantiating {
		cb(t, instance)
	}
}

// ── Lifetime ──────────────────────────────────────────────────────────────────

// Dispose releases the container's extensions and refuses further use.
// Children are not disposed; their lookups that reach c fail afterwards.
// Dispose is idempotent.
func (c *Container) Dispose() error {
	if c.disposed {
		return nil
	}
	c.disposed = true
	err := c.extender.Dispose()
	c.log.Debug("disposed")
	return err
}

func (c *Container) checkAlive(op string) error {
	if c.disposed {
		return invalidOp(op, "container "+c.name+" is disposed")
	}
	return nil
}

func zapType(field string, t reflect.Type) zap.Field {
	if t == nil {
		return zap.String(field, "<nil>")
	}
	return zap.Stringer(field, t)
}
