package container

import (
	"io"
	"reflect"

	"go.uber.org/multierr"
)

type extensionEntry struct {
	kind     reflect.Type
	instance any
	build    func(owner *Container, parent any, inherited bool) (any, error)
}

// Extender keeps one instance per extension kind for its container. A kind
// installed on an ancestor seeds the instance built at each lower level; the
// levels never share an instance.
type Extender struct {
	owner    *Container
	parent   *Extender
	entries  []*extensionEntry
	byKind   map[reflect.Type]*extensionEntry
	disposed bool
}

func newExtender(owner *Container, parent *Extender) *Extender {
	return &Extender{
		owner:  owner,
		parent: parent,
		byKind: make(map[reflect.Type]*extensionEntry),
	}
}

// InstallExtension builds the T extension for e's container and for every
// live descendant that does not have one yet. build receives the nearest
// ancestor's instance when inherited is true.
//
//	col, err := container.InstallExtension(c.Extender(),
//	    func(owner *container.Container, parent *Collector, inherited bool) (*Collector, error) {
//	        if inherited {
//	            return parent.Child(owner), nil
//	        }
//	        return NewCollector(owner), nil
//	    })
func InstallExtension[T any](e *Extender, build func(owner *Container, parent T, inherited bool) (T, error)) (T, error) {
	var zero T
	if build == nil {
		return zero, invalidOp("install extension", "nil extension builder")
	}
	raw := func(owner *Container, parent any, inherited bool) (any, error) {
		var p T
		if inherited {
			p, _ = parent.(T)
		}
		return build(owner, p, inherited)
	}
	kind := TypeOf[T]()
	seed, inherited := e.inherited(kind)
	v, err := e.install(kind, raw, seed, inherited)
	if err != nil {
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

// TryGetExtension returns this level's T extension.
func TryGetExtension[T any](e *Extender) (T, bool) {
	en, ok := e.byKind[TypeOf[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := en.instance.(T)
	return typed, ok
}

// Kinds lists installed kinds in installation order.
func (e *Extender) Kinds() []reflect.Type {
	kinds := make([]reflect.Type, len(e.entries))
	for i, en := range e.entries {
		kinds[i] = en.kind
	}
	return kinds
}

// Has reports whether kind is installed at this level.
func (e *Extender) Has(kind reflect.Type) bool {
	_, ok := e.byKind[kind]
	return ok
}

// Extend re-applies every kind installed here onto c, seeding each new
// instance with this level's. Kinds c already has are left alone.
func (e *Extender) Extend(c *Container) error {
	if c == nil {
		return invalidOp("extend", "nil container")
	}
	for _, en := range e.entries {
		if c.extender.Has(en.kind) {
			continue
		}
		if _, err := c.extender.install(en.kind, en.build, en.instance, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extender) install(kind reflect.Type, build func(*Container, any, bool) (any, error), seed any, inherited bool) (any, error) {
	const op = "install extension"
	if e.disposed {
		return nil, newError(KindInvalidOperation, op, Key{Type: kind}, "extender is disposed")
	}
	if err := e.owner.checkAlive(op); err != nil {
		return nil, err
	}
	if e.Has(kind) {
		return nil, newError(KindAlreadyInstalled, op, Key{Type: kind}, "extension kind already installed")
	}
	v, err := build(e.owner, seed, inherited)
	if err != nil {
		return nil, &Error{Kind: KindInvalidOperation, Op: op, Key: Key{Type: kind}, Reason: "extension builder failed", Err: err}
	}
	en := &extensionEntry{kind: kind, instance: v, build: build}
	e.entries = append(e.entries, en)
	e.byKind[kind] = en
	e.owner.log.Debug("extension installed", zapType("kind", kind))

	for _, child := range e.owner.Children() {
		if child.extender.Has(kind) {
			continue
		}
		if _, err := child.extender.install(kind, build, v, true); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (e *Extender) inherited(kind reflect.Type) (any, bool) {
	for p := e.parent; p != nil; p = p.parent {
		if en, ok := p.byKind[kind]; ok {
			return en.instance, true
		}
	}
	return nil, false
}

// Dispose closes every installed extension that implements io.Closer.
// It is idempotent.
func (e *Extender) Dispose() error {
	if e.disposed {
		return nil
	}
	e.disposed = true
	var err error
	for _, en := range e.entries {
		if closer, ok := en.instance.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	return err
}
