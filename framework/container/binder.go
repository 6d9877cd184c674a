package container

import (
	"go.uber.org/zap"
)

type binding struct {
	cond     Condition
	provider *Provider
}

// Binder is the binding table of one container. Lookups that miss fall back
// to the parent container's Binder.
type Binder struct {
	owner    *Container
	parent   *Binder
	bindings map[Key][]*binding
	order    []Key
}

func newBinder(owner *Container, parent *Binder) *Binder {
	return &Binder{
		owner:    owner,
		parent:   parent,
		bindings: make(map[Key][]*binding),
	}
}

// Parent returns the fallback Binder, or nil at the root.
func (b *Binder) Parent() *Binder { return b.parent }

// Register adds a binding for (key, cond). A binding with the same key and
// an equally named condition is a DuplicateBinding; nothing is overwritten.
func (b *Binder) Register(key Key, cond Condition, p *Provider) error {
	const op = "bind"
	switch {
	case key.Type == nil:
		return invalidOp(op, "nil capability type")
	case p == nil:
		return newError(KindInvalidOperation, op, key, "nil provider")
	case p.err != nil:
		return withKey(p.err, key)
	case p.owner != nil:
		return newError(KindInvalidOperation, op, key, "provider is already registered")
	case cond.name == "" && cond.match != nil:
		return newError(KindInvalidOperation, op, key, "conditions must be named")
	case cond.name != "" && cond.match == nil:
		return newError(KindInvalidOperation, op, key, "condition "+cond.name+" has no predicate")
	}
	if err := b.owner.checkAlive(op); err != nil {
		return err
	}

	existing := b.bindings[key]
	for _, bd := range existing {
		if bd.cond.name == cond.name {
			reason := "unconditioned binding exists"
			if cond.name != "" {
				reason = "condition " + cond.name + " exists"
			}
			return newError(KindDuplicateBinding, op, key, reason)
		}
	}
	if len(existing) == 0 {
		b.order = append(b.order, key)
	}
	p.attach(b.owner)
	b.bindings[key] = append(existing, &binding{cond: cond, provider: p})

	b.owner.log.Debug("bound",
		zap.Stringer("key", key),
		zap.String("provider", p.Kind()),
		zap.String("condition", cond.name),
	)
	return nil
}

// TryResolve finds the provider for key, walking up the parent chain.
// It returns (nil, nil) on a miss.
func (b *Binder) TryResolve(key Key, ctx InjectContext) (*Provider, error) {
	for cur := b; cur != nil; cur = cur.parent {
		if cur != b && cur.owner.disposed {
			return nil, newError(KindInvalidOperation, "resolve", key, "parent container is disposed")
		}
		if p := cur.lookupLocal(key, ctx); p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// lookupLocal prefers a matching conditioned binding over the unconditioned one.
func (b *Binder) lookupLocal(key Key, ctx InjectContext) *Provider {
	var fallback *Provider
	for _, bd := range b.bindings[key] {
		if bd.cond.match == nil {
			fallback = bd.provider
			continue
		}
		if bd.cond.matches(ctx) {
			return bd.provider
		}
	}
	return fallback
}

// Has reports whether key has any local binding.
func (b *Binder) Has(key Key) bool {
	return len(b.bindings[key]) > 0
}

// Keys lists locally bound keys in registration order.
func (b *Binder) Keys() []Key {
	return append([]Key(nil), b.order...)
}

func withKey(err error, key Key) error {
	if e, ok := err.(*Error); ok && e.Key.Type == nil {
		cp := *e
		cp.Key = key
		return &cp
	}
	return err
}
