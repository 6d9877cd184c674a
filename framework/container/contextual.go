package container

import (
	"reflect"
	"strings"
)

// InjectContext describes one lookup: which container is asking, for what,
// and on behalf of which type.
type InjectContext struct {
	Container *Container
	Key       Key
	// Requester is the type whose constructor or members are being filled.
	// It is nil for a top-level Resolve call.
	Requester reflect.Type
}

// Condition restricts a binding to the lookups it accepts.
//
// Conditions take part in a binding's identity by name: two bindings for the
// same key with equally named conditions are duplicates.
type Condition struct {
	name  string
	match func(InjectContext) bool
}

// NewCondition names an arbitrary predicate.
//
//	debugOnly := container.NewCondition("debug", func(ctx container.InjectContext) bool {
//	    return cfg.App.Env == "local"
//	})
//	container.Bind[Mailer](c).When(debugOnly).To(container.TypeOf[*LogMailer]()).AsSingleton()
func NewCondition(name string, match func(InjectContext) bool) Condition {
	return Condition{name: name, match: match}
}

// WhenInjectedInto matches lookups made while constructing one of types.
// Pointer and value forms of the same struct are treated alike.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(S3::class)
//	container.Bind[Filesystem](c).
//	    When(container.WhenInjectedInto(container.TypeOf[*PhotoController]())).
//	    To(container.TypeOf[*S3]()).AsSingleton()
func WhenInjectedInto(types ...reflect.Type) Condition {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	set := append([]reflect.Type(nil), types...)
	return Condition{
		name: "injectedInto(" + strings.Join(names, ",") + ")",
		match: func(ctx InjectContext) bool {
			if ctx.Requester == nil {
				return false
			}
			for _, t := range set {
				if sameShape(t, ctx.Requester) {
					return true
				}
			}
			return false
		},
	}
}

// Name returns the condition's identity.
func (c Condition) Name() string { return c.name }

// IsZero reports whether this is the unconditioned match-all condition.
func (c Condition) IsZero() bool { return c.match == nil && c.name == "" }

func (c Condition) matches(ctx InjectContext) bool {
	if c.match == nil {
		return true
	}
	return c.match(ctx)
}

func sameShape(a, b reflect.Type) bool {
	if a == b {
		return true
	}
	if a.Kind() == reflect.Pointer && a.Elem() == b {
		return true
	}
	return b.Kind() == reflect.Pointer && b.Elem() == a
}
