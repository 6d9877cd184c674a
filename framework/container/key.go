package container

import (
	"reflect"
	"strconv"
)

// Key identifies a capability: the requested type plus an optional identifier.
type Key struct {
	Type reflect.Type
	ID   string
}

// TypeOf returns the reflect.Type of T. Unlike reflect.TypeOf it works for
// interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// KeyOf builds the Key for T with an optional identifier.
//
//	container.KeyOf[Logger]()          // Logger
//	container.KeyOf[Logger]("audit")   // Logger("audit")
func KeyOf[T any](id ...string) Key {
	return Key{Type: TypeOf[T](), ID: firstID(id)}
}

func (k Key) String() string {
	name := "<nil>"
	if k.Type != nil {
		name = k.Type.String()
	}
	if k.ID == "" {
		return name
	}
	return name + "(" + strconv.Quote(k.ID) + ")"
}

// IsZero reports whether the key has no type.
func (k Key) IsZero() bool { return k.Type == nil }

func firstID(id []string) string {
	if len(id) == 0 {
		return ""
	}
	return id[0]
}
