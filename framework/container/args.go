package container

import "reflect"

// TypedValue is an explicit argument with a declared type and identifier.
// Plain values passed to Instantiate or Inject are wrapped with their dynamic
// type and no identifier.
type TypedValue struct {
	Type  reflect.Type
	ID    string
	Value any
}

// Arg declares v as a T, e.g. to satisfy an interface-typed parameter.
//
//	c.InstantiateType(t, container.Arg[Logger](&ConsoleLogger{}))
func Arg[T any](v T) TypedValue {
	return TypedValue{Type: TypeOf[T](), Value: v}
}

// NamedArg supplies v for dependencies of v's dynamic type tagged with id.
func NamedArg(id string, v any) TypedValue {
	return TypedValue{Type: reflect.TypeOf(v), ID: id, Value: v}
}

// NamedArgOf is NamedArg with an explicit type.
func NamedArgOf[T any](id string, v T) TypedValue {
	return TypedValue{Type: TypeOf[T](), ID: id, Value: v}
}

// argSet hands out explicit arguments; each one fills at most one slot.
type argSet struct {
	values []TypedValue
	used   []bool
}

func newArgSet(op string, args []any) (*argSet, error) {
	s := &argSet{values: make([]TypedValue, 0, len(args))}
	for _, raw := range args {
		switch v := raw.(type) {
		case TypedValue:
			if v.Type == nil {
				return nil, invalidOp(op, "typed argument without a type")
			}
			s.values = append(s.values, v)
		case *TypedValue:
			if v == nil || v.Type == nil {
				return nil, invalidOp(op, "typed argument without a type")
			}
			s.values = append(s.values, *v)
		case nil:
			return nil, invalidOp(op, "untyped nil argument; use container.Arg")
		default:
			s.values = append(s.values, TypedValue{Type: reflect.TypeOf(raw), Value: raw})
		}
	}
	s.used = make([]bool, len(s.values))
	return s, nil
}

func (s *argSet) take(d Dependency) (reflect.Value, bool) {
	for i, v := range s.values {
		if s.used[i] || v.Type != d.Type || v.ID != d.ID {
			continue
		}
		s.used[i] = true
		if v.Value == nil {
			return reflect.Zero(v.Type), true
		}
		return reflect.ValueOf(v.Value), true
	}
	return reflect.Value{}, false
}
