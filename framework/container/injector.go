package container

import (
	"reflect"

	"go.uber.org/zap"
)

// Injector builds instances from their Analysis, resolving each dependency
// through its owning container unless an explicit argument supplies it.
type Injector struct {
	container *Container
}

// Container returns the container dependencies are resolved from.
func (inj *Injector) Container() *Container { return inj.container }

// Instantiate constructs t and fills its injectable members.
// The result is discarded if any step fails.
func (inj *Injector) Instantiate(t reflect.Type, args ...any) (any, error) {
	v, err := inj.instantiate(t, args)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Inject fills the injectable members of an existing *struct.
func (inj *Injector) Inject(instance any, args ...any) error {
	const op = "inject"
	v := reflect.ValueOf(instance)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return invalidOp(op, "inject target must be a non-nil pointer to a struct")
	}
	if err := inj.container.checkAlive(op); err != nil {
		return err
	}
	a, err := Analyze(v.Type())
	if err != nil {
		return err
	}
	explicit, err := newArgSet(op, args)
	if err != nil {
		return err
	}
	return inj.injectMembers(op, a, v.Elem(), explicit)
}

func (inj *Injector) instantiate(t reflect.Type, args []any) (reflect.Value, error) {
	const op = "instantiate"
	if t == nil {
		return reflect.Value{}, invalidOp(op, "nil type")
	}
	if t.Kind() == reflect.Interface {
		return reflect.Value{}, newError(KindAbstractType, op, Key{Type: t}, "interfaces cannot be constructed")
	}
	if err := inj.container.checkAlive(op); err != nil {
		return reflect.Value{}, err
	}
	a, err := Analyze(t)
	if err != nil {
		return reflect.Value{}, err
	}
	explicit, err := newArgSet(op, args)
	if err != nil {
		return reflect.Value{}, err
	}

	var v reflect.Value
	if a.HasConstructor() {
		in := make([]reflect.Value, len(a.Params))
		for i, p := range a.Params {
			if in[i], err = inj.fill(op, p, t, explicit); err != nil {
				return reflect.Value{}, err
			}
		}
		out := a.Constructor.Call(in)
		if a.returnsErr && !out[1].IsNil() {
			return reflect.Value{}, &Error{
				Kind:   KindInvalidOperation,
				Op:     op,
				Key:    Key{Type: t},
				Reason: "constructor failed",
				Err:    out[1].Interface().(error),
			}
		}
		v = out[0]
	} else {
		ptr := reflect.New(a.structType)
		if t.Kind() == reflect.Pointer {
			v = ptr
		} else {
			v = ptr.Elem()
		}
	}

	if len(a.Members) > 0 {
		switch {
		case t.Kind() == reflect.Pointer:
			if v.IsNil() {
				return reflect.Value{}, newError(KindInvalidOperation, op, Key{Type: t}, "constructor returned nil")
			}
			err = inj.injectMembers(op, a, v.Elem(), explicit)
		default:
			target := reflect.New(t).Elem()
			target.Set(v)
			err = inj.injectMembers(op, a, target, explicit)
			v = target
		}
		if err != nil {
			return reflect.Value{}, err
		}
	}

	inj.container.log.Debug("instantiated",
		zap.Stringer("type", t),
		zap.Int("params", len(a.Params)),
		zap.Int("members", len(a.Members)),
	)
	inj.container.fireInstantiated(t, v)
	return v, nil
}

func (inj *Injector) injectMembers(op string, a *Analysis, target reflect.Value, explicit *argSet) error {
	for _, m := range a.Members {
		val, err := inj.fill(op, m.Dependency, a.Type, explicit)
		if err != nil {
			return err
		}
		field, ferr := target.FieldByIndexErr(m.Index)
		if ferr != nil {
			return &Error{Kind: KindInvalidOperation, Op: op, Key: m.Key(), Requester: a.Type, Reason: "field " + m.Name + " is unreachable", Err: ferr}
		}
		field.Set(val)
	}
	return nil
}

func (inj *Injector) fill(op string, dep Dependency, requester reflect.Type, explicit *argSet) (reflect.Value, error) {
	if val, ok := explicit.take(dep); ok {
		return val, nil
	}
	instance, found, err := inj.container.resolve(dep.Key(), requester)
	if err != nil {
		return reflect.Value{}, err
	}
	if !found {
		if dep.Optional {
			return reflect.Zero(dep.Type), nil
		}
		return reflect.Value{}, &Error{Kind: KindDependencyNotRegistered, Op: op, Key: dep.Key(), Requester: requester}
	}
	return valueOf(instance, dep.Type, op, requester)
}

// valueOf converts a resolved instance to a value assignable to t.
func valueOf(instance any, t reflect.Type, op string, requester reflect.Type) (reflect.Value, error) {
	if instance == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, &Error{Kind: KindInvalidOperation, Op: op, Key: Key{Type: t}, Requester: requester, Reason: "resolved nil for a non-nillable type"}
	}
	v := reflect.ValueOf(instance)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, &Error{Kind: KindInvalidOperation, Op: op, Key: Key{Type: t}, Requester: requester, Reason: "resolved " + v.Type().String()}
	}
	return v, nil
}
