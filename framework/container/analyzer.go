package container

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// tagName is the struct tag marking injectable members:
//
//	type Service struct {
//	    Log   Logger `inject:""`
//	    Audit Logger `inject:"audit"`
//	    Cache Cache  `inject:",optional"`
//	}
const tagName = "inject"

// Param annotates one positional constructor parameter.
type Param struct {
	ID       string
	Optional bool
}

// Dependency is a single thing a type needs from the container.
type Dependency struct {
	Type     reflect.Type
	ID       string
	Optional bool
}

// Key returns the lookup key of the dependency.
func (d Dependency) Key() Key { return Key{Type: d.Type, ID: d.ID} }

// Member is an injectable struct field.
type Member struct {
	Dependency
	Name  string
	Index []int
}

// Analysis is the cached shape of a concrete type: what its constructor takes
// and which fields are filled after construction. It holds no container state
// and is shared by every container in the process.
type Analysis struct {
	Type        reflect.Type
	Constructor reflect.Value
	Params      []Dependency
	Members     []Member

	returnsErr bool
	structType reflect.Type
}

// HasConstructor reports whether construction goes through a registered
// constructor rather than the zero value.
func (a *Analysis) HasConstructor() bool { return a.Constructor.IsValid() }

type constructorEntry struct {
	fn         reflect.Value
	params     []Dependency
	returnsErr bool
}

var (
	constructors sync.Map // reflect.Type -> *constructorEntry
	analyses     sync.Map // reflect.Type -> *Analysis
	analysisRuns atomic.Int64
	errorType    = reflect.TypeFor[error]()
)

// RegisterConstructor adds fn to the process-wide constructor table. fn must
// return T or (T, error), where T is the concrete type it builds. params
// annotate fn's parameters by position; missing entries mean "required, no id".
//
//	container.RegisterConstructor(NewWidget, container.Param{}, container.Param{ID: "fast"})
//
// Constructors must be registered before the type is first analyzed.
func RegisterConstructor(fn any, params ...Param) error {
	const op = "register constructor"
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return invalidOp(op, "constructor must be a non-nil function")
	}
	ft := v.Type()
	if ft.IsVariadic() {
		return invalidOp(op, "variadic constructors are not supported")
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return invalidOp(op, "constructor must return T or (T, error)")
	}
	out := ft.Out(0)
	if out.Kind() == reflect.Interface {
		return newError(KindInvalidOperation, op, Key{Type: out}, "constructor must return a concrete type")
	}
	if len(params) > ft.NumIn() {
		return newError(KindInvalidOperation, op, Key{Type: out}, "more parameter annotations than parameters")
	}

	entry := &constructorEntry{fn: v, returnsErr: ft.NumOut() == 2}
	for i := 0; i < ft.NumIn(); i++ {
		dep := Dependency{Type: ft.In(i)}
		if i < len(params) {
			dep.ID = params[i].ID
			dep.Optional = params[i].Optional
		}
		entry.params = append(entry.params, dep)
	}

	if _, analyzed := analyses.Load(out); analyzed {
		return newError(KindInvalidOperation, op, Key{Type: out}, "type was already analyzed")
	}
	if _, loaded := constructors.LoadOrStore(out, entry); loaded {
		return newError(KindAlreadyInstalled, op, Key{Type: out}, "constructor already registered")
	}
	return nil
}

// Analyze returns the dependency analysis for t, computing it on first use.
func Analyze(t reflect.Type) (*Analysis, error) {
	if t == nil {
		return nil, invalidOp("analyze", "nil type")
	}
	if cached, ok := analyses.Load(t); ok {
		return cached.(*Analysis), nil
	}
	a, err := analyze(t)
	if err != nil {
		return nil, err
	}
	actual, _ := analyses.LoadOrStore(t, a)
	return actual.(*Analysis), nil
}

func analyze(t reflect.Type) (*Analysis, error) {
	const op = "analyze"
	analysisRuns.Add(1)

	if t.Kind() == reflect.Interface {
		return nil, newError(KindAbstractType, op, Key{Type: t}, "interfaces cannot be constructed")
	}

	a := &Analysis{Type: t}
	if raw, ok := constructors.Load(t); ok {
		entry := raw.(*constructorEntry)
		a.Constructor = entry.fn
		a.Params = entry.params
		a.returnsErr = entry.returnsErr
	}

	switch {
	case t.Kind() == reflect.Struct:
		a.structType = t
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		a.structType = t.Elem()
	case !a.HasConstructor():
		return nil, newError(KindInvalidOperation, op, Key{Type: t}, "no constructor registered for non-struct type")
	}

	if a.structType == nil {
		return a, nil
	}
	for _, f := range reflect.VisibleFields(a.structType) {
		tag, ok := f.Tag.Lookup(tagName)
		if !ok {
			continue
		}
		if !f.IsExported() {
			return nil, newError(KindInvalidOperation, op, Key{Type: t}, "injectable field "+f.Name+" is unexported")
		}
		id, optional := parseTag(tag)
		a.Members = append(a.Members, Member{
			Dependency: Dependency{Type: f.Type, ID: id, Optional: optional},
			Name:       f.Name,
			Index:      f.Index,
		})
	}
	return a, nil
}

func parseTag(tag string) (id string, optional bool) {
	parts := strings.Split(tag, ",")
	id = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "optional" {
			optional = true
		}
	}
	return id, optional
}
