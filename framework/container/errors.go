package container

import (
	"errors"
	"reflect"
	"strings"
)

// ErrorKind classifies container failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindDuplicateBinding
	KindNotRegistered
	KindAbstractType
	KindDependencyNotRegistered
	KindAlreadyInstalled
	KindInvalidOperation
)

func (k ErrorKind) String() string {
	switch k {
	case KindDuplicateBinding:
		return "duplicate binding"
	case KindNotRegistered:
		return "not registered"
	case KindAbstractType:
		return "abstract type"
	case KindDependencyNotRegistered:
		return "dependency not registered"
	case KindAlreadyInstalled:
		return "already installed"
	case KindInvalidOperation:
		return "invalid operation"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrDuplicateBinding        = &Error{Kind: KindDuplicateBinding}
	ErrNotRegistered           = &Error{Kind: KindNotRegistered}
	ErrAbstractType            = &Error{Kind: KindAbstractType}
	ErrDependencyNotRegistered = &Error{Kind: KindDependencyNotRegistered}
	ErrAlreadyInstalled        = &Error{Kind: KindAlreadyInstalled}
	ErrInvalidOperation        = &Error{Kind: KindInvalidOperation}
)

// Error is the typed failure returned by every container operation.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed ("resolve", "instantiate", "bind", ...).
	Op string
	// Key is the capability being registered or resolved, if any.
	Key Key
	// Requester is the type being constructed when a dependency lookup failed.
	Requester reflect.Type
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("container: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Key.Type != nil {
		b.WriteString(" [")
		b.WriteString(e.Key.String())
		b.WriteString("]")
	}
	if e.Requester != nil {
		b.WriteString(" required by ")
		b.WriteString(e.Requester.String())
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != KindUnknown && e.Kind == t.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, op string, key Key, reason string) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Reason: reason}
}

func invalidOp(op, reason string) *Error {
	return &Error{Kind: KindInvalidOperation, Op: op, Reason: reason}
}
