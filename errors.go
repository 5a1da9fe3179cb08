package slirc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind names a logical failure kind surfaced across the core.
//
// Kind values are comparable with errors.Is through the Kind-only
// sentinels below: errors.Is(err, slirc.ErrNotFound) is true for any
// *Error whose Kind is NotFound, regardless of message.
type Kind int

const (
	// AlreadyConnected is reserved for connection-module preconditions; the
	// core never raises it itself, but the kind is reserved so a connection
	// module can surface it through the same taxonomy.
	AlreadyConnected Kind = iota
	// ComponentConflict signals a component-container polymorphism violation.
	ComponentConflict
	// ModuleConflict signals a module-container polymorphism violation.
	ModuleConflict
	// NotFound signals a module or component slot was empty when a
	// retrieval demanded it.
	NotFound
	// UnregisteredIdentityType signals an attempt to build an EventIdentity
	// from an enum type that never called RegisterIdentityType.
	UnregisteredIdentityType
	// InvalidIdentity signals an attempt to construct or handle an event
	// with the invalid sentinel identity.
	InvalidIdentity
	// TypeMismatch signals an identity was queried as the wrong enum type.
	TypeMismatch
	// Closed signals an operation against a Manager (or a Context built
	// on one) that has already been closed.
	Closed
	// NilEvent signals a nil *Event reference where a real event was
	// required, e.g. Manager.Post or Event.Afterwards.
	NilEvent
)

func (k Kind) String() string {
	switch k {
	case AlreadyConnected:
		return "AlreadyConnected"
	case ComponentConflict:
		return "ComponentConflict"
	case ModuleConflict:
		return "ModuleConflict"
	case NotFound:
		return "NotFound"
	case UnregisteredIdentityType:
		return "UnregisteredIdentityType"
	case InvalidIdentity:
		return "InvalidIdentity"
	case TypeMismatch:
		return "TypeMismatch"
	case Closed:
		return "Closed"
	case NilEvent:
		return "NilEvent"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the concrete error type raised at the core's API boundary.
//
// Errors of a given Kind are singletons for use with errors.Is (e.g.
// slirc.ErrNotFound), but newError wraps them with a message and a stack via
// github.com/pkg/errors so callers still get a useful %+v.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.msg
}

// Is makes Kind-sentinel comparisons work with errors.Is: an *Error with
// Kind K matches any *Error (wrapped or not) whose Kind is also K.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// newError builds a *Error of the given kind, wrapped with a stack trace.
func newError(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, msg: fmt.Sprintf(format, args...)})
}

// sentinel kind-only errors, usable directly with errors.Is(err, slirc.ErrNotFound).
var (
	// ErrAlreadyConnected is the Kind-only sentinel for AlreadyConnected.
	ErrAlreadyConnected error = &Error{Kind: AlreadyConnected}
	// ErrComponentConflict is the Kind-only sentinel for ComponentConflict.
	ErrComponentConflict error = &Error{Kind: ComponentConflict}
	// ErrModuleConflict is the Kind-only sentinel for ModuleConflict.
	ErrModuleConflict error = &Error{Kind: ModuleConflict}
	// ErrNotFound is the Kind-only sentinel for NotFound.
	ErrNotFound error = &Error{Kind: NotFound}
	// ErrUnregisteredIdentityType is the Kind-only sentinel for UnregisteredIdentityType.
	ErrUnregisteredIdentityType error = &Error{Kind: UnregisteredIdentityType}
	// ErrInvalidIdentity is the Kind-only sentinel for InvalidIdentity.
	ErrInvalidIdentity error = &Error{Kind: InvalidIdentity}
	// ErrTypeMismatch is the Kind-only sentinel for TypeMismatch.
	ErrTypeMismatch error = &Error{Kind: TypeMismatch}
	// ErrClosed is the Kind-only sentinel for Closed.
	ErrClosed error = &Error{Kind: Closed}
	// ErrNilEvent is the Kind-only sentinel for NilEvent.
	ErrNilEvent error = &Error{Kind: NilEvent}
)
