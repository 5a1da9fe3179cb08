package slirc

import (
	"reflect"
	"sync"
)

// registeredIdentityTypes tracks every enum type that has opted in to
// minting EventIdentity values via RegisterIdentityType. It stands in for
// the C++ SLIRC_REGISTER_EVENT_ID_ENUM compile-time assertion: Go generics
// cannot reject an unregistered type at compile time, so MakeIdentity
// checks this registry at construction time instead, per spec.md §3
// ("construction time otherwise").
var registeredIdentityTypes sync.Map // map[reflect.Type]struct{}

// Ordinal is the underlying integer type event id enums must use.
//
// This mirrors slirc::event::underlying_id_type from the original C++
// implementation, which fixed the bus's chosen width at unsigned int.
type Ordinal = uint32

// RegisterIdentityType opts an enum type E into minting EventIdentity
// values. Modules call this once, typically from an init() function, for
// every enum type they intend to pass to MakeIdentity.
//
// Registering twice is harmless.
func RegisterIdentityType[E ~uint32]() {
	var zero E
	registeredIdentityTypes.Store(reflect.TypeOf(zero), struct{}{})
}

func isRegisteredIdentityType(t reflect.Type) bool {
	_, ok := registeredIdentityTypes.Load(t)
	return ok
}

// EventIdentity is a (origin, ordinal) pair identifying a kind of event.
//
// Two identities are equal only if they share both their origin enum type
// and their numeric value: an EventIdentity minted from one module's enum
// is never equal to one minted from another module's enum, even if both
// carry ordinal 0. The zero value is the Invalid sentinel.
type EventIdentity struct {
	origin  reflect.Type
	ordinal Ordinal
}

// Invalid returns the sentinel EventIdentity. It compares less than every
// valid identity and carries no origin type.
func Invalid() EventIdentity {
	return EventIdentity{}
}

// IsValid reports whether id is anything other than the Invalid sentinel.
func (id EventIdentity) IsValid() bool {
	return id.origin != nil
}

// Origin returns the reflect.Type of the enum this identity was minted
// from, or nil for the Invalid sentinel.
func (id EventIdentity) Origin() reflect.Type {
	return id.origin
}

// Ordinal returns the numeric value this identity was minted with.
func (id EventIdentity) Ordinal() Ordinal {
	return id.ordinal
}

// IsOfType reports whether id originates from enum type E.
func IsOfType[E ~uint32](id EventIdentity) bool {
	var zero E
	return id.origin != nil && id.origin == reflect.TypeOf(zero)
}

// Get returns id's value as E, failing with TypeMismatch if id did not
// originate from E.
func Get[E ~uint32](id EventIdentity) (E, error) {
	if !IsOfType[E](id) {
		var zero E
		return zero, newError(TypeMismatch, "identity originates from %v, not %T", id.origin, zero)
	}
	return E(id.ordinal), nil
}

// MakeIdentity mints an EventIdentity from an enum value of a registered
// type. It fails with UnregisteredIdentityType if E was never passed to
// RegisterIdentityType.
func MakeIdentity[E ~uint32](value E) (EventIdentity, error) {
	t := reflect.TypeOf(value)
	if !isRegisteredIdentityType(t) {
		return EventIdentity{}, newError(UnregisteredIdentityType,
			"%v was never registered with RegisterIdentityType", t)
	}
	return EventIdentity{origin: t, ordinal: Ordinal(value)}, nil
}

// MustMakeIdentity is MakeIdentity but panics on error. Intended for use at
// package scope (e.g. to build tables of well-known identities) where an
// unregistered type is a programming error, not a runtime condition.
func MustMakeIdentity[E ~uint32](value E) EventIdentity {
	id, err := MakeIdentity(value)
	if err != nil {
		panic(err)
	}
	return id
}

// Less imposes a total order over EventIdentity: (origin, ordinal)
// lexicographic, with Invalid ordered strictly before any valid identity.
// The ordering of distinct origin types is stable within a process but
// not guaranteed across runs (it depends on reflect.Type string order),
// matching spec.md §4.1's hashing/ordering note.
func (id EventIdentity) Less(other EventIdentity) bool {
	if id.origin != other.origin {
		if id.origin == nil {
			return true
		}
		if other.origin == nil {
			return false
		}
		return id.origin.String() < other.origin.String()
	}
	return id.ordinal < other.ordinal
}

// managerEvent enumerates the reserved identities the dispatch kernel
// itself emits around every call to Handle. It is registered below so it
// can be minted through the same MakeIdentity path as any module's enum.
type managerEvent Ordinal

const (
	// beginHandlingOrdinal identifies the event emitted once, before an
	// event's identity queue is drained.
	beginHandlingOrdinal managerEvent = iota
	// finishingHandlingOrdinal identifies the event emitted at least once
	// after the identity queue first drains, and again after every pass
	// that refills it.
	finishingHandlingOrdinal
	// finishedHandlingOrdinal identifies the event emitted exactly once,
	// after the last FinishingHandling pass found nothing queued.
	finishedHandlingOrdinal
)

func init() {
	RegisterIdentityType[managerEvent]()
}

var (
	// BeginHandling is pushed onto every event's identity queue first, by
	// Manager.Handle, before the dispatch loop begins draining the queue.
	BeginHandling = MustMakeIdentity(beginHandlingOrdinal)
	// FinishingHandling is dispatched at least once per Handle call, after
	// the identity queue first drains; if handlers at this identity queue
	// more identities, they are drained and FinishingHandling runs again.
	FinishingHandling = MustMakeIdentity(finishingHandlingOrdinal)
	// FinishedHandling is dispatched exactly once per Handle call, after a
	// FinishingHandling pass found the queue empty both before and after.
	FinishedHandling = MustMakeIdentity(finishedHandlingOrdinal)
)
