package slirc

import (
	"reflect"

	stderrors "errors"
)

// Component is satisfied by any component struct that embeds Base[T] for
// some base component type T, directly or transitively. It mirrors
// slirc::component<ComponentBaseType> from the original C++
// implementation's component.hpp.
type Component interface {
	// componentBaseType returns the reflect.Type of this component's base
	// component type, i.e. the T in the Base[T] it (transitively) embeds.
	componentBaseType() reflect.Type
}

// Base is embedded by every component struct to declare its base
// component type, which is what a ComponentContainer actually keys on.
//
// A base component struct embeds Base[itself]:
//
//	type ReceivedData struct {
//		slirc.Base[ReceivedData]
//		Data string
//	}
//
// A more derived component sharing the same slot embeds the base struct
// directly (not Base again), which promotes componentBaseType() through:
//
//	type VerboseReceivedData struct {
//		ReceivedData
//		RawLine string
//	}
type Base[BaseType any] struct{}

func (Base[BaseType]) componentBaseType() reflect.Type {
	var zero BaseType
	return reflect.TypeOf(zero)
}

func baseTypeOf[T Component]() reflect.Type {
	var zero T
	return zero.componentBaseType()
}

// componentView attempts to view a stored component as T: either it
// already is a T, or it is some more derived type that embeds T as a
// direct (one level) anonymous field, the way VerboseReceivedData embeds
// ReceivedData above.
func componentView[T any](stored interface{}) (T, bool) {
	if v, ok := stored.(T); ok {
		return v, true
	}

	var zero T
	rv := reflect.ValueOf(stored)
	if rv.Kind() != reflect.Struct {
		return zero, false
	}

	want := reflect.TypeOf(zero)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.Anonymous && field.Type == want {
			if v, ok := rv.Field(i).Interface().(T); ok {
				return v, true
			}
		}
	}
	return zero, false
}

// ComponentContainer stores at most one component per base component
// type. It is the storage slice embedded into every Event and into
// Context itself, matching slirc::component_container /
// slirc::takes_components.
type ComponentContainer struct {
	contents map[reflect.Type]interface{}
}

// NewComponentContainer returns an empty container.
func NewComponentContainer() *ComponentContainer {
	return &ComponentContainer{contents: map[reflect.Type]interface{}{}}
}

func (c *ComponentContainer) ensure() {
	if c.contents == nil {
		c.contents = map[reflect.Type]interface{}{}
	}
}

// Insert stores value under T's base component type. It fails with
// ComponentConflict if that slot is already occupied.
func Insert[T Component](c *ComponentContainer, value T) (T, error) {
	c.ensure()
	key := baseTypeOf[T]()
	if _, ok := c.contents[key]; ok {
		var zero T
		return zero, newError(ComponentConflict, "component slot %v already occupied", key)
	}
	c.contents[key] = value
	return value, nil
}

// At fetches the component stored under T's base component type.
//
// It fails with NotFound if the slot is empty, or with ComponentConflict
// if the slot holds a component incompatible with T (i.e. neither exactly
// T nor a type that embeds T).
func At[T Component](c *ComponentContainer) (T, error) {
	var zero T
	if c == nil || c.contents == nil {
		return zero, newError(NotFound, "no component of base type %v", baseTypeOf[T]())
	}
	key := baseTypeOf[T]()
	stored, ok := c.contents[key]
	if !ok {
		return zero, newError(NotFound, "no component of base type %v", key)
	}
	if v, ok := componentView[T](stored); ok {
		return v, nil
	}
	return zero, newError(ComponentConflict, "component slot %v holds incompatible %T", key, stored)
}

// Find is At without the NotFound error: it returns the zero value and
// false if the slot is empty. A ComponentConflict is still possible and
// surfaces as (zero, false) — use At to distinguish "empty" from
// "incompatible occupant".
func Find[T Component](c *ComponentContainer) (T, bool) {
	v, err := At[T](c)
	if err != nil {
		return v, false
	}
	return v, true
}

// Has reports whether a compatible component is stored under T's base
// component type.
func Has[T Component](c *ComponentContainer) bool {
	_, ok := Find[T](c)
	return ok
}

// AtOrInsert returns the existing component compatible with T, or inserts
// def and returns it if the slot was empty.
func AtOrInsert[T Component](c *ComponentContainer, def T) (T, error) {
	existing, err := At[T](c)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, ErrNotFound) {
		var zero T
		return zero, err
	}
	return Insert[T](c, def)
}

// AtOrInsertAs returns the existing component compatible with Req, or
// inserts def (of the more derived type New, which must embed Req) and
// returns the Req view of it.
//
// New must share Req's base component type; this is asserted at runtime
// (it is a programming error, not a recoverable condition, for it not
// to — the original C++ enforced it with a static_assert).
func AtOrInsertAs[Req Component, New Component](c *ComponentContainer, def New) (Req, error) {
	existing, err := At[Req](c)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, ErrNotFound) {
		var zero Req
		return zero, err
	}

	reqKey := baseTypeOf[Req]()
	newKey := baseTypeOf[New]()
	if reqKey != newKey {
		panic("slirc: AtOrInsertAs: New must be derived from Req (base component type mismatch)")
	}

	c.ensure()
	c.contents[reqKey] = def
	view, ok := componentView[Req](def)
	if !ok {
		panic("slirc: AtOrInsertAs: New does not embed Req")
	}
	return view, nil
}

// Remove removes the component stored under T's base component type.
//
// It returns true only if a compatible component was removed. It returns
// false (with no error) if the slot was already empty, and fails with
// ComponentConflict if the slot holds an incompatible occupant — in that
// case the occupant is left untouched; call Remove with the base type
// itself to clear the slot unconditionally.
func Remove[T Component](c *ComponentContainer) (bool, error) {
	if c == nil || c.contents == nil {
		return false, nil
	}
	key := baseTypeOf[T]()
	stored, ok := c.contents[key]
	if !ok {
		return false, nil
	}
	if _, ok := componentView[T](stored); ok {
		delete(c.contents, key)
		return true, nil
	}
	return false, newError(ComponentConflict, "component slot %v holds incompatible %T", key, stored)
}
