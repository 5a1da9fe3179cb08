package slirc

import (
	"reflect"
	"sync"
)

// ModuleContainer stores at most one module per base API type, the same
// one-slot-per-token discipline as ComponentContainer but keyed on an
// explicit type parameter at each call site instead of an embedded
// marker, since a module's "base API type" is usually an interface
// (apis.EventManager in the original C++) rather than something a struct
// can conveniently embed.
//
// The event manager slot is tracked outside of the generic modules map
// entirely, for O(1) access via EventManager() and to guarantee it is
// never absent between construction and Close.
type ModuleContainer struct {
	mu      sync.Mutex
	modules map[reflect.Type]interface{}
	manager *Manager
}

// NewModuleContainer returns an empty container whose event manager slot
// is populated with manager.
func NewModuleContainer(manager *Manager) *ModuleContainer {
	return &ModuleContainer{
		modules: map[reflect.Type]interface{}{},
		manager: manager,
	}
}

// EventManager returns the container's event manager module. It is never
// nil for a container obtained from a live Context.
func (mc *ModuleContainer) EventManager() *Manager {
	return mc.manager
}

func keyOf[Api any]() reflect.Type {
	return reflect.TypeOf((*Api)(nil)).Elem()
}

// LoadModule constructs a module via build and stores it keyed by Api.
// It fails with ModuleConflict if a module is already loaded for Api or if
// the built module does not implement Api; if build itself fails, the
// container is left unchanged and the error propagates.
func LoadModule[Api any, M any](mc *ModuleContainer, build func() (M, error)) (M, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := keyOf[Api]()
	if _, ok := mc.modules[key]; ok {
		var zero M
		return zero, newError(ModuleConflict, "module slot %v already occupied", key)
	}

	m, err := build()
	if err != nil {
		var zero M
		return zero, err
	}
	if _, ok := any(m).(Api); !ok {
		var zero M
		return zero, newError(ModuleConflict, "module %T does not implement %v", m, key)
	}
	mc.modules[key] = m
	return m, nil
}

// UnloadModule removes the module loaded for Api if it is compatible with
// M. It returns false (no error) if no module is loaded for Api, true if
// a compatible module was removed, and fails with ModuleConflict if the
// loaded module is incompatible with M.
func UnloadModule[Api any, M any](mc *ModuleContainer) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := keyOf[Api]()
	stored, ok := mc.modules[key]
	if !ok {
		return false, nil
	}
	if _, ok := stored.(M); ok {
		delete(mc.modules, key)
		return true, nil
	}
	return false, newError(ModuleConflict, "module slot %v holds an incompatible module", key)
}

// FindModule returns the module loaded for Api, if any and if compatible
// with M.
func FindModule[Api any, M any](mc *ModuleContainer) (M, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var zero M
	stored, ok := mc.modules[keyOf[Api]()]
	if !ok {
		return zero, false
	}
	m, ok := stored.(M)
	if !ok {
		return zero, false
	}
	return m, true
}

// GetModule is FindModule but returns NotFound or ModuleConflict instead
// of a boolean.
func GetModule[Api any, M any](mc *ModuleContainer) (M, error) {
	mc.mu.Lock()
	stored, ok := mc.modules[keyOf[Api]()]
	mc.mu.Unlock()

	var zero M
	if !ok {
		return zero, newError(NotFound, "no module loaded for %v", keyOf[Api]())
	}
	m, ok := stored.(M)
	if !ok {
		return zero, newError(ModuleConflict, "module loaded for %v is incompatible", keyOf[Api]())
	}
	return m, nil
}

// Close unloads every generic module, then the event manager, matching
// spec.md §4.6's "the event manager is unloaded last".
func (mc *ModuleContainer) Close() {
	mc.mu.Lock()
	for key := range mc.modules {
		delete(mc.modules, key)
	}
	mc.mu.Unlock()

	if mc.manager != nil {
		mc.manager.Close()
	}
}
