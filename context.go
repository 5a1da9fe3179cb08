package slirc

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Context is the composition root every module and event is built
// against: it owns a module container (with its event manager slot
// always populated) and its own component bag, and mints events bound to
// itself. It mirrors slirc::irc from the original C++ implementation.
type Context struct {
	// ID uniquely identifies this Context for log correlation, stamped
	// once at construction.
	ID string

	*ComponentContainer
	modules *ModuleContainer
}

type contextOpt struct {
	managerOpts []ManagerOptFunc
	manager     *Manager
}

// ContextOptFunc configures a Context at construction time.
type ContextOptFunc func(*contextOpt) error

// WithContextManagerOptions forwards opts to NewManager when the Context
// builds its own event manager. Ignored if WithContextManager is also
// given.
func WithContextManagerOptions(opts ...ManagerOptFunc) ContextOptFunc {
	return func(opt *contextOpt) error {
		opt.managerOpts = append(opt.managerOpts, opts...)
		return nil
	}
}

// WithContextManager installs an already-constructed Manager instead of
// having the Context build its own. Useful for sharing one Manager
// across multiple Contexts, or for tests that want direct access to the
// Manager before any Context exists.
func WithContextManager(manager *Manager) ContextOptFunc {
	return func(opt *contextOpt) error {
		if manager == nil {
			return errors.Errorf("manager is nil")
		}
		opt.manager = manager
		return nil
	}
}

// NewContext builds a Context with a freshly loaded event manager module
// (or the one supplied via WithContextManager) and an empty component
// bag.
func NewContext(opts ...ContextOptFunc) (*Context, error) {
	opt := &contextOpt{}
	for _, optf := range opts {
		if err := optf(opt); err != nil {
			return nil, err
		}
	}

	manager := opt.manager
	if manager == nil {
		m, err := NewManager(opt.managerOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "build default event manager")
		}
		manager = m
	}

	return &Context{
		ID:                 uuid.New().String(),
		ComponentContainer: NewComponentContainer(),
		modules:            NewModuleContainer(manager),
	}, nil
}

// EventManager returns the Context's event manager module. It is the
// method event.go's Event.Handle/HandleAs dispatch through, and is never
// nil for a Context built by NewContext.
func (ctx *Context) EventManager() *Manager {
	return ctx.modules.EventManager()
}

// Modules returns the Context's module container, for loading and
// unloading modules beyond the event manager.
func (ctx *Context) Modules() *ModuleContainer {
	return ctx.modules
}

// MakeEvent mints a new event bound to this Context, with originID as
// its origin identity and as the only entry of its identity queue. Its
// current identity stays Invalid until it is dispatched. It fails with
// InvalidIdentity if originID is the Invalid sentinel.
func (ctx *Context) MakeEvent(originID EventIdentity) (*Event, error) {
	return newEvent(ctx, originID)
}

// Close tears down the Context's module container, unloading every
// module and finally closing the event manager. See ModuleContainer.Close.
func (ctx *Context) Close() {
	ctx.modules.Close()
}
