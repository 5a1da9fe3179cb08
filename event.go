package slirc

// QueueStrategy controls what QueueAs does when an equivalent identity is
// already pending on an event's identity queue.
type QueueStrategy int

const (
	// Discard leaves the queue untouched if an equivalent identity is
	// already pending.
	Discard QueueStrategy = iota
	// Replace removes every pending identity equivalent to the one being
	// queued before inserting it.
	Replace
	// Duplicate inserts unconditionally, regardless of what is pending.
	Duplicate
)

// QueuePosition selects which end of the identity queue QueueAs inserts at.
type QueuePosition int

const (
	// Back queues the identity to be handled last.
	Back QueuePosition = iota
	// Front queues the identity to be handled next.
	Front
)

// QueueOutcome reports what QueueAs actually did.
type QueueOutcome int

const (
	// Discarded means the identity was not inserted because an equivalent
	// one was already pending and the Discard strategy was used.
	Discarded QueueOutcome = iota
	// Queued means the identity was inserted.
	Queued
	// Replaced means the identity was inserted after removing one or more
	// pending equivalents.
	Replaced
	// QueueInvalid means the identity itself was invalid; the queue was
	// not modified.
	QueueInvalid
)

// handleAfterwards is the reserved component used by Afterwards to stash
// follow-up events, mirroring apis::event_manager::handle_afterwards from
// the original C++ implementation.
type handleAfterwards struct {
	Base[handleAfterwards]
	Events []*Event
}

// Event carries a typed identity, a mutable identity queue driving
// re-dispatch, and a heterogeneous component bag. See spec.md §3.
type Event struct {
	ctx        *Context
	originID   EventIdentity
	currentID  EventIdentity
	components *ComponentContainer
	ids        []EventIdentity
}

// newEvent constructs an event minted with originID, associated with ctx.
// It fails with InvalidIdentity if originID is the Invalid sentinel.
func newEvent(ctx *Context, originID EventIdentity) (*Event, error) {
	if !originID.IsValid() {
		return nil, newError(InvalidIdentity, "cannot create an event with the invalid identity")
	}
	return &Event{
		ctx:        ctx,
		originID:   originID,
		components: NewComponentContainer(),
		ids:        []EventIdentity{originID},
	}, nil
}

// Context returns the IRC context this event belongs to.
func (e *Event) Context() *Context { return e.ctx }

// OriginID returns the identity this event was minted with. It never
// changes and is never Invalid.
func (e *Event) OriginID() EventIdentity { return e.originID }

// CurrentID returns the identity this event is currently being dispatched
// as. Outside of a handler its value is meaningless; spec.md §3 leaves it
// undefined while the event is not being handled.
func (e *Event) CurrentID() EventIdentity { return e.currentID }

// Components returns the event's component bag, writable by any handler.
func (e *Event) Components() *ComponentContainer { return e.components }

// setCurrentID installs id as the current identity and returns the
// previous one, so callers can restore it on exit.
func (e *Event) setCurrentID(id EventIdentity) EventIdentity {
	prev := e.currentID
	e.currentID = id
	return prev
}

func (a EventIdentity) equivalentTo(b EventIdentity) bool {
	return a == b
}

func (e *Event) indexOfID(id EventIdentity) int {
	for i, pending := range e.ids {
		if pending.equivalentTo(id) {
			return i
		}
	}
	return -1
}

func (e *Event) removeAllEquivalent(ids []EventIdentity, id EventIdentity) ([]EventIdentity, int) {
	out := ids[:0:0]
	removed := 0
	for _, pending := range ids {
		if pending.equivalentTo(id) {
			removed++
			continue
		}
		out = append(out, pending)
	}
	return out, removed
}

func insertIDs(existing []EventIdentity, add []EventIdentity, position QueuePosition) []EventIdentity {
	if len(add) == 0 {
		return existing
	}
	if position == Front {
		out := make([]EventIdentity, 0, len(add)+len(existing))
		out = append(out, add...)
		out = append(out, existing...)
		return out
	}
	out := make([]EventIdentity, 0, len(existing)+len(add))
	out = append(out, existing...)
	out = append(out, add...)
	return out
}

// QueueAs queues id for dispatch per strategy and position. See spec.md
// §4.3 for the exact semantics of each strategy/outcome pair.
func (e *Event) QueueAs(id EventIdentity, strategy QueueStrategy, position QueuePosition) QueueOutcome {
	if !id.IsValid() {
		return QueueInvalid
	}

	switch strategy {
	case Discard:
		if e.indexOfID(id) >= 0 {
			return Discarded
		}
		e.ids = insertIDs(e.ids, []EventIdentity{id}, position)
		return Queued

	case Replace:
		remaining, removed := e.removeAllEquivalent(e.ids, id)
		e.ids = insertIDs(remaining, []EventIdentity{id}, position)
		if removed > 0 {
			return Replaced
		}
		return Queued

	case Duplicate:
		e.ids = insertIDs(e.ids, []EventIdentity{id}, position)
		return Queued

	default:
		return QueueInvalid
	}
}

// QueueAsMany queues every identity in ids in order, applying strategy
// against the queue's pre-existing (pre-call) contents only: duplicates
// within ids itself are never discarded or replaced against each other,
// only against what was already pending. callback, if non-nil, is invoked
// once per input element with its outcome; InvalidIdentity elements are
// skipped (reported as QueueInvalid) without being queued.
func (e *Event) QueueAsMany(ids []EventIdentity, strategy QueueStrategy, position QueuePosition, callback func(index int, outcome QueueOutcome)) {
	if callback == nil {
		callback = func(int, QueueOutcome) {}
	}

	working := append([]EventIdentity{}, e.ids...)
	toAdd := make([]EventIdentity, 0, len(ids))

	for i, id := range ids {
		if !id.IsValid() {
			callback(i, QueueInvalid)
			continue
		}

		switch strategy {
		case Discard:
			found := false
			for _, pending := range working {
				if pending.equivalentTo(id) {
					found = true
					break
				}
			}
			if found {
				callback(i, Discarded)
				continue
			}
			toAdd = append(toAdd, id)
			callback(i, Queued)

		case Replace:
			remaining, removed := e.removeAllEquivalent(working, id)
			working = remaining
			toAdd = append(toAdd, id)
			if removed > 0 {
				callback(i, Replaced)
			} else {
				callback(i, Queued)
			}

		case Duplicate:
			toAdd = append(toAdd, id)
			callback(i, Queued)

		default:
			callback(i, QueueInvalid)
		}
	}

	e.ids = insertIDs(working, toAdd, position)
}

// UnqueueID removes every pending identity equivalent to id. It returns
// true if anything was removed.
func (e *Event) UnqueueID(id EventIdentity) bool {
	return e.UnqueueFunc(func(pending EventIdentity) bool {
		return pending.equivalentTo(id)
	})
}

// UnqueueFunc removes every pending identity for which match returns
// true. It returns true if anything was removed.
func (e *Event) UnqueueFunc(match func(EventIdentity) bool) bool {
	out := e.ids[:0:0]
	removed := false
	for _, pending := range e.ids {
		if match(pending) {
			removed = true
			continue
		}
		out = append(out, pending)
	}
	e.ids = out
	return removed
}

// IsQueuedAsID reports whether id is pending.
func (e *Event) IsQueuedAsID(id EventIdentity) bool {
	return e.indexOfID(id) >= 0
}

// IsQueuedAsFunc reports whether any pending identity satisfies match. It
// always scans the full pending queue, calling match on every entry even
// after one has matched, so callers can also use it purely for inspection.
func (e *Event) IsQueuedAsFunc(match func(EventIdentity) bool) bool {
	found := false
	for _, pending := range e.ids {
		if match(pending) {
			found = true
		}
	}
	return found
}

// PopNext removes and returns the next pending identity, or Invalid if
// the queue is empty. It is reserved for use by the event manager's
// dispatch loop.
func (e *Event) PopNext() EventIdentity {
	if len(e.ids) == 0 {
		return Invalid()
	}
	id := e.ids[0]
	e.ids = e.ids[1:]
	return id
}

// Afterwards appends other to this event's HandleAfterwards component,
// creating the component if it is not already present. Once this event
// finishes handling, the event manager prepends every afterwards event
// to the main queue, in the order they were added, and clears the
// component. It fails with NilEvent if other is nil.
func (e *Event) Afterwards(other *Event) error {
	if other == nil {
		return newError(NilEvent, "cannot attach a nil event via Afterwards")
	}

	key := baseTypeOf[handleAfterwards]()
	e.components.ensure()

	var comp handleAfterwards
	if stored, ok := e.components.contents[key]; ok {
		comp = stored.(handleAfterwards)
	}
	comp.Events = append(comp.Events, other)
	e.components.contents[key] = comp
	return nil
}

// takeAfterwards removes and returns the events attached via Afterwards,
// or nil if there were none.
func (e *Event) takeAfterwards() []*Event {
	key := baseTypeOf[handleAfterwards]()
	if e.components.contents == nil {
		return nil
	}
	stored, ok := e.components.contents[key]
	if !ok {
		return nil
	}
	delete(e.components.contents, key)
	return stored.(handleAfterwards).Events
}

// Handle kicks off the full nested dispatch loop for this event, via its
// context's event manager. See spec.md §4.5.
func (e *Event) Handle() error {
	return e.ctx.EventManager().Handle(e)
}

// HandleAs dispatches exactly one handler chain, for the given identity,
// via this event's context's event manager.
func (e *Event) HandleAs(id EventIdentity) error {
	return e.ctx.EventManager().HandleAs(e, id)
}
