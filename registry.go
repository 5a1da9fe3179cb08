package slirc

import (
	"sort"
	"sync"
)

// Handler is the signature every event handler must satisfy. A non-nil
// return aborts the current HandleAs chain and propagates out of Handle.
type Handler func(*Event) error

// Priority is the fixed ladder of named dispatch priorities, plus room
// for arbitrary integers between the named levels. See spec.md §4.4.
type Priority int

// The named priority levels, ported verbatim from
// apis::event_manager::connection_priority in the original C++
// implementation. First is the only bucket dispatched LIFO; every other
// tie is broken FIFO by insertion order.
const (
	First     Priority = -1000
	Filter    Priority = -800
	Highest   Priority = -600
	Higher    Priority = -400
	High      Priority = -200
	Normal    Priority = 0
	Low       Priority = 200
	Lower     Priority = 400
	Lowest    Priority = 600
	Summarize Priority = 800
	Last      Priority = 1000
)

type handlerEntry struct {
	seq      uint64
	priority Priority
	handler  Handler
}

func lessHandlerEntry(a, b *handlerEntry) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.priority == First {
		// last come, first serve within the First bucket.
		return a.seq > b.seq
	}
	return a.seq < b.seq
}

// Connection is the opaque token returned by HandlerRegistry.Connect. It
// owns one disconnection capability; disconnecting twice is a no-op.
// Connections are comparable with == and totally ordered (via Less)
// within the registry they came from.
type Connection struct {
	registry *HandlerRegistry
	id       EventIdentity
	seq      uint64
}

// Connected reports whether the handler this connection represents is
// still registered.
func (c Connection) Connected() bool {
	if c.registry == nil {
		return false
	}
	return c.registry.isConnected(c.id, c.seq)
}

// Disconnect removes the associated handler. Calling it more than once,
// or on a zero-value Connection, has no further effect.
func (c *Connection) Disconnect() {
	if c.registry == nil {
		return
	}
	c.registry.disconnect(c.id, c.seq)
	c.registry = nil
}

// Less orders connections from the same registry by insertion sequence.
// Comparing connections from different registries is well-defined (it
// will not panic) but carries no particular meaning, matching spec.md
// §3's "totally ordered within a manager".
func (c Connection) Less(other Connection) bool {
	if c.registry != other.registry {
		return c.registry == nil && other.registry != nil
	}
	return c.seq < other.seq
}

// HandlerRegistry maps event identities to a priority-ordered multiset of
// handlers. See spec.md §4.4.
type HandlerRegistry struct {
	mu       sync.Mutex
	handlers map[EventIdentity][]*handlerEntry
	nextSeq  uint64
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: map[EventIdentity][]*handlerEntry{}}
}

// Connect registers handler against id at the given priority and returns
// a Connection that can later disconnect it. It fails with
// InvalidIdentity if id is the Invalid sentinel.
//
// Connect is safe to call from inside a handler that is itself being
// dispatched by this registry (a nested Connect does not deadlock, and
// never affects the snapshot of handlers already being iterated for the
// in-progress dispatch pass).
func (r *HandlerRegistry) Connect(id EventIdentity, handler Handler, priority Priority) (Connection, error) {
	if !id.IsValid() {
		return Connection{}, newError(InvalidIdentity, "cannot connect a handler to the invalid identity")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	seq := r.nextSeq
	entry := &handlerEntry{seq: seq, priority: priority, handler: handler}

	entries := append(r.handlers[id], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return lessHandlerEntry(entries[i], entries[j])
	})
	r.handlers[id] = entries

	return Connection{registry: r, id: id, seq: seq}, nil
}

func (r *HandlerRegistry) disconnect(id EventIdentity, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.handlers[id]
	for i, entry := range entries {
		if entry.seq == seq {
			r.handlers[id] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

func (r *HandlerRegistry) isConnected(id EventIdentity, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.handlers[id] {
		if entry.seq == seq {
			return true
		}
	}
	return false
}

// snapshot returns a stable, independently-ordered copy of the handlers
// currently registered for id, safe to iterate while Connect/Disconnect
// run concurrently (or are called from within a handler in the snapshot
// itself).
func (r *HandlerRegistry) snapshot(id EventIdentity) []*handlerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.handlers[id]
	out := make([]*handlerEntry, len(entries))
	copy(out, entries)
	return out
}
