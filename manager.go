package slirc

import (
	"context"
	"fmt"
	"sync"
	"time"

	gutils "github.com/Laisky/go-utils"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Laisky/go-slirc/metrics"
)

const defaultDiagnosticsSize = 256

// Manager is the dispatch kernel: a handler registry plus a FIFO
// producer/consumer queue for events posted by one part of a program and
// picked up by another. See spec.md §4.5.
//
// A Manager runs no long-lived goroutines of its own (WaitUntil starts a
// short-lived helper per call to watch ctx); Post, Wait, WaitUntil and
// WaitRegister are all the concurrency primitives it needs, left for the
// owning Context's driver loop to use however it likes.
type Manager struct {
	// ID uniquely identifies this Manager for log correlation across
	// goroutines. Stamped once at construction, mirroring the teacher
	// pack's use of github.com/google/uuid for request/session ids.
	ID string

	registry *HandlerRegistry

	mu             sync.Mutex
	cond           *sync.Cond
	queue          []*Event
	consumers      []func(*Event) bool
	consumerCursor int
	closed         bool

	logger      *gutils.LoggerType
	metrics     metrics.Sink
	diagnostics *diagnosticsRing
}

type managerOpt struct {
	logger          *gutils.LoggerType
	metrics         metrics.Sink
	diagnosticsSize int
	queueHint       int
}

// ManagerOptFunc configures a Manager at construction time.
type ManagerOptFunc func(*managerOpt) error

// WithManagerLogger sets the Manager's logger.
//
// default to gutils' internal logger, named.
func WithManagerLogger(logger *gutils.LoggerType) ManagerOptFunc {
	return func(opt *managerOpt) error {
		if logger == nil {
			return errors.Errorf("logger is nil")
		}
		opt.logger = logger
		return nil
	}
}

// WithManagerMetrics sets the sink dispatch observations are reported to.
//
// default to metrics.Noop().
func WithManagerMetrics(sink metrics.Sink) ManagerOptFunc {
	return func(opt *managerOpt) error {
		if sink == nil {
			return errors.Errorf("metrics sink is nil")
		}
		opt.metrics = sink
		return nil
	}
}

// WithManagerDiagnosticsSize sets how many recent dispatch records
// RecentDispatches retains.
//
// default to 256.
func WithManagerDiagnosticsSize(size int) ManagerOptFunc {
	return func(opt *managerOpt) error {
		if size <= 0 {
			return errors.Errorf("diagnostics size must > 0")
		}
		opt.diagnosticsSize = size
		return nil
	}
}

// WithManagerQueueHint preallocates the post/wait queue's backing array.
//
// default to 0 (grown on demand).
func WithManagerQueueHint(size int) ManagerOptFunc {
	return func(opt *managerOpt) error {
		if size < 0 {
			return errors.Errorf("queue hint must >= 0")
		}
		opt.queueHint = size
		return nil
	}
}

// NewManager builds an empty Manager: no handlers connected, no events
// queued.
func NewManager(opts ...ManagerOptFunc) (*Manager, error) {
	id := uuid.New().String()
	opt := &managerOpt{
		logger:          gutils.Logger.Named("slirc-manager-" + id[:8]),
		metrics:         metrics.Noop(),
		diagnosticsSize: defaultDiagnosticsSize,
	}
	for _, optf := range opts {
		if err := optf(opt); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		ID:          id,
		registry:    NewHandlerRegistry(),
		logger:      opt.logger,
		metrics:     opt.metrics,
		diagnostics: newDiagnosticsRing(opt.diagnosticsSize),
	}
	m.cond = sync.NewCond(&m.mu)
	if opt.queueHint > 0 {
		m.queue = make([]*Event, 0, opt.queueHint)
	}
	return m, nil
}

// Connect registers handler against id at the given priority. See
// HandlerRegistry.Connect.
func (m *Manager) Connect(id EventIdentity, handler Handler, priority Priority) (Connection, error) {
	return m.registry.Connect(id, handler, priority)
}

// Post enqueues e for a future Wait/WaitUntil/WaitRegister caller, then
// runs it against any pending consumers per the matching policy (see
// matchConsumersLocked). It fails with Closed once the Manager has been
// closed.
func (m *Manager) Post(e *Event) error {
	if e == nil {
		return newError(NilEvent, "cannot post a nil event")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return newError(Closed, "manager is closed")
	}

	m.queue = append(m.queue, e)
	m.matchConsumersLocked()
	depth := len(m.queue)
	m.mu.Unlock()

	m.metrics.ObserveQueueDepth(depth)
	m.cond.Broadcast()
	return nil
}

// matchConsumersLocked implements spec.md §4.5's consumer matching
// policy: while the queue is non-empty and untried consumers remain,
// the next untried consumer is called with the current front event;
// accepting (true) removes that event from the queue, declining (false)
// just advances past that consumer. Each registered consumer is tried
// at most once this way, ever — once every consumer has been tried, the
// list is cleared and the cursor resets, so a later Post starts fresh.
// Grounded on original_source/src/modules/event_manager.cpp's
// try_unqueue, including its locking discipline: m.mu must already be
// held, and is held for the duration of every consumer call here, so a
// consumer must never call back into this Manager synchronously.
func (m *Manager) matchConsumersLocked() {
	for len(m.queue) > 0 && m.consumerCursor < len(m.consumers) {
		consumer := m.consumers[m.consumerCursor]
		m.consumerCursor++
		if consumer(m.queue[0]) {
			m.queue = m.queue[1:]
		}
	}
	if m.consumerCursor > 0 && m.consumerCursor == len(m.consumers) {
		m.consumers = nil
		m.consumerCursor = 0
	}
}

// Wait blocks until an event is posted or the Manager is closed, or ctx
// is done. It returns (nil, false) in the latter two cases.
func (m *Manager) Wait(ctx context.Context) (*Event, bool) {
	return m.WaitUntil(ctx, time.Time{})
}

// WaitUntil is Wait with a deadline. A zero deadline means no deadline.
//
// A (nil, false) return does not by itself mean the Manager has been
// closed: it can also mean ctx was done or the deadline passed. Callers
// that need to distinguish these should check ctx.Err() and the deadline
// themselves, or call Closed.
func (m *Manager) WaitUntil(ctx context.Context, deadline time.Time) (*Event, bool) {
	stop := make(chan struct{})
	defer close(stop)

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				m.cond.Broadcast()
			case <-stop:
			}
		}()
	}

	var timer *time.Timer
	if !deadline.IsZero() {
		timer = time.AfterFunc(time.Until(deadline), func() { m.cond.Broadcast() })
		defer timer.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if len(m.queue) > 0 {
			e := m.queue[0]
			m.queue = m.queue[1:]
			m.metrics.ObserveQueueDepth(len(m.queue))
			return e, true
		}
		if m.closed {
			return nil, false
		}
		if ctx != nil && ctx.Err() != nil {
			return nil, false
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, false
		}
		m.cond.Wait()
	}
}

// Closed reports whether the Manager has been closed.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// WaitRegister invokes consumer with the next event that becomes
// available, synchronously if one is already queued, or otherwise from
// whichever goroutine next calls Post or Close. consumer returns true to
// accept the event (consuming it) or false to decline, leaving it queued
// for another consumer or waiter; per spec.md §4.5 it is invoked exactly
// once regardless of which it returns. It never blocks the caller.
//
// If the queue is already non-empty, consumer is tried against the
// literal front event only, bypassing any other consumers still waiting
// their turn in the cursor (matching
// original_source/src/modules/event_manager.cpp's wait_event(callback)):
// a decline here leaves both the event and the other pending consumers
// untouched. Only when the queue is empty is consumer appended to the
// cursor-ordered list that Post's matchConsumersLocked drains.
func (m *Manager) WaitRegister(consumer func(*Event) bool) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		e := m.queue[0]
		if consumer(e) {
			m.queue = m.queue[1:]
		}
		depth := len(m.queue)
		m.mu.Unlock()
		m.metrics.ObserveQueueDepth(depth)
		return
	}
	if m.closed {
		m.mu.Unlock()
		consumer(nil)
		return
	}
	m.consumers = append(m.consumers, consumer)
	m.mu.Unlock()
}

// Close marks the Manager closed: every blocked Wait/WaitUntil call
// returns (nil, false), every pending WaitRegister consumer is invoked
// with nil, and every subsequent Post fails with Closed. Close is
// idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.consumers[m.consumerCursor:]
	m.consumers = nil
	m.consumerCursor = 0
	m.mu.Unlock()

	m.cond.Broadcast()
	for _, consumer := range pending {
		consumer(nil)
	}
}

// RecentDispatches returns the Manager's most recent handler dispatches,
// oldest first, for diagnostics and tests.
func (m *Manager) RecentDispatches() []DispatchRecord {
	return m.diagnostics.Recent()
}

func identityLabel(id EventIdentity) string {
	if !id.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%s#%d", id.Origin().String(), id.Ordinal())
}

// HandleAs dispatches every handler connected to id, in priority order,
// against e. currentID is set to id for the duration and restored
// afterwards. A handler returning a non-nil error aborts the remaining
// handlers in this chain and propagates to the caller; a handler panic is
// never recovered, since handlers run synchronously on the caller's own
// goroutine.
func (m *Manager) HandleAs(e *Event, id EventIdentity) error {
	if !id.IsValid() {
		return newError(InvalidIdentity, "cannot handle the invalid identity")
	}

	prev := e.setCurrentID(id)
	defer e.setCurrentID(prev)

	for _, entry := range m.registry.snapshot(id) {
		start := time.Now()
		err := entry.handler(e)
		duration := time.Since(start)

		m.metrics.ObserveDispatch(identityLabel(id), int(entry.priority), duration, err != nil)
		m.diagnostics.record(id, entry.priority, duration, err)

		if err != nil {
			m.logger.Debug("handler returned error",
				zap.String("manager_id", m.ID),
				zap.String("identity", identityLabel(id)),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// Handle runs e through the full nested dispatch loop described in
// spec.md §4.5: BeginHandling is queued first, the identity queue is
// drained one HandleAs call per pending identity, FinishingHandling runs
// whenever the queue empties (repeating if handlers refill it), and
// FinishedHandling runs exactly once after a FinishingHandling pass finds
// the queue empty both before and after. Once Handle returns
// successfully, every event attached via Afterwards is prepended to the
// front of the main queue, in order, so they run before whatever was
// already sitting behind e — see postAfterwardsFront.
func (m *Manager) Handle(e *Event) error {
	e.ids = insertIDs(e.ids, []EventIdentity{BeginHandling}, Front)

	if err := m.drain(e); err != nil {
		return err
	}

	return m.postAfterwardsFront(e.takeAfterwards())
}

// postAfterwardsFront splices events onto the front of the main queue, in
// order, ahead of whatever is already queued. spec.md §4.5 step 5 and §5
// both specify that events attached via Afterwards run before any event
// already sitting behind the current one; scenario S6 asserts the exact
// ordering. Grounded on
// original_source/src/modules/event_manager.cpp's handle(), which splices
// handle_afterwards onto impl_->queue via std::front_inserter (reversed,
// since front_inserter prepends one at a time) before running try_unqueue.
func (m *Manager) postAfterwardsFront(events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil {
			return newError(NilEvent, "cannot queue a nil afterwards event")
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return newError(Closed, "manager is closed")
	}

	m.queue = append(append(make([]*Event, 0, len(events)+len(m.queue)), events...), m.queue...)
	m.matchConsumersLocked()
	depth := len(m.queue)
	m.mu.Unlock()

	m.metrics.ObserveQueueDepth(depth)
	m.cond.Broadcast()
	return nil
}

func (m *Manager) drain(e *Event) error {
	for {
		for {
			id := e.PopNext()
			if !id.IsValid() {
				break
			}
			if err := m.HandleAs(e, id); err != nil {
				return err
			}
		}

		if err := m.HandleAs(e, FinishingHandling); err != nil {
			return err
		}
		if len(e.ids) == 0 {
			break
		}
	}

	return m.HandleAs(e, FinishedHandling)
}
