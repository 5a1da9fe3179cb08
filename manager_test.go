package slirc

import (
	"context"
	"testing"
	"time"

	stderrors "errors"

	"github.com/stretchr/testify/require"
)

type botEvent Ordinal

const (
	botConnected botEvent = iota
	botLine
	botDisconnected
)

func init() {
	RegisterIdentityType[botEvent]()
}

func TestHandleAsDispatchesConnectedHandlers(t *testing.T) {
	ctx := newTestContext(t)
	id := MustMakeIdentity(botLine)

	var got string
	_, err := ctx.EventManager().Connect(id, func(e *Event) error {
		got = "handled"
		require.Equal(t, id, e.CurrentID())
		return nil
	}, Normal)
	require.NoError(t, err)

	e, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	require.NoError(t, ctx.EventManager().HandleAs(e, id))
	require.Equal(t, "handled", got)
}

func TestHandleAsAbortsChainOnHandlerError(t *testing.T) {
	ctx := newTestContext(t)
	id := MustMakeIdentity(botLine)

	var secondRan bool
	_, err := ctx.EventManager().Connect(id, func(*Event) error {
		return newError(NotFound, "boom")
	}, High)
	require.NoError(t, err)
	_, err = ctx.EventManager().Connect(id, func(*Event) error {
		secondRan = true
		return nil
	}, Low)
	require.NoError(t, err)

	e, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	err = ctx.EventManager().HandleAs(e, id)
	require.True(t, stderrors.Is(err, ErrNotFound))
	require.False(t, secondRan)
}

func TestHandleRunsBeginFinishingFinished(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	var seen []EventIdentity
	record := func(id EventIdentity) {
		_, err := manager.Connect(id, func(*Event) error {
			seen = append(seen, id)
			return nil
		}, Normal)
		require.NoError(t, err)
	}
	record(BeginHandling)
	record(FinishingHandling)
	record(FinishedHandling)

	origin := MustMakeIdentity(botConnected)
	record(origin)

	e, err := ctx.MakeEvent(origin)
	require.NoError(t, err)
	require.NoError(t, manager.Handle(e))

	require.Equal(t, []EventIdentity{BeginHandling, origin, FinishingHandling, FinishedHandling}, seen)
}

func TestHandleRepeatsFinishingHandlingUntilDry(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	origin := MustMakeIdentity(botConnected)
	line := MustMakeIdentity(botLine)

	var finishingCalls int
	_, err := manager.Connect(FinishingHandling, func(e *Event) error {
		finishingCalls++
		if finishingCalls == 1 {
			e.QueueAs(line, Duplicate, Back)
		}
		return nil
	}, Normal)
	require.NoError(t, err)

	e, err := ctx.MakeEvent(origin)
	require.NoError(t, err)
	require.NoError(t, manager.Handle(e))
	require.Equal(t, 2, finishingCalls)
}

func TestHandlePostsAfterwardsEvents(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	origin := MustMakeIdentity(botConnected)
	follow := MustMakeIdentity(botDisconnected)

	e, err := ctx.MakeEvent(origin)
	require.NoError(t, err)
	followEvt, err := ctx.MakeEvent(follow)
	require.NoError(t, err)
	require.NoError(t, e.Afterwards(followEvt))

	require.NoError(t, manager.Handle(e))

	posted, ok := manager.Wait(context.Background())
	require.True(t, ok)
	require.Same(t, followEvt, posted)
}

// TestHandlePrependsAfterwardsEventsAheadOfQueue exercises scenario S6:
// with the main queue already holding e2, and e1.Afterwards(f1) /
// e1.Afterwards(f2) both attached, Handle(e1) must leave the queue as
// [f1, f2, e2] — f1 and f2 spliced onto the front in attachment order,
// ahead of whatever was already queued, not appended behind it.
func TestHandlePrependsAfterwardsEventsAheadOfQueue(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	id := MustMakeIdentity(botConnected)

	e1, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	e2, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	f1, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	f2, err := ctx.MakeEvent(id)
	require.NoError(t, err)

	require.NoError(t, manager.Post(e2))
	require.NoError(t, e1.Afterwards(f1))
	require.NoError(t, e1.Afterwards(f2))

	require.NoError(t, manager.Handle(e1))

	var order []*Event
	for i := 0; i < 3; i++ {
		got, ok := manager.Wait(context.Background())
		require.True(t, ok)
		order = append(order, got)
	}
	require.Equal(t, []*Event{f1, f2, e2}, order)
}

// TestConsumerMatchingPolicyAdvancesToNextConsumerOnDecline grounds
// spec.md §4.5's consumer matching policy directly against
// original_source/src/modules/event_manager.cpp's try_unqueue: when the
// first untried consumer declines the front event, the next untried
// consumer is tried against that same event within the same Post call,
// not left for a later one.
func TestConsumerMatchingPolicyAdvancesToNextConsumerOnDecline(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	id := MustMakeIdentity(botConnected)
	e1, err := ctx.MakeEvent(id)
	require.NoError(t, err)

	var firstSeen, secondSeen []*Event
	manager.WaitRegister(func(e *Event) bool {
		firstSeen = append(firstSeen, e)
		return false // always declines
	})
	manager.WaitRegister(func(e *Event) bool {
		secondSeen = append(secondSeen, e)
		return true // accepts whatever it is offered
	})

	require.NoError(t, manager.Post(e1))
	require.Equal(t, []*Event{e1}, firstSeen)
	require.Equal(t, []*Event{e1}, secondSeen, "decline must fall through to the next untried consumer in the same Post")

	// Both consumers were tried exactly once and the cursor reached the
	// end of the list, so it was cleared; a later Post must not re-invoke
	// either of them.
	e2, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	require.NoError(t, manager.Post(e2))
	require.Equal(t, []*Event{e1}, firstSeen)
	require.Equal(t, []*Event{e1}, secondSeen)

	got, ok := manager.Wait(context.Background())
	require.True(t, ok)
	require.Same(t, e2, got)
}

// TestConsumerDeclineLeavesEventQueuedWhenNoneAccept confirms that once
// every registered consumer has declined the same front event, the
// event itself is left in the queue for a later Wait/WaitRegister, and
// the exhausted consumer list is cleared rather than retried.
func TestConsumerDeclineLeavesEventQueuedWhenNoneAccept(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	id := MustMakeIdentity(botConnected)
	e1, err := ctx.MakeEvent(id)
	require.NoError(t, err)

	var calls int
	manager.WaitRegister(func(*Event) bool {
		calls++
		return false
	})

	require.NoError(t, manager.Post(e1))
	require.Equal(t, 1, calls)

	got, ok := manager.Wait(context.Background())
	require.True(t, ok)
	require.Same(t, e1, got, "an event every consumer declined must remain queued")

	e2, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	require.NoError(t, manager.Post(e2))
	require.Equal(t, 1, calls, "an exhausted consumer list must not be retried on a later Post")
}

// TestWaitRegisterBypassesCursorWhenQueueAlreadyNonEmpty matches
// original_source/src/modules/event_manager.cpp's wait_event(callback)
// fast path: a consumer registered against an already non-empty queue
// is tried against the front event directly and, if it declines, is
// simply discarded rather than added to the cursor-tried list.
func TestWaitRegisterBypassesCursorWhenQueueAlreadyNonEmpty(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	id := MustMakeIdentity(botConnected)
	e1, err := ctx.MakeEvent(id)
	require.NoError(t, err)

	require.NoError(t, manager.Post(e1))

	var calls int
	manager.WaitRegister(func(*Event) bool {
		calls++
		return false
	})
	require.Equal(t, 1, calls)

	got, ok := manager.Wait(context.Background())
	require.True(t, ok)
	require.Same(t, e1, got)

	// The declined consumer must not have been retained for a future Post.
	e2, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	require.NoError(t, manager.Post(e2))
	require.Equal(t, 1, calls)
}

func TestPostAndWait(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	e, err := ctx.MakeEvent(MustMakeIdentity(botConnected))
	require.NoError(t, err)
	require.NoError(t, manager.Post(e))

	got, ok := manager.Wait(context.Background())
	require.True(t, ok)
	require.Same(t, e, got)
}

func TestPostRejectsNilEvent(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	err := manager.Post(nil)
	require.True(t, stderrors.Is(err, ErrNilEvent))
}

func TestWaitUntilTimesOutWithoutClosing(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	_, ok := manager.WaitUntil(context.Background(), time.Now().Add(10*time.Millisecond))
	require.False(t, ok)
	require.False(t, manager.Closed())
}

func TestWaitUnblocksOnClose(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	done := make(chan bool, 1)
	go func() {
		_, ok := manager.Wait(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	manager.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Close")
	}
	require.True(t, manager.Closed())
}

func TestPostAfterCloseFails(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()
	manager.Close()

	e, err := ctx.MakeEvent(MustMakeIdentity(botConnected))
	require.NoError(t, err)
	err = manager.Post(e)
	require.True(t, stderrors.Is(err, ErrClosed))
}

func TestWaitRegisterDeliversQueuedEventImmediately(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	e, err := ctx.MakeEvent(MustMakeIdentity(botConnected))
	require.NoError(t, err)
	require.NoError(t, manager.Post(e))

	var got *Event
	manager.WaitRegister(func(delivered *Event) bool { got = delivered; return true })
	require.Same(t, e, got)
}

func TestWaitRegisterReceivesFuturePost(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	delivered := make(chan *Event, 1)
	manager.WaitRegister(func(e *Event) bool { delivered <- e; return true })

	e, err := ctx.MakeEvent(MustMakeIdentity(botConnected))
	require.NoError(t, err)
	require.NoError(t, manager.Post(e))

	select {
	case got := <-delivered:
		require.Same(t, e, got)
	case <-time.After(time.Second):
		t.Fatal("registered consumer was never invoked")
	}
}

func TestWaitRegisterInvokedWithNilOnClose(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()

	delivered := make(chan *Event, 1)
	manager.WaitRegister(func(e *Event) bool { delivered <- e; return true })
	manager.Close()

	select {
	case got := <-delivered:
		require.Nil(t, got)
	case <-time.After(time.Second):
		t.Fatal("registered consumer was never invoked on close")
	}
}

func TestRecentDispatchesRecordsHandlerInvocations(t *testing.T) {
	ctx := newTestContext(t)
	manager := ctx.EventManager()
	id := MustMakeIdentity(botLine)

	_, err := manager.Connect(id, func(*Event) error { return nil }, Normal)
	require.NoError(t, err)

	e, err := ctx.MakeEvent(id)
	require.NoError(t, err)
	require.NoError(t, manager.HandleAs(e, id))

	recent := manager.RecentDispatches()
	require.NotEmpty(t, recent)
	require.Equal(t, id, recent[len(recent)-1].Identity)
}
