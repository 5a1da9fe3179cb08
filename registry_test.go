package slirc

import (
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/require"
)

type pingEvent Ordinal

const pingFired pingEvent = iota

func init() {
	RegisterIdentityType[pingEvent]()
}

func TestConnectRejectsInvalidIdentity(t *testing.T) {
	r := NewHandlerRegistry()
	_, err := r.Connect(Invalid(), func(*Event) error { return nil }, Normal)
	require.True(t, stderrors.Is(err, ErrInvalidIdentity))
}

func TestHandlersDispatchInPriorityOrder(t *testing.T) {
	r := NewHandlerRegistry()
	id := MustMakeIdentity(pingFired)

	var order []string
	record := func(name string) Handler {
		return func(*Event) error {
			order = append(order, name)
			return nil
		}
	}

	_, err := r.Connect(id, record("normal"), Normal)
	require.NoError(t, err)
	_, err = r.Connect(id, record("low"), Low)
	require.NoError(t, err)
	_, err = r.Connect(id, record("high"), High)
	require.NoError(t, err)

	for _, entry := range r.snapshot(id) {
		require.NoError(t, entry.handler(nil))
	}
	require.Equal(t, []string{"high", "normal", "low"}, order)
}

func TestFirstPriorityIsLIFO(t *testing.T) {
	r := NewHandlerRegistry()
	id := MustMakeIdentity(pingFired)

	var order []string
	record := func(name string) Handler {
		return func(*Event) error {
			order = append(order, name)
			return nil
		}
	}

	_, err := r.Connect(id, record("first-a"), First)
	require.NoError(t, err)
	_, err = r.Connect(id, record("first-b"), First)
	require.NoError(t, err)
	_, err = r.Connect(id, record("normal"), Normal)
	require.NoError(t, err)

	for _, entry := range r.snapshot(id) {
		require.NoError(t, entry.handler(nil))
	}
	require.Equal(t, []string{"first-b", "first-a", "normal"}, order)
}

func TestTiesOutsideFirstAreFIFO(t *testing.T) {
	r := NewHandlerRegistry()
	id := MustMakeIdentity(pingFired)

	var order []string
	record := func(name string) Handler {
		return func(*Event) error {
			order = append(order, name)
			return nil
		}
	}

	_, err := r.Connect(id, record("a"), Normal)
	require.NoError(t, err)
	_, err = r.Connect(id, record("b"), Normal)
	require.NoError(t, err)
	_, err = r.Connect(id, record("c"), Normal)
	require.NoError(t, err)

	for _, entry := range r.snapshot(id) {
		require.NoError(t, entry.handler(nil))
	}
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestConnectionDisconnectIsIdempotent(t *testing.T) {
	r := NewHandlerRegistry()
	id := MustMakeIdentity(pingFired)

	conn, err := r.Connect(id, func(*Event) error { return nil }, Normal)
	require.NoError(t, err)
	require.True(t, conn.Connected())

	conn.Disconnect()
	require.False(t, conn.Connected())
	require.Len(t, r.snapshot(id), 0)

	conn.Disconnect() // no-op, must not panic
	require.False(t, conn.Connected())
}

func TestDisconnectingOneOfTwoIdenticalHandlersLeavesTheOther(t *testing.T) {
	r := NewHandlerRegistry()
	id := MustMakeIdentity(pingFired)

	var calls int
	handler := func(*Event) error {
		calls++
		return nil
	}

	connA, err := r.Connect(id, handler, Normal)
	require.NoError(t, err)
	_, err = r.Connect(id, handler, Normal)
	require.NoError(t, err)

	connA.Disconnect()
	require.Len(t, r.snapshot(id), 1)
}

func TestConnectionLess(t *testing.T) {
	r := NewHandlerRegistry()
	id := MustMakeIdentity(pingFired)

	a, err := r.Connect(id, func(*Event) error { return nil }, Normal)
	require.NoError(t, err)
	b, err := r.Connect(id, func(*Event) error { return nil }, Normal)
	require.NoError(t, err)

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}
