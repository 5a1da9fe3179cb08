package slirc

import (
	"testing"

	stderrors "errors"

	gutils "github.com/Laisky/go-utils"
	"github.com/stretchr/testify/require"
)

type receivedData struct {
	Base[receivedData]
	Data string
}

type verboseReceivedData struct {
	receivedData
	RawLine string
}

func TestInsertAndAt(t *testing.T) {
	c := NewComponentContainer()

	_, err := Insert(c, receivedData{Data: "hello"})
	require.NoError(t, err)

	_, err = Insert(c, receivedData{Data: "again"})
	require.True(t, stderrors.Is(err, ErrComponentConflict))

	got, err := At[receivedData](c)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Data)
}

func TestAtOnEmptySlot(t *testing.T) {
	c := NewComponentContainer()
	_, err := At[receivedData](c)
	require.True(t, stderrors.Is(err, ErrNotFound))
}

func TestFindAndHas(t *testing.T) {
	c := NewComponentContainer()
	require.False(t, Has[receivedData](c))

	_, ok := Find[receivedData](c)
	require.False(t, ok)

	_, err := Insert(c, receivedData{Data: "x"})
	require.NoError(t, err)
	require.True(t, Has[receivedData](c))
}

func TestDerivedComponentViewableAsBase(t *testing.T) {
	c := NewComponentContainer()
	_, err := Insert(c, verboseReceivedData{
		receivedData: receivedData{Data: "PING"},
		RawLine:      "PING :server\r\n",
	})
	require.NoError(t, err)

	base, err := At[receivedData](c)
	require.NoError(t, err)
	require.Equal(t, "PING", base.Data)

	derived, err := At[verboseReceivedData](c)
	require.NoError(t, err)
	require.Equal(t, "PING :server\r\n", derived.RawLine)
}

func TestAtOrInsert(t *testing.T) {
	c := NewComponentContainer()

	first, err := AtOrInsert(c, receivedData{Data: "default"})
	require.NoError(t, err)
	require.Equal(t, "default", first.Data)

	second, err := AtOrInsert(c, receivedData{Data: "ignored"})
	require.NoError(t, err)
	require.Equal(t, "default", second.Data)
}

func TestAtOrInsertAs(t *testing.T) {
	c := NewComponentContainer()

	view, err := AtOrInsertAs[receivedData](c, verboseReceivedData{
		receivedData: receivedData{Data: "JOIN"},
		RawLine:      "JOIN #go\r\n",
	})
	require.NoError(t, err)
	require.Equal(t, "JOIN", view.Data)

	derived, err := At[verboseReceivedData](c)
	require.NoError(t, err)
	require.Equal(t, "JOIN #go\r\n", derived.RawLine)
}

type unrelatedBase struct {
	Base[unrelatedBase]
}

func TestAtOrInsertAsPanicsOnMismatchedBase(t *testing.T) {
	c := NewComponentContainer()
	ok := gutils.IsPanic(func() {
		AtOrInsertAs[receivedData](c, unrelatedBase{})
	})
	require.True(t, ok)
}

func TestRemove(t *testing.T) {
	c := NewComponentContainer()

	removed, err := Remove[receivedData](c)
	require.NoError(t, err)
	require.False(t, removed)

	_, err = Insert(c, receivedData{Data: "x"})
	require.NoError(t, err)

	removed, err = Remove[receivedData](c)
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, Has[receivedData](c))
}

func TestRemoveIncompatibleOccupantLeftUntouched(t *testing.T) {
	c := NewComponentContainer()
	_, err := Insert(c, verboseReceivedData{receivedData: receivedData{Data: "x"}})
	require.NoError(t, err)

	type otherDerived struct {
		receivedData
		Extra int
	}

	removed, err := Remove[otherDerived](c)
	require.True(t, stderrors.Is(err, ErrComponentConflict))
	require.False(t, removed)
	require.True(t, Has[verboseReceivedData](c))
}
