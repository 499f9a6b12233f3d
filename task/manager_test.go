package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStartsPending(t *testing.T) {
	m := NewManager()
	h := m.Create("divide")

	snap, ok := m.Get(h.ID())
	require.True(t, ok)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, "divide", snap.ToolName)
}

func TestHandleLifecycleToCompleted(t *testing.T) {
	m := NewManager()
	h := m.Create("divide")

	h.Running()
	total := int64(100)
	h.Progress(25, &total, nil)
	h.Complete([]byte(`{"ok":true}`))

	snap, ok := m.Get(h.ID())
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, int64(25), snap.Progress.Current)
	assert.JSONEq(t, `{"ok":true}`, string(snap.Result))
}

func TestErrorIsNoopAfterComplete(t *testing.T) {
	m := NewManager()
	h := m.Create("divide")
	h.Complete([]byte(`1`))
	h.Error("too late")

	snap, _ := m.Get(h.ID())
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestCancelIsIdempotentAndFiresToken(t *testing.T) {
	m := NewManager()
	h := m.Create("divide")

	require.NoError(t, m.Cancel(h.ID()))
	require.NoError(t, m.Cancel(h.ID()))

	assert.True(t, h.IsCancelled())
	select {
	case <-h.Cancelled():
	default:
		t.Fatal("expected cancellation channel to be closed")
	}

	snap, _ := m.Get(h.ID())
	assert.Equal(t, StatusCancelled, snap.Status)
}

func TestCancelUnknownIDFails(t *testing.T) {
	m := NewManager()
	err := m.Cancel("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsAllTasks(t *testing.T) {
	m := NewManager()
	m.Create("a")
	m.Create("b")
	assert.Len(t, m.List(), 2)
}

func TestCleanupEvictsOldTerminalTasks(t *testing.T) {
	m := NewManager()
	h := m.Create("a")
	h.Complete(nil)

	removed := m.Cleanup(0)
	assert.Equal(t, 1, removed)

	_, ok := m.Get(h.ID())
	assert.False(t, ok)
}

func TestCleanupKeepsRecentTerminalTasks(t *testing.T) {
	m := NewManager()
	h := m.Create("a")
	h.Complete(nil)

	removed := m.Cleanup(time.Hour)
	assert.Equal(t, 0, removed)

	_, ok := m.Get(h.ID())
	assert.True(t, ok)
}

func TestCleanupKeepsNonTerminalTasks(t *testing.T) {
	m := NewManager()
	h := m.Create("a")

	removed := m.Cleanup(0)
	assert.Equal(t, 0, removed)

	_, ok := m.Get(h.ID())
	assert.True(t, ok)
}
