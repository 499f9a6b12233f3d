package task

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/praxiomlabs/mcpkit/cancel"
)

// ErrNotFound is returned by Manager.Cancel for an unknown task id; callers
// at the protocol boundary map this to an invalid-params error.
var ErrNotFound = errors.New("task: not found")

// Manager owns the table of in-flight and recently-completed tasks. The
// table is protected by a single RWMutex: writers (Create/Cancel/handle
// mutations) take the write lock briefly; readers (Get/List) take the
// read lock and copy out snapshots.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewManager returns an empty task table.
func NewManager() *Manager {
	return &Manager{tasks: make(map[string]*Task)}
}

// Create mints a new task in Pending status and returns a Handle the
// caller's tool implementation uses to report progress and completion.
func (m *Manager) Create(toolName string) *Handle {
	now := time.Now()
	t := &Task{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		ToolName:    toolName,
		CreatedAt:   now,
		UpdatedAt:   now,
		cancelToken: cancel.New(),
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	return &Handle{manager: m, id: t.ID}
}

// Get returns a snapshot of the task named by id.
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(), true
}

// List returns snapshots of every task currently tracked, in no
// particular order.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshot())
	}
	return out
}

// Cancel transitions the named task to Cancelled and fires its
// cancellation token. Idempotent if the task is already Cancelled; fails
// ErrNotFound for an unknown id, and is a silent no-op for a task already
// in some other terminal status — Status.Terminal() is a one-way gate.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return nil
	}
	t.Status = StatusCancelled
	t.UpdatedAt = time.Now()
	t.cancelToken.Cancel()
	return nil
}

// Cleanup evicts every task whose status is terminal and whose UpdatedAt
// is older than maxAge, returning the count removed.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, t := range m.tasks {
		if t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// Handle is the write side of a task, held by the tool implementation
// that created it. It names its task only by id, so it never aliases the
// manager's internal record directly.
type Handle struct {
	manager *Manager
	id      string
}

// ID is the task's UUID.
func (h *Handle) ID() string { return h.id }

func (h *Handle) mutate(fn func(t *Task)) {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	t, ok := h.manager.tasks[h.id]
	if !ok || t.Status.Terminal() {
		return
	}
	fn(t)
	t.UpdatedAt = time.Now()
}

// Running transitions the task from Pending to Running.
func (h *Handle) Running() {
	h.mutate(func(t *Task) {
		if t.Status == StatusPending {
			t.Status = StatusRunning
		}
	})
}

// Progress updates the task's progress fields. It is a no-op on a
// terminal task.
func (h *Handle) Progress(current int64, total *int64, message *string) {
	h.mutate(func(t *Task) {
		t.Progress = Progress{Current: current, Total: total, Message: message}
	})
}

// Complete transitions the task to Completed with the given result.
func (h *Handle) Complete(result json.RawMessage) {
	h.mutate(func(t *Task) {
		t.Status = StatusCompleted
		t.Result = result
	})
}

// Error transitions the task to Failed with the given message.
func (h *Handle) Error(message string) {
	h.mutate(func(t *Task) {
		t.Status = StatusFailed
		t.Error = &Error{Message: message}
	})
}

// IsCancelled reports whether this task's cancellation token has fired.
// Only Manager.Cancel fires it; a request-level notifications/cancelled
// fires that request's own token, not this one.
func (h *Handle) IsCancelled() bool {
	h.manager.mu.RLock()
	defer h.manager.mu.RUnlock()
	t, ok := h.manager.tasks[h.id]
	if !ok {
		return false
	}
	return t.cancelToken.IsCancelled()
}

// Cancelled returns a channel that closes when this task is cancelled.
func (h *Handle) Cancelled() <-chan struct{} {
	h.manager.mu.RLock()
	defer h.manager.mu.RUnlock()
	t, ok := h.manager.tasks[h.id]
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.cancelToken.Done()
}
