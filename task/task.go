// Package task implements the long-running operation table: creation,
// status transitions, progress reporting, and cancellation, following
// original_source's crates/mcpkit-core/src/types/task.rs and
// crates/mcp-server/src/capability/tasks.rs, re-expressed with a
// sync.RWMutex-guarded map and channel-based cancellation.
package task

import (
	"encoding/json"
	"time"

	"github.com/praxiomlabs/mcpkit/cancel"
)

// Status is a task's position in its one-way state machine:
//
//	Pending -> Running -> {Completed, Failed, Cancelled}
//
// Pending -> Cancelled is also legal (cancel before the handler starts).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is one of the statuses a task never leaves.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Progress is the current/total/message triple a handle reports while a
// task runs.
type Progress struct {
	Current int64   `json:"current"`
	Total   *int64  `json:"total,omitempty"`
	Message *string `json:"message,omitempty"`
}

// Percentage reports Current/Total as a fraction in [0, 1], saturating at
// 1.0 and treating a zero Total as already complete. If Total is unset the
// fraction is indeterminate and Percentage reports 0.
func (p Progress) Percentage() float64 {
	if p.Total == nil {
		return 0
	}
	if *p.Total <= 0 {
		return 1.0
	}
	pct := float64(p.Current) / float64(*p.Total)
	if pct > 1.0 {
		return 1.0
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Error is the structured failure recorded on a Failed task.
type Error struct {
	Message string `json:"message"`
}

// Task is one long-running operation's mutable record. Callers never see
// a *Task directly; the manager hands out Snapshot copies and Handle
// wrappers instead, so a reader can't race the manager's own mutations.
type Task struct {
	ID        string
	Status    Status
	ToolName  string
	Progress  Progress
	Result    json.RawMessage
	Error     *Error
	CreatedAt time.Time
	UpdatedAt time.Time

	cancelToken *cancel.Token
}

// Snapshot is an immutable point-in-time copy of a Task, safe to hand to
// caller code without aliasing the manager's internal record.
type Snapshot struct {
	ID        string          `json:"id"`
	Status    Status          `json:"status"`
	ToolName  string          `json:"toolName,omitempty"`
	Progress  Progress        `json:"progress"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (t *Task) snapshot() Snapshot {
	return Snapshot{
		ID:        t.ID,
		Status:    t.Status,
		ToolName:  t.ToolName,
		Progress:  t.Progress,
		Result:    t.Result,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
