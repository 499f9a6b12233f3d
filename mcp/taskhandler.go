package mcp

import (
	"github.com/pkg/errors"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/task"
)

// DefaultTaskHandler adapts a *task.Manager to the TaskHandler interface.
// Pass it to Builder.WithTasks when tool implementations use the same
// Manager to create and drive their own tasks.
type DefaultTaskHandler struct {
	Manager *task.Manager
}

// NewDefaultTaskHandler wraps m as a TaskHandler.
func NewDefaultTaskHandler(m *task.Manager) *DefaultTaskHandler {
	return &DefaultTaskHandler{Manager: m}
}

func (h *DefaultTaskHandler) ListTasks(_ *Context) ([]task.Snapshot, error) {
	return h.Manager.List(), nil
}

func (h *DefaultTaskHandler) GetTask(_ *Context, id string) (task.Snapshot, error) {
	snap, ok := h.Manager.Get(id)
	if !ok {
		return task.Snapshot{}, errors.Wrapf(task.ErrNotFound, "task %s", id)
	}
	return snap, nil
}

func (h *DefaultTaskHandler) CancelTask(_ *Context, id string) error {
	if err := h.Manager.Cancel(id); err != nil {
		return errors.Wrapf(err, "task %s", id)
	}
	return nil
}

// taskErrorToRPC maps a TaskHandler error rooted in task.ErrNotFound to the
// InvalidParams taxonomy's "unknown task id" rule; any other error is
// treated as an internal failure by the router.
func taskErrorToRPC(method string, err error) *jsonrpc.ErrorObject {
	if errors.Is(err, task.ErrNotFound) {
		return jsonrpc.NewInvalidParamsError(method, "id", "", "unknown task id")
	}
	return jsonrpc.NewError(jsonrpc.CodeInternal, err.Error(), nil)
}
