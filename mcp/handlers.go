package mcp

import (
	"encoding/json"

	"github.com/praxiomlabs/mcpkit/task"
)

// ToolHandler backs the tools/list and tools/call methods.
type ToolHandler interface {
	ListTools(ctx *Context, cursor string) (tools []Tool, nextCursor string, err error)
	CallTool(ctx *Context, name string, arguments json.RawMessage) (*ToolResult, error)
}

// ResourceHandler backs resources/list, resources/templates/list, and
// resources/read.
type ResourceHandler interface {
	ListResources(ctx *Context, cursor string) (resources []Resource, nextCursor string, err error)
	ListResourceTemplates(ctx *Context, cursor string) (templates []ResourceTemplate, nextCursor string, err error)
	ReadResource(ctx *Context, uri string) ([]ResourceContents, error)
}

// ResourceSubscriber optionally extends a ResourceHandler with
// resources/subscribe and resources/unsubscribe, an "optional
// subscribe/unsubscribe" note. A ResourceHandler that does not implement
// this interface causes those two methods to fail as not-found even
// though the resources capability itself is advertised.
type ResourceSubscriber interface {
	Subscribe(ctx *Context, uri string) error
	Unsubscribe(ctx *Context, uri string) error
}

// PromptHandler backs prompts/list and prompts/get.
type PromptHandler interface {
	ListPrompts(ctx *Context, cursor string) (prompts []Prompt, nextCursor string, err error)
	GetPrompt(ctx *Context, name string, arguments map[string]string) ([]PromptMessage, error)
}

// TaskHandler backs tasks/list, tasks/get, and tasks/cancel. DefaultTaskHandler
// adapts a *task.Manager to this interface; most servers should register
// that rather than writing their own.
type TaskHandler interface {
	ListTasks(ctx *Context) ([]task.Snapshot, error)
	GetTask(ctx *Context, id string) (task.Snapshot, error)
	CancelTask(ctx *Context, id string) error
}

// CompletionHandler backs completion/complete for both resource URIs and
// prompt arguments.
type CompletionHandler interface {
	CompleteResource(ctx *Context, uriTemplate, argName, value string) ([]string, error)
	CompletePrompt(ctx *Context, promptName, argName, value string) ([]string, error)
}

// LoggingHandler backs logging/setLevel.
type LoggingHandler interface {
	SetLevel(ctx *Context, level LogLevel) error
}

// SamplingHandler is registered by a client to answer a server's
// sampling/createMessage requests.
type SamplingHandler interface {
	CreateMessage(ctx *Context, req SamplingRequest) (SamplingResult, error)
}

// ElicitationHandler is registered by a client to answer a server's
// elicitation/create requests.
type ElicitationHandler interface {
	Elicit(ctx *Context, req ElicitationRequest) (ElicitationResult, error)
}
