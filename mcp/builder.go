package mcp

import (
	"github.com/pkg/errors"

	"github.com/praxiomlabs/mcpkit/transport"
)

// Builder assembles a Server's handler bundle and advertised capabilities.
// It enforces a single-registration-per-capability rule at
// construction time: calling a With* method twice for the same capability
// is recorded as a build error rather than silently overwriting the first
// registration, so a misconfigured server fails fast in Build rather than
// serving a capability it only half-registered.
type Builder struct {
	info Implementation

	tools      ToolHandler
	resources  ResourceHandler
	prompts    PromptHandler
	tasks      TaskHandler
	completion CompletionHandler
	logging    LoggingHandler

	toolsListChanged     bool
	resourcesSubscribe   bool
	resourcesListChanged bool
	promptsListChanged   bool
	tasksCancellable     bool

	err error
}

// NewBuilder starts a Builder for a server identifying itself as name/version.
func NewBuilder(name, version string) *Builder {
	return &Builder{info: Implementation{Name: name, Version: version}}
}

func (b *Builder) fail(capability string) {
	if b.err == nil {
		b.err = errors.Errorf("mcp: %s handler already registered", capability)
	}
}

// WithTools registers h as the tool handler and advertises the tools
// capability, with listChanged marking whether the tool list can change
// after the handshake.
func (b *Builder) WithTools(h ToolHandler, listChanged bool) *Builder {
	if b.tools != nil {
		b.fail("tools")
		return b
	}
	b.tools = h
	b.toolsListChanged = listChanged
	return b
}

// WithResources registers h as the resource handler and advertises the
// resources capability. subscribe should reflect whether h also implements
// ResourceSubscriber.
func (b *Builder) WithResources(h ResourceHandler, subscribe, listChanged bool) *Builder {
	if b.resources != nil {
		b.fail("resources")
		return b
	}
	b.resources = h
	b.resourcesSubscribe = subscribe
	b.resourcesListChanged = listChanged
	return b
}

// WithPrompts registers h as the prompt handler and advertises the prompts
// capability.
func (b *Builder) WithPrompts(h PromptHandler, listChanged bool) *Builder {
	if b.prompts != nil {
		b.fail("prompts")
		return b
	}
	b.prompts = h
	b.promptsListChanged = listChanged
	return b
}

// WithTasks registers h as the task handler and advertises the tasks
// capability.
func (b *Builder) WithTasks(h TaskHandler, cancellable bool) *Builder {
	if b.tasks != nil {
		b.fail("tasks")
		return b
	}
	b.tasks = h
	b.tasksCancellable = cancellable
	return b
}

// WithCompletion registers h as the completion handler and advertises the
// completions capability.
func (b *Builder) WithCompletion(h CompletionHandler) *Builder {
	if b.completion != nil {
		b.fail("completion")
		return b
	}
	b.completion = h
	return b
}

// WithLogging registers h as the logging handler and advertises the
// logging capability.
func (b *Builder) WithLogging(h LoggingHandler) *Builder {
	if b.logging != nil {
		b.fail("logging")
		return b
	}
	b.logging = h
	return b
}

func (b *Builder) capabilities() ServerCapabilities {
	var caps ServerCapabilities
	if b.tools != nil {
		caps.Tools = &ToolsCapability{ListChanged: b.toolsListChanged}
	}
	if b.resources != nil {
		caps.Resources = &ResourcesCapability{Subscribe: b.resourcesSubscribe, ListChanged: b.resourcesListChanged}
	}
	if b.prompts != nil {
		caps.Prompts = &PromptsCapability{ListChanged: b.promptsListChanged}
	}
	if b.tasks != nil {
		caps.Tasks = &TasksCapability{Cancellable: b.tasksCancellable}
	}
	if b.completion != nil {
		caps.Completions = &struct{}{}
	}
	if b.logging != nil {
		caps.Logging = &struct{}{}
	}
	return caps
}

func (b *Builder) handlerSet() handlerSet {
	return handlerSet{
		Tools:      b.tools,
		Resources:  b.resources,
		Prompts:    b.prompts,
		Tasks:      b.tasks,
		Completion: b.completion,
		Logging:    b.logging,
	}
}

// Build finalizes the handler bundle against tr, applying opts, and
// returns the ready-to-Serve Server. It fails if any With* method was
// called more than once for its capability.
func (b *Builder) Build(tr transport.Transport, opts ...ServerOption) (*Server, error) {
	if b.err != nil {
		return nil, b.err
	}

	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	eng := newEngine(tr, false, b.info, cfg.logger, cfg.concurrency)
	caps := b.capabilities()
	eng.serverCapsFn = func() ServerCapabilities { return caps }
	eng.setRouter(newRouter(b.handlerSet(), eng.sess))

	return &Server{eng: eng, builder: b}, nil
}
