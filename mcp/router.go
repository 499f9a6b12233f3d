package mcp

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
)

// capSide selects which side's advertised capabilities gate a method: a
// server-owned method (tools, resources, ...) is gated by ServerCapabilities,
// a client-owned method (sampling, elicitation) by ClientCapabilities —
// each side gates on what IT advertised to the peer.
type capSide int

const (
	sideServer capSide = iota
	sideClient
)

// handlerSet bundles every capability-scoped handler a Router may dispatch
// to; any field may be nil, meaning that capability is not registered.
type handlerSet struct {
	Tools       ToolHandler
	Resources   ResourceHandler
	Prompts     PromptHandler
	Tasks       TaskHandler
	Completion  CompletionHandler
	Logging     LoggingHandler
	Sampling    SamplingHandler
	Elicitation ElicitationHandler
}

type dispatchFunc func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject)

type methodSpec struct {
	capability string // must be advertised for Dispatch to accept the method; handshake methods are engine-owned and not listed
	side       capSide
	dispatch   dispatchFunc
}

// Router dispatches inbound requests to the registered handler bundle,
// gating each by the capability negotiated at handshake.
type Router struct {
	handlers handlerSet
	sess     *session
}

func newRouter(hs handlerSet, sess *session) *Router {
	return &Router{handlers: hs, sess: sess}
}

// Dispatch routes one inbound request's method + raw params to the
// matching handler, returning either a result value to serialize or an
// ErrorObject. Unknown methods and methods whose capability was not
// advertised both fail as MethodNotFound.
func (r *Router) Dispatch(ctx *Context, method string, params json.RawMessage) (result interface{}, rpcErr *jsonrpc.ErrorObject) {
	spec, ok := methodTable[method]
	if !ok {
		return nil, jsonrpc.NewMethodNotFoundError(method, suggestMethods(method))
	}

	var advertised bool
	switch spec.side {
	case sideServer:
		advertised = r.sess.ServerCapabilities().Has(spec.capability)
	case sideClient:
		advertised = r.sess.ClientCapabilities().Has(spec.capability)
	}
	if !advertised {
		return nil, jsonrpc.NewMethodNotFoundError(method, suggestMethods(method))
	}

	defer func() {
		if p := recover(); p != nil {
			rpcErr = jsonrpc.NewError(jsonrpc.CodeInternal, errors.Errorf("handler panic: %v", p).Error(), nil)
			result = nil
		}
	}()
	return spec.dispatch(r.handlers, ctx, params)
}

// IsRoutable reports whether method names a request this Router's table
// knows about at all (used by the engine to decide between "method not
// found" and a handshake-lifecycle check).
func IsRoutable(method string) bool {
	_, ok := methodTable[method]
	return ok
}

func decodeParams(params json.RawMessage, v interface{}) *jsonrpc.ErrorObject {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return jsonrpc.NewInvalidParamsError("", "", "", err.Error())
	}
	return nil
}

type cursorPage struct {
	Cursor string `json:"cursor,omitempty"`
}

type toolsListResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type resourcesListResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type resourceTemplatesListResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        string             `json:"nextCursor,omitempty"`
}

type resourceURIParams struct {
	URI string `json:"uri"`
}

type readResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

type promptsListResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type promptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type promptsGetResult struct {
	Messages []PromptMessage `json:"messages"`
}

type tasksListResult struct {
	Tasks interface{} `json:"tasks"`
}

type taskIDParams struct {
	ID string `json:"id"`
}

type completionRef struct {
	Type string `json:"type"`
	URI  string `json:"uri,omitempty"`
	Name string `json:"name,omitempty"`
}

type completionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type completeParams struct {
	Ref      completionRef      `json:"ref"`
	Argument completionArgument `json:"argument"`
}

type completionValues struct {
	Values []string `json:"values"`
}

type completeResult struct {
	Completion completionValues `json:"completion"`
}

type setLevelParams struct {
	Level LogLevel `json:"level"`
}

var methodTable = map[string]methodSpec{
	"tools/list": {capability: "tools", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Tools == nil {
			return nil, jsonrpc.NewMethodNotFoundError("tools/list", nil)
		}
		var p cursorPage
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		tools, next, ferr := hs.Tools.ListTools(ctx, p.Cursor)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return toolsListResult{Tools: tools, NextCursor: next}, nil
	}},
	"tools/call": {capability: "tools", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Tools == nil {
			return nil, jsonrpc.NewMethodNotFoundError("tools/call", nil)
		}
		var p toolsCallParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		res, ferr := hs.Tools.CallTool(ctx, p.Name, p.Arguments)
		if ferr != nil {
			return nil, jsonrpc.NewToolExecutionError(p.Name, ferr.Error(), false)
		}
		return res, nil
	}},
	"resources/list": {capability: "resources", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Resources == nil {
			return nil, jsonrpc.NewMethodNotFoundError("resources/list", nil)
		}
		var p cursorPage
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		resources, next, ferr := hs.Resources.ListResources(ctx, p.Cursor)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return resourcesListResult{Resources: resources, NextCursor: next}, nil
	}},
	"resources/templates/list": {capability: "resources", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Resources == nil {
			return nil, jsonrpc.NewMethodNotFoundError("resources/templates/list", nil)
		}
		var p cursorPage
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		templates, next, ferr := hs.Resources.ListResourceTemplates(ctx, p.Cursor)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return resourceTemplatesListResult{ResourceTemplates: templates, NextCursor: next}, nil
	}},
	"resources/read": {capability: "resources", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Resources == nil {
			return nil, jsonrpc.NewMethodNotFoundError("resources/read", nil)
		}
		var p resourceURIParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		contents, ferr := hs.Resources.ReadResource(ctx, p.URI)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.Code(-32002), ferr.Error(), map[string]string{"uri": p.URI})
		}
		return readResourceResult{Contents: contents}, nil
	}},
	"resources/subscribe": {capability: "resources", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		sub, ok := hs.Resources.(ResourceSubscriber)
		if hs.Resources == nil || !ok {
			return nil, jsonrpc.NewMethodNotFoundError("resources/subscribe", nil)
		}
		var p resourceURIParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if ferr := sub.Subscribe(ctx, p.URI); ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return struct{}{}, nil
	}},
	"resources/unsubscribe": {capability: "resources", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		sub, ok := hs.Resources.(ResourceSubscriber)
		if hs.Resources == nil || !ok {
			return nil, jsonrpc.NewMethodNotFoundError("resources/unsubscribe", nil)
		}
		var p resourceURIParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if ferr := sub.Unsubscribe(ctx, p.URI); ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return struct{}{}, nil
	}},
	"prompts/list": {capability: "prompts", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Prompts == nil {
			return nil, jsonrpc.NewMethodNotFoundError("prompts/list", nil)
		}
		var p cursorPage
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		prompts, next, ferr := hs.Prompts.ListPrompts(ctx, p.Cursor)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return promptsListResult{Prompts: prompts, NextCursor: next}, nil
	}},
	"prompts/get": {capability: "prompts", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Prompts == nil {
			return nil, jsonrpc.NewMethodNotFoundError("prompts/get", nil)
		}
		var p promptsGetParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		messages, ferr := hs.Prompts.GetPrompt(ctx, p.Name, p.Arguments)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return promptsGetResult{Messages: messages}, nil
	}},
	"tasks/list": {capability: "tasks", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Tasks == nil {
			return nil, jsonrpc.NewMethodNotFoundError("tasks/list", nil)
		}
		tasks, ferr := hs.Tasks.ListTasks(ctx)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return tasksListResult{Tasks: tasks}, nil
	}},
	"tasks/get": {capability: "tasks", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Tasks == nil {
			return nil, jsonrpc.NewMethodNotFoundError("tasks/get", nil)
		}
		var p taskIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		snap, ferr := hs.Tasks.GetTask(ctx, p.ID)
		if ferr != nil {
			return nil, taskErrorToRPC("tasks/get", ferr)
		}
		return snap, nil
	}},
	"tasks/cancel": {capability: "tasks", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Tasks == nil {
			return nil, jsonrpc.NewMethodNotFoundError("tasks/cancel", nil)
		}
		var p taskIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if ferr := hs.Tasks.CancelTask(ctx, p.ID); ferr != nil {
			return nil, taskErrorToRPC("tasks/cancel", ferr)
		}
		return struct{}{}, nil
	}},
	"completion/complete": {capability: "completions", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Completion == nil {
			return nil, jsonrpc.NewMethodNotFoundError("completion/complete", nil)
		}
		var p completeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		var values []string
		var ferr error
		switch p.Ref.Type {
		case "ref/resource":
			values, ferr = hs.Completion.CompleteResource(ctx, p.Ref.URI, p.Argument.Name, p.Argument.Value)
		case "ref/prompt":
			values, ferr = hs.Completion.CompletePrompt(ctx, p.Ref.Name, p.Argument.Name, p.Argument.Value)
		default:
			return nil, jsonrpc.NewInvalidParamsError("completion/complete", "ref.type", "ref/resource|ref/prompt", p.Ref.Type)
		}
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return completeResult{Completion: completionValues{Values: values}}, nil
	}},
	"logging/setLevel": {capability: "logging", side: sideServer, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Logging == nil {
			return nil, jsonrpc.NewMethodNotFoundError("logging/setLevel", nil)
		}
		var p setLevelParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if ferr := hs.Logging.SetLevel(ctx, p.Level); ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return struct{}{}, nil
	}},
	"sampling/createMessage": {capability: "sampling", side: sideClient, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Sampling == nil {
			return nil, jsonrpc.NewMethodNotFoundError("sampling/createMessage", nil)
		}
		var p SamplingRequest
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		res, ferr := hs.Sampling.CreateMessage(ctx, p)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return res, nil
	}},
	"elicitation/create": {capability: "elicitation", side: sideClient, dispatch: func(hs handlerSet, ctx *Context, params json.RawMessage) (interface{}, *jsonrpc.ErrorObject) {
		if hs.Elicitation == nil {
			return nil, jsonrpc.NewMethodNotFoundError("elicitation/create", nil)
		}
		var p ElicitationRequest
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		res, ferr := hs.Elicitation.Elicit(ctx, p)
		if ferr != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInternal, ferr.Error(), nil)
		}
		return res, nil
	}},
}

// suggestMethods finds known method names within small edit distance of
// method, for the error.data.suggestions field on MethodNotFound.
func suggestMethods(method string) []string {
	type scored struct {
		name string
		dist int
	}
	var candidates []scored
	for name := range methodTable {
		d := levenshtein(method, name)
		if d <= 3 {
			candidates = append(candidates, scored{name, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.name)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
