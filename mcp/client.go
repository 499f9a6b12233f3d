package mcp

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/praxiomlabs/mcpkit/task"
	"github.com/praxiomlabs/mcpkit/transport"
)

// Client is the initiator side of an MCP session: it sends `initialize`,
// drives the handshake to Ready, and exposes the capability-scoped request
// methods a host application calls. It is symmetric with Server — the
// same engine type runs both — but owns the outgoing correlator's public
// face (every request method wraps the error from engine.sendRequest
// with errors.Wrap/Wrapf, naming the method).
type Client struct {
	eng  *engine
	info Implementation
	caps ClientCapabilities
}

// NewClient builds a Client over tr, identifying itself as info and
// advertising whatever capabilities opts register.
func NewClient(tr transport.Transport, info Implementation, opts ...ClientOption) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	eng := newEngine(tr, true, info, cfg.logger, cfg.concurrency)
	eng.setRouter(newRouter(handlerSet{Sampling: cfg.sampling, Elicitation: cfg.elicitation}, eng.sess))

	caps := ClientCapabilities{Roots: cfg.roots}
	if cfg.sampling != nil {
		caps.Sampling = &struct{}{}
	}
	if cfg.elicitation != nil {
		caps.Elicitation = &struct{}{}
	}

	return &Client{eng: eng, info: info, caps: caps}
}

// Run drives the client's receive loop — inbound Responses to its own
// requests, and any inbound sampling/elicitation requests from the server
// — until the transport closes or ctx is cancelled. Callers typically run
// this in its own goroutine alongside Initialize and the request methods.
func (c *Client) Run(ctx context.Context) error {
	return errors.Wrap(c.eng.Run(ctx), "client runtime")
}

// Close shuts the client down, failing any in-flight request with a
// transport-closed error.
func (c *Client) Close() error {
	return errors.Wrap(c.eng.Close(), "client close")
}

// State is the client's current handshake state.
func (c *Client) State() State { return c.eng.sess.State() }

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

// Initialize runs the handshake: sends `initialize` with this client's
// preferred protocol version and capabilities, records the server's
// negotiated reply, and emits `notifications/initialized`. Only after
// Initialize returns successfully may the other request methods be called.
func (c *Client) Initialize(ctx context.Context) (ServerCapabilities, error) {
	if !c.eng.sess.compareAndSetState(StateConnected, StateInitializing) {
		return ServerCapabilities{}, errors.New("mcp: client already initialized")
	}

	params := initializeParams{
		ProtocolVersion: SupportedProtocolVersions[0],
		Capabilities:    c.caps,
		ClientInfo:      c.info,
	}
	raw, err := c.eng.sendRequest(ctx, "initialize", params)
	if err != nil {
		c.eng.sess.setState(StateDisconnected)
		return ServerCapabilities{}, errors.Wrap(err, "initialize")
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.eng.sess.setState(StateDisconnected)
		return ServerCapabilities{}, errors.Wrap(err, "decode initialize result")
	}

	c.eng.sess.recordNegotiated(result.ProtocolVersion, c.info, result.ServerInfo, c.caps, result.Capabilities)

	if err := c.eng.sendNotification(ctx, "notifications/initialized", nil); err != nil {
		c.eng.sess.setState(StateDisconnected)
		return ServerCapabilities{}, errors.Wrap(err, "send initialized notification")
	}
	c.eng.sess.setState(StateReady)
	return result.Capabilities, nil
}

func (c *Client) requireReady() error {
	if c.eng.sess.State() != StateReady {
		return errors.New("mcp: session not ready")
	}
	return nil
}

// Ping issues the one method permitted before Ready.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.eng.sendRequest(ctx, "ping", nil)
	return errors.Wrap(err, "ping")
}

// ListTools lists tools, optionally continuing from a previous nextCursor.
func (c *Client) ListTools(ctx context.Context, cursor string) ([]Tool, string, error) {
	if err := c.requireReady(); err != nil {
		return nil, "", err
	}
	raw, err := c.eng.sendRequest(ctx, "tools/list", cursorPage{Cursor: cursor})
	if err != nil {
		return nil, "", errors.Wrap(err, "tools/list")
	}
	var res toolsListResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, "", errors.Wrap(err, "decode tools/list result")
	}
	return res.Tools, res.NextCursor, nil
}

// CallTool invokes a tool by name with the given JSON arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.eng.sendRequest(ctx, "tools/call", toolsCallParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, errors.Wrapf(err, "tools/call %s", name)
	}
	var res ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "decode tools/call result")
	}
	return &res, nil
}

// ListResources lists resources, optionally continuing from nextCursor.
func (c *Client) ListResources(ctx context.Context, cursor string) ([]Resource, string, error) {
	if err := c.requireReady(); err != nil {
		return nil, "", err
	}
	raw, err := c.eng.sendRequest(ctx, "resources/list", cursorPage{Cursor: cursor})
	if err != nil {
		return nil, "", errors.Wrap(err, "resources/list")
	}
	var res resourcesListResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, "", errors.Wrap(err, "decode resources/list result")
	}
	return res.Resources, res.NextCursor, nil
}

// ListResourceTemplates lists parameterized resource URI templates.
func (c *Client) ListResourceTemplates(ctx context.Context, cursor string) ([]ResourceTemplate, string, error) {
	if err := c.requireReady(); err != nil {
		return nil, "", err
	}
	raw, err := c.eng.sendRequest(ctx, "resources/templates/list", cursorPage{Cursor: cursor})
	if err != nil {
		return nil, "", errors.Wrap(err, "resources/templates/list")
	}
	var res resourceTemplatesListResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, "", errors.Wrap(err, "decode resources/templates/list result")
	}
	return res.ResourceTemplates, res.NextCursor, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]ResourceContents, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.eng.sendRequest(ctx, "resources/read", resourceURIParams{URI: uri})
	if err != nil {
		return nil, errors.Wrapf(err, "resources/read %s", uri)
	}
	var res readResourceResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "decode resources/read result")
	}
	return res.Contents, nil
}

// Subscribe subscribes to change notifications for a resource URI.
func (c *Client) Subscribe(ctx context.Context, uri string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	_, err := c.eng.sendRequest(ctx, "resources/subscribe", resourceURIParams{URI: uri})
	return errors.Wrapf(err, "resources/subscribe %s", uri)
}

// Unsubscribe cancels a prior Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, uri string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	_, err := c.eng.sendRequest(ctx, "resources/unsubscribe", resourceURIParams{URI: uri})
	return errors.Wrapf(err, "resources/unsubscribe %s", uri)
}

// ListPrompts lists prompts, optionally continuing from nextCursor.
func (c *Client) ListPrompts(ctx context.Context, cursor string) ([]Prompt, string, error) {
	if err := c.requireReady(); err != nil {
		return nil, "", err
	}
	raw, err := c.eng.sendRequest(ctx, "prompts/list", cursorPage{Cursor: cursor})
	if err != nil {
		return nil, "", errors.Wrap(err, "prompts/list")
	}
	var res promptsListResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, "", errors.Wrap(err, "decode prompts/list result")
	}
	return res.Prompts, res.NextCursor, nil
}

// GetPrompt renders a named prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) ([]PromptMessage, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.eng.sendRequest(ctx, "prompts/get", promptsGetParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, errors.Wrapf(err, "prompts/get %s", name)
	}
	var res promptsGetResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "decode prompts/get result")
	}
	return res.Messages, nil
}

// ListTasks lists every task the server is tracking.
func (c *Client) ListTasks(ctx context.Context) ([]task.Snapshot, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.eng.sendRequest(ctx, "tasks/list", nil)
	if err != nil {
		return nil, errors.Wrap(err, "tasks/list")
	}
	var res struct {
		Tasks []task.Snapshot `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "decode tasks/list result")
	}
	return res.Tasks, nil
}

// GetTask fetches one task's current snapshot by id.
func (c *Client) GetTask(ctx context.Context, id string) (task.Snapshot, error) {
	if err := c.requireReady(); err != nil {
		return task.Snapshot{}, err
	}
	raw, err := c.eng.sendRequest(ctx, "tasks/get", taskIDParams{ID: id})
	if err != nil {
		return task.Snapshot{}, errors.Wrapf(err, "tasks/get %s", id)
	}
	var snap task.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return task.Snapshot{}, errors.Wrap(err, "decode tasks/get result")
	}
	return snap, nil
}

// CancelTask requests cancellation of a task by id.
func (c *Client) CancelTask(ctx context.Context, id string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	_, err := c.eng.sendRequest(ctx, "tasks/cancel", taskIDParams{ID: id})
	return errors.Wrapf(err, "tasks/cancel %s", id)
}

// CompleteResource requests completion candidates for a resource URI
// template argument.
func (c *Client) CompleteResource(ctx context.Context, uriTemplate, argName, value string) ([]string, error) {
	return c.complete(ctx, completionRef{Type: "ref/resource", URI: uriTemplate}, argName, value)
}

// CompletePrompt requests completion candidates for a prompt argument.
func (c *Client) CompletePrompt(ctx context.Context, promptName, argName, value string) ([]string, error) {
	return c.complete(ctx, completionRef{Type: "ref/prompt", Name: promptName}, argName, value)
}

func (c *Client) complete(ctx context.Context, ref completionRef, argName, value string) ([]string, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	raw, err := c.eng.sendRequest(ctx, "completion/complete", completeParams{
		Ref:      ref,
		Argument: completionArgument{Name: argName, Value: value},
	})
	if err != nil {
		return nil, errors.Wrap(err, "completion/complete")
	}
	var res completeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "decode completion/complete result")
	}
	return res.Completion.Values, nil
}

// SetLogLevel requests the server adjust its logging threshold.
func (c *Client) SetLogLevel(ctx context.Context, level LogLevel) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	_, err := c.eng.sendRequest(ctx, "logging/setLevel", setLevelParams{Level: level})
	return errors.Wrap(err, "logging/setLevel")
}
