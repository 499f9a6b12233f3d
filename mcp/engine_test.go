package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/task"
)

type divideArgs struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// divideTool implements ToolHandler with one tool, "divide", that returns
// a recoverable tool error on division by zero.
type divideTool struct{}

func (divideTool) ListTools(_ *Context, _ string) ([]Tool, string, error) {
	return []Tool{{Name: "divide", InputSchema: json.RawMessage(`{"type":"object"}`)}}, "", nil
}

func (divideTool) CallTool(_ *Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	if name != "divide" {
		return nil, fmt.Errorf("unknown tool %s", name)
	}
	var args divideArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, err
	}
	if args.B == 0 {
		return &ToolResult{
			Content: []Content{TextContent{Text: "Cannot divide by zero"}},
			IsError: true,
		}, nil
	}
	return &ToolResult{
		Content: []Content{TextContent{Text: fmt.Sprintf("%v", args.A/args.B)}},
	}, nil
}

func startPair(t *testing.T, build func(b *Builder) *Builder) (*Server, *Client) {
	t.Helper()
	serverTr, clientTr := newPipePair()

	b := NewServer("divide-server", "1.0.0")
	b = build(b)
	srv, err := b.Build(serverTr)
	require.NoError(t, err)

	cli := NewClient(clientTr, Implementation{Name: "test-client", Version: "1.0.0"})

	go srv.Serve(context.Background())
	go cli.Run(context.Background())

	t.Cleanup(func() {
		_ = srv.Close()
		_ = cli.Close()
	})
	return srv, cli
}

func TestMinimalHandshakeAndToolsList(t *testing.T) {
	_, cli := startPair(t, func(b *Builder) *Builder {
		return b.WithTools(divideTool{}, false)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	caps, err := cli.Initialize(ctx)
	require.NoError(t, err)
	assert.NotNil(t, caps.Tools)

	tools, _, err := cli.ListTools(ctx, "")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "divide", tools[0].Name)
}

func TestVersionFallback(t *testing.T) {
	got := negotiateVersion("1999-01-01")
	assert.Equal(t, SupportedProtocolVersions[0], got)

	exact := SupportedProtocolVersions[1]
	assert.Equal(t, exact, negotiateVersion(exact))
}

func TestEarlyCallRejectedBeforeInitialize(t *testing.T) {
	serverTr, clientTr := newPipePair()
	srv, err := NewServer("s", "1").WithTools(divideTool{}, false).Build(serverTr)
	require.NoError(t, err)
	go srv.Serve(context.Background())
	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env, err := jsonrpc.NewRequest(jsonrpc.NewIntID(1), "tools/list", nil)
	require.NoError(t, err)
	require.NoError(t, clientTr.Send(ctx, env))

	resp, ok, err := clientTr.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, jsonrpc.KindResponse, resp.Kind)
	require.NotNil(t, resp.Response.Error)
	assert.EqualValues(t, jsonrpc.CodeInvalidRequest, resp.Response.Error.Code)
}

func TestMethodNotFoundSuggestsNearMatch(t *testing.T) {
	_, cli := startPair(t, func(b *Builder) *Builder {
		return b.WithTools(divideTool{}, false)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Initialize(ctx)
	require.NoError(t, err)

	_, err = cli.eng.sendRequest(ctx, "tool/list", nil)
	require.Error(t, err)

	errObj, ok := err.(*jsonrpc.ErrorObject)
	require.True(t, ok)
	assert.EqualValues(t, jsonrpc.CodeMethodNotFound, errObj.Code)

	data, ok := errObj.Data.(map[string]interface{})
	require.True(t, ok)
	suggestions, _ := data["suggestions"].([]interface{})
	require.NotEmpty(t, suggestions)
	assert.Contains(t, suggestions, "tools/list")
}

func TestToolRecoverableErrorIsSuccessfulResponse(t *testing.T) {
	_, cli := startPair(t, func(b *Builder) *Builder {
		return b.WithTools(divideTool{}, false)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Initialize(ctx)
	require.NoError(t, err)

	args, _ := json.Marshal(divideArgs{A: 1, B: 0})
	res, err := cli.CallTool(ctx, "divide", args)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(TextContent)
	require.True(t, ok)
	assert.Equal(t, "Cannot divide by zero", text.Text)
}

// taskTool creates a task, reports progress, then waits to observe
// cancellation.
type taskTool struct {
	mgr     *task.Manager
	started chan string
}

func (t *taskTool) ListTools(_ *Context, _ string) ([]Tool, string, error) {
	return []Tool{{Name: "long-running", InputSchema: json.RawMessage(`{}`)}}, "", nil
}

func (t *taskTool) CallTool(ctx *Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	h := t.mgr.Create(name)
	h.Running()
	total := int64(100)
	h.Progress(25, &total, nil)
	t.started <- h.ID()
	<-h.Cancelled()
	return &ToolResult{Content: []Content{TextContent{Text: "cancelled"}}}, nil
}

func TestTaskCancelViaTasksCancel(t *testing.T) {
	mgr := task.NewManager()
	tool := &taskTool{mgr: mgr, started: make(chan string, 1)}
	taskHandler := NewDefaultTaskHandler(mgr)

	_, cli := startPair(t, func(b *Builder) *Builder {
		return b.WithTools(tool, false).WithTasks(taskHandler, true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Initialize(ctx)
	require.NoError(t, err)

	go func() {
		_, _ = cli.CallTool(ctx, "long-running", json.RawMessage(`{}`))
	}()

	var id string
	select {
	case id = <-tool.started:
	case <-time.After(time.Second):
		t.Fatal("tool never started")
	}

	require.NoError(t, cli.CancelTask(ctx, id))

	require.Eventually(t, func() bool {
		snap, err := cli.GetTask(ctx, id)
		return err == nil && snap.Status == task.StatusCancelled
	}, time.Second, 10*time.Millisecond)
}

func TestBuilderRejectsDoubleRegistration(t *testing.T) {
	b := NewServer("s", "1").WithTools(divideTool{}, false).WithTools(divideTool{}, false)
	_, err := b.Build(nil)
	assert.Error(t, err)
}
