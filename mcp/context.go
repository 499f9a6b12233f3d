package mcp

import (
	"context"
	"encoding/json"

	"github.com/praxiomlabs/mcpkit/cancel"
	"github.com/praxiomlabs/mcpkit/jsonrpc"
)

// Peer is the narrow outbound handle a Context exposes to handler code:
// fire a notification back to the other side, or — for sampling and
// elicitation — issue a request to the other side and await its result.
// Implementations must be safe for concurrent use by handler goroutines
// running alongside the receive loop.
type Peer interface {
	Notify(ctx context.Context, method string, params interface{}) error
	Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
}

// Context is the per-request value handed to a handler. The router owns
// its lifetime; handlers must not retain it past the call that received it.
type Context struct {
	stdCtx context.Context
	cancel context.CancelFunc

	id       jsonrpc.ID
	token    jsonrpc.ProgressToken
	hasToken bool

	sess        *session
	cancelToken *cancel.Token
	peer        Peer
}

func newContext(parent context.Context, id jsonrpc.ID, token jsonrpc.ProgressToken, hasToken bool, sess *session, ct *cancel.Token, peer Peer) *Context {
	stdCtx, cancelFn := context.WithCancel(parent)
	c := &Context{
		stdCtx:      stdCtx,
		cancel:      cancelFn,
		id:          id,
		token:       token,
		hasToken:    hasToken,
		sess:        sess,
		cancelToken: ct,
		peer:        peer,
	}
	go func() {
		select {
		case <-ct.Done():
			cancelFn()
		case <-stdCtx.Done():
		}
	}()
	return c
}

// Context returns the standard context.Context for this request, cancelled
// when the request's cancellation token fires.
func (c *Context) Context() context.Context { return c.stdCtx }

// RequestID is the id of the request this Context was built for.
func (c *Context) RequestID() jsonrpc.ID { return c.id }

// ProtocolVersion is the version negotiated at handshake for this session.
func (c *Context) ProtocolVersion() string { return c.sess.ProtocolVersion() }

// ClientCapabilities is the capability set the client advertised.
func (c *Context) ClientCapabilities() ClientCapabilities { return c.sess.ClientCapabilities() }

// ServerCapabilities is the capability set the server advertised.
func (c *Context) ServerCapabilities() ServerCapabilities { return c.sess.ServerCapabilities() }

// IsCancelled reports whether notifications/cancelled has fired for this
// request's id.
func (c *Context) IsCancelled() bool { return c.cancelToken.IsCancelled() }

// Cancelled returns a channel that closes when this request is cancelled.
func (c *Context) Cancelled() <-chan struct{} { return c.cancelToken.Done() }

// Peer is the outbound handle for notifications and peer-initiated
// requests (sampling, elicitation).
func (c *Context) Peer() Peer { return c.peer }

// progressParams is the wire shape of a notifications/progress payload.
type progressParams struct {
	ProgressToken jsonrpc.ProgressToken `json:"progressToken"`
	Progress      int64                 `json:"progress"`
	Total         *int64                `json:"total,omitempty"`
	Message       *string               `json:"message,omitempty"`
}

// Progress emits a notifications/progress using this request's progress
// token, if the caller supplied one; it is a silent no-op otherwise, per
// the notification carries no acknowledgement.
func (c *Context) Progress(current int64, total *int64, message *string) {
	if !c.hasToken || c.peer == nil {
		return
	}
	_ = c.peer.Notify(c.stdCtx, "notifications/progress", progressParams{
		ProgressToken: c.token,
		Progress:      current,
		Total:         total,
		Message:       message,
	})
}

// RequestSampling asks the peer to sample from its LLM, forwarded as an
// outbound request to whichever side is acting as peer. Typically
// called from a server-side tool handler via Context.Peer.
func (c *Context) RequestSampling(req SamplingRequest) (SamplingResult, error) {
	raw, err := c.peer.Request(c.stdCtx, "sampling/createMessage", req)
	if err != nil {
		return SamplingResult{}, err
	}
	var res SamplingResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return SamplingResult{}, err
	}
	return res, nil
}

// RequestElicitation asks the peer's end user to supply structured input.
func (c *Context) RequestElicitation(req ElicitationRequest) (ElicitationResult, error) {
	raw, err := c.peer.Request(c.stdCtx, "elicitation/create", req)
	if err != nil {
		return ElicitationResult{}, err
	}
	var res ElicitationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ElicitationResult{}, err
	}
	return res, nil
}
