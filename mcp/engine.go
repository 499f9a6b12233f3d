package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/praxiomlabs/mcpkit/cancel"
	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// engine is the bidirectional runtime shared by Server and Client: it owns
// the transport, the handshake session, the inbound router, and an
// outbound request correlator. This generalizes a single
// Protocol type (internal/protocol/protocol.go), which plays both roles
// undifferentiated; engine adds the explicit isInitiator split the typestate
// handshake, and a bounded concurrency limiter for
// handler dispatch.
type engine struct {
	tr          transport.Transport
	sess        *session
	isInitiator bool
	localInfo   Implementation
	logger      *slog.Logger

	router *Router

	// serverCapsFn supplies the ServerCapabilities to advertise on a
	// received initialize request; set by Server, left nil for a Client
	// engine (which never receives initialize).
	serverCapsFn func() ServerCapabilities

	nextID int64

	pendingMu sync.Mutex
	pending   map[string]chan pendingResult

	cancelMu sync.RWMutex
	cancels  map[string]*cancel.Token

	limiter chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

type pendingResult struct {
	result json.RawMessage
	errObj *jsonrpc.ErrorObject
}

func newEngine(tr transport.Transport, isInitiator bool, localInfo Implementation, logger *slog.Logger, concurrency int) *engine {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 64
	}
	return &engine{
		tr:          tr,
		sess:        newSession(),
		isInitiator: isInitiator,
		localInfo:   localInfo,
		logger:      logger,
		pending:     make(map[string]chan pendingResult),
		cancels:     make(map[string]*cancel.Token),
		limiter:     make(chan struct{}, concurrency),
		closed:      make(chan struct{}),
	}
}

func (e *engine) setRouter(r *Router) { e.router = r }

// Run drives the receive loop until the transport closes cleanly or a
// fatal transport error occurs.
func (e *engine) Run(ctx context.Context) error {
	for {
		select {
		case <-e.closed:
			return nil
		default:
		}

		env, ok, err := e.tr.Recv(ctx)
		if err != nil {
			e.failAllPending(jsonrpc.NewTransportError(jsonrpc.TransportConnectionFailed, err.Error()))
			return err
		}
		if !ok {
			e.failAllPending(jsonrpc.NewTransportError(jsonrpc.TransportNotConnected, "peer closed connection"))
			return nil
		}

		switch env.Kind {
		case jsonrpc.KindRequest:
			e.handleRequest(env.Request)
		case jsonrpc.KindNotification:
			e.handleNotification(env.Notification)
		case jsonrpc.KindResponse:
			e.handleResponse(env.Response)
		default:
			e.logger.Warn("dropping envelope of unknown kind")
		}
	}
}

// Close terminates the engine: the transport is closed and any outstanding
// outbound requests fail with a transport error.
func (e *engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		err = e.tr.Close()
		e.failAllPending(jsonrpc.NewTransportError(jsonrpc.TransportNotConnected, "connection closed"))
	})
	return err
}

func (e *engine) handleRequest(req *jsonrpc.Request) {
	if req.Method == "initialize" {
		e.handleInitialize(req)
		return
	}
	if req.Method == "ping" {
		e.respondResult(req.ID, struct{}{})
		return
	}

	if e.sess.State() != StateReady {
		e.respondError(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "server not initialized", nil))
		return
	}
	if e.router == nil || !IsRoutable(req.Method) {
		e.respondError(req.ID, jsonrpc.NewMethodNotFoundError(req.Method, suggestMethods(req.Method)))
		return
	}

	ct := cancel.New()
	e.registerCancel(req.ID, ct)
	token, hasToken := extractProgressToken(req.Params)

	select {
	case e.limiter <- struct{}{}:
	case <-e.closed:
		e.unregisterCancel(req.ID)
		return
	}

	go func() {
		defer func() { <-e.limiter }()
		defer e.unregisterCancel(req.ID)

		ctx := newContext(context.Background(), req.ID, token, hasToken, e.sess, ct, e)
		result, rpcErr := e.router.Dispatch(ctx, req.Method, req.Params)

		if ct.IsCancelled() {
			// The initiator already considers this request cancelled;
			// the runtime discards the result and sends no Response,
			// so the other side never receives a late answer to a call it
			// has already given up on.
			return
		}
		if rpcErr != nil {
			e.respondError(req.ID, rpcErr)
			return
		}
		e.respondResult(req.ID, result)
	}()
}

func (e *engine) handleInitialize(req *jsonrpc.Request) {
	if e.isInitiator {
		e.respondError(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "initialize is sent by the initiator, not received", nil))
		return
	}
	if !e.sess.compareAndSetState(StateConnected, StateInitializing) {
		e.respondError(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "session already initialized", nil))
		return
	}

	var params struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ClientCapabilities `json:"capabilities"`
		ClientInfo      Implementation     `json:"clientInfo"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		e.sess.setState(StateDisconnected)
		e.respondError(req.ID, jsonrpc.NewHandshakeError("malformed initialize params: "+err.Error(), SupportedProtocolVersions))
		return
	}

	version := negotiateVersion(params.ProtocolVersion)
	serverCaps := e.advertisedServerCapabilities()
	e.sess.recordNegotiated(version, e.localInfo, params.ClientInfo, params.Capabilities, serverCaps)

	e.respondResult(req.ID, struct {
		ProtocolVersion string             `json:"protocolVersion"`
		ServerInfo      Implementation     `json:"serverInfo"`
		Capabilities    ServerCapabilities `json:"capabilities"`
	}{version, e.localInfo, serverCaps})
}

// advertisedServerCapabilities is overridden by Server via a closure
// assigned at construction; engines built for a Client role never call it.
func (e *engine) advertisedServerCapabilities() ServerCapabilities {
	if e.serverCapsFn != nil {
		return e.serverCapsFn()
	}
	return ServerCapabilities{}
}

func (e *engine) handleNotification(note *jsonrpc.Notification) {
	switch note.Method {
	case "notifications/initialized":
		if !e.isInitiator {
			e.sess.compareAndSetState(StateInitializing, StateReady)
		}
	case "notifications/cancelled":
		var p struct {
			RequestID jsonrpc.ID `json:"requestId"`
		}
		if err := json.Unmarshal(note.Params, &p); err != nil {
			return
		}
		if ct, ok := e.lookupCancel(p.RequestID); ok {
			ct.Cancel()
		}
	default:
		// progress, message, resources/updated, *_changed notifications
		// are observed-only at the engine level; a Server/Client may add
		// sinks for them without changing this dispatch.
	}
}

func (e *engine) handleResponse(resp *jsonrpc.Response) {
	key := resp.ID.String()
	e.pendingMu.Lock()
	ch, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.pendingMu.Unlock()
	if !ok {
		e.logger.Warn("response for unknown request id", "id", key)
		return
	}
	ch <- pendingResult{result: resp.Result, errObj: resp.Error}
}

func (e *engine) respondResult(id jsonrpc.ID, v interface{}) {
	env, err := jsonrpc.NewResultResponse(id, v)
	if err != nil {
		env = jsonrpc.NewErrorResponse(id, jsonrpc.NewError(jsonrpc.CodeInternal, err.Error(), nil))
	}
	if err := e.tr.Send(context.Background(), env); err != nil {
		e.logger.Error("send response failed", "err", err)
	}
}

func (e *engine) respondError(id jsonrpc.ID, errObj *jsonrpc.ErrorObject) {
	env := jsonrpc.NewErrorResponse(id, errObj)
	if err := e.tr.Send(context.Background(), env); err != nil {
		e.logger.Error("send error response failed", "err", err)
	}
}

// sendRequest issues an outbound request and blocks for its matching
// Response, the ctx being cancelled, or the engine closing — whichever
// comes first.
func (e *engine) sendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := jsonrpc.NewIntID(atomic.AddInt64(&e.nextID, 1))
	env, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	ch := make(chan pendingResult, 1)
	key := id.String()
	e.pendingMu.Lock()
	e.pending[key] = ch
	e.pendingMu.Unlock()

	if err := e.tr.Send(ctx, env); err != nil {
		e.pendingMu.Lock()
		delete(e.pending, key)
		e.pendingMu.Unlock()
		return nil, errors.Wrapf(err, "send %s", method)
	}

	select {
	case res := <-ch:
		if res.errObj != nil {
			return nil, res.errObj
		}
		return res.result, nil
	case <-ctx.Done():
		e.pendingMu.Lock()
		delete(e.pending, key)
		e.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-e.closed:
		e.pendingMu.Lock()
		delete(e.pending, key)
		e.pendingMu.Unlock()
		return nil, jsonrpc.NewTransportError(jsonrpc.TransportNotConnected, "connection closed")
	}
}

func (e *engine) sendNotification(ctx context.Context, method string, params interface{}) error {
	env, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return errors.Wrap(err, "build notification")
	}
	return errors.Wrapf(e.tr.Send(ctx, env), "notify %s", method)
}

// Notify and Request implement the Peer interface, handed to every
// handler Context so tool code can push progress/log notifications or
// initiate sampling/elicitation back to the other side.
func (e *engine) Notify(ctx context.Context, method string, params interface{}) error {
	return e.sendNotification(ctx, method, params)
}

func (e *engine) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return e.sendRequest(ctx, method, params)
}

func (e *engine) registerCancel(id jsonrpc.ID, ct *cancel.Token) {
	e.cancelMu.Lock()
	e.cancels[id.String()] = ct
	e.cancelMu.Unlock()
}

func (e *engine) unregisterCancel(id jsonrpc.ID) {
	e.cancelMu.Lock()
	delete(e.cancels, id.String())
	e.cancelMu.Unlock()
}

func (e *engine) lookupCancel(id jsonrpc.ID) (*cancel.Token, bool) {
	e.cancelMu.RLock()
	defer e.cancelMu.RUnlock()
	ct, ok := e.cancels[id.String()]
	return ct, ok
}

func (e *engine) failAllPending(errObj *jsonrpc.ErrorObject) {
	e.pendingMu.Lock()
	pending := e.pending
	e.pending = make(map[string]chan pendingResult)
	e.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- pendingResult{errObj: errObj}
	}
}

// extractProgressToken peeks params._meta.progressToken without a full
// unmarshal, using gjson.
func extractProgressToken(params json.RawMessage) (jsonrpc.ProgressToken, bool) {
	if len(params) == 0 {
		return jsonrpc.ProgressToken{}, false
	}
	v := gjson.GetBytes(params, "_meta.progressToken")
	if !v.Exists() {
		return jsonrpc.ProgressToken{}, false
	}
	if v.Type == gjson.Number {
		return jsonrpc.NewIntID(v.Int()), true
	}
	return jsonrpc.NewStringID(v.String()), true
}
