// Package httpsse implements a Streamable HTTP transport: a single
// endpoint where POST delivers one envelope, GET opens
// a server-sent-events stream for server-initiated traffic, and DELETE
// terminates the session. It satisfies transport.Transport so it can be
// driven by the same Server runtime as any other transport.
package httpsse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// SupportedProtocolVersions is the set of MCP-Protocol-Version values this
// transport accepts on inbound requests.
var SupportedProtocolVersions = map[string]bool{
	"2025-11-25": true,
	"2025-06-18": true,
	"2025-03-26": true,
}

const sseBuffer = 64

// Transport implements transport.Transport for one HTTP session. Multiple
// Transport values share a Server (one per Mcp-Session-Id); Mount attaches
// the session-establishing and per-session routes to a gorilla/mux router.
type Transport struct {
	sessionID string
	meta      transport.Metadata

	mu     sync.Mutex
	closed bool

	inbound chan jsonrpc.Envelope // POST bodies, delivered to Recv
	sse     chan []byte           // server->client pushes for the open GET stream
}

// New creates a session-scoped Transport with a freshly minted session id.
func New() *Transport {
	return &Transport{
		sessionID: uuid.NewString(),
		meta:      transport.Metadata{Type: "http+sse", ConnectedAt: time.Now()},
		inbound:   make(chan jsonrpc.Envelope, sseBuffer),
		sse:       make(chan []byte, sseBuffer),
	}
}

// SessionID is the value sent back as Mcp-Session-Id on the initialize
// response and expected on every subsequent request for this session.
func (t *Transport) SessionID() string { return t.sessionID }

// Send pushes env to the SSE stream for this session. If no GET stream is
// currently open the message is buffered (bounded by sseBuffer) until one
// connects.
func (t *Transport) Send(_ context.Context, env jsonrpc.Envelope) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	data, err := jsonrpc.Serialize(env)
	if err != nil {
		return err
	}
	select {
	case t.sse <- data:
		return nil
	default:
		return jsonrpc.NewTransportError(jsonrpc.TransportMessageTooLarge, "sse buffer full")
	}
}

// Recv returns the next envelope POSTed by the client.
func (t *Transport) Recv(ctx context.Context) (jsonrpc.Envelope, bool, error) {
	select {
	case env, open := <-t.inbound:
		if !open {
			return jsonrpc.Envelope{}, false, nil
		}
		return env, true, nil
	case <-ctx.Done():
		return jsonrpc.Envelope{}, false, ctx.Err()
	}
}

// Close terminates the session: pending Recv calls observe a clean close
// and the SSE stream (if open) ends.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.inbound)
	close(t.sse)
	return nil
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *Transport) Metadata() transport.Metadata { return t.meta }

// Mount attaches POST/GET/DELETE handlers for this session's transport at
// path on router r, following the single-endpoint Streamable HTTP shape.
func (t *Transport) Mount(r *mux.Router, path string) {
	r.HandleFunc(path, t.handlePost).Methods(http.MethodPost)
	r.HandleFunc(path, t.handleGet).Methods(http.MethodGet)
	r.HandleFunc(path, t.handleDelete).Methods(http.MethodDelete)
}

func (t *Transport) handlePost(w http.ResponseWriter, r *http.Request) {
	if v := r.Header.Get("MCP-Protocol-Version"); v != "" && !SupportedProtocolVersions[v] {
		http.Error(w, "unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}
	if sid := r.Header.Get("Mcp-Session-Id"); sid != "" && sid != t.sessionID {
		http.Error(w, "unknown or expired session", http.StatusNotFound)
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	env, err := jsonrpc.Parse(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid envelope: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Mcp-Session-Id", t.sessionID)

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	select {
	case t.inbound <- env:
	case <-r.Context().Done():
		return
	}

	if env.Kind == jsonrpc.KindNotification {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	// A request's Response travels back over the SSE stream opened by a
	// concurrent GET, mirroring the reference Streamable HTTP behavior
	// this transport is grounded on; the POST itself is acknowledged here.
	w.WriteHeader(http.StatusAccepted)
}

func (t *Transport) handleGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Mcp-Session-Id", t.sessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case data, open := <-t.sse:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (t *Transport) handleDelete(w http.ResponseWriter, r *http.Request) {
	if sid := r.Header.Get("Mcp-Session-Id"); sid != "" && sid != t.sessionID {
		http.Error(w, "unknown or expired session", http.StatusNotFound)
		return
	}
	_ = t.Close()
	w.WriteHeader(http.StatusNoContent)
}
