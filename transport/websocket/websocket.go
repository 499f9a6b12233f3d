// Package websocket implements transport.Transport over a WebSocket
// connection, one Envelope per text frame. Ping/pong is handled at the WS
// layer by gorilla/websocket itself; this package only frames envelopes.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// Transport wraps a *websocket.Conn. The same wrapper serves either side
// of the connection: a server wraps the conn returned by an
// websocket.Upgrader, a client wraps the conn returned by
// websocket.DefaultDialer.Dial.
type Transport struct {
	conn *websocket.Conn
	meta transport.Metadata

	// writeMu serializes writes: gorilla/websocket connections are not
	// safe for concurrent writers.
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// New wraps an established WebSocket connection.
func New(conn *websocket.Conn) *Transport {
	return &Transport{
		conn: conn,
		meta: transport.Metadata{
			Type:        "websocket",
			LocalAddr:   conn.LocalAddr().String(),
			RemoteAddr:  conn.RemoteAddr().String(),
			ConnectedAt: time.Now(),
		},
	}
}

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

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) Recv(ctx context.Context) (jsonrpc.Envelope, bool, error) {
	if !t.Connected() {
		return jsonrpc.Envelope{}, false, nil
	}
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, data, err := t.conn.ReadMessage()
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if !t.Connected() || websocket.IsCloseError(r.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return jsonrpc.Envelope{}, false, nil
			}
			return jsonrpc.Envelope{}, false, r.err
		}
		env, err := jsonrpc.Parse(r.data)
		if err != nil {
			return jsonrpc.Envelope{}, false, err
		}
		return env, true, nil
	case <-ctx.Done():
		return jsonrpc.Envelope{}, false, ctx.Err()
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	return t.conn.Close()
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *Transport) Metadata() transport.Metadata { return t.meta }
