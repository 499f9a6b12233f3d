// Package transport defines the contract mcpkit's core consumes to carry
// JSON-RPC envelopes in both directions. Concrete transports (stdio,
// HTTP+SSE, WebSocket) live in sibling packages and implement this
// interface; the core never depends on any of them directly.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
)

// ErrClosed is returned by Send after Close, and is the error Recv never
// returns — a cleanly closed peer is reported via the ok=false return of
// Recv, not an error.
var ErrClosed = errors.New("transport: closed")

// Metadata describes a transport instance for logging and diagnostics.
type Metadata struct {
	Type        string
	LocalAddr   string
	RemoteAddr  string
	ConnectedAt time.Time
}

// Transport carries Envelopes between peers. Implementations must
// guarantee that, within one Transport, the order of successful Send
// calls equals the order the peer observes via its own Recv, and
// vice versa — per-direction FIFO, not necessarily per-request-pair
// ordering.
//
// Send and Recv are both suspension points and must be safe to call from
// different goroutines concurrently with each other (but not necessarily
// safe for concurrent Recv calls, which have exactly one caller: the
// runtime's receive loop).
type Transport interface {
	// Send transmits env to the peer. Fails with ErrClosed once Close has
	// been called.
	Send(ctx context.Context, env jsonrpc.Envelope) error

	// Recv blocks for the next inbound Envelope. ok is false and err is nil
	// when the peer closed cleanly; err is non-nil on any other failure.
	Recv(ctx context.Context) (env jsonrpc.Envelope, ok bool, err error)

	// Close is idempotent. After Close, Send returns ErrClosed and Recv
	// returns (zero, false, nil).
	Close() error

	// Connected is a cheap, best-effort liveness flag.
	Connected() bool

	// Metadata describes this transport instance.
	Metadata() Metadata
}
