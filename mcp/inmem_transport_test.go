package mcp

import (
	"context"
	"sync"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// pipeTransport is an in-memory transport.Transport used only by this
// package's tests, pairing two ends over buffered channels so a Server and
// a Client engine can be driven against each other without a real
// subprocess, socket, or HTTP round trip.
type pipeTransport struct {
	out chan jsonrpc.Envelope
	in  chan jsonrpc.Envelope

	mu     sync.Mutex
	closed bool
}

func newPipePair() (*pipeTransport, *pipeTransport) {
	aToB := make(chan jsonrpc.Envelope, 32)
	bToA := make(chan jsonrpc.Envelope, 32)
	a := &pipeTransport{out: aToB, in: bToA}
	b := &pipeTransport{out: bToA, in: aToB}
	return a, b
}

func (p *pipeTransport) Send(ctx context.Context, env jsonrpc.Envelope) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	select {
	case p.out <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Recv(ctx context.Context) (jsonrpc.Envelope, bool, error) {
	select {
	case env, ok := <-p.in:
		if !ok {
			return jsonrpc.Envelope{}, false, nil
		}
		return env, true, nil
	case <-ctx.Done():
		return jsonrpc.Envelope{}, false, ctx.Err()
	}
}

func (p *pipeTransport) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	return nil
}

func (p *pipeTransport) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *pipeTransport) Metadata() transport.Metadata {
	return transport.Metadata{Type: "pipe"}
}
