package mcp

import (
	"context"

	"github.com/pkg/errors"
)

// NewServer starts a Builder for a server named name at the given version,
// mirroring a functional-options NewServer(transport,
// WithName(...), WithVersion(...)) construction, adapted to the explicit
// Builder that validates capability registration at
// construction, not at first use).
func NewServer(name, version string) *Builder {
	return NewBuilder(name, version)
}

// Server is the responder side of an MCP session: it owns the transport,
// the negotiated session, the capability-gated router, and drives the
// receive loop until the transport closes.
type Server struct {
	eng     *engine
	builder *Builder
}

// Serve runs the server's receive loop until the transport closes cleanly,
// ctx is cancelled, or a fatal transport error occurs.
func (s *Server) Serve(ctx context.Context) error {
	return errors.Wrap(s.eng.Run(ctx), "server runtime")
}

// Close shuts the server down: the transport is closed and any pending
// outbound requests fail. Handler goroutines still running are not
// cancelled; their Context's cancellation token does not fire.
func (s *Server) Close() error {
	return errors.Wrap(s.eng.Close(), "server close")
}

// Info is this server's identity as advertised during the handshake.
func (s *Server) Info() Implementation { return s.eng.localInfo }

// State is the server's current handshake state.
func (s *Server) State() State { return s.eng.sess.State() }
