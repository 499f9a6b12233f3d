package mcp

import (
	"sync"
	"sync/atomic"
)

// State is one point in the handshake typestate:
//
//	Disconnected -> Connected -> Initializing -> Ready -> Closing -> Disconnected
//
// Only Ready permits non-handshake traffic; ping is the sole exception.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateInitializing
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// SupportedProtocolVersions is the engine's ordered list of protocol
// versions, most-preferred first. The first entry is the default offered
// by an initiating Client and the fallback chosen by a Server when the
// client's requested version is not in this set.
var SupportedProtocolVersions = []string{
	"2025-11-25",
	"2025-06-18",
	"2025-03-26",
}

// negotiateVersion picks requested if it is supported, else the engine's
// most-preferred version it supports.
func negotiateVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return requested
		}
	}
	return SupportedProtocolVersions[0]
}

// session is the per-connection negotiated state: identity, capabilities,
// and protocol version established at handshake and constant thereafter.
// The Ready transition is an atomic flag so hot-path method dispatch can
// check it without taking a lock;
// the negotiated fields themselves are guarded by a read-write mutex since they
// are written once and read occasionally.
type session struct {
	state int32 // State, accessed atomically

	mu              sync.RWMutex
	protocolVersion string
	sessionID       string
	localInfo       Implementation
	peerInfo        Implementation
	clientCaps      ClientCapabilities
	serverCaps      ServerCapabilities
}

func newSession() *session {
	s := &session{}
	atomic.StoreInt32(&s.state, int32(StateConnected))
	return s
}

func (s *session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *session) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// compareAndSetState performs the one transition check every handshake
// step needs: "are we still in the state we think we're in".
func (s *session) compareAndSetState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&s.state, int32(from), int32(to))
}

func (s *session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

func (s *session) ClientCapabilities() ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCaps
}

func (s *session) ServerCapabilities() ServerCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverCaps
}

func (s *session) PeerInfo() Implementation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerInfo
}

func (s *session) recordNegotiated(version string, local, peer Implementation, client ClientCapabilities, server ServerCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolVersion = version
	s.localInfo = local
	s.peerInfo = peer
	s.clientCaps = client
	s.serverCaps = server
}
