// Package cancel implements the cooperative cancellation primitive shared
// by request-level (transport-driven) and task-level (user-driven)
// cancellation: an atomic boolean plus an awaitable completion channel.
// Cancellation is monotonic — once fired, a Token stays cancelled.
package cancel

import (
	"sync"
	"sync/atomic"
)

// Token is a one-shot, concurrency-safe cancellation flag.
type Token struct {
	once      sync.Once
	done      chan struct{}
	cancelled atomic.Bool
}

// New returns a fresh, un-cancelled Token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel fires the token. Safe to call more than once or concurrently;
// only the first call has effect.
func (t *Token) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
	})
}

// IsCancelled reports whether Cancel has been called.
func (t *Token) IsCancelled() bool {
	return t.cancelled.Load()
}

// Done returns a channel that closes exactly once, when Cancel fires.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
