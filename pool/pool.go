// Package pool implements a keyed, bounded connection pool over
// transport.Transport: per-destination connection reuse, idle expiry, a
// fair acquire timeout, optional health checks on acquire/release, and the
// same statistics counters as original_source's
// crates/mcp-transport/src/pool.rs (PoolStats: created, closed, acquires,
// releases, timeouts, in_use, idle), adapted from its single-destination
// Pool<T> plus crates/mcpkit-client/src/pool.rs's per-server-key structure
// into one generic, keyed type.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// ErrClosed is returned by Acquire once the pool has been closed.
var ErrClosed = errors.New("pool: closed")

// Config bounds a Pool's behavior. Use the With* options to build one; the
// zero Config is never used directly.
type Config struct {
	maxConnections int
	minConnections int
	idleTimeout    time.Duration
	acquireTimeout time.Duration
	testOnAcquire  bool
	testOnRelease  bool
}

func defaultConfig() Config {
	return Config{
		maxConnections: 10,
		minConnections: 1,
		idleTimeout:    5 * time.Minute,
		acquireTimeout: 30 * time.Second,
		testOnAcquire:  true,
		testOnRelease:  false,
	}
}

// Option configures a Pool at construction time.
type Option func(*Config)

// WithMaxConnections bounds how many connections, idle plus in-use, a
// single destination key may hold at once.
func WithMaxConnections(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.maxConnections = n
		}
	}
}

// WithMinConnections sets the floor CleanupIdle leaves untouched per key.
func WithMinConnections(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.minConnections = n
		}
	}
}

// WithIdleTimeout bounds how long an idle connection may sit before
// Acquire or CleanupIdle close it. Zero disables idle expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.idleTimeout = d }
}

// WithAcquireTimeout bounds how long Acquire waits for a free slot before
// failing. Zero means Acquire only ever respects ctx.
func WithAcquireTimeout(d time.Duration) Option {
	return func(c *Config) { c.acquireTimeout = d }
}

// WithTestOnAcquire enables calling Connected() on a reused idle
// connection before handing it out, discarding it silently on failure.
func WithTestOnAcquire(test bool) Option {
	return func(c *Config) { c.testOnAcquire = test }
}

// WithTestOnRelease enables the same check when a connection is returned.
func WithTestOnRelease(test bool) Option {
	return func(c *Config) { c.testOnRelease = test }
}

// Factory dials a new connection for the given destination key.
type Factory[T transport.Transport] func(ctx context.Context, key string) (T, error)

// Stats is a point-in-time snapshot of a Pool's counters, aggregated
// across every destination key it has seen.
type Stats struct {
	Created  uint64
	Closed   uint64
	Acquires uint64
	Releases uint64
	Timeouts uint64
	InUse    int
	Idle     int
}

type idleEntry[T transport.Transport] struct {
	conn      T
	id        uint64
	createdAt time.Time
	lastUsed  time.Time
}

// bucket holds one destination key's idle connections and its fair-FIFO
// capacity semaphore. sem's buffer length is the key's max_connections:
// acquiring a slot is sending a token in, releasing is taking one out.
type bucket[T transport.Transport] struct {
	mu     sync.Mutex
	idle   []idleEntry[T]
	inUse  int
	sem    chan struct{}
}

// PooledConnection is a checked-out connection, returned by Acquire and
// handed back to Pool.Release when the caller is done with it.
type PooledConnection[T transport.Transport] struct {
	Transport T

	id        uint64
	key       string
	createdAt time.Time
	lastUsed  time.Time
}

// ID is this checkout's pool-assigned identifier, for stats and logging —
// not a property of the underlying transport.
func (c *PooledConnection[T]) ID() uint64 { return c.id }

// Key is the destination this connection belongs to.
func (c *PooledConnection[T]) Key() string { return c.key }

// Pool is a keyed connection pool: it reuses connections per destination
// key, holding each key to its own max_connections capacity and its own
// idle set, per original_source's per-server ClientPoolInner structure.
type Pool[T transport.Transport] struct {
	cfg     Config
	factory Factory[T]

	mu      sync.Mutex
	buckets map[string]*bucket[T]
	closed  int32 // atomic bool

	nextID   uint64
	created  uint64
	closedN  uint64
	acquires uint64
	releases uint64
	timeouts uint64
}

// New builds a Pool that dials new connections via factory, applying opts
// over the default configuration (max 10, min 1, 5m idle, 30s acquire,
// test-on-acquire enabled).
func New[T transport.Transport](factory Factory[T], opts ...Option) *Pool[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pool[T]{
		cfg:     cfg,
		factory: factory,
		buckets: make(map[string]*bucket[T]),
	}
}

func (p *Pool[T]) getBucket(key string) *bucket[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket[T]{sem: make(chan struct{}, p.cfg.maxConnections)}
		p.buckets[key] = b
	}
	return b
}

// Acquire returns a connection for key, reusing an idle one when possible
// and otherwise dialing a new one via the pool's factory, blocking if the
// key is already at max_connections until a slot frees or acquire_timeout
// (or ctx) expires.
func (p *Pool[T]) Acquire(ctx context.Context, key string) (*PooledConnection[T], error) {
	if atomic.LoadInt32(&p.closed) == 1 {
		return nil, ErrClosed
	}
	b := p.getBucket(key)

	waitCtx := ctx
	if p.cfg.acquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.acquireTimeout)
		defer cancel()
	}

	select {
	case b.sem <- struct{}{}:
	case <-waitCtx.Done():
		atomic.AddUint64(&p.timeouts, 1)
		return nil, jsonrpc.NewTransportError(jsonrpc.TransportTimeout,
			fmt.Sprintf("pool: acquire timed out for %q", key))
	}

	for {
		b.mu.Lock()
		if n := len(b.idle); n > 0 {
			e := b.idle[n-1]
			b.idle = b.idle[:n-1]
			b.inUse++
			b.mu.Unlock()

			if p.stale(e) {
				_ = e.conn.Close()
				atomic.AddUint64(&p.closedN, 1)
				b.mu.Lock()
				b.inUse--
				b.mu.Unlock()
				continue
			}

			e.lastUsed = time.Now()
			atomic.AddUint64(&p.acquires, 1)
			return &PooledConnection[T]{Transport: e.conn, id: e.id, key: key, createdAt: e.createdAt, lastUsed: e.lastUsed}, nil
		}
		b.inUse++
		b.mu.Unlock()

		conn, err := p.factory(waitCtx, key)
		if err != nil {
			b.mu.Lock()
			b.inUse--
			b.mu.Unlock()
			<-b.sem
			return nil, errors.Wrapf(err, "pool: dial %q", key)
		}

		id := atomic.AddUint64(&p.nextID, 1)
		atomic.AddUint64(&p.created, 1)
		atomic.AddUint64(&p.acquires, 1)
		now := time.Now()
		return &PooledConnection[T]{Transport: conn, id: id, key: key, createdAt: now, lastUsed: now}, nil
	}
}

func (p *Pool[T]) stale(e idleEntry[T]) bool {
	if p.cfg.idleTimeout > 0 && time.Since(e.lastUsed) > p.cfg.idleTimeout {
		return true
	}
	if p.cfg.testOnAcquire && !e.conn.Connected() {
		return true
	}
	return false
}

// Release returns pc to its key's idle set, or closes it if the pool has
// been closed or, with test_on_release enabled, the underlying transport
// reports itself disconnected. It always frees pc's capacity slot.
func (p *Pool[T]) Release(pc *PooledConnection[T]) {
	b := p.getBucket(pc.key)

	b.mu.Lock()
	if b.inUse > 0 {
		b.inUse--
	}
	b.mu.Unlock()

	unhealthy := atomic.LoadInt32(&p.closed) == 1 ||
		(p.cfg.testOnRelease && !pc.Transport.Connected())
	if unhealthy {
		_ = pc.Transport.Close()
		atomic.AddUint64(&p.closedN, 1)
	} else {
		pc.lastUsed = time.Now()
		b.mu.Lock()
		b.idle = append(b.idle, idleEntry[T]{conn: pc.Transport, id: pc.id, createdAt: pc.createdAt, lastUsed: pc.lastUsed})
		b.mu.Unlock()
		atomic.AddUint64(&p.releases, 1)
	}

	select {
	case <-b.sem:
	default:
	}
}

// CleanupIdle closes idle connections past idle_timeout in every key,
// leaving at least min_connections untouched per key.
func (p *Pool[T]) CleanupIdle() {
	p.mu.Lock()
	buckets := make([]*bucket[T], 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	for _, b := range buckets {
		b.mu.Lock()
		kept := make([]idleEntry[T], 0, len(b.idle))
		for _, e := range b.idle {
			if len(kept) < p.cfg.minConnections {
				kept = append(kept, e)
				continue
			}
			if p.cfg.idleTimeout > 0 && time.Since(e.lastUsed) > p.cfg.idleTimeout {
				_ = e.conn.Close()
				atomic.AddUint64(&p.closedN, 1)
				continue
			}
			kept = append(kept, e)
		}
		b.idle = kept
		b.mu.Unlock()
	}
}

// CloseKey closes and discards every idle connection for key, without
// affecting connections currently checked out.
func (p *Pool[T]) CloseKey(key string) {
	p.mu.Lock()
	b, ok := p.buckets[key]
	p.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	for _, e := range b.idle {
		_ = e.conn.Close()
		atomic.AddUint64(&p.closedN, 1)
	}
	b.idle = nil
	b.mu.Unlock()
}

// Close marks the pool closed — further Acquire calls fail with ErrClosed
// — and closes every idle connection across every key. Connections still
// checked out are closed as they are Released.
func (p *Pool[T]) Close() error {
	atomic.StoreInt32(&p.closed, 1)

	p.mu.Lock()
	buckets := p.buckets
	p.buckets = make(map[string]*bucket[T])
	p.mu.Unlock()

	var firstErr error
	for _, b := range buckets {
		b.mu.Lock()
		for _, e := range b.idle {
			if err := e.conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			atomic.AddUint64(&p.closedN, 1)
		}
		b.idle = nil
		b.mu.Unlock()
	}
	return firstErr
}

// Stats reports the pool's counters, aggregated across every destination
// key it has allocated a bucket for.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	buckets := make([]*bucket[T], 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	var inUse, idle int
	for _, b := range buckets {
		b.mu.Lock()
		inUse += b.inUse
		idle += len(b.idle)
		b.mu.Unlock()
	}

	return Stats{
		Created:  atomic.LoadUint64(&p.created),
		Closed:   atomic.LoadUint64(&p.closedN),
		Acquires: atomic.LoadUint64(&p.acquires),
		Releases: atomic.LoadUint64(&p.releases),
		Timeouts: atomic.LoadUint64(&p.timeouts),
		InUse:    inUse,
		Idle:     idle,
	}
}
