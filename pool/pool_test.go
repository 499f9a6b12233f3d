package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// fakeTransport is a minimal transport.Transport double for pool tests; it
// never actually carries envelopes.
type fakeTransport struct {
	id     int
	mu     sync.Mutex
	closed bool
	dead   bool
}

func (f *fakeTransport) Send(context.Context, jsonrpc.Envelope) error { return nil }
func (f *fakeTransport) Recv(ctx context.Context) (jsonrpc.Envelope, bool, error) {
	<-ctx.Done()
	return jsonrpc.Envelope{}, false, ctx.Err()
}
func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed && !f.dead
}
func (f *fakeTransport) Metadata() transport.Metadata { return transport.Metadata{Type: "fake"} }

func newCountingFactory() (Factory[*fakeTransport], *int64) {
	var n int64
	return func(_ context.Context, _ string) (*fakeTransport, error) {
		id := int(atomic.AddInt64(&n, 1))
		return &fakeTransport{id: id}, nil
	}, &n
}

func TestAcquireReusesReleasedConnection(t *testing.T) {
	factory, created := newCountingFactory()
	p := New(factory, WithMaxConnections(2))

	conn, err := p.Acquire(context.Background(), "server-a")
	require.NoError(t, err)
	firstID := conn.Transport.id
	p.Release(conn)

	conn2, err := p.Acquire(context.Background(), "server-a")
	require.NoError(t, err)
	assert.Equal(t, firstID, conn2.Transport.id)
	assert.EqualValues(t, 1, atomic.LoadInt64(created))
}

func TestKeysHaveIndependentCapacity(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(1), WithAcquireTimeout(50*time.Millisecond))

	a, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	b, err := p.Acquire(context.Background(), "b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Transport.id, b.Transport.id)
}

func TestAcquireBlocksAtMaxThenSucceedsAfterRelease(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(1), WithAcquireTimeout(2*time.Second))

	first, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	done := make(chan *PooledConnection[*fakeTransport], 1)
	go func() {
		conn, err := p.Acquire(context.Background(), "a")
		require.NoError(t, err)
		done <- conn
	}()

	select {
	case <-done:
		t.Fatal("second acquire should have blocked while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(first)

	select {
	case conn := <-done:
		assert.NotNil(t, conn)
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked after release")
	}
}

func TestAcquireTimesOutAtCapacity(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(1), WithAcquireTimeout(30*time.Millisecond))

	_, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), "a")
	require.Error(t, err)

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.Timeouts)
}

func TestTestOnAcquireDiscardsDeadConnection(t *testing.T) {
	factory, created := newCountingFactory()
	p := New(factory, WithMaxConnections(2), WithTestOnAcquire(true))

	conn, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	conn.Transport.dead = true
	p.Release(conn)

	conn2, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	assert.NotEqual(t, conn.Transport.id, conn2.Transport.id)
	assert.EqualValues(t, 2, atomic.LoadInt64(created))
}

func TestCleanupIdleRespectsMinConnections(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(5), WithMinConnections(1), WithIdleTimeout(10*time.Millisecond))

	a, _ := p.Acquire(context.Background(), "a")
	b, _ := p.Acquire(context.Background(), "a")
	p.Release(a)
	p.Release(b)

	time.Sleep(20 * time.Millisecond)
	p.CleanupIdle()

	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
}

func TestCleanupIdleDoesNotOverfreeCapacity(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(3), WithMinConnections(0), WithIdleTimeout(10*time.Millisecond), WithAcquireTimeout(50*time.Millisecond))

	a, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	b, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	c, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	p.Release(a)
	time.Sleep(20 * time.Millisecond)
	p.CleanupIdle()

	stats := p.Stats()
	require.Equal(t, 0, stats.Idle, "expired idle connection should have been closed")
	require.Equal(t, 2, stats.InUse)

	// b and c are still checked out. Releasing a already freed one unit of
	// capacity, and closing a via cleanup must not free a second: one more
	// acquire should succeed (using that freed slot)...
	d, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)

	// ...but a second one must block, since the key is now at max_connections
	// (b, c, d all checked out). Cleanup must not have over-freed capacity.
	_, err = p.Acquire(context.Background(), "a")
	assert.Error(t, err, "key should be at max_connections with b, c, and d checked out")

	p.Release(b)
	p.Release(c)
	p.Release(d)
}

func TestCloseRejectsFurtherAcquires(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(2))

	conn, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	p.Release(conn)

	require.NoError(t, p.Close())

	_, err = p.Acquire(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStatsTrackAcquiresAndReleases(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, WithMaxConnections(4))

	conn, err := p.Acquire(context.Background(), "a")
	require.NoError(t, err)
	stats := p.Stats()
	assert.EqualValues(t, 1, stats.Acquires)
	assert.EqualValues(t, 1, stats.Created)
	assert.Equal(t, 1, stats.InUse)

	p.Release(conn)
	stats = p.Stats()
	assert.EqualValues(t, 1, stats.Releases)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
}
