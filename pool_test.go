package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport is a minimal Transport that never touches a real
// socket, for exercising Pool bookkeeping without a server. Every read
// answers "+OK", which is what a release-time DISCARD expects.
type stubTransport struct {
	closed int32
}

func (s *stubTransport) Send([][]byte) error         { return nil }
func (s *stubTransport) Recv() ([]byte, error)       { return []byte("+OK\r\n"), nil }
func (s *stubTransport) Peer() string                { return "stub" }
func (s *stubTransport) SetDeadline(time.Time) error { return nil }
func (s *stubTransport) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

func newStubConnection() *Connection {
	c := newConnection(&stubTransport{}, false)
	c.state = stateReady
	return c
}

func countingFactory() (ConnFactory, *int32) {
	var n int32
	return func(ctx context.Context) (*Connection, error) {
		atomic.AddInt32(&n, 1)
		return newStubConnection(), nil
	}, &n
}

func TestPoolTakeReleaseFIFOReuse(t *testing.T) {
	factory, n := countingFactory()
	p := NewPool(factory, 2, time.Second)

	c1, err := p.Take(context.Background())
	require.NoError(t, err)
	p.Release(c1)
	c2, err := p.Take(context.Background())
	require.NoError(t, err)
	assert.Same(t, c1, c2, "expected the idle connection to be reused")
	assert.EqualValues(t, 1, atomic.LoadInt32(n))
}

func TestPoolCapacityInvariant(t *testing.T) {
	factory, _ := countingFactory()
	p := NewPool(factory, 2, 20*time.Millisecond)

	c1, err := p.Take(context.Background())
	require.NoError(t, err)
	c2, err := p.Take(context.Background())
	require.NoError(t, err)

	_, err = p.Take(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)

	p.Release(c1)
	c3, err := p.Take(context.Background())
	require.NoError(t, err)
	assert.Same(t, c1, c3, "expected the released connection back")
	p.Release(c2)
	p.Release(c3)
}

func TestPoolTakeZeroWaitTimeoutFailsFastWhenExhausted(t *testing.T) {
	factory, _ := countingFactory()
	p := NewPool(factory, 1, 0)

	c1, err := p.Take(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Take(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Less(t, elapsed, 100*time.Millisecond, "wait_timeout == 0 must fail immediately, not block")

	p.Release(c1)
}

func TestPoolUnboundedNeverBlocks(t *testing.T) {
	factory, n := countingFactory()
	p := NewPool(factory, 0, 0)
	for i := 0; i < 5; i++ {
		_, err := p.Take(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 5, atomic.LoadInt32(n))
}

func TestPoolReleaseDiscardsMultiState(t *testing.T) {
	factory, _ := countingFactory()
	p := NewPool(factory, 1, time.Second)
	c, err := p.Take(context.Background())
	require.NoError(t, err)
	c.state = stateInMulti
	p.Release(c)
	assert.Equal(t, stateReady, c.State(), "Discard on release should reset state")

	idle, inUse := p.Len()
	assert.Equal(t, 1, idle)
	assert.Equal(t, 0, inUse)
}

func TestPoolReleaseOfClosedConnectionIsNotRequeued(t *testing.T) {
	factory, _ := countingFactory()
	p := NewPool(factory, 1, time.Second)
	c, err := p.Take(context.Background())
	require.NoError(t, err)
	c.Close()
	p.Release(c)
	idle, inUse := p.Len()
	assert.Equal(t, 0, idle)
	assert.Equal(t, 0, inUse)
}

func TestPoolCloseTearsDownIdleAndInUse(t *testing.T) {
	factory, _ := countingFactory()
	p := NewPool(factory, 2, time.Second)
	c1, err := p.Take(context.Background())
	require.NoError(t, err)
	c2, err := p.Take(context.Background())
	require.NoError(t, err)
	p.Release(c1)

	require.NoError(t, p.Close())
	assert.True(t, c1.IsClosed())
	assert.True(t, c2.IsClosed())

	_, err = p.Take(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolDoubleReleaseDestroysConnection(t *testing.T) {
	factory, _ := countingFactory()
	p := NewPool(factory, 1, time.Second)
	c, err := p.Take(context.Background())
	require.NoError(t, err)
	p.Release(c)
	p.Release(c) // second release: no longer in the in-use set
	idle, _ := p.Len()
	assert.Equal(t, 1, idle, "second release must not duplicate the entry")
}
