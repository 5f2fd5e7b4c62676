package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ConnFactory dials and handshakes a new Connection for a Pool.
type ConnFactory func(ctx context.Context) (*Connection, error)

// Pool is a bounded, multiplexed pool of Connections to one endpoint
// (spec.md §4.4). It owns a FIFO of idle connections and a set of
// in-use connections, and — when capacity is bounded — a counting
// semaphore that every live connection holds one permit of for its
// entire lifetime.
type Pool struct {
	noCopy noCopy

	mu          sync.Mutex
	idle        []*Connection
	inUse       map[*Connection]struct{}
	closed      bool
	sem         *semaphore.Weighted
	waitTimeout time.Duration
	factory     ConnFactory

	Log *logrus.Entry
}

// NewPool constructs a Pool. capacity <= 0 means unbounded (no
// semaphore is allocated; take never blocks on capacity).
func NewPool(factory ConnFactory, capacity int64, waitTimeout time.Duration) *Pool {
	p := &Pool{
		inUse:       make(map[*Connection]struct{}),
		factory:     factory,
		waitTimeout: waitTimeout,
		Log:         logrus.NewEntry(discardLogger),
	}
	if capacity > 0 {
		p.sem = semaphore.NewWeighted(capacity)
	}
	return p
}

// Take pops a connection from the idle FIFO, skipping closed entries.
// If the FIFO is empty and capacity permits, it constructs a new
// Connection via the factory. If capacity is exhausted, it waits on
// the semaphore up to the configured wait timeout, then fails with
// ErrPoolExhausted. A waitTimeout of 0 tries once and fails immediately
// instead of waiting at all.
func (p *Pool) Take(ctx context.Context) (*Connection, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		if len(p.idle) == 0 {
			break
		}
		conn := p.idle[0]
		p.idle = p.idle[1:]
		if conn.IsClosed() {
			p.mu.Unlock()
			if p.sem != nil {
				p.sem.Release(1)
			}
			continue
		}
		p.inUse[conn] = struct{}{}
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	if p.sem != nil {
		if p.waitTimeout <= 0 {
			// wait_timeout == 0: try once, fail immediately, matching
			// the Python original's acquire(True, 0) semantics.
			if !p.sem.TryAcquire(1) {
				p.Log.Warn("pool exhausted, wait_timeout == 0 fails immediately")
				return nil, ErrPoolExhausted
			}
		} else {
			acquireCtx, cancel := context.WithTimeout(ctx, p.waitTimeout)
			defer cancel()
			if err := p.sem.Acquire(acquireCtx, 1); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					p.Log.WithField("wait_timeout", p.waitTimeout).Warn("pool exhausted, wait_timeout elapsed")
					return nil, ErrPoolExhausted
				}
				return nil, ctx.Err()
			}
		}
	}

	conn, err := p.factory(ctx)
	if err != nil {
		if p.sem != nil {
			p.sem.Release(1)
		}
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		if p.sem != nil {
			p.sem.Release(1)
		}
		return nil, ErrClosed
	}
	p.inUse[conn] = struct{}{}
	p.mu.Unlock()
	return conn, nil
}

// Release returns a connection to the pool. A connection left in
// in_multi has a best-effort DISCARD issued first (spec.md's MULTI
// guard). A connection no longer in the in-use set — released twice,
// or released after Close — is destroyed rather than re-queued.
func (p *Pool) Release(conn *Connection) {
	p.mu.Lock()
	if _, ok := p.inUse[conn]; !ok {
		p.mu.Unlock()
		conn.Close()
		return
	}
	delete(p.inUse, conn)
	p.mu.Unlock()

	if !conn.IsClosed() && conn.State() == stateInMulti {
		conn.Discard(context.Background())
	}

	p.mu.Lock()
	if p.closed || conn.IsClosed() {
		p.mu.Unlock()
		conn.Close()
		if p.sem != nil {
			p.sem.Release(1)
		}
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Close atomically closes every idle and in-use connection. Further
// Take calls fail with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	inUse := make([]*Connection, 0, len(p.inUse))
	for c := range p.inUse {
		inUse = append(inUse, c)
	}
	p.inUse = make(map[*Connection]struct{})
	p.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	for _, c := range inUse {
		c.Close()
	}
	if p.sem != nil && len(idle)+len(inUse) > 0 {
		p.sem.Release(int64(len(idle) + len(inUse)))
	}
	return nil
}

// Len reports the number of idle and in-use connections currently
// tracked, for diagnostics and tests.
func (p *Pool) Len() (idle, inUse int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), len(p.inUse)
}
