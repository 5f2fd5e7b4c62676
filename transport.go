package redis

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// recvBufferSize is the size of the internal buffer Transport
// implementations read into. spec.md §2: "an internal buffer (≈64 KiB)
// absorbs partial reads".
const recvBufferSize = 64 * 1024

// Transport is the wire-level boundary a Connection drives: send
// already-encoded bytes, receive whatever arrived, know which peer this
// is, and close. spec.md §2 keeps this surface deliberately narrow so
// TCP, Unix domain sockets, and TLS all satisfy it with the same shape.
type Transport interface {
	// Send writes chunks to the peer in order. Implementations may
	// coalesce writes but must not reorder them.
	Send(chunks [][]byte) error

	// Recv blocks for at least one byte (subject to the configured read
	// timeout) and returns a slice valid only until the next Recv call.
	Recv() ([]byte, error)

	// Peer identifies the remote endpoint, e.g. "127.0.0.1:6379" or
	// "/var/run/redis.sock".
	Peer() string

	// SetDeadline overrides the deadline applied to the next Recv; Send
	// is not bounded by it. A zero Time reverts to the transport's configured ReadTimeout
	// default. Connection uses this to bound an individual call with a
	// context deadline distinct from the steady-state read timeout.
	SetDeadline(t time.Time) error

	Close() error
}

// DialOptions configures transport establishment. ConnectTimeout bounds
// dialing; ReadTimeout is applied as a fresh deadline before every Recv
// and is distinct from the connect timeout per spec.md §2.
type DialOptions struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	TCPNoDelay     bool
	TCPKeepAlive   time.Duration // 0 disables keepalive
	TLSConfig      *tls.Config   // non-nil dials with TLS
}

// netTransport implements Transport over any net.Conn, which covers
// TCP, Unix domain sockets, and TLS-wrapped TCP uniformly.
type netTransport struct {
	conn     net.Conn
	peer     string
	opts     DialOptions
	deadline time.Time
	buf      [recvBufferSize]byte
}

// Dial connects to addr, choosing the Unix domain socket network when
// addr looks like an absolute path (see isUnixAddr), and wrapping the
// connection in TLS when opts.TLSConfig is set.
func Dial(ctx context.Context, addr string, opts DialOptions) (Transport, error) {
	addr = normalizeAddr(addr)
	network := "tcp"
	if isUnixAddr(addr) {
		network = "unix"
	}

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	if network == "tcp" && opts.TCPKeepAlive > 0 {
		dialer.KeepAlive = opts.TCPKeepAlive
	} else if network == "tcp" {
		dialer.KeepAlive = -1 // disabled
	}

	var conn net.Conn
	var err error
	if opts.TLSConfig != nil {
		tlsDialer := tls.Dialer{NetDialer: &dialer, Config: opts.TLSConfig}
		conn, err = tlsDialer.DialContext(ctx, network, addr)
	} else {
		conn, err = dialer.DialContext(ctx, network, addr)
	}
	if err != nil {
		return nil, newCommunicationError(addr, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(opts.TCPNoDelay)
	}

	return &netTransport{conn: conn, peer: addr, opts: opts}, nil
}

func (t *netTransport) Send(chunks [][]byte) error {
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		if _, err := t.conn.Write(c); err != nil {
			return newCommunicationError(t.peer, err)
		}
	}
	return nil
}

func (t *netTransport) Recv() ([]byte, error) {
	switch {
	case !t.deadline.IsZero():
		t.conn.SetReadDeadline(t.deadline)
	case t.opts.ReadTimeout > 0:
		t.conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
	default:
		t.conn.SetReadDeadline(time.Time{})
	}
	n, err := t.conn.Read(t.buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, newCommunicationError(t.peer, err)
	}
	return t.buf[:n], nil
}

func (t *netTransport) Peer() string { return t.peer }

func (t *netTransport) SetDeadline(deadline time.Time) error {
	t.deadline = deadline
	return nil
}

func (t *netTransport) Close() error { return t.conn.Close() }
