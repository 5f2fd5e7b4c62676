package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// Options gathers the connect-time settings spec.md §6 lists. All
// fields have workable zero values except Address/Addresses, which the
// caller must supply one of.
type Options struct {
	// Address is a single endpoint; Addresses is used instead for
	// Cluster or Sentinel topologies with more than one seed node.
	Address   string
	Addresses []string

	Username   string
	Password   string
	ClientName string

	// RespVersion is -1 (auto), 2, or 3.
	RespVersion int

	// SocketFactory selects the transport: "tcp" (default), "unix", or
	// "ssl" (TLS-wrapped TCP, configured via CAFile/CertFile/KeyFile).
	SocketFactory string
	CAFile        string
	CertFile      string
	KeyFile       string

	// ConnectRetry is the number of *extra* attempts beyond the first
	// (default 2).
	ConnectRetry int

	Database       int64
	MaxConnections int64
	WaitTimeout    time.Duration
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	TCPKeepAlive   time.Duration
	TCPNoDelay     bool

	// PoolFactory selects the router topology: "pool" (standalone),
	// "cluster", or "sentinel".
	PoolFactory string

	// Sentinel-specific.
	GroupName        string
	SentinelPassword string

	// AllowMulti permits MULTI on connections from this configuration;
	// false rejects it per spec.md §4.3.
	AllowMulti bool
}

func (o Options) withDefaults() Options {
	if o.RespVersion == 0 {
		o.RespVersion = -1
	}
	if o.ConnectRetry == 0 {
		o.ConnectRetry = 2
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = time.Second
	}
	return o
}

func (o Options) addresses() []string {
	if len(o.Addresses) > 0 {
		return o.Addresses
	}
	if o.Address != "" {
		return []string{o.Address}
	}
	return nil
}

func (o Options) tlsConfig() (*tls.Config, error) {
	if o.SocketFactory != "ssl" {
		return nil, nil
	}
	cfg := &tls.Config{}
	if o.CAFile != "" {
		pool := x509.NewCertPool()
		pem, err := os.ReadFile(o.CAFile)
		if err != nil {
			return nil, fmt.Errorf("redis: reading CA file: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("redis: no certificates found in %s", o.CAFile)
		}
		cfg.RootCAs = pool
	}
	if o.CertFile != "" && o.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("redis: loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// newEndpointPool builds a Pool whose connections dial addr, retrying
// connection establishment up to ConnectRetry extra times, then
// handshake with the given options.
func newEndpointPool(addr string, opts Options) (*Pool, error) {
	opts = opts.withDefaults()
	tlsCfg, err := opts.tlsConfig()
	if err != nil {
		return nil, err
	}

	// pool is assigned below, after NewPool runs; the factory only reads
	// pool.Log once Take starts calling it, by which point it is set.
	var pool *Pool

	factory := func(ctx context.Context) (*Connection, error) {
		attempts := opts.ConnectRetry + 1
		var lastErr error
		for i := 0; i < attempts; i++ {
			dialOpts := DialOptions{
				ConnectTimeout: opts.ConnectTimeout,
				ReadTimeout:    opts.SocketTimeout,
				TCPNoDelay:     opts.TCPNoDelay,
				TCPKeepAlive:   opts.TCPKeepAlive,
				TLSConfig:      tlsCfg,
			}
			transport, derr := Dial(ctx, addr, dialOpts)
			if derr != nil {
				lastErr = derr
				if pool != nil {
					pool.Log.WithError(derr).WithField("addr", addr).
						Warnf("dial attempt %d/%d failed", i+1, attempts)
				}
				continue
			}
			conn := newConnection(transport, false)
			hsCtx := ctx
			var cancel context.CancelFunc
			if opts.ConnectTimeout > 0 {
				hsCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
			}
			herr := conn.Handshake(hsCtx, HandshakeOptions{
				RespVersion: opts.RespVersion,
				Username:    opts.Username,
				Password:    opts.Password,
				ClientName:  opts.ClientName,
				Database:    opts.Database,
				AllowMulti:  opts.AllowMulti,
			})
			if cancel != nil {
				cancel()
			}
			if herr != nil {
				lastErr = herr
				if pool != nil {
					pool.Log.WithError(herr).WithField("addr", addr).
						Warnf("handshake attempt %d/%d failed", i+1, attempts)
				}
				continue
			}
			return conn, nil
		}
		return nil, wrapIO(lastErr, "dialing "+addr+" exhausted retries")
	}

	pool = NewPool(factory, opts.MaxConnections, opts.WaitTimeout)
	return pool, nil
}

// NewRouter builds the Router spec.md §6's PoolFactory selects:
// "pool" for StandaloneRouter, "cluster" for ClusterRouter, "sentinel"
// for SentinelRouter.
func NewRouter(opts Options) (Router, error) {
	opts = opts.withDefaults()
	addrs := opts.addresses()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis: no address configured")
	}

	switch opts.PoolFactory {
	case "", "pool":
		pool, err := newEndpointPool(normalizeAddr(addrs[0]), opts)
		if err != nil {
			return nil, err
		}
		return NewStandaloneRouter(normalizeAddr(addrs[0]), pool), nil

	case "cluster":
		dial := func(ctx context.Context, addr string) (*Pool, error) {
			return newEndpointPool(addr, opts)
		}
		router := NewClusterRouter(addrs, dial)
		router.RefreshSlots(context.Background())
		return router, nil

	case "sentinel":
		dataOpts := opts
		sentinelOpts := opts
		sentinelOpts.Password = opts.SentinelPassword
		dialData := func(ctx context.Context, addr string) (*Pool, error) {
			return newEndpointPool(addr, dataOpts)
		}
		dialSentinel := func(ctx context.Context, addr string) (*Pool, error) {
			return newEndpointPool(addr, sentinelOpts)
		}
		return NewSentinelRouter(opts.GroupName, addrs, dialData, dialSentinel), nil

	default:
		return nil, fmt.Errorf("redis: unknown pool_factory %q", opts.PoolFactory)
	}
}
