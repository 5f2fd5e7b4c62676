package redis

import "context"

// Endpoint describes one node a Router knows about.
type Endpoint struct {
	Address string
	Role    string // "regular", "master"/"leader", "replica", "sentinel"
}

// Router is the common façade spec.md §4.5 gives all three topology
// variants: a single call/pipeline entry point, a way to borrow a
// Connection scoped to a key or explicit endpoint (for MULTI/EXEC
// transactions), a topology listing, and teardown.
type Router interface {
	Call(ctx context.Context, cmd Command) (Value, error)
	CallPipeline(ctx context.Context, cmds []Command) ([]Value, error)
	WithConnection(ctx context.Context, keyOrEndpoint string, fn func(*Connection) error) error
	Endpoints(ctx context.Context) ([]Endpoint, error)
	Close() error
}

// StandaloneRouter routes everything to one Pool (spec.md §4.5.1).
type StandaloneRouter struct {
	noCopy noCopy
	addr   string
	pool   *Pool
}

// NewStandaloneRouter wraps an already-constructed Pool for addr.
func NewStandaloneRouter(addr string, pool *Pool) *StandaloneRouter {
	return &StandaloneRouter{addr: addr, pool: pool}
}

func (r *StandaloneRouter) Call(ctx context.Context, cmd Command) (Value, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return Value{}, err
	}
	defer r.pool.Release(conn)
	return conn.Call(ctx, cmd)
}

func (r *StandaloneRouter) CallPipeline(ctx context.Context, cmds []Command) ([]Value, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer r.pool.Release(conn)
	return conn.Pipeline(ctx, cmds)
}

func (r *StandaloneRouter) WithConnection(ctx context.Context, _ string, fn func(*Connection) error) error {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer r.pool.Release(conn)
	return fn(conn)
}

func (r *StandaloneRouter) Endpoints(context.Context) ([]Endpoint, error) {
	return []Endpoint{{Address: r.addr, Role: "regular"}}, nil
}

func (r *StandaloneRouter) Close() error { return r.pool.Close() }
