package redis

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// SentinelRouter implements spec.md §4.5.3: leader/replica/sentinel
// discovery for one named group, with failover-driven rediscovery.
type SentinelRouter struct {
	noCopy noCopy

	mu               sync.RWMutex
	groupName        string
	knownSentinels   []string // config-seeded; grows as discovery finds more
	sentinelPools    map[string]*Pool
	leaderPool       *Pool
	leaderAddr       string
	replicaPools     map[string]*Pool
	refreshNeeded    bool
	dialData         DialPool // dials leader/replica endpoints
	dialSentinel     DialPool // dials sentinel endpoints (separate, sentinel-only password)

	Log *logrus.Entry
}

// NewSentinelRouter seeds the router with the sentinel addresses given
// in configuration; Discover must be called (or happens lazily on
// first Call) before routing succeeds.
func NewSentinelRouter(groupName string, initialSentinels []string, dialData, dialSentinel DialPool) *SentinelRouter {
	return &SentinelRouter{
		groupName:      groupName,
		knownSentinels: append([]string(nil), initialSentinels...),
		sentinelPools:  make(map[string]*Pool),
		replicaPools:   make(map[string]*Pool),
		dialData:       dialData,
		dialSentinel:   dialSentinel,
		refreshNeeded:  true,
		Log:            logrus.NewEntry(discardLogger),
	}
}

// Discover tries each known sentinel in turn for SENTINEL MASTER,
// SENTINEL SENTINELS, and SENTINEL REPLICAS; the first to answer all
// three wins and its view reconciles the three pool sets.
func (r *SentinelRouter) Discover(ctx context.Context) error {
	r.mu.RLock()
	candidates := append([]string(nil), r.knownSentinels...)
	r.mu.RUnlock()

	for _, addr := range candidates {
		pool, err := r.poolForSentinel(ctx, addr)
		if err != nil {
			r.Log.WithError(err).WithField("sentinel", addr).Warn("could not dial sentinel")
			continue
		}
		conn, err := pool.Take(ctx)
		if err != nil {
			r.Log.WithError(err).WithField("sentinel", addr).Warn("could not take a connection to sentinel")
			continue
		}
		masterVal, err1 := conn.Call(ctx, NewCommand("SENTINEL", "MASTER", r.groupName))
		sentinelsVal, err2 := conn.Call(ctx, NewCommand("SENTINEL", "SENTINELS", r.groupName))
		replicasVal, err3 := conn.Call(ctx, NewCommand("SENTINEL", "REPLICAS", r.groupName))
		pool.Release(conn)
		if _, ok := err1.(*CommunicationError); ok {
			r.Log.WithError(err1).WithField("sentinel", addr).Warn("sentinel unreachable, trying next candidate")
			continue
		}
		if err1 != nil || err2 != nil || err3 != nil || masterIsEmpty(masterVal) {
			continue
		}

		leaderAddr, err := parseSentinelMaster(masterVal)
		if err != nil {
			continue
		}
		sentinelAddrs, err := parseSentinelNodeList(sentinelsVal)
		if err != nil {
			continue
		}
		if !containsAddr(sentinelAddrs, addr) {
			sentinelAddrs = append(sentinelAddrs, addr)
		}
		replicaAddrs, err := parseSentinelNodeList(replicasVal)
		if err != nil {
			continue
		}

		r.reconcile(ctx, leaderAddr, sentinelAddrs, replicaAddrs)
		return nil
	}
	r.Log.WithField("group", r.groupName).Error("no sentinel could answer MASTER/SENTINELS/REPLICAS")
	return wrapIO(ErrNoSentinelFound, "discovering group "+r.groupName)
}

func (r *SentinelRouter) poolForSentinel(ctx context.Context, addr string) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.sentinelPools[addr]; ok {
		return p, nil
	}
	p, err := r.dialSentinel(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.sentinelPools[addr] = p
	return p, nil
}

func (r *SentinelRouter) reconcile(ctx context.Context, leaderAddr string, sentinelAddrs, replicaAddrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.leaderAddr != leaderAddr || r.leaderPool == nil {
		r.Log.WithField("leader", leaderAddr).Info("sentinel discovery: leader changed")
		if r.leaderPool != nil {
			r.leaderPool.Close()
		}
		if p, err := r.dialData(ctx, leaderAddr); err == nil {
			r.leaderPool = p
			r.leaderAddr = leaderAddr
		} else {
			r.Log.WithError(err).WithField("leader", leaderAddr).Warn("could not dial new leader")
		}
	}
	r.sentinelPools = reconcilePoolSet(ctx, r.sentinelPools, sentinelAddrs, r.dialSentinel)
	r.replicaPools = reconcilePoolSet(ctx, r.replicaPools, replicaAddrs, r.dialData)
	r.knownSentinels = sentinelAddrs
	r.refreshNeeded = false
}

func reconcilePoolSet(ctx context.Context, existing map[string]*Pool, wanted []string, dial DialPool) map[string]*Pool {
	wantedSet := make(map[string]bool, len(wanted))
	for _, a := range wanted {
		wantedSet[a] = true
	}
	out := make(map[string]*Pool, len(wanted))
	for addr, p := range existing {
		if wantedSet[addr] {
			out[addr] = p
		} else {
			p.Close()
		}
	}
	for _, addr := range wanted {
		if _, ok := out[addr]; ok {
			continue
		}
		if p, err := dial(ctx, addr); err == nil {
			out[addr] = p
		}
	}
	return out
}

func masterIsEmpty(v Value) bool {
	return v.IsNull() || (v.Type == TypeArray && len(v.Array) == 0)
}

func flatFieldsToMap(v Value) (map[string]string, error) {
	if v.Type != TypeArray {
		return nil, newProtocolError("SENTINEL reply: expected flat array")
	}
	if len(v.Array)%2 != 0 {
		return nil, newProtocolError("SENTINEL reply: odd field/value count")
	}
	out := make(map[string]string, len(v.Array)/2)
	for i := 0; i+1 < len(v.Array); i += 2 {
		out[string(v.Array[i].Bytes)] = string(v.Array[i+1].Bytes)
	}
	return out, nil
}

func parseSentinelMaster(v Value) (string, error) {
	fields, err := flatFieldsToMap(v)
	if err != nil {
		return "", err
	}
	ip, ok1 := fields["ip"]
	port, ok2 := fields["port"]
	if !ok1 || !ok2 {
		return "", errors.New("redis: SENTINEL MASTER reply missing ip/port")
	}
	return net.JoinHostPort(ip, port), nil
}

func parseSentinelNodeList(v Value) ([]string, error) {
	if v.Type != TypeArray {
		return nil, newProtocolError("SENTINEL node list: expected array")
	}
	out := make([]string, 0, len(v.Array))
	for _, row := range v.Array {
		fields, err := flatFieldsToMap(row)
		if err != nil {
			continue
		}
		ip, ok1 := fields["ip"]
		port, ok2 := fields["port"]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, net.JoinHostPort(ip, port))
	}
	return out, nil
}

func containsAddr(list []string, addr string) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func randomPool(m map[string]*Pool) *Pool {
	i, n := rand.Intn(len(m)), 0
	for _, p := range m {
		if n == i {
			return p
		}
		n++
	}
	return nil
}

// poolFor resolves endpoint (EndpointLeader/Replica/Sentinel, "" for
// leader, or an explicit address) to a Pool, discovering first if the
// refresh-needed flag is set. EndpointMasters is accepted as an alias
// for the leader: a Sentinel group only ever has one master, so the
// Cluster fan-out concept degenerates to a single endpoint here.
func (r *SentinelRouter) poolFor(ctx context.Context, endpoint string) (*Pool, error) {
	r.mu.RLock()
	needsRefresh := r.refreshNeeded
	r.mu.RUnlock()
	if needsRefresh {
		if err := r.Discover(ctx); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	switch endpoint {
	case "", EndpointLeader, EndpointMasters:
		if r.leaderPool == nil {
			return nil, ErrNoEndpointFound
		}
		return r.leaderPool, nil
	case EndpointReplica:
		if len(r.replicaPools) == 0 {
			return nil, ErrNoReplicaFound
		}
		return randomPool(r.replicaPools), nil
	case EndpointSentinel:
		if len(r.sentinelPools) == 0 {
			return nil, ErrNoSentinelFound
		}
		return randomPool(r.sentinelPools), nil
	default:
		if endpoint == r.leaderAddr {
			return r.leaderPool, nil
		}
		if p, ok := r.replicaPools[endpoint]; ok {
			return p, nil
		}
		if p, ok := r.sentinelPools[endpoint]; ok {
			return p, nil
		}
		return nil, ErrNoEndpointFound
	}
}

func (r *SentinelRouter) markRefreshOn(err error) {
	if _, ok := err.(*CommunicationError); ok {
		r.Log.WithError(err).Info("communication error, marking topology for refresh")
		r.mu.Lock()
		r.refreshNeeded = true
		r.mu.Unlock()
	}
}

func (r *SentinelRouter) Call(ctx context.Context, cmd Command) (Value, error) {
	pool, err := r.poolFor(ctx, cmd.Options.Endpoint)
	if err != nil {
		return Value{}, err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return Value{}, err
	}
	v, callErr := conn.Call(ctx, cmd)
	pool.Release(conn)
	r.markRefreshOn(callErr)
	return v, callErr
}

func (r *SentinelRouter) CallPipeline(ctx context.Context, cmds []Command) ([]Value, error) {
	endpoint := ""
	if len(cmds) > 0 {
		endpoint = cmds[0].Options.Endpoint
	}
	pool, err := r.poolFor(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer pool.Release(conn)
	results, callErr := conn.Pipeline(ctx, cmds)
	r.markRefreshOn(callErr)
	return results, callErr
}

func (r *SentinelRouter) WithConnection(ctx context.Context, keyOrEndpoint string, fn func(*Connection) error) error {
	pool, err := r.poolFor(ctx, keyOrEndpoint)
	if err != nil {
		return err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(conn)
	err = fn(conn)
	r.markRefreshOn(err)
	return err
}

func (r *SentinelRouter) Endpoints(context.Context) ([]Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, 1+len(r.replicaPools)+len(r.sentinelPools))
	if r.leaderAddr != "" {
		out = append(out, Endpoint{Address: r.leaderAddr, Role: "leader"})
	}
	for addr := range r.replicaPools {
		out = append(out, Endpoint{Address: addr, Role: "replica"})
	}
	for addr := range r.sentinelPools {
		out = append(out, Endpoint{Address: addr, Role: "sentinel"})
	}
	return out, nil
}

func (r *SentinelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaderPool != nil {
		r.leaderPool.Close()
	}
	for _, p := range r.replicaPools {
		p.Close()
	}
	for _, p := range r.sentinelPools {
		p.Close()
	}
	return nil
}
