package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// clusteredState tracks whether CLUSTER SLOTS has confirmed this
// deployment actually runs in Cluster mode (spec.md §4.5.2).
type clusteredState int32

const (
	clusteredUnknown clusteredState = iota
	clusteredNo
	clusteredYes
)

// slotMapEntry is one (start, upper_slot, address) row of a Cluster
// slot map.
type slotMapEntry struct {
	startSlot, upperSlot int
	addr                 string
}

// SlotMap is an immutable snapshot published wholesale on every
// successful refresh (spec.md §9's "slot map as immutable snapshot").
// Entries are sorted ascending by upperSlot.
type SlotMap []slotMapEntry

// Lookup returns the address owning slot, per "find the slot map entry
// whose upper_slot >= slot".
func (m SlotMap) Lookup(slot int) (string, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].upperSlot >= slot })
	if i < len(m) {
		return m[i].addr, true
	}
	return "", false
}

func validateSlotCoverage(entries []slotMapEntry) error {
	next := 0
	for _, e := range entries {
		if e.startSlot != next {
			return ErrIncompleteSlotMap
		}
		next = e.upperSlot + 1
	}
	if next != NumSlots {
		return ErrIncompleteSlotMap
	}
	return nil
}

// commandMeta is the cached COMMAND INFO metadata the cluster router
// needs to find a command's key.
type commandMeta struct {
	firstKeyIndex int
	movableKeys   bool
}

// DialPool constructs a Pool of Connections to one cluster/sentinel
// node address. Routers take this as a factory so they stay agnostic
// of connection-establishment policy (retry, TLS, timeouts).
type DialPool func(ctx context.Context, addr string) (*Pool, error)

// ClusterRouter implements spec.md §4.5.2: hash-slot sharded routing
// with MOVED/ASK tracking and a masters fan-out.
type ClusterRouter struct {
	noCopy noCopy

	mu        sync.RWMutex
	slotMap   SlotMap
	cmdInfo   map[string]commandMeta
	pools     map[string]*Pool
	hintAddr  string
	clustered clusteredState

	initial []string
	dial    DialPool

	Log *logrus.Entry
}

// NewClusterRouter starts unrefreshed: initial addresses are used only
// until the first successful CLUSTER SLOTS (spec.md §4.5.2).
func NewClusterRouter(initialAddrs []string, dial DialPool) *ClusterRouter {
	return &ClusterRouter{
		cmdInfo: make(map[string]commandMeta),
		pools:   make(map[string]*Pool),
		initial: append([]string(nil), initialAddrs...),
		dial:    dial,
		Log:     logrus.NewEntry(discardLogger),
	}
}

// anyPool returns an arbitrary live pool, dialing one of the initial
// addresses if none has been established yet.
func (r *ClusterRouter) anyPool(ctx context.Context) (*Pool, error) {
	r.mu.RLock()
	if r.hintAddr != "" {
		if p, ok := r.pools[r.hintAddr]; ok {
			r.mu.RUnlock()
			return p, nil
		}
	}
	for _, p := range r.pools {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pools {
		return p, nil
	}
	for _, addr := range r.initial {
		p, err := r.dial(ctx, addr)
		if err != nil {
			continue
		}
		r.pools[addr] = p
		return p, nil
	}
	return nil, ErrNoEndpointFound
}

func (r *ClusterRouter) poolForAddr(ctx context.Context, addr string) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[addr]; ok {
		return p, nil
	}
	p, err := r.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.pools[addr] = p
	return p, nil
}

// RefreshSlots issues CLUSTER SLOTS on any pool and reconciles the
// router's pool map against the result.
func (r *ClusterRouter) RefreshSlots(ctx context.Context) error {
	pool, err := r.anyPool(ctx)
	if err != nil {
		return err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return err
	}
	v, callErr := conn.Call(ctx, NewCommand("CLUSTER", "SLOTS"))
	pool.Release(conn)

	if callErr != nil {
		if _, ok := callErr.(ServerError); ok {
			r.mu.Lock()
			r.clustered = clusteredNo
			r.mu.Unlock()
			r.Log.WithError(callErr).Info("CLUSTER SLOTS rejected, treating deployment as unclustered")
			return nil
		}
		r.mu.Lock()
		r.hintAddr = ""
		r.mu.Unlock()
		r.Log.WithError(callErr).Warn("CLUSTER SLOTS refresh failed")
		return wrapIO(callErr, "refreshing cluster slot map")
	}

	entries, err := parseClusterSlots(v)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].startSlot < entries[j].startSlot })
	if err := validateSlotCoverage(entries); err != nil {
		return err
	}

	wanted := make(map[string]bool, len(entries))
	for _, e := range entries {
		wanted[e.addr] = true
	}

	r.mu.Lock()
	for addr, p := range r.pools {
		if !wanted[addr] {
			p.Close()
			delete(r.pools, addr)
		}
	}
	for addr := range wanted {
		if _, ok := r.pools[addr]; ok {
			continue
		}
		if p, derr := r.dial(ctx, addr); derr == nil {
			r.pools[addr] = p
		} else {
			r.Log.WithError(derr).WithField("addr", addr).Warn("could not dial newly discovered cluster node")
		}
	}
	r.slotMap = entries
	r.clustered = clusteredYes
	r.mu.Unlock()
	r.Log.WithField("slots", len(entries)).Debug("cluster slot map refreshed")
	return nil
}

func parseClusterSlots(v Value) ([]slotMapEntry, error) {
	if v.Type != TypeArray {
		return nil, newProtocolError("CLUSTER SLOTS: expected array reply, got %s", v.Type)
	}
	out := make([]slotMapEntry, 0, len(v.Array))
	for _, row := range v.Array {
		if row.Type != TypeArray || len(row.Array) < 3 {
			return nil, newProtocolError("CLUSTER SLOTS: malformed row")
		}
		start := int(row.Array[0].Integer)
		end := int(row.Array[1].Integer)
		node := row.Array[2]
		if node.Type != TypeArray || len(node.Array) < 2 {
			return nil, newProtocolError("CLUSTER SLOTS: malformed node entry")
		}
		addr := fmt.Sprintf("%s:%d", node.Array[0].Bytes, node.Array[1].Integer)
		out = append(out, slotMapEntry{startSlot: start, upperSlot: end, addr: addr})
	}
	return out, nil
}

// cachedCommandMeta resolves command metadata via COMMAND INFO,
// caching the result.
func (r *ClusterRouter) cachedCommandMeta(ctx context.Context, name string) (commandMeta, bool) {
	r.mu.RLock()
	meta, ok := r.cmdInfo[name]
	r.mu.RUnlock()
	if ok {
		return meta, true
	}

	pool, err := r.anyPool(ctx)
	if err != nil {
		return commandMeta{}, false
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return commandMeta{}, false
	}
	v, callErr := conn.Call(ctx, NewCommand("COMMAND", "INFO", name))
	pool.Release(conn)
	if callErr != nil || v.Type != TypeArray || len(v.Array) == 0 || v.Array[0].IsNull() {
		return commandMeta{}, false
	}
	row := v.Array[0]
	if row.Type != TypeArray || len(row.Array) < 4 {
		return commandMeta{}, false
	}
	firstKey := int(row.Array[3].Integer)
	meta = commandMeta{firstKeyIndex: firstKey, movableKeys: firstKey == 0}

	r.mu.Lock()
	r.cmdInfo[name] = meta
	r.mu.Unlock()
	return meta, true
}

func commandKeyBytes(a interface{}) []byte {
	switch v := a.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// commandKey extracts cmd's routing key, consulting COMMAND INFO and,
// for movable-key commands, COMMAND GETKEYS.
func (r *ClusterRouter) commandKey(ctx context.Context, cmd Command) ([]byte, bool) {
	name := strings.ToUpper(cmd.Name())
	meta, ok := r.cachedCommandMeta(ctx, name)
	if !ok {
		return nil, false
	}
	if meta.firstKeyIndex > 0 {
		if meta.firstKeyIndex < len(cmd.Args) {
			if key := commandKeyBytes(cmd.Args[meta.firstKeyIndex]); key != nil {
				return key, true
			}
		}
		return nil, false
	}
	if !meta.movableKeys {
		return nil, false
	}

	pool, err := r.anyPool(ctx)
	if err != nil {
		return nil, false
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, false
	}
	args := append([]interface{}{"COMMAND", "GETKEYS"}, cmd.Args...)
	v, callErr := conn.Call(ctx, NewCommand(args...))
	pool.Release(conn)
	if callErr != nil || v.Type != TypeArray || len(v.Array) == 0 {
		return nil, false
	}
	return v.Array[0].Bytes, true
}

// firstKey picks the first command in cmds that yields a routing key,
// per spec.md's "for a pipeline of multiple commands, pick the first
// command that yields a key".
func (r *ClusterRouter) firstKey(ctx context.Context, cmds []Command) ([]byte, bool) {
	for _, cmd := range cmds {
		if key, ok := r.commandKey(ctx, cmd); ok {
			return key, true
		}
	}
	return nil, false
}

// resolvePool picks the Pool a set of commands should go to: an
// explicit endpoint override wins outright, otherwise it is
// slot-routed (or "any pool" while not confirmed clustered).
func (r *ClusterRouter) resolvePool(ctx context.Context, endpoint string, cmds []Command) (*Pool, error) {
	if endpoint != "" {
		return r.poolForAddr(ctx, endpoint)
	}

	r.mu.RLock()
	clustered := r.clustered
	r.mu.RUnlock()
	if clustered != clusteredYes {
		return r.anyPool(ctx)
	}

	key, ok := r.firstKey(ctx, cmds)
	if !ok {
		return r.anyPool(ctx)
	}
	slot := HashSlot(key)
	r.mu.RLock()
	addr, found := r.slotMap.Lookup(slot)
	var pool *Pool
	if found {
		pool = r.pools[addr]
	}
	r.mu.RUnlock()
	if pool == nil {
		return r.anyPool(ctx)
	}
	return pool, nil
}

// Call executes one command, retrying exactly once on MOVED (after a
// slot refresh, and only when the caller pinned no explicit endpoint)
// or ASK (against the redirect target, ASKING-prefixed, whether or not
// an endpoint was pinned). endpoint="masters"
// instead fans the command out to every known master concurrently
// (spec.md §4.5.2 "Fan-out") and folds the per-shard outcomes into a
// single Map reply, address -> reply-or-error.
func (r *ClusterRouter) Call(ctx context.Context, cmd Command) (Value, error) {
	return r.call(ctx, cmd, true)
}

func (r *ClusterRouter) call(ctx context.Context, cmd Command, allowRetry bool) (Value, error) {
	if cmd.Options.Endpoint == EndpointMasters {
		return r.callFanoutAsValue(ctx, cmd)
	}

	pool, err := r.resolvePool(ctx, cmd.Options.Endpoint, []Command{cmd})
	if err != nil {
		return Value{}, err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return Value{}, err
	}
	v, callErr := conn.Call(ctx, cmd)
	movedAddr, moved := conn.TakeMoved()
	askAddr, ask := conn.TakeAsk()
	pool.Release(conn)

	if moved {
		r.Log.WithField("addr", movedAddr).Debug("MOVED redirect, refreshing slot map")
		r.RefreshSlots(ctx)
		if allowRetry && cmd.Options.Endpoint == "" {
			return r.call(ctx, cmd, false)
		}
	}
	if ask && allowRetry {
		retryOpts := cmd.Options
		retryOpts.Asking = true
		return r.callAt(ctx, cmd.WithOptions(retryOpts), askAddr)
	}
	return v, callErr
}

// callFanoutAsValue runs CallFanout and folds its per-shard results into
// a single Map value, keyed by address, with a failed shard's error
// rendered as an Error value rather than aborting the whole call.
func (r *ClusterRouter) callFanoutAsValue(ctx context.Context, cmd Command) (Value, error) {
	results, err := r.CallFanout(ctx, cmd)
	if err != nil {
		return Value{}, err
	}
	pairs := make([]MapEntry, 0, len(results))
	for addr, res := range results {
		v := res.Value
		if res.Err != nil {
			v = newError([]byte(res.Err.Error()))
		}
		pairs = append(pairs, MapEntry{Key: newBulkString([]byte(addr)), Value: v})
	}
	return newMap(pairs), nil
}

func (r *ClusterRouter) callAt(ctx context.Context, cmd Command, addr string) (Value, error) {
	pool, err := r.poolForAddr(ctx, addr)
	if err != nil {
		return Value{}, err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return Value{}, err
	}
	defer pool.Release(conn)
	return conn.Call(ctx, cmd)
}

// CallPipeline never retries on MOVED/ASK (SPEC_FULL.md Open Question
// (a): source comments say no automatic retry for pipelines). A MOVED
// reply anywhere in the pipeline still refreshes the slot map before
// the results are returned.
func (r *ClusterRouter) CallPipeline(ctx context.Context, cmds []Command) ([]Value, error) {
	pool, err := r.resolvePool(ctx, "", cmds)
	if err != nil {
		return nil, err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	results, callErr := conn.Pipeline(ctx, cmds)
	pool.Release(conn)
	for _, v := range results {
		if se, ok := v.Err().(ServerError); ok && se.IsMoved() {
			r.Log.Debug("MOVED inside pipeline, refreshing slot map")
			r.RefreshSlots(ctx)
			break
		}
	}
	return results, callErr
}

func (r *ClusterRouter) WithConnection(ctx context.Context, keyOrEndpoint string, fn func(*Connection) error) error {
	var pool *Pool
	var err error
	if looksLikeEndpoint(keyOrEndpoint) {
		pool, err = r.poolForAddr(ctx, keyOrEndpoint)
	} else {
		r.mu.RLock()
		clustered := r.clustered
		r.mu.RUnlock()
		if clustered != clusteredYes {
			pool, err = r.anyPool(ctx)
		} else {
			slot := HashSlot([]byte(keyOrEndpoint))
			r.mu.RLock()
			addr, found := r.slotMap.Lookup(slot)
			if found {
				pool = r.pools[addr]
			}
			r.mu.RUnlock()
			if pool == nil {
				pool, err = r.anyPool(ctx)
			}
		}
	}
	if err != nil {
		return err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(conn)
	return fn(conn)
}

func looksLikeEndpoint(s string) bool {
	return strings.Contains(s, ":") || isUnixAddr(s)
}

// FanoutResult is one shard's outcome from CallFanout.
type FanoutResult struct {
	Value Value
	Err   error
}

// CallFanout invokes cmd against every known master/leader endpoint
// concurrently; a per-shard failure does not abort the others
// (spec.md §4.5.2 "Fan-out").
func (r *ClusterRouter) CallFanout(ctx context.Context, cmd Command) (map[string]FanoutResult, error) {
	r.mu.RLock()
	pools := make(map[string]*Pool, len(r.pools))
	for addr, p := range r.pools {
		pools[addr] = p
	}
	r.mu.RUnlock()

	r.Log.WithField("targets", len(pools)).Debug("fanning out command to masters")
	results := make(map[string]FanoutResult, len(pools))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for addr, pool := range pools {
		addr, pool := addr, pool
		g.Go(func() error {
			conn, err := pool.Take(gctx)
			if err != nil {
				mu.Lock()
				results[addr] = FanoutResult{Err: err}
				mu.Unlock()
				return nil
			}
			v, callErr := conn.Call(gctx, cmd)
			pool.Release(conn)
			mu.Lock()
			results[addr] = FanoutResult{Value: v, Err: callErr}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results, nil
}

func (r *ClusterRouter) Endpoints(context.Context) ([]Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.pools))
	for addr := range r.pools {
		out = append(out, Endpoint{Address: addr, Role: "master"})
	}
	return out, nil
}

func (r *ClusterRouter) Close() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*Pool)
	r.mu.Unlock()
	for _, p := range pools {
		p.Close()
	}
	return nil
}
