package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatArray(pairs ...string) Value {
	vals := make([]Value, len(pairs))
	for i, p := range pairs {
		vals[i] = newBulkString([]byte(p))
	}
	return newArray(vals)
}

func TestFlatFieldsToMap(t *testing.T) {
	v := flatArray("ip", "10.0.0.5", "port", "6379", "flags", "master")
	m, err := flatFieldsToMap(v)
	if err != nil {
		t.Fatalf("flatFieldsToMap: %v", err)
	}
	if m["ip"] != "10.0.0.5" || m["port"] != "6379" || m["flags"] != "master" {
		t.Errorf("map = %#v", m)
	}
}

func TestFlatFieldsToMapRejectsOddCount(t *testing.T) {
	v := flatArray("ip", "10.0.0.5", "port")
	if _, err := flatFieldsToMap(v); err == nil {
		t.Error("expected an error for an odd field count")
	}
}

func TestFlatFieldsToMapRejectsNonArray(t *testing.T) {
	if _, err := flatFieldsToMap(newInteger(1)); err == nil {
		t.Error("expected an error for a non-array reply")
	}
}

func TestParseSentinelMaster(t *testing.T) {
	v := flatArray("name", "mymaster", "ip", "10.0.0.5", "port", "6379")
	addr, err := parseSentinelMaster(v)
	if err != nil {
		t.Fatalf("parseSentinelMaster: %v", err)
	}
	if addr != "10.0.0.5:6379" {
		t.Errorf("addr = %q, want 10.0.0.5:6379", addr)
	}
}

func TestParseSentinelMasterMissingFields(t *testing.T) {
	v := flatArray("name", "mymaster")
	if _, err := parseSentinelMaster(v); err == nil {
		t.Error("expected an error when ip/port are missing")
	}
}

func TestParseSentinelNodeList(t *testing.T) {
	v := newArray([]Value{
		flatArray("ip", "10.0.0.6", "port", "26379"),
		flatArray("ip", "10.0.0.7", "port", "26379"),
	})
	addrs, err := parseSentinelNodeList(v)
	if err != nil {
		t.Fatalf("parseSentinelNodeList: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != "10.0.0.6:26379" || addrs[1] != "10.0.0.7:26379" {
		t.Errorf("addrs = %#v", addrs)
	}
}

func TestParseSentinelNodeListSkipsMalformedRows(t *testing.T) {
	v := newArray([]Value{
		flatArray("ip", "10.0.0.6", "port", "26379"),
		flatArray("flags", "s_down"), // missing ip/port
	})
	addrs, err := parseSentinelNodeList(v)
	if err != nil {
		t.Fatalf("parseSentinelNodeList: %v", err)
	}
	if len(addrs) != 1 {
		t.Errorf("got %d addrs, want 1 (malformed row skipped)", len(addrs))
	}
}

func TestMasterIsEmpty(t *testing.T) {
	if !masterIsEmpty(newNull()) {
		t.Error("Null should report empty")
	}
	if !masterIsEmpty(newArray(nil)) {
		t.Error("empty array should report empty")
	}
	if masterIsEmpty(flatArray("ip", "10.0.0.5")) {
		t.Error("a populated array should not report empty")
	}
}

func TestContainsAddr(t *testing.T) {
	list := []string{"a:1", "b:2"}
	if !containsAddr(list, "a:1") {
		t.Error("containsAddr should find a:1")
	}
	if containsAddr(list, "c:3") {
		t.Error("containsAddr should not find c:3")
	}
}

func TestReconcilePoolSetAddsAndRemoves(t *testing.T) {
	makePool := func(addr string) *Pool {
		factory := func(context.Context) (*Connection, error) { return newStubConnection(), nil }
		return NewPool(factory, 1, 0)
	}
	existing := map[string]*Pool{
		"stale:1": makePool("stale:1"),
		"kept:1":  makePool("kept:1"),
	}
	dial := func(ctx context.Context, addr string) (*Pool, error) {
		return makePool(addr), nil
	}
	out := reconcilePoolSet(context.Background(), existing, []string{"kept:1", "new:1"}, dial)

	assert.NotContains(t, out, "stale:1")
	assert.Contains(t, out, "kept:1")
	assert.Contains(t, out, "new:1")
}

func TestSentinelPoolForLeaderMissingReturnsError(t *testing.T) {
	r := NewSentinelRouter("mymaster", nil, nil, nil)
	r.refreshNeeded = false // skip lazy Discover, which would fail with no sentinels
	_, err := r.poolFor(context.Background(), EndpointLeader)
	assert.ErrorIs(t, err, ErrNoEndpointFound)
}

func TestSentinelPoolForReplicaEmptyReturnsError(t *testing.T) {
	r := NewSentinelRouter("mymaster", nil, nil, nil)
	r.refreshNeeded = false
	_, err := r.poolFor(context.Background(), EndpointReplica)
	assert.ErrorIs(t, err, ErrNoReplicaFound)
}

func TestSentinelPoolForExplicitAddress(t *testing.T) {
	r := NewSentinelRouter("mymaster", nil, nil, nil)
	r.refreshNeeded = false
	pool := NewPool(func(context.Context) (*Connection, error) { return newStubConnection(), nil }, 1, 0)
	r.leaderAddr = "10.0.0.5:6379"
	r.leaderPool = pool
	got, err := r.poolFor(context.Background(), "10.0.0.5:6379")
	require.NoError(t, err)
	assert.Same(t, pool, got)
}
