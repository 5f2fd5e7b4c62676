package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotMapLookup(t *testing.T) {
	m := SlotMap{
		{startSlot: 0, upperSlot: 5460, addr: "10.0.0.1:7000"},
		{startSlot: 5461, upperSlot: 10922, addr: "10.0.0.2:7000"},
		{startSlot: 10923, upperSlot: 16383, addr: "10.0.0.3:7000"},
	}
	cases := []struct {
		slot int
		want string
	}{
		{0, "10.0.0.1:7000"},
		{5460, "10.0.0.1:7000"},
		{5461, "10.0.0.2:7000"},
		{16383, "10.0.0.3:7000"},
	}
	for _, c := range cases {
		addr, ok := m.Lookup(c.slot)
		if !ok || addr != c.want {
			t.Errorf("Lookup(%d) = (%q, %v), want (%q, true)", c.slot, addr, ok, c.want)
		}
	}
}

func TestSlotMapLookupOutOfRange(t *testing.T) {
	m := SlotMap{{startSlot: 0, upperSlot: 100, addr: "a"}}
	if _, ok := m.Lookup(101); ok {
		t.Error("Lookup past the covered range should fail")
	}
}

func TestValidateSlotCoverageAccepts(t *testing.T) {
	entries := []slotMapEntry{
		{startSlot: 0, upperSlot: 8191, addr: "a"},
		{startSlot: 8192, upperSlot: 16383, addr: "b"},
	}
	if err := validateSlotCoverage(entries); err != nil {
		t.Errorf("validateSlotCoverage: %v", err)
	}
}

func TestValidateSlotCoverageRejectsGap(t *testing.T) {
	entries := []slotMapEntry{
		{startSlot: 0, upperSlot: 100, addr: "a"},
		{startSlot: 102, upperSlot: 16383, addr: "b"},
	}
	if err := validateSlotCoverage(entries); !errors.Is(err, ErrIncompleteSlotMap) {
		t.Errorf("err = %v, want ErrIncompleteSlotMap", err)
	}
}

func TestValidateSlotCoverageRejectsOverlap(t *testing.T) {
	entries := []slotMapEntry{
		{startSlot: 0, upperSlot: 200, addr: "a"},
		{startSlot: 100, upperSlot: 16383, addr: "b"},
	}
	if err := validateSlotCoverage(entries); !errors.Is(err, ErrIncompleteSlotMap) {
		t.Errorf("err = %v, want ErrIncompleteSlotMap", err)
	}
}

func TestValidateSlotCoverageRejectsShortOfFull(t *testing.T) {
	entries := []slotMapEntry{{startSlot: 0, upperSlot: 100, addr: "a"}}
	if err := validateSlotCoverage(entries); !errors.Is(err, ErrIncompleteSlotMap) {
		t.Errorf("err = %v, want ErrIncompleteSlotMap", err)
	}
}

func TestParseClusterSlots(t *testing.T) {
	v := newArray([]Value{
		newArray([]Value{
			newInteger(0), newInteger(8191),
			newArray([]Value{newBulkString([]byte("10.0.0.1")), newInteger(7000)}),
		}),
		newArray([]Value{
			newInteger(8192), newInteger(16383),
			newArray([]Value{newBulkString([]byte("10.0.0.2")), newInteger(7000)}),
		}),
	})
	entries, err := parseClusterSlots(v)
	if err != nil {
		t.Fatalf("parseClusterSlots: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].addr != "10.0.0.1:7000" || entries[1].addr != "10.0.0.2:7000" {
		t.Errorf("entries = %#v", entries)
	}
}

func TestParseClusterSlotsRejectsNonArray(t *testing.T) {
	if _, err := parseClusterSlots(newInteger(1)); err == nil {
		t.Error("expected an error for a non-array reply")
	}
}

// dialPoolFromServer builds a DialPool that hands out a one-connection
// Pool backed by a net.Pipe whose server side runs fn.
func dialPoolFromServer(t *testing.T, fn func(addr string, s net.Conn)) DialPool {
	t.Helper()
	return func(ctx context.Context, addr string) (*Pool, error) {
		client, server := net.Pipe()
		t.Cleanup(func() { client.Close(); server.Close() })
		go fn(addr, server)
		conn := newConnection(pipeTransport(client), false)
		conn.state = stateReady
		factory := func(context.Context) (*Connection, error) { return conn, nil }
		return NewPool(factory, 1, 0), nil
	}
}

func TestClusterRouterRefreshSlotsAndRoute(t *testing.T) {
	dial := dialPoolFromServer(t, func(addr string, s net.Conn) {
		readSome(t, s) // CLUSTER SLOTS
		writeAll(t, s, "*1\r\n*3\r\n:0\r\n:16383\r\n*2\r\n$8\r\n10.0.0.1\r\n:7000\r\n")
	})
	router := NewClusterRouter([]string{"10.0.0.1:7000"}, dial)
	require.NoError(t, router.RefreshSlots(context.Background()))

	addr, ok := router.slotMap.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:7000", addr)

	endpoints, err := router.Endpoints(context.Background())
	require.NoError(t, err)
	assert.Len(t, endpoints, 1)
}

func TestClusterRouterMarksUnclusteredOnServerError(t *testing.T) {
	dial := dialPoolFromServer(t, func(addr string, s net.Conn) {
		readSome(t, s)
		writeAll(t, s, "-ERR This instance has cluster support disabled\r\n")
	})
	router := NewClusterRouter([]string{"10.0.0.1:7000"}, dial)
	require.NoError(t, router.RefreshSlots(context.Background()))
	assert.Equal(t, clusteredNo, router.clustered)
}

// dialLoopingServer builds a DialPool whose connection answers CLUSTER
// SLOTS once with slotsReply and every other command with +PONG, for
// tests that reuse the same pooled connection across several calls.
func dialLoopingServer(t *testing.T, slotsReply string) DialPool {
	t.Helper()
	return func(ctx context.Context, addr string) (*Pool, error) {
		client, server := net.Pipe()
		t.Cleanup(func() { client.Close(); server.Close() })
		go func() {
			for {
				data := readSome(t, server)
				if data == "" {
					return
				}
				if strings.Contains(strings.ToUpper(data), "CLUSTER") {
					writeAll(t, server, slotsReply)
				} else {
					writeAll(t, server, "+PONG\r\n")
				}
			}
		}()
		conn := newConnection(pipeTransport(client), false)
		conn.state = stateReady
		factory := func(context.Context) (*Connection, error) { return conn, nil }
		return NewPool(factory, 1, 0), nil
	}
}

func TestClusterRouterCallMastersFansOut(t *testing.T) {
	slots := "*2\r\n" +
		"*3\r\n:0\r\n:8191\r\n*2\r\n$8\r\n10.0.0.1\r\n:7000\r\n" +
		"*3\r\n:8192\r\n:16383\r\n*2\r\n$8\r\n10.0.0.2\r\n:7000\r\n"
	dial := dialLoopingServer(t, slots)
	router := NewClusterRouter([]string{"10.0.0.1:7000"}, dial)
	require.NoError(t, router.RefreshSlots(context.Background()))

	v, err := router.Call(context.Background(), NewCommand("PING").WithOptions(CallOptions{Endpoint: EndpointMasters}))
	require.NoError(t, err)
	require.Equal(t, TypeMap, v.Type)
	assert.Len(t, v.Map, 2)
	seen := make(map[string]bool)
	for _, pair := range v.Map {
		seen[string(pair.Key.Bytes)] = true
		assert.Equal(t, TypeSimpleString, pair.Value.Type)
		assert.Equal(t, "PONG", string(pair.Value.Bytes))
	}
	assert.True(t, seen["10.0.0.1:7000"])
	assert.True(t, seen["10.0.0.2:7000"])
}

func TestLooksLikeEndpoint(t *testing.T) {
	cases := map[string]bool{
		"10.0.0.1:7000": true,
		"/tmp/redis.sock": true,
		"mykey":           false,
	}
	for s, want := range cases {
		if got := looksLikeEndpoint(s); got != want {
			t.Errorf("looksLikeEndpoint(%q) = %v, want %v", s, got, want)
		}
	}
}
