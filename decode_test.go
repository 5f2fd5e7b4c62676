package redis

import (
	"errors"
	"testing"
)

func extractAll(t *testing.T, d *Decoder, raw string) []Value {
	t.Helper()
	d.Feed([]byte(raw))
	var out []Value
	for {
		v, err := d.Extract()
		if errors.Is(err, ErrNeedMoreData) {
			return out
		}
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		out = append(out, v)
	}
}

func TestDecodeSimpleTypes(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "+OK\r\n:42\r\n$5\r\nhello\r\n_\r\n#t\r\n#f\r\n,3.14\r\n")
	want := []Type{TypeSimpleString, TypeInteger, TypeBulkString, TypeNull, TypeBoolean, TypeBoolean, TypeDouble}
	if len(vals) != len(want) {
		t.Fatalf("got %d values, want %d", len(vals), len(want))
	}
	for i, v := range vals {
		if v.Type != want[i] {
			t.Errorf("value %d: type = %s, want %s", i, v.Type, want[i])
		}
	}
	if string(vals[2].Bytes) != "hello" {
		t.Errorf("bulk string = %q", vals[2].Bytes)
	}
	if vals[1].Integer != 42 {
		t.Errorf("integer = %d", vals[1].Integer)
	}
	if !vals[4].Boolean || vals[5].Boolean {
		t.Errorf("booleans decoded wrong: %v %v", vals[4].Boolean, vals[5].Boolean)
	}
}

func TestDecodeArrayAndNested(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "*2\r\n$3\r\nfoo\r\n*2\r\n:1\r\n:2\r\n")
	if len(vals) != 1 {
		t.Fatalf("got %d top-level values, want 1", len(vals))
	}
	arr := vals[0]
	if arr.Type != TypeArray || len(arr.Array) != 2 {
		t.Fatalf("array = %#v", arr)
	}
	if string(arr.Array[0].Bytes) != "foo" {
		t.Errorf("array[0] = %q", arr.Array[0].Bytes)
	}
	nested := arr.Array[1]
	if nested.Type != TypeArray || len(nested.Array) != 2 || nested.Array[0].Integer != 1 || nested.Array[1].Integer != 2 {
		t.Errorf("nested array = %#v", nested)
	}
}

func TestDecodeMapAndSet(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "%1\r\n+key\r\n:1\r\n~2\r\n:1\r\n:2\r\n")
	if len(vals) != 2 {
		t.Fatalf("got %d values, want 2", len(vals))
	}
	m := vals[0]
	if m.Type != TypeMap || len(m.Map) != 1 {
		t.Fatalf("map = %#v", m)
	}
	if string(m.Map[0].Key.Bytes) != "key" || m.Map[0].Value.Integer != 1 {
		t.Errorf("map entry = %#v", m.Map[0])
	}
	if vals[1].Type != TypeSet || len(vals[1].Array) != 2 {
		t.Errorf("set = %#v", vals[1])
	}
}

func TestDecodeAttributesStripByDefault(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "|1\r\n+ttl\r\n:10\r\n$2\r\nhi\r\n")
	if len(vals) != 1 {
		t.Fatalf("got %d values, want 1", len(vals))
	}
	if vals[0].Attributes != nil {
		t.Errorf("attributes leaked into strip mode: %#v", vals[0].Attributes)
	}
	if string(vals[0].Bytes) != "hi" {
		t.Errorf("value = %q", vals[0].Bytes)
	}
}

func TestDecodeAttributesPreserveMode(t *testing.T) {
	d := NewDecoder(true)
	vals := extractAll(t, d, "|1\r\n+ttl\r\n:10\r\n$2\r\nhi\r\n")
	if len(vals) != 1 {
		t.Fatalf("got %d values, want 1", len(vals))
	}
	if len(vals[0].Attributes) != 1 || string(vals[0].Attributes[0].Key.Bytes) != "ttl" {
		t.Errorf("attributes not preserved: %#v", vals[0].Attributes)
	}
}

func TestDecodePush(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, ">2\r\n$7\r\nmessage\r\n$2\r\nhi\r\n")
	if len(vals) != 1 || vals[0].Type != TypePush {
		t.Fatalf("push value = %#v", vals)
	}
}

func TestDecodeStreamedAggregate(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "*?\r\n:1\r\n:2\r\n.\r\n")
	if len(vals) != 1 || vals[0].Type != TypeArray || len(vals[0].Array) != 2 {
		t.Fatalf("streamed array = %#v", vals)
	}
}

func TestDecodeStreamedString(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "$?\r\n;3\r\nfoo\r\n;3\r\nbar\r\n;0\r\n")
	if len(vals) != 1 || vals[0].Type != TypeBulkString {
		t.Fatalf("streamed string = %#v", vals)
	}
	if string(vals[0].Bytes) != "foobar" {
		t.Errorf("streamed string = %q, want foobar", vals[0].Bytes)
	}
}

func TestDecodeNeedsMoreDataThenCompletes(t *testing.T) {
	d := NewDecoder(false)
	d.Feed([]byte("$5\r\nhel"))
	if _, err := d.Extract(); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("Extract on truncated bulk = %v, want ErrNeedMoreData", err)
	}
	d.Feed([]byte("lo\r\n"))
	v, err := d.Extract()
	if err != nil {
		t.Fatalf("Extract after completion: %v", err)
	}
	if string(v.Bytes) != "hello" {
		t.Errorf("value = %q, want hello", v.Bytes)
	}
}

func TestDecodeChunkPartitioningIsTransparent(t *testing.T) {
	whole := "*3\r\n$3\r\nfoo\r\n:7\r\n+OK\r\n"
	var got []Value
	d := NewDecoder(false)
	for i := 0; i < len(whole); i++ {
		d.Feed([]byte{whole[i]})
		for {
			v, err := d.Extract()
			if errors.Is(err, ErrNeedMoreData) {
				break
			}
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			got = append(got, v)
		}
	}
	if len(got) != 1 || got[0].Type != TypeArray || len(got[0].Array) != 3 {
		t.Fatalf("byte-at-a-time decode = %#v", got)
	}
}

func TestDecodeMalformedPrefixPoisonsDecoder(t *testing.T) {
	d := NewDecoder(false)
	d.Feed([]byte("^nope\r\n"))
	if _, err := d.Extract(); err == nil {
		t.Fatal("expected a protocol error")
	}
	// a poisoned decoder must not be reused: it keeps returning the
	// same error rather than attempting to resync.
	d.Feed([]byte("+OK\r\n"))
	if _, err := d.Extract(); err == nil {
		t.Fatal("poisoned decoder kept decoding after a malformed prefix")
	}
}

func TestDecodeLegacyRESP2Null(t *testing.T) {
	d := NewDecoder(false)
	vals := extractAll(t, d, "$-1\r\n*-1\r\n")
	if len(vals) != 2 || !vals[0].IsNull() || !vals[1].IsNull() {
		t.Fatalf("legacy nulls = %#v", vals)
	}
}
