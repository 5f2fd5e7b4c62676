package redis

import (
	"bytes"
	"testing"
)

func encodeOne(t *testing.T, args ...interface{}) []byte {
	t.Helper()
	e := NewEncoder()
	if err := e.EncodeCommand(args, nil); err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	var buf bytes.Buffer
	for _, c := range e.Chunks() {
		buf.Write(c)
	}
	return buf.Bytes()
}

func TestEncodeCommandByteExact(t *testing.T) {
	got := encodeOne(t, "SET", "foo", "bar")
	want := "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeCommandIntegerArgs(t *testing.T) {
	got := encodeOne(t, "INCRBY", "counter", int64(42), -7)
	want := "*4\r\n$6\r\nINCRBY\r\n$7\r\ncounter\r\n$2\r\n42\r\n$2\r\n-7\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeCommandFloatArg(t *testing.T) {
	got := encodeOne(t, "INCRBYFLOAT", "k", float64(3.5))
	want := "*3\r\n$11\r\nINCRBYFLOAT\r\n$1\r\nk\r\n$3\r\n3.5\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeCommandByteSliceArg(t *testing.T) {
	got := encodeOne(t, "SET", []byte("k"), []byte{0, 1, 2})
	want := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$3\r\n\x00\x01\x02\r\n"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEncodeCommandRejectsUnsupportedType(t *testing.T) {
	e := NewEncoder()
	err := e.EncodeCommand([]interface{}{"SET", "k", true}, nil)
	if err == nil {
		t.Fatal("expected an error for a bool argument")
	}
	if _, ok := err.(*EncodingError); !ok {
		t.Fatalf("err = %#v, want *EncodingError", err)
	}
}

func TestEncodeCommandRejectsSliceAndMap(t *testing.T) {
	for _, bad := range []interface{}{[]int{1, 2}, map[string]string{"a": "b"}} {
		e := NewEncoder()
		err := e.EncodeCommand([]interface{}{"SET", "k", bad}, nil)
		if _, ok := err.(*EncodingError); !ok {
			t.Errorf("arg %#v: err = %#v, want *EncodingError", bad, err)
		}
	}
}

func TestEncodeCommandRejectsEmptyArgs(t *testing.T) {
	e := NewEncoder()
	if err := e.EncodeCommand(nil, nil); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestEncodeCommandRejectsInvalidUTF8(t *testing.T) {
	e := NewEncoder()
	err := e.EncodeCommand([]interface{}{"SET", "k", string([]byte{0xff, 0xfe})}, nil)
	if _, ok := err.(*EncodingError); !ok {
		t.Fatalf("err = %#v, want *EncodingError", err)
	}
}

func TestEncodeCommandCustomTextEncoder(t *testing.T) {
	e := NewEncoder()
	upper := func(s string) ([]byte, error) { return bytes.ToUpper([]byte(s)), nil }
	if err := e.EncodeCommand([]interface{}{"SET", "k", "value"}, upper); err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	var buf bytes.Buffer
	for _, c := range e.Chunks() {
		buf.Write(c)
	}
	if !bytes.Contains(buf.Bytes(), []byte("VALUE")) {
		t.Errorf("custom encoder not applied: %q", buf.Bytes())
	}
}

func TestEncodeLargePayloadIsZeroCopyChunk(t *testing.T) {
	big := bytes.Repeat([]byte("x"), coalesceCutoff+1)
	e := NewEncoder()
	if err := e.EncodeCommand([]interface{}{"SET", "k", big}, nil); err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	chunks := e.Chunks()
	var found bool
	for _, c := range chunks {
		if len(c) == len(big) && &c[0] == &big[0] {
			found = true
		}
	}
	if !found {
		t.Error("large payload was not passed through as its own zero-copy chunk")
	}
}

func TestEncodeSmallWritesCoalesce(t *testing.T) {
	e := NewEncoder()
	if err := e.EncodeCommand([]interface{}{"SET", "k", "v"}, nil); err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	chunks := e.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("small command produced %d chunks, want 1 (coalesced)", len(chunks))
	}
}

func TestEncodePipelinedAppendsToPendingStream(t *testing.T) {
	e := NewEncoder()
	if err := e.EncodeCommand([]interface{}{"PING"}, nil); err != nil {
		t.Fatalf("EncodeCommand 1: %v", err)
	}
	if err := e.EncodeCommand([]interface{}{"PING"}, nil); err != nil {
		t.Fatalf("EncodeCommand 2: %v", err)
	}
	var buf bytes.Buffer
	for _, c := range e.Chunks() {
		buf.Write(c)
	}
	want := "*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestEncodeResetDiscardsPending(t *testing.T) {
	e := NewEncoder()
	if err := e.EncodeCommand([]interface{}{"PING"}, nil); err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	e.Reset()
	if chunks := e.Chunks(); len(chunks) != 0 {
		t.Errorf("Chunks() after Reset = %v, want none", chunks)
	}
}
