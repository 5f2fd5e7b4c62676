package redis

import "testing"

func TestValueIsNull(t *testing.T) {
	if !newNull().IsNull() {
		t.Error("Null value reports not null")
	}
	if newInteger(0).IsNull() {
		t.Error("Integer(0) reports null")
	}
}

func TestValueErr(t *testing.T) {
	v := newError([]byte("ERR boom"))
	err := v.Err()
	se, ok := err.(ServerError)
	if !ok {
		t.Fatalf("Err() = %#v, want ServerError", err)
	}
	if se.Prefix() != "ERR" {
		t.Errorf("Prefix() = %q, want ERR", se.Prefix())
	}
	if newInteger(1).Err() != nil {
		t.Error("Integer value should not carry an Err")
	}
}

func TestValueString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{newBulkString([]byte("hi")), `BulkString("hi")`},
		{newInteger(42), "Integer(42)"},
		{newBoolean(true), "Boolean(true)"},
		{newNull(), "Null"},
		{newArray([]Value{newInteger(1), newInteger(2)}), "Array(2 elements)"},
		{newMap([]MapEntry{{Key: newBulkString([]byte("a")), Value: newInteger(1)}}), "Map(1 pairs)"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}
