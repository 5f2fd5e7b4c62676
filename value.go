package redis

import "fmt"

// Type discriminates the variants of Value. It mirrors the RESP2/RESP3
// wire prefixes listed in the protocol table, plus Null for both the
// explicit RESP3 "_" null and the RESP2 legacy "$-1"/"*-1" encodings.
type Type byte

const (
	// TypeSimpleString is a "+" line, e.g. "+OK".
	TypeSimpleString Type = iota
	// TypeError is a "-" line or a "!" blob error.
	TypeError
	// TypeInteger is a ":" line.
	TypeInteger
	// TypeBulkString is a "$" or "=" (verbatim) blob, Bytes holds the
	// raw payload; for "=" that includes the 4-byte type tag (e.g. "txt:").
	TypeBulkString
	// TypeArray is a "*" aggregate.
	TypeArray
	// TypeNull is "_" (RESP3) or a -1 length bulk/array (RESP2).
	TypeNull
	// TypeDouble is a "," line.
	TypeDouble
	// TypeBoolean is a "#" line ('t' or 'f').
	TypeBoolean
	// TypeBigNumber is a "(" line, kept in its textual decimal form.
	TypeBigNumber
	// TypeMap is a "%" aggregate of key/value pairs.
	TypeMap
	// TypeSet is a "~" aggregate.
	TypeSet
	// TypePush is a ">" out-of-band aggregate.
	TypePush
)

func (t Type) String() string {
	switch t {
	case TypeSimpleString:
		return "SimpleString"
	case TypeError:
		return "Error"
	case TypeInteger:
		return "Integer"
	case TypeBulkString:
		return "BulkString"
	case TypeArray:
		return "Array"
	case TypeNull:
		return "Null"
	case TypeDouble:
		return "Double"
	case TypeBoolean:
		return "Boolean"
	case TypeBigNumber:
		return "BigNumber"
	case TypeMap:
		return "Map"
	case TypeSet:
		return "Set"
	case TypePush:
		return "Push"
	default:
		return "Unknown"
	}
}

// MapEntry is one key/value pair of a Map value. A plain Go map cannot
// hold arbitrary Value keys (e.g. an Array), so Map values keep an
// ordered slice instead, matching the "ordered key→value" data model
// and the decoder's duplicate-safe construction.
type MapEntry struct {
	Key   Value
	Value Value
}

// Value is a decoded RESP reply. It is immutable once returned from a
// Decoder: callers must not mutate Array/Map/Set contents or Bytes in
// place. The zero Value is not meaningful; always construct through the
// decoder or the New* helpers.
type Value struct {
	Type Type

	// Bytes holds the raw payload for SimpleString, Error, BulkString,
	// and BigNumber (BigNumber keeps its textual form verbatim, per
	// spec.md §3).
	Bytes []byte

	// Integer holds the decoded value for TypeInteger.
	Integer int64

	// Double holds the decoded value for TypeDouble.
	Double float64

	// Boolean holds the decoded value for TypeBoolean.
	Boolean bool

	// Array holds the elements for TypeArray, TypeSet, and TypePush.
	Array []Value

	// Map holds the ordered pairs for TypeMap.
	Map []MapEntry

	// Attributes holds the RESP3 attribute map that preceded this
	// value on the wire, present only when the Decoder was configured
	// to preserve attributes (NewDecoder(true), or CallOptions.Attributes
	// on a Connection call). Nil otherwise.
	Attributes []MapEntry
}

// IsNull reports whether the value is the RESP3 "_" null or a RESP2
// legacy "-1"-length bulk/array/map/set.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// Err returns the value as a ServerError when it is an error reply, and
// nil otherwise. Calling code uses this to promote an Error reply
// received mid-pipeline into a Go error without an extra type switch.
func (v Value) Err() error {
	if v.Type != TypeError {
		return nil
	}
	return ServerError(v.Bytes)
}

// String renders a human-readable form for debugging; it is not the
// wire representation.
func (v Value) String() string {
	switch v.Type {
	case TypeSimpleString, TypeError, TypeBulkString, TypeBigNumber:
		return fmt.Sprintf("%s(%q)", v.Type, v.Bytes)
	case TypeInteger:
		return fmt.Sprintf("Integer(%d)", v.Integer)
	case TypeDouble:
		return fmt.Sprintf("Double(%g)", v.Double)
	case TypeBoolean:
		return fmt.Sprintf("Boolean(%t)", v.Boolean)
	case TypeNull:
		return "Null"
	case TypeArray, TypeSet, TypePush:
		return fmt.Sprintf("%s(%d elements)", v.Type, len(v.Array))
	case TypeMap:
		return fmt.Sprintf("Map(%d pairs)", len(v.Map))
	default:
		return "Value(?)"
	}
}

func newNull() Value { return Value{Type: TypeNull} }

func newSimpleString(b []byte) Value { return Value{Type: TypeSimpleString, Bytes: b} }

func newError(b []byte) Value { return Value{Type: TypeError, Bytes: b} }

func newInteger(n int64) Value { return Value{Type: TypeInteger, Integer: n} }

func newBulkString(b []byte) Value { return Value{Type: TypeBulkString, Bytes: b} }

func newDouble(f float64) Value { return Value{Type: TypeDouble, Double: f} }

func newBoolean(b bool) Value { return Value{Type: TypeBoolean, Boolean: b} }

func newBigNumber(b []byte) Value { return Value{Type: TypeBigNumber, Bytes: b} }

func newArray(a []Value) Value { return Value{Type: TypeArray, Array: a} }

func newSet(a []Value) Value { return Value{Type: TypeSet, Array: a} }

func newPush(a []Value) Value { return Value{Type: TypePush, Array: a} }

func newMap(pairs []MapEntry) Value { return Value{Type: TypeMap, Map: pairs} }
