package redis

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

// coalesceCutoff is the threshold under which consecutive small writes
// are copied into one shared buffer instead of being kept as their own
// chunk. Past it, a bulk argument's bytes are passed through untouched
// (spec.md §4.1: "small writes coalesce up to a cutoff threshold (≈6
// KiB) to one buffer; larger payloads pass through as zero-copy
// chunks").
const coalesceCutoff = 6 * 1024

// TextEncoder renders a string argument to wire bytes. The default,
// DefaultTextEncoder, is strict UTF-8.
type TextEncoder func(s string) ([]byte, error)

// TextDecoder renders a bulk-string reply to text. There is no default
// decoder: per spec.md §6 the default behavior is to return raw bytes.
// CallOptions.Decoder holds one, but Connection does not apply it, so
// replies stay raw bytes even when it is set.
type TextDecoder func(b []byte) (string, error)

// DefaultTextEncoder rejects strings that are not valid UTF-8, matching
// spec.md §4.1's "default UTF-8 strict".
func DefaultTextEncoder(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, &EncodingError{Arg: s}
	}
	return []byte(s), nil
}

// errEmptyCommand rejects encoding a command with zero arguments.
var errEmptyCommand = errors.New("redis: command has no arguments")

// Encoder renders commands (ordered argument lists) as RESP arrays of
// bulk strings and exposes the result as a sequence of byte chunks
// ready to hand to a Transport. Encoding further commands onto the same
// Encoder appends to the pending stream, which is how pipelining is
// built (spec.md §4.1: "Pipelined encoding appends further commands to
// the same pending stream").
type Encoder struct {
	small   []byte
	pending [][]byte
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// EncodeCommand appends one command to the pending output. textEncode
// resolves the per-call encoder override; pass nil to use
// DefaultTextEncoder.
func (e *Encoder) EncodeCommand(args []interface{}, textEncode TextEncoder) error {
	if len(args) == 0 {
		return errEmptyCommand
	}
	if textEncode == nil {
		textEncode = DefaultTextEncoder
	}

	e.appendSmall('*')
	e.appendSmallInt(int64(len(args)))
	e.appendSmallCRLF()

	for _, a := range args {
		b, err := encodeArg(a, textEncode)
		if err != nil {
			return err
		}
		e.appendSmall('$')
		e.appendSmallInt(int64(len(b)))
		e.appendSmallCRLF()

		if len(b) > coalesceCutoff {
			e.flushSmall()
			e.pending = append(e.pending, b)
			e.appendSmallCRLF()
		} else {
			e.small = append(e.small, b...)
			e.appendSmallCRLF()
		}
	}
	return nil
}

// Chunks returns (and clears) the pending byte chunks accumulated since
// the last call. The caller owns the returned slices.
func (e *Encoder) Chunks() [][]byte {
	e.flushSmall()
	out := e.pending
	e.pending = nil
	return out
}

// Reset discards any pending, unflushed output.
func (e *Encoder) Reset() {
	e.small = e.small[:0]
	e.pending = nil
}

func (e *Encoder) appendSmall(b byte) {
	e.small = append(e.small, b)
	if len(e.small) >= coalesceCutoff {
		e.flushSmall()
	}
}

func (e *Encoder) appendSmallInt(n int64) {
	e.small = strconv.AppendInt(e.small, n, 10)
}

func (e *Encoder) appendSmallCRLF() {
	e.small = append(e.small, '\r', '\n')
	if len(e.small) >= coalesceCutoff {
		e.flushSmall()
	}
}

func (e *Encoder) flushSmall() {
	if len(e.small) == 0 {
		return
	}
	e.pending = append(e.pending, append([]byte(nil), e.small...))
	e.small = e.small[:0]
}

func encodeArg(a interface{}, textEncode TextEncoder) ([]byte, error) {
	switch v := a.(type) {
	case []byte:
		return v, nil
	case string:
		return textEncode(v)
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	default:
		return nil, &EncodingError{Arg: a}
	}
}
