package redis

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// errProtocol signals invalid RESP reception. Connections that return it
// must never be reused (spec invariant: the decoder must not be reused
// after a malformed frame).
var errProtocol = errors.New("redis: protocol violation")

// errNull represents the null response of a bulk/array reply.
var errNull = errors.New("redis: null")

// ErrConnLost signals connection loss on a pending command. The
// execution state of the command is unknown.
var ErrConnLost = errors.New("redis: connection lost while awaiting response")

// ErrClosed rejects command execution after Pool.Close or Connection.Close.
var ErrClosed = errors.New("redis: closed")

// ErrTimeout is returned for a per-call receive timeout on a normal
// (non-push) command. The owning Connection is discarded: request and
// reply framing can no longer be trusted to line up.
var ErrTimeout = errors.New("redis: command timeout")

// ErrPoolExhausted is returned by Pool.Take when max_connections is
// reached and wait_timeout elapses (or is zero) before a connection is
// released.
var ErrPoolExhausted = errors.New("redis: pool exhausted")

// ErrIncompleteSlotMap rejects a CLUSTER SLOTS response that leaves a
// gap or overlap in the 0..16383 hash slot space. See Open Question (c)
// in SPEC_FULL.md: the source only notes the question; this
// implementation refuses such a map rather than guess.
var ErrIncompleteSlotMap = errors.New("redis: incomplete or overlapping cluster slot map")

// ErrNoSentinelFound is returned when no configured sentinel endpoint
// could answer SENTINEL MASTER/SENTINELS/REPLICAS for the group.
var ErrNoSentinelFound = errors.New("redis: no sentinel could be reached")

// ErrNoReplicaFound is returned by the Sentinel router when endpoint
// "replica" is requested but no replica is known.
var ErrNoReplicaFound = errors.New("redis: no replica found")

// ErrNoEndpointFound is returned when an explicit endpoint address does
// not match any known sentinel, leader, or replica.
var ErrNoEndpointFound = errors.New("redis: no such endpoint found")

// ServerError is a message sent by the server, e.g. "-ERR unknown
// command". It is returned verbatim, including the leading kind word.
type ServerError string

// Error honors the error interface.
func (e ServerError) Error() string {
	return fmt.Sprintf("redis: server error %q", string(e))
}

// Prefix returns the first word, which represents the error kind, e.g.
// "MOVED", "ASK", "NOAUTH", "WRONGPASS".
func (e ServerError) Prefix() string {
	s := string(e)
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}

// IsMoved reports whether the error kind is MOVED, the Cluster
// permanent-redirect reply.
func (e ServerError) IsMoved() bool { return e.Prefix() == "MOVED" }

// IsAsk reports whether the error kind is ASK, the Cluster transient
// one-shot redirect reply.
func (e ServerError) IsAsk() bool { return e.Prefix() == "ASK" }

// ProtocolError wraps errProtocol with detail about the malformed RESP
// input that caused it. The Connection that produced it is unusable.
type ProtocolError struct {
	reason string
}

func newProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{reason: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s; %s", errProtocol, e.reason)
}

func (e *ProtocolError) Unwrap() error { return errProtocol }

// CommunicationError wraps a transport send/recv failure or an
// unexpected EOF. The owning Connection is always destroyed; a
// Sentinel router additionally marks its topology for refresh.
type CommunicationError struct {
	Addr string
	Err  error
}

func newCommunicationError(addr string, err error) *CommunicationError {
	return &CommunicationError{Addr: addr, Err: err}
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("redis: communication with %s failed: %s", e.Addr, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// EncodingError rejects a command argument that cannot be rendered onto
// the wire (e.g. a bool, a map, or a string which is invalid for the
// configured text encoding). The connection is left untouched: no bytes
// were written for it.
type EncodingError struct {
	Arg interface{}
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("redis: cannot encode argument of type %T", e.Arg)
}

// PipelinedErrors carries the positional results (success or error) of
// a pipeline that contained at least one error reply. The connection
// remains usable: only the individual failed commands are in error.
type PipelinedErrors struct {
	Results []interface{}
}

func (e *PipelinedErrors) Error() string {
	n := 0
	for _, r := range e.Results {
		if _, ok := r.(error); ok {
			n++
		}
	}
	return fmt.Sprintf("redis: %d of %d pipelined commands returned an error", n, len(e.Results))
}

// wrapIO annotates a low-level I/O failure with a stack trace where a
// connection or topology is (re)established: the endpoint pool's dial
// factory once its retries are exhausted, a Cluster slot refresh, and
// Sentinel discovery. Everywhere else uses
// the plain fmt.Errorf("redis: ...: %w") idiom the teacher uses.
func wrapIO(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}
