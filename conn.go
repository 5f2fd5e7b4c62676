package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// connState tracks the lifecycle spec.md §3 lists for a Connection:
// fresh → handshaking → ready → {in_multi | awaiting_push_replies} →
// closed.
type connState int32

const (
	stateFresh connState = iota
	stateHandshaking
	stateReady
	stateInMulti
	stateAwaitingPush
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateFresh:
		return "fresh"
	case stateHandshaking:
		return "handshaking"
	case stateReady:
		return "ready"
	case stateInMulti:
		return "in_multi"
	case stateAwaitingPush:
		return "awaiting_push_replies"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrReservedPushCommand rejects a push-only command on a regular
	// Connection (spec.md §4.3).
	ErrReservedPushCommand = errors.New("redis: command reserved for a push-mode connection")
	// ErrMultiNotAllowed rejects MULTI on a connection not opened with
	// allow_multi.
	ErrMultiNotAllowed = errors.New("redis: MULTI not allowed on this connection")
)

// HandshakeOptions configures Connection.Handshake.
type HandshakeOptions struct {
	// RespVersion is -1 (auto-negotiate, try RESP3 then fall back),
	// 2 (force RESP2), or 3 (force RESP3, fail hard on rejection).
	RespVersion int
	Username    string
	Password    string
	ClientName  string
	Database    int64
	AllowMulti  bool
}

// Connection owns one Transport, one Encoder, and one Decoder: a single
// live session with a Redis server. It is exclusively owned by whoever
// last obtained it from a Pool — concurrent calls on the same
// Connection from two goroutines are not supported, except Close,
// which a Pool may call concurrently with in-flight use to tear the
// connection down.
type Connection struct {
	noCopy noCopy

	transport Transport
	enc       *Encoder
	dec       *Decoder

	peer       string
	pushMode   bool
	allowMulti bool

	state   connState
	closed  bool
	closeMu chan struct{} // closed exactly once, guards Close idempotency

	db        int64
	movedAddr string
	askAddr   string
}

// newConnection wraps transport in a fresh, not-yet-handshaken
// Connection. pushMode marks a connection dedicated to PushCommand /
// PushedMessage use (spec.md §4.3's "explicitly-push connection").
func newConnection(transport Transport, pushMode bool) *Connection {
	return &Connection{
		transport: transport,
		enc:       NewEncoder(),
		dec:       NewDecoder(false),
		peer:      transport.Peer(),
		pushMode:  pushMode,
		state:     stateFresh,
		closeMu:   make(chan struct{}),
	}
}

func (c *Connection) Peer() string     { return c.peer }
func (c *Connection) State() connState { return c.state }
func (c *Connection) IsClosed() bool   { return c.closed }
func (c *Connection) Database() int64  { return c.db }

// TakeMoved returns and clears the last-seen MOVED redirect target.
func (c *Connection) TakeMoved() (addr string, ok bool) {
	addr, c.movedAddr = c.movedAddr, ""
	return addr, addr != ""
}

// TakeAsk returns and clears the last-seen ASK redirect target.
func (c *Connection) TakeAsk() (addr string, ok bool) {
	addr, c.askAddr = c.askAddr, ""
	return addr, addr != ""
}

// Close tears the connection down. Safe to call concurrently with an
// in-flight Call/Pipeline from another goroutine (a Pool closing all
// idle and in-use connections per spec.md §4.4) — closing the
// underlying transport unblocks any pending Send/Recv with an error.
func (c *Connection) Close() error {
	select {
	case <-c.closeMu:
		return nil
	default:
	}
	close(c.closeMu)
	c.closed = true
	c.state = stateClosed
	return c.transport.Close()
}

func (c *Connection) forceClose() {
	c.Close()
}

// Handshake performs HELLO/AUTH/SETNAME/SELECT negotiation per
// spec.md §4.3.
func (c *Connection) Handshake(ctx context.Context, opts HandshakeOptions) error {
	c.state = stateHandshaking
	c.allowMulti = opts.AllowMulti

	if opts.RespVersion != 2 {
		args := []interface{}{"HELLO", "3"}
		if opts.Username != "" || opts.Password != "" {
			user := opts.Username
			if user == "" {
				user = "default"
			}
			args = append(args, "AUTH", user, opts.Password)
		}
		if opts.ClientName != "" {
			args = append(args, "SETNAME", opts.ClientName)
		}
		v, err := c.roundTripRaw(ctx, args)
		if err != nil {
			return err
		}
		if se, ok := v.Err().(ServerError); ok {
			if opts.RespVersion == 3 {
				c.forceClose()
				return fmt.Errorf("redis: HELLO 3 forced but rejected: %w", se)
			}
			if err := c.authFallback(ctx, opts); err != nil {
				return err
			}
		}
	} else if err := c.authFallback(ctx, opts); err != nil {
		return err
	}

	if opts.Database != 0 {
		v, err := c.roundTripRaw(ctx, []interface{}{"SELECT", opts.Database})
		if err != nil {
			return err
		}
		if se, ok := v.Err().(ServerError); ok {
			c.forceClose()
			return fmt.Errorf("redis: SELECT on handshake: %w", se)
		}
		c.db = opts.Database
	}

	c.state = stateReady
	return nil
}

// authFallback issues RESP2-style AUTH and CLIENT SETNAME when HELLO 3
// was skipped or rejected.
func (c *Connection) authFallback(ctx context.Context, opts HandshakeOptions) error {
	if opts.Password != "" {
		args := []interface{}{"AUTH"}
		if opts.Username != "" {
			args = append(args, opts.Username)
		}
		args = append(args, opts.Password)
		v, err := c.roundTripRaw(ctx, args)
		if err != nil {
			return err
		}
		if se, ok := v.Err().(ServerError); ok {
			c.forceClose()
			return fmt.Errorf("redis: AUTH on handshake: %w", se)
		}
	}
	if opts.ClientName != "" {
		v, err := c.roundTripRaw(ctx, []interface{}{"CLIENT", "SETNAME", opts.ClientName})
		if err != nil {
			return err
		}
		if se, ok := v.Err().(ServerError); ok {
			c.forceClose()
			return fmt.Errorf("redis: CLIENT SETNAME on handshake: %w", se)
		}
	}
	return nil
}

// Call executes one command: validate, encode, flush, decode one
// reply. Per spec.md §4.3, an Error reply beginning "MOVED " or "ASK "
// sets the corresponding redirect flag before the error is raised, and
// a timeout discards the connection.
func (c *Connection) Call(ctx context.Context, cmd Command) (Value, error) {
	if err := c.validate(cmd); err != nil {
		return Value{}, err
	}
	results, err := c.execMany(ctx, []Command{cmd})
	if err != nil {
		return Value{}, err
	}
	v := results[0]
	if se, ok := v.Err().(ServerError); ok {
		c.noteRedirect(se)
		return v, se
	}
	return v, nil
}

// Pipeline encodes every command in order, flushes once, then reads
// exactly that many replies. If any reply is an error, PipelinedErrors
// carries every result (success or error) positionally.
func (c *Connection) Pipeline(ctx context.Context, cmds []Command) ([]Value, error) {
	for _, cmd := range cmds {
		if err := c.validate(cmd); err != nil {
			return nil, err
		}
	}
	results, err := c.execMany(ctx, cmds)
	if err != nil {
		return nil, err
	}
	anyErr := false
	out := make([]interface{}, len(results))
	for i, v := range results {
		if se, ok := v.Err().(ServerError); ok {
			anyErr = true
			out[i] = se
		} else {
			out[i] = v
		}
	}
	if anyErr {
		return results, &PipelinedErrors{Results: out}
	}
	return results, nil
}

// PushCommand writes a command on a push-mode connection without
// reading a reply.
func (c *Connection) PushCommand(ctx context.Context, cmd Command) error {
	if !c.pushMode {
		return errors.New("redis: PushCommand requires a push-mode connection")
	}
	return c.withDeadline(ctx, func() error {
		c.enc.Reset()
		if err := c.enc.EncodeCommand(cmd.Args, cmd.Options.Encoder); err != nil {
			return err
		}
		if err := c.transport.Send(c.enc.Chunks()); err != nil {
			c.forceClose()
			return err
		}
		c.state = stateAwaitingPush
		return nil
	})
}

// PushedMessage reads the next frame on a push-mode connection. A
// timeout returns a Null value without killing the connection; any
// other transport or protocol error does.
func (c *Connection) PushedMessage(ctx context.Context, timeout time.Duration) (Value, error) {
	if !c.pushMode {
		return Value{}, errors.New("redis: PushedMessage requires a push-mode connection")
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	c.transport.SetDeadline(deadline)
	defer c.transport.SetDeadline(time.Time{})

	v, err := c.readOneLocked()
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return newNull(), nil
		}
		c.forceClose()
		return Value{}, err
	}
	return v, nil
}

// Discard issues a best-effort DISCARD, swallowing any failure. Used by
// the Pool's MULTI guard on release (spec.md §4.3).
func (c *Connection) Discard(ctx context.Context) {
	if c.closed {
		return
	}
	_, _ = c.Call(ctx, NewCommand("DISCARD"))
	c.state = stateReady
}

func (c *Connection) validate(cmd Command) error {
	if c.closed {
		return ErrClosed
	}
	name := strings.ToUpper(cmd.Name())
	if reservedPushCommands[name] {
		return ErrReservedPushCommand
	}
	if name == "MULTI" && !c.allowMulti {
		return ErrMultiNotAllowed
	}
	return nil
}

// physPlan records, for one logical command in execMany, how many
// synthesized physical replies (ASKING, SELECT) precede its own.
type physPlan struct {
	skip int
}

func (c *Connection) execMany(ctx context.Context, cmds []Command) ([]Value, error) {
	physArgs := make([][]interface{}, 0, len(cmds))
	physEncoders := make([]TextEncoder, 0, len(cmds))
	physAttrs := make([]bool, 0, len(cmds))
	plans := make([]physPlan, len(cmds))

	for i, cmd := range cmds {
		skip := 0
		if cmd.Options.Asking {
			physArgs = append(physArgs, []interface{}{"ASKING"})
			physEncoders = append(physEncoders, nil)
			physAttrs = append(physAttrs, false)
			skip++
		}
		if cmd.Options.HasDatabase {
			physArgs = append(physArgs, []interface{}{"SELECT", cmd.Options.Database})
			physEncoders = append(physEncoders, nil)
			physAttrs = append(physAttrs, false)
			skip++
		}
		physArgs = append(physArgs, cmd.Args)
		physEncoders = append(physEncoders, cmd.Options.Encoder)
		physAttrs = append(physAttrs, cmd.Options.Attributes)
		plans[i] = physPlan{skip: skip}
	}

	var physResults []Value
	err := c.withDeadline(ctx, func() error {
		c.enc.Reset()
		for i, args := range physArgs {
			if err := c.enc.EncodeCommand(args, physEncoders[i]); err != nil {
				return err
			}
		}
		if err := c.transport.Send(c.enc.Chunks()); err != nil {
			c.forceClose()
			return err
		}
		physResults = make([]Value, len(physArgs))
		for i := range physArgs {
			c.dec.preserveAttributes = physAttrs[i]
			v, err := c.readOneLocked()
			if err != nil {
				c.forceClose()
				return err
			}
			physResults[i] = v
		}
		c.dec.preserveAttributes = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]Value, len(cmds))
	idx := 0
	for i, cmd := range cmds {
		idx += plans[i].skip
		v := physResults[idx]
		idx++
		results[i] = v
		c.observeSideEffects(cmd, v)
	}
	return results, nil
}

// observeSideEffects updates sticky connection state that a successful
// reply to a logical command implies: a user-issued SELECT updates the
// cached last-database (Open Question (b) in SPEC_FULL.md), and
// MULTI/EXEC/DISCARD toggle the in_multi state.
func (c *Connection) observeSideEffects(cmd Command, v Value) {
	if v.Type == TypeError {
		if strings.ToUpper(cmd.Name()) == "EXEC" || strings.ToUpper(cmd.Name()) == "DISCARD" {
			c.state = stateReady
		}
		return
	}
	switch strings.ToUpper(cmd.Name()) {
	case "SELECT":
		if len(cmd.Args) >= 2 {
			if db, ok := toInt64(cmd.Args[1]); ok {
				c.db = db
			}
		}
	case "MULTI":
		c.state = stateInMulti
	case "EXEC", "DISCARD":
		c.state = stateReady
	}
}

func toInt64(a interface{}) (int64, bool) {
	switch v := a.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		return ParseInt([]byte(v)), true
	case []byte:
		return ParseInt(v), true
	default:
		return 0, false
	}
}

// noteRedirect records a MOVED/ASK target from a server error so the
// cluster router can inspect it after the call returns.
func (c *Connection) noteRedirect(se ServerError) {
	prefix := se.Prefix()
	if prefix != "MOVED" && prefix != "ASK" {
		return
	}
	fields := strings.Fields(string(se))
	if len(fields) < 3 {
		return
	}
	addr := fields[2]
	if prefix == "MOVED" {
		c.movedAddr = addr
	} else {
		c.askAddr = addr
	}
}

func (c *Connection) roundTripRaw(ctx context.Context, args []interface{}) (Value, error) {
	var v Value
	err := c.withDeadline(ctx, func() error {
		c.enc.Reset()
		if err := c.enc.EncodeCommand(args, nil); err != nil {
			return err
		}
		if err := c.transport.Send(c.enc.Chunks()); err != nil {
			c.forceClose()
			return err
		}
		val, err := c.readOneLocked()
		if err != nil {
			c.forceClose()
			return err
		}
		v = val
		return nil
	})
	return v, err
}

func (c *Connection) readOneLocked() (Value, error) {
	for {
		val, err := c.dec.Extract()
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, ErrNeedMoreData) {
			return Value{}, err
		}
		data, rerr := c.transport.Recv()
		if rerr != nil {
			return Value{}, rerr
		}
		if len(data) == 0 {
			return Value{}, ErrConnLost
		}
		c.dec.Feed(data)
	}
}

// withDeadline bounds fn by ctx's deadline (forwarded to the
// transport) and aborts it on ctx cancellation. Per spec.md §5, a
// cancellation mid-send/recv forces the connection closed because
// partial bytes may already be on the wire.
func (c *Connection) withDeadline(ctx context.Context, fn func() error) error {
	if dl, ok := ctx.Deadline(); ok {
		c.transport.SetDeadline(dl)
		defer c.transport.SetDeadline(time.Time{})
	}
	if ctx.Done() == nil {
		return fn()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.forceClose()
		<-done
		return ctx.Err()
	}
}
