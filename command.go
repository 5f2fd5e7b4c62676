package redis

// CallOptions carries the per-call overrides spec.md §6 lists for a
// command: all optional, all zero-valued by default. It is an explicit
// options struct rather than a mutable context object, matching the
// "no dynamic-dispatch command objects" design note.
type CallOptions struct {
	// Encoder overrides how text string arguments are turned into
	// bytes. Nil uses DefaultTextEncoder (UTF-8 strict).
	Encoder TextEncoder

	// Decoder is carried with the command, but Connection does not
	// apply it: BulkString replies are always returned as raw bytes in
	// Value.Bytes, whether Decoder is nil or not.
	Decoder TextDecoder

	// Attributes makes the reply carry its RESP3 attribute map in
	// Value.Attributes when true; by default attributes are stripped.
	Attributes bool

	// HasDatabase and Database together express an optional per-call
	// SELECT. HasDatabase false means "use the connection's current
	// database".
	HasDatabase bool
	Database    int64

	// Endpoint selects routing: "" for automatic, an explicit
	// "host:port" or socket path, or one of the distinguished router
	// keywords below.
	Endpoint string

	// Asking prefixes the command with ASKING, used by the cluster
	// router's one-shot ASK redirect retry.
	Asking bool
}

// Distinguished Endpoint values recognized by the routers.
const (
	EndpointLeader   = "leader"
	EndpointReplica  = "replica"
	EndpointSentinel = "sentinel"
	EndpointMasters  = "masters"
)

// Command is an ordered sequence of binary-or-text arguments plus the
// overrides that apply to its execution. The first argument is
// conventionally the command name, e.g. "GET".
type Command struct {
	Args    []interface{}
	Options CallOptions
}

// NewCommand builds a Command from its arguments with default options.
func NewCommand(args ...interface{}) Command {
	return Command{Args: args}
}

// WithOptions returns a copy of the command with opts applied.
func (c Command) WithOptions(opts CallOptions) Command {
	c.Options = opts
	return c
}

// Name returns the command's first argument rendered as text, or the
// empty string if it isn't a recognizable command name. Used by the
// reserved-push-command check and by cluster key-routing.
func (c Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	switch v := c.Args[0].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// reservedPushCommands may only be issued on an explicitly push-mode
// Connection (spec.md §4.3).
var reservedPushCommands = map[string]bool{
	"MONITOR":      true,
	"SUBSCRIBE":    true,
	"PSUBSCRIBE":   true,
	"UNSUBSCRIBE":  true,
	"PUNSUBSCRIBE": true,
}
