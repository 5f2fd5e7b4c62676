package redis

import (
	"context"
	"time"
)

// NewPushConnection wraps transport as a push-mode Connection: one
// dedicated to SUBSCRIBE/PSUBSCRIBE and the out-of-band messages they
// produce (spec.md §4.3's "push connection"). Regular Call is not
// valid on it; reserved push command names are rejected there
// precisely so callers are steered to this type instead.
func NewPushConnection(transport Transport) *Connection {
	return newConnection(transport, true)
}

// Subscribe issues SUBSCRIBE <https://redis.io/commands/subscribe> for
// one or more channels without waiting for the confirmation frames;
// read them back with NextMessage.
func (c *Connection) Subscribe(ctx context.Context, channels ...string) error {
	return c.PushCommand(ctx, NewCommand(channelArgs("SUBSCRIBE", channels)...))
}

// PSubscribe issues PSUBSCRIBE
// <https://redis.io/commands/psubscribe> for one or more patterns.
func (c *Connection) PSubscribe(ctx context.Context, patterns ...string) error {
	return c.PushCommand(ctx, NewCommand(channelArgs("PSUBSCRIBE", patterns)...))
}

// Unsubscribe issues UNSUBSCRIBE
// <https://redis.io/commands/unsubscribe>. No channels unsubscribes
// from all of them.
func (c *Connection) Unsubscribe(ctx context.Context, channels ...string) error {
	return c.PushCommand(ctx, NewCommand(channelArgs("UNSUBSCRIBE", channels)...))
}

// PUnsubscribe issues PUNSUBSCRIBE
// <https://redis.io/commands/punsubscribe>.
func (c *Connection) PUnsubscribe(ctx context.Context, patterns ...string) error {
	return c.PushCommand(ctx, NewCommand(channelArgs("PUNSUBSCRIBE", patterns)...))
}

// NextMessage reads the next push frame: a subscribe/unsubscribe
// confirmation or a published message. See Connection.PushedMessage
// for the timeout contract.
func (c *Connection) NextMessage(ctx context.Context, timeout time.Duration) (Value, error) {
	return c.PushedMessage(ctx, timeout)
}

func channelArgs(name string, channels []string) []interface{} {
	args := make([]interface{}, 0, len(channels)+1)
	args = append(args, name)
	for _, ch := range channels {
		args = append(args, ch)
	}
	return args
}
