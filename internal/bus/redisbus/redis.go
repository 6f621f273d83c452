// Package redisbus implements the room bus on Redis pub/sub.
package redisbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livestream-server/internal/bus"
	"github.com/vovakirdan/livestream-server/internal/core"
)

// Bus publishes room events on a single Redis channel.
type Bus struct {
	client  *redis.Client
	channel string
	log     *zerolog.Logger
}

// New creates a Redis-backed bus. The caller owns the client.
func New(client *redis.Client, channel string, logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{client: client, channel: channel, log: logger}
}

// Publish sends the event to every subscribed process.
func (b *Bus) Publish(ctx context.Context, ev *core.Event) error {
	data, err := bus.Encode(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe confirms the subscription and then delivers events in the
// background until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, deliver func(*core.Event)) error {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := bus.Decode([]byte(msg.Payload))
				if err != nil {
					b.log.Warn().Err(err).Str("channel", b.channel).Msg("dropping malformed bus message")
					continue
				}
				deliver(ev)
			}
		}
	}()
	return nil
}
