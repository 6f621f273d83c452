// Package natsbus implements the room bus on core NATS subjects.
package natsbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livestream-server/internal/bus"
	"github.com/vovakirdan/livestream-server/internal/core"
)

// Bus publishes room events on a single NATS subject.
type Bus struct {
	conn    *nats.Conn
	subject string
	log     *zerolog.Logger
}

// New creates a NATS-backed bus. The caller owns the connection.
func New(conn *nats.Conn, subject string, logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{conn: conn, subject: subject, log: logger}
}

// Publish sends the event to every subscribed process.
func (b *Bus) Publish(ctx context.Context, ev *core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := bus.Encode(ev)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe delivers events until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, deliver func(*core.Event)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		ev, err := bus.Decode(msg.Data)
		if err != nil {
			b.log.Warn().Err(err).Str("subject", b.subject).Msg("dropping malformed bus message")
			return
		}
		deliver(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats flush: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			b.log.Debug().Err(err).Msg("nats unsubscribe")
		}
	}()
	return nil
}
