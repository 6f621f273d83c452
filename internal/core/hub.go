package core

import (
	"context"

	"github.com/rs/zerolog"
)

const (
	hubCommandBuffer = 256
	hubOutboxBuffer  = 1024
)

// Bus carries relayed events between processes. When a hub has a bus, every
// relayed event is published to it and fan-out happens when the bus delivers
// the event back, so all processes sharing the bus see the same rooms.
type Bus interface {
	// Publish sends the event to every subscriber, this process included.
	Publish(ctx context.Context, event *Event) error
	// Subscribe starts delivering bus events to deliver until ctx is done.
	Subscribe(ctx context.Context, deliver func(*Event)) error
}

// Stats is a point-in-time view of the hub state.
type Stats struct {
	Connections int
	Rooms       int
	Members     int // members of the queried room
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

type statsQuery struct {
	room  string
	reply chan Stats
}

// Hub owns the connection registry and room router. Every connect, command
// and disconnect runs on the Run goroutine, one at a time.
type Hub struct {
	registry *Registry
	router   *Router
	relay    *Relay
	bus      Bus
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	deliveries chan *Event
	queries    chan statsQuery
	outbox     chan *Event
	stopped    chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithBus fans events out through the given bus instead of locally.
func WithBus(bus Bus) Option {
	return func(h *Hub) { h.bus = bus }
}

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithRelay replaces the default relay.
func WithRelay(relay *Relay) Option {
	return func(h *Hub) {
		if relay != nil {
			h.relay = relay
		}
	}
}

// NewHub creates a hub with an empty registry and no rooms.
func NewHub(opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		relay:      NewRelay(),
		log:        &nop,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, hubCommandBuffer),
		deliveries: make(chan *Event, hubCommandBuffer),
		queries:    make(chan statsQuery),
		outbox:     make(chan *Event, hubOutboxBuffer),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registry = NewRegistry()
	h.router = NewRouter(h.log)
	return h
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	if h.bus != nil {
		if err := h.bus.Subscribe(ctx, h.deliver); err != nil {
			h.log.Error().Err(err).Msg("bus subscribe failed, falling back to local fan-out")
			h.bus = nil
		} else {
			go h.publishLoop(ctx)
		}
	}

	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			if !h.registry.Has(cc.client) {
				continue
			}
			h.handleCommand(cc.client, cc.cmd)
		case ev := <-h.deliveries:
			h.router.Broadcast(ev.Room, ev)
		case q := <-h.queries:
			q.reply <- Stats{
				Connections: h.registry.Len(),
				Rooms:       h.router.Rooms(),
				Members:     h.router.Members(q.room),
			}
		case <-ctx.Done():
			for _, c := range h.registry.Clients() {
				h.handleUnregister(c)
			}
			return
		}
	}
}

// RegisterClient adds a connection to the hub and starts consuming its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
	}
}

// UnregisterClient removes a connection from every room and from the hub.
// Calling it more than once is harmless.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Stats reports the number of connections and rooms, and the member count of room.
func (h *Hub) Stats(ctx context.Context, room string) (Stats, error) {
	q := statsQuery{room: room, reply: make(chan Stats, 1)}
	select {
	case h.queries <- q:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.stopped:
		return Stats{}, ErrHubStopped
	}
	select {
	case s := <-q.reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if !h.registry.Add(c) {
		h.log.Warn().Str("client_id", c.ID).Msg("duplicate client id, ignoring register")
		return
	}
	h.log.Debug().Str("client_id", c.ID).Int("connections", h.registry.Len()).Msg("client connected")
	go h.pump(ctx, c)
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.registry.Has(c) {
		return
	}
	h.router.RemoveClient(c)
	h.registry.Remove(c.ID)
	close(c.done)
	h.log.Debug().Str("client_id", c.ID).Int("connections", h.registry.Len()).Msg("client disconnected")
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		if h.router.Join(c, cmd.Room) {
			h.log.Debug().Str("client_id", c.ID).Str("room", cmd.Room).Msg("joined room")
		}
	case CommandLeaveRoom:
		if h.router.Leave(c, cmd.Room) {
			h.log.Debug().Str("client_id", c.ID).Str("room", cmd.Room).Msg("left room")
		}
	case CommandChatMessage:
		ev, ok := h.relay.Chat(cmd.Room, cmd.Chat)
		if !ok {
			h.log.Debug().Str("client_id", c.ID).Msg("dropping chat message without room or text")
			return
		}
		h.broadcast(ev)
	case CommandReaction:
		ev, ok := h.relay.Reaction(cmd.Room, cmd.Reaction)
		if !ok {
			h.log.Debug().Str("client_id", c.ID).Msg("dropping reaction without room")
			return
		}
		h.broadcast(ev)
	default:
		h.log.Debug().Str("client_id", c.ID).Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

func (h *Hub) broadcast(ev *Event) {
	if h.bus == nil {
		h.router.Broadcast(ev.Room, ev)
		return
	}
	select {
	case h.outbox <- ev:
	default:
		h.log.Warn().Str("room", ev.Room).Str("event", ev.Kind.String()).Msg("bus outbox full, dropping event")
	}
}

// pump forwards a client's commands to the hub in the order they were sent.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) deliver(ev *Event) {
	if ev == nil || ev.Room == "" {
		return
	}
	select {
	case h.deliveries <- ev:
	case <-h.stopped:
	}
}

func (h *Hub) publishLoop(ctx context.Context) {
	for {
		select {
		case ev := <-h.outbox:
			if err := h.bus.Publish(ctx, ev); err != nil {
				h.log.Error().Err(err).Str("room", ev.Room).Str("event", ev.Kind.String()).Msg("bus publish failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
