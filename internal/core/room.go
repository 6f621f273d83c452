package core

import "github.com/rs/zerolog"

// Room groups clients joined to the same room code.
type Room struct {
	Name    string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast offers the event to every client in the room without blocking.
// Clients whose event queue is full are returned so the caller can report them.
func (r *Room) Broadcast(event *Event) (delivered int, dropped []*Client) {
	for client := range r.clients {
		select {
		case client.Events <- event:
			delivered++
		default:
			dropped = append(dropped, client)
		}
	}
	return delivered, dropped
}

// Size returns the number of clients in the room.
func (r *Room) Size() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// Router maps room codes to their member sets. Rooms exist only while they
// have members. Not safe for concurrent use; the hub goroutine owns it.
type Router struct {
	rooms map[string]*Room
	log   *zerolog.Logger
}

// NewRouter returns a router with no rooms.
func NewRouter(logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		rooms: make(map[string]*Room),
		log:   logger,
	}
}

// Join adds the client to the room. Empty room codes are ignored and joining
// twice is a no-op. Returns true if the client was newly added.
func (rt *Router) Join(c *Client, room string) bool {
	if room == "" {
		return false
	}
	r, ok := rt.rooms[room]
	if !ok {
		r = NewRoom(room)
		rt.rooms[room] = r
	}
	if !r.AddClient(c) {
		return false
	}
	c.rooms[room] = struct{}{}
	return true
}

// Leave removes the client from the room. Leaving a room the client is not in
// is a no-op. Returns true if the client was removed.
func (rt *Router) Leave(c *Client, room string) bool {
	if room == "" {
		return false
	}
	delete(c.rooms, room)
	r, ok := rt.rooms[room]
	if !ok {
		return false
	}
	removed := r.RemoveClient(c)
	if r.Empty() {
		delete(rt.rooms, room)
	}
	return removed
}

// RemoveClient leaves every room the client has joined.
func (rt *Router) RemoveClient(c *Client) {
	for room := range c.rooms {
		rt.Leave(c, room)
	}
}

// Broadcast delivers the event to every current member of the room, the
// sender included. Unknown rooms are a no-op. Returns the number of members
// the event was queued for.
func (rt *Router) Broadcast(room string, event *Event) int {
	r, ok := rt.rooms[room]
	if !ok {
		return 0
	}
	delivered, dropped := r.Broadcast(event)
	for _, c := range dropped {
		rt.log.Warn().
			Str("client_id", c.ID).
			Str("room", room).
			Str("event", event.Kind.String()).
			Msg("dropping event for slow client")
	}
	return delivered
}

// Members returns the number of clients joined to the room.
func (rt *Router) Members(room string) int {
	r, ok := rt.rooms[room]
	if !ok {
		return 0
	}
	return r.Size()
}

// Rooms returns the number of rooms with at least one member.
func (rt *Router) Rooms() int {
	return len(rt.rooms)
}
