package core

// Registry tracks live connections by id. It is not safe for concurrent use;
// the hub goroutine is its only caller.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Add records a connection. Returns false if the id is already registered.
func (r *Registry) Add(c *Client) bool {
	if _, exists := r.clients[c.ID]; exists {
		return false
	}
	r.clients[c.ID] = c
	return true
}

// Remove drops a connection and returns it, or nil if it was not registered.
func (r *Registry) Remove(id string) *Client {
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	delete(r.clients, id)
	return c
}

// Has reports whether c is the registered connection for its id.
func (r *Registry) Has(c *Client) bool {
	registered, ok := r.clients[c.ID]
	return ok && registered == c
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Clients returns a snapshot of the live connections.
func (r *Registry) Clients() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
