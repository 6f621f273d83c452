package core

const (
	clientCommandBuffer = 16
	clientEventBuffer   = 64
)

// Client is one live transport connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// rooms is owned by the hub goroutine.
	rooms map[string]struct{}
	done  chan struct{}
}

// NewClient constructs a client with initialized channels and no room memberships.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, clientCommandBuffer),
		Events:   make(chan *Event, clientEventBuffer),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub has dropped the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
