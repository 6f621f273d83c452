package core

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func expectNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got %+v", ev)
	case <-time.After(wait):
	}
}

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(opts...)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	return c
}

func joinAndWait(t *testing.T, hub *Hub, c *Client, room string, members int) {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, Room: room}
	waitMembers(t, hub, room, members)
}

func waitMembers(t *testing.T, hub *Hub, room string, members int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		stats, err := hub.Stats(ctx, room)
		if err != nil {
			t.Fatalf("waiting for %d members in %q: %v", members, room, err)
		}
		if stats.Members == members {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// newTestRelay returns a relay with a fixed clock, a fixed random placement
// and sequential ids.
func newTestRelay(now time.Time, x float64) *Relay {
	seq := 0
	return &Relay{
		now:    func() time.Time { return now },
		random: func() float64 { return x },
		newID: func() string {
			seq++
			return "id-" + strconv.Itoa(seq)
		},
	}
}
