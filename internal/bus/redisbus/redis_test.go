package redisbus

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/livestream-server/internal/core"
)

func TestBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("LIVESTREAM_TEST_REDIS")
	if addr == "" {
		t.Skip("LIVESTREAM_TEST_REDIS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := New(client, "livestream.test."+t.Name(), nil)
	got := make(chan *core.Event, 1)
	require.NoError(t, b.Subscribe(ctx, func(ev *core.Event) { got <- ev }))

	require.NoError(t, b.Publish(ctx, &core.Event{
		Kind:     core.EventReaction,
		Room:     "r1",
		Reaction: &core.Reaction{Room: "r1", Icon: json.RawMessage(`"🔥"`), X: 0.5, ID: "id-1", CreatedAt: time.Now()},
	}))

	select {
	case ev := <-got:
		require.Equal(t, "r1", ev.Room)
		require.Equal(t, "id-1", ev.Reaction.ID)
	case <-ctx.Done():
		t.Fatal("timeout waiting for bus delivery")
	}
}
