package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/livestream-server/internal/proto"
)

func TestWebSocketChatReachesEveryMember(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)

	send(t, ctx, connA, proto.EventJoinRoom, "abc123")
	send(t, ctx, connB, proto.EventJoinRoom, "abc123")
	env.waitMembers(t, "abc123", 2)

	before := time.Now().UnixMilli()
	send(t, ctx, connA, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "user": "bob", "text": "hi"})

	for name, conn := range map[string]*websocket.Conn{"sender": connA, "peer": connB} {
		msg := readChat(t, ctx, conn)
		if msg["roomCode"] != "abc123" || msg["user"] != "bob" || msg["text"] != "hi" || msg["icon"] != "💬" {
			t.Fatalf("%s got unexpected payload: %v", name, msg)
		}
		if ts, _ := msg["ts"].(float64); int64(ts) < before {
			t.Fatalf("%s got ts %v before send time %d", name, msg["ts"], before)
		}
	}
}

func TestWebSocketRoomsAreIsolated(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)

	send(t, ctx, connA, proto.EventJoinRoom, "r1")
	send(t, ctx, connB, proto.EventJoinRoom, "r2")
	env.waitMembers(t, "r1", 1)
	env.waitMembers(t, "r2", 1)

	send(t, ctx, connA, proto.EventChatMessage, map[string]any{"roomCode": "r1", "user": "a", "text": "only r1"})
	send(t, ctx, connA, proto.EventChatMessage, map[string]any{"roomCode": "r2", "user": "a", "text": "sentinel"})

	// B must see the r2 sentinel first, proving the r1 line never reached it.
	if msg := readChat(t, ctx, connB); msg["text"] != "sentinel" {
		t.Fatalf("expected sentinel, got %v", msg)
	}
	// A is not in r2, so it sees only its own r1 line.
	if msg := readChat(t, ctx, connA); msg["text"] != "only r1" {
		t.Fatalf("expected r1 line, got %v", msg)
	}
}

func TestWebSocketReaction(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.EventJoinRoom, "abc123")
	env.waitMembers(t, "abc123", 1)

	send(t, ctx, conn, proto.EventReaction, map[string]any{"roomCode": "abc123", "x": 0.3})
	send(t, ctx, conn, proto.EventReaction, map[string]any{"roomCode": "abc123", "icon": "🔥", "x": "left"})

	var first, second proto.ReactionOut
	for _, out := range []*proto.ReactionOut{&first, &second} {
		f := readFrame(t, ctx, conn)
		if f.Event != proto.EventReaction {
			t.Fatalf("expected reaction, got %s", f.Event)
		}
		if err := json.Unmarshal(f.Data, out); err != nil {
			t.Fatalf("decode reaction: %v", err)
		}
	}

	if first.X != 0.3 || string(first.Icon) != `"❤️"` || first.ID == "" || first.TS == 0 {
		t.Fatalf("unexpected first reaction: %+v", first)
	}
	if second.X < 0 || second.X >= 1 || string(second.Icon) != `"🔥"` {
		t.Fatalf("unexpected second reaction: %+v", second)
	}
	if first.ID == second.ID {
		t.Fatalf("reaction ids must differ: %s", first.ID)
	}
}

func TestWebSocketMalformedFramesKeepConnection(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.EventJoinRoom, "abc123")
	env.waitMembers(t, "abc123", 1)

	sendRaw(t, ctx, conn, "not json")
	sendRaw(t, ctx, conn, `{"event":"typing","data":{}}`)
	sendRaw(t, ctx, conn, `{"event":"chat_message","data":"nope"}`)
	send(t, ctx, conn, proto.EventJoinRoom, 42)
	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "user": "bob"})
	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "user": "bob", "text": ""})
	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"text": "no room"})
	send(t, ctx, conn, proto.EventReaction, map[string]any{"icon": "👍"})

	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "user": "bob", "text": "still here"})
	if msg := readChat(t, ctx, conn); msg["text"] != "still here" {
		t.Fatalf("expected first delivered frame to be the valid chat, got %v", msg)
	}
}

func TestWebSocketLeaveAndDisconnect(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx)
	connB := env.dial(t, ctx)
	connC := env.dial(t, ctx)

	for _, conn := range []*websocket.Conn{connA, connB, connC} {
		send(t, ctx, conn, proto.EventJoinRoom, "abc123")
	}
	env.waitMembers(t, "abc123", 3)

	send(t, ctx, connB, proto.EventLeaveRoom, "abc123")
	send(t, ctx, connB, proto.EventLeaveRoom, "abc123")
	env.waitMembers(t, "abc123", 2)

	_ = connC.Close(websocket.StatusNormalClosure, "bye")
	env.waitMembers(t, "abc123", 1)

	// B left: it should only see a line sent to a room it is still in.
	send(t, ctx, connB, proto.EventJoinRoom, "other")
	env.waitMembers(t, "other", 1)
	send(t, ctx, connA, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "text": "after"})
	send(t, ctx, connA, proto.EventChatMessage, map[string]any{"roomCode": "other", "text": "sentinel"})

	msg := readChat(t, ctx, connA)
	if msg["text"] != "after" {
		t.Fatalf("A expected its own line, got %v", msg)
	}
	if _, ok := msg["user"]; ok {
		t.Fatal("user should be omitted when the sender supplied none")
	}
	if msg := readChat(t, ctx, connB); msg["text"] != "sentinel" {
		t.Fatalf("B expected sentinel, got %v", msg)
	}
}

func TestWebSocketSingleDeliveryOnDoubleJoin(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.EventJoinRoom, "abc123")
	send(t, ctx, conn, proto.EventJoinRoom, "abc123")
	send(t, ctx, conn, proto.EventJoinRoom, "second")
	env.waitMembers(t, "abc123", 1)
	env.waitMembers(t, "second", 1)

	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "text": "once"})
	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"roomCode": "second", "text": "sentinel"})

	if msg := readChat(t, ctx, conn); msg["text"] != "once" {
		t.Fatalf("expected single delivery, got %v", msg)
	}
	if msg := readChat(t, ctx, conn); msg["text"] != "sentinel" {
		t.Fatalf("expected sentinel after single delivery, got %v", msg)
	}
}

func TestWebSocketUpgradeRegistersWithHub(t *testing.T) {
	env := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.EventJoinRoom, "abc123")
	env.waitMembers(t, "abc123", 1)

	stats, err := env.hub.Stats(ctx, "abc123")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Connections != 1 || stats.Rooms != 1 {
		t.Fatalf("unexpected hub stats: %+v", stats)
	}

	// The upgraded connection is live both ways.
	send(t, ctx, conn, proto.EventChatMessage, map[string]any{"roomCode": "abc123", "text": "ping"})
	if msg := readChat(t, ctx, conn); msg["text"] != "ping" {
		t.Fatalf("unexpected echo: %v", msg)
	}
}
