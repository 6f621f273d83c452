package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/livestream-server/internal/log"
	"github.com/vovakirdan/livestream-server/internal/proto"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	logger := log.New("info", log.FormatConsole)
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("ws_smoke failed")
		os.Exit(1)
	}
}

// run joins a room with two connections, sends a chat line and a reaction
// from the first one and expects both to arrive on the second.
func run() error {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket address")
	user := flag.String("user", "tester", "display name sent with the chat line")
	room := flag.String("room", "smoke", "room code")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sender, err := dialAndJoin(ctx, *addr, *room)
	if err != nil {
		return err
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	watcher, err := dialAndJoin(ctx, *addr, *room)
	if err != nil {
		return err
	}
	defer watcher.Close(websocket.StatusNormalClosure, "bye")

	// Joins are processed in order per connection; give the hub a moment to
	// apply the second one before publishing.
	time.Sleep(100 * time.Millisecond)

	if err := send(ctx, sender, proto.EventChatMessage, map[string]any{
		"roomCode": *room, "user": *user, "text": *text, "icon": "🙂",
	}); err != nil {
		return err
	}
	if err := send(ctx, sender, proto.EventReaction, map[string]any{
		"roomCode": *room, "icon": "❤️", "x": 42,
	}); err != nil {
		return err
	}

	gotChat, gotReaction := false, false
	for !gotChat || !gotReaction {
		var f frame
		if err := wsjson.Read(ctx, watcher, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch f.Event {
		case proto.EventChatMessage:
			var msg proto.ChatMessageOut
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal chat_message: %w", err)
			}
			fmt.Printf("chat_message: room=%s user=%s text=%s ts=%d\n", msg.RoomCode, msg.User, msg.Text, msg.TS)
			gotChat = true
		case proto.EventReaction:
			var r proto.ReactionOut
			if err := json.Unmarshal(f.Data, &r); err != nil {
				return fmt.Errorf("unmarshal reaction: %w", err)
			}
			fmt.Printf("reaction: room=%s icon=%s x=%v id=%s\n", r.RoomCode, r.Icon, r.X, r.ID)
			gotReaction = true
		default:
			fmt.Printf("unexpected event %q: %s\n", f.Event, f.Data)
		}
	}
	return nil
}

func dialAndJoin(ctx context.Context, addr, room string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := send(ctx, conn, proto.EventJoinRoom, room); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "join failed")
		return nil, err
	}
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, event string, data any) error {
	if err := wsjson.Write(ctx, conn, proto.Outbound{Event: event, Data: data}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
