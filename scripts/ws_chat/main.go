package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livestream-server/internal/log"
	"github.com/vovakirdan/livestream-server/internal/proto"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	logger := log.New("info", log.FormatConsole)
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("ws_chat failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "display name")
	room := flag.String("room", "general", "room code to join")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Outbound{Event: proto.EventJoinRoom, Data: *room}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *addr, *user, *room)
	fmt.Println("Type messages and press Enter to send. /react <icon> [x] sends a reaction. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, logger)
	}()

	writeLoop(ctx, conn, *room, *user, logger)
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			logger.Warn().Err(err).Msg("read error")
			return
		}

		switch f.Event {
		case proto.EventChatMessage:
			var msg proto.ChatMessageOut
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				logger.Warn().Err(err).Msg("unmarshal chat_message")
				continue
			}
			who := "anonymous"
			if len(msg.User) > 0 {
				who = string(msg.User)
			}
			fmt.Printf("[%s] %s: %s\n", msg.RoomCode, who, msg.Text)
		case proto.EventReaction:
			var r proto.ReactionOut
			if err := json.Unmarshal(f.Data, &r); err != nil {
				logger.Warn().Err(err).Msg("unmarshal reaction")
				continue
			}
			fmt.Printf("[%s] reaction %s at x=%v\n", r.RoomCode, r.Icon, r.X)
		default:
			fmt.Printf("event=%s data=%s\n", f.Event, f.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room, user string, logger *zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			out := proto.Outbound{
				Event: proto.EventChatMessage,
				Data:  map[string]any{"roomCode": room, "user": user, "text": text},
			}
			if rest, isReaction := strings.CutPrefix(text, "/react "); isReaction {
				out = reaction(room, strings.Fields(rest))
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				logger.Warn().Err(err).Msg("send error")
				return
			}
		}
	}
}

func reaction(room string, args []string) proto.Outbound {
	data := map[string]any{"roomCode": room}
	if len(args) > 0 {
		data["icon"] = args[0]
	}
	if len(args) > 1 {
		if x, err := strconv.ParseFloat(args[1], 64); err == nil {
			data["x"] = x
		}
	}
	return proto.Outbound{Event: proto.EventReaction, Data: data}
}
