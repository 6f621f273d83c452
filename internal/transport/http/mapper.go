package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/livestream-server/internal/core"
	"github.com/vovakirdan/livestream-server/internal/proto"
)

var errUnknownEvent = errors.New("unknown event")

// inboundToCommand maps a raw frame to a hub command. Frames that are not
// valid JSON or name an unknown event return an error and are dropped by
// the caller; payload-level problems such as an empty room are left for the
// hub to drop.
func inboundToCommand(frame []byte) (*core.Command, error) {
	var inbound proto.Inbound
	if err := json.Unmarshal(frame, &inbound); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch inbound.Event {
	case proto.EventJoinRoom:
		return &core.Command{Kind: core.CommandJoinRoom, Room: stringValue(inbound.Data)}, nil
	case proto.EventLeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom, Room: stringValue(inbound.Data)}, nil
	case proto.EventChatMessage:
		var msg proto.ChatMessageIn
		if err := decodeObject(inbound.Data, &msg); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind: core.CommandChatMessage,
			Room: stringValue(msg.RoomCode),
			Chat: core.ChatInput{User: msg.User, Text: msg.Text, Icon: msg.Icon},
		}, nil
	case proto.EventReaction:
		var reaction proto.ReactionIn
		if err := decodeObject(inbound.Data, &reaction); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:     core.CommandReaction,
			Room:     stringValue(reaction.RoomCode),
			Reaction: core.ReactionInput{Icon: reaction.Icon, X: numberValue(reaction.X)},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, inbound.Event)
	}
}

func outboundFromEvent(event *core.Event) (proto.Outbound, bool) {
	switch {
	case event.Kind == core.EventChatMessage && event.Chat != nil:
		return proto.Outbound{
			Event: proto.EventChatMessage,
			Data: proto.ChatMessageOut{
				RoomCode: event.Chat.Room,
				User:     event.Chat.User,
				Text:     event.Chat.Text,
				Icon:     event.Chat.Icon,
				TS:       event.Chat.CreatedAt.UnixMilli(),
			},
		}, true
	case event.Kind == core.EventReaction && event.Reaction != nil:
		return proto.Outbound{
			Event: proto.EventReaction,
			Data: proto.ReactionOut{
				RoomCode: event.Reaction.Room,
				Icon:     event.Reaction.Icon,
				X:        event.Reaction.X,
				ID:       event.Reaction.ID,
				TS:       event.Reaction.CreatedAt.UnixMilli(),
			},
		}, true
	default:
		return proto.Outbound{}, false
	}
}

// decodeObject treats a missing or null payload as an empty object.
func decodeObject(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// stringValue returns raw as a string, or "" when it is not a JSON string.
func stringValue(raw json.RawMessage) string {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// numberValue returns raw as a number, or nil when it is not a JSON number.
func numberValue(raw json.RawMessage) *float64 {
	var f float64
	if isNull(raw) || json.Unmarshal(raw, &f) != nil {
		return nil
	}
	return &f
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
