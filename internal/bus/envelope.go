// Package bus carries relayed room events between server processes.
//
// Every backend publishes the same JSON envelope on a single channel; the
// room travels inside the envelope so room codes never have to be valid
// channel or subject names.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/livestream-server/internal/core"
)

var (
	// ErrUnknownKind is returned when an envelope names no known event.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrMissingRoom is returned when an envelope has no room.
	ErrMissingRoom = errors.New("missing room")
)

type envelope struct {
	Kind string          `json:"kind"`
	Room string          `json:"room"`
	User json.RawMessage `json:"user,omitempty"`
	Text json.RawMessage `json:"text,omitempty"`
	Icon json.RawMessage `json:"icon,omitempty"`
	X    float64         `json:"x,omitempty"`
	ID   string          `json:"id,omitempty"`
	TS   int64           `json:"ts"`
}

// Encode serializes an event for the wire.
func Encode(ev *core.Event) ([]byte, error) {
	env := envelope{Kind: ev.Kind.String(), Room: ev.Room}
	switch ev.Kind {
	case core.EventChatMessage:
		if ev.Chat == nil {
			return nil, fmt.Errorf("encode %s: empty payload", env.Kind)
		}
		env.User = ev.Chat.User
		env.Text = ev.Chat.Text
		env.Icon = ev.Chat.Icon
		env.TS = ev.Chat.CreatedAt.UnixMilli()
	case core.EventReaction:
		if ev.Reaction == nil {
			return nil, fmt.Errorf("encode %s: empty payload", env.Kind)
		}
		env.Icon = ev.Reaction.Icon
		env.X = ev.Reaction.X
		env.ID = ev.Reaction.ID
		env.TS = ev.Reaction.CreatedAt.UnixMilli()
	default:
		return nil, ErrUnknownKind
	}
	return json.Marshal(env)
}

// Decode parses an envelope produced by Encode.
func Decode(data []byte) (*core.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Room == "" {
		return nil, ErrMissingRoom
	}

	ts := time.UnixMilli(env.TS)
	switch env.Kind {
	case core.EventChatMessage.String():
		return &core.Event{
			Kind: core.EventChatMessage,
			Room: env.Room,
			Chat: &core.ChatMessage{
				Room:      env.Room,
				User:      env.User,
				Text:      env.Text,
				Icon:      env.Icon,
				CreatedAt: ts,
			},
		}, nil
	case core.EventReaction.String():
		return &core.Event{
			Kind: core.EventReaction,
			Room: env.Room,
			Reaction: &core.Reaction{
				Room:      env.Room,
				Icon:      env.Icon,
				X:         env.X,
				ID:        env.ID,
				CreatedAt: ts,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}
