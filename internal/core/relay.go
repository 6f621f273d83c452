package core

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// DefaultChatIcon is used when a chat message carries no icon.
	DefaultChatIcon = json.RawMessage(`"💬"`)
	// DefaultReactionIcon is used when a reaction carries no icon.
	DefaultReactionIcon = json.RawMessage(`"❤️"`)
)

// Relay turns client commands into canonical room events, stamping the
// server-owned fields. Payload fields are forwarded as-is.
type Relay struct {
	now    func() time.Time
	random func() float64
	newID  func() string
}

// NewRelay returns a relay using the wall clock, math/rand and ULID ids.
func NewRelay() *Relay {
	return &Relay{
		now:    time.Now,
		random: rand.Float64,
		newID:  func() string { return ulid.Make().String() },
	}
}

// Chat builds a chat event. It reports false when the room or text is missing.
func (r *Relay) Chat(room string, in ChatInput) (*Event, bool) {
	if room == "" || blank(in.Text) {
		return nil, false
	}
	icon := in.Icon
	if blank(icon) {
		icon = DefaultChatIcon
	}
	return &Event{
		Kind: EventChatMessage,
		Room: room,
		Chat: &ChatMessage{
			Room:      room,
			User:      in.User,
			Text:      in.Text,
			Icon:      icon,
			CreatedAt: r.now(),
		},
	}, true
}

// Reaction builds a reaction event. It reports false when the room is missing.
func (r *Relay) Reaction(room string, in ReactionInput) (*Event, bool) {
	if room == "" {
		return nil, false
	}
	icon := in.Icon
	if blank(icon) {
		icon = DefaultReactionIcon
	}
	x := r.random()
	if in.X != nil {
		x = *in.X
	}
	return &Event{
		Kind: EventReaction,
		Room: room,
		Reaction: &Reaction{
			Room:      room,
			Icon:      icon,
			X:         x,
			ID:        r.newID(),
			CreatedAt: r.now(),
		},
	}, true
}

// blank reports whether a raw JSON value is absent, null or the empty string.
func blank(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte(`""`))
}
