package core

import (
	"encoding/json"
	"time"
)

// EventKind is a notification the core fans out to room members.
type EventKind int

const (
	// EventChatMessage carries a chat line to everyone in a room.
	EventChatMessage EventKind = iota
	// EventReaction carries a floating emoji reaction to everyone in a room.
	EventReaction
)

func (k EventKind) String() string {
	switch k {
	case EventChatMessage:
		return "chat_message"
	case EventReaction:
		return "reaction"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in a room.
// Exactly one of Chat or Reaction is set, matching Kind.
type Event struct {
	Kind     EventKind
	Room     string
	Chat     *ChatMessage
	Reaction *Reaction
}

// ChatMessage is a relayed chat line. User, Text and Icon hold the raw JSON
// values the sender supplied.
type ChatMessage struct {
	Room      string
	User      json.RawMessage
	Text      json.RawMessage
	Icon      json.RawMessage
	CreatedAt time.Time
}

// Reaction is a relayed emoji reaction. X is the horizontal placement as a
// fraction of the stage width.
type Reaction struct {
	Room      string
	Icon      json.RawMessage
	X         float64
	ID        string
	CreatedAt time.Time
}
