// Package proto defines the JSON frames exchanged over the room WebSocket.
package proto

import "encoding/json"

const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventChatMessage = "chat_message"
	EventReaction    = "reaction"
)

// Inbound is the envelope for frames coming from the client. Data is kept
// raw so each event can validate its own payload shape.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatMessageIn is a chat line sent by a client. Every field is raw so
// unexpected types are forwarded untouched; RoomCode must be a string.
type ChatMessageIn struct {
	RoomCode json.RawMessage `json:"roomCode"`
	User     json.RawMessage `json:"user"`
	Text     json.RawMessage `json:"text"`
	Icon     json.RawMessage `json:"icon"`
}

// ReactionIn is a reaction sent by a client. X is honored only when it is a
// JSON number.
type ReactionIn struct {
	RoomCode json.RawMessage `json:"roomCode"`
	Icon     json.RawMessage `json:"icon"`
	X        json.RawMessage `json:"x"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ChatMessageOut is the relayed chat line. TS is milliseconds since epoch.
type ChatMessageOut struct {
	RoomCode string          `json:"roomCode"`
	User     json.RawMessage `json:"user,omitempty"`
	Text     json.RawMessage `json:"text"`
	Icon     json.RawMessage `json:"icon"`
	TS       int64           `json:"ts"`
}

// ReactionOut is the relayed reaction.
type ReactionOut struct {
	RoomCode string          `json:"roomCode"`
	Icon     json.RawMessage `json:"icon"`
	X        float64         `json:"x"`
	ID       string          `json:"id"`
	TS       int64           `json:"ts"`
}
