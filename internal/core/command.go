package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandChatMessage relays a chat line to a room.
	CommandChatMessage
	// CommandReaction relays a reaction to a room.
	CommandReaction
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Room     string
	Chat     ChatInput
	Reaction ReactionInput
}

// ChatInput is the client-supplied part of a chat message. Absent fields are nil.
type ChatInput struct {
	User json.RawMessage
	Text json.RawMessage
	Icon json.RawMessage
}

// ReactionInput is the client-supplied part of a reaction. X is nil when the
// client sent no numeric placement.
type ReactionInput struct {
	Icon json.RawMessage
	X    *float64
}
