// Package media describes the external media server that carries the actual
// audio and video of a stream. Rooms on the media server are keyed by the
// same room code the chat relay uses.
package media

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the media server cannot be reached or
// answers with something unusable.
var ErrUnavailable = errors.New("media gateway unavailable")

// Session is a stream currently being published.
type Session struct {
	ID       string `json:"id"`
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	App      string `json:"app"`
	URL      string `json:"url"`
	Clients  int    `json:"clients"`
	LiveMs   int64  `json:"live_ms"`
}

// Endpoints are the publish and playback addresses of a room.
type Endpoints struct {
	RoomCode   string `json:"roomCode"`
	WHIP       string `json:"whip,omitempty"`
	WHEP       string `json:"whep,omitempty"`
	HLS        string `json:"hls,omitempty"`
	LiveKitURL string `json:"livekit_url,omitempty"`
}

// Gateway discovers live sessions and builds per-room endpoints.
type Gateway interface {
	ListSessions(ctx context.Context) ([]Session, error)
	Endpoints(roomCode string) Endpoints
}

// TokenIssuer mints media server access tokens for a room.
type TokenIssuer interface {
	IssueToken(room, identity, name string, publish bool) (string, error)
}
