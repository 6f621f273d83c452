// Package livekit implements the media gateway on a LiveKit server. Rooms
// are created on demand when the first participant joins, so a room code
// maps directly to a LiveKit room name.
package livekit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	lkproto "github.com/livekit/protocol/livekit"
	"github.com/twitchtv/twirp"

	"github.com/vovakirdan/livestream-server/internal/media"
)

const (
	tokenValidity = time.Hour
	adminValidity = time.Minute
)

// Gateway lists rooms through the LiveKit room service and mints access tokens.
type Gateway struct {
	apiKey    string
	apiSecret string
	wsURL     string
	rooms     lkproto.RoomService
	now       func() time.Time
}

// New creates a LiveKit gateway. wsURL is the address browsers connect to.
func New(apiKey, apiSecret, wsURL string, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Gateway{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		rooms:     lkproto.NewRoomServiceJSONClient(apiURL(wsURL), httpClient),
		now:       time.Now,
	}
}

// ListSessions returns every room that has at least one publisher.
func (g *Gateway) ListSessions(ctx context.Context) ([]media.Session, error) {
	ctx, err := g.withAdminToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := g.rooms.ListRooms(ctx, &lkproto.ListRoomsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list rooms: %v", media.ErrUnavailable, err)
	}

	now := g.now()
	sessions := make([]media.Session, 0, len(resp.GetRooms()))
	for _, room := range resp.GetRooms() {
		if room.GetNumPublishers() == 0 {
			continue
		}
		var liveMs int64
		if created := room.GetCreationTime(); created > 0 {
			liveMs = now.Sub(time.Unix(created, 0)).Milliseconds()
		}
		sessions = append(sessions, media.Session{
			ID:       room.GetSid(),
			RoomCode: room.GetName(),
			Name:     room.GetName(),
			App:      "livekit",
			Clients:  int(room.GetNumParticipants()),
			LiveMs:   liveMs,
		})
	}
	return sessions, nil
}

// Endpoints returns the LiveKit URL; clients fetch a token separately.
func (g *Gateway) Endpoints(roomCode string) media.Endpoints {
	return media.Endpoints{RoomCode: roomCode, LiveKitURL: g.wsURL}
}

// IssueToken creates a join token for room. Only publishers may send media.
func (g *Gateway) IssueToken(room, identity, name string, publish bool) (string, error) {
	canPublish := publish
	canSubscribe := true

	at := auth.NewAccessToken(g.apiKey, g.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(tokenValidity)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

func (g *Gateway) withAdminToken(ctx context.Context) (context.Context, error) {
	at := auth.NewAccessToken(g.apiKey, g.apiSecret)
	at.SetVideoGrant(&auth.VideoGrant{RoomList: true}).SetValidFor(adminValidity)

	token, err := at.ToJWT()
	if err != nil {
		return ctx, fmt.Errorf("generate admin token: %w", err)
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+token)
	ctx, err = twirp.WithHTTPRequestHeaders(ctx, header)
	if err != nil {
		return ctx, fmt.Errorf("set request headers: %w", err)
	}
	return ctx, nil
}

// apiURL turns the browser websocket address into the HTTP API address.
func apiURL(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss://"):
		return "https://" + strings.TrimPrefix(wsURL, "wss://")
	case strings.HasPrefix(wsURL, "ws://"):
		return "http://" + strings.TrimPrefix(wsURL, "ws://")
	default:
		return wsURL
	}
}

var (
	_ media.Gateway     = (*Gateway)(nil)
	_ media.TokenIssuer = (*Gateway)(nil)
)
