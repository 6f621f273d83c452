package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livestream-server/internal/auth"
	"github.com/vovakirdan/livestream-server/internal/core"
	"github.com/vovakirdan/livestream-server/internal/media"
	"github.com/vovakirdan/livestream-server/internal/store"
)

// RoomHandlers serves live-stream discovery and per-room media endpoints.
type RoomHandlers struct {
	hub         *core.Hub
	authService *auth.Service
	gateway     media.Gateway
	tokens      media.TokenIssuer
	log         *zerolog.Logger
}

// NewRoomHandlers creates room handlers. tokens may be nil when the media
// server has no token model.
func NewRoomHandlers(hub *core.Hub, authService *auth.Service, gateway media.Gateway, tokens media.TokenIssuer, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub:         hub,
		authService: authService,
		gateway:     gateway,
		tokens:      tokens,
		log:         logger,
	}
}

// LiveStreamsResponse lists sessions currently being published.
type LiveStreamsResponse struct {
	Streams []media.Session `json:"streams"`
}

// RoomTokenResponse carries a media server access token.
type RoomTokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	RoomCode string `json:"roomCode"`
	Identity string `json:"identity"`
	Publish  bool   `json:"publish"`
}

// RoomStatsResponse reports how many local connections joined a room.
type RoomStatsResponse struct {
	RoomCode string `json:"roomCode"`
	Members  int    `json:"members"`
}

// LiveStreams lists active sessions from the media gateway.
// GET /api/live-streams
func (h *RoomHandlers) LiveStreams(c *gin.Context) {
	sessions, err := h.gateway.ListSessions(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list live streams")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "cannot fetch live streams"})
		return
	}
	c.JSON(http.StatusOK, LiveStreamsResponse{Streams: sessions})
}

// Media returns publish and playback endpoints for a room.
// GET /api/rooms/:code/media
func (h *RoomHandlers) Media(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.gateway.Endpoints(code))
}

// Token issues a media access token. Only the account owning the stream key
// gets a publish grant.
// GET /api/rooms/:code/token
func (h *RoomHandlers) Token(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "media server does not use tokens"})
		return
	}
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	publish := false
	owner, err := h.authService.OwnerOf(c.Request.Context(), code)
	switch {
	case err == nil:
		publish = owner.ID == claims.UserID
	case errors.Is(err, store.ErrNotFound):
	default:
		h.log.Error().Err(err).Str("room", code).Msg("failed to look up room owner")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	identity := fmt.Sprintf("user-%d", claims.UserID)
	token, err := h.tokens.IssueToken(code, identity, claims.Username, publish)
	if err != nil {
		h.log.Error().Err(err).Str("room", code).Msg("failed to issue media token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, RoomTokenResponse{
		Token:    token,
		URL:      h.gateway.Endpoints(code).LiveKitURL,
		RoomCode: code,
		Identity: identity,
		Publish:  publish,
	})
}

// Stats reports the local member count of a room.
// GET /api/rooms/:code/stats
func (h *RoomHandlers) Stats(c *gin.Context) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	stats, err := h.hub.Stats(c.Request.Context(), code)
	if err != nil {
		h.log.Error().Err(err).Str("room", code).Msg("failed to query hub stats")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "relay unavailable"})
		return
	}
	c.JSON(http.StatusOK, RoomStatsResponse{RoomCode: code, Members: stats.Members})
}

func roomCodeParam(c *gin.Context) (string, bool) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room code is required"})
		return "", false
	}
	return code, true
}
