// Package srs implements the media gateway on an SRS server: live sessions
// come from its HTTP API, publishing uses WHIP, playback WHEP or HLS.
package srs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vovakirdan/livestream-server/internal/media"
)

const (
	rtcPort = 1985
	hlsPort = 8080
)

// Config configures the SRS gateway.
type Config struct {
	APIURL     string // e.g. http://localhost:1985
	PublicHost string // host browsers use to reach SRS
	App        string // SRS application, usually "live"
	HTTPClient *http.Client
}

// Gateway talks to the SRS HTTP API.
type Gateway struct {
	apiURL string
	host   string
	app    string
	client *http.Client
}

// New creates an SRS gateway.
func New(cfg Config) *Gateway {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	app := cfg.App
	if app == "" {
		app = "live"
	}
	return &Gateway{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		host:   cfg.PublicHost,
		app:    app,
		client: client,
	}
}

type streamsResponse struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	ID      json.RawMessage `json:"id"`
	Name    string          `json:"name"`
	App     string          `json:"app"`
	URL     string          `json:"url"`
	Clients int             `json:"clients"`
	LiveMs  int64           `json:"live_ms"`
	Publish struct {
		Active bool `json:"active"`
	} `json:"publish"`
}

// ListSessions returns the streams SRS reports as actively published.
func (g *Gateway) ListSessions(ctx context.Context) ([]media.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/api/v1/streams?count=100", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: srs status %d", media.ErrUnavailable, resp.StatusCode)
	}

	var body streamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode streams: %v", media.ErrUnavailable, err)
	}

	sessions := make([]media.Session, 0, len(body.Streams))
	for _, s := range body.Streams {
		if !s.Publish.Active {
			continue
		}
		sessions = append(sessions, media.Session{
			ID:       streamID(s.ID),
			RoomCode: roomCode(s),
			Name:     s.Name,
			App:      s.App,
			URL:      s.URL,
			Clients:  s.Clients,
			LiveMs:   s.LiveMs,
		})
	}
	return sessions, nil
}

// Endpoints builds WHIP, WHEP and HLS addresses for a room.
func (g *Gateway) Endpoints(roomCode string) media.Endpoints {
	stream := url.QueryEscape(roomCode)
	return media.Endpoints{
		RoomCode: roomCode,
		WHIP:     fmt.Sprintf("http://%s:%d/rtc/v1/whip/?app=%s&stream=%s", g.host, rtcPort, g.app, stream),
		WHEP:     fmt.Sprintf("http://%s:%d/rtc/v1/whep/?app=%s&stream=%s", g.host, rtcPort, g.app, stream),
		HLS:      fmt.Sprintf("http://%s:%d/%s/%s.m3u8", g.host, hlsPort, g.app, url.PathEscape(roomCode)),
	}
}

// roomCode is the last segment of the stream url, falling back to its name.
func roomCode(s stream) string {
	if i := strings.LastIndex(s.URL, "/"); i >= 0 && i < len(s.URL)-1 {
		return s.URL[i+1:]
	}
	if s.URL != "" && !strings.Contains(s.URL, "/") {
		return s.URL
	}
	return s.Name
}

// SRS 4 reports numeric ids, SRS 5 string ids.
func streamID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
