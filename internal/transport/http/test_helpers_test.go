package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/vovakirdan/livestream-server/internal/auth"
	"github.com/vovakirdan/livestream-server/internal/config"
	"github.com/vovakirdan/livestream-server/internal/core"
	"github.com/vovakirdan/livestream-server/internal/media"
	"github.com/vovakirdan/livestream-server/internal/proto"
	"github.com/vovakirdan/livestream-server/internal/recording"
	"github.com/vovakirdan/livestream-server/internal/store"
	"github.com/vovakirdan/livestream-server/internal/store/sqlite"
)

type fakeGateway struct {
	mu       sync.Mutex
	sessions []media.Session
	err      error
}

func (g *fakeGateway) ListSessions(context.Context) ([]media.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions, g.err
}

func (g *fakeGateway) Endpoints(roomCode string) media.Endpoints {
	return media.Endpoints{RoomCode: roomCode, HLS: "http://media.test/live/" + roomCode + ".m3u8", LiveKitURL: "ws://media.test"}
}

type fakeTokens struct{}

func (fakeTokens) IssueToken(room, identity, _ string, publish bool) (string, error) {
	if publish {
		return "pub:" + room + ":" + identity, nil
	}
	return "sub:" + room + ":" + identity, nil
}

type testEnv struct {
	ts         *httptest.Server
	hub        *core.Hub
	auth       *auth.Service
	gateway    *fakeGateway
	recordings *recording.Store
}

type envOption func(*config.Config, *Deps)

func withTokens(issuer media.TokenIssuer) envOption {
	return func(_ *config.Config, d *Deps) { d.Tokens = issuer }
}

func withAuthRateLimit(perSecond float64) envOption {
	return func(c *config.Config, _ *Deps) { c.AuthRateLimit = perSecond }
}

func withTrustedProxies(proxies ...string) envOption {
	return func(c *config.Config, _ *Deps) { c.TrustedProxies = proxies }
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

func startTestServer(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	hub := core.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	disabledLogger := zerolog.New(nil)
	authService := createTestAuthService(t, createTestStore(t), "test-secret")
	gateway := &fakeGateway{}
	recordings := recording.NewStore(afero.NewMemMapFs())

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxMessageBytes:   1 << 16,
	}
	deps := Deps{
		Hub:        hub,
		Auth:       authService,
		Media:      gateway,
		Recordings: recordings,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	srv, err := NewServer(deps, &cfg, &disabledLogger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService, gateway: gateway, recordings: recordings}
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func sendRaw(t *testing.T, ctx context.Context, conn *websocket.Conn, raw string) {
	t.Helper()

	if err := conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write raw: %v", err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) frame {
	t.Helper()

	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func readChat(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()

	f := readFrame(t, ctx, conn)
	if f.Event != proto.EventChatMessage {
		t.Fatalf("expected chat_message, got %s", f.Event)
	}
	var data map[string]any
	if err := json.Unmarshal(f.Data, &data); err != nil {
		t.Fatalf("decode chat payload: %v", err)
	}
	return data
}

// waitMembers polls the hub until room has want local members.
func (e *testEnv) waitMembers(t *testing.T, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		stats, err := e.hub.Stats(context.Background(), room)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.Members == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("room %q has %d members, want %d", room, stats.Members, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *stdhttp.Request) (int, []byte) {
	t.Helper()

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func (e *testEnv) register(t *testing.T, username, role string) AuthResponse {
	t.Helper()

	status, body := e.do(t, stdhttp.MethodPost, "/api/register", "", RegisterRequest{Username: username, Password: "password123", Role: role})
	if status != stdhttp.StatusOK {
		t.Fatalf("register %s: status %d: %s", username, status, body)
	}
	return decode[AuthResponse](t, body)
}
