package http

import (
	stdhttp "net/http"
	"strings"
	"testing"
)

func TestHealthEndpoints(t *testing.T) {
	env := startTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "API is running"},
		{path: "/health", want: "ok"},
		{path: "/api/health", want: `{"status":"ok"}`},
	}
	for _, tt := range tests {
		status, body := env.do(t, stdhttp.MethodGet, tt.path, "", nil)
		if status != stdhttp.StatusOK || string(body) != tt.want {
			t.Fatalf("%s: got %d %q, want 200 %q", tt.path, status, body, tt.want)
		}
	}
}

func TestRegisterLoginMe(t *testing.T) {
	env := startTestServer(t)

	registered := env.register(t, "alice", "streamer")
	if registered.Token == "" || registered.User.Username != "alice" || registered.User.Role != "streamer" || len(registered.User.StreamKey) != 16 {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	status, body := env.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "password123"})
	if status != stdhttp.StatusOK {
		t.Fatalf("login: status %d: %s", status, body)
	}
	login := decode[AuthResponse](t, body)
	if login.User != registered.User {
		t.Fatalf("login user %+v differs from %+v", login.User, registered.User)
	}

	status, body = env.do(t, stdhttp.MethodGet, "/api/me", login.Token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("me: status %d: %s", status, body)
	}
	if me := decode[MeResponse](t, body); me.User != registered.User {
		t.Fatalf("me returned %+v, want %+v", me.User, registered.User)
	}
}

func TestRegisterErrors(t *testing.T) {
	env := startTestServer(t)
	env.register(t, "alice", "")

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "missing password", body: map[string]string{"username": "bob"}, want: stdhttp.StatusBadRequest},
		{name: "short username", body: RegisterRequest{Username: "ab", Password: "password123"}, want: stdhttp.StatusBadRequest},
		{name: "short password", body: RegisterRequest{Username: "bob", Password: "123"}, want: stdhttp.StatusBadRequest},
		{name: "unknown role", body: RegisterRequest{Username: "bob", Password: "password123", Role: "admin"}, want: stdhttp.StatusBadRequest},
		{name: "taken username", body: RegisterRequest{Username: "alice", Password: "password123"}, want: stdhttp.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, stdhttp.MethodPost, "/api/register", "", tt.body)
			if status != tt.want {
				t.Fatalf("got %d (%s), want %d", status, body, tt.want)
			}
			if decode[ErrorResponse](t, body).Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := startTestServer(t)
	env.register(t, "alice", "")

	for _, req := range []LoginRequest{
		{Username: "alice", Password: "wrong-password"},
		{Username: "nobody", Password: "password123"},
	} {
		if status, _ := env.do(t, stdhttp.MethodPost, "/api/login", "", req); status != stdhttp.StatusUnauthorized {
			t.Fatalf("login %s: got %d, want 401", req.Username, status)
		}
	}
}

func TestMeRequiresToken(t *testing.T) {
	env := startTestServer(t)

	if status, _ := env.do(t, stdhttp.MethodGet, "/api/me", "", nil); status != stdhttp.StatusUnauthorized {
		t.Fatalf("missing token: got %d", status)
	}
	if status, _ := env.do(t, stdhttp.MethodGet, "/api/me", "garbage", nil); status != stdhttp.StatusUnauthorized {
		t.Fatalf("bad token: got %d", status)
	}
}

func TestAuthRateLimit(t *testing.T) {
	env := startTestServer(t, withAuthRateLimit(1))

	req := LoginRequest{Username: "nobody", Password: "password123"}
	if status, _ := env.do(t, stdhttp.MethodPost, "/api/login", "", req); status != stdhttp.StatusUnauthorized {
		t.Fatalf("first login: got %d, want 401", status)
	}
	if status, _ := env.do(t, stdhttp.MethodPost, "/api/login", "", req); status != stdhttp.StatusTooManyRequests {
		t.Fatalf("second login: got %d, want 429", status)
	}
}

func TestAuthRateLimitIgnoresForwardedFor(t *testing.T) {
	env := startTestServer(t, withAuthRateLimit(1))

	login := func(forwardedFor string) int {
		req, err := stdhttp.NewRequest(stdhttp.MethodPost, env.ts.URL+"/api/login",
			strings.NewReader(`{"username":"nobody","password":"password123"}`))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		status, _ := env.send(t, req)
		return status
	}

	if status := login("10.0.0.1"); status != stdhttp.StatusUnauthorized {
		t.Fatalf("first login: got %d, want 401", status)
	}
	if status := login("10.0.0.2"); status != stdhttp.StatusTooManyRequests {
		t.Fatalf("spoofed address got a fresh bucket: got %d, want 429", status)
	}
}

func TestAuthRateLimitHonorsTrustedProxy(t *testing.T) {
	env := startTestServer(t, withAuthRateLimit(1), withTrustedProxies("127.0.0.1", "::1"))

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req, err := stdhttp.NewRequest(stdhttp.MethodPost, env.ts.URL+"/api/login",
			strings.NewReader(`{"username":"nobody","password":"password123"}`))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", ip)
		if status, _ := env.send(t, req); status != stdhttp.StatusUnauthorized {
			t.Fatalf("client %s behind trusted proxy: got %d, want 401", ip, status)
		}
	}
}
