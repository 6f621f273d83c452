package http

import (
	"bytes"
	"mime/multipart"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/vovakirdan/livestream-server/internal/recording"
)

func (e *testEnv) upload(t *testing.T, token, field, filename, content string) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := stdhttp.NewRequest(stdhttp.MethodPost, e.ts.URL+"/api/videos/upload", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func TestUploadAndListVideos(t *testing.T) {
	env := startTestServer(t)
	alice := env.register(t, "alice", "streamer")
	bob := env.register(t, "bob", "")

	status, body := env.upload(t, alice.Token, "file", "stream.mkv", "video-bytes")
	if status != stdhttp.StatusOK {
		t.Fatalf("upload: status %d: %s", status, body)
	}
	up := decode[UploadResponse](t, body)
	if !up.OK || !strings.HasSuffix(up.Filename, ".webm") || up.URL != "/uploads/videos/"+up.Filename {
		t.Fatalf("unexpected upload response: %+v", up)
	}

	status, body = env.do(t, stdhttp.MethodGet, up.URL, "", nil)
	if status != stdhttp.StatusOK || string(body) != "video-bytes" {
		t.Fatalf("static fetch: got %d %q", status, body)
	}

	for _, dir := range []string{"/uploads/", "/uploads/videos/", "/uploads/videos"} {
		if status, body := env.do(t, stdhttp.MethodGet, dir, "", nil); status != stdhttp.StatusNotFound {
			t.Fatalf("%s: directory listing served with %d: %s", dir, status, body)
		}
	}

	// HLS rendition appears in the listing once the playlist exists.
	if err := afero.WriteFile(env.recordings.Fs(), recording.PlaylistPath(up.Filename), []byte("#EXTM3U"), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}

	status, body = env.do(t, stdhttp.MethodGet, "/api/videos/mine", alice.Token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("mine: status %d: %s", status, body)
	}
	mine := decode[VideosResponse](t, body)
	if len(mine.Videos) != 1 || mine.Videos[0].Filename != up.Filename || mine.Videos[0].HLSURL == "" {
		t.Fatalf("unexpected listing: %+v", mine.Videos)
	}

	status, body = env.do(t, stdhttp.MethodGet, "/api/videos/mine", bob.Token, nil)
	if status != stdhttp.StatusOK || len(decode[VideosResponse](t, body).Videos) != 0 {
		t.Fatalf("bob should have no videos: %d %s", status, body)
	}
}

func TestUploadErrors(t *testing.T) {
	env := startTestServer(t)
	alice := env.register(t, "alice", "")

	if status, _ := env.upload(t, "", "file", "a.webm", "x"); status != stdhttp.StatusUnauthorized {
		t.Fatalf("anonymous upload: got %d, want 401", status)
	}
	if status, _ := env.upload(t, alice.Token, "video", "a.webm", "x"); status != stdhttp.StatusBadRequest {
		t.Fatalf("wrong field: got %d, want 400", status)
	}
}
