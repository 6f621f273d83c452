package recording

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Transcoder converts a stored recording into an HLS rendition. Paths are
// relative to the recording store.
type Transcoder interface {
	Transcode(ctx context.Context, src, dstDir string) error
}

// FFmpeg runs the ffmpeg binary against files under Root.
type FFmpeg struct {
	Bin  string
	Root string
}

// Transcode writes dstDir/index.m3u8 and its segments.
func (f FFmpeg) Transcode(ctx context.Context, src, dstDir string) error {
	cmd := exec.CommandContext(ctx, f.Bin, f.args(src, dstDir)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", src, err, tail(string(out), 512))
	}
	return nil
}

func (f FFmpeg) args(src, dstDir string) []string {
	dst := filepath.Join(f.Root, filepath.FromSlash(dstDir))
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", filepath.Join(f.Root, filepath.FromSlash(src)),
		"-c:v", "libx264", "-preset", "veryfast",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", "4",
		"-hls_playlist_type", "vod",
		"-hls_flags", "temp_file",
		"-hls_segment_filename", filepath.Join(dst, "seg_%03d.ts"),
		filepath.Join(dst, playlistName),
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
