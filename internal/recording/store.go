// Package recording stores uploaded stream recordings and converts them to
// HLS in the background.
package recording

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	// URLPrefix is where the blob store is served over HTTP.
	URLPrefix = "/uploads"

	videosDir    = "videos"
	hlsDir       = "hls"
	playlistName = "index.m3u8"
	defaultExt   = ".webm"

	maxNameAttempts = 32
)

// ErrMissingFile is returned when an upload carries no file.
var ErrMissingFile = errors.New("missing file")

var allowedExt = map[string]bool{".webm": true, ".mp4": true}

// Recording is an uploaded video and, once converted, its HLS playlist.
type Recording struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	HLSURL    string    `json:"hls_url,omitempty"`
	CreatedAt time.Time `json:"-"`
}

// Store keeps recordings on an afero filesystem, usually rooted at the
// upload directory.
type Store struct {
	fs  afero.Fs
	now func() time.Time
}

// NewStore creates a store on fs.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs, now: time.Now}
}

// Fs exposes the underlying filesystem for static serving.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Save writes r as a new recording owned by userID. The stored name is
// derived from the owner and upload time; only the extension of
// originalName is kept, and anything but .webm or .mp4 becomes .webm.
func (s *Store) Save(userID int64, originalName string, r io.Reader) (*Recording, error) {
	if r == nil {
		return nil, ErrMissingFile
	}

	ext := strings.ToLower(path.Ext(originalName))
	if !allowedExt[ext] {
		ext = defaultExt
	}
	if err := s.fs.MkdirAll(videosDir, 0o755); err != nil {
		return nil, fmt.Errorf("create videos dir: %w", err)
	}

	f, filename, createdAt, err := s.create(userID, s.now().UnixMilli(), ext)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(VideoPath(filename))
		return nil, fmt.Errorf("write recording: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close recording: %w", err)
	}

	return &Recording{
		Filename:  filename,
		URL:       videoURL(filename),
		CreatedAt: createdAt,
	}, nil
}

// create opens a fresh recording file. Names taken by an upload in the same
// millisecond are skipped by moving the stamp forward.
func (s *Store) create(userID, ms int64, ext string) (afero.File, string, time.Time, error) {
	for range maxNameAttempts {
		filename := fmt.Sprintf("%d_%d%s", userID, ms, ext)
		f, err := s.fs.OpenFile(VideoPath(filename), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, filename, time.UnixMilli(ms), nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", time.Time{}, fmt.Errorf("create recording: %w", err)
		}
		ms++
	}
	return nil, "", time.Time{}, fmt.Errorf("create recording: %w", os.ErrExist)
}

// List returns the recordings of userID, newest first.
func (s *Store) List(userID int64) ([]Recording, error) {
	entries, err := afero.ReadDir(s.fs, videosDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Recording{}, nil
		}
		return nil, fmt.Errorf("read videos dir: %w", err)
	}

	prefix := strconv.FormatInt(userID, 10) + "_"
	recordings := make([]Recording, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), path.Ext(name)), 10, 64)
		if err != nil {
			continue
		}

		rec := Recording{
			Filename:  name,
			URL:       videoURL(name),
			CreatedAt: time.UnixMilli(ms),
		}
		if ok, _ := afero.Exists(s.fs, PlaylistPath(name)); ok {
			rec.HLSURL = URLPrefix + "/" + PlaylistPath(name)
		}
		recordings = append(recordings, rec)
	}

	sort.SliceStable(recordings, func(i, j int) bool {
		return recordings[i].CreatedAt.After(recordings[j].CreatedAt)
	})
	return recordings, nil
}

// VideoPath is the path of a recording inside the store.
func VideoPath(filename string) string {
	return path.Join(videosDir, filename)
}

// HLSDir is the directory holding the HLS rendition of a recording.
func HLSDir(filename string) string {
	return path.Join(hlsDir, strings.TrimSuffix(filename, path.Ext(filename)))
}

// PlaylistPath is the HLS playlist of a recording.
func PlaylistPath(filename string) string {
	return path.Join(HLSDir(filename), playlistName)
}

func videoURL(filename string) string {
	return URLPrefix + "/" + VideoPath(filename)
}
