package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livestream-server/internal/recording"
)

// VideoHandlers serves recording upload and listing.
type VideoHandlers struct {
	store *recording.Store
	pool  *recording.Pool
	log   *zerolog.Logger
}

// NewVideoHandlers creates video handlers. pool may be nil to skip HLS conversion.
func NewVideoHandlers(st *recording.Store, pool *recording.Pool, logger *zerolog.Logger) *VideoHandlers {
	return &VideoHandlers{store: st, pool: pool, log: logger}
}

// UploadResponse describes a stored recording.
type UploadResponse struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// VideosResponse lists the caller's recordings.
type VideosResponse struct {
	Videos []recording.Recording `json:"videos"`
}

// Upload stores the multipart field "file" as a recording of the caller.
// POST /api/videos/upload
func (h *VideoHandlers) Upload(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: recording.ErrMissingFile.Error()})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "upload failed"})
		return
	}
	defer file.Close()

	rec, err := h.store.Save(claims.UserID, header.Filename, file)
	if err != nil {
		if errors.Is(err, recording.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("failed to save recording")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "upload failed"})
		return
	}

	if h.pool != nil {
		h.pool.Enqueue(rec.Filename)
	}

	h.log.Info().Int64("user_id", claims.UserID).Str("file", rec.Filename).Int64("bytes", header.Size).Msg("recording uploaded")
	c.JSON(http.StatusOK, UploadResponse{OK: true, Filename: rec.Filename, URL: rec.URL})
}

// Mine lists the caller's recordings, newest first.
// GET /api/videos/mine
func (h *VideoHandlers) Mine(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	videos, err := h.store.List(claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("failed to list recordings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cannot list videos"})
		return
	}
	c.JSON(http.StatusOK, VideosResponse{Videos: videos})
}
