package http

import (
	"fmt"
	stdhttp "net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/vovakirdan/livestream-server/internal/auth"
	"github.com/vovakirdan/livestream-server/internal/config"
	"github.com/vovakirdan/livestream-server/internal/core"
	"github.com/vovakirdan/livestream-server/internal/media"
	"github.com/vovakirdan/livestream-server/internal/recording"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Hub        *core.Hub
	Auth       *auth.Service
	Media      media.Gateway
	Tokens     media.TokenIssuer // nil unless the media server uses tokens
	Recordings *recording.Store
	Transcodes *recording.Pool // nil disables HLS conversion
}

// NewServer builds an HTTP server with all routes. The WebSocket endpoint sits
// on a plain mux next to the gin engine: gin's writer refuses to hijack once
// the upgrade response is flushed.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) (*stdhttp.Server, error) {
	router, err := NewRouter(deps, cfg, logger)
	if err != nil {
		return nil, err
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, cfg.MaxMessageBytes, originHosts(cfg.CORSOrigins), logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}

// NewRouter builds the gin engine serving the REST API and uploaded files.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// nil trusts no proxy, so ClientIP is the socket peer unless configured.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		}))
	}

	router.GET("/", func(c *gin.Context) { c.String(stdhttp.StatusOK, "API is running") })
	router.GET("/health", func(c *gin.Context) { c.String(stdhttp.StatusOK, "ok") })

	router.StaticFS(recording.URLPrefix, blobFS{afero.NewHttpFs(deps.Recordings.Fs())})

	apiHandlers := NewAPIHandlers(deps.Auth, logger)
	roomHandlers := NewRoomHandlers(deps.Hub, deps.Auth, deps.Media, deps.Tokens, logger)
	videoHandlers := NewVideoHandlers(deps.Recordings, deps.Transcodes, logger)
	authLimiter := newIPRateLimiter(cfg.AuthRateLimit)
	requireAuth := AuthMiddleware(deps.Auth, logger)

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) { c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"}) })

		api.POST("/register", authLimiter.middleware(), apiHandlers.Register)
		api.POST("/login", authLimiter.middleware(), apiHandlers.Login)
		api.GET("/me", requireAuth, apiHandlers.Me)

		api.GET("/live-streams", roomHandlers.LiveStreams)
		api.GET("/rooms/:code/media", roomHandlers.Media)
		api.GET("/rooms/:code/stats", roomHandlers.Stats)
		api.GET("/rooms/:code/token", requireAuth, roomHandlers.Token)

		videos := api.Group("/videos", requireAuth)
		videos.POST("/upload", videoHandlers.Upload)
		videos.GET("/mine", videoHandlers.Mine)
	}

	return router, nil
}

// blobFS serves store-relative paths; http.FileServer asks for rooted ones.
// Directories are reported as missing so listings never leak file names.
type blobFS struct {
	fs *afero.HttpFs
}

func (b blobFS) Open(name string) (stdhttp.File, error) {
	f, err := b.fs.Open(strings.TrimPrefix(path.Clean("/"+name), "/"))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

// originHosts turns CORS origins into websocket origin patterns.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			hosts = append(hosts, origin)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
