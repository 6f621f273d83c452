package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/vovakirdan/livestream-server/internal/auth"
	"github.com/vovakirdan/livestream-server/internal/bus/natsbus"
	"github.com/vovakirdan/livestream-server/internal/bus/redisbus"
	"github.com/vovakirdan/livestream-server/internal/config"
	"github.com/vovakirdan/livestream-server/internal/core"
	"github.com/vovakirdan/livestream-server/internal/media"
	"github.com/vovakirdan/livestream-server/internal/media/livekit"
	"github.com/vovakirdan/livestream-server/internal/media/srs"
	"github.com/vovakirdan/livestream-server/internal/recording"
	"github.com/vovakirdan/livestream-server/internal/store"
	"github.com/vovakirdan/livestream-server/internal/store/postgres"
	"github.com/vovakirdan/livestream-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/livestream-server/internal/transport/http"
)

const mediaCachePrefix = "livestream:media:"

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	transcodes      *recording.Pool
	redis           *redis.Client
	nats            *nats.Conn
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	a := &App{shutdownTimeout: cfg.ShutdownTimeout, log: logger}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.store = st
	logger.Info().Str("driver", cfg.DBDriver).Msg("database initialized")

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	hubOpts := []core.Option{core.WithLogger(logger)}
	roomBus, err := a.openBus(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init bus: %w", err)
	}
	if roomBus != nil {
		hubOpts = append(hubOpts, core.WithBus(roomBus))
	}
	a.hub = core.NewHub(hubOpts...)

	gateway, tokens, err := newGateway(cfg)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init media gateway: %w", err)
	}
	cacheOpts := []media.CacheOption{media.WithCacheLogger(logger)}
	if a.redis != nil {
		cacheOpts = append(cacheOpts, media.WithRedis(a.redis, mediaCachePrefix))
	}
	cachedGateway := media.NewCached(gateway, cfg.LiveStreamsCacheTTL, cacheOpts...)
	logger.Info().Str("provider", cfg.MediaProvider).Msg("media gateway initialized")

	recordings, err := a.openRecordings(cfg)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init recordings: %w", err)
	}

	a.server, err = transporthttp.NewServer(transporthttp.Deps{
		Hub:        a.hub,
		Auth:       authService,
		Media:      cachedGateway,
		Tokens:     tokens,
		Recordings: recordings,
		Transcodes: a.transcodes,
	}, cfg, logger)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	poolDone := make(chan error, 1)
	if a.transcodes != nil {
		go func() { poolDone <- a.transcodes.Run(poolCtx) }()
	} else {
		poolDone <- nil
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting livestream server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
		cancel()
	}

	stopHub()
	<-hubDone
	a.drainTranscodes(poolDone, stopPool)
	a.cleanup()
	return runErr
}

// drainTranscodes lets queued conversions finish within the shutdown timeout,
// then cancels whatever ffmpeg runs are left.
func (a *App) drainTranscodes(poolDone <-chan error, stopPool context.CancelFunc) {
	if a.transcodes != nil {
		a.transcodes.Close()
	}

	var err error
	select {
	case err = <-poolDone:
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("transcode queue not drained in time, cancelling")
		stopPool()
		err = <-poolDone
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("transcode pool stopped with error")
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		st, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

func (a *App) openBus(ctx context.Context, cfg *config.Config) (core.Bus, error) {
	switch cfg.Bus {
	case "", "memory":
		return nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.redis = client
		a.log.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.BusChannel).Msg("redis bus connected")
		return redisbus.New(client, cfg.BusChannel, a.log), nil
	case "nats":
		conn, err := nats.Connect(cfg.NATSURL,
			nats.Name("livestream-server"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				a.log.Warn().Err(err).Msg("nats disconnected")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				a.log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		a.nats = conn
		a.log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.BusChannel).Msg("nats bus connected")
		return natsbus.New(conn, cfg.BusChannel, a.log), nil
	default:
		return nil, fmt.Errorf("unknown bus %q", cfg.Bus)
	}
}

func newGateway(cfg *config.Config) (media.Gateway, media.TokenIssuer, error) {
	switch cfg.MediaProvider {
	case "", "srs":
		return srs.New(srs.Config{
			APIURL:     cfg.SRSAPIURL,
			PublicHost: cfg.SRSPublicHost,
			App:        cfg.SRSApp,
		}), nil, nil
	case "livekit":
		if cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" {
			return nil, nil, errors.New("livekit api key and secret are required")
		}
		gw := livekit.New(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitURL, nil)
		return gw, gw, nil
	default:
		return nil, nil, fmt.Errorf("unknown media provider %q", cfg.MediaProvider)
	}
}

func (a *App) openRecordings(cfg *config.Config) (*recording.Store, error) {
	root, err := filepath.Abs(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	recordings := recording.NewStore(afero.NewBasePathFs(afero.NewOsFs(), root))

	if cfg.FFmpegPath == "" {
		return recordings, nil
	}
	bin, err := exec.LookPath(cfg.FFmpegPath)
	if err != nil {
		a.log.Warn().Str("ffmpeg", cfg.FFmpegPath).Msg("ffmpeg not found, hls conversion disabled")
		return recordings, nil
	}
	a.transcodes = recording.NewPool(recordings, recording.FFmpeg{Bin: bin, Root: root}, cfg.TranscodeWorkers, a.log)
	return recordings, nil
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
