package media

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const sessionsKey = "sessions"

// Cached wraps a gateway and keeps its session list for a short TTL, so a
// burst of explore requests costs one call to the media server.
type Cached struct {
	next  Gateway
	ttl   time.Duration
	group singleflight.Group
	log   *zerolog.Logger
	now   func() time.Time

	redis     *redis.Client
	redisKey  string
	mu        sync.Mutex
	sessions  []Session
	expiresAt time.Time
}

// CacheOption configures a Cached gateway.
type CacheOption func(*Cached)

// WithRedis shares the cached session list between processes.
func WithRedis(client *redis.Client, prefix string) CacheOption {
	return func(c *Cached) {
		c.redis = client
		c.redisKey = prefix + sessionsKey
	}
}

// WithCacheLogger sets the logger used for cache errors.
func WithCacheLogger(logger *zerolog.Logger) CacheOption {
	return func(c *Cached) {
		if logger != nil {
			c.log = logger
		}
	}
}

// NewCached wraps next. A non-positive ttl disables caching but keeps
// concurrent misses collapsed into one upstream call.
func NewCached(next Gateway, ttl time.Duration, opts ...CacheOption) *Cached {
	nop := zerolog.Nop()
	c := &Cached{
		next: next,
		ttl:  ttl,
		log:  &nop,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSessions returns the cached session list, refreshing it on expiry.
func (c *Cached) ListSessions(ctx context.Context) ([]Session, error) {
	if sessions, ok := c.local(); ok {
		return sessions, nil
	}
	if sessions, ok := c.shared(ctx); ok {
		c.store(sessions)
		return sessions, nil
	}

	v, err, _ := c.group.Do(sessionsKey, func() (interface{}, error) {
		sessions, err := c.next.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		c.store(sessions)
		c.share(ctx, sessions)
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Session), nil
}

// Endpoints delegates to the wrapped gateway.
func (c *Cached) Endpoints(roomCode string) Endpoints {
	return c.next.Endpoints(roomCode)
}

func (c *Cached) local() ([]Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.sessions, true
}

func (c *Cached) store(sessions []Session) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.sessions = sessions
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
}

func (c *Cached) shared(ctx context.Context) ([]Session, bool) {
	if c.redis == nil || c.ttl <= 0 {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.redisKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("session cache get failed")
		}
		return nil, false
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		c.log.Warn().Err(err).Msg("session cache unmarshal failed")
		return nil, false
	}
	return sessions, true
}

func (c *Cached) share(ctx context.Context, sessions []Session) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		c.log.Warn().Err(err).Msg("session cache marshal failed")
		return
	}
	if err := c.redis.Set(ctx, c.redisKey, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("session cache set failed")
	}
}
