package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"` // console or json
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	CORSOrigins       []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	// Proxies whose X-Forwarded-For is honored; empty means none.
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`

	DBDriver    string `mapstructure:"db_driver" yaml:"db_driver"`
	DBPath      string `mapstructure:"db_path" yaml:"db_path"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	JWTSecret     string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience   string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL        time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	AuthRateLimit float64       `mapstructure:"auth_rate_limit" yaml:"auth_rate_limit"` // requests per second per IP

	// Room bus: memory (single process), redis or nats.
	Bus        string `mapstructure:"bus" yaml:"bus"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr"`
	NATSURL    string `mapstructure:"nats_url" yaml:"nats_url"`
	BusChannel string `mapstructure:"bus_channel" yaml:"bus_channel"`

	// Media gateway: srs or livekit.
	MediaProvider       string        `mapstructure:"media_provider" yaml:"media_provider"`
	SRSAPIURL           string        `mapstructure:"srs_api_url" yaml:"srs_api_url"`
	SRSPublicHost       string        `mapstructure:"srs_public_host" yaml:"srs_public_host"`
	SRSApp              string        `mapstructure:"srs_app" yaml:"srs_app"`
	LiveKitURL          string        `mapstructure:"livekit_url" yaml:"livekit_url"`
	LiveKitAPIKey       string        `mapstructure:"livekit_api_key" yaml:"livekit_api_key"`
	LiveKitAPISecret    string        `mapstructure:"livekit_api_secret" yaml:"livekit_api_secret"`
	LiveStreamsCacheTTL time.Duration `mapstructure:"live_streams_cache_ttl" yaml:"live_streams_cache_ttl"`

	UploadDir        string `mapstructure:"upload_dir" yaml:"upload_dir"`
	FFmpegPath       string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	TranscodeWorkers int    `mapstructure:"transcode_workers" yaml:"transcode_workers"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":4000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   64 << 10,
		CORSOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},

		DBDriver: "sqlite",
		DBPath:   "livestream.db",

		JWTSecret:     "change-me",
		JWTIssuer:     "livestream-server",
		JWTAudience:   "livestream",
		JWTTTL:        2 * time.Hour,
		AuthRateLimit: 5,

		Bus:        "memory",
		RedisAddr:  "localhost:6379",
		NATSURL:    "nats://localhost:4222",
		BusChannel: "livestream.rooms",

		MediaProvider:       "srs",
		SRSAPIURL:           "http://localhost:1985",
		SRSPublicHost:       "localhost",
		SRSApp:              "live",
		LiveStreamsCacheTTL: 2 * time.Second,

		UploadDir:        "uploads",
		FFmpegPath:       "ffmpeg",
		TranscodeWorkers: 2,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the keys exposed as command line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
}
