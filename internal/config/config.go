// Package config defines the top-level configuration for arbsuggest and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSUGGEST_* environment variables.
type Config struct {
	Venues   []VenueConfig  `toml:"venues"`
	Sandbox  bool           `toml:"sandbox"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Fetch    FetchConfig    `toml:"fetch"`
	Capture  CaptureConfig  `toml:"capture"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// VenueConfig describes one liquidity source. Kind selects the adapter; ID
// defaults to Kind and must be unique.
type VenueConfig struct {
	ID      string   `toml:"id"`
	Kind    string   `toml:"kind"`
	BaseURL string   `toml:"base_url"`
	WSURL   string   `toml:"ws_url"`
	Stream  bool     `toml:"stream"`
	Sandbox bool     `toml:"sandbox"`
	Timeout duration `toml:"timeout"`
	// Prefix is where a blob venue's snapshot lives in the bucket.
	Prefix string `toml:"prefix"`
	// RateLimitPerSec caps venue requests across every instance sharing
	// Redis. Zero disables limiting for the venue.
	RateLimitPerSec  int   `toml:"rate_limit_per_sec"`
	DefaultPrecision int32 `toml:"default_precision"`
}

// VenueID returns the configured id, falling back to the kind.
func (v VenueConfig) VenueID() string {
	if v.ID != "" {
		return v.ID
	}
	return v.Kind
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds the connection to the precision override store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FetchConfig tunes how order books and markets are obtained.
type FetchConfig struct {
	BookDepth int `toml:"book_depth"`
	// CacheTTL is how long a fetched book stays in Redis.
	CacheTTL duration `toml:"cache_ttl"`
	// StaleAfter is the age past which a cached or streamed book is refetched.
	StaleAfter     duration `toml:"stale_after"`
	MarketTTL      duration `toml:"market_ttl"`
	ReloadInterval duration `toml:"reload_interval"`
	ReloadLockTTL  duration `toml:"reload_lock_ttl"`
	// StreamSymbols are kept live over the websocket of venues with stream
	// enabled.
	StreamSymbols []string `toml:"stream_symbols"`
}

// CaptureConfig selects what capture mode writes to S3.
type CaptureConfig struct {
	Prefix  string   `toml:"prefix"`
	Symbols []string `toml:"symbols"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required in the X-API-Key header.
	APIKey         string `toml:"api_key"`
	BodyLimitBytes int64  `toml:"body_limit_bytes"`
	// RateLimit is the number of requests a client may make per minute.
	// Enforced only when Redis is enabled; zero disables it.
	RateLimit       int      `toml:"rate_limit"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venues: []VenueConfig{
			{Kind: "binance", Timeout: duration{10 * time.Second}, RateLimitPerSec: 10},
			{Kind: "bitso", Timeout: duration{10 * time.Second}, RateLimitPerSec: 5, DefaultPrecision: 8},
			{Kind: "buda", Timeout: duration{10 * time.Second}, RateLimitPerSec: 5, DefaultPrecision: 8},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "arbsuggest",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbsuggest-snapshots",
			ForcePathStyle: true,
		},
		Fetch: FetchConfig{
			BookDepth:      100,
			CacheTTL:       duration{2 * time.Second},
			StaleAfter:     duration{2 * time.Second},
			MarketTTL:      duration{10 * time.Minute},
			ReloadInterval: duration{time.Hour},
			ReloadLockTTL:  duration{time.Minute},
		},
		Capture: CaptureConfig{
			Prefix: "captures",
		},
		Server: ServerConfig{
			Port:            3000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			BodyLimitBytes:  100 << 10,
			RateLimit:       120,
			ShutdownTimeout: duration{10 * time.Second},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"oneshot": true,
	"capture": true,
}

// validKinds enumerates the venue adapters.
var validKinds = map[string]bool{
	"binance": true,
	"bitso":   true,
	"buda":    true,
	"blob":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, oneshot, capture)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venues
	if len(c.Venues) == 0 {
		errs = append(errs, "venues: at least one venue must be configured")
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if !validKinds[v.Kind] {
			errs = append(errs, fmt.Sprintf("venues[%d]: unknown kind %q (valid: binance, bitso, buda, blob)", i, v.Kind))
		}
		id := v.VenueID()
		if id != "" && seen[id] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate id %q", i, id))
		}
		seen[id] = true
		if v.RateLimitPerSec < 0 {
			errs = append(errs, fmt.Sprintf("venues[%d]: rate_limit_per_sec must be >= 0", i))
		}
		if v.DefaultPrecision < 0 {
			errs = append(errs, fmt.Sprintf("venues[%d]: default_precision must be >= 0", i))
		}
		if v.Kind == "blob" {
			if !c.S3.Enabled {
				errs = append(errs, fmt.Sprintf("venues[%d]: blob venue %q requires s3.enabled", i, id))
			}
			if strings.Trim(v.Prefix, "/") == "" {
				errs = append(errs, fmt.Sprintf("venues[%d]: blob venue %q requires a prefix", i, id))
			}
		}
		if v.Stream && v.Kind != "binance" {
			errs = append(errs, fmt.Sprintf("venues[%d]: stream is only supported for binance", i))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Fetch
	if c.Fetch.BookDepth < 1 {
		errs = append(errs, "fetch: book_depth must be >= 1")
	}
	if c.Fetch.CacheTTL.Duration < 0 || c.Fetch.StaleAfter.Duration < 0 {
		errs = append(errs, "fetch: cache_ttl and stale_after must not be negative")
	}
	if c.Fetch.ReloadInterval.Duration < 0 {
		errs = append(errs, "fetch: reload_interval must not be negative")
	}
	errs = append(errs, symbolErrors("fetch.stream_symbols", c.Fetch.StreamSymbols)...)

	// Capture
	if mode == "capture" {
		if !c.S3.Enabled {
			errs = append(errs, "capture: mode capture requires s3.enabled")
		}
		if len(c.Capture.Symbols) == 0 {
			errs = append(errs, "capture: symbols must not be empty")
		}
	}
	errs = append(errs, symbolErrors("capture.symbols", c.Capture.Symbols)...)

	// Server
	if mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.BodyLimitBytes <= 0 {
			errs = append(errs, "server: body_limit_bytes must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func symbolErrors(field string, symbols []string) []string {
	var errs []string
	for _, s := range symbols {
		if _, err := domain.ParseSymbol(s); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", field, err))
		}
	}
	return errs
}
