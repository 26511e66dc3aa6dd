package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBSUGGEST_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// A file that lists venues replaces the default list rather than
		// merging into it.
		cfg.Venues = nil
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
		if len(cfg.Venues) == 0 {
			cfg.Venues = Defaults().Venues
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSUGGEST_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	setVenues(&cfg.Venues, "ARBSUGGEST_VENUES")
	setBool(&cfg.Sandbox, "ARBSUGGEST_SANDBOX")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBSUGGEST_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBSUGGEST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSUGGEST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSUGGEST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSUGGEST_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSUGGEST_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSUGGEST_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "ARBSUGGEST_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBSUGGEST_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBSUGGEST_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform convention
	setStr(&cfg.Postgres.Host, "ARBSUGGEST_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSUGGEST_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSUGGEST_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSUGGEST_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSUGGEST_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSUGGEST_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBSUGGEST_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBSUGGEST_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBSUGGEST_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBSUGGEST_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBSUGGEST_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSUGGEST_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSUGGEST_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSUGGEST_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSUGGEST_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBSUGGEST_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSUGGEST_S3_FORCE_PATH_STYLE")

	// ── Fetch ──
	setInt(&cfg.Fetch.BookDepth, "ARBSUGGEST_FETCH_BOOK_DEPTH")
	setDuration(&cfg.Fetch.CacheTTL, "ARBSUGGEST_FETCH_CACHE_TTL")
	setDuration(&cfg.Fetch.StaleAfter, "ARBSUGGEST_FETCH_STALE_AFTER")
	setDuration(&cfg.Fetch.MarketTTL, "ARBSUGGEST_FETCH_MARKET_TTL")
	setDuration(&cfg.Fetch.ReloadInterval, "ARBSUGGEST_FETCH_RELOAD_INTERVAL")
	setStringSlice(&cfg.Fetch.StreamSymbols, "ARBSUGGEST_FETCH_STREAM_SYMBOLS")

	// ── Capture ──
	setStr(&cfg.Capture.Prefix, "ARBSUGGEST_CAPTURE_PREFIX")
	setStringSlice(&cfg.Capture.Symbols, "ARBSUGGEST_CAPTURE_SYMBOLS")

	// ── Server ──
	setInt(&cfg.Server.Port, "ARBSUGGEST_SERVER_PORT")
	setInt(&cfg.Server.Port, "HTTP_PORT") // compatibility alias
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSUGGEST_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBSUGGEST_SERVER_API_KEY")
	setInt64(&cfg.Server.BodyLimitBytes, "ARBSUGGEST_SERVER_BODY_LIMIT_BYTES")
	setInt(&cfg.Server.RateLimit, "ARBSUGGEST_SERVER_RATE_LIMIT")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBSUGGEST_MODE")
	setStr(&cfg.LogLevel, "ARBSUGGEST_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setVenues keeps only the venues whose id is listed, in the listed order.
// Listed kinds that are not configured are added with default settings.
func setVenues(dst *[]VenueConfig, key string) {
	var ids []string
	setStringSlice(&ids, key)
	if len(ids) == 0 {
		return
	}

	byID := make(map[string]VenueConfig, len(*dst))
	for _, v := range *dst {
		byID[v.VenueID()] = v
	}
	out := make([]VenueConfig, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(id)
		v, ok := byID[id]
		if !ok {
			v = VenueConfig{Kind: id, Timeout: duration{10 * time.Second}}
		}
		out = append(out, v)
	}
	*dst = out
}
