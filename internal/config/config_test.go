package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Venues) != 3 || cfg.Venues[0].VenueID() != "binance" {
		t.Fatalf("venues = %+v", cfg.Venues)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
mode = "oneshot"
log_level = "debug"

[[venues]]
kind = "bitso"
sandbox = true
timeout = "3s"
default_precision = 6

[[venues]]
id = "replay"
kind = "blob"
prefix = "captures/2024-05-01/buda"

[s3]
enabled = true
bucket = "books"

[fetch]
book_depth = 20
stale_after = "500ms"
stream_symbols = ["USDT/BRL"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Venues) != 2 {
		t.Fatalf("venues = %+v, want the file's list only", cfg.Venues)
	}
	if v := cfg.Venues[0]; v.VenueID() != "bitso" || !v.Sandbox || v.Timeout.Duration != 3*time.Second || v.DefaultPrecision != 6 {
		t.Fatalf("bitso venue = %+v", v)
	}
	if cfg.Venues[1].VenueID() != "replay" {
		t.Fatalf("blob venue id = %q", cfg.Venues[1].VenueID())
	}
	if cfg.Fetch.BookDepth != 20 || cfg.Fetch.StaleAfter.Duration != 500*time.Millisecond {
		t.Fatalf("fetch = %+v", cfg.Fetch)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Port != 3000 || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("defaults lost: port=%d redis=%q", cfg.Server.Port, cfg.Redis.Addr)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "server" {
		t.Fatalf("mode = %q", cfg.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBSUGGEST_VENUES", "buda, Binance")
	t.Setenv("ARBSUGGEST_SANDBOX", "true")
	t.Setenv("ARBSUGGEST_REDIS_ENABLED", "true")
	t.Setenv("ARBSUGGEST_SERVER_PORT", "8080")
	t.Setenv("ARBSUGGEST_FETCH_STALE_AFTER", "750ms")
	t.Setenv("ARBSUGGEST_CAPTURE_SYMBOLS", "BTC/CLP, USD/BRL")
	t.Setenv("ARBSUGGEST_SERVER_RATE_LIMIT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Venues) != 2 || cfg.Venues[0].Kind != "buda" || cfg.Venues[1].Kind != "binance" {
		t.Fatalf("venues = %+v", cfg.Venues)
	}
	if cfg.Venues[0].RateLimitPerSec != 5 {
		t.Fatalf("buda kept settings? %+v", cfg.Venues[0])
	}
	if !cfg.Sandbox || !cfg.Redis.Enabled || cfg.Server.Port != 8080 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Fetch.StaleAfter.Duration != 750*time.Millisecond {
		t.Fatalf("stale_after = %v", cfg.Fetch.StaleAfter)
	}
	if len(cfg.Capture.Symbols) != 2 || cfg.Capture.Symbols[1] != "USD/BRL" {
		t.Fatalf("capture symbols = %v", cfg.Capture.Symbols)
	}
	if cfg.Server.RateLimit != 120 {
		t.Fatalf("rate limit = %d, want default kept on bad input", cfg.Server.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "trade" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"no venues", func(c *Config) { c.Venues = nil }, "at least one venue"},
		{"unknown kind", func(c *Config) { c.Venues[0].Kind = "kraken" }, "unknown kind"},
		{"duplicate id", func(c *Config) { c.Venues[1].ID = "binance" }, "duplicate id"},
		{"blob without s3", func(c *Config) {
			c.Venues = append(c.Venues, VenueConfig{ID: "replay", Kind: "blob", Prefix: "x"})
		}, "requires s3.enabled"},
		{"blob without prefix", func(c *Config) {
			c.S3.Enabled = true
			c.Venues = append(c.Venues, VenueConfig{ID: "replay", Kind: "blob"})
		}, "requires a prefix"},
		{"stream on bitso", func(c *Config) { c.Venues[1].Stream = true }, "only supported for binance"},
		{"bad stream symbol", func(c *Config) { c.Fetch.StreamSymbols = []string{"BTCUSDT"} }, "fetch.stream_symbols"},
		{"capture without symbols", func(c *Config) {
			c.Mode = "capture"
			c.S3.Enabled = true
		}, "capture: symbols"},
		{"redis pool", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.PoolSize = 0
		}, "pool_size"},
		{"postgres pool", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.PoolMinConns = 9
		}, "pool_min_conns must not exceed"},
		{"server port", func(c *Config) { c.Server.Port = 70000 }, "server: port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.S3.SecretKey = "secret"
	cfg.Server.APIKey = "key"

	out := RedactedConfig(&cfg)
	if out.Postgres.DSN != redacted || out.S3.SecretKey != redacted || out.Server.APIKey != redacted {
		t.Fatalf("not redacted: %+v", out)
	}
	if out.S3.AccessKey != "" {
		t.Fatalf("empty secret became %q", out.S3.AccessKey)
	}
	if cfg.Postgres.DSN != "postgres://u:p@h/db" {
		t.Fatal("original mutated")
	}

	out.Venues[0].ID = "changed"
	if cfg.Venues[0].ID == "changed" {
		t.Fatal("venues slice shared with original")
	}
}
