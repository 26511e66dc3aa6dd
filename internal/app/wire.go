package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/arbsuggest/internal/blob/s3"
	"github.com/alanyoungcy/arbsuggest/internal/cache/redis"
	"github.com/alanyoungcy/arbsuggest/internal/config"
	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/platform"
	"github.com/alanyoungcy/arbsuggest/internal/platform/binance"
	"github.com/alanyoungcy/arbsuggest/internal/platform/bitso"
	"github.com/alanyoungcy/arbsuggest/internal/platform/blob"
	"github.com/alanyoungcy/arbsuggest/internal/platform/buda"
	"github.com/alanyoungcy/arbsuggest/internal/server/handler"
	"github.com/alanyoungcy/arbsuggest/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional backends that are not configured stay nil.
type Dependencies struct {
	// Caches
	BookCache   domain.OrderbookCache
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Stores
	PrecisionStore domain.CurrencyPrecisionStore

	// Blob storage
	BlobReader domain.BlobReader
	BlobWriter domain.BlobWriter

	// Venues in configured order, and the Binance depth streams to run.
	Venues  []domain.Venue
	Streams []StreamedVenue

	// Health lists the backends reported by /api/health.
	Health map[string]handler.Pinger
}

// StreamedVenue pairs a Binance client with the depth stream it reads.
type StreamedVenue struct {
	Client *binance.Client
	Stream *binance.Stream
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Health: make(map[string]handler.Pinger)}

	// --- PostgreSQL precision overrides ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
			AppName:  "arbsuggest",
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.PrecisionStore = postgres.NewCurrencyStore(pgClient.Pool())
		deps.Health["postgres"] = pgClient
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BookCache = redis.NewOrderbookCache(redisClient, cfg.Fetch.CacheTTL.Duration)
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Fetch.MarketTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Health["redis"] = redisClient
	}

	// --- S3 snapshot storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Health["s3"] = s3Client
	}

	// --- Venues ---
	venues, streams, err := buildVenues(cfg, deps.BlobReader, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: venues: %w", err)
	}
	deps.Venues = venues
	deps.Streams = streams

	return deps, cleanup, nil
}

// buildVenues creates the adapters in configured order. A venue without a
// sandbox is run against production with a warning when sandbox mode is on.
func buildVenues(cfg *config.Config, reader domain.BlobReader, logger *slog.Logger) ([]domain.Venue, []StreamedVenue, error) {
	venues := make([]domain.Venue, 0, len(cfg.Venues))
	var streams []StreamedVenue

	for _, vc := range cfg.Venues {
		pc := platform.VenueConfig{
			ID:               vc.VenueID(),
			BaseURL:          vc.BaseURL,
			Sandbox:          vc.Sandbox || cfg.Sandbox,
			Timeout:          vc.Timeout.Duration,
			Depth:            cfg.Fetch.BookDepth,
			DefaultPrecision: vc.DefaultPrecision,
		}

		switch vc.Kind {
		case "binance":
			var stream *binance.Stream
			if vc.Stream {
				stream = binance.NewStream(vc.WSURL, pc.Sandbox, cfg.Fetch.StaleAfter.Duration, logger)
			}
			client := binance.NewClient(pc, stream)
			venues = append(venues, client)
			if stream != nil {
				streams = append(streams, StreamedVenue{Client: client, Stream: stream})
			}

		case "bitso":
			venues = append(venues, bitso.NewClient(pc))

		case "buda":
			client, err := buda.NewClient(pc)
			if errors.Is(err, buda.ErrNoSandbox) {
				logger.Warn("wire: venue has no sandbox, using production",
					slog.String("venue", pc.ID),
				)
				pc.Sandbox = false
				client, err = buda.NewClient(pc)
			}
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", pc.ID, err)
			}
			venues = append(venues, client)

		case "blob":
			if reader == nil {
				return nil, nil, fmt.Errorf("%s: blob venue needs s3 storage", pc.ID)
			}
			venues = append(venues, blob.NewVenue(pc, reader, vc.Prefix))

		default:
			return nil, nil, fmt.Errorf("%s: unknown venue kind %q", pc.ID, vc.Kind)
		}

		logger.Info("wire: venue configured",
			slog.String("venue", pc.ID),
			slog.String("kind", vc.Kind),
			slog.Bool("sandbox", pc.Sandbox),
		)
	}
	return venues, streams, nil
}
