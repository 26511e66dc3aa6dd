package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// DefaultMarketTTL is used when NewMarketCache is given a non-positive TTL.
const DefaultMarketTTL = 10 * time.Minute

// MarketCache implements domain.MarketCache so that instances behind a load
// balancer share one view of each venue's catalog.
//
// Key schema:
//
//	markets:{venue} - hash with fields "symbols" (JSON array) and
//	                  "precision" (JSON object of currency -> places)
type MarketCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{rdb: c.Underlying(), prefix: c.prefix, ttl: ttl}
}

func marketsKey(venueID string) string { return "markets:" + venueID }

// Set stores a venue catalog with the configured TTL.
func (mc *MarketCache) Set(ctx context.Context, venueID string, m domain.VenueMarkets) error {
	symbols, err := json.Marshal(m.Symbols)
	if err != nil {
		return fmt.Errorf("redis: marshal symbols %s: %w", venueID, err)
	}
	precision, err := json.Marshal(m.Precision)
	if err != nil {
		return fmt.Errorf("redis: marshal precision %s: %w", venueID, err)
	}

	key := withPrefix(mc.prefix, marketsKey(venueID))

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "symbols", symbols, "precision", precision)
	pipe.Expire(ctx, key, mc.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set markets %s: %w", venueID, err)
	}
	return nil
}

// Get returns a venue catalog. It returns domain.ErrNotFound when the key
// does not exist.
func (mc *MarketCache) Get(ctx context.Context, venueID string) (domain.VenueMarkets, error) {
	vals, err := mc.rdb.HMGet(ctx, withPrefix(mc.prefix, marketsKey(venueID)), "symbols", "precision").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VenueMarkets{}, domain.ErrNotFound
		}
		return domain.VenueMarkets{}, fmt.Errorf("redis: get markets %s: %w", venueID, err)
	}

	symbols, ok1 := vals[0].(string)
	precision, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return domain.VenueMarkets{}, domain.ErrNotFound
	}

	var m domain.VenueMarkets
	if err := json.Unmarshal([]byte(symbols), &m.Symbols); err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("redis: unmarshal symbols %s: %w", venueID, err)
	}
	if err := json.Unmarshal([]byte(precision), &m.Precision); err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("redis: unmarshal precision %s: %w", venueID, err)
	}
	return m, nil
}

// Invalidate removes a venue catalog from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, venueID string) error {
	if err := mc.rdb.Del(ctx, withPrefix(mc.prefix, marketsKey(venueID))).Err(); err != nil {
		return fmt.Errorf("redis: invalidate markets %s: %w", venueID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
