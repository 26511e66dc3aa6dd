package domain

import (
	"context"
	"time"
)

// OrderbookCache keeps recently fetched venue books for a short TTL.
type OrderbookCache interface {
	SetBook(ctx context.Context, book OrderBook) error
	GetBook(ctx context.Context, venueID string, symbol Symbol) (OrderBook, error)
}

// MarketCache shares loaded venue catalogs between instances.
type MarketCache interface {
	Set(ctx context.Context, venueID string, markets VenueMarkets) error
	Get(ctx context.Context, venueID string) (VenueMarkets, error)
	Invalidate(ctx context.Context, venueID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
