package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// DefaultBookTTL is used when NewOrderbookCache is given a non-positive TTL.
const DefaultBookTTL = 2 * time.Second

// OrderbookCache implements domain.OrderbookCache. Each book is one hash
// that expires after the configured TTL.
//
// Key schema:
//
//	book:{venue}:{BASE}-{QUOTE} - hash with fields "asks", "bids" (JSON
//	                              arrays of [price, quantity] strings) and
//	                              "ts" (unix nanoseconds)
type OrderbookCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client, ttl time.Duration) *OrderbookCache {
	if ttl <= 0 {
		ttl = DefaultBookTTL
	}
	return &OrderbookCache{rdb: c.Underlying(), prefix: c.prefix, ttl: ttl}
}

func bookKey(venueID string, sym domain.Symbol) string {
	return "book:" + venueID + ":" + strings.ReplaceAll(string(sym), "/", "-")
}

// SetBook replaces the cached book for the venue and symbol.
func (oc *OrderbookCache) SetBook(ctx context.Context, book domain.OrderBook) error {
	asks, err := encodeLevels(book.Asks)
	if err != nil {
		return fmt.Errorf("redis: encode asks %s %s: %w", book.VenueID, book.Symbol, err)
	}
	bids, err := encodeLevels(book.Bids)
	if err != nil {
		return fmt.Errorf("redis: encode bids %s %s: %w", book.VenueID, book.Symbol, err)
	}

	key := withPrefix(oc.prefix, bookKey(book.VenueID, book.Symbol))

	pipe := oc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"asks", asks,
		"bids", bids,
		"ts", strconv.FormatInt(book.Timestamp.UnixNano(), 10),
	)
	pipe.Expire(ctx, key, oc.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book %s %s: %w", book.VenueID, book.Symbol, err)
	}
	return nil
}

// GetBook returns the cached book, or domain.ErrNotFound when none is held.
func (oc *OrderbookCache) GetBook(ctx context.Context, venueID string, sym domain.Symbol) (domain.OrderBook, error) {
	key := withPrefix(oc.prefix, bookKey(venueID, sym))

	fields, err := oc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBook{}, domain.ErrNotFound
		}
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s %s: %w", venueID, sym, err)
	}
	if len(fields) == 0 {
		return domain.OrderBook{}, domain.ErrNotFound
	}

	book, err := decodeBook(fields)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: decode book %s %s: %w", venueID, sym, err)
	}
	book.VenueID = venueID
	book.Symbol = sym
	return book, nil
}

func encodeLevels(levels []domain.PriceLevel) (string, error) {
	rows := make([][2]string, 0, len(levels))
	for _, l := range levels {
		rows = append(rows, [2]string{l.Price.String(), l.Quantity.String()})
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeLevels(s string) ([]domain.PriceLevel, error) {
	if s == "" {
		return nil, nil
	}
	var rows [][2]string
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, err
	}
	out := make([]domain.PriceLevel, 0, len(rows))
	for _, r := range rows {
		price, err := decimal.NewFromString(r[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", r[0], err)
		}
		qty, err := decimal.NewFromString(r[1])
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", r[1], err)
		}
		out = append(out, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

func decodeBook(fields map[string]string) (domain.OrderBook, error) {
	asks, err := decodeLevels(fields["asks"])
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("asks: %w", err)
	}
	bids, err := decodeLevels(fields["bids"])
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("bids: %w", err)
	}
	var ts time.Time
	if raw := fields["ts"]; raw != "" {
		ns, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.OrderBook{}, fmt.Errorf("ts %q: %w", raw, err)
		}
		ts = time.Unix(0, ns).UTC()
	}
	return domain.OrderBook{Asks: asks, Bids: bids, Timestamp: ts}, nil
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)
