// Package binance adapts the Binance spot REST API and partial book depth
// stream to domain.Venue.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/platform"
)

const (
	defaultBaseURL = "https://api.binance.com"
	sandboxBaseURL = "https://testnet.binance.vision"
	defaultDepth   = 100
	// maxDepth is the largest limit /api/v3/depth accepts.
	maxDepth = 5000
)

// Client is the Binance venue.
type Client struct {
	id         string
	baseURL    string
	depth      int
	httpClient *http.Client
	stream     *Stream

	mu       sync.RWMutex
	exchange map[domain.Symbol]string
}

// NewClient creates a Binance venue. A non-nil stream is consulted before
// the REST endpoint for books it holds.
func NewClient(cfg platform.VenueConfig, stream *Stream) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
		if cfg.Sandbox {
			base = sandboxBaseURL
		}
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = defaultDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	id := cfg.ID
	if id == "" {
		id = "binance"
	}
	return &Client{
		id:         id,
		baseURL:    strings.TrimRight(base, "/"),
		depth:      depth,
		httpClient: cfg.HTTPClient(),
		stream:     stream,
		exchange:   make(map[domain.Symbol]string),
	}
}

// ID returns the venue id.
func (c *Client) ID() string { return c.id }

// LoadMarkets reads the trading pairs and asset precision from
// /api/v3/exchangeInfo. Pairs that are not trading are skipped.
func (c *Client) LoadMarkets(ctx context.Context) (domain.VenueMarkets, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("binance: load markets: %w", err)
	}

	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("binance: decode exchange info: %w", err)
	}

	markets := domain.VenueMarkets{Precision: make(map[string]int32)}
	exchange := make(map[domain.Symbol]string, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		sym := domain.NewSymbol(s.BaseAsset, s.QuoteAsset)
		markets.Symbols = append(markets.Symbols, sym)
		exchange[sym] = s.Symbol
		platform.MergePrecision(markets.Precision, sym.Base(), s.BaseAssetPrecision)
		platform.MergePrecision(markets.Precision, sym.Quote(), s.QuoteAssetPrecision)
	}

	c.mu.Lock()
	c.exchange = exchange
	c.mu.Unlock()

	return markets, nil
}

// ExchangeSymbol returns the Binance name of sym, e.g. "BTCUSDT".
func (c *Client) ExchangeSymbol(sym domain.Symbol) string {
	c.mu.RLock()
	name, ok := c.exchange[sym]
	c.mu.RUnlock()
	if ok {
		return name
	}
	return sym.Base() + sym.Quote()
}

// FetchOrderBook returns the book for sym, from the depth stream when it
// holds a fresh copy and from /api/v3/depth otherwise.
func (c *Client) FetchOrderBook(ctx context.Context, sym domain.Symbol) (domain.OrderBook, error) {
	name := c.ExchangeSymbol(sym)

	if c.stream != nil {
		book, err := c.stream.Book(name)
		if err == nil {
			book.VenueID = c.id
			book.Symbol = sym
			return book, nil
		}
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrStaleBook) {
			return domain.OrderBook{}, fmt.Errorf("binance: stream book %s: %w", name, err)
		}
	}

	params := url.Values{}
	params.Set("symbol", name)
	params.Set("limit", strconv.Itoa(c.depth))

	body, err := c.get(ctx, "/api/v3/depth", params)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: order book %s: %w", name, err)
	}

	var depth depthResponse
	if err := json.Unmarshal(body, &depth); err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: decode order book %s: %w", name, err)
	}
	book, err := toBook(depth)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: order book %s: %w", name, err)
	}
	book.VenueID = c.id
	book.Symbol = sym
	return book, nil
}

func toBook(d depthResponse) (domain.OrderBook, error) {
	asks, err := platform.ParsePairs(d.Asks)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("asks: %w", err)
	}
	bids, err := platform.ParsePairs(d.Bids)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("bids: %w", err)
	}
	return domain.OrderBook{Asks: asks, Bids: bids, Timestamp: time.Now().UTC()}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	body, err := platform.Get(ctx, c.httpClient, u)
	if err != nil {
		var se *platform.StatusError
		if errors.As(err, &se) {
			var apiErr apiError
			if json.Unmarshal([]byte(se.Body), &apiErr) == nil && apiErr.Msg != "" {
				return nil, fmt.Errorf("%w (code %d: %s)", err, apiErr.Code, apiErr.Msg)
			}
		}
		return nil, err
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.Venue = (*Client)(nil)
