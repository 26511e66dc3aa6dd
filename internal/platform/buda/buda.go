// Package buda adapts the Buda.com public REST API to domain.Venue.
package buda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/platform"
)

const (
	defaultBaseURL   = "https://www.buda.com"
	defaultPrecision = 8
)

// ErrNoSandbox is returned when a sandbox is requested. Buda does not run one.
var ErrNoSandbox = errors.New("buda: no sandbox environment")

// Client is the Buda venue.
type Client struct {
	id         string
	baseURL    string
	precision  int32
	httpClient *http.Client
}

// NewClient creates a Buda venue.
func NewClient(cfg platform.VenueConfig) (*Client, error) {
	if cfg.Sandbox {
		return nil, ErrNoSandbox
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	precision := cfg.DefaultPrecision
	if precision <= 0 {
		precision = defaultPrecision
	}
	id := cfg.ID
	if id == "" {
		id = "buda"
	}
	return &Client{
		id:         id,
		baseURL:    strings.TrimRight(base, "/"),
		precision:  precision,
		httpClient: cfg.HTTPClient(),
	}, nil
}

// ID returns the venue id.
func (c *Client) ID() string { return c.id }

// LoadMarkets lists the markets from /api/v2/markets.
func (c *Client) LoadMarkets(ctx context.Context) (domain.VenueMarkets, error) {
	var resp marketsResponse
	if err := c.get(ctx, "/api/v2/markets", &resp); err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("buda: load markets: %w", err)
	}

	symbols := make([]domain.Symbol, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		base, quote := m.BaseCurrency, m.QuoteCurrency
		if base == "" || quote == "" {
			var ok bool
			if base, quote, ok = strings.Cut(m.ID, "-"); !ok {
				continue
			}
		}
		symbols = append(symbols, domain.NewSymbol(base, quote))
	}
	return domain.VenueMarkets{
		Symbols:   symbols,
		Precision: platform.UniformPrecision(symbols, c.precision),
	}, nil
}

// FetchOrderBook returns the book for sym from /api/v2/markets/{id}/order_book.
func (c *Client) FetchOrderBook(ctx context.Context, sym domain.Symbol) (domain.OrderBook, error) {
	id := marketID(sym)

	var resp orderBookResponse
	if err := c.get(ctx, "/api/v2/markets/"+id+"/order_book", &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("buda: order book %s: %w", id, err)
	}

	asks, err := platform.ParsePairs(resp.OrderBook.Asks)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("buda: order book %s: asks: %w", id, err)
	}
	bids, err := platform.ParsePairs(resp.OrderBook.Bids)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("buda: order book %s: bids: %w", id, err)
	}
	return domain.OrderBook{
		VenueID:   c.id,
		Symbol:    sym,
		Asks:      asks,
		Bids:      bids,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	body, err := platform.Get(ctx, c.httpClient, c.baseURL+path)
	if err != nil {
		var se *platform.StatusError
		if errors.As(err, &se) {
			var apiErr apiError
			if json.Unmarshal([]byte(se.Body), &apiErr) == nil && apiErr.Message != "" {
				return fmt.Errorf("%w (%s: %s)", err, apiErr.Code, apiErr.Message)
			}
		}
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// marketID converts "BTC/CLP" to Buda's "btc-clp".
func marketID(sym domain.Symbol) string {
	return strings.ToLower(sym.Base() + "-" + sym.Quote())
}

// Compile-time interface check.
var _ domain.Venue = (*Client)(nil)
