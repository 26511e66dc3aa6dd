// Package bitso adapts the Bitso public REST API to domain.Venue.
package bitso

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/platform"
)

const (
	defaultBaseURL = "https://api.bitso.com"
	sandboxBaseURL = "https://api-stage.bitso.com"
	// defaultPrecision applies when the venue config leaves it unset. Bitso
	// does not publish per-currency decimals.
	defaultPrecision = 8
)

// Client is the Bitso venue.
type Client struct {
	id         string
	baseURL    string
	precision  int32
	httpClient *http.Client
}

// NewClient creates a Bitso venue.
func NewClient(cfg platform.VenueConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
		if cfg.Sandbox {
			base = sandboxBaseURL
		}
	}
	precision := cfg.DefaultPrecision
	if precision <= 0 {
		precision = defaultPrecision
	}
	id := cfg.ID
	if id == "" {
		id = "bitso"
	}
	return &Client{
		id:         id,
		baseURL:    strings.TrimRight(base, "/"),
		precision:  precision,
		httpClient: cfg.HTTPClient(),
	}
}

// ID returns the venue id.
func (c *Client) ID() string { return c.id }

// LoadMarkets lists the books from /v3/available_books/.
func (c *Client) LoadMarkets(ctx context.Context) (domain.VenueMarkets, error) {
	var books []availableBook
	if err := c.get(ctx, "/v3/available_books/", nil, &books); err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("bitso: load markets: %w", err)
	}

	symbols := make([]domain.Symbol, 0, len(books))
	for _, b := range books {
		sym, ok := fromBookName(b.Book)
		if !ok {
			continue
		}
		symbols = append(symbols, sym)
	}
	return domain.VenueMarkets{
		Symbols:   symbols,
		Precision: platform.UniformPrecision(symbols, c.precision),
	}, nil
}

// FetchOrderBook returns the aggregated book for sym from /v3/order_book/.
func (c *Client) FetchOrderBook(ctx context.Context, sym domain.Symbol) (domain.OrderBook, error) {
	name := bookName(sym)
	params := url.Values{}
	params.Set("book", name)
	params.Set("aggregate", "true")

	var payload orderBookPayload
	if err := c.get(ctx, "/v3/order_book/", params, &payload); err != nil {
		return domain.OrderBook{}, fmt.Errorf("bitso: order book %s: %w", name, err)
	}

	asks, err := parseLevels(payload.Asks)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("bitso: order book %s: asks: %w", name, err)
	}
	bids, err := parseLevels(payload.Bids)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("bitso: order book %s: bids: %w", name, err)
	}
	return domain.OrderBook{
		VenueID:   c.id,
		Symbol:    sym,
		Asks:      asks,
		Bids:      bids,
		Timestamp: time.Now().UTC(),
	}, nil
}

// get decodes the payload of a Bitso envelope into out. An unsuccessful
// envelope is reported with the venue's error code and message.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := platform.Get(ctx, c.httpClient, u)
	if err != nil {
		var se *platform.StatusError
		if errors.As(err, &se) {
			var env envelope
			if json.Unmarshal([]byte(se.Body), &env) == nil && env.Error != nil {
				return fmt.Errorf("%w (code %s: %s)", err, env.Error.Code, env.Error.Message)
			}
		}
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("code %s: %s", env.Error.Code, env.Error.Message)
		}
		return errors.New("unsuccessful response")
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func parseLevels(rows []level) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(rows))
	for i, r := range rows {
		lvl, err := platform.ParseLevel(r.Price, r.Amount)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		out = append(out, lvl)
	}
	return out, nil
}

// bookName converts "BTC/MXN" to Bitso's "btc_mxn".
func bookName(sym domain.Symbol) string {
	return strings.ToLower(sym.Base() + "_" + sym.Quote())
}

func fromBookName(name string) (domain.Symbol, bool) {
	base, quote, ok := strings.Cut(name, "_")
	if !ok || base == "" || quote == "" {
		return "", false
	}
	return domain.NewSymbol(base, quote), true
}

// Compile-time interface check.
var _ domain.Venue = (*Client)(nil)
