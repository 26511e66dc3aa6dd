// Package platform holds the helpers shared by the venue adapters in its
// sub-packages: HTTP access, level parsing and venue settings.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// maxBodyBytes bounds how much of a venue response is read.
const maxBodyBytes = 8 << 20

// VenueConfig is what every adapter needs to reach its venue.
type VenueConfig struct {
	ID      string
	BaseURL string
	Sandbox bool
	Timeout time.Duration
	// Depth is the number of levels requested per side, when the venue
	// takes a limit.
	Depth int
	// DefaultPrecision is applied to every traded currency when the venue
	// does not report decimal places itself.
	DefaultPrecision int32
}

// HTTPClient returns a client honouring cfg.Timeout.
func (cfg VenueConfig) HTTPClient() *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// StatusError is a non-2xx venue response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Get performs a GET against url and returns the body of a 2xx response.
// 404 responses wrap domain.ErrNotFound and 429 wraps domain.ErrRateLimited.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	statusErr := &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 256)}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, errors.Join(domain.ErrNotFound, statusErr)
	case http.StatusTooManyRequests, 418:
		return nil, errors.Join(domain.ErrRateLimited, statusErr)
	default:
		return nil, statusErr
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseLevel builds a PriceLevel from the decimal strings venues send.
func ParseLevel(price, quantity string) (domain.PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("price %q: %w", price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("quantity %q: %w", quantity, err)
	}
	if q.IsNegative() {
		return domain.PriceLevel{}, fmt.Errorf("quantity %q is negative", quantity)
	}
	return domain.PriceLevel{Price: p, Quantity: q}, nil
}

// ParsePairs parses [price, quantity] rows. Extra columns are ignored.
func ParsePairs(rows [][]string) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(rows))
	for i, r := range rows {
		if len(r) < 2 {
			return nil, fmt.Errorf("level %d: want [price, quantity], got %d fields", i, len(r))
		}
		lvl, err := ParseLevel(r[0], r[1])
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		out = append(out, lvl)
	}
	return out, nil
}

// UniformPrecision gives every currency traded in symbols the same number
// of decimal places.
func UniformPrecision(symbols []domain.Symbol, places int32) map[string]int32 {
	out := make(map[string]int32, len(symbols))
	for _, s := range symbols {
		out[s.Base()] = places
		out[s.Quote()] = places
	}
	return out
}

// MergePrecision records places for currency, keeping the smaller value when
// markets disagree.
func MergePrecision(m map[string]int32, currency string, places int32) {
	if cur, ok := m[currency]; ok && cur <= places {
		return
	}
	m[currency] = places
}
