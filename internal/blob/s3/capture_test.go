package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

type staticFetcher []domain.OrderBook

func (f staticFetcher) FetchOrderBooks(context.Context, []domain.Symbol) ([]domain.OrderBook, error) {
	return f, nil
}

type staticCatalog map[string]domain.VenueMarkets

func (c staticCatalog) VenueIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c staticCatalog) Markets(id string) (domain.VenueMarkets, error) {
	m, ok := c[id]
	if !ok {
		return domain.VenueMarkets{}, domain.ErrNotFound
	}
	return m, nil
}

type memWriter struct {
	objects   map[string][]byte
	multipart int
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	w.multipart++
	return w.Put(ctx, path, data, "")
}

func TestCaptureWritesReplayableLayout(t *testing.T) {
	level := domain.PriceLevel{Price: decimal.RequireFromString("5.3168"), Quantity: decimal.RequireFromString("10.0005")}
	books := staticFetcher{
		{VenueID: "bitso", Symbol: "USD/BRL", Asks: []domain.PriceLevel{level}},
		{VenueID: "buda", Symbol: "BRL/USD", Bids: []domain.PriceLevel{level}},
	}
	catalog := staticCatalog{
		"bitso":   {Symbols: []domain.Symbol{"USD/BRL"}, Precision: map[string]int32{"USD": 2, "BRL": 2, "MXN": 2}},
		"buda":    {Symbols: []domain.Symbol{"BRL/USD"}, Precision: map[string]int32{"USD": 4, "BRL": 4}},
		"binance": {Symbols: []domain.Symbol{"BTC/USDT"}},
	}
	w := &memWriter{objects: make(map[string][]byte)}

	c := NewCapturer(books, catalog, w, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := c.Capture(context.Background(), "captures/2026-03-01/", []domain.Symbol{"USD/BRL"})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if n != 2 {
		t.Fatalf("wrote %d books, want 2", n)
	}

	wantPaths := []string{
		"captures/2026-03-01/bitso/markets.json",
		"captures/2026-03-01/bitso/books/USD-BRL.json",
		"captures/2026-03-01/buda/markets.json",
		"captures/2026-03-01/buda/books/BRL-USD.json",
	}
	if len(w.objects) != len(wantPaths) {
		t.Fatalf("objects = %d, want %d", len(w.objects), len(wantPaths))
	}
	for _, p := range wantPaths {
		if _, ok := w.objects[p]; !ok {
			t.Errorf("missing object %s", p)
		}
	}

	var markets domain.MarketsSnapshot
	if err := json.Unmarshal(w.objects["captures/2026-03-01/bitso/markets.json"], &markets); err != nil {
		t.Fatalf("decode markets: %v", err)
	}
	if len(markets.Symbols) != 1 || markets.Symbols[0] != "USD/BRL" {
		t.Fatalf("symbols = %v", markets.Symbols)
	}
	if _, ok := markets.Precision["MXN"]; ok || markets.Precision["USD"] != 2 {
		t.Fatalf("precision = %v", markets.Precision)
	}

	var book domain.BookSnapshot
	if err := json.Unmarshal(w.objects["captures/2026-03-01/bitso/books/USD-BRL.json"], &book); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	if len(book.Asks) != 1 || book.Asks[0] != [2]string{"5.3168", "10.0005"} {
		t.Fatalf("asks = %v", book.Asks)
	}
	if book.CapturedAt.IsZero() {
		t.Fatal("captured_at not set")
	}
	if w.multipart != 0 {
		t.Fatalf("small objects used multipart %d times", w.multipart)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"http://minio:9000", true, "http://minio:9000"},
		{"minio:9000", false, "http://minio:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
	}
	for _, tc := range tests {
		if got := normaliseEndpoint(tc.in, tc.useSSL); got != tc.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tc.in, tc.useSSL, got, tc.want)
		}
	}
}
