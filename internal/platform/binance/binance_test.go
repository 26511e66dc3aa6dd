package binance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/platform"
)

const exchangeInfoBody = `{
  "timezone": "UTC",
  "symbols": [
    {"symbol": "BTCUSDT", "status": "TRADING", "baseAsset": "BTC", "quoteAsset": "USDT", "baseAssetPrecision": 8, "quoteAssetPrecision": 8},
    {"symbol": "USDTBRL", "status": "TRADING", "baseAsset": "USDT", "quoteAsset": "BRL", "baseAssetPrecision": 6, "quoteAssetPrecision": 2},
    {"symbol": "LUNAUSDT", "status": "BREAK", "baseAsset": "LUNA", "quoteAsset": "USDT", "baseAssetPrecision": 8, "quoteAssetPrecision": 8}
  ]
}`

const depthBody = `{"lastUpdateId": 1027024, "bids": [["5.3100", "431.00000000"]], "asks": [["5.3168", "10.0005"], ["5.3299", "200.99"]]}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/exchangeInfo":
			_, _ = io.WriteString(w, exchangeInfoBody)
		case "/api/v3/depth":
			if r.URL.Query().Get("symbol") != "USDTBRL" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"code": -1121, "msg": "Invalid symbol."}`)
				return
			}
			if r.URL.Query().Get("limit") != "50" {
				t.Errorf("limit = %q, want 50", r.URL.Query().Get("limit"))
			}
			_, _ = io.WriteString(w, depthBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadMarkets(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(platform.VenueConfig{BaseURL: srv.URL, Depth: 50}, nil)

	m, err := c.LoadMarkets(context.Background())
	if err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	if len(m.Symbols) != 2 || !m.HasSymbol("USDT/BRL") || m.HasSymbol("LUNA/USDT") {
		t.Fatalf("symbols = %v", m.Symbols)
	}
	// USDT is quoted at 8 places in BTCUSDT and 6 in USDTBRL; the smaller wins.
	if m.Precision["USDT"] != 6 || m.Precision["BRL"] != 2 || m.Precision["BTC"] != 8 {
		t.Fatalf("precision = %v", m.Precision)
	}
	if got := c.ExchangeSymbol("USDT/BRL"); got != "USDTBRL" {
		t.Fatalf("ExchangeSymbol = %q", got)
	}
}

func TestFetchOrderBook(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(platform.VenueConfig{ID: "binance-br", BaseURL: srv.URL, Depth: 50}, nil)
	if _, err := c.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}

	book, err := c.FetchOrderBook(context.Background(), "USDT/BRL")
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if book.VenueID != "binance-br" || book.Symbol != "USDT/BRL" {
		t.Fatalf("book identity = %s %s", book.VenueID, book.Symbol)
	}
	if len(book.Asks) != 2 || !book.Asks[1].Quantity.Equal(decimal.RequireFromString("200.99")) {
		t.Fatalf("asks = %+v", book.Asks)
	}
	if len(book.Bids) != 1 || !book.Bids[0].Price.Equal(decimal.RequireFromString("5.31")) {
		t.Fatalf("bids = %+v", book.Bids)
	}
}

func TestFetchOrderBookAPIError(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(platform.VenueConfig{BaseURL: srv.URL, Depth: 50}, nil)

	_, err := c.FetchOrderBook(context.Background(), "DOGE/BRL")
	if err == nil || !strings.Contains(err.Error(), "Invalid symbol.") {
		t.Fatalf("err = %v, want the venue message", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(platform.VenueConfig{Sandbox: true, Depth: 100000}, nil)
	if c.ID() != "binance" || c.baseURL != sandboxBaseURL || c.depth != maxDepth {
		t.Fatalf("client = %+v", c)
	}
}

func TestStreamApplyAndStaleness(t *testing.T) {
	s := NewStream("", false, time.Second, testLogger())

	if _, err := s.Book("BTCUSDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	now := time.Now()
	msg := `{"stream":"btcusdt@depth20@100ms","data":` + depthBody + `}`
	if err := s.apply([]byte(msg), now); err != nil {
		t.Fatalf("apply: %v", err)
	}
	book, err := s.Book("BTCUSDT")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if len(book.Asks) != 2 {
		t.Fatalf("asks = %+v", book.Asks)
	}

	if err := s.apply([]byte(msg), now.Add(-time.Minute)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := s.Book("btcusdt"); !errors.Is(err, domain.ErrStaleBook) {
		t.Fatalf("err = %v, want ErrStaleBook", err)
	}

	if err := s.apply([]byte(`{"stream":"","data":{}}`), now); err == nil {
		t.Fatal("expected error for event without stream name")
	}
}

func TestStreamEndpoint(t *testing.T) {
	got := streamEndpoint("wss://example", []string{"BTCUSDT", "USDTBRL"})
	want := "wss://example/stream?streams=btcusdt@depth20@100ms/usdtbrl@depth20@100ms"
	if got != want {
		t.Fatalf("endpoint = %q, want %q", got, want)
	}
}

func TestStreamServesClient(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "usdtbrl@depth20@100ms") {
			http.Error(w, "bad streams", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"stream":"usdtbrl@depth20@100ms","data":{"lastUpdateId":1,"bids":[],"asks":[["5.0","1"]]}}`
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), false, time.Minute, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx, []string{"USDTBRL"}) }()

	// The REST endpoint is unreachable, so a book can only come from the stream.
	c := NewClient(platform.VenueConfig{BaseURL: "http://127.0.0.1:1"}, stream)

	deadline := time.Now().Add(5 * time.Second)
	for {
		book, err := c.FetchOrderBook(ctx, "USDT/BRL")
		if err == nil {
			if len(book.Asks) != 1 || book.Symbol != "USDT/BRL" {
				t.Fatalf("book = %+v", book)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no streamed book: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
