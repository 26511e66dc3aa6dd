package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/server/handler"
	"github.com/alanyoungcy/arbsuggest/internal/server/middleware"
)

type stubEngine struct{}

func (stubEngine) Execute(_ context.Context, reqs []domain.ArbitrageRequest) ([]domain.Suggestion, error) {
	return []domain.Suggestion{{VenueID: "buda", Currency: reqs[0].Symbol.Base(), Amount: decimal.RequireFromString("1.5")}}, nil
}

type stubCatalog struct{}

func (stubCatalog) VenueIDs() []string { return []string{"buda"} }

func (stubCatalog) Markets(string) (domain.VenueMarkets, error) {
	return domain.VenueMarkets{Symbols: []domain.Symbol{"USD/BRL"}}, nil
}

func newTestHandler(apiKey string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(Config{APIKey: apiKey}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Arbitrage: handler.NewArbitrageHandler(stubEngine{}, 1<<10, logger),
		Exchanges: handler.NewExchangeHandler(stubCatalog{}, logger),
	}, nil, logger)
}

func TestRoutes(t *testing.T) {
	h := newTestHandler("")

	tests := []struct {
		method, path, body string
		code               int
		want               string
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/api/exchanges", "", http.StatusOK, `["buda"]`},
		{http.MethodGet, "/api/exchanges/buda/markets", "", http.StatusOK, `["USD/BRL"]`},
		{http.MethodPost, "/api/arbitrage", `[{"symbol":"usd/brl","value":2}]`, http.StatusOK, `"currency":"USD","amount":1.5`},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound, "resource/not-found"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s %s: status %d body %s, want %d containing %s", tt.method, tt.path, rec.Code, rec.Body, tt.code, tt.want)
		}
		if rec.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s %s: missing request id", tt.method, tt.path)
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s %s: missing security headers", tt.method, tt.path)
		}
	}
}

func TestAuthLeavesHealthOpen(t *testing.T) {
	h := newTestHandler("secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exchanges", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("exchanges status = %d, want 401", rec.Code)
	}
}
