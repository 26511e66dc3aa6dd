package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/arbsuggest/internal/blob/s3"
	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/server"
	"github.com/alanyoungcy/arbsuggest/internal/server/handler"
	"github.com/alanyoungcy/arbsuggest/internal/server/ws"
	"github.com/alanyoungcy/arbsuggest/internal/service"
)

// captureStampLayout names each capture run under the configured prefix.
const captureStampLayout = "20060102T150405Z"

// services holds what every mode builds on top of the wired dependencies.
type services struct {
	exchange  *service.ExchangeService
	arbitrage *service.ArbitrageService
}

// newServices constructs the exchange and arbitrage services and loads the
// venue catalogs once.
func (a *App) newServices(ctx context.Context, deps *Dependencies) (*services, error) {
	rateLimits := make(map[string]int, len(a.cfg.Venues))
	for _, vc := range a.cfg.Venues {
		if vc.RateLimitPerSec > 0 {
			rateLimits[vc.VenueID()] = vc.RateLimitPerSec
		}
	}

	exchange := service.NewExchangeService(
		deps.Venues,
		deps.BookCache,
		deps.MarketCache,
		deps.RateLimiter,
		deps.LockManager,
		deps.PrecisionStore,
		deps.SignalBus,
		service.ExchangeConfig{
			RateLimits:    rateLimits,
			StaleAfter:    a.cfg.Fetch.StaleAfter.Duration,
			ReloadLockTTL: a.cfg.Fetch.ReloadLockTTL.Duration,
		},
		a.logger,
	)
	if err := exchange.LoadMarkets(ctx, false); err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}

	return &services{
		exchange:  exchange,
		arbitrage: service.NewArbitrageService(exchange, exchange, a.logger),
	}, nil
}

// ServerMode serves the HTTP API. Alongside it run the periodic catalog
// reload, the reload watcher, the event relay and any Binance depth
// streams. It blocks until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	svcs, err := a.newServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Health, a.logger),
		Arbitrage: handler.NewArbitrageHandler(svcs.arbitrage, a.cfg.Server.BodyLimitBytes, a.logger),
		Exchanges: handler.NewExchangeHandler(svcs.exchange, a.logger),
	}

	if deps.SignalBus != nil {
		hub := ws.NewHub(deps.SignalBus, []string{domain.MarketsReloadedChannel}, svcs.exchange.VenueIDs, a.logger)
		handlers.Events = hub
		g.Go(func() error {
			return hub.Run(ctx)
		})

		g.Go(func() error {
			if err := svcs.exchange.WatchReloads(ctx); err != nil {
				a.logger.WarnContext(ctx, "server mode: reload watcher stopped",
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	if interval := a.cfg.Fetch.ReloadInterval.Duration; interval > 0 {
		g.Go(func() error {
			a.reloadLoop(ctx, svcs.exchange, interval)
			return nil
		})
	}

	for _, sv := range deps.Streams {
		symbols := a.streamSymbols(svcs.exchange, sv)
		a.logger.InfoContext(ctx, "server mode: starting depth stream",
			slog.String("venue", sv.Client.ID()),
			slog.Int("symbols", len(symbols)),
		)
		g.Go(func() error {
			return sv.Stream.Run(ctx, symbols)
		})
	}

	a.startHTTPServer(ctx, g, handlers, deps.RateLimiter)

	return g.Wait()
}

// reloadLoop reloads every venue catalog each interval until ctx ends.
func (a *App) reloadLoop(ctx context.Context, exchange *service.ExchangeService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := exchange.LoadMarkets(ctx, true); err != nil && ctx.Err() == nil {
				a.logger.WarnContext(ctx, "server mode: market reload failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// streamSymbols returns the venue's names for the configured stream symbols
// that it trades, in either orientation.
func (a *App) streamSymbols(exchange *service.ExchangeService, sv StreamedVenue) []string {
	markets, err := exchange.Markets(sv.Client.ID())
	if err != nil {
		a.logger.Warn("server mode: depth stream has no catalog",
			slog.String("venue", sv.Client.ID()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	var names []string
	for _, raw := range a.cfg.Fetch.StreamSymbols {
		sym, err := domain.ParseSymbol(raw)
		if err != nil {
			continue
		}
		for _, s := range []domain.Symbol{sym, sym.Reverse()} {
			if markets.HasSymbol(s) {
				names = append(names, sv.Client.ExchangeSymbol(s))
			}
		}
	}
	return names
}

// startHTTPServer adds the HTTP server goroutine to the given errgroup. The
// server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, handlers server.Handlers, limiter domain.RateLimiter) {
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, limiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// OneshotMode reads one JSON request array, prints the suggestions as JSON
// and returns.
func (a *App) OneshotMode(ctx context.Context, deps *Dependencies) error {
	requests, err := readRequests(a.in)
	if err != nil {
		return fmt.Errorf("oneshot mode: %w", err)
	}

	svcs, err := a.newServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("oneshot mode: %w", err)
	}

	suggestions, err := svcs.arbitrage.Execute(ctx, requests)
	if err != nil {
		return fmt.Errorf("oneshot mode: %w", err)
	}
	if err := writeSuggestions(a.out, suggestions); err != nil {
		return fmt.Errorf("oneshot mode: %w", err)
	}

	a.logger.InfoContext(ctx, "oneshot mode: done",
		slog.Int("requests", len(requests)),
		slog.Int("suggestions", len(suggestions)),
	)
	return nil
}

// CaptureMode uploads the current books for the configured symbols to S3
// under a timestamped prefix and returns.
func (a *App) CaptureMode(ctx context.Context, deps *Dependencies) error {
	if deps.BlobWriter == nil {
		return errors.New("capture mode: s3 storage is not enabled")
	}

	svcs, err := a.newServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("capture mode: %w", err)
	}

	symbols := make([]domain.Symbol, 0, len(a.cfg.Capture.Symbols))
	for _, raw := range a.cfg.Capture.Symbols {
		sym, err := domain.ParseSymbol(raw)
		if err != nil {
			return fmt.Errorf("capture mode: %w", err)
		}
		symbols = append(symbols, sym)
	}

	prefix := captureRunPrefix(a.cfg.Capture.Prefix, time.Now())
	capturer := s3blob.NewCapturer(svcs.exchange, svcs.exchange, deps.BlobWriter, a.logger)
	n, err := capturer.Capture(ctx, prefix, symbols)
	if err != nil {
		return fmt.Errorf("capture mode: %w", err)
	}

	a.logger.InfoContext(ctx, "capture mode: done",
		slog.String("prefix", prefix),
		slog.Int("books", n),
	)
	return nil
}

func captureRunPrefix(base string, at time.Time) string {
	stamp := at.UTC().Format(captureStampLayout)
	if base == "" {
		return stamp
	}
	return base + "/" + stamp
}

// oneshotRequest is one element of the oneshot input array.
type oneshotRequest struct {
	Symbol string          `json:"symbol"`
	Value  decimal.Decimal `json:"value"`
}

// oneshotSuggestion is one element of the oneshot output array.
type oneshotSuggestion struct {
	Exchange string      `json:"exchange"`
	Currency string      `json:"currency"`
	Amount   json.Number `json:"amount"`
}

// readRequests decodes a JSON array of {"symbol","value"} objects.
// Validation beyond the shape is left to the arbitrage service.
func readRequests(r io.Reader) ([]domain.ArbitrageRequest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var raw []oneshotRequest
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}

	requests := make([]domain.ArbitrageRequest, 0, len(raw))
	for i, req := range raw {
		sym, err := domain.ParseSymbol(req.Symbol)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		requests = append(requests, domain.ArbitrageRequest{Symbol: sym, Amount: req.Value})
	}
	return requests, nil
}

func writeSuggestions(w io.Writer, suggestions []domain.Suggestion) error {
	out := make([]oneshotSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, oneshotSuggestion{
			Exchange: s.VenueID,
			Currency: s.Currency,
			Amount:   json.Number(s.Amount.String()),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}
	return nil
}
