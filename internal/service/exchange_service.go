package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

const marketReloadLockKey = "markets:reload"

// ExchangeConfig holds the tunables for venue access.
type ExchangeConfig struct {
	// RateLimits caps order book requests per second, keyed by venue id.
	// Venues without an entry are not limited.
	RateLimits map[string]int
	// StaleAfter is the age past which a cached book is refetched.
	StaleAfter time.Duration
	// ReloadLockTTL bounds how long one instance may hold the reload lock.
	ReloadLockTTL time.Duration
}

// ExchangeService fronts the configured venues. It keeps the loaded market
// catalogs, assembles order book snapshots and answers precision lookups.
//
// The caches, limiter, lock manager, override store and bus are optional; a
// nil value disables that feature.
type ExchangeService struct {
	venues     []domain.Venue
	books      domain.OrderbookCache
	markets    domain.MarketCache
	limiter    domain.RateLimiter
	locks      domain.LockManager
	overrides  domain.CurrencyPrecisionStore
	bus        domain.SignalBus
	cfg        ExchangeConfig
	instanceID string
	logger     *slog.Logger

	mu      sync.RWMutex
	catalog map[string]domain.VenueMarkets
}

// NewExchangeService creates an ExchangeService. venues are kept in the
// given order, which is also the order of every snapshot it returns.
func NewExchangeService(
	venues []domain.Venue,
	books domain.OrderbookCache,
	markets domain.MarketCache,
	limiter domain.RateLimiter,
	locks domain.LockManager,
	overrides domain.CurrencyPrecisionStore,
	bus domain.SignalBus,
	cfg ExchangeConfig,
	logger *slog.Logger,
) *ExchangeService {
	if cfg.ReloadLockTTL <= 0 {
		cfg.ReloadLockTTL = time.Minute
	}
	return &ExchangeService{
		venues:     venues,
		books:      books,
		markets:    markets,
		limiter:    limiter,
		locks:      locks,
		overrides:  overrides,
		bus:        bus,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		logger:     logger,
		catalog:    make(map[string]domain.VenueMarkets),
	}
}

// VenueIDs returns the configured venue ids in configured order.
func (s *ExchangeService) VenueIDs() []string {
	ids := make([]string, 0, len(s.venues))
	for _, v := range s.venues {
		ids = append(ids, v.ID())
	}
	return ids
}

// Markets returns the loaded catalog of a venue.
func (s *ExchangeService) Markets(venueID string) (domain.VenueMarkets, error) {
	if s.venue(venueID) == nil {
		return domain.VenueMarkets{}, fmt.Errorf("exchange_service: markets %q: %w", venueID, domain.ErrUnknownVenue)
	}
	s.mu.RLock()
	m, ok := s.catalog[venueID]
	s.mu.RUnlock()
	if !ok {
		return domain.VenueMarkets{}, fmt.Errorf("exchange_service: markets %q not loaded: %w", venueID, domain.ErrNotFound)
	}
	return m, nil
}

// LoadMarkets loads every venue's catalog concurrently. Unless reload is
// set, a catalog shared through the market cache is used when present.
//
// A venue that fails to load is logged and left unavailable. An error is
// returned only when no venue could be loaded.
func (s *ExchangeService) LoadMarkets(ctx context.Context, reload bool) error {
	if reload && s.markets != nil && s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, marketReloadLockKey, s.cfg.ReloadLockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			// Another instance is refreshing the shared catalogs.
			s.logger.DebugContext(ctx, "exchange_service: reload in progress elsewhere, reading cache")
			reload = false
		case err != nil:
			return fmt.Errorf("exchange_service: acquire reload lock: %w", err)
		default:
			defer unlock()
		}
	}

	loaded := make([]domain.VenueMarkets, len(s.venues))
	errs := make([]error, len(s.venues))

	var wg sync.WaitGroup
	for i, v := range s.venues {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loaded[i], errs[i] = s.loadVenue(ctx, v, reload)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("exchange_service: load markets: %w", err)
	}

	var (
		failures []error
		ready    []string
	)
	s.mu.Lock()
	for i, v := range s.venues {
		if errs[i] != nil {
			s.logger.WarnContext(ctx, "exchange_service: venue unavailable",
				slog.String("venue", v.ID()),
				slog.String("error", errs[i].Error()),
			)
			delete(s.catalog, v.ID())
			failures = append(failures, errs[i])
			continue
		}
		s.catalog[v.ID()] = loaded[i]
		ready = append(ready, v.ID())
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "exchange_service: markets loaded",
		slog.Int("venues", len(s.venues)-len(failures)),
		slog.Int("failed", len(failures)),
	)

	if len(s.venues) > 0 && len(failures) == len(s.venues) {
		return fmt.Errorf("exchange_service: load markets: %w", errors.Join(failures...))
	}
	if reload {
		s.announceReload(ctx, ready)
	}
	return nil
}

func (s *ExchangeService) announceReload(ctx context.Context, venues []string) {
	if s.bus == nil || s.markets == nil {
		return
	}
	payload, _ := json.Marshal(domain.MarketsReloaded{
		Origin:     s.instanceID,
		Venues:     venues,
		ReloadedAt: time.Now().UTC(),
	})
	if err := s.bus.Publish(ctx, domain.MarketsReloadedChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "exchange_service: publish reload failed",
			slog.String("error", err.Error()),
		)
	}
}

// WatchReloads refreshes the local catalogs from the shared market cache
// whenever another instance announces a reload. It blocks until ctx ends.
func (s *ExchangeService) WatchReloads(ctx context.Context) error {
	if s.bus == nil || s.markets == nil {
		<-ctx.Done()
		return nil
	}
	msgs, err := s.bus.Subscribe(ctx, domain.MarketsReloadedChannel)
	if err != nil {
		return fmt.Errorf("exchange_service: watch reloads: %w", err)
	}
	for payload := range msgs {
		var evt domain.MarketsReloaded
		if err := json.Unmarshal(payload, &evt); err != nil {
			s.logger.WarnContext(ctx, "exchange_service: bad reload event",
				slog.String("error", err.Error()),
			)
			continue
		}
		if evt.Origin == s.instanceID {
			continue
		}
		if err := s.LoadMarkets(ctx, false); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "exchange_service: refresh after remote reload failed",
				slog.String("origin", evt.Origin),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *ExchangeService) loadVenue(ctx context.Context, v domain.Venue, reload bool) (domain.VenueMarkets, error) {
	if s.markets != nil && !reload {
		m, err := s.markets.Get(ctx, v.ID())
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "exchange_service: market cache get failed",
				slog.String("venue", v.ID()),
				slog.String("error", err.Error()),
			)
		}
	}

	m, err := v.LoadMarkets(ctx)
	if err != nil {
		if s.markets != nil && reload {
			if invErr := s.markets.Invalidate(ctx, v.ID()); invErr != nil {
				s.logger.WarnContext(ctx, "exchange_service: market cache invalidate failed",
					slog.String("venue", v.ID()),
					slog.String("error", invErr.Error()),
				)
			}
		}
		return domain.VenueMarkets{}, fmt.Errorf("%s: %w", v.ID(), err)
	}

	if s.markets != nil {
		if err := s.markets.Set(ctx, v.ID(), m); err != nil {
			s.logger.WarnContext(ctx, "exchange_service: market cache set failed",
				slog.String("venue", v.ID()),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// FetchOrderBooks returns the books of every loaded venue for symbols and
// their reverse pairs, restricted to the pairs each venue trades. Books are
// ordered by configured venue, then by symbol in request order.
//
// A venue that fails is logged and its books are left out. The call fails
// when the context ends or when every venue asked for books failed.
func (s *ExchangeService) FetchOrderBooks(ctx context.Context, symbols []domain.Symbol) ([]domain.OrderBook, error) {
	wanted := withReverses(symbols)

	type job struct {
		venue   domain.Venue
		symbols []domain.Symbol
	}
	var jobs []job

	s.mu.RLock()
	for _, v := range s.venues {
		m, ok := s.catalog[v.ID()]
		if !ok {
			continue
		}
		var accepted []domain.Symbol
		for _, sym := range wanted {
			if m.HasSymbol(sym) {
				accepted = append(accepted, sym)
			}
		}
		if len(accepted) > 0 {
			jobs = append(jobs, job{venue: v, symbols: accepted})
		}
	}
	s.mu.RUnlock()

	results := make([][]domain.OrderBook, len(jobs))
	failed := make([]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			books, err := s.fetchVenue(gctx, j.venue, j.symbols)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.WarnContext(ctx, "exchange_service: venue fetch failed",
					slog.String("venue", j.venue.ID()),
					slog.String("error", err.Error()),
				)
				failed[i] = true
				return nil
			}
			results[i] = books
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("exchange_service: fetch order books: %w", err)
	}

	var out []domain.OrderBook
	nFailed := 0
	for i := range jobs {
		if failed[i] {
			nFailed++
			continue
		}
		out = append(out, results[i]...)
	}
	if len(jobs) > 0 && nFailed == len(jobs) {
		return nil, fmt.Errorf("exchange_service: every venue failed: %w", domain.ErrSnapshotFetch)
	}
	return out, nil
}

func (s *ExchangeService) fetchVenue(ctx context.Context, v domain.Venue, symbols []domain.Symbol) ([]domain.OrderBook, error) {
	out := make([]domain.OrderBook, 0, len(symbols))
	for _, sym := range symbols {
		book, err := s.fetchBook(ctx, v, sym)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", v.ID(), sym, err)
		}
		out = append(out, book)
	}
	return out, nil
}

func (s *ExchangeService) fetchBook(ctx context.Context, v domain.Venue, sym domain.Symbol) (domain.OrderBook, error) {
	if s.books != nil {
		book, err := s.books.GetBook(ctx, v.ID(), sym)
		if err == nil && s.fresh(book) {
			return book, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "exchange_service: book cache get failed",
				slog.String("venue", v.ID()),
				slog.String("symbol", sym.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if limit := s.cfg.RateLimits[v.ID()]; s.limiter != nil && limit > 0 {
		if err := s.limiter.Wait(ctx, "venue:"+v.ID(), limit, time.Second); err != nil {
			return domain.OrderBook{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	book, err := v.FetchOrderBook(ctx, sym)
	if err != nil {
		return domain.OrderBook{}, err
	}
	book.VenueID = v.ID()
	book.Symbol = sym
	if book.Timestamp.IsZero() {
		book.Timestamp = time.Now().UTC()
	}

	if s.books != nil {
		if err := s.books.SetBook(ctx, book); err != nil {
			s.logger.WarnContext(ctx, "exchange_service: book cache set failed",
				slog.String("venue", v.ID()),
				slog.String("symbol", sym.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return book, nil
}

func (s *ExchangeService) fresh(book domain.OrderBook) bool {
	if s.cfg.StaleAfter <= 0 {
		return true
	}
	return time.Since(book.Timestamp) <= s.cfg.StaleAfter
}

// CurrencyPrecision returns the decimal places venueID accepts for currency.
// A stored override wins over the venue's own catalog.
func (s *ExchangeService) CurrencyPrecision(ctx context.Context, venueID, currency string) (int32, error) {
	if s.venue(venueID) == nil {
		return 0, fmt.Errorf("exchange_service: precision: %q: %w", venueID, domain.ErrUnknownVenue)
	}
	currency = strings.ToUpper(currency)

	if s.overrides != nil {
		p, err := s.overrides.Get(ctx, venueID, currency)
		switch {
		case err == nil:
			return p.Precision, nil
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "exchange_service: precision override lookup failed",
				slog.String("venue", venueID),
				slog.String("currency", currency),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.RLock()
	m, ok := s.catalog[venueID]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("exchange_service: precision: %q has no markets loaded: %w", venueID, domain.ErrUnknownVenue)
	}
	p, ok := m.Precision[currency]
	if !ok {
		return 0, fmt.Errorf("exchange_service: precision: %s on %q: %w", currency, venueID, domain.ErrUnknownCurrency)
	}
	return p, nil
}

func (s *ExchangeService) venue(id string) domain.Venue {
	for _, v := range s.venues {
		if v.ID() == id {
			return v
		}
	}
	return nil
}

// withReverses lists each symbol followed by its reverse, without repeats.
func withReverses(symbols []domain.Symbol) []domain.Symbol {
	seen := make(map[domain.Symbol]struct{}, 2*len(symbols))
	out := make([]domain.Symbol, 0, 2*len(symbols))
	for _, sym := range symbols {
		for _, s := range [2]domain.Symbol{sym, sym.Reverse()} {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Compile-time interface checks.
var (
	_ domain.SnapshotFetcher = (*ExchangeService)(nil)
	_ domain.PrecisionLookup = (*ExchangeService)(nil)
)
