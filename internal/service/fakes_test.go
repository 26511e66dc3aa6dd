package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func asks(pairs ...string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: dec(pairs[i]), Quantity: dec(pairs[i+1])})
	}
	return out
}

type fakeFetcher struct {
	books []domain.OrderBook
	err   error
	calls [][]domain.Symbol
}

func (f *fakeFetcher) FetchOrderBooks(_ context.Context, symbols []domain.Symbol) ([]domain.OrderBook, error) {
	f.calls = append(f.calls, append([]domain.Symbol(nil), symbols...))
	if f.err != nil {
		return nil, f.err
	}
	return f.books, nil
}

type fakePrecision struct {
	places   int32
	override map[string]int32
	errs     map[string]error
}

func (f *fakePrecision) CurrencyPrecision(_ context.Context, venueID, currency string) (int32, error) {
	key := venueID + ":" + currency
	if err, ok := f.errs[key]; ok {
		return 0, err
	}
	if p, ok := f.override[key]; ok {
		return p, nil
	}
	return f.places, nil
}

type fakeVenue struct {
	id       string
	markets  domain.VenueMarkets
	loadErr  error
	books    map[domain.Symbol]domain.OrderBook
	fetchErr error

	mu      sync.Mutex
	loads   int
	fetched []domain.Symbol
}

func (v *fakeVenue) ID() string { return v.id }

func (v *fakeVenue) LoadMarkets(context.Context) (domain.VenueMarkets, error) {
	v.mu.Lock()
	v.loads++
	v.mu.Unlock()
	if v.loadErr != nil {
		return domain.VenueMarkets{}, v.loadErr
	}
	return v.markets, nil
}

func (v *fakeVenue) FetchOrderBook(ctx context.Context, sym domain.Symbol) (domain.OrderBook, error) {
	v.mu.Lock()
	v.fetched = append(v.fetched, sym)
	v.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.OrderBook{}, err
	}
	if v.fetchErr != nil {
		return domain.OrderBook{}, v.fetchErr
	}
	return v.books[sym], nil
}

func (v *fakeVenue) fetchCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.fetched)
}

type memBookCache struct {
	mu    sync.Mutex
	books map[string]domain.OrderBook
}

func newMemBookCache() *memBookCache {
	return &memBookCache{books: make(map[string]domain.OrderBook)}
}

func (c *memBookCache) SetBook(_ context.Context, b domain.OrderBook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[b.VenueID+"|"+string(b.Symbol)] = b
	return nil
}

func (c *memBookCache) GetBook(_ context.Context, venueID string, sym domain.Symbol) (domain.OrderBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[venueID+"|"+string(sym)]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	return b, nil
}

type memMarketCache struct {
	mu          sync.Mutex
	markets     map[string]domain.VenueMarkets
	invalidated []string
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{markets: make(map[string]domain.VenueMarkets)}
}

func (c *memMarketCache) Set(_ context.Context, id string, m domain.VenueMarkets) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[id] = m
	return nil
}

func (c *memMarketCache) Get(_ context.Context, id string) (domain.VenueMarkets, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.VenueMarkets{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memMarketCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type countingLimiter struct {
	mu    sync.Mutex
	waits map[string]int
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *countingLimiter) Wait(_ context.Context, key string, _ int, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waits == nil {
		l.waits = make(map[string]int)
	}
	l.waits[key]++
	return nil
}

type fakeLocks struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() { l.released++ }, nil
}

type memOverrides struct {
	rows map[string]domain.CurrencyPrecision
	err  error
}

func (s *memOverrides) Get(_ context.Context, venueID, currency string) (domain.CurrencyPrecision, error) {
	if s.err != nil {
		return domain.CurrencyPrecision{}, s.err
	}
	p, ok := s.rows[venueID+":"+currency]
	if !ok {
		return domain.CurrencyPrecision{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memOverrides) ListByVenue(_ context.Context, venueID string) ([]domain.CurrencyPrecision, error) {
	var out []domain.CurrencyPrecision
	for _, p := range s.rows {
		if p.VenueID == venueID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memOverrides) Upsert(_ context.Context, p domain.CurrencyPrecision) error {
	if s.rows == nil {
		s.rows = make(map[string]domain.CurrencyPrecision)
	}
	s.rows[p.VenueID+":"+p.Currency] = p
	return nil
}

type chanBus struct {
	mu        sync.Mutex
	published [][]byte
	sub       chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.sub, nil
}
