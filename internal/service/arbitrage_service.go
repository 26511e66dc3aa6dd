package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbsuggest/internal/arbitrage"
	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// ArbitrageService turns a batch of fill requests into one ranked list of
// per-venue suggestions. It performs a single snapshot fetch per batch.
type ArbitrageService struct {
	fetcher   domain.SnapshotFetcher
	precision domain.PrecisionLookup
	logger    *slog.Logger
}

// NewArbitrageService creates an ArbitrageService with all required dependencies.
func NewArbitrageService(
	fetcher domain.SnapshotFetcher,
	precision domain.PrecisionLookup,
	logger *slog.Logger,
) *ArbitrageService {
	return &ArbitrageService{
		fetcher:   fetcher,
		precision: precision,
		logger:    logger,
	}
}

// Execute fetches the books for every requested symbol once, splits each
// request across venues and merges the result by venue and currency.
//
// Merged amounts are rounded to the venue's currency precision after
// summation. Entries that round to zero are dropped and the rest are sorted
// by amount, largest first, with ties kept in merge order. Any fetch or
// precision failure fails the whole batch.
func (s *ArbitrageService) Execute(ctx context.Context, requests []domain.ArbitrageRequest) ([]domain.Suggestion, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("arbitrage_service: execute: %w", domain.ErrEmptyRequest)
	}
	requests, err := normalizeRequests(requests)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	symbols := uniqueSymbols(requests)

	books, err := s.fetcher.FetchOrderBooks(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("arbitrage_service: fetch order books: %w", err)
	}

	s.logger.DebugContext(ctx, "arbitrage_service: snapshot fetched",
		slog.String("batch_id", batchID),
		slog.Int("symbols", len(symbols)),
		slog.Int("books", len(books)),
	)

	var combined []domain.Suggestion
	for _, r := range requests {
		combined = append(combined, arbitrage.BuildSuggestions(books, r.Symbol, r.Amount)...)
	}

	merged := mergeSuggestions(combined)

	out := make([]domain.Suggestion, 0, len(merged))
	for _, sg := range merged {
		places, err := s.precision.CurrencyPrecision(ctx, sg.VenueID, sg.Currency)
		if err != nil {
			return nil, fmt.Errorf("arbitrage_service: precision for %s %s: %w", sg.VenueID, sg.Currency, err)
		}
		sg.Amount = sg.Amount.Round(places)
		if sg.Amount.IsZero() {
			continue
		}
		out = append(out, sg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})

	s.logger.InfoContext(ctx, "arbitrage_service: batch computed",
		slog.String("batch_id", batchID),
		slog.Int("requests", len(requests)),
		slog.Int("suggestions", len(out)),
	)

	return out, nil
}

// normalizeRequests validates every request and returns a copy with the
// symbols upper-cased.
func normalizeRequests(requests []domain.ArbitrageRequest) ([]domain.ArbitrageRequest, error) {
	out := make([]domain.ArbitrageRequest, len(requests))
	for i, r := range requests {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("arbitrage_service: request %d: %w", i, err)
		}
		sym, _ := domain.ParseSymbol(string(r.Symbol))
		out[i] = domain.ArbitrageRequest{Symbol: sym, Amount: r.Amount}
	}
	return out, nil
}

// uniqueSymbols lists the requested symbols in first-seen order.
func uniqueSymbols(requests []domain.ArbitrageRequest) []domain.Symbol {
	seen := make(map[domain.Symbol]struct{}, len(requests))
	out := make([]domain.Symbol, 0, len(requests))
	for _, r := range requests {
		if _, ok := seen[r.Symbol]; ok {
			continue
		}
		seen[r.Symbol] = struct{}{}
		out = append(out, r.Symbol)
	}
	return out
}

type suggestionKey struct {
	venue    string
	currency string
}

// mergeSuggestions sums amounts per venue and currency. Groups keep the
// position of their first member.
func mergeSuggestions(in []domain.Suggestion) []domain.Suggestion {
	index := make(map[suggestionKey]int, len(in))
	out := make([]domain.Suggestion, 0, len(in))
	for _, sg := range in {
		k := suggestionKey{venue: sg.VenueID, currency: sg.Currency}
		if i, ok := index[k]; ok {
			out[i].Amount = out[i].Amount.Add(sg.Amount)
			continue
		}
		index[k] = len(out)
		out = append(out, sg)
	}
	return out
}
