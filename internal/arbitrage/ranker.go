package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// ResolveSide picks the books able to fill symbol. Books quoted as symbol
// are bought from directly; failing that, books quoted as the reverse pair
// are sold into. ok is false when neither orientation is available.
func ResolveSide(books []domain.OrderBook, symbol domain.Symbol) (side domain.Side, matched []domain.OrderBook, ok bool) {
	if direct := booksFor(books, symbol); len(direct) > 0 {
		return domain.SideBuy, direct, true
	}
	if reverse := booksFor(books, symbol.Reverse()); len(reverse) > 0 {
		return domain.SideSell, reverse, true
	}
	return 0, nil, false
}

func booksFor(books []domain.OrderBook, symbol domain.Symbol) []domain.OrderBook {
	var out []domain.OrderBook
	for _, b := range books {
		if b.Symbol == symbol {
			out = append(out, b)
		}
	}
	return out
}

// RankQuotes merges the per-venue selections for symbol into one list sorted
// by price and capped at limit.
//
// Every venue is first capped at limit on its own, which bounds how deep a
// single venue is read, and the merged list is capped again. The two passes
// are not interchangeable with a single pass over all levels.
func RankQuotes(books []domain.OrderBook, symbol domain.Symbol, limit decimal.Decimal) []domain.PriceQuote {
	if !limit.IsPositive() {
		return nil
	}
	side, matched, ok := ResolveSide(books, symbol)
	if !ok {
		return nil
	}

	var merged []domain.PriceQuote
	for _, book := range matched {
		merged = append(merged, SelectLevels(book, side, limit)...)
	}
	sortByPrice(merged)
	return takeUntil(merged, limit)
}
