// Package arbitrage computes the cheapest way to fill an amount of a trading
// pair from the order books of several venues. Every function here reads
// immutable books and returns freshly built slices, so concurrent calls need
// no coordination.
package arbitrage

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

var one = decimal.NewFromInt(1)

// SelectLevels returns the cheapest quotes of a single book needed to cover
// limit, in ascending price order.
//
// On the sell side each bid (p, q) is restated as the ask (1/p, q*p) of the
// reverse pair so both sides sort the same way. Quotes are taken whole: the
// one that crosses limit is kept in full and everything after it is dropped.
func SelectLevels(book domain.OrderBook, side domain.Side, limit decimal.Decimal) []domain.PriceQuote {
	if !limit.IsPositive() {
		return nil
	}
	quotes := bookQuotes(book, side)
	sortByPrice(quotes)
	return takeUntil(quotes, limit)
}

func bookQuotes(book domain.OrderBook, side domain.Side) []domain.PriceQuote {
	var levels []domain.PriceLevel
	switch side {
	case domain.SideBuy:
		levels = book.Asks
	case domain.SideSell:
		levels = book.Bids
	default:
		return nil
	}

	quotes := make([]domain.PriceQuote, 0, len(levels))
	for _, lvl := range levels {
		if !lvl.Price.IsPositive() {
			continue
		}
		if side == domain.SideSell {
			quotes = append(quotes, invertLevel(book.VenueID, lvl))
			continue
		}
		quotes = append(quotes, domain.PriceQuote{
			VenueID:  book.VenueID,
			Price:    lvl.Price,
			Quantity: lvl.Quantity,
		})
	}
	return quotes
}

// invertLevel turns "sell q of A for p each" into "p*q of B at 1/p each".
func invertLevel(venueID string, lvl domain.PriceLevel) domain.PriceQuote {
	return domain.PriceQuote{
		VenueID:  venueID,
		Price:    one.Div(lvl.Price),
		Quantity: lvl.Quantity.Mul(lvl.Price),
	}
}

// sortByPrice orders quotes cheapest first. Equal prices keep their input
// order.
func sortByPrice(quotes []domain.PriceQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Price.LessThan(quotes[j].Price)
	})
}

// takeUntil keeps whole quotes while the running quantity is below limit.
func takeUntil(quotes []domain.PriceQuote, limit decimal.Decimal) []domain.PriceQuote {
	out := make([]domain.PriceQuote, 0, len(quotes))
	total := decimal.Zero
	for _, q := range quotes {
		if total.GreaterThanOrEqual(limit) {
			break
		}
		total = total.Add(q.Quantity)
		out = append(out, q)
	}
	return out
}
