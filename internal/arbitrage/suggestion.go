package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// BuildSuggestions splits amount of symbol's base currency across venues,
// cheapest quotes first. Venues appear in the order their first quote was
// used. If the books cannot cover amount the suggestions sum to less.
func BuildSuggestions(books []domain.OrderBook, symbol domain.Symbol, amount decimal.Decimal) []domain.Suggestion {
	quotes := RankQuotes(books, symbol, amount)
	currency := symbol.Base()

	var out []domain.Suggestion
	byVenue := make(map[string]int)
	filled := decimal.Zero

	for _, q := range quotes {
		if !q.Quantity.IsPositive() {
			continue
		}
		take := q.Quantity
		if remaining := amount.Sub(filled); take.GreaterThanOrEqual(remaining) {
			take = remaining
		}

		i, ok := byVenue[q.VenueID]
		if !ok {
			i = len(out)
			byVenue[q.VenueID] = i
			out = append(out, domain.Suggestion{
				VenueID:  q.VenueID,
				Currency: currency,
				Amount:   decimal.Zero,
			})
		}
		out[i].Amount = out[i].Amount.Add(take)

		filled = filled.Add(take)
		if filled.GreaterThanOrEqual(amount) {
			break
		}
	}
	return out
}
