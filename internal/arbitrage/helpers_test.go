package arbitrage

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// levels builds price levels from "price", "quantity" string pairs.
func levels(pairs ...string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: dec(pairs[i]), Quantity: dec(pairs[i+1])})
	}
	return out
}

type wantQuote struct {
	venue    string
	price    decimal.Decimal
	quantity string
}

func assertQuotes(t *testing.T, got []domain.PriceQuote, want []wantQuote) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d quotes, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.VenueID != w.venue {
			t.Errorf("quote %d: venue = %s, want %s", i, g.VenueID, w.venue)
		}
		if !g.Price.Equal(w.price) {
			t.Errorf("quote %d: price = %s, want %s", i, g.Price, w.price)
		}
		if !g.Quantity.Equal(dec(w.quantity)) {
			t.Errorf("quote %d: quantity = %s, want %s", i, g.Quantity, w.quantity)
		}
	}
}

func sumQuantities(quotes []domain.PriceQuote) decimal.Decimal {
	total := decimal.Zero
	for _, q := range quotes {
		total = total.Add(q.Quantity)
	}
	return total
}

func sumSuggestions(suggestions []domain.Suggestion) decimal.Decimal {
	total := decimal.Zero
	for _, s := range suggestions {
		total = total.Add(s.Amount)
	}
	return total
}
