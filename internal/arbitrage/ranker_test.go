package arbitrage

import (
	"testing"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

func TestRankQuotesBuy(t *testing.T) {
	books := []domain.OrderBook{
		{
			VenueID: "bitso",
			Symbol:  "USD/BRL",
			Asks:    levels("5.3168", "10.0005", "5.3191", "150", "5.3209", "200"),
		},
		{
			VenueID: "binance",
			Symbol:  "USD/BRL",
			Asks:    levels("5.3173", "15", "5.3299", "200.99", "5.3190", "33"),
		},
	}

	got := RankQuotes(books, "USD/BRL", dec("60"))

	assertQuotes(t, got, []wantQuote{
		{"bitso", dec("5.3168"), "10.0005"},
		{"binance", dec("5.3173"), "15"},
		{"binance", dec("5.3190"), "33"},
		{"bitso", dec("5.3191"), "150"},
	})
}

func TestRankQuotesSellUsesReverseBooks(t *testing.T) {
	books := []domain.OrderBook{
		{
			VenueID: "bitso",
			Symbol:  "USD/BRL",
			Bids:    levels("5", "1", "5.5190", "9", "4.9909", "150", "4.9999", "1.99"),
		},
		{
			VenueID: "binance",
			Symbol:  "USD/BRL",
			Bids:    levels("5.5", "2.5", "4.9991", "200", "4.9973", "5"),
		},
	}

	got := RankQuotes(books, "BRL/USD", dec("65"))

	assertQuotes(t, got, []wantQuote{
		{"bitso", one.Div(dec("5.5190")), "49.671"},
		{"binance", one.Div(dec("5.5")), "13.75"},
		{"bitso", dec("0.2"), "5"},
	})
}

func TestRankQuotesPrefersDirectOrientation(t *testing.T) {
	books := []domain.OrderBook{
		{VenueID: "bitso", Symbol: "BRL/USD", Bids: levels("0.2", "100")},
		{VenueID: "buda", Symbol: "USD/BRL", Asks: levels("5", "3")},
	}

	got := RankQuotes(books, "USD/BRL", dec("10"))

	assertQuotes(t, got, []wantQuote{
		{"buda", dec("5"), "3"},
	})
}

func TestRankQuotesNoMatchingBooks(t *testing.T) {
	books := []domain.OrderBook{
		{VenueID: "bitso", Symbol: "BTC/MXN", Asks: levels("1", "1")},
		{VenueID: "buda", Asks: levels("1", "1")},
	}
	if got := RankQuotes(books, "USD/BRL", dec("1")); len(got) != 0 {
		t.Fatalf("expected no quotes, got %+v", got)
	}
}

func TestResolveSide(t *testing.T) {
	books := []domain.OrderBook{
		{VenueID: "a", Symbol: "USD/BRL"},
		{VenueID: "b", Symbol: "USD/COP"},
		{VenueID: "c", Symbol: "USD/BRL"},
	}

	tests := []struct {
		symbol domain.Symbol
		side   domain.Side
		venues []string
		wantOK bool
	}{
		{"USD/BRL", domain.SideBuy, []string{"a", "c"}, true},
		{"BRL/USD", domain.SideSell, []string{"a", "c"}, true},
		{"COP/USD", domain.SideSell, []string{"b"}, true},
		{"BTC/USD", 0, nil, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.symbol), func(t *testing.T) {
			side, matched, ok := ResolveSide(books, tc.symbol)
			if ok != tc.wantOK || side != tc.side {
				t.Fatalf("ResolveSide = (%s, %v), want (%s, %v)", side, ok, tc.side, tc.wantOK)
			}
			if len(matched) != len(tc.venues) {
				t.Fatalf("matched %d books, want %d", len(matched), len(tc.venues))
			}
			for i, v := range tc.venues {
				if matched[i].VenueID != v {
					t.Errorf("matched[%d] = %s, want %s", i, matched[i].VenueID, v)
				}
			}
		})
	}
}

// The merged list is capped again, so pricier venues drop out once the
// cheapest level covers the limit.
func TestRankQuotesCapsMergedList(t *testing.T) {
	books := []domain.OrderBook{
		{VenueID: "deep", Symbol: "USD/BRL", Asks: levels("10", "5", "11", "5", "1", "100")},
		{VenueID: "shallow", Symbol: "USD/BRL", Asks: levels("2", "1")},
	}

	got := RankQuotes(books, "USD/BRL", dec("3"))

	assertQuotes(t, got, []wantQuote{
		{"deep", dec("1"), "100"},
	})
}
