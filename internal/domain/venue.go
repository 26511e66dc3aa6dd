package domain

import "context"

// VenueMarkets is the catalog a venue reports at load time: the pairs it
// trades and the decimal places it accepts per currency.
type VenueMarkets struct {
	Symbols   []Symbol
	Precision map[string]int32
}

// HasSymbol reports whether the venue trades s.
func (m VenueMarkets) HasSymbol(s Symbol) bool {
	for _, sym := range m.Symbols {
		if sym == s {
			return true
		}
	}
	return false
}

// Venue is a liquidity source able to describe its markets and return a
// normalized order book for one of them.
type Venue interface {
	ID() string
	LoadMarkets(ctx context.Context) (VenueMarkets, error)
	FetchOrderBook(ctx context.Context, symbol Symbol) (OrderBook, error)
}

// SnapshotFetcher returns every order book, across every venue, for the
// requested symbols and their reverse orientation.
type SnapshotFetcher interface {
	FetchOrderBooks(ctx context.Context, symbols []Symbol) ([]OrderBook, error)
}

// PrecisionLookup returns the decimal places a venue accepts for currency.
type PrecisionLookup interface {
	CurrencyPrecision(ctx context.Context, venueID, currency string) (int32, error)
}
