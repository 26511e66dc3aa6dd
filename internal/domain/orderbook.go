package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+quantity entry in an order book.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is one venue's snapshot of bids and asks for a trading pair.
// Symbol is empty when the venue did not report the pair orientation.
type OrderBook struct {
	VenueID   string
	Symbol    Symbol
	Asks      []PriceLevel
	Bids      []PriceLevel
	Timestamp time.Time
}

// PriceQuote is an amount of base currency available at a unit price from a
// venue. Quotes produced for the sell side are already restated as asks.
type PriceQuote struct {
	VenueID  string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Side tells which half of an order book supplies liquidity.
type Side int

const (
	// SideBuy consumes asks as quoted.
	SideBuy Side = iota + 1
	// SideSell consumes bids, restated as asks of the reverse pair.
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}
