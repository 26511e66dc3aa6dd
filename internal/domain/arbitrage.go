package domain

import "github.com/shopspring/decimal"

// ArbitrageRequest asks for Amount units of the symbol's base currency.
type ArbitrageRequest struct {
	Symbol Symbol
	Amount decimal.Decimal
}

// Suggestion is how much of Currency the venue should supply.
type Suggestion struct {
	VenueID  string
	Currency string
	Amount   decimal.Decimal
}

// Validate reports whether the request can be handed to the engine.
func (r ArbitrageRequest) Validate() error {
	if _, err := ParseSymbol(string(r.Symbol)); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
