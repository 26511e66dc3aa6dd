package domain

import (
	"context"
	"time"
)

// CurrencyPrecision is an operator-maintained precision for one venue
// currency. It takes priority over what the venue reports.
type CurrencyPrecision struct {
	VenueID   string
	Currency  string
	Precision int32
	UpdatedAt time.Time
}

// CurrencyPrecisionStore holds precision overrides.
type CurrencyPrecisionStore interface {
	Get(ctx context.Context, venueID, currency string) (CurrencyPrecision, error)
	ListByVenue(ctx context.Context, venueID string) ([]CurrencyPrecision, error)
	Upsert(ctx context.Context, p CurrencyPrecision) error
}
