package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrLockHeld        = errors.New("lock already held")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrEmptyRequest    = errors.New("empty request")
	ErrUnknownVenue    = errors.New("unknown venue")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrStaleBook       = errors.New("stale order book")
	ErrSnapshotFetch   = errors.New("order book snapshot fetch failed")
)
