package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSymbolLength bounds the "BASE/QUOTE" notation accepted from callers.
const MaxSymbolLength = 10

var symbolPattern = regexp.MustCompile(`^[A-Za-z]+/[A-Za-z]+$`)

// Symbol is a trading pair in "BASE/QUOTE" notation. Acquiring BASE costs
// QUOTE.
type Symbol string

// ParseSymbol validates s and returns it upper-cased.
func ParseSymbol(s string) (Symbol, error) {
	s = strings.TrimSpace(s)
	if len(s) > MaxSymbolLength {
		return "", fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidSymbol, s, MaxSymbolLength)
	}
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q is not BASE/QUOTE", ErrInvalidSymbol, s)
	}
	return Symbol(strings.ToUpper(s)), nil
}

// NewSymbol joins base and quote into an upper-cased Symbol.
func NewSymbol(base, quote string) Symbol {
	return Symbol(strings.ToUpper(base) + "/" + strings.ToUpper(quote))
}

// Base returns the currency before the slash.
func (s Symbol) Base() string {
	base, _, _ := strings.Cut(string(s), "/")
	return base
}

// Quote returns the currency after the slash.
func (s Symbol) Quote() string {
	_, quote, _ := strings.Cut(string(s), "/")
	return quote
}

// Reverse returns the pair with base and quote swapped.
func (s Symbol) Reverse() Symbol {
	base, quote, ok := strings.Cut(string(s), "/")
	if !ok {
		return s
	}
	return Symbol(quote + "/" + base)
}

func (s Symbol) String() string { return string(s) }
