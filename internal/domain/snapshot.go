package domain

import (
	"strings"
	"time"
)

// Object layout of a captured venue under a prefix:
//
//	{prefix}/markets.json           MarketsSnapshot
//	{prefix}/books/{BASE}-{QUOTE}.json  BookSnapshot

// MarketsSnapshot is the stored form of a venue catalog.
type MarketsSnapshot struct {
	Venue      string           `json:"venue"`
	Symbols    []string         `json:"symbols"`
	Precision  map[string]int32 `json:"precision"`
	CapturedAt time.Time        `json:"captured_at"`
}

// BookSnapshot is the stored form of one order book. Levels are
// [price, quantity] decimal strings.
type BookSnapshot struct {
	Venue      string      `json:"venue"`
	Symbol     string      `json:"symbol"`
	Asks       [][2]string `json:"asks"`
	Bids       [][2]string `json:"bids"`
	CapturedAt time.Time   `json:"captured_at"`
}

// SnapshotMarketsPath is where a venue catalog is stored under prefix.
func SnapshotMarketsPath(prefix string) string {
	return joinBlobPath(prefix, "markets.json")
}

// SnapshotBookPath is where the book for sym is stored under prefix.
func SnapshotBookPath(prefix string, sym Symbol) string {
	return joinBlobPath(prefix, "books/"+sym.Base()+"-"+sym.Quote()+".json")
}

func joinBlobPath(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
