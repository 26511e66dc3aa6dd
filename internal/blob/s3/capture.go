package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// CatalogSource exposes the loaded venue catalogs.
type CatalogSource interface {
	VenueIDs() []string
	Markets(venueID string) (domain.VenueMarkets, error)
}

// Capturer records live order books so a blob venue can replay them later.
// Each venue is written under {prefix}/{venue} in the layout described by
// domain.SnapshotMarketsPath and domain.SnapshotBookPath.
type Capturer struct {
	fetcher domain.SnapshotFetcher
	catalog CatalogSource
	writer  domain.BlobWriter
	logger  *slog.Logger
}

// NewCapturer creates a Capturer.
func NewCapturer(
	fetcher domain.SnapshotFetcher,
	catalog CatalogSource,
	writer domain.BlobWriter,
	logger *slog.Logger,
) *Capturer {
	return &Capturer{
		fetcher: fetcher,
		catalog: catalog,
		writer:  writer,
		logger:  logger,
	}
}

// Capture fetches the books for symbols (and their reverses) from every
// venue and uploads them with each venue's catalog. It returns the number
// of books written.
func (c *Capturer) Capture(ctx context.Context, prefix string, symbols []domain.Symbol) (int, error) {
	books, err := c.fetcher.FetchOrderBooks(ctx, symbols)
	if err != nil {
		return 0, fmt.Errorf("s3blob: capture: %w", err)
	}
	now := time.Now().UTC()

	byVenue := make(map[string][]domain.OrderBook)
	for _, b := range books {
		byVenue[b.VenueID] = append(byVenue[b.VenueID], b)
	}

	written := 0
	for _, venueID := range c.catalog.VenueIDs() {
		venueBooks := byVenue[venueID]
		if len(venueBooks) == 0 {
			continue
		}
		markets, err := c.catalog.Markets(venueID)
		if err != nil {
			return written, fmt.Errorf("s3blob: capture %s: %w", venueID, err)
		}

		venuePrefix := joinPrefix(prefix, venueID)
		if err := PutJSON(ctx, c.writer, domain.SnapshotMarketsPath(venuePrefix), marketsSnapshot(venueID, markets, venueBooks, now)); err != nil {
			return written, err
		}
		for _, b := range venueBooks {
			if err := PutJSON(ctx, c.writer, domain.SnapshotBookPath(venuePrefix, b.Symbol), bookSnapshot(b, now)); err != nil {
				return written, err
			}
			written++
		}

		c.logger.InfoContext(ctx, "capture: venue written",
			slog.String("venue", venueID),
			slog.String("prefix", venuePrefix),
			slog.Int("books", len(venueBooks)),
		)
	}
	return written, nil
}

// marketsSnapshot keeps only the captured symbols and the precision of
// their currencies, so the replayed venue trades exactly what was stored.
func marketsSnapshot(venueID string, m domain.VenueMarkets, books []domain.OrderBook, at time.Time) domain.MarketsSnapshot {
	snap := domain.MarketsSnapshot{
		Venue:      venueID,
		Precision:  make(map[string]int32),
		CapturedAt: at,
	}
	for _, b := range books {
		snap.Symbols = append(snap.Symbols, b.Symbol.String())
		for _, cur := range []string{b.Symbol.Base(), b.Symbol.Quote()} {
			if p, ok := m.Precision[cur]; ok {
				snap.Precision[cur] = p
			}
		}
	}
	return snap
}

func bookSnapshot(b domain.OrderBook, at time.Time) domain.BookSnapshot {
	ts := b.Timestamp
	if ts.IsZero() {
		ts = at
	}
	return domain.BookSnapshot{
		Venue:      b.VenueID,
		Symbol:     b.Symbol.String(),
		Asks:       levelStrings(b.Asks),
		Bids:       levelStrings(b.Bids),
		CapturedAt: ts,
	}
}

func levelStrings(levels []domain.PriceLevel) [][2]string {
	out := make([][2]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, [2]string{l.Price.String(), l.Quantity.String()})
	}
	return out
}

func joinPrefix(prefix, venueID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return venueID
	}
	return prefix + "/" + venueID
}
