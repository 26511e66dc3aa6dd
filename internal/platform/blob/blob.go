// Package blob is a venue that replays order books captured to object
// storage. It serves offline runs and sandboxes where no live venue is
// reachable.
package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
	"github.com/alanyoungcy/arbsuggest/internal/platform"
)

const defaultPrecision = 8

// maxObjectBytes bounds a single snapshot object.
const maxObjectBytes = 32 << 20

// latestSegment in a prefix stands for the newest capture run.
const latestSegment = "*"

// Venue reads the catalog and books stored under one prefix.
type Venue struct {
	id        string
	prefix    string
	precision int32
	reader    domain.BlobReader

	mu     sync.RWMutex
	active string
}

// NewVenue creates a blob venue reading {prefix}/markets.json and
// {prefix}/books/*.json through reader.
//
// One path segment of prefix may be "*", as in "captures/*/binance". It is
// resolved on every LoadMarkets to the greatest run name that holds a
// catalog, which for timestamped capture runs is the latest one.
func NewVenue(cfg platform.VenueConfig, reader domain.BlobReader, prefix string) *Venue {
	precision := cfg.DefaultPrecision
	if precision <= 0 {
		precision = defaultPrecision
	}
	id := cfg.ID
	if id == "" {
		id = "blob"
	}
	return &Venue{
		id:        id,
		prefix:    strings.Trim(prefix, "/"),
		precision: precision,
		reader:    reader,
		active:    strings.Trim(prefix, "/"),
	}
}

// ID returns the venue id.
func (v *Venue) ID() string { return v.id }

// LoadMarkets reads the stored catalog. Currencies without a stored
// precision get the configured default.
func (v *Venue) LoadMarkets(ctx context.Context) (domain.VenueMarkets, error) {
	prefix, err := v.resolvePrefix(ctx)
	if err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("blob: load markets: %w", err)
	}

	var snap domain.MarketsSnapshot
	path := domain.SnapshotMarketsPath(prefix)
	if err := v.readJSON(ctx, path, &snap); err != nil {
		return domain.VenueMarkets{}, fmt.Errorf("blob: load markets %s: %w", path, err)
	}

	v.mu.Lock()
	v.active = prefix
	v.mu.Unlock()

	symbols := make([]domain.Symbol, 0, len(snap.Symbols))
	for _, s := range snap.Symbols {
		base, quote, ok := strings.Cut(s, "/")
		if !ok || base == "" || quote == "" {
			continue
		}
		symbols = append(symbols, domain.NewSymbol(base, quote))
	}

	precision := platform.UniformPrecision(symbols, v.precision)
	for cur, p := range snap.Precision {
		precision[strings.ToUpper(cur)] = p
	}
	return domain.VenueMarkets{Symbols: symbols, Precision: precision}, nil
}

// FetchOrderBook reads the stored book for sym. A missing object wraps
// domain.ErrNotFound.
func (v *Venue) FetchOrderBook(ctx context.Context, sym domain.Symbol) (domain.OrderBook, error) {
	v.mu.RLock()
	prefix := v.active
	v.mu.RUnlock()

	var snap domain.BookSnapshot
	path := domain.SnapshotBookPath(prefix, sym)
	if err := v.readJSON(ctx, path, &snap); err != nil {
		return domain.OrderBook{}, fmt.Errorf("blob: order book %s: %w", path, err)
	}

	asks, err := parseLevels(snap.Asks)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("blob: order book %s: asks: %w", path, err)
	}
	bids, err := parseLevels(snap.Bids)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("blob: order book %s: bids: %w", path, err)
	}
	return domain.OrderBook{
		VenueID:   v.id,
		Symbol:    sym,
		Asks:      asks,
		Bids:      bids,
		Timestamp: time.Now().UTC(),
	}, nil
}

// resolvePrefix expands a "*" segment to the newest run holding a catalog.
func (v *Venue) resolvePrefix(ctx context.Context) (string, error) {
	before, after, ok := strings.Cut(v.prefix, latestSegment)
	if !ok {
		return v.prefix, nil
	}
	suffix := "/" + domain.SnapshotMarketsPath(after)

	infos, err := v.reader.List(ctx, before)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", before, err)
	}

	latest := ""
	for _, info := range infos {
		run, ok := strings.CutPrefix(info.Path, before)
		if !ok {
			continue
		}
		run, ok = strings.CutSuffix(run, suffix)
		if !ok || run == "" || strings.Contains(run, "/") {
			continue
		}
		latest = max(latest, run)
	}
	if latest == "" {
		return "", fmt.Errorf("no capture under %s: %w", v.prefix, domain.ErrNotFound)
	}
	return before + latest + after, nil
}

func (v *Venue) readJSON(ctx context.Context, path string, out any) error {
	rc, err := v.reader.Get(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxObjectBytes))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func parseLevels(rows [][2]string) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(rows))
	for i, r := range rows {
		lvl, err := platform.ParseLevel(r[0], r[1])
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		out = append(out, lvl)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.Venue = (*Venue)(nil)
