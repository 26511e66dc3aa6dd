package domain

import (
	"context"
	"time"
)

// MarketsReloadedChannel carries MarketsReloaded events between instances.
const MarketsReloadedChannel = "markets.reloaded"

// MarketsReloaded announces that an instance refreshed the shared venue
// catalogs.
type MarketsReloaded struct {
	Origin     string    `json:"origin"`
	Venues     []string  `json:"venues"`
	ReloadedAt time.Time `json:"reloaded_at"`
}

// SignalBus provides ephemeral pub/sub messaging between instances.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
