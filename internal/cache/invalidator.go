package cache

import (
	"context"
	"log/slog"

	"github.com/yourorg/places-api/internal/events"
)

// Invalidator drops cached responses that a restaurant upsert made stale.
type Invalidator struct {
	Cache  Cache
	Pub    events.Publisher
	Logger *slog.Logger
}

// Run consumes events until ctx ends or the publisher is closed.
func (i *Invalidator) Run(ctx context.Context) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sub := i.Pub.SubscribeRestaurantUpdated()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			i.Cache.Delete(ctx, RestaurantKey(evt.PlaceID), LocationsKey)
			logger.Debug("cache invalidated", slog.String("place_id", evt.PlaceID), slog.Bool("created", evt.Created))
		}
	}
}
